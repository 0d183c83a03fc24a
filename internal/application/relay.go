package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/clinicops/wa-adapter/internal/domain/model"
	"github.com/clinicops/wa-adapter/internal/domain/port/driven"
)

// Relay forwards inbound transport messages to the configured sinks. It
// filters out self-sent messages and unrecognized kinds, normalizes the rest,
// and delivers each surviving message exactly once per sink, best-effort.
// Delivery failures are logged and dropped; there is no durable outbox.
type Relay struct {
	sinks   []driven.InboundSink
	sem     chan struct{}
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewRelay creates a Relay. With no sinks the relay is a valid no-op: every
// dispatch is silently discarded. maxInFlight bounds concurrent deliveries so
// a slow sink can never queue unboundedly behind the transport event loop.
func NewRelay(sinks []driven.InboundSink, maxInFlight int, timeout time.Duration, logger *slog.Logger) *Relay {
	if maxInFlight <= 0 {
		maxInFlight = 8
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Relay{
		sinks:   sinks,
		sem:     make(chan struct{}, maxInFlight),
		timeout: timeout,
		now:     time.Now,
		logger:  logger,
	}
}

// Enabled reports whether any sink is configured.
func (r *Relay) Enabled() bool {
	return len(r.sinks) > 0
}

// Dispatch filters and forwards one raw transport message. It never blocks
// the caller: when all delivery slots are busy the message is dropped with a
// warning rather than backpressuring the transport event loop.
func (r *Relay) Dispatch(ctx context.Context, raw driven.RawMessage) {
	if len(r.sinks) == 0 {
		return
	}
	if raw.FromSelf {
		return
	}
	if raw.Kind != model.MessageTypeText {
		return
	}

	msg := model.InboundMessage{
		From:      raw.From,
		Type:      model.MessageTypeText,
		Text:      raw.Text,
		Timestamp: raw.Timestamp,
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = r.now().Unix()
	}

	select {
	case r.sem <- struct{}{}:
	default:
		r.logger.Warn("relay saturated, dropping inbound message", "from", msg.From)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() { <-r.sem }()

		// Deliveries outlive the triggering event but not process shutdown
		// semantics: they get their own bounded deadline.
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		for _, sink := range r.sinks {
			if err := sink.Deliver(dctx, msg); err != nil {
				r.logger.Error("inbound delivery failed",
					"sink", sink.Name(),
					"from", msg.From,
					"error", err,
				)
			}
		}
	}()
}

// Wait blocks until all in-flight deliveries finish. Used on shutdown.
func (r *Relay) Wait() {
	r.wg.Wait()
}
