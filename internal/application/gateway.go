package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/clinicops/wa-adapter/internal/domain/model"
	"github.com/clinicops/wa-adapter/internal/domain/port/driven"
)

// jidSuffix is the canonical user-address suffix of the transport.
const jidSuffix = "@s.whatsapp.net"

// NormalizeJID maps a raw phone number or an already-qualified address to the
// transport's canonical form. Deterministic and idempotent: an address that
// already carries the suffix is returned verbatim, otherwise all non-digit
// characters are stripped and the suffix appended.
func NormalizeJID(to string) string {
	if strings.HasSuffix(to, jidSuffix) {
		return to
	}
	var digits strings.Builder
	for _, r := range to {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return digits.String() + jidSuffix
}

// Gateway is the outbound-send service. It validates request shape, checks
// readiness through the supervisor's snapshot, and issues at most one
// transport send per request. Transport-level failures are surfaced as
// ErrTransportSend and never retried here.
type Gateway struct {
	session  SessionReader
	timeout  time.Duration
	yesLabel string
	noLabel  string
	logger   *slog.Logger
}

// NewGateway creates a Gateway. yesLabel and noLabel are the locale defaults
// for button titles omitted from a buttons request. timeout bounds each
// transport send so a stuck transport cannot starve HTTP callers.
func NewGateway(session SessionReader, timeout time.Duration, yesLabel, noLabel string, logger *slog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Gateway{
		session:  session,
		timeout:  timeout,
		yesLabel: yesLabel,
		noLabel:  noLabel,
		logger:   logger,
	}
}

// SendText sends a plain-text message. Fails with ErrNotReady unless the
// session is open, and with ErrInvalidRequest when to or text is empty.
func (g *Gateway) SendText(ctx context.Context, req model.TextSend) error {
	handle, err := g.readyHandle()
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.To) == "" {
		return fmt.Errorf("%w: missing to", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("%w: missing text", ErrInvalidRequest)
	}

	jid := NormalizeJID(req.To)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := handle.SendText(ctx, jid, req.Text); err != nil {
		g.logger.Error("text send failed", "to", jid, "error", err)
		return fmt.Errorf("%w: %v", ErrTransportSend, err)
	}
	g.logger.Info("text sent", "to", jid)
	return nil
}

// SendButtons sends an interactive yes/no message. Body and both button IDs
// are required; omitted titles default to the configured locale labels.
func (g *Gateway) SendButtons(ctx context.Context, req model.ButtonsSend) error {
	handle, err := g.readyHandle()
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.To) == "" {
		return fmt.Errorf("%w: missing to", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Body) == "" {
		return fmt.Errorf("%w: missing body", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.YesID) == "" {
		return fmt.Errorf("%w: missing yes_id", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.NoID) == "" {
		return fmt.Errorf("%w: missing no_id", ErrInvalidRequest)
	}

	if req.YesTitle == "" {
		req.YesTitle = g.yesLabel
	}
	if req.NoTitle == "" {
		req.NoTitle = g.noLabel
	}
	req.To = NormalizeJID(req.To)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := handle.SendButtons(ctx, req.To, req); err != nil {
		g.logger.Error("buttons send failed", "to", req.To, "error", err)
		return fmt.Errorf("%w: %v", ErrTransportSend, err)
	}
	g.logger.Info("buttons sent", "to", req.To)
	return nil
}

// readyHandle returns the live transport handle from a consistent snapshot,
// or ErrNotReady. The snapshot is immutable, so a send is never issued
// against a handle being torn down mid-transition: a handle captured here
// stays valid as a value even if the supervisor swaps state concurrently
// (the transport then fails the send, surfaced as ErrTransportSend).
func (g *Gateway) readyHandle() (driven.Handle, error) {
	snap := g.session.Snapshot()
	if !snap.Ready() || snap.Handle == nil {
		return nil, ErrNotReady
	}
	return snap.Handle, nil
}
