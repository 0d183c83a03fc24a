// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/clinicops/wa-adapter/internal/domain/model"
	"github.com/clinicops/wa-adapter/internal/domain/port/driven"
)

// Snapshot is an immutable view of the session published atomically on every
// state transition. Handle is non-nil only while a connection attempt is in
// flight or live; PairingCode is non-empty exactly when State is
// AwaitingPairing.
type Snapshot struct {
	State       model.SessionState
	PairingCode string
	Handle      driven.Handle
	Attempt     int
}

// Ready reports whether outbound sends are currently possible.
func (s Snapshot) Ready() bool {
	return s.State.Ready()
}

// SessionReader exposes the supervisor's published snapshot to components
// that must never mutate session state (gateway, pairing surface).
type SessionReader interface {
	Snapshot() Snapshot
}

// ReconnectPolicy controls how the supervisor retries after a transient
// closure. NewBackOff produces a fresh delay sequence; the sequence is reset
// every time the session reaches Open. MaxAttempts of zero means unbounded
// retries; a positive ceiling turns exhaustion into the terminal Failed state.
type ReconnectPolicy struct {
	NewBackOff  func() backoff.BackOff
	MaxAttempts int
}

// DefaultReconnectPolicy retries forever with exponential delays between one
// second and one minute.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		NewBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = time.Second
			bo.MaxInterval = time.Minute
			bo.MaxElapsedTime = 0
			return bo
		},
	}
}

// Supervisor owns the session state machine: it drives (re)connection
// attempts, persists credential rotations, captures pairing codes, and
// applies the reconnect policy. All transitions happen on the single
// goroutine running Run; everything else reads through Snapshot.
type Supervisor struct {
	transport driven.Transport
	creds     driven.CredentialStore
	relay     *Relay
	policy    ReconnectPolicy
	logger    *slog.Logger

	snap atomic.Pointer[Snapshot]
}

// NewSupervisor creates a Supervisor in the Idle state. relay may be a
// disabled relay but must not be nil.
func NewSupervisor(
	transport driven.Transport,
	creds driven.CredentialStore,
	relay *Relay,
	policy ReconnectPolicy,
	logger *slog.Logger,
) *Supervisor {
	if policy.NewBackOff == nil {
		policy.NewBackOff = DefaultReconnectPolicy().NewBackOff
	}
	s := &Supervisor{
		transport: transport,
		creds:     creds,
		relay:     relay,
		policy:    policy,
		logger:    logger,
	}
	s.publish(Snapshot{State: model.StateIdle})
	return s
}

// Snapshot returns the current session snapshot. Safe for concurrent use.
func (s *Supervisor) Snapshot() Snapshot {
	return *s.snap.Load()
}

func (s *Supervisor) publish(snap Snapshot) {
	s.snap.Store(&snap)
}

// Run drives connect/reconnect cycles until ctx is canceled or the session
// reaches a terminal state. Terminal states park the supervisor without
// returning so the HTTP surface keeps serving /health and /qr; Run itself
// returns only on ctx cancellation.
func (s *Supervisor) Run(ctx context.Context) error {
	bo := s.policy.NewBackOff()
	attempt := 0

	for {
		reason, opened, err := s.runSession(ctx, attempt)
		if ctx.Err() != nil {
			return nil
		}
		if opened {
			bo.Reset()
			attempt = 0
		}

		switch {
		case err != nil && errors.Is(err, driven.ErrCredentialCorruption):
			// Fatal to the stored blob, not to the process: wipe so the next
			// attempt pairs from scratch. The retry goes through the regular
			// backoff path below, so a store that keeps failing cannot spin
			// the loop hot.
			s.logger.Error("persisted credentials corrupt, wiping for fresh pairing", "error", err)
			if delErr := s.creds.Delete(ctx); delErr != nil {
				s.logger.Error("delete corrupt credentials", "error", delErr)
			}

		case reason == driven.CloseLoggedOut:
			s.logger.Warn("session logged out, wiping credentials; re-pairing requires restart")
			if delErr := s.creds.Delete(ctx); delErr != nil {
				s.logger.Error("delete credentials after logout", "error", delErr)
			}
			s.publish(Snapshot{State: model.StateLoggedOut})
			return s.park(ctx)

		case err != nil:
			s.logger.Error("session ended with error", "error", err)
		}

		attempt++
		if s.policy.MaxAttempts > 0 && attempt > s.policy.MaxAttempts {
			s.logger.Error("reconnect attempts exhausted", "attempts", s.policy.MaxAttempts)
			s.publish(Snapshot{State: model.StateFailed, Attempt: attempt})
			return s.park(ctx)
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			s.logger.Error("reconnect backoff exhausted")
			s.publish(Snapshot{State: model.StateFailed, Attempt: attempt})
			return s.park(ctx)
		}

		s.publish(Snapshot{State: model.StateReconnecting, Attempt: attempt})
		s.logger.Info("reconnect scheduled", "attempt", attempt, "delay", delay, "reason", reason.String())

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// park holds a terminal state until shutdown.
func (s *Supervisor) park(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// runSession performs one connect-to-close cycle. It returns the close
// reason, whether the session reached Open at any point, and any error that
// ended the cycle before a reasoned closure.
func (s *Supervisor) runSession(ctx context.Context, attempt int) (driven.CloseReason, bool, error) {
	blob, err := s.creds.Load(ctx)
	if err != nil {
		s.publish(Snapshot{State: model.StateConnecting, Attempt: attempt})
		return driven.CloseUnknown, false, err
	}

	s.publish(Snapshot{State: model.StateConnecting, Attempt: attempt})
	s.logger.Info("connecting", "attempt", attempt, "has_credentials", len(blob) > 0)

	handle, err := s.transport.Connect(ctx, blob)
	if err != nil {
		return driven.CloseUnknown, false, err
	}
	s.publish(Snapshot{State: model.StateConnecting, Handle: handle, Attempt: attempt})

	opened := false
	for {
		select {
		case <-ctx.Done():
			_ = handle.Close()
			s.publish(Snapshot{State: model.StateIdle})
			return driven.CloseUnknown, opened, nil

		case ev, ok := <-handle.Events():
			if !ok {
				// Stream ended without a reasoned closure; treat as transient.
				_ = handle.Close()
				s.publish(Snapshot{State: model.StateReconnecting, Attempt: attempt})
				return driven.CloseUnknown, opened, nil
			}

			switch ev.Kind {
			case driven.EventPairingCode:
				s.publish(Snapshot{
					State:       model.StateAwaitingPairing,
					PairingCode: ev.PairingCode,
					Handle:      handle,
					Attempt:     attempt,
				})
				s.logger.Info("pairing code issued, waiting for scan")

			case driven.EventOpened:
				opened = true
				s.publish(Snapshot{State: model.StateOpen, Handle: handle})
				s.logger.Info("session open")

			case driven.EventCredentialsUpdated:
				// Write through before processing further events so a crash
				// cannot roll back to stale credentials.
				if err := s.creds.Save(ctx, ev.Credentials); err != nil {
					s.logger.Error("persist credentials", "error", err)
				}

			case driven.EventMessage:
				s.relay.Dispatch(ctx, ev.Message)

			case driven.EventClosed:
				_ = handle.Close()
				// Readiness flips false and the pairing code is cleared
				// before any retry begins; callers never see stale state.
				if ev.Reason.Transient() {
					s.publish(Snapshot{State: model.StateReconnecting, Attempt: attempt})
				} else {
					s.publish(Snapshot{State: model.StateLoggedOut})
				}
				s.logger.Info("connection closed", "reason", ev.Reason.String())
				return ev.Reason, opened, nil
			}
		}
	}
}
