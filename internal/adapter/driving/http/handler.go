// Package httphandler is the HTTP driving adapter exposing the adapter's
// stateless API: health, pairing surface, and the authenticated send
// endpoints.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/clinicops/wa-adapter/internal/application"
	"github.com/clinicops/wa-adapter/internal/domain/model"
)

// Handler serves the adapter's HTTP surface.
type Handler struct {
	session application.SessionReader
	gateway *application.Gateway
	logger  *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(session application.SessionReader, gateway *application.Gateway, logger *slog.Logger) *Handler {
	return &Handler{
		session: session,
		gateway: gateway,
		logger:  logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware. The send endpoints additionally
// require the shared secret; /health and /qr are operator-facing and open.
func NewServeMux(h *Handler, secret string, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /qr", h.QR)
	mux.Handle("POST /send/text", authMiddleware(secret, http.HandlerFunc(h.SendText)))
	mux.Handle("POST /send/buttons", authMiddleware(secret, http.HandlerFunc(h.SendButtons)))

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health reports process liveness and session readiness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	snap := h.session.Snapshot()
	writeJSON(w, http.StatusOK, HealthResponse{
		OK:    true,
		Ready: snap.Ready(),
		State: snap.State.String(),
	})
}

// SendText handles POST /send/text.
func (h *Handler) SendText(w http.ResponseWriter, r *http.Request) {
	var req SendTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	err := h.gateway.SendText(r.Context(), model.TextSend{To: req.To, Text: req.Text})
	if err != nil {
		h.writeSendError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// SendButtons handles POST /send/buttons.
func (h *Handler) SendButtons(w http.ResponseWriter, r *http.Request) {
	var req SendButtonsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	err := h.gateway.SendButtons(r.Context(), model.ButtonsSend{
		To:       req.To,
		Header:   req.Header,
		Body:     req.Body,
		Footer:   req.Footer,
		YesID:    req.YesID,
		YesTitle: req.YesTitle,
		NoID:     req.NoID,
		NoTitle:  req.NoTitle,
	})
	if err != nil {
		h.writeSendError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// writeSendError maps gateway errors onto the status-code contract. Callers
// only ever see the coarse reason, never state-machine internals.
func (h *Handler) writeSendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, "not_ready")
	case errors.Is(err, application.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, application.ErrTransportSend):
		writeError(w, http.StatusBadGateway, "send failed")
	default:
		h.logger.Error("send failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
