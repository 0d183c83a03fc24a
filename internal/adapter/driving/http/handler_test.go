package httphandler_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/clinicops/wa-adapter/internal/adapter/driving/http"
	"github.com/clinicops/wa-adapter/internal/application"
	"github.com/clinicops/wa-adapter/internal/domain/model"
	"github.com/clinicops/wa-adapter/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockSession struct {
	snap application.Snapshot
}

func (m *mockSession) Snapshot() application.Snapshot { return m.snap }

type mockHandle struct {
	mu      sync.Mutex
	texts   []string
	jids    []string
	buttons []model.ButtonsSend
	sendErr error
}

func (m *mockHandle) Events() <-chan driven.Event { return nil }

func (m *mockHandle) SendText(_ context.Context, jid, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.jids = append(m.jids, jid)
	m.texts = append(m.texts, text)
	return nil
}

func (m *mockHandle) SendButtons(_ context.Context, jid string, msg model.ButtonsSend) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	msg.To = jid
	m.buttons = append(m.buttons, msg)
	return nil
}

func (m *mockHandle) Close() error { return nil }

func (m *mockHandle) sendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.texts) + len(m.buttons)
}

// --- Test helpers ---

const testSecret = "s3cret"

func setupMux(t *testing.T, snap application.Snapshot) http.Handler {
	t.Helper()
	session := &mockSession{snap: snap}
	gateway := application.NewGateway(session, time.Second, "כן", "לא", slog.Default())
	h := httphandler.NewHandler(session, gateway, slog.Default())
	return httphandler.NewServeMux(h, testSecret, slog.Default())
}

func openSnapshot(handle *mockHandle) application.Snapshot {
	return application.Snapshot{State: model.StateOpen, Handle: handle}
}

func doJSON(t *testing.T, mux http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Token", token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestHealth(t *testing.T) {
	mux := setupMux(t, application.Snapshot{State: model.StateConnecting})

	rec := doJSON(t, mux, http.MethodGet, "/health", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, false, resp["ready"])
	assert.Equal(t, "connecting", resp["state"])
}

func TestHealth_Ready(t *testing.T) {
	mux := setupMux(t, openSnapshot(&mockHandle{}))

	rec := doJSON(t, mux, http.MethodGet, "/health", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready":true`)
}

func TestQR_JSONLoggedIn(t *testing.T) {
	mux := setupMux(t, openSnapshot(&mockHandle{}))

	req := httptest.NewRequest(http.MethodGet, "/qr", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp httphandler.QRResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.LoggedIn)
	assert.Nil(t, resp.QR)
}

func TestQR_JSONPairingCode(t *testing.T) {
	mux := setupMux(t, application.Snapshot{
		State:       model.StateAwaitingPairing,
		PairingCode: "2@pairing-code-payload",
	})

	req := httptest.NewRequest(http.MethodGet, "/qr", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp httphandler.QRResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.LoggedIn)
	require.NotNil(t, resp.QR)
	assert.Equal(t, "2@pairing-code-payload", *resp.QR)
}

func TestQR_HTMLPairingCode(t *testing.T) {
	mux := setupMux(t, application.Snapshot{
		State:       model.StateAwaitingPairing,
		PairingCode: "2@pairing-code-payload",
	})

	rec := doJSON(t, mux, http.MethodGet, "/qr", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "data:image/png;base64,")
}

func TestQR_UnavailableBeforeFirstCode(t *testing.T) {
	mux := setupMux(t, application.Snapshot{State: model.StateConnecting})

	rec := doJSON(t, mux, http.MethodGet, "/qr", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/qr", nil)
	req.Header.Set("Accept", "application/json")
	jsonRec := httptest.NewRecorder()
	mux.ServeHTTP(jsonRec, req)
	assert.Equal(t, http.StatusServiceUnavailable, jsonRec.Code)
}

func TestSendText_Unauthorized(t *testing.T) {
	handle := &mockHandle{}
	mux := setupMux(t, openSnapshot(handle))

	missing := doJSON(t, mux, http.MethodPost, "/send/text", "", `{"to":"0501234567","text":"hi"}`)
	wrong := doJSON(t, mux, http.MethodPost, "/send/text", "nope", `{"to":"0501234567","text":"hi"}`)

	assert.Equal(t, http.StatusUnauthorized, missing.Code)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Zero(t, handle.sendCount(), "auth failures must never reach the transport")
}

func TestSendButtons_Unauthorized(t *testing.T) {
	handle := &mockHandle{}
	mux := setupMux(t, openSnapshot(handle))

	rec := doJSON(t, mux, http.MethodPost, "/send/buttons", "nope",
		`{"to":"0501234567","body":"b","yes_id":"y","no_id":"n"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, handle.sendCount())
}

func TestSendText_NotReady(t *testing.T) {
	mux := setupMux(t, application.Snapshot{State: model.StateLoggedOut})

	rec := doJSON(t, mux, http.MethodPost, "/send/text", testSecret, `{"to":"0501234567","text":"hi"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_ready")
}

func TestSendText_MissingFields(t *testing.T) {
	handle := &mockHandle{}
	mux := setupMux(t, openSnapshot(handle))

	noTo := doJSON(t, mux, http.MethodPost, "/send/text", testSecret, `{"text":"hi"}`)
	noText := doJSON(t, mux, http.MethodPost, "/send/text", testSecret, `{"to":"0501234567"}`)
	badJSON := doJSON(t, mux, http.MethodPost, "/send/text", testSecret, `{`)

	assert.Equal(t, http.StatusBadRequest, noTo.Code)
	assert.Equal(t, http.StatusBadRequest, noText.Code)
	assert.Equal(t, http.StatusBadRequest, badJSON.Code)
	assert.Zero(t, handle.sendCount())
}

func TestSendText_Success(t *testing.T) {
	handle := &mockHandle{}
	mux := setupMux(t, openSnapshot(handle))

	rec := doJSON(t, mux, http.MethodPost, "/send/text", testSecret, `{"to":"0501234567","text":"hi"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	require.Len(t, handle.jids, 1)
	assert.Equal(t, "0501234567@s.whatsapp.net", handle.jids[0])
	assert.Equal(t, "hi", handle.texts[0])
}

func TestSendText_TransportFailure(t *testing.T) {
	handle := &mockHandle{sendErr: assert.AnError}
	mux := setupMux(t, openSnapshot(handle))

	rec := doJSON(t, mux, http.MethodPost, "/send/text", testSecret, `{"to":"0501234567","text":"hi"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSendButtons_MissingFields(t *testing.T) {
	handle := &mockHandle{}
	mux := setupMux(t, openSnapshot(handle))

	cases := []string{
		`{"body":"b","yes_id":"y","no_id":"n"}`,
		`{"to":"0501234567","yes_id":"y","no_id":"n"}`,
		`{"to":"0501234567","body":"b","no_id":"n"}`,
		`{"to":"0501234567","body":"b","yes_id":"y"}`,
	}
	for _, body := range cases {
		rec := doJSON(t, mux, http.MethodPost, "/send/buttons", testSecret, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %s", body)
	}
	assert.Zero(t, handle.sendCount())
}

func TestSendButtons_Success(t *testing.T) {
	handle := &mockHandle{}
	mux := setupMux(t, openSnapshot(handle))

	rec := doJSON(t, mux, http.MethodPost, "/send/buttons", testSecret,
		`{"to":"0501234567","header":"Reminder","body":"send it?","yes_id":"yes_1","no_id":"no_1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	require.Len(t, handle.buttons, 1)
	sent := handle.buttons[0]
	assert.Equal(t, "0501234567@s.whatsapp.net", sent.To)
	assert.Equal(t, "Reminder", sent.Header)
	assert.Equal(t, "כן", sent.YesTitle, "omitted titles default to locale labels")
	assert.Equal(t, "לא", sent.NoTitle)
}
