package httphandler

import (
	"encoding/json"
	"net/http"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// okResponse is the standard success body for send endpoints.
type okResponse struct {
	OK bool `json:"ok"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	OK    bool   `json:"ok"`
	Ready bool   `json:"ready"`
	State string `json:"state"`
}

// QRResponse is the JSON projection of the pairing surface. QR is null
// whenever no pairing code is pending.
type QRResponse struct {
	LoggedIn bool    `json:"loggedIn"`
	QR       *string `json:"qr"`
}

// SendTextRequest is the JSON body for POST /send/text.
type SendTextRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// SendButtonsRequest is the JSON body for POST /send/buttons.
type SendButtonsRequest struct {
	To       string `json:"to"`
	Header   string `json:"header,omitempty"`
	Body     string `json:"body"`
	Footer   string `json:"footer,omitempty"`
	YesID    string `json:"yes_id"`
	YesTitle string `json:"yes_title,omitempty"`
	NoID     string `json:"no_id"`
	NoTitle  string `json:"no_title,omitempty"`
}
