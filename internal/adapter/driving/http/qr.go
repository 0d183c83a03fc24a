package httphandler

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const qrImageSize = 300

const qrConnectedHTML = `<!DOCTYPE html>
<html>
<body style="text-align: center; font-family: Arial;">
<h2>WhatsApp is already connected</h2>
<p>No need to scan a QR code.</p>
</body>
</html>
`

const qrUnavailableHTML = `<!DOCTYPE html>
<html>
<body style="text-align: center; font-family: Arial;">
<h2>QR code not available</h2>
<p>The adapter is starting up. Wait a moment and refresh.</p>
<button onclick="location.reload()">Refresh</button>
</body>
</html>
`

// qrPageHTML embeds the pairing code as a PNG data URI. Codes are
// time-limited, so the page refreshes itself.
const qrPageHTML = `<!DOCTYPE html>
<html>
<head>
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>WhatsApp QR Code</title>
</head>
<body style="text-align: center; font-family: Arial; padding: 20px;">
<h2>Scan the QR code with WhatsApp</h2>
<p>Open WhatsApp &rarr; Menu &rarr; Linked Devices &rarr; Link a Device</p>
<img src="data:image/png;base64,%s" alt="WhatsApp QR Code" style="max-width: 100%%; height: auto;" />
<br><br>
<button onclick="location.reload()" style="padding: 10px 20px; font-size: 16px;">Refresh</button>
<script>setTimeout(() => location.reload(), 30000);</script>
</body>
</html>
`

// QR handles GET /qr. It is a pure projection of the session snapshot:
// already-connected confirmation, the current pairing code, or 503 when
// neither is available. JSON is served to clients that ask for it; everyone
// else gets an operator-facing HTML page.
func (h *Handler) QR(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	wantsJSON := strings.Contains(r.Header.Get("Accept"), "application/json")

	switch {
	case snap.Ready():
		if wantsJSON {
			writeJSON(w, http.StatusOK, QRResponse{LoggedIn: true})
			return
		}
		writeHTML(w, http.StatusOK, qrConnectedHTML)

	case snap.PairingCode != "":
		if wantsJSON {
			code := snap.PairingCode
			writeJSON(w, http.StatusOK, QRResponse{QR: &code})
			return
		}
		png, err := qrcode.Encode(snap.PairingCode, qrcode.Medium, qrImageSize)
		if err != nil {
			h.logger.Error("render qr image", "error", err)
			writeError(w, http.StatusInternalServerError, "qr render failed")
			return
		}
		page := fmt.Sprintf(qrPageHTML, base64.StdEncoding.EncodeToString(png))
		writeHTML(w, http.StatusOK, page)

	default:
		if wantsJSON {
			writeError(w, http.StatusServiceUnavailable, "qr not available")
			return
		}
		writeHTML(w, http.StatusServiceUnavailable, qrUnavailableHTML)
	}
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
