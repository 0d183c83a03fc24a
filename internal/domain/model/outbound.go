package model

// TextSend is an outbound plain-text message request.
type TextSend struct {
	To   string
	Text string
}

// ButtonsSend is an outbound interactive message with a yes/no reply-button
// pair. Header and Footer are optional; empty titles are filled with the
// configured locale labels before dispatch.
type ButtonsSend struct {
	To       string
	Header   string
	Body     string
	Footer   string
	YesID    string
	YesTitle string
	NoID     string
	NoTitle  string
}
