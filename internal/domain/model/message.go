package model

// MessageTypeText is the only inbound message kind forwarded downstream.
// All other kinds are recognized and dropped.
const MessageTypeText = "text"

// InboundMessage is a normalized incoming message, constructed from a raw
// transport event, forwarded once, then discarded. No history is retained.
type InboundMessage struct {
	From      string `json:"from"`
	Type      string `json:"type"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}
