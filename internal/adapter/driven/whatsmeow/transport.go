// Package whatsmeow is the driven adapter implementing the transport port
// over the whatsmeow multi-device WhatsApp library. It owns the mapping from
// whatsmeow's callback events to the ordered event stream the supervisor
// consumes, and keeps whatsmeow's own reconnect logic disabled so the
// supervisor is the single authority on retry policy.
package whatsmeow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	wa "go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/clinicops/wa-adapter/internal/domain/model"
	"github.com/clinicops/wa-adapter/internal/domain/port/driven"
)

// eventBuffer bounds the handle's event channel. Message events are dropped
// when the buffer is full so whatsmeow's dispatch goroutine is never blocked
// by a slow supervisor; lifecycle events wait for a slot instead, since a
// lost closure would strand the supervisor on a dead connection.
const eventBuffer = 64

// Compile-time interface satisfaction checks.
var (
	_ driven.Transport = (*Transport)(nil)
	_ driven.Handle    = (*handle)(nil)
)

// Transport opens WhatsApp sessions backed by a whatsmeow sqlstore container.
// The opaque credential blob is the paired device JID; the device's session
// keys live in the container's own tables.
type Transport struct {
	container *sqlstore.Container
	logger    *slog.Logger
}

// NewTransport opens the whatsmeow session container on the given SQLite DSN
// (shared with the adapter's credential store) and upgrades its schema.
func NewTransport(ctx context.Context, dsn string, logger *slog.Logger) (*Transport, error) {
	container, err := sqlstore.New(ctx, "sqlite", dsn, waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("open session container: %w", err)
	}
	return &Transport{container: container, logger: logger}, nil
}

// Close releases the session container.
func (t *Transport) Close() error {
	return t.container.Close()
}

// Connect resolves the device named by the credential blob (or creates a
// fresh unpaired device when the blob is nil) and starts a connection. A blob
// that does not parse as a JID or names a device the container no longer
// holds is reported as ErrCredentialCorruption.
func (t *Transport) Connect(ctx context.Context, credentials []byte) (driven.Handle, error) {
	device, err := t.resolveDevice(ctx, credentials)
	if err != nil {
		return nil, err
	}

	client := wa.NewClient(device, waLog.Noop)
	// The supervisor owns reconnection; whatsmeow must not race it.
	client.EnableAutoReconnect = false

	h := &handle{
		client: client,
		events: make(chan driven.Event, eventBuffer),
		done:   make(chan struct{}),
		logger: t.logger,
	}
	h.handlerID = client.AddEventHandler(h.handleEvent)

	if device.ID == nil {
		// Unpaired device: surface pairing codes before connecting.
		qrChan, err := client.GetQRChannel(ctx)
		if err != nil {
			client.RemoveEventHandler(h.handlerID)
			return nil, fmt.Errorf("open pairing channel: %w", err)
		}
		go h.pumpQR(qrChan)
	}

	if err := client.Connect(); err != nil {
		client.RemoveEventHandler(h.handlerID)
		return nil, fmt.Errorf("connect: %w", err)
	}

	return h, nil
}

func (t *Transport) resolveDevice(ctx context.Context, credentials []byte) (*store.Device, error) {
	if len(credentials) == 0 {
		return t.container.NewDevice(), nil
	}

	jid, err := types.ParseJID(string(credentials))
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable device jid: %v", driven.ErrCredentialCorruption, err)
	}

	device, err := t.container.GetDevice(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("load device %s: %w", jid, err)
	}
	if device == nil {
		return nil, fmt.Errorf("%w: device %s missing from session container", driven.ErrCredentialCorruption, jid)
	}
	return device, nil
}

// handle is one live connection instance.
type handle struct {
	client    *wa.Client
	events    chan driven.Event
	handlerID uint32
	logger    *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// Events returns the ordered event stream for this connection instance.
func (h *handle) Events() <-chan driven.Event {
	return h.events
}

// SendText sends a plain-text message.
func (h *handle) SendText(ctx context.Context, jid, text string) error {
	to, err := types.ParseJID(jid)
	if err != nil {
		return fmt.Errorf("parse jid %q: %w", jid, err)
	}
	_, err = h.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

// SendButtons sends an interactive message with yes/no reply buttons.
func (h *handle) SendButtons(ctx context.Context, jid string, msg model.ButtonsSend) error {
	to, err := types.ParseJID(jid)
	if err != nil {
		return fmt.Errorf("parse jid %q: %w", jid, err)
	}

	buttons := &waE2E.ButtonsMessage{
		ContentText: proto.String(msg.Body),
		HeaderType:  waE2E.ButtonsMessage_EMPTY.Enum(),
		Buttons: []*waE2E.ButtonsMessage_Button{
			{
				ButtonID:   proto.String(msg.YesID),
				ButtonText: &waE2E.ButtonsMessage_Button_ButtonText{DisplayText: proto.String(msg.YesTitle)},
				Type:       waE2E.ButtonsMessage_Button_RESPONSE.Enum(),
			},
			{
				ButtonID:   proto.String(msg.NoID),
				ButtonText: &waE2E.ButtonsMessage_Button_ButtonText{DisplayText: proto.String(msg.NoTitle)},
				Type:       waE2E.ButtonsMessage_Button_RESPONSE.Enum(),
			},
		},
	}
	if msg.Header != "" {
		buttons.Header = &waE2E.ButtonsMessage_Text{Text: msg.Header}
		buttons.HeaderType = waE2E.ButtonsMessage_TEXT.Enum()
	}
	if msg.Footer != "" {
		buttons.FooterText = proto.String(msg.Footer)
	}

	_, err = h.client.SendMessage(ctx, to, &waE2E.Message{ButtonsMessage: buttons})
	if err != nil {
		return fmt.Errorf("send buttons: %w", err)
	}
	return nil
}

// Close tears down the connection and releases any emitter still waiting for
// a buffer slot. Safe to call more than once. The event channel is left open;
// the supervisor stops reading after the closure event it acted on.
func (h *handle) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)
		h.client.RemoveEventHandler(h.handlerID)
		h.client.Disconnect()
	})
	return nil
}

// emit publishes one message event without ever blocking whatsmeow's
// dispatcher. When the buffer is full the event is dropped.
func (h *handle) emit(ev driven.Event) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.events <- ev:
	default:
		h.logger.Warn("transport event buffer full, dropping event", "kind", ev.Kind)
	}
}

// emitWait publishes one lifecycle event, waiting for a buffer slot if it
// must. Lifecycle events are never dropped; Close unblocks any waiter.
func (h *handle) emitWait(ev driven.Event) {
	select {
	case h.events <- ev:
	case <-h.done:
	}
}

// handleEvent maps whatsmeow callback events onto the port's tagged union.
func (h *handle) handleEvent(evt any) {
	switch v := evt.(type) {
	case *events.Connected:
		h.emitWait(driven.Event{Kind: driven.EventOpened})

	case *events.PairSuccess:
		// Persist the paired device JID as the opaque credential blob.
		h.emitWait(driven.Event{
			Kind:        driven.EventCredentialsUpdated,
			Credentials: []byte(v.ID.String()),
		})

	case *events.LoggedOut:
		h.emitWait(driven.Event{Kind: driven.EventClosed, Reason: driven.CloseLoggedOut})

	case *events.StreamReplaced:
		h.emitWait(driven.Event{Kind: driven.EventClosed, Reason: driven.CloseStreamReplaced})

	case *events.Disconnected:
		h.emitWait(driven.Event{Kind: driven.EventClosed, Reason: driven.CloseNetwork})

	case *events.Message:
		h.emit(driven.Event{
			Kind:    driven.EventMessage,
			Message: rawMessage(v),
		})
	}
}

// pumpQR forwards pairing codes from whatsmeow's QR channel. Non-code items
// (timeout, success) end the pairing flow and are reported through the
// regular event stream, so they are only logged here.
func (h *handle) pumpQR(qrChan <-chan wa.QRChannelItem) {
	for item := range qrChan {
		if item.Event == "code" {
			h.emitWait(driven.Event{Kind: driven.EventPairingCode, PairingCode: item.Code})
			continue
		}
		h.logger.Info("pairing channel event", "event", item.Event)
	}
}

// rawMessage flattens a whatsmeow message event into the port's raw shape.
// Kinds other than extractable text are labeled by their protobuf content and
// dropped by the relay.
func rawMessage(v *events.Message) driven.RawMessage {
	raw := driven.RawMessage{
		From:      v.Info.Sender.ToNonAD().String(),
		FromSelf:  v.Info.IsFromMe,
		Kind:      "unsupported",
		Timestamp: v.Info.Timestamp.Unix(),
	}
	if text := extractText(v.Message); text != "" {
		raw.Kind = model.MessageTypeText
		raw.Text = text
	}
	return raw
}

// extractText pulls the text body out of the two plain-text encodings.
func extractText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if text := msg.GetConversation(); text != "" {
		return text
	}
	return msg.GetExtendedTextMessage().GetText()
}
