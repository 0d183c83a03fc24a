package application

import (
	"context"
	"sync"

	"github.com/clinicops/wa-adapter/internal/domain/model"
	"github.com/clinicops/wa-adapter/internal/domain/port/driven"
)

// --- Shared fakes for supervisor, gateway, and relay tests ---

// fakeHandle is a scriptable transport connection.
type fakeHandle struct {
	events chan driven.Event

	mu         sync.Mutex
	textSends  []textCall
	buttonSend []model.ButtonsSend
	sendErr    error
	closeCount int
}

type textCall struct {
	jid  string
	text string
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{events: make(chan driven.Event, 16)}
}

func (h *fakeHandle) Events() <-chan driven.Event { return h.events }

func (h *fakeHandle) SendText(_ context.Context, jid, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sendErr != nil {
		return h.sendErr
	}
	h.textSends = append(h.textSends, textCall{jid: jid, text: text})
	return nil
}

func (h *fakeHandle) SendButtons(_ context.Context, jid string, msg model.ButtonsSend) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sendErr != nil {
		return h.sendErr
	}
	msg.To = jid
	h.buttonSend = append(h.buttonSend, msg)
	return nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeCount++
	return nil
}

func (h *fakeHandle) emit(ev driven.Event) {
	h.events <- ev
}

func (h *fakeHandle) sentTexts() []textCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]textCall(nil), h.textSends...)
}

func (h *fakeHandle) sentButtons() []model.ButtonsSend {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.ButtonsSend(nil), h.buttonSend...)
}

// fakeTransport hands out a fresh fakeHandle per connect, optionally failing
// scripted attempts first.
type fakeTransport struct {
	mu          sync.Mutex
	connectErrs []error // consumed one per Connect; nil entry means success
	handles     []*fakeHandle
	credsSeen   [][]byte
}

func (t *fakeTransport) Connect(_ context.Context, credentials []byte) (driven.Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credsSeen = append(t.credsSeen, credentials)
	if len(t.connectErrs) > 0 {
		err := t.connectErrs[0]
		t.connectErrs = t.connectErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	h := newFakeHandle()
	t.handles = append(t.handles, h)
	return h, nil
}

func (t *fakeTransport) connects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.credsSeen)
}

func (t *fakeTransport) handle(i int) *fakeHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i >= len(t.handles) {
		return nil
	}
	return t.handles[i]
}

// memStore is an in-memory credential store.
type memStore struct {
	mu        sync.Mutex
	blob      []byte
	saves     int
	deletes   int
	loadErr   error
	deleteErr error
}

func (s *memStore) Load(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.blob, nil
}

func (s *memStore) Save(_ context.Context, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blob = append([]byte(nil), blob...)
	s.saves++
	return nil
}

func (s *memStore) Delete(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	// Wiping removes the undecryptable row, so subsequent loads succeed.
	s.blob = nil
	s.loadErr = nil
	return nil
}

func (s *memStore) deleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes
}

func (s *memStore) current() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.blob...)
}

// fakeSession is a static SessionReader for gateway tests.
type fakeSession struct {
	snap Snapshot
}

func (f *fakeSession) Snapshot() Snapshot { return f.snap }

// recordSink captures relay deliveries.
type recordSink struct {
	mu        sync.Mutex
	delivered []model.InboundMessage
	err       error
}

func (s *recordSink) Name() string { return "record" }

func (s *recordSink) Deliver(_ context.Context, msg model.InboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, msg)
	return s.err
}

func (s *recordSink) messages() []model.InboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.InboundMessage(nil), s.delivered...)
}
