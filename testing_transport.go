package rews

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

// fakeTransport is a scripted transport for tests. It records every payload
// handed to it and exposes helpers to drive the server side of the
// connection: pushing messages, raising errors, closing.
type fakeTransport struct {
	mu      sync.Mutex
	signals TransportSignals
	openErr error
	sendErr error
	opened  bool
	closed  bool
	sent    []Message
}

func (f *fakeTransport) Open(context.Context) error {
	f.mu.Lock()
	if f.openErr != nil {
		err := f.openErr
		f.mu.Unlock()
		return err
	}
	f.opened = true
	f.mu.Unlock()

	f.signals.OnOpen()
	return nil
}

func (f *fakeTransport) Send(m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.opened {
		return ErrNotOpen
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeTransport) Close(code int, reason string) {
	f.drop(code, reason)
}

func (f *fakeTransport) Terminate() {
	f.drop(1006, "terminated")
}

func (f *fakeTransport) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.opened
}

// drop moves the transport to the closed state and fires OnClose once. A
// transport that never opened signals nothing.
func (f *fakeTransport) drop(code int, reason string) {
	f.mu.Lock()
	if f.closed || !f.opened {
		f.closed = true
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.opened = false
	f.mu.Unlock()

	f.signals.OnClose(code, reason)
}

// serverClose simulates the remote endpoint closing the connection.
func (f *fakeTransport) serverClose(code int, reason string) {
	f.drop(code, reason)
}

// serverMessage simulates a payload delivered by the remote endpoint.
func (f *fakeTransport) serverMessage(m Message) {
	f.signals.OnMessage(m)
}

// serverError simulates the transport reporting an error.
func (f *fakeTransport) serverError(err error) {
	f.signals.OnError(err)
}

func (f *fakeTransport) setSendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sendErr = err
}

func (f *fakeTransport) sentMessages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Message, len(f.sent))
	copy(out, f.sent)
	return out
}

// fakeTransportFactory hands out fakeTransports and remembers every one it
// created, so tests can inspect superseded handles. openErrs are consumed
// in order by successive transports; alwaysFailOpen makes every attempt
// fail.
type fakeTransportFactory struct {
	mu             sync.Mutex
	openErrs       []error
	alwaysFailOpen bool
	created        []*fakeTransport
}

func (f *fakeTransportFactory) factory(signals TransportSignals) Transport {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTransport{signals: signals}
	if f.alwaysFailOpen {
		t.openErr = ErrCannotConnect
	} else if len(f.openErrs) > 0 {
		t.openErr = f.openErrs[0]
		f.openErrs = f.openErrs[1:]
	}
	f.created = append(f.created, t)
	return t
}

func (f *fakeTransportFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.created)
}

func (f *fakeTransportFactory) transport(i int) *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.created[i]
}

func (f *fakeTransportFactory) last() *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.created[len(f.created)-1]
}

// mockTransport is a testify-backed Transport mock for expectation-style
// tests.
type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Open(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockTransport) Send(msg Message) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *mockTransport) Close(code int, reason string) {
	m.Called(code, reason)
}

func (m *mockTransport) Terminate() {
	m.Called()
}

func (m *mockTransport) IsOpen() bool {
	args := m.Called()
	return args.Bool(0)
}
