package rews

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	awaitTimeout = 2 * time.Second
	awaitTick    = 2 * time.Millisecond
)

// eventRecorder collects emitted events so tests can assert on kind order
// and payloads.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) handler() Handler {
	return func(ev Event) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
	}
}

func (r *eventRecorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *eventRecorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *eventRecorder) last(kind EventKind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return Event{}, false
}

func payloads(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m.Data())
	}
	return out
}

func TestOpenEmitsOpenEvent(t *testing.T) {
	factory := &fakeTransportFactory{}
	rec := &eventRecorder{}

	c := New(factory.factory, Config{ReconnectInterval: 10 * time.Millisecond})
	c.On(EventOpen, rec.handler())

	require.NoError(t, c.Open(context.Background()))
	require.Equal(t, 1, rec.count(EventOpen))

	require.ErrorIs(t, c.Open(context.Background()), ErrAlreadyOpen)
}

func TestOpenAfterTerminate(t *testing.T) {
	factory := &fakeTransportFactory{}

	c := New(factory.factory, Config{})
	c.Terminate()

	require.ErrorIs(t, c.Open(context.Background()), ErrTerminated)
	require.Zero(t, factory.count())
}

func TestMessagesForwardedVerbatim(t *testing.T) {
	factory := &fakeTransportFactory{}
	rec := &eventRecorder{}

	c := New(factory.factory, Config{})
	c.On(EventMessage, rec.handler())

	require.NoError(t, c.Open(context.Background()))

	factory.last().serverMessage(NewTextMessage([]byte("hello")))

	require.Equal(t, 1, rec.count(EventMessage))
	ev, ok := rec.last(EventMessage)
	require.True(t, ok)
	require.Equal(t, "hello", string(ev.Message.Data()))
}

func TestSendWhileOpen(t *testing.T) {
	factory := &fakeTransportFactory{}

	c := New(factory.factory, Config{})
	require.NoError(t, c.Open(context.Background()))

	c.Send(NewTextMessage([]byte("hi")))

	require.Equal(t, []string{"hi"}, payloads(factory.last().sentMessages()))
	require.Zero(t, c.queue.size())
}

func TestQueuedMessagesResentInOrder(t *testing.T) {
	factory := &fakeTransportFactory{openErrs: []error{ErrCannotConnect}}

	c := New(factory.factory, Config{
		ReconnectInterval: 10 * time.Millisecond,
		ResendOnReconnect: true,
	})
	require.NoError(t, c.Open(context.Background()))

	// The initial dial failed, so these buffer in the outbound queue.
	c.Send(NewTextMessage([]byte("A")))
	c.Send(NewTextMessage([]byte("B")))
	require.Equal(t, 2, c.queue.size())

	require.Eventually(t, func() bool {
		return factory.count() == 2 && len(factory.transport(1).sentMessages()) == 2
	}, awaitTimeout, awaitTick)

	require.Equal(t, []string{"A", "B"}, payloads(factory.transport(1).sentMessages()))

	// Exactly once: nothing more shows up later.
	time.Sleep(30 * time.Millisecond)
	require.Len(t, factory.transport(1).sentMessages(), 2)
	require.Zero(t, c.queue.size())
}

func TestTrySendWhileDisconnectedDrops(t *testing.T) {
	factory := &fakeTransportFactory{openErrs: []error{ErrCannotConnect}}

	c := New(factory.factory, Config{
		ReconnectInterval: 10 * time.Millisecond,
		ResendOnReconnect: true,
	})
	require.NoError(t, c.Open(context.Background()))

	c.TrySend(NewTextMessage([]byte("X")))
	require.Zero(t, c.queue.size())

	require.Eventually(t, func() bool {
		return factory.count() == 2 && factory.transport(1).IsOpen()
	}, awaitTimeout, awaitTick)

	time.Sleep(30 * time.Millisecond)
	require.Empty(t, factory.transport(1).sentMessages())
}

func TestReplayAfterReconnect(t *testing.T) {
	factory := &fakeTransportFactory{}

	c := New(factory.factory, Config{
		ReconnectInterval: 10 * time.Millisecond,
		RepeatAllMessages: true,
	})
	require.NoError(t, c.Open(context.Background()))

	c.Send(NewTextMessage([]byte("X")))
	require.Equal(t, []string{"X"}, payloads(factory.transport(0).sentMessages()))

	factory.transport(0).serverClose(1006, "boom")

	require.Eventually(t, func() bool {
		return factory.count() == 2 && len(factory.transport(1).sentMessages()) == 1
	}, awaitTimeout, awaitTick)

	require.Equal(t, []string{"X"}, payloads(factory.transport(1).sentMessages()))

	// One replay pass only.
	time.Sleep(30 * time.Millisecond)
	require.Len(t, factory.transport(1).sentMessages(), 1)
}

func TestFlushPrecedesReplay(t *testing.T) {
	factory := &fakeTransportFactory{}

	c := New(factory.factory, Config{
		ReconnectInterval: 20 * time.Millisecond,
		ResendOnReconnect: true,
		RepeatAllMessages: true,
	})
	require.NoError(t, c.Open(context.Background()))

	c.Send(NewTextMessage([]byte("X")))
	factory.transport(0).serverClose(1001, "going away")

	// Buffered while disconnected; must go out before the replay pass.
	c.Send(NewTextMessage([]byte("Q")))

	require.Eventually(t, func() bool {
		return factory.count() == 2 && len(factory.transport(1).sentMessages()) == 3
	}, awaitTimeout, awaitTick)

	// Flush resends Q first; the replay snapshot is taken after the flush,
	// so it carries X and the freshly flushed Q. No deduplication.
	require.Equal(t, []string{"Q", "X", "Q"}, payloads(factory.transport(1).sentMessages()))
}

func TestRetryCapTerminalStop(t *testing.T) {
	factory := &fakeTransportFactory{alwaysFailOpen: true}

	c := New(factory.factory, Config{
		ReconnectInterval: 5 * time.Millisecond,
		MaxRetries:        2,
		Logger:            NewWriterLogger(io.Discard),
	})
	require.NoError(t, c.Open(context.Background()))

	// Initial attempt plus exactly two retries.
	require.Eventually(t, func() bool {
		return factory.count() == 3
	}, awaitTimeout, awaitTick)

	select {
	case <-c.CloseChan():
	case <-time.After(awaitTimeout):
		t.Fatal("client never reached terminal state")
	}

	// No third retry ever fires.
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 3, factory.count())
	require.Equal(t, 2, c.scheduler.attempts())
	require.True(t, c.scheduler.exhausted())
}

func TestRetryCounterResetsOnOpen(t *testing.T) {
	factory := &fakeTransportFactory{}

	c := New(factory.factory, Config{
		ReconnectInterval: 5 * time.Millisecond,
		MaxRetries:        1,
	})
	require.NoError(t, c.Open(context.Background()))
	require.Zero(t, c.scheduler.attempts())

	// Each successful open resets the counter, so a single-retry budget
	// survives any number of open/close cycles.
	for i := 0; i < 2; i++ {
		factory.last().serverClose(1006, "boom")
		want := i + 2
		require.Eventually(t, func() bool {
			return factory.count() == want && factory.last().IsOpen()
		}, awaitTimeout, awaitTick)
		require.Zero(t, c.scheduler.attempts())
	}
}

func TestErrorForcesCloseAndReconnect(t *testing.T) {
	factory := &fakeTransportFactory{}
	rec := &eventRecorder{}

	c := New(factory.factory, Config{ReconnectInterval: 5 * time.Millisecond})
	c.On(EventError, rec.handler())
	c.On(EventClose, rec.handler())

	require.NoError(t, c.Open(context.Background()))

	boom := errors.New("broken pipe")
	factory.transport(0).serverError(boom)

	require.Eventually(t, func() bool {
		return factory.count() == 2
	}, awaitTimeout, awaitTick)

	require.Equal(t, []EventKind{EventError, EventClose}, rec.kinds())
	ev, ok := rec.last(EventError)
	require.True(t, ok)
	require.ErrorIs(t, ev.Err, boom)
}

func TestCallerCloseStillReconnects(t *testing.T) {
	factory := &fakeTransportFactory{}
	rec := &eventRecorder{}

	c := New(factory.factory, Config{ReconnectInterval: 5 * time.Millisecond})
	c.On(EventClose, rec.handler())

	require.NoError(t, c.Open(context.Background()))

	c.Close(1000, "bye")

	require.Eventually(t, func() bool {
		return factory.count() == 2
	}, awaitTimeout, awaitTick)

	ev, ok := rec.last(EventClose)
	require.True(t, ok)
	require.Equal(t, 1000, ev.Code)
	require.Equal(t, "bye", ev.Reason)
}

func TestSendFailureNotRequeued(t *testing.T) {
	factory := &fakeTransportFactory{}

	c := New(factory.factory, Config{RepeatAllMessages: true})
	require.NoError(t, c.Open(context.Background()))

	factory.transport(0).setSendErr(errors.New("write: broken pipe"))

	c.Send(NewTextMessage([]byte("X")))

	require.Zero(t, c.queue.size())
	require.Zero(t, c.sent.size())
	require.Empty(t, factory.transport(0).sentMessages())
}

func TestTerminateClearsQueueAndSentLog(t *testing.T) {
	factory := &fakeTransportFactory{openErrs: []error{ErrCannotConnect}}

	c := New(factory.factory, Config{
		ReconnectInterval: 50 * time.Millisecond,
		ResendOnReconnect: true,
		RepeatAllMessages: true,
	})
	require.NoError(t, c.Open(context.Background()))

	c.Send(NewTextMessage([]byte("A")))
	require.Equal(t, 1, c.queue.size())

	c.Terminate()

	require.Zero(t, c.queue.size())
	require.Zero(t, c.sent.size())

	select {
	case <-c.CloseChan():
	default:
		t.Fatal("CloseChan not closed after Terminate")
	}

	// The pending reconnect was cancelled: no new transport appears.
	time.Sleep(80 * time.Millisecond)
	require.Equal(t, 1, factory.count())
}

func TestTerminateWhileOpen(t *testing.T) {
	factory := &fakeTransportFactory{}

	c := New(factory.factory, Config{ReconnectInterval: 5 * time.Millisecond})
	require.NoError(t, c.Open(context.Background()))

	c.Terminate()

	require.False(t, factory.transport(0).IsOpen())

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 1, factory.count())

	// Idempotent.
	c.Terminate()
}

func TestNoopTransportQueuesEverything(t *testing.T) {
	c := New(NewNoopTransportFactory(), Config{})
	require.NoError(t, c.Open(context.Background()))

	// The noop transport never reaches the open state, so sends buffer.
	c.Send(NewTextMessage([]byte("A")))
	require.Equal(t, 1, c.queue.size())
}

func TestMockTransportGracefulClose(t *testing.T) {
	mt := &mockTransport{}
	mt.On("Open", mock.Anything).Return(nil)
	mt.On("Close", 1000, "done").Return().Once()

	c := New(func(TransportSignals) Transport { return mt }, Config{})
	require.NoError(t, c.Open(context.Background()))

	c.Close(1000, "done")

	mt.AssertExpectations(t)
}

func TestNewWebsocketAddressValidation(t *testing.T) {
	_, err := NewWebsocket("ws://example.com/%zz", Config{})
	require.Error(t, err)

	c, err := NewWebsocket("ws://example.com/stream", Config{})
	require.NoError(t, err)
	require.NotNil(t, c)
}
