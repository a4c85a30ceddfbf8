package rews

import (
	"context"
	"net/url"
	"sync"

	"github.com/fasthttp/websocket"
)

type (
	// CloseChan signals that a client reached a terminal state: either the
	// caller terminated it or the retry cap was exhausted.
	CloseChan chan struct{}
)

// Client is a reconnecting wrapper around a Transport. It keeps one logical
// connection alive across transport churn: when the underlying connection
// closes it schedules a fresh attempt on a fixed interval, optionally
// resending queued messages and replaying already-delivered ones.
//
// At most one transport is live at a time. All state is serialized under a
// single mutex; events are emitted with the mutex released, so handlers may
// call back into the client.
type Client struct {
	cfg     Config
	logger  Logger
	factory TransportFactory

	dispatcher *Dispatcher[EventKind, Event]
	scheduler  *reconnectScheduler
	queue      *outboundQueue
	sent       *sentLog

	mu         sync.Mutex
	ctx        context.Context
	transport  Transport
	opened     bool
	terminated bool

	doneC    CloseChan
	doneOnce sync.Once
}

// New builds a client on top of an arbitrary transport factory.
func New(factory TransportFactory, cfg Config) *Client {
	cfg = cfg.withDefaults()
	logger := cfg.Logger.WithField("component", "rews_client")

	return &Client{
		cfg:        cfg,
		logger:     logger,
		factory:    factory,
		dispatcher: NewDispatcher[EventKind, Event](logger),
		scheduler:  newReconnectScheduler(logger, cfg.ReconnectInterval, cfg.MaxRetries),
		queue:      newOutboundQueue(),
		sent:       newSentLog(),
		doneC:      make(CloseChan),
	}
}

// NewWebsocket builds a client that dials the given address with the
// default fasthttp websocket dialer. It errors only on an unparsable
// address; dial failures at runtime are routed into reconnect scheduling.
func NewWebsocket(addr string, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}

	paramsRepo := NewStaticConnectionParamsRepo(cfg.Logger, *u, nil)
	factory := NewWebsocketTransportFactory(
		cfg.Logger,
		websocket.DefaultDialer,
		paramsRepo,
		cfg.PingInterval,
	)

	return New(factory, cfg), nil
}

// On registers a handler for the given event kind. Handlers fire in
// registration order; registering the same handler twice makes it fire
// twice. There is no removal.
func (c *Client) On(kind EventKind, handler Handler) {
	c.dispatcher.On(kind, handlerFunc[Event](handler))
}

// Open performs the first connection attempt. A dial failure does not
// propagate: it is treated as an immediate close and handed to the
// reconnect scheduler. Open errors only on misuse.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return ErrTerminated
	}
	if c.opened {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.opened = true
	c.ctx = ctx
	c.mu.Unlock()

	c.connect()

	return nil
}

// Send hands a payload to the transport. While no open transport exists the
// payload is queued for resend; see TrySend for the dropping variant. A
// transport-reported send failure is logged and the payload is not
// requeued: only the absence of an open transport queues.
func (c *Client) Send(m Message) {
	c.send(m, true)
}

// TrySend is Send without queueing: if no open transport exists the payload
// is dropped silently.
func (c *Client) TrySend(m Message) {
	c.send(m, false)
}

// Close requests a graceful shutdown of the current transport. This is a
// caller-initiated action, but the transport's close signal still fires and
// routes into reconnect scheduling; use Terminate to stop for good.
func (c *Client) Close(code int, reason string) {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()

	if t != nil {
		t.Close(code, reason)
	}
}

// Terminate forcibly destroys the transport, clears the outbound queue and
// the sent log, and cancels any pending reconnect. The client is terminal
// afterwards; no resend or replay will ever happen.
func (c *Client) Terminate() {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return
	}
	c.terminated = true
	t := c.transport
	c.queue.clear()
	c.sent.clear()
	c.mu.Unlock()

	c.scheduler.stop()

	if t != nil {
		t.Terminate()
	}

	c.dispatcher.Close()
	c.signalDone()
}

// CloseChan returns a channel closed once the client reaches a terminal
// state: terminated by the caller, or reconnect attempts exhausted.
func (c *Client) CloseChan() CloseChan {
	return c.doneC
}

// connect creates a fresh transport and wires its signals. The new handle
// supersedes the previous one; signals from superseded transports are
// ignored. A creation failure is equivalent to an immediate close and goes
// straight to the scheduler.
func (c *Client) connect() {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return
	}

	var t Transport
	signals := TransportSignals{
		OnOpen:    func() { c.handleOpen(t) },
		OnMessage: func(m Message) { c.handleMessage(t, m) },
		OnClose:   func(code int, reason string) { c.handleClose(t, code, reason) },
		OnError:   func(err error) { c.handleError(t, err) },
	}
	t = c.factory(signals)
	c.transport = t
	ctx := c.ctx
	c.mu.Unlock()

	if err := t.Open(ctx); err != nil {
		c.logger.Errorf("cannot open transport: %s", err)
		t.Terminate()
		c.scheduleReconnect()
	}
}

func (c *Client) handleOpen(t Transport) {
	c.mu.Lock()
	if c.transport != t || c.terminated {
		c.mu.Unlock()
		return
	}
	c.scheduler.reset()
	c.mu.Unlock()

	c.dispatcher.Emit(EventOpen, Event{Kind: EventOpen})

	if c.cfg.ResendOnReconnect {
		c.flush()
	}
	if c.cfg.RepeatAllMessages {
		c.replay()
	}
}

func (c *Client) handleMessage(t Transport, m Message) {
	c.mu.Lock()
	stale := c.transport != t || c.terminated
	c.mu.Unlock()
	if stale {
		return
	}

	c.dispatcher.Emit(EventMessage, Event{Kind: EventMessage, Message: m})
}

func (c *Client) handleClose(t Transport, code int, reason string) {
	c.mu.Lock()
	if c.transport != t {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.dispatcher.Emit(EventClose, Event{Kind: EventClose, Code: code, Reason: reason})
	c.scheduleReconnect()
}

func (c *Client) handleError(t Transport, err error) {
	c.mu.Lock()
	if c.transport != t {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.dispatcher.Emit(EventError, Event{Kind: EventError, Err: err})

	// Force the transport down; its close signal drives reconnection.
	t.Terminate()
}

func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if !c.scheduler.schedule(c.connect) {
		c.signalDone()
	}
}

func (c *Client) send(m Message, queueOnFailure bool) {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return
	}

	t := c.transport
	if t == nil || !t.IsOpen() {
		if queueOnFailure {
			c.queue.enqueue(m)
		} else {
			c.logger.Debugf("dropping message while disconnected: %s", m)
		}
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := t.Send(m); err != nil {
		// A failed send call is never requeued; only the absence of an
		// open transport queues.
		c.logger.Errorf("send failed: %s", err)
		return
	}

	if c.cfg.RepeatAllMessages {
		c.mu.Lock()
		c.sent.append(m)
		c.mu.Unlock()
	}
}

// flush drains the outbound queue head first. Resends never requeue, so a
// transport dropping mid-flush cannot loop.
func (c *Client) flush() {
	for {
		c.mu.Lock()
		m, ok := c.queue.dequeue()
		c.mu.Unlock()
		if !ok {
			return
		}

		c.send(m, false)
	}
}

// replay resends a snapshot of the sent log in original send order. Sends
// issued while the pass runs are invisible to it.
func (c *Client) replay() {
	c.mu.Lock()
	entries := c.sent.snapshot()
	c.mu.Unlock()

	for _, m := range entries {
		c.send(m, false)
	}
}

func (c *Client) signalDone() {
	c.doneOnce.Do(func() {
		close(c.doneC)
	})
}
