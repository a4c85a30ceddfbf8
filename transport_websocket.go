package rews

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/fasthttp/websocket"
)

const writeDeadline = time.Second

// wsTransport implements the Transport interface over a single WebSocket
// connection. It is single-use: the client builds a fresh one per attempt.
type wsTransport struct {
	logger       Logger
	dialer       *websocket.Dialer
	paramsRepo   OpenConnectionParamsRepo
	signals      TransportSignals
	pingInterval time.Duration

	conn      *websocket.Conn
	connMu    sync.Mutex // guards conn assignment and writes
	open      atomic.Bool
	closeC    chan struct{}
	closeOnce sync.Once
}

// NewWebsocketTransportFactory returns a TransportFactory backed by a
// fasthttp websocket dialer. Connection params are resolved through the
// repo on every dial, so rotating credentials keep working across
// reconnects. A pingInterval greater than zero enables active keep-alive.
func NewWebsocketTransportFactory(
	logger Logger,
	dialer *websocket.Dialer,
	paramsRepo OpenConnectionParamsRepo,
	pingInterval time.Duration,
) TransportFactory {
	return func(signals TransportSignals) Transport {
		return &wsTransport{
			logger:       logger.WithField("net", "ws_transport"),
			dialer:       dialer,
			paramsRepo:   paramsRepo,
			signals:      signals,
			pingInterval: pingInterval,
			closeC:       make(chan struct{}),
		}
	}
}

// Open dials the configured address. On failure it returns an error and no
// signals fire; on success OnOpen fires before Open returns and the read
// loop starts.
func (w *wsTransport) Open(ctx context.Context) error {
	p, err := w.paramsRepo.Get(ctx)
	if err != nil {
		return err
	}

	conn, resp, err := w.dialer.DialContext(ctx, p.URL.String(), p.Header)
	if err = w.classifyDialError(resp, err); err != nil {
		w.logger.Errorf("connection err to %s: %s", p.URL.String(), err)
		return err
	}

	w.logger.Debugf("success opening connection to %s", p.URL.String())

	w.connMu.Lock()
	select {
	case <-w.closeC:
		// Terminated while dialing.
		w.connMu.Unlock()
		_ = conn.Close()
		return ErrTerminated
	default:
	}
	w.conn = conn
	w.connMu.Unlock()

	// Answer pings ourselves so the connection stays alive without the
	// client ever seeing control frames.
	conn.SetPingHandler(func(appData string) error {
		w.logger.Debugln("<= [PING]")
		return w.Send(NewPongMessage([]byte(appData)))
	})

	conn.SetPongHandler(func(string) error {
		w.logger.Debugln("<= [PONG]")
		return nil
	})

	w.open.Store(true)
	w.signals.OnOpen()

	go w.read()
	if w.pingInterval > 0 {
		go w.keepAlive(ctx)
	}

	return nil
}

// IsOpen reports whether the connection reached the open state and has not
// closed since.
func (w *wsTransport) IsOpen() bool {
	return w.open.Load()
}

// Send writes a single payload. Failure is reported for this payload only;
// the connection may still be usable afterwards.
func (w *wsTransport) Send(m Message) error {
	if !w.open.Load() {
		return ErrNotOpen
	}

	w.connMu.Lock()
	defer w.connMu.Unlock()

	deadline := time.Now().Add(writeDeadline)
	_ = w.conn.SetWriteDeadline(deadline)

	var err error

	switch m.Type() {
	case PingMessage:
		w.logger.Debugln("=> [PING]")
		err = w.conn.WriteControl(websocket.PingMessage, m.Data(), deadline)
		if e, ok := err.(net.Error); ok && e.Temporary() {
			err = nil
		}
	case PongMessage:
		w.logger.Debugln("=> [PONG]")
		err = w.conn.WriteControl(websocket.PongMessage, m.Data(), deadline)
	case BinaryMessage:
		w.logger.Debugln("=> [BIN]")
		err = w.conn.WriteMessage(websocket.BinaryMessage, m.Data())
	default:
		w.logger.Debugf("=> [DATA] %s", m.Data())
		err = w.conn.WriteMessage(websocket.TextMessage, m.Data())
	}

	if err != nil {
		return errors.Wrap(err, "websocket write")
	}

	return nil
}

// Close requests a graceful shutdown: a close frame is written best-effort
// and the connection is torn down.
func (w *wsTransport) Close(code int, reason string) {
	w.connMu.Lock()
	if w.conn != nil {
		deadline := time.Now().Add(writeDeadline)
		_ = w.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			deadline,
		)
	}
	w.connMu.Unlock()

	w.shutdown(code, reason)
}

// Terminate tears the connection down without a closing handshake.
func (w *wsTransport) Terminate() {
	w.shutdown(websocket.CloseAbnormalClosure, "terminated")
}

func (w *wsTransport) read() {
	for {
		messageType, bts, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.closeC:
				// We initiated the shutdown; the signal already fired.
				return
			default:
			}

			w.open.Store(false)

			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				w.logger.Debugf("<= [CLOSE] %d %s", closeErr.Code, closeErr.Text)
				w.shutdown(closeErr.Code, closeErr.Text)
				return
			}

			w.logger.Errorf("error occurred on websocket read: %s", err)
			w.signals.OnError(errors.Wrap(ErrConnectionClosed, err.Error()))
			w.shutdown(websocket.CloseAbnormalClosure, err.Error())
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			w.logger.Debugln("<= [BIN]")
			w.signals.OnMessage(NewBinaryMessage(bts))
		default:
			w.logger.Debugf("<= [DATA] %s", bts)
			w.signals.OnMessage(NewTextMessage(bts))
		}
	}
}

func (w *wsTransport) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(w.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.closeC:
			return
		case <-ticker.C:
			if err := w.Send(NewPingMessage(nil)); err != nil {
				w.logger.Debugf("keep-alive ping failed: %s", err)
			}
		}
	}
}

// shutdown runs at most once. It closes the raw connection and fires
// OnClose, unless the connection never reached the open state.
func (w *wsTransport) shutdown(code int, reason string) {
	w.closeOnce.Do(func() {
		w.open.Store(false)
		close(w.closeC)

		w.connMu.Lock()
		conn := w.conn
		w.connMu.Unlock()

		if conn == nil {
			return
		}

		_ = conn.Close()
		w.signals.OnClose(code, reason)
	})
}

func (w *wsTransport) classifyDialError(resp *http.Response, err error) error {
	var msg string

	if resp != nil {
		if resp.Body != nil {
			bts, readErr := io.ReadAll(resp.Body)
			if readErr == nil {
				msg = string(bts)
			}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return errors.Wrap(ErrCannotConnect, "rate limited: "+msg)
		}
	}

	if err != nil {
		return errors.Wrap(ErrCannotConnect, err.Error())
	}

	return nil
}
