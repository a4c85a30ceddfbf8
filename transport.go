package rews

import (
	"context"
)

type (
	// TransportSignals carries the callbacks a Transport invokes to report
	// its lifecycle. Transports must deliver signals sequentially and must
	// not fire OnClose for a connection that never reached the open state.
	TransportSignals struct {
		OnOpen    func()
		OnMessage func(m Message)
		OnClose   func(code int, reason string)
		OnError   func(err error)
	}

	// Transport is one underlying connection. A Transport is single-use:
	// once closed or terminated it never reopens; the client builds a fresh
	// one through the factory for every attempt.
	Transport interface {
		// Open establishes the connection. It returns an error when the
		// connection cannot be established; no signals fire in that case.
		Open(ctx context.Context) error

		// Send hands a payload to the connection. It reports failure for
		// that specific payload; it must not invoke signals synchronously.
		Send(m Message) error

		// Close requests a graceful shutdown with the given status.
		Close(code int, reason string)

		// Terminate tears the connection down immediately.
		Terminate()

		// IsOpen reports whether the connection is in the open state.
		IsOpen() bool
	}

	// TransportFactory builds a fresh Transport wired to the given signals.
	TransportFactory func(signals TransportSignals) Transport
)
