package rews

import (
	"context"
)

// noopTransport never opens and swallows everything. Useful as a stand-in
// when wiring a client without a live endpoint.
type noopTransport struct{}

func (noopTransport) Open(context.Context) error { return nil }

func (noopTransport) Send(Message) error { return nil }

func (noopTransport) Close(int, string) {}

func (noopTransport) Terminate() {}

func (noopTransport) IsOpen() bool { return false }

func NewNoopTransportFactory() TransportFactory {
	return func(TransportSignals) Transport {
		return noopTransport{}
	}
}
