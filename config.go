package rews

import (
	"time"
)

// DefaultReconnectInterval is used when Config.ReconnectInterval is unset.
const DefaultReconnectInterval = 5 * time.Second

// Config tunes a Client. It is immutable after construction; the zero value
// is usable and means: reconnect every 5s, retry forever, no resend, no
// replay, no keep-alive, no logging.
type Config struct {
	// ReconnectInterval is the fixed wait between a connection loss and the
	// next attempt. There is no backoff growth. Defaults to
	// DefaultReconnectInterval when zero or negative.
	ReconnectInterval time.Duration

	// MaxRetries caps consecutive reconnect attempts. Zero or negative
	// means unlimited. The counter resets on every successful open, so the
	// cap only bites when N attempts in a row fail to open.
	MaxRetries int

	// ResendOnReconnect flushes the outbound queue once a connection
	// reopens. Messages sent while disconnected are buffered there.
	ResendOnReconnect bool

	// RepeatAllMessages records every successfully sent payload and replays
	// the whole log after each reconnect, following the queue flush. No
	// deduplication is attempted; callers needing at-most-once delivery
	// must deduplicate at the application layer.
	RepeatAllMessages bool

	// PingInterval enables active keep-alive pings on the websocket
	// transport when greater than zero.
	PingInterval time.Duration

	// Logger receives diagnostics. Nil means silent.
	Logger Logger
}

func (c Config) withDefaults() Config {
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.Logger == nil {
		c.Logger = NopLogger()
	}
	return c
}
