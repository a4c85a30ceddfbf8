package rews

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger(zerolog.New(&buf))

	l.WithField("component", "rews_client").Infof("reconnecting in %s", "5s")

	out := buf.String()
	require.Contains(t, out, `"component":"rews_client"`)
	require.Contains(t, out, "reconnecting in 5s")
	require.Contains(t, out, `"level":"info"`)
}

func TestWriterLoggerIncludesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)

	l.WithField("net", "ws_transport").Errorf("connection err: %s", "refused")

	out := buf.String()
	require.Contains(t, out, "ERROR")
	require.Contains(t, out, "net=ws_transport")
	require.Contains(t, out, "connection err: refused")
}
