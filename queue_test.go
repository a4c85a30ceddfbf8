package rews

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutboundQueueFIFO(t *testing.T) {
	q := newOutboundQueue()

	q.enqueue(NewTextMessage([]byte("a")))
	q.enqueue(NewTextMessage([]byte("b")))
	q.enqueue(NewTextMessage([]byte("c")))

	require.Equal(t, 3, q.size())

	var drained []string
	for {
		m, ok := q.dequeue()
		if !ok {
			break
		}
		drained = append(drained, string(m.Data()))
	}

	require.Equal(t, []string{"a", "b", "c"}, drained)
	require.Zero(t, q.size())
}

func TestOutboundQueueDequeueEmpty(t *testing.T) {
	q := newOutboundQueue()

	m, ok := q.dequeue()
	require.False(t, ok)
	require.Nil(t, m)
}

func TestOutboundQueueClear(t *testing.T) {
	q := newOutboundQueue()

	q.enqueue(NewTextMessage([]byte("a")))
	q.enqueue(NewTextMessage([]byte("b")))
	q.clear()

	require.Zero(t, q.size())
	_, ok := q.dequeue()
	require.False(t, ok)
}

func TestSentLogSnapshotIsACopy(t *testing.T) {
	l := newSentLog()

	l.append(NewTextMessage([]byte("x")))
	l.append(NewTextMessage([]byte("y")))

	snap := l.snapshot()
	require.Len(t, snap, 2)

	// Appends after the snapshot must not leak into it.
	l.append(NewTextMessage([]byte("z")))
	require.Len(t, snap, 2)
	require.Equal(t, 3, l.size())
}

func TestSentLogClear(t *testing.T) {
	l := newSentLog()

	l.append(NewTextMessage([]byte("x")))
	l.clear()

	require.Zero(t, l.size())
	require.Empty(t, l.snapshot())
}
