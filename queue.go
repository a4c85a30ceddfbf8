package rews

import (
	"github.com/eapache/queue"
)

// outboundQueue buffers messages that could not be handed to an open
// transport. FIFO, unbounded. Not safe for concurrent use on its own; the
// client serializes access under its mutex.
type outboundQueue struct {
	entries *queue.Queue
}

func newOutboundQueue() *outboundQueue {
	return &outboundQueue{entries: queue.New()}
}

func (q *outboundQueue) enqueue(m Message) {
	q.entries.Add(m)
}

// dequeue removes and returns the head of the queue. The second return
// value is false when the queue is empty.
func (q *outboundQueue) dequeue() (Message, bool) {
	if q.entries.Length() == 0 {
		return nil, false
	}
	return q.entries.Remove().(Message), true
}

func (q *outboundQueue) size() int {
	return q.entries.Length()
}

func (q *outboundQueue) clear() {
	q.entries = queue.New()
}

// sentLog records every payload successfully handed to an open transport
// while repeat-all-messages is enabled. It is never pruned automatically;
// only Terminate clears it.
type sentLog struct {
	entries []Message
}

func newSentLog() *sentLog {
	return &sentLog{}
}

func (l *sentLog) append(m Message) {
	l.entries = append(l.entries, m)
}

// snapshot returns a copy of the log. Replay iterates the copy so sends
// issued during the pass stay invisible to it.
func (l *sentLog) snapshot() []Message {
	out := make([]Message, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *sentLog) size() int {
	return len(l.entries)
}

func (l *sentLog) clear() {
	l.entries = nil
}
