package kafka

import (
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// Committer tracks messages awaiting their ack and decides when marked
// offsets should be flushed.
type Committer struct {
	every time.Duration
	now   func() time.Time

	mu      sync.Mutex
	last    time.Time
	pending map[Checkpoint]*sarama.ConsumerMessage
}

func NewCommitter(every time.Duration) *Committer {
	return &Committer{every: every, now: time.Now, pending: map[Checkpoint]*sarama.ConsumerMessage{}}
}

// Track remembers msg until Resolve is called with its checkpoint.
func (c *Committer) Track(msg *sarama.ConsumerMessage) Checkpoint {
	cp := checkpointOf(msg)
	c.mu.Lock()
	c.pending[cp] = msg
	c.mu.Unlock()
	return cp
}

// Resolve forgets cp and returns its message, if it was tracked.
func (c *Committer) Resolve(cp Checkpoint) (*sarama.ConsumerMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg, ok := c.pending[cp]
	if ok {
		delete(c.pending, cp)
	}
	return msg, ok
}

// Reset drops every pending message and returns how many there were.
func (c *Committer) Reset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.pending)
	c.pending = map[Checkpoint]*sarama.ConsumerMessage{}
	return n
}

// Pending is the number of tracked messages.
func (c *Committer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Due reports whether a commit is due, and if so starts a new period.
func (c *Committer) Due() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if now.Sub(c.last) < c.every {
		return false
	}
	c.last = now
	return true
}

// ackQueue holds acks until a claim loop picks them up. It grows instead of
// blocking or dropping: every ack may hold a back-pressure slot.
type ackQueue struct {
	mu    sync.Mutex
	items []Checkpoint
	ready chan struct{}
}

func newAckQueue() *ackQueue { return &ackQueue{ready: make(chan struct{}, 1)} }

func (q *ackQueue) push(cp Checkpoint) {
	q.mu.Lock()
	q.items = append(q.items, cp)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Ready is signalled after a push.
func (q *ackQueue) Ready() <-chan struct{} { return q.ready }

// drain takes every queued ack.
func (q *ackQueue) drain() []Checkpoint {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

func (q *ackQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func checkpointOf(msg *sarama.ConsumerMessage) Checkpoint {
	return Checkpoint{Topic: msg.Topic, Partition: msg.Partition, Offset: msg.Offset}
}
