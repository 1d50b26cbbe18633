package kafka

import "golang.org/x/sync/semaphore"

// Controller bounds the number of requests read but not yet acknowledged.
type Controller struct {
	sem *semaphore.Weighted
}

func NewController(capacity int64) *Controller {
	if capacity <= 0 {
		capacity = 1
	}
	return &Controller{sem: semaphore.NewWeighted(capacity)}
}

// TryAcquire takes a slot without blocking.
func (c *Controller) TryAcquire() bool { return c.sem.TryAcquire(1) }

// Release frees a slot.
func (c *Controller) Release() { c.sem.Release(1) }

// ReleaseN frees n slots.
func (c *Controller) ReleaseN(n int) {
	if n > 0 {
		c.sem.Release(int64(n))
	}
}
