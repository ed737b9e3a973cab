package tasks

import (
	"context"
	"time"
)

// Watch drives Poll on a fixed interval until the task is terminal or ctx is
// done. fn sees the result of every poll, errors included. Leaving Watch does
// not cancel the task on the service; call Cancel for that.
func (c *Client) Watch(ctx context.Context, h *Handle, interval time.Duration, fn func(Task, error)) (Task, error) {
	if interval <= 0 {
		interval = h.PollInterval()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, err := c.Poll(ctx, h)
		if fn != nil {
			fn(snap, err)
		}
		if snap.State.Terminal() {
			return snap, nil
		}

		select {
		case <-ctx.Done():
			return h.Snapshot(), ctx.Err()
		case <-ticker.C:
		}
	}
}
