package tasks

import (
	"sync"
	"sync/atomic"
	"time"

	"web2json/internal/models"
)

// Handle is the caller-owned reference to one task. The client keeps no
// registry of handles; two handles never share state.
type Handle struct {
	id       string
	interval time.Duration

	inFlight atomic.Bool

	mu      sync.Mutex
	task    Task
	lastErr error
}

func newHandle(id string, interval time.Duration) *Handle {
	return &Handle{
		id:       id,
		interval: interval,
		task: Task{
			ID:        id,
			State:     StateCreated,
			Phase:     models.PhasePlanning,
			UpdatedAt: time.Now(),
		},
	}
}

func (h *Handle) ID() string { return h.id }

// PollInterval is the interval recommended by the service, or the client
// default when the service gave none.
func (h *Handle) PollInterval() time.Duration { return h.interval }

// InFlight reports whether a status request is outstanding.
func (h *Handle) InFlight() bool { return h.inFlight.Load() }

func (h *Handle) Snapshot() Task {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.task.clone()
}

func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.task.State
}

func (h *Handle) CancelRequested() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.task.CancelRequested
}

// LastError is the most recent failed request that did not change the state.
func (h *Handle) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

func (h *Handle) setLastErr(err error) {
	h.mu.Lock()
	h.lastErr = err
	h.mu.Unlock()
}

// requestCancel records the intent unless the task already ended.
func (h *Handle) requestCancel() {
	h.mu.Lock()
	if !h.task.State.Terminal() {
		h.task.CancelRequested = true
	}
	h.mu.Unlock()
}

// fail moves a non-terminal task to StateFailed. It reports whether the
// transition happened.
func (h *Handle) fail(err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastErr = err
	if h.task.State.Terminal() {
		return false
	}
	h.task.State = StateFailed
	h.task.Err = err
	h.task.UpdatedAt = time.Now()
	return true
}

// forceCancelled records a confirmed cancellation unless a terminal state
// was already reached.
func (h *Handle) forceCancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastErr = nil
	if h.task.State.Terminal() {
		return false
	}
	h.task.State = StateCancelled
	h.task.UpdatedAt = time.Now()
	return true
}
