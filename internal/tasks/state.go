package tasks

import (
	"time"

	"web2json/internal/models"
)

type State string

const (
	StateCreated   State = "created"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

func (s State) rank() int {
	switch s {
	case StateCreated:
		return 0
	case StateRunning:
		return 1
	}
	return 2
}

// Task is a point-in-time copy of what the client knows about one job.
type Task struct {
	ID              string
	State           State
	Phase           models.Phase
	Progress        float64
	Message         string
	Details         map[string]any
	Artifacts       []models.ArtifactKind
	CancelRequested bool
	// Err is the failure reason once State is StateFailed.
	Err       error
	UpdatedAt time.Time
}

func (t Task) clone() Task {
	if t.Details != nil {
		details := make(map[string]any, len(t.Details))
		for k, v := range t.Details {
			details[k] = v
		}
		t.Details = details
	}
	if t.Artifacts != nil {
		t.Artifacts = append([]models.ArtifactKind(nil), t.Artifacts...)
	}
	return t
}

// point orders observations along the lifecycle: state rank, then phase, then
// progress percentage.
type point struct {
	rank     int
	phase    int
	progress float64
}

func pointOf(s State, p models.Phase, progress float64) point {
	return point{rank: s.rank(), phase: p.Index(), progress: progress}
}

func (a point) after(b point) bool {
	if a.rank != b.rank {
		return a.rank > b.rank
	}
	if a.phase != b.phase {
		return a.phase > b.phase
	}
	return a.progress > b.progress
}
