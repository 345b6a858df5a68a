package store

import "github.com/taskpulse/taskpulse/internal/task"

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Snapshot is an immutable view of the store. Tasks is shared between
// snapshots and must not be modified.
type Snapshot struct {
	Version uint64
	Status  Status
	Tasks   []task.Task
	// Err is the last load failure; set only while Status is StatusFailed.
	Err error

	pending map[string]struct{}
}

// Readable reports whether Tasks may be rendered as the user's task list.
// Loading and failed snapshots should only be used to render that state.
func (s Snapshot) Readable() bool {
	return s.Status == StatusReady
}

// IsPending reports whether a mutation of id is waiting on the server.
func (s Snapshot) IsPending(id string) bool {
	_, ok := s.pending[id]
	return ok
}

func (s Snapshot) PendingCount() int {
	return len(s.pending)
}

func (s Snapshot) Find(id string) (task.Task, bool) {
	if i := s.index(id); i >= 0 {
		return s.Tasks[i], true
	}
	return task.Task{}, false
}

func (s Snapshot) index(id string) int {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s Snapshot) withPending(id string, on bool) map[string]struct{} {
	next := make(map[string]struct{}, len(s.pending)+1)
	for k := range s.pending {
		next[k] = struct{}{}
	}
	if on {
		next[id] = struct{}{}
	} else {
		delete(next, id)
	}
	return next
}
