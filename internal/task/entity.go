package task

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Statuses lists every status in board column order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// Title is the board column heading for s.
func (s Status) Title() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// ParseStatus accepts any casing and "in_progress" as an alias. The empty
// string yields the default status.
func ParseStatus(raw string) (Status, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return StatusPending, nil
	}
	s = strings.ReplaceAll(s, "_", "-")
	if st := Status(s); st.IsValid() {
		return st, nil
	}
	return "", validationError(fmt.Sprintf("invalid status %q", raw))
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

func ParsePriority(raw string) (Priority, error) {
	p := strings.ToLower(strings.TrimSpace(raw))
	if p == "" {
		return PriorityMedium, nil
	}
	if pr := Priority(p); pr.IsValid() {
		return pr, nil
	}
	return "", validationError(fmt.Sprintf("invalid priority %q", raw))
}

// Task is a single unit of work owned by one user.
type Task struct {
	ID          string     `json:"id" yaml:"id"`
	Owner       string     `json:"owner" yaml:"owner"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Status      Status     `json:"status" yaml:"status"`
	Priority    Priority   `json:"priority" yaml:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty" yaml:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" yaml:"updated_at"`
}

// Validate checks the entity invariants. The client runs it on every task the
// service returns.
func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return validationError("task id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return validationError("task title is required")
	}
	if strings.TrimSpace(t.Description) == "" {
		return validationError("task description is required")
	}
	if !t.Status.IsValid() {
		return validationError(fmt.Sprintf("invalid status %q", t.Status))
	}
	if !t.Priority.IsValid() {
		return validationError(fmt.Sprintf("invalid priority %q", t.Priority))
	}
	if t.CreatedAt.IsZero() {
		return validationError("task createdAt is required")
	}
	if t.UpdatedAt.Before(t.CreatedAt) {
		return validationError("task updatedAt precedes createdAt")
	}
	return nil
}

func (t Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// Clone returns a deep copy so snapshots never share DueDate pointers.
func (t Task) Clone() Task {
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	return t
}
