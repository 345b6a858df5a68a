package task

import (
	"fmt"
	"strings"
	"time"
)

// Draft is the input for creating a task. The service assigns ID, Owner and
// timestamps.
type Draft struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// Normalize trims text fields and fills in default status and priority.
func (d Draft) Normalize() Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	if d.Status == "" {
		d.Status = StatusPending
	}
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	return d
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return validationError("title is required")
	}
	if strings.TrimSpace(d.Description) == "" {
		return validationError("description is required")
	}
	if d.Status != "" && !d.Status.IsValid() {
		return validationError(fmt.Sprintf("invalid status %q", d.Status))
	}
	if d.Priority != "" && !d.Priority.IsValid() {
		return validationError(fmt.Sprintf("invalid priority %q", d.Priority))
	}
	return nil
}

// Build materializes a validated draft into a new task.
func (d Draft) Build(id, owner string, now time.Time) Task {
	d = d.Normalize()
	t := Task{
		ID:          id,
		Owner:       owner,
		Title:       d.Title,
		Description: d.Description,
		Status:      d.Status,
		Priority:    d.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if d.DueDate != nil {
		due := *d.DueDate
		t.DueDate = &due
	}
	return t
}

// Patch is a partial update. Only the listed fields can change; nil means
// "leave as is". ClearDueDate removes the due date and wins over DueDate.
type Patch struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Status       *Status    `json:"status,omitempty"`
	Priority     *Priority  `json:"priority,omitempty"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
	ClearDueDate bool       `json:"clearDueDate,omitempty"`
}

// StatusPatch is the patch dispatched by a board drop.
func StatusPatch(s Status) Patch {
	return Patch{Status: &s}
}

func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.DueDate == nil && !p.ClearDueDate
}

func (p Patch) Validate() error {
	if p.IsEmpty() {
		return validationError("update has no fields")
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return validationError("title must not be empty")
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return validationError("description must not be empty")
	}
	if p.Status != nil && !p.Status.IsValid() {
		return validationError(fmt.Sprintf("invalid status %q", *p.Status))
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		return validationError(fmt.Sprintf("invalid priority %q", *p.Priority))
	}
	return nil
}

// Apply writes the patch onto t. UpdatedAt is left to the caller, which owns
// the clock.
func (p Patch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	switch {
	case p.ClearDueDate:
		t.DueDate = nil
	case p.DueDate != nil:
		due := *p.DueDate
		t.DueDate = &due
	}
}

// Changes reports whether applying p to t would alter any field.
func (p Patch) Changes(t Task) bool {
	next := t.Clone()
	p.Apply(&next)
	if next.Title != t.Title || next.Description != t.Description ||
		next.Status != t.Status || next.Priority != t.Priority {
		return true
	}
	switch {
	case next.DueDate == nil && t.DueDate == nil:
		return false
	case next.DueDate == nil || t.DueDate == nil:
		return true
	default:
		return !next.DueDate.Equal(*t.DueDate)
	}
}
