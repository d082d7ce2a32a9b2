package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joshharrison/taskloom/internal/taskid"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrSubtaskNotFound  = errors.New("subtask not found")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrCycle            = errors.New("dependency cycle")
	ErrDuplicateEdge    = errors.New("duplicate dependency")
	ErrAmbiguousRef     = errors.New("ambiguous dependency")
	ErrValidationFailed = errors.New("graph validation failed")
)

// NotFoundError is returned when a task, or the parent of a subtask
// address, does not exist.
type NotFoundError struct {
	Address string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.Address)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// SubtaskNotFoundError is returned when the parent exists but the subtask
// id does not.
type SubtaskNotFoundError struct {
	Address  string
	ParentID int
}

func (e *SubtaskNotFoundError) Error() string {
	return fmt.Sprintf("subtask %s not found in task %d", e.Address, e.ParentID)
}

func (e *SubtaskNotFoundError) Unwrap() error { return ErrSubtaskNotFound }

// InvalidStatusError carries the rejected status value.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	names := make([]string, len(Statuses))
	for i, s := range Statuses {
		names[i] = string(s)
	}
	return fmt.Sprintf("invalid status %q (want one of %s)", e.Value, strings.Join(names, ", "))
}

func (e *InvalidStatusError) Unwrap() error { return ErrInvalidStatus }

// CycleError is returned when adding From -> To would close a cycle. Path
// starts and ends with From.
type CycleError struct {
	From, To taskid.Address
	Path     []taskid.Address
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("adding %s -> %s creates a cycle: %s", e.From, e.To, FormatPath(e.Path))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// DuplicateEdgeError is returned when From already depends on To.
type DuplicateEdgeError struct {
	From, To taskid.Address
}

func (e *DuplicateEdgeError) Error() string {
	return fmt.Sprintf("%s already depends on %s", e.From, e.To)
}

func (e *DuplicateEdgeError) Unwrap() error { return ErrDuplicateEdge }

// AmbiguousRefError is returned when a subtask would depend on top-level task
// N while it has a sibling with id N; the persisted bare integer would name
// the sibling.
type AmbiguousRefError struct {
	From, To taskid.Address
}

func (e *AmbiguousRefError) Error() string {
	return fmt.Sprintf("%s cannot reference task %s: sibling %s shadows it", e.From, e.To, taskid.Subtask(e.From.Parent, e.To.Parent))
}

func (e *AmbiguousRefError) Unwrap() error { return ErrAmbiguousRef }

// ValidationError is returned by the commit guard. It lists what the rejected
// mutation would have introduced.
type ValidationError struct {
	Findings []Finding
	Cycles   [][]taskid.Address
}

func (e *ValidationError) Error() string {
	var parts []string
	for _, f := range e.Findings {
		parts = append(parts, f.String())
	}
	for _, c := range e.Cycles {
		parts = append(parts, "cycle "+FormatPath(c))
	}
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// FormatPath renders a cycle path as "a -> b -> a".
func FormatPath(path []taskid.Address) string {
	parts := make([]string, len(path))
	for i, a := range path {
		parts[i] = a.String()
	}
	return strings.Join(parts, " -> ")
}
