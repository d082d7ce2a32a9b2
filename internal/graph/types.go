package graph

import (
	"strings"
	"time"

	"github.com/joshharrison/taskloom/internal/taskid"
)

// Status is one of the fixed lifecycle values. Persisted verbatim.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
	StatusReview     Status = "review"
	StatusDeferred   Status = "deferred"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every recognized status in display order.
var Statuses = []Status{
	StatusPending, StatusInProgress, StatusDone, StatusReview, StatusDeferred, StatusCancelled,
}

// ParseStatus normalizes user or file input. "completed" is the legacy
// spelling of done and is stored as done.
func ParseStatus(s string) (Status, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "completed" {
		return StatusDone, nil
	}
	for _, st := range Statuses {
		if Status(v) == st {
			return st, nil
		}
	}
	return "", &InvalidStatusError{Value: s}
}

// IsDone reports whether the status satisfies dependencies.
func (s Status) IsDone() bool { return s == StatusDone }

// Priority ranks ready work.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority accepts low, medium or high. Empty input means medium.
func ParsePriority(s string) (Priority, bool) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case "", PriorityMedium:
		return PriorityMedium, true
	case PriorityLow:
		return PriorityLow, true
	case PriorityHigh:
		return PriorityHigh, true
	}
	return "", false
}

// Rank is 3 for high, 2 for medium (or unset), 1 for low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 1
	default:
		return 2
	}
}

// Task is a top-level work item.
type Task struct {
	ID           int          `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Details      string       `json:"details,omitempty"`
	TestStrategy string       `json:"testStrategy,omitempty"`
	Status       Status       `json:"status"`
	Priority     Priority     `json:"priority,omitempty"`
	Dependencies []taskid.Ref `json:"dependencies"`
	Subtasks     []Subtask    `json:"subtasks,omitempty"`
}

// Address returns the task's address.
func (t *Task) Address() taskid.Address { return taskid.Task(t.ID) }

// Subtask is a work item owned by a Task. Its ID is unique within the parent.
type Subtask struct {
	ID           int          `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Details      string       `json:"details,omitempty"`
	TestStrategy string       `json:"testStrategy,omitempty"`
	Status       Status       `json:"status"`
	Priority     Priority     `json:"priority,omitempty"`
	Dependencies []taskid.Ref `json:"dependencies"`
}

// Metadata describes a tag.
type Metadata struct {
	Created     time.Time `json:"created,omitzero"`
	Updated     time.Time `json:"updated,omitzero"`
	Description string    `json:"description,omitempty"`
	LastID      int       `json:"lastId,omitempty"`
}

// Snapshot is the complete content of one tag.
type Snapshot struct {
	Tag      string   `json:"-"`
	Tasks    []Task   `json:"tasks"`
	Metadata Metadata `json:"metadata"`
}

// NewTask carries the caller-supplied fields of a task or subtask; the store
// assigns the id.
type NewTask struct {
	Title        string
	Description  string
	Details      string
	TestStrategy string
	Priority     Priority
	Dependencies []string
}

// Node is a read-only view of a task or subtask.
type Node struct {
	Address      taskid.Address
	Title        string
	Status       Status
	Priority     Priority
	Dependencies []taskid.Ref
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Tag: s.Tag, Metadata: s.Metadata}
	if s.Tasks == nil {
		return out
	}
	out.Tasks = make([]Task, len(s.Tasks))
	for i, t := range s.Tasks {
		t.Dependencies = cloneRefs(t.Dependencies)
		if t.Subtasks != nil {
			subs := make([]Subtask, len(t.Subtasks))
			for j, st := range t.Subtasks {
				st.Dependencies = cloneRefs(st.Dependencies)
				subs[j] = st
			}
			t.Subtasks = subs
		}
		out.Tasks[i] = t
	}
	return out
}

func cloneRefs(in []taskid.Ref) []taskid.Ref {
	if in == nil {
		return nil
	}
	out := make([]taskid.Ref, len(in))
	copy(out, in)
	return out
}

// Nodes lists every task and subtask in address order of the file
// (each task followed by its subtasks).
func (s *Snapshot) Nodes() []Node {
	var out []Node
	for i := range s.Tasks {
		t := &s.Tasks[i]
		out = append(out, Node{
			Address:      t.Address(),
			Title:        t.Title,
			Status:       t.Status,
			Priority:     t.Priority,
			Dependencies: t.Dependencies,
		})
		for j := range t.Subtasks {
			st := &t.Subtasks[j]
			out = append(out, Node{
				Address:      taskid.Subtask(t.ID, st.ID),
				Title:        st.Title,
				Status:       st.Status,
				Priority:     st.Priority,
				Dependencies: st.Dependencies,
			})
		}
	}
	return out
}

func (s *Snapshot) taskIndex(id int) int {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (t *Task) subtaskIndex(id int) int {
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == id {
			return i
		}
	}
	return -1
}

// locate returns the task index and subtask index (-1 for a task address).
func (s *Snapshot) locate(addr taskid.Address) (int, int, error) {
	ti := s.taskIndex(addr.Parent)
	if ti < 0 {
		return -1, -1, &NotFoundError{Address: addr.String()}
	}
	if !addr.IsSubtask() {
		return ti, -1, nil
	}
	si := s.Tasks[ti].subtaskIndex(addr.Sub)
	if si < 0 {
		return -1, -1, &SubtaskNotFoundError{Address: addr.String(), ParentID: addr.Parent}
	}
	return ti, si, nil
}

// Exists reports whether addr names a task or subtask in the snapshot.
func (s *Snapshot) Exists(addr taskid.Address) bool {
	_, _, err := s.locate(addr)
	return err == nil
}

// statusPtr and depsPtr give mutable access to a node's fields.
func (s *Snapshot) statusPtr(addr taskid.Address) (*Status, error) {
	ti, si, err := s.locate(addr)
	if err != nil {
		return nil, err
	}
	if si < 0 {
		return &s.Tasks[ti].Status, nil
	}
	return &s.Tasks[ti].Subtasks[si].Status, nil
}

func (s *Snapshot) depsPtr(addr taskid.Address) (*[]taskid.Ref, error) {
	ti, si, err := s.locate(addr)
	if err != nil {
		return nil, err
	}
	if si < 0 {
		return &s.Tasks[ti].Dependencies, nil
	}
	return &s.Tasks[ti].Subtasks[si].Dependencies, nil
}

// StatusOf returns the status of the node at addr.
func (s *Snapshot) StatusOf(addr taskid.Address) (Status, error) {
	p, err := s.statusPtr(addr)
	if err != nil {
		return "", err
	}
	return *p, nil
}

// SetStatus overwrites the status of the node at addr. It does no cascading;
// the lifecycle engine owns transition side effects.
func (s *Snapshot) SetStatus(addr taskid.Address, st Status) error {
	p, err := s.statusPtr(addr)
	if err != nil {
		return err
	}
	*p = st
	return nil
}

// Task returns a pointer into the snapshot for the task with the given id.
func (s *Snapshot) Task(id int) (*Task, bool) {
	i := s.taskIndex(id)
	if i < 0 {
		return nil, false
	}
	return &s.Tasks[i], true
}

// Resolve maps a dependency ref owned by owner to an existing node. A bare
// integer inside a subtask prefers the sibling and falls back to the
// top-level task.
func (s *Snapshot) Resolve(owner taskid.Address, ref taskid.Ref) (taskid.Address, bool) {
	cands, err := ref.Candidates(owner)
	if err != nil {
		return taskid.Address{}, false
	}
	for _, c := range cands {
		if s.Exists(c) {
			return c, true
		}
	}
	return taskid.Address{}, false
}
