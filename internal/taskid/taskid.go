package taskid

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedID is the sentinel wrapped by every MalformedIDError.
var ErrMalformedID = errors.New("malformed id")

// MalformedIDError reports an address that is neither "N" nor "N.M" with
// positive integer components.
type MalformedIDError struct {
	Input  string
	Reason string
}

func (e *MalformedIDError) Error() string {
	return fmt.Sprintf("malformed id %q: %s", e.Input, e.Reason)
}

func (e *MalformedIDError) Unwrap() error { return ErrMalformedID }

// Address identifies a task (Sub == 0) or a subtask (Parent.Sub).
type Address struct {
	Parent int
	Sub    int
}

// Task returns the address of a top-level task.
func Task(id int) Address { return Address{Parent: id} }

// Subtask returns the dotted address parent.sub.
func Subtask(parent, sub int) Address { return Address{Parent: parent, Sub: sub} }

// IsSubtask reports whether the address uses the dotted form.
func (a Address) IsSubtask() bool { return a.Sub != 0 }

// TaskAddress returns the address of the owning top-level task.
func (a Address) TaskAddress() Address { return Address{Parent: a.Parent} }

func (a Address) String() string {
	if a.Sub == 0 {
		return strconv.Itoa(a.Parent)
	}
	return strconv.Itoa(a.Parent) + "." + strconv.Itoa(a.Sub)
}

// Less orders addresses by parent id, then subtask id. A task sorts before
// its own subtasks.
func (a Address) Less(b Address) bool {
	if a.Parent != b.Parent {
		return a.Parent < b.Parent
	}
	return a.Sub < b.Sub
}

// Parse decodes "N" or "N.M".
func Parse(s string) (Address, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return Address{}, &MalformedIDError{Input: s, Reason: "empty"}
	}

	parts := strings.Split(in, ".")
	if len(parts) > 2 {
		return Address{}, &MalformedIDError{Input: s, Reason: "expected N or N.M"}
	}

	parent, err := positive(parts[0])
	if err != nil {
		return Address{}, &MalformedIDError{Input: s, Reason: "task id " + err.Error()}
	}
	if len(parts) == 1 {
		return Task(parent), nil
	}

	sub, err := positive(parts[1])
	if err != nil {
		return Address{}, &MalformedIDError{Input: s, Reason: "subtask id " + err.Error()}
	}
	return Subtask(parent, sub), nil
}

// MustParse is Parse for literals in tests and fixtures.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Format renders an address from its components; the subtask id is optional.
func Format(parent int, sub ...int) string {
	if len(sub) == 0 || sub[0] == 0 {
		return Task(parent).String()
	}
	return Subtask(parent, sub[0]).String()
}

func positive(s string) (int, error) {
	if s == "" {
		return 0, errors.New("is empty")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%q is not a positive integer", s)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is out of range", s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%q is not a positive integer", s)
	}
	return n, nil
}

// Ref is a dependency id as it is persisted: "N" for a task (or, inside a
// subtask's list, a sibling subtask) and "N.M" for a fully-qualified subtask.
type Ref string

// RefTo returns the persisted form of target as seen from owner. Sibling
// subtasks are written as bare integers.
func RefTo(owner, target Address) Ref {
	if owner.IsSubtask() && target.IsSubtask() && owner.Parent == target.Parent {
		return Ref(strconv.Itoa(target.Sub))
	}
	return Ref(target.String())
}

// IsBare reports whether the ref has no dot.
func (r Ref) IsBare() bool { return !strings.Contains(string(r), ".") }

// Candidates lists the addresses the ref may denote, in resolution order.
// For a bare integer inside a subtask that is the sibling first, then the
// top-level task with that id.
func (r Ref) Candidates(owner Address) ([]Address, error) {
	a, err := Parse(string(r))
	if err != nil {
		return nil, err
	}
	if owner.IsSubtask() && !a.IsSubtask() {
		return []Address{Subtask(owner.Parent, a.Parent), a}, nil
	}
	return []Address{a}, nil
}

// MarshalJSON writes bare integers as JSON numbers and dotted refs as strings.
func (r Ref) MarshalJSON() ([]byte, error) {
	if n, err := strconv.Atoi(string(r)); err == nil && r.IsBare() {
		return []byte(strconv.Itoa(n)), nil
	}
	return json.Marshal(string(r))
}

// UnmarshalJSON accepts a number or a string.
func (r *Ref) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, `"`) {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("dependency id must be a number or string: %w", err)
		}
		*r = Ref(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("dependency id must be a number or string: %w", err)
	}
	*r = Ref(strings.TrimSpace(s))
	return nil
}
