package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/natefinch/atomic"
	"github.com/tidwall/gjson"

	"github.com/joshharrison/taskloom/internal/graph"
	"github.com/joshharrison/taskloom/internal/taskid"
)

const (
	// DefaultDir holds the task file, audit log and lock.
	DefaultDir  = ".taskloom"
	DefaultFile = "tasks.json"
	DefaultTag  = "master"
)

// ErrCorruptStore is the sentinel for CorruptStoreError.
var ErrCorruptStore = errors.New("corrupt task file")

// CorruptStoreError reports a task file whose shape does not match the
// expected layout.
type CorruptStoreError struct {
	Path   string
	Tag    string
	Reason string
}

func (e *CorruptStoreError) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("corrupt task file %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("corrupt task file %s (tag %q): %s", e.Path, e.Tag, e.Reason)
}

func (e *CorruptStoreError) Unwrap() error { return ErrCorruptStore }

// Adapter loads and saves one tag at a time.
type Adapter interface {
	Load(tag string) (graph.Snapshot, error)
	Save(tag string, snap graph.Snapshot) error
}

// File is the JSON task file: an object keyed by tag, each value holding
// "tasks" and "metadata".
type File struct {
	path string
}

// NewFile returns an adapter for the task file at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the task file location.
func (f *File) Path() string { return f.path }

// Exists checks if the task file exists.
func (f *File) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

func (f *File) corrupt(tag, format string, args ...any) error {
	return &CorruptStoreError{Path: f.path, Tag: tag, Reason: fmt.Sprintf(format, args...)}
}

// read returns the raw tag objects. A missing file has no tags. A file whose
// root holds a "tasks" array is a single-tag file and is read as the default
// tag.
func (f *File) read() (map[string]gjson.Result, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]gjson.Result{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]gjson.Result{}, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, f.corrupt("", "invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, f.corrupt("", "top level must be an object keyed by tag")
	}
	if tasks := root.Get("tasks"); tasks.Exists() && tasks.IsArray() {
		return map[string]gjson.Result{DefaultTag: root}, nil
	}

	tags := map[string]gjson.Result{}
	root.ForEach(func(key, value gjson.Result) bool {
		tags[key.String()] = value
		return true
	})
	return tags, nil
}

// Tags lists the tags in the file, sorted.
func (f *File) Tags() ([]string, error) {
	raw, err := f.read()
	if err != nil {
		return nil, err
	}
	tags := make([]string, 0, len(raw))
	for k := range raw {
		tags = append(tags, k)
	}
	sort.Strings(tags)
	return tags, nil
}

// Load returns the snapshot of tag. An unknown tag (or a missing file) is an
// empty snapshot. Statuses are normalized; "completed" becomes done.
func (f *File) Load(tag string) (graph.Snapshot, error) {
	raw, err := f.read()
	if err != nil {
		return graph.Snapshot{}, err
	}
	value, ok := raw[tag]
	if !ok {
		return graph.Snapshot{Tag: tag, Tasks: []graph.Task{}}, nil
	}
	if err := f.checkShape(tag, value); err != nil {
		return graph.Snapshot{}, err
	}

	var snap graph.Snapshot
	if err := json.Unmarshal([]byte(value.Raw), &snap); err != nil {
		return graph.Snapshot{}, f.corrupt(tag, "decode: %v", err)
	}
	snap.Tag = tag
	if err := f.normalize(&snap); err != nil {
		return graph.Snapshot{}, err
	}
	return snap, nil
}

// checkShape verifies the layout before decoding so a malformed file is
// reported with a path to the offending value.
func (f *File) checkShape(tag string, v gjson.Result) error {
	if !v.IsObject() {
		return f.corrupt(tag, "tag value must be an object")
	}
	tasks := v.Get("tasks")
	if tasks.Exists() && !tasks.IsArray() {
		return f.corrupt(tag, "tasks must be an array")
	}
	if md := v.Get("metadata"); md.Exists() && !md.IsObject() && md.Type != gjson.Null {
		return f.corrupt(tag, "metadata must be an object")
	}

	var err error
	i := 0
	tasks.ForEach(func(_, t gjson.Result) bool {
		at := fmt.Sprintf("tasks[%d]", i)
		i++
		if err = f.checkNode(tag, at, t); err != nil {
			return false
		}
		subs := t.Get("subtasks")
		if subs.Exists() && subs.Type != gjson.Null && !subs.IsArray() {
			err = f.corrupt(tag, "%s.subtasks must be an array", at)
			return false
		}
		j := 0
		subs.ForEach(func(_, st gjson.Result) bool {
			err = f.checkNode(tag, fmt.Sprintf("%s.subtasks[%d]", at, j), st)
			j++
			return err == nil
		})
		return err == nil
	})
	return err
}

func (f *File) checkNode(tag, at string, n gjson.Result) error {
	if !n.IsObject() {
		return f.corrupt(tag, "%s must be an object", at)
	}
	id := n.Get("id")
	if id.Type != gjson.Number || id.Int() <= 0 || float64(id.Int()) != id.Num {
		return f.corrupt(tag, "%s.id must be a positive integer", at)
	}
	if st := n.Get("status"); st.Exists() && st.Type != gjson.String {
		return f.corrupt(tag, "%s.status must be a string", at)
	}
	deps := n.Get("dependencies")
	if deps.Exists() && deps.Type != gjson.Null && !deps.IsArray() {
		return f.corrupt(tag, "%s.dependencies must be an array", at)
	}
	var err error
	deps.ForEach(func(_, d gjson.Result) bool {
		if d.Type != gjson.Number && d.Type != gjson.String {
			err = f.corrupt(tag, "%s.dependencies holds %s, want number or string", at, d.Raw)
		}
		return err == nil
	})
	return err
}

func (f *File) normalize(snap *graph.Snapshot) error {
	if snap.Tasks == nil {
		snap.Tasks = []graph.Task{}
	}
	seen := map[int]bool{}
	for i := range snap.Tasks {
		t := &snap.Tasks[i]
		if seen[t.ID] {
			return f.corrupt(snap.Tag, "duplicate task id %d", t.ID)
		}
		seen[t.ID] = true

		st, err := normalStatus(t.Status)
		if err != nil {
			return f.corrupt(snap.Tag, "task %d: %v", t.ID, err)
		}
		t.Status = st
		pr, ok := normalPriority(t.Priority)
		if !ok {
			return f.corrupt(snap.Tag, "task %d: invalid priority %q", t.ID, t.Priority)
		}
		t.Priority = pr
		if t.Dependencies == nil {
			t.Dependencies = []taskid.Ref{}
		}

		subSeen := map[int]bool{}
		for j := range t.Subtasks {
			s := &t.Subtasks[j]
			if subSeen[s.ID] {
				return f.corrupt(snap.Tag, "duplicate subtask id %d.%d", t.ID, s.ID)
			}
			subSeen[s.ID] = true
			st, err := normalStatus(s.Status)
			if err != nil {
				return f.corrupt(snap.Tag, "subtask %d.%d: %v", t.ID, s.ID, err)
			}
			s.Status = st
			pr, ok := normalPriority(s.Priority)
			if !ok {
				return f.corrupt(snap.Tag, "subtask %d.%d: invalid priority %q", t.ID, s.ID, s.Priority)
			}
			s.Priority = pr
			if s.Dependencies == nil {
				s.Dependencies = []taskid.Ref{}
			}
		}
	}
	return nil
}

// normalStatus treats a missing status as pending.
func normalStatus(s graph.Status) (graph.Status, error) {
	if s == "" {
		return graph.StatusPending, nil
	}
	return graph.ParseStatus(string(s))
}

// normalPriority canonicalizes a stored priority. A missing one stays
// missing so an untouched file saves back unchanged.
func normalPriority(p graph.Priority) (graph.Priority, bool) {
	if p == "" {
		return "", true
	}
	return graph.ParsePriority(string(p))
}

// Save replaces tag in the file and leaves every other tag as it was. The
// write goes to a temp file that is renamed over the original.
func (f *File) Save(tag string, snap graph.Snapshot) error {
	raw, err := f.read()
	if err != nil {
		return err
	}

	out := make(map[string]json.RawMessage, len(raw)+1)
	for k, v := range raw {
		out[k] = json.RawMessage(v.Raw)
	}
	if snap.Tasks == nil {
		snap.Tasks = []graph.Task{}
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal tag %s: %w", tag, err)
	}
	out[tag] = body

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task file: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create task dir: %w", err)
	}
	if err := atomic.WriteFile(f.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write task file: %w", err)
	}
	return nil
}
