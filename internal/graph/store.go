package graph

import (
	"slices"
	"strconv"
	"sync"

	"github.com/joshharrison/taskloom/internal/taskid"
)

// Store holds the snapshot of one tag. Every mutation goes through Update,
// which applies the change to a copy and commits only if the validator guard
// accepts it.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewStore returns a store holding a deep copy of snap.
func NewStore(snap Snapshot) *Store {
	return &Store{snap: snap.Clone()}
}

// Snapshot returns a deep copy of the committed state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Tag returns the tag the store was loaded from.
func (s *Store) Tag() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Tag
}

// Update runs fn against a tentative copy of the snapshot. If fn fails or
// the result introduces dangling refs or cycles, the committed state is left
// untouched.
func (s *Store) Update(fn func(*Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.snap.Clone()
	if err := fn(&work); err != nil {
		return err
	}
	if err := guard(&s.snap, &work); err != nil {
		return err
	}
	s.snap = work
	return nil
}

// FindTask returns a copy of the task with the given id.
func (s *Store) FindTask(id int) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.snap.Task(id)
	if !ok {
		return Task{}, false
	}
	one := Snapshot{Tasks: []Task{*t}}.Clone()
	return one.Tasks[0], true
}

// FindSubtask resolves a dotted address and returns copies of the parent
// task and the subtask.
func (s *Store) FindSubtask(addr string) (Task, Subtask, error) {
	a, err := taskid.Parse(addr)
	if err != nil {
		return Task{}, Subtask{}, err
	}
	if !a.IsSubtask() {
		return Task{}, Subtask{}, &taskid.MalformedIDError{Input: addr, Reason: "expected a subtask address N.M"}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	ti, si, err := s.snap.locate(a)
	if err != nil {
		return Task{}, Subtask{}, err
	}
	one := Snapshot{Tasks: []Task{s.snap.Tasks[ti]}}.Clone()
	return one.Tasks[0], one.Tasks[0].Subtasks[si], nil
}

// AddTask appends a pending task with the next id. Ids are never reused
// within a tag, even after deletion.
func (s *Store) AddTask(nt NewTask) (Task, error) {
	var created Task
	err := s.Update(func(snap *Snapshot) error {
		next := snap.Metadata.LastID
		for _, t := range snap.Tasks {
			if t.ID > next {
				next = t.ID
			}
		}
		next++

		addr := taskid.Task(next)
		deps, err := resolveNewDeps(snap, addr, nt.Dependencies)
		if err != nil {
			return err
		}
		created = Task{
			ID:           next,
			Title:        nt.Title,
			Description:  nt.Description,
			Details:      nt.Details,
			TestStrategy: nt.TestStrategy,
			Status:       StatusPending,
			Priority:     priorityOrDefault(nt.Priority),
			Dependencies: deps,
		}
		snap.Tasks = append(snap.Tasks, created)
		snap.Metadata.LastID = next
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	return created, nil
}

// AddSubtask appends a pending subtask to the given parent.
func (s *Store) AddSubtask(parentID int, nt NewTask) (Subtask, error) {
	var created Subtask
	err := s.Update(func(snap *Snapshot) error {
		parent, ok := snap.Task(parentID)
		if !ok {
			return &NotFoundError{Address: taskid.Format(parentID)}
		}
		next := 0
		for _, st := range parent.Subtasks {
			if st.ID > next {
				next = st.ID
			}
		}
		next++
		for shadowsTaskRef(parent, next) {
			next++
		}

		addr := taskid.Subtask(parentID, next)
		// the new subtask must exist before sibling refs can resolve
		created = Subtask{
			ID:           next,
			Title:        nt.Title,
			Description:  nt.Description,
			Details:      nt.Details,
			TestStrategy: nt.TestStrategy,
			Status:       StatusPending,
			Priority:     nt.Priority,
			Dependencies: []taskid.Ref{},
		}
		parent.Subtasks = append(parent.Subtasks, created)

		deps, err := resolveNewDeps(snap, addr, nt.Dependencies)
		if err != nil {
			return err
		}
		parent.Subtasks[len(parent.Subtasks)-1].Dependencies = deps
		created.Dependencies = deps
		return nil
	})
	if err != nil {
		return Subtask{}, err
	}
	return created, nil
}

// shadowsTaskRef reports whether a sibling already holds a bare ref equal
// to id. Such a ref names the top-level task until a subtask takes the id.
func shadowsTaskRef(parent *Task, id int) bool {
	ref := taskid.Ref(strconv.Itoa(id))
	for _, st := range parent.Subtasks {
		if slices.Contains(st.Dependencies, ref) {
			return true
		}
	}
	return false
}

func priorityOrDefault(p Priority) Priority {
	if p == "" {
		return PriorityMedium
	}
	return p
}

// resolveNewDeps validates creation-time dependencies of the node at owner.
func resolveNewDeps(snap *Snapshot, owner taskid.Address, targets []string) ([]taskid.Ref, error) {
	deps := []taskid.Ref{}
	seen := map[taskid.Address]bool{}
	for _, raw := range targets {
		to, err := taskid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ref, err := edgeRef(snap, owner, to)
		if err != nil {
			return nil, err
		}
		if seen[to] {
			return nil, &DuplicateEdgeError{From: owner, To: to}
		}
		seen[to] = true
		deps = append(deps, ref)
	}
	return deps, nil
}

// edgeRef checks that both ends of from -> to exist and returns the ref to
// persist. A self-reference is a one-node cycle.
func edgeRef(snap *Snapshot, from, to taskid.Address) (taskid.Ref, error) {
	if _, _, err := snap.locate(from); err != nil {
		return "", err
	}
	if _, _, err := snap.locate(to); err != nil {
		return "", err
	}
	if from == to {
		return "", &CycleError{From: from, To: to, Path: []taskid.Address{from, from}}
	}
	ref := taskid.RefTo(from, to)
	if got, ok := snap.Resolve(from, ref); !ok || got != to {
		return "", &AmbiguousRefError{From: from, To: to}
	}
	return ref, nil
}

// AddDependency records that from depends on to.
func (s *Store) AddDependency(from, to string) error {
	fa, err := taskid.Parse(from)
	if err != nil {
		return err
	}
	ta, err := taskid.Parse(to)
	if err != nil {
		return err
	}

	return s.Update(func(snap *Snapshot) error {
		ref, err := edgeRef(snap, fa, ta)
		if err != nil {
			return err
		}
		ix := BuildIndex(snap)
		for _, d := range ix.Adj[fa] {
			if d == ta {
				return &DuplicateEdgeError{From: fa, To: ta}
			}
		}
		if path := ix.PathTo(ta, fa); path != nil {
			return &CycleError{From: fa, To: ta, Path: append([]taskid.Address{fa}, path...)}
		}
		deps, err := snap.depsPtr(fa)
		if err != nil {
			return err
		}
		*deps = append(*deps, ref)
		return nil
	})
}

// RemoveDependency drops every ref in from's list that denotes to. It
// reports false when there was nothing to remove.
func (s *Store) RemoveDependency(from, to string) (bool, error) {
	fa, err := taskid.Parse(from)
	if err != nil {
		return false, err
	}
	ta, err := taskid.Parse(to)
	if err != nil {
		return false, err
	}

	removed := false
	err = s.Update(func(snap *Snapshot) error {
		deps, err := snap.depsPtr(fa)
		if err != nil {
			return nil
		}
		kept := make([]taskid.Ref, 0, len(*deps))
		for _, ref := range *deps {
			if refDenotes(snap, fa, ref, ta) {
				removed = true
				continue
			}
			kept = append(kept, ref)
		}
		*deps = kept
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// refDenotes reports whether ref, owned by owner, points at target. Refs
// that no longer resolve match any address they could have meant.
func refDenotes(snap *Snapshot, owner taskid.Address, ref taskid.Ref, target taskid.Address) bool {
	if got, ok := snap.Resolve(owner, ref); ok {
		return got == target
	}
	cands, err := ref.Candidates(owner)
	if err != nil {
		return false
	}
	for _, c := range cands {
		if c == target {
			return true
		}
	}
	return false
}

// DeleteNode removes a task (with its subtasks) or a single subtask and
// scrubs every ref that pointed at a removed node. It returns the number of
// refs scrubbed.
func (s *Store) DeleteNode(addr string) (int, error) {
	a, err := taskid.Parse(addr)
	if err != nil {
		return 0, err
	}

	scrubbed := 0
	err = s.Update(func(snap *Snapshot) error {
		ti, si, err := snap.locate(a)
		if err != nil {
			return err
		}

		gone := map[taskid.Address]bool{a: true}
		if si < 0 {
			for _, st := range snap.Tasks[ti].Subtasks {
				gone[taskid.Subtask(a.Parent, st.ID)] = true
			}
		}

		// resolve against the pre-deletion graph so a sibling ref is not
		// mistaken for a top-level task once the sibling is gone
		before := snap.Clone()
		for _, n := range before.Nodes() {
			if gone[n.Address] {
				continue
			}
			deps, _ := snap.depsPtr(n.Address)
			kept := make([]taskid.Ref, 0, len(*deps))
			for _, ref := range *deps {
				if to, ok := before.Resolve(n.Address, ref); ok && gone[to] {
					scrubbed++
					continue
				}
				kept = append(kept, ref)
			}
			*deps = kept
		}

		if si < 0 {
			snap.Tasks = append(snap.Tasks[:ti], snap.Tasks[ti+1:]...)
		} else {
			subs := snap.Tasks[ti].Subtasks
			snap.Tasks[ti].Subtasks = append(subs[:si], subs[si+1:]...)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return scrubbed, nil
}

// Validate runs both validator checks on the committed snapshot.
func (s *Store) Validate() RepairReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return RepairReport{
		Mode:     RepairReportOnly.String(),
		Findings: CheckIntegrity(&s.snap),
		Cycles:   CheckCycles(&s.snap),
	}
}

// Repair reports integrity findings and cycles. In prune mode every
// dangling ref is removed; cycles are only reported.
func (s *Store) Repair(mode RepairMode) (RepairReport, error) {
	report := s.Validate()
	report.Mode = mode.String()
	if mode != RepairPrune || len(report.Findings) == 0 {
		return report, nil
	}

	err := s.Update(func(snap *Snapshot) error {
		for _, n := range snap.Nodes() {
			deps, _ := snap.depsPtr(n.Address)
			kept := make([]taskid.Ref, 0, len(*deps))
			for _, ref := range *deps {
				if _, ok := snap.Resolve(n.Address, ref); !ok {
					report.Pruned++
					continue
				}
				kept = append(kept, ref)
			}
			*deps = kept
		}
		return nil
	})
	if err != nil {
		return RepairReport{}, err
	}
	return report, nil
}
