// Package selector picks the next ready task or subtask from a snapshot.
package selector

import (
	"sort"

	"github.com/joshharrison/taskloom/internal/graph"
	"github.com/joshharrison/taskloom/internal/taskid"
)

// Candidate is a ready node. Priority is effective: a subtask without its
// own priority takes the parent's.
type Candidate struct {
	Address      taskid.Address `json:"-"`
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Priority     graph.Priority `json:"priority"`
	Dependencies int            `json:"dependencies"`
	ParentTitle  string         `json:"parent_title,omitempty"`
}

// Next returns the highest-ranked ready node, or false when nothing is ready.
func Next(snap graph.Snapshot) (Candidate, bool) {
	all := Eligible(snap)
	if len(all) == 0 {
		return Candidate{}, false
	}
	return all[0], true
}

// Eligible returns every ready node, best first: higher priority, then fewer
// dependencies, then lower address.
func Eligible(snap graph.Snapshot) []Candidate {
	var out []Candidate
	for i := range snap.Tasks {
		t := &snap.Tasks[i]
		addr := t.Address()
		parentReady := depsDone(&snap, addr, t.Dependencies)

		if len(t.Subtasks) == 0 {
			if t.Status == graph.StatusPending && parentReady {
				out = append(out, Candidate{
					Address:      addr,
					Title:        t.Title,
					Priority:     effective(t.Priority, ""),
					Dependencies: len(t.Dependencies),
				})
			}
			continue
		}

		if !parentReady || blocksSubtasks(t.Status) {
			continue
		}
		for j := range t.Subtasks {
			st := &t.Subtasks[j]
			saddr := taskid.Subtask(t.ID, st.ID)
			if st.Status != graph.StatusPending || !depsDone(&snap, saddr, st.Dependencies) {
				continue
			}
			out = append(out, Candidate{
				Address:      saddr,
				Title:        st.Title,
				Priority:     effective(st.Priority, t.Priority),
				Dependencies: len(st.Dependencies),
				ParentTitle:  t.Title,
			})
		}

		// a parent is offered only once every subtask is settled
		if t.Status == graph.StatusPending && subtasksSettled(t.Subtasks) {
			out = append(out, Candidate{
				Address:      addr,
				Title:        t.Title,
				Priority:     effective(t.Priority, ""),
				Dependencies: len(t.Dependencies),
			})
		}
	}

	for i := range out {
		out[i].ID = out[i].Address.String()
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		if a.Dependencies != b.Dependencies {
			return a.Dependencies < b.Dependencies
		}
		return a.Address.Less(b.Address)
	})
	return out
}

// depsDone reports whether every ref resolves to a done node. A dangling
// ref is never satisfied.
func depsDone(snap *graph.Snapshot, owner taskid.Address, deps []taskid.Ref) bool {
	for _, ref := range deps {
		to, ok := snap.Resolve(owner, ref)
		if !ok {
			return false
		}
		st, err := snap.StatusOf(to)
		if err != nil || !st.IsDone() {
			return false
		}
	}
	return true
}

func blocksSubtasks(s graph.Status) bool {
	return s == graph.StatusDone || s == graph.StatusCancelled || s == graph.StatusDeferred
}

func subtasksSettled(subs []graph.Subtask) bool {
	for _, s := range subs {
		if !s.Status.IsDone() && s.Status != graph.StatusCancelled {
			return false
		}
	}
	return true
}

func effective(own, parent graph.Priority) graph.Priority {
	if own != "" {
		return own
	}
	if parent != "" {
		return parent
	}
	return graph.PriorityMedium
}
