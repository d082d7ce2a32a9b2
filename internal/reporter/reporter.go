package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/joshharrison/taskloom/internal/graph"
	"github.com/joshharrison/taskloom/internal/taskid"
	"github.com/joshharrison/taskloom/internal/ui"
)

// Reporter renders a tag snapshot for the terminal.
type Reporter struct {
	Snap graph.Snapshot
	ix   *graph.Index
}

// New creates a new Reporter.
func New(snap graph.Snapshot) *Reporter {
	return &Reporter{Snap: snap, ix: graph.BuildIndex(&snap)}
}

// ListOptions narrows PrintList.
type ListOptions struct {
	Status       graph.Status // empty means every status
	WithSubtasks bool
}

// PrintList writes a terminal-friendly task table.
func (r *Reporter) PrintList(w io.Writer, opts ListOptions) {
	fmt.Fprintf(w, "%s %s  %s\n\n", ui.BoldCyan("📋 Tasks"), ui.Dim("["+r.tagName()+"]"), r.Summary())

	shown := 0
	for _, t := range r.Snap.Tasks {
		if opts.Status == "" || t.Status == opts.Status {
			r.printRow(w, "  ", t.Address(), t.Title, string(t.Status), string(t.Priority), t.Dependencies)
			shown++
		}
		if !opts.WithSubtasks {
			continue
		}
		for _, st := range t.Subtasks {
			if opts.Status != "" && st.Status != opts.Status {
				continue
			}
			r.printRow(w, "    ", taskid.Subtask(t.ID, st.ID), st.Title, string(st.Status), string(st.Priority), st.Dependencies)
			shown++
		}
	}
	if shown == 0 {
		fmt.Fprintf(w, "  %s\n", ui.Dim("no tasks"))
	}
}

func (r *Reporter) printRow(w io.Writer, indent string, addr taskid.Address, title, status, priority string, deps []taskid.Ref) {
	if len(title) > 50 {
		title = title[:47] + "..."
	}
	depStr := ""
	if len(deps) > 0 {
		depStr = ui.Dim("← " + r.depList(addr, deps))
	}
	fmt.Fprintf(w, "%s%s %-8s %-50s %-8s %s\n",
		indent, ui.StatusIcon(status), ui.BoldMagenta(addr.String()), title, ui.PriorityText(priority), depStr)
}

// depList renders refs as resolved addresses; dangling refs are marked.
func (r *Reporter) depList(owner taskid.Address, deps []taskid.Ref) string {
	parts := make([]string, len(deps))
	for i, ref := range deps {
		if to, ok := r.Snap.Resolve(owner, ref); ok {
			mark := ""
			if n := r.ix.Nodes[to]; n.Status.IsDone() {
				mark = "✓"
			}
			parts[i] = to.String() + mark
		} else {
			parts[i] = string(ref) + "?"
		}
	}
	return strings.Join(parts, ", ")
}

func (r *Reporter) tagName() string {
	if r.Snap.Tag == "" {
		return "master"
	}
	return r.Snap.Tag
}

// PrintTask writes the full record of a task or subtask.
func (r *Reporter) PrintTask(w io.Writer, addr taskid.Address) error {
	t, ok := r.Snap.Task(addr.Parent)
	if !ok {
		return &graph.NotFoundError{Address: addr.String()}
	}

	title, desc, details, strategy := t.Title, t.Description, t.Details, t.TestStrategy
	status, priority, deps := t.Status, t.Priority, t.Dependencies
	if addr.IsSubtask() {
		var sub *graph.Subtask
		for i := range t.Subtasks {
			if t.Subtasks[i].ID == addr.Sub {
				sub = &t.Subtasks[i]
			}
		}
		if sub == nil {
			return &graph.SubtaskNotFoundError{Address: addr.String(), ParentID: addr.Parent}
		}
		title, desc, details, strategy = sub.Title, sub.Description, sub.Details, sub.TestStrategy
		status, priority, deps = sub.Status, sub.Priority, sub.Dependencies
	}

	fmt.Fprintf(w, "%s %s\n", ui.TaskPrefix(addr.String()), ui.Bold(title))
	fmt.Fprintf(w, "Status:    %s\n", ui.StatusText(string(status)))
	fmt.Fprintf(w, "Priority:  %s\n", ui.PriorityText(string(priority)))
	if addr.IsSubtask() {
		fmt.Fprintf(w, "Parent:    %s %s\n", ui.BoldMagenta(taskid.Format(t.ID)), t.Title)
	}
	if len(deps) > 0 {
		fmt.Fprintf(w, "Depends:   %s\n", r.depList(addr, deps))
	}
	if dependents := r.ix.RevAdj[addr]; len(dependents) > 0 {
		names := make([]string, len(dependents))
		for i, d := range dependents {
			names[i] = d.String()
		}
		fmt.Fprintf(w, "Blocks:    %s\n", strings.Join(names, ", "))
		if all := r.ix.Dependents(addr); len(all) > len(dependents) {
			fmt.Fprintf(w, "Holds up:  %s\n", joinAddrs(all, ", "))
		}
	}
	if desc != "" {
		fmt.Fprintf(w, "\n%s\n", desc)
	}
	if details != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", ui.Bold("Details"), details)
	}
	if strategy != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", ui.Bold("Test strategy"), strategy)
	}

	if !addr.IsSubtask() && len(t.Subtasks) > 0 {
		fmt.Fprintf(w, "\n%s\n", ui.Bold("Subtasks"))
		for _, st := range t.Subtasks {
			r.printRow(w, "  ", taskid.Subtask(t.ID, st.ID), st.Title, string(st.Status), string(st.Priority), st.Dependencies)
		}
	}
	return nil
}

// Counts tallies top-level tasks by status.
func (r *Reporter) Counts() map[graph.Status]int {
	counts := make(map[graph.Status]int)
	for _, t := range r.Snap.Tasks {
		counts[t.Status]++
	}
	return counts
}

// Summary returns a one-line progress string.
func (r *Reporter) Summary() string {
	counts := r.Counts()
	total := len(r.Snap.Tasks)
	pct := 0
	if total > 0 {
		pct = counts[graph.StatusDone] * 100 / total
	}

	var parts []string
	for _, st := range graph.Statuses {
		if n := counts[st]; n > 0 {
			parts = append(parts, ui.StatusText(fmt.Sprintf("%d %s", n, st)))
		}
	}
	if len(parts) == 0 {
		return ui.Dim("0 tasks")
	}
	return fmt.Sprintf("%s %s", strings.Join(parts, ", "), ui.Dim(fmt.Sprintf("(%d%% of %d done)", pct, total)))
}

// JSON returns machine-readable output for any value.
func JSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
