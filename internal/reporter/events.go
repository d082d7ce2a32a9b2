package reporter

import (
	"fmt"
	"io"

	"github.com/joshharrison/taskloom/internal/graph"
	"github.com/joshharrison/taskloom/internal/lifecycle"
	"github.com/joshharrison/taskloom/internal/selector"
	"github.com/joshharrison/taskloom/internal/state"
	"github.com/joshharrison/taskloom/internal/ui"
)

// PrintResult writes the changes and advisories of one status update.
func PrintResult(w io.Writer, res *lifecycle.Result) {
	if len(res.Changes) == 0 {
		fmt.Fprintf(w, "%s %s already %s\n", ui.Dim("="), ui.BoldMagenta(res.Address), ui.StatusText(res.Status))
	}
	for _, c := range res.Changes {
		printChange(w, c)
	}
	for _, a := range res.Advisories {
		printAdvisory(w, a)
	}
}

func printChange(w io.Writer, c lifecycle.Change) {
	cause := ""
	if c.Cause == lifecycle.CauseCascade {
		cause = ui.Dim(fmt.Sprintf("  (cascade from %s)", c.CausedBy))
	}
	fmt.Fprintf(w, "%s %s %s → %s%s\n",
		ui.StatusIcon(string(c.To)), ui.BoldMagenta(c.Address),
		ui.Dim(string(c.From)), ui.StatusText(string(c.To)), cause)
}

func printAdvisory(w io.Writer, a lifecycle.Advisory) {
	switch a.Kind {
	case lifecycle.AdvisoryParentMayComplete:
		fmt.Fprintf(w, "%s all subtasks of %s are done; consider marking it done\n",
			ui.BoldYellow("💡"), ui.BoldMagenta(a.ParentID))
	default:
		fmt.Fprintf(w, "%s %s\n", ui.BoldYellow("💡"), a.Kind)
	}
}

// PrintBulk writes every item of a bulk update, failures included.
func PrintBulk(w io.Writer, report lifecycle.BulkReport) {
	for _, it := range report.Items {
		if it.Err != nil {
			fmt.Fprintf(w, "%s %s  %s\n", ui.Red("✗"), ui.BoldMagenta(it.Request.Address), ui.Red(it.Err.Error()))
			continue
		}
		PrintResult(w, it.Result)
	}
	failed := len(report.Failed())
	fmt.Fprintf(w, "\n%s", ui.Green(fmt.Sprintf("%d updated", len(report.Items)-failed)))
	if failed > 0 {
		fmt.Fprintf(w, ", %s", ui.Red(fmt.Sprintf("%d failed", failed)))
	}
	fmt.Fprintln(w)
}

// PrintValidation writes integrity findings and cycles.
func PrintValidation(w io.Writer, report graph.RepairReport) {
	if report.Clean() && report.Pruned == 0 {
		fmt.Fprintf(w, "%s dependency graph is valid\n", ui.Green("✓"))
		return
	}
	for _, f := range report.Findings {
		fmt.Fprintf(w, "%s %s depends on %s: %s\n", ui.Red("✗"), ui.BoldMagenta(f.From.String()), ui.Magenta(string(f.To)), f.Reason)
	}
	for _, c := range report.Cycles {
		fmt.Fprintf(w, "%s cycle %s\n", ui.Red("↻"), ui.BoldYellow(graph.FormatPath(c)))
	}
	if report.Pruned > 0 {
		fmt.Fprintf(w, "%s removed %d dangling dependencies\n", ui.Green("✓"), report.Pruned)
	}
	if len(report.Cycles) > 0 {
		fmt.Fprintf(w, "%s cycles are not broken automatically; use remove-dep\n", ui.Dim("note:"))
	}
}

// PrintNext writes ranked candidates; the first is the recommendation.
func PrintNext(w io.Writer, cands []selector.Candidate) {
	if len(cands) == 0 {
		fmt.Fprintf(w, "%s no task is ready; check blocked dependencies\n", ui.Dim("◌"))
		return
	}
	for i, c := range cands {
		marker := " "
		if i == 0 {
			marker = ui.BoldGreen("→")
		}
		parent := ""
		if c.ParentTitle != "" {
			parent = ui.Dim("  (" + c.ParentTitle + ")")
		}
		fmt.Fprintf(w, "%s %-8s %-8s %s%s\n", marker, ui.BoldMagenta(c.ID), ui.PriorityText(string(c.Priority)), c.Title, parent)
	}
}

// PrintAudit writes audit log entries oldest first.
func PrintAudit(w io.Writer, entries []state.AuditEntry) {
	if len(entries) == 0 {
		fmt.Fprintf(w, "%s\n", ui.Dim("audit log is empty"))
		return
	}
	for _, e := range entries {
		ts := ui.Dim(e.At.Local().Format("2006-01-02 15:04:05"))
		switch e.Type {
		case "advisory":
			fmt.Fprintf(w, "%s %s %s after %s\n", ts, ui.BoldYellow(e.Kind), ui.BoldMagenta(e.ParentID), e.Address)
		default:
			cause := ""
			if e.Cause == string(lifecycle.CauseCascade) {
				cause = ui.Dim(" (cascade from " + e.CausedBy + ")")
			}
			fmt.Fprintf(w, "%s %s %s → %s%s\n", ts, ui.BoldMagenta(e.Address), ui.Dim(e.From), ui.StatusText(e.To), cause)
		}
	}
}
