package reporter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/joshharrison/taskloom/internal/cpm"
	"github.com/joshharrison/taskloom/internal/taskid"
	"github.com/joshharrison/taskloom/internal/ui"
)

func joinAddrs(addrs []taskid.Address, sep string) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return strings.Join(parts, sep)
}

func (r *Reporter) title(a taskid.Address) string {
	return r.ix.Nodes[a].Title
}

// PrintPlan writes the wave plan and critical path of the open work.
func (r *Reporter) PrintPlan(w io.Writer, result *cpm.CPMResult) {
	blocked := 0
	for _, a := range result.TopoOrder {
		if result.Tasks[a].ES > 0 {
			blocked++
		}
	}
	maxWaveWidth := 0
	for _, wave := range result.Waves {
		if len(wave.Addresses) > maxWaveWidth {
			maxWaveWidth = len(wave.Addresses)
		}
	}

	fmt.Fprintf(w, "🎯 %s\n", ui.BoldCyan("Taskloom Plan"))
	fmt.Fprintln(w, ui.Cyan("═════════════════"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Open:      %s open, %s waiting on other work\n", ui.Bold(len(result.TopoOrder)), ui.Bold(blocked))
	fmt.Fprintf(w, "⚡ Critical path: %s (%d nodes)\n",
		ui.BoldYellow(joinAddrs(result.CriticalPath, " → ")), len(result.CriticalPath))
	fmt.Fprintf(w, "Waves:     %s\n", ui.Bold(len(result.Waves)))
	fmt.Fprintf(w, "Parallel:  %d nodes in widest wave\n", maxWaveWidth)
	fmt.Fprintln(w)

	for _, wave := range result.Waves {
		depStr := ui.Dim("independent")
		status := "ready"
		if wave.Index > 0 {
			depStr = ui.Dim(fmt.Sprintf("after wave %d", wave.Index))
			status = "blocked"
		}
		fmt.Fprintf(w, "🌊 %s %d (%d nodes, %s) %s:\n", ui.BoldWhite("Wave"), wave.Index+1, len(wave.Addresses), depStr, ui.WaveStatus(status))
		for _, a := range wave.Addresses {
			crit := ""
			if result.Tasks[a].IsCritical {
				crit = "  " + ui.BoldYellow("⚡ critical")
			}
			fmt.Fprintf(w, "  %s  %s%s\n", ui.BoldMagenta(a.String()), r.title(a), crit)
		}
		fmt.Fprintln(w)
	}
}

// PrintASCII writes the open graph wave by wave with each node's dependents.
func (r *Reporter) PrintASCII(w io.Writer, result *cpm.CPMResult) {
	fmt.Fprintf(w, "🔗 %s\n", ui.BoldCyan("Task Dependency Graph"))
	fmt.Fprintln(w, ui.Cyan("═══════════════════════"))
	fmt.Fprintln(w)

	for _, wave := range result.Waves {
		fmt.Fprintf(w, "%s 🌊 Wave %d %s\n", ui.Cyan("──"), wave.Index+1, ui.Cyan("──────────────────────────────"))
		for _, a := range wave.Addresses {
			crit := " "
			if result.Tasks[a].IsCritical {
				crit = ui.BoldYellow("⚡")
			}
			fmt.Fprintf(w, "  %s [%s] %s\n", crit, ui.BoldMagenta(a.String()), r.title(a))

			for _, next := range r.ix.RevAdj[a] {
				if _, open := result.Tasks[next]; open {
					fmt.Fprintf(w, "      %s %s\n", ui.Dim("└──→"), ui.Magenta(next.String()))
				}
			}
		}
		fmt.Fprintln(w)
	}
}

// PrintDOT writes the whole graph in Graphviz format. Edges run from a
// dependency to its dependent; critical open nodes are highlighted.
func (r *Reporter) PrintDOT(w io.Writer, result *cpm.CPMResult) {
	fmt.Fprintln(w, "digraph taskloom {")
	fmt.Fprintln(w, "  rankdir=LR;")
	fmt.Fprintln(w, "  node [shape=box, style=rounded];")
	fmt.Fprintln(w)

	critical := func(a taskid.Address) bool {
		ts, ok := result.Tasks[a]
		return ok && ts.IsCritical
	}

	for _, a := range r.ix.Order {
		n := r.ix.Nodes[a]
		label := fmt.Sprintf("%s\\n%s", a, strings.ReplaceAll(n.Title, `"`, `\"`))
		attrs := fmt.Sprintf(`label="%s"`, label)
		switch {
		case critical(a):
			attrs += `, style="rounded,bold", color=red`
		case n.Status.IsDone():
			attrs += `, style="rounded,filled", fillcolor=palegreen`
		}
		fmt.Fprintf(w, "  %q [%s];\n", a.String(), attrs)
	}

	fmt.Fprintln(w)

	var edges [][2]taskid.Address
	for from, deps := range r.ix.Adj {
		for _, dep := range deps {
			edges = append(edges, [2]taskid.Address{dep, from})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0].Less(edges[j][0])
		}
		return edges[i][1].Less(edges[j][1])
	})
	for _, e := range edges {
		style := ""
		if critical(e[0]) && critical(e[1]) {
			style = ` [color=red, penwidth=2]`
		}
		fmt.Fprintf(w, "  %q -> %q%s;\n", e[0].String(), e[1].String(), style)
	}

	fmt.Fprintln(w, "}")
}
