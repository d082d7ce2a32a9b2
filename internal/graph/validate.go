package graph

import (
	"fmt"
	"sort"

	"github.com/joshharrison/taskloom/internal/taskid"
)

// Finding is a dependency ref that does not resolve to an existing node.
type Finding struct {
	From   taskid.Address `json:"from"`
	To     taskid.Ref     `json:"to"`
	Reason string         `json:"reason"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s -> %s: %s", f.From, f.To, f.Reason)
}

func (f Finding) key() string {
	return f.From.String() + ">" + string(f.To)
}

// CheckIntegrity returns every dangling dependency in the snapshot, in
// address order of the owning node.
func CheckIntegrity(snap *Snapshot) []Finding {
	ix := BuildIndex(snap)
	out := ix.Dangling
	sortFindings(out)
	return out
}

// CheckCycles returns every dependency cycle in the snapshot.
func CheckCycles(snap *Snapshot) [][]taskid.Address {
	return BuildIndex(snap).DetectCycles()
}

func sortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool { return fs[i].From.Less(fs[j].From) })
}

// RepairMode selects what Repair does with integrity findings.
type RepairMode int

const (
	// RepairReportOnly lists findings without mutating anything.
	RepairReportOnly RepairMode = iota
	// RepairPrune removes every dangling ref.
	RepairPrune
)

// ParseRepairMode accepts "report" or "prune".
func ParseRepairMode(s string) (RepairMode, error) {
	switch s {
	case "", "report":
		return RepairReportOnly, nil
	case "prune":
		return RepairPrune, nil
	}
	return RepairReportOnly, fmt.Errorf("unknown repair mode %q (want report or prune)", s)
}

func (m RepairMode) String() string {
	if m == RepairPrune {
		return "prune"
	}
	return "report"
}

// RepairReport describes what Repair found and did. Cycles are listed but
// never broken automatically.
type RepairReport struct {
	Mode     string             `json:"mode"`
	Findings []Finding          `json:"findings"`
	Cycles   [][]taskid.Address `json:"cycles"`
	Pruned   int                `json:"pruned"`
}

// Clean reports whether nothing was found.
func (r RepairReport) Clean() bool {
	return len(r.Findings) == 0 && len(r.Cycles) == 0
}

// guard compares a tentative snapshot with the committed one and rejects
// any integrity finding or cycle the mutation introduced, and any kept ref
// that would silently resolve to a different node. Pre-existing problems do
// not block unrelated edits.
func guard(before, after *Snapshot) error {
	bix, aix := BuildIndex(before), BuildIndex(after)

	old := make(map[string]bool, len(bix.Dangling))
	for _, f := range bix.Dangling {
		old[f.key()] = true
	}
	var added []Finding
	for _, f := range aix.Dangling {
		if !old[f.key()] {
			added = append(added, f)
		}
	}
	added = append(added, retargeted(before, after)...)

	oldCycles := make(map[string]bool)
	for _, c := range bix.DetectCycles() {
		oldCycles[cycleKey(c)] = true
	}
	var newCycles [][]taskid.Address
	for _, c := range aix.DetectCycles() {
		if !oldCycles[cycleKey(c)] {
			newCycles = append(newCycles, c)
		}
	}

	if len(added) == 0 && len(newCycles) == 0 {
		return nil
	}
	sortFindings(added)
	return &ValidationError{Findings: added, Cycles: newCycles}
}

// retargeted lists refs present in both snapshots whose owner still exists
// but whose target changed, e.g. a bare ref captured by a new sibling.
func retargeted(before, after *Snapshot) []Finding {
	was := make(map[string]taskid.Address)
	for _, n := range before.Nodes() {
		for _, ref := range n.Dependencies {
			if to, ok := before.Resolve(n.Address, ref); ok {
				was[Finding{From: n.Address, To: ref}.key()] = to
			}
		}
	}
	var out []Finding
	for _, n := range after.Nodes() {
		for _, ref := range n.Dependencies {
			prev, ok := was[Finding{From: n.Address, To: ref}.key()]
			if !ok {
				continue
			}
			// refs that stopped resolving are reported as dangling
			if to, ok := after.Resolve(n.Address, ref); ok && to != prev {
				out = append(out, Finding{
					From:   n.Address,
					To:     ref,
					Reason: fmt.Sprintf("reference would move from %s to %s", prev, to),
				})
			}
		}
	}
	return out
}

// cycleKey identifies a cycle independent of its starting node.
func cycleKey(path []taskid.Address) string {
	if len(path) == 0 {
		return ""
	}
	ring := path[:len(path)-1]
	if len(ring) == 0 {
		ring = path
	}
	lo := 0
	for i := range ring {
		if ring[i].Less(ring[lo]) {
			lo = i
		}
	}
	key := ""
	for i := range ring {
		key += ring[(lo+i)%len(ring)].String() + ">"
	}
	return key
}
