package cpm

import (
	"fmt"
	"sort"

	"github.com/joshharrison/taskloom/internal/graph"
	"github.com/joshharrison/taskloom/internal/taskid"
)

// open is the part of the graph still to be worked: every node that is not
// done or cancelled, with the edges between such nodes. Finished
// dependencies no longer constrain the schedule.
type open struct {
	nodes []taskid.Address
	preds map[taskid.Address][]taskid.Address // node -> dependencies
	succs map[taskid.Address][]taskid.Address // node -> dependents
}

func openPart(snap *graph.Snapshot) *open {
	ix := graph.BuildIndex(snap)
	live := func(a taskid.Address) bool {
		n := ix.Nodes[a]
		return n.Status != graph.StatusDone && n.Status != graph.StatusCancelled
	}

	o := &open{
		preds: make(map[taskid.Address][]taskid.Address),
		succs: make(map[taskid.Address][]taskid.Address),
	}
	for _, a := range ix.Order {
		if !live(a) {
			continue
		}
		o.nodes = append(o.nodes, a)
		for _, dep := range ix.Adj[a] {
			if live(dep) {
				o.preds[a] = append(o.preds[a], dep)
				o.succs[dep] = append(o.succs[dep], a)
			}
		}
	}
	return o
}

// Analyze performs critical path method analysis on the open part of the
// snapshot. Every node has duration 1, so the total duration is the number
// of waves.
func Analyze(snap *graph.Snapshot) (*CPMResult, error) {
	g := openPart(snap)
	order, err := topoSort(g)
	if err != nil {
		return nil, err
	}

	const duration = 1

	result := &CPMResult{
		Tasks:     make(map[taskid.Address]*TaskSchedule),
		TopoOrder: order,
	}

	// Initialize schedules
	for _, a := range order {
		result.Tasks[a] = &TaskSchedule{Address: a}
	}

	// Forward pass: compute ES and EF
	for _, a := range order {
		ts := result.Tasks[a]
		// ES = max(EF of all predecessors)
		es := 0
		for _, pred := range g.preds[a] {
			if ef := result.Tasks[pred].EF; ef > es {
				es = ef
			}
		}
		ts.ES = es
		ts.EF = es + duration
	}

	// Total duration
	for _, ts := range result.Tasks {
		if ts.EF > result.TotalDuration {
			result.TotalDuration = ts.EF
		}
	}

	// Backward pass in reverse topological order: nodes nothing depends on
	// finish at the end; the rest finish before their earliest successor.
	for i := len(order) - 1; i >= 0; i-- {
		a := order[i]
		ts := result.Tasks[a]

		lf := result.TotalDuration
		for _, succ := range g.succs[a] {
			if ls := result.Tasks[succ].LS; ls < lf {
				lf = ls
			}
		}
		ts.LF = lf
		ts.LS = lf - duration
		ts.Slack = ts.LS - ts.ES
		ts.IsCritical = ts.Slack == 0
	}

	// Build critical path (critical nodes in topological order)
	for _, a := range order {
		if result.Tasks[a].IsCritical {
			result.CriticalPath = append(result.CriticalPath, a)
		}
	}

	// Compute waves: group nodes by earliest start time
	result.Waves = computeWaves(result)

	return result, nil
}

// topoSort performs Kahn's algorithm, dependencies before dependents.
func topoSort(g *open) ([]taskid.Address, error) {
	inDegree := make(map[taskid.Address]int)
	for _, a := range g.nodes {
		inDegree[a] = len(g.preds[a])
	}

	// Start with nodes that have no open dependencies, in address order
	var queue []taskid.Address
	for _, a := range g.nodes {
		if inDegree[a] == 0 {
			queue = append(queue, a)
		}
	}

	var order []taskid.Address
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var newReady []taskid.Address
		for _, succ := range g.succs[node] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				newReady = append(newReady, succ)
			}
		}
		sortAddrs(newReady)
		queue = append(queue, newReady...)
	}

	if len(order) != len(g.nodes) {
		return nil, fmt.Errorf("topological sort failed: graph has a cycle (%d of %d nodes sorted)", len(order), len(g.nodes))
	}
	return order, nil
}

// computeWaves groups nodes by their earliest start time.
func computeWaves(result *CPMResult) []Wave {
	esGroups := make(map[int][]taskid.Address)
	for _, a := range result.TopoOrder {
		es := result.Tasks[a].ES
		esGroups[es] = append(esGroups[es], a)
	}

	esValues := make([]int, 0, len(esGroups))
	for es := range esGroups {
		esValues = append(esValues, es)
	}
	sort.Ints(esValues)

	waves := make([]Wave, len(esValues))
	for i, es := range esValues {
		addrs := esGroups[es]
		sortAddrs(addrs)

		hasCritical := false
		for _, a := range addrs {
			result.Tasks[a].Wave = i
			if result.Tasks[a].IsCritical {
				hasCritical = true
			}
		}

		// Critical nodes first within a wave
		sort.SliceStable(addrs, func(x, y int) bool {
			return result.Tasks[addrs[x]].IsCritical && !result.Tasks[addrs[y]].IsCritical
		})

		waves[i] = Wave{
			Index:      i,
			Addresses:  addrs,
			IsCritical: hasCritical,
		}
	}
	return waves
}

func sortAddrs(a []taskid.Address) {
	sort.Slice(a, func(i, j int) bool { return a[i].Less(a[j]) })
}
