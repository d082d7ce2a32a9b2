package graph

import (
	"sort"

	"github.com/joshharrison/taskloom/internal/taskid"
)

// Index is the resolved adjacency view of a snapshot. Edges point from a
// node to the nodes it depends on. Unresolvable refs are not edges; they are
// reported as Dangling.
type Index struct {
	Nodes    map[taskid.Address]Node
	Order    []taskid.Address
	Adj      map[taskid.Address][]taskid.Address // node -> its dependencies
	RevAdj   map[taskid.Address][]taskid.Address // node -> its dependents
	Dangling []Finding
}

// BuildIndex resolves every dependency ref in the snapshot.
func BuildIndex(snap *Snapshot) *Index {
	ix := &Index{
		Nodes:  make(map[taskid.Address]Node),
		Adj:    make(map[taskid.Address][]taskid.Address),
		RevAdj: make(map[taskid.Address][]taskid.Address),
	}

	nodes := snap.Nodes()
	for _, n := range nodes {
		ix.Nodes[n.Address] = n
		ix.Order = append(ix.Order, n.Address)
	}
	sortAddrs(ix.Order)

	edgeSet := make(map[[2]taskid.Address]bool)
	for _, n := range nodes {
		for _, ref := range n.Dependencies {
			to, ok := ix.resolve(n.Address, ref)
			if !ok {
				ix.Dangling = append(ix.Dangling, Finding{
					From:   n.Address,
					To:     ref,
					Reason: danglingReason(n.Address, ref),
				})
				continue
			}
			key := [2]taskid.Address{n.Address, to}
			if edgeSet[key] {
				continue
			}
			edgeSet[key] = true
			ix.Adj[n.Address] = append(ix.Adj[n.Address], to)
			ix.RevAdj[to] = append(ix.RevAdj[to], n.Address)
		}
	}

	for k := range ix.Adj {
		sortAddrs(ix.Adj[k])
	}
	for k := range ix.RevAdj {
		sortAddrs(ix.RevAdj[k])
	}
	return ix
}

func (ix *Index) resolve(owner taskid.Address, ref taskid.Ref) (taskid.Address, bool) {
	cands, err := ref.Candidates(owner)
	if err != nil {
		return taskid.Address{}, false
	}
	for _, c := range cands {
		if _, ok := ix.Nodes[c]; ok {
			return c, true
		}
	}
	return taskid.Address{}, false
}

func danglingReason(owner taskid.Address, ref taskid.Ref) string {
	if _, err := ref.Candidates(owner); err != nil {
		return "malformed reference"
	}
	return "target does not exist"
}

// NodeCount returns the number of tasks and subtasks in the index.
func (ix *Index) NodeCount() int {
	return len(ix.Nodes)
}

// DetectCycles returns every cycle found by a depth-first walk in address
// order. Each path is closed (first == last); a self-loop is [a, a].
// Uses DFS with coloring: white (unvisited), gray (on the stack), black (done).
func (ix *Index) DetectCycles() [][]taskid.Address {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[taskid.Address]int)
	var stack []taskid.Address
	var cycles [][]taskid.Address

	var dfs func(node taskid.Address)
	dfs = func(node taskid.Address) {
		color[node] = gray
		stack = append(stack, node)
		for _, next := range ix.Adj[node] {
			switch color[next] {
			case gray:
				start := len(stack) - 1
				for stack[start] != next {
					start--
				}
				cycle := make([]taskid.Address, 0, len(stack)-start+1)
				cycle = append(cycle, stack[start:]...)
				cycle = append(cycle, next)
				cycles = append(cycles, cycle)
			case white:
				dfs(next)
			}
		}
		stack = stack[:len(stack)-1]
		color[node] = black
	}

	for _, a := range ix.Order {
		if color[a] == white {
			dfs(a)
		}
	}
	return cycles
}

// PathTo returns a dependency path from -> ... -> to, or nil if to is not
// reachable from from. Neighbors are walked in address order so the path is
// deterministic.
func (ix *Index) PathTo(from, to taskid.Address) []taskid.Address {
	prev := map[taskid.Address]taskid.Address{}
	seen := map[taskid.Address]bool{from: true}
	queue := []taskid.Address{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			path := []taskid.Address{to}
			for cur != from {
				cur = prev[cur]
				path = append(path, cur)
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}
		for _, next := range ix.Adj[cur] {
			if !seen[next] {
				seen[next] = true
				prev[next] = cur
				queue = append(queue, next)
			}
		}
	}
	return nil
}

// Dependents returns every node that transitively depends on addr.
func (ix *Index) Dependents(addr taskid.Address) []taskid.Address {
	seen := map[taskid.Address]bool{}
	var out []taskid.Address
	queue := []taskid.Address{addr}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range ix.RevAdj[cur] {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
				queue = append(queue, d)
			}
		}
	}
	sortAddrs(out)
	return out
}

func sortAddrs(a []taskid.Address) {
	sort.Slice(a, func(i, j int) bool { return a[i].Less(a[j]) })
}
