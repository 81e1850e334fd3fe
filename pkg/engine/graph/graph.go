// Package graph implements the dependency resolver: the directed
// graph of cell-to-cell dependencies, cycle detection, topological
// calculation order, and dirty propagation for incremental recompute.
package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

// ErrNodeNotFound indicates an operation referenced a node that is not
// in the graph.
var ErrNodeNotFound = errors.New("node not found")

// ErrCyclicEdge indicates an explicit edge addition was rejected
// because it would create a cycle.
var ErrCyclicEdge = errors.New("edge would create a cycle")

// Node is one cell in the dependency graph, identified by its
// "sheet!cell" ID. Dependencies and dependents are stored as ID sets
// so structural cycles are ordinary data. The two sets are mutual
// inverses; Build repairs the invariant after bulk loading.
type Node struct {
	ID           string
	Formula      string
	Deps         map[string]struct{}
	Dependents   map[string]struct{}
	Dirty        bool
	Value        models.Value
	NonConverged bool
}

// Graph manages cell dependencies and calculation order.
type Graph struct {
	nodes  map[string]*Node
	cycles [][]string

	// skipEdges holds the closing back-edge of each detected cycle,
	// keyed (from, to) in dependency direction. Ordering runs on the
	// acyclic view with these edges removed.
	skipEdges map[[2]string]struct{}

	// order caches the topological order; nil means stale.
	order []string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:     make(map[string]*Node),
		skipEdges: make(map[[2]string]struct{}),
	}
}

// AddNode adds a node with its dependency set, replacing any prior
// node with the same ID. The cached order is invalidated.
func (g *Graph) AddNode(id, formula string, deps []string) *Node {
	n := &Node{
		ID:         id,
		Formula:    formula,
		Deps:       make(map[string]struct{}, len(deps)),
		Dependents: make(map[string]struct{}),
	}
	for _, d := range deps {
		n.Deps[d] = struct{}{}
	}
	g.nodes[id] = n
	g.invalidate()
	return n
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// NodeIDs returns all node IDs in sorted order.
func (g *Graph) NodeIDs() []string {
	out := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (g *Graph) invalidate() {
	g.order = nil
	g.cycles = nil
	g.skipEdges = make(map[[2]string]struct{})
}

// Build derives every node's dependent set as the inverse of the
// dependency sets, creating bare nodes for dependencies that have no
// formula of their own, then detects cycles. Call once after bulk
// loading; AddEdge maintains both sets incrementally afterwards.
func (g *Graph) Build() {
	for _, n := range g.nodes {
		n.Dependents = make(map[string]struct{})
	}
	// Materialize nodes for plain-value dependencies first so the
	// inverse pass sees a complete node set.
	for _, id := range g.NodeIDs() {
		n := g.nodes[id]
		for dep := range n.Deps {
			if _, ok := g.nodes[dep]; !ok {
				g.nodes[dep] = &Node{
					ID:         dep,
					Deps:       make(map[string]struct{}),
					Dependents: make(map[string]struct{}),
				}
			}
		}
	}
	for id, n := range g.nodes {
		for dep := range n.Deps {
			g.nodes[dep].Dependents[id] = struct{}{}
		}
	}
	g.order = nil
	g.detectCycles()
}

// sortedDeps returns a node's dependencies in sorted order so
// traversals are deterministic across runs.
func (g *Graph) sortedDeps(n *Node) []string {
	out := make([]string, 0, len(n.Deps))
	for d := range n.Deps {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// detectCycles runs a depth-first search with an explicit recursion
// stack per connected component. Every back-edge to a node currently
// on the stack records one cycle: the stack path from the first
// occurrence of the target to the point of detection, closed by
// re-appending the target. The closing back-edge is remembered so
// ordering can run on an acyclic view.
func (g *Graph) detectCycles() {
	g.cycles = nil
	g.skipEdges = make(map[[2]string]struct{})

	const (
		unvisited = 0
		onStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(id string)
	visit = func(id string) {
		state[id] = onStack
		stack = append(stack, id)
		n := g.nodes[id]
		for _, dep := range g.sortedDeps(n) {
			if _, ok := g.nodes[dep]; !ok {
				continue
			}
			switch state[dep] {
			case unvisited:
				visit(dep)
			case onStack:
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				cycle := make([]string, 0, len(stack)-start+1)
				cycle = append(cycle, stack[start:]...)
				cycle = append(cycle, dep)
				g.cycles = append(g.cycles, cycle)
				g.skipEdges[[2]string{id, dep}] = struct{}{}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
	}

	for _, id := range g.NodeIDs() {
		if state[id] == unvisited {
			visit(id)
		}
	}
}

// Cycles returns the cycles detected by the last Build. Each cycle is
// a closed path: the first node ID appears again at the end.
func (g *Graph) Cycles() [][]string {
	return g.cycles
}

// CycleMembers returns the set of node IDs participating in any cycle.
func (g *Graph) CycleMembers() map[string]struct{} {
	members := make(map[string]struct{})
	for _, cycle := range g.cycles {
		for _, id := range cycle {
			members[id] = struct{}{}
		}
	}
	return members
}

// Order returns the topological calculation order: every node appears
// exactly once, dependencies before dependents. The order is computed
// on the acyclic view of the graph (each detected cycle's closing
// back-edge removed), produced by post-order depth-first traversal
// emitted in reverse finish order, and is stable across repeated calls
// absent graph changes.
func (g *Graph) Order() []string {
	if g.order != nil {
		return g.order
	}

	visited := make(map[string]bool, len(g.nodes))
	var finish []string

	// Traversal follows dependent edges (u before everything that
	// reads u); a dependent edge v -> u corresponds to dependency
	// edge u -> v, which is the form skipEdges is keyed in.
	var visit func(id string)
	visit = func(id string) {
		visited[id] = true
		n := g.nodes[id]
		for _, dep := range sortedSet(n.Dependents) {
			if _, skip := g.skipEdges[[2]string{dep, id}]; skip {
				continue
			}
			if !visited[dep] {
				visit(dep)
			}
		}
		finish = append(finish, id)
	}

	for _, id := range g.NodeIDs() {
		if !visited[id] {
			visit(id)
		}
	}

	order := make([]string, len(finish))
	for i, id := range finish {
		order[len(finish)-1-i] = id
	}
	g.order = order
	return order
}

// AddEdge records that from depends on to, keeping both inverse sets
// consistent. The edge is rejected with ErrCyclicEdge if a directed
// dependency path already exists from to back to from; this is the
// only graph mutation that can fail, and it fails without mutating
// anything.
func (g *Graph) AddEdge(from, to string) error {
	fn, ok := g.nodes[from]
	if !ok {
		return fmt.Errorf("add edge %s -> %s: %q: %w", from, to, from, ErrNodeNotFound)
	}
	tn, ok := g.nodes[to]
	if !ok {
		return fmt.Errorf("add edge %s -> %s: %q: %w", from, to, to, ErrNodeNotFound)
	}
	if g.pathExists(to, from) {
		return fmt.Errorf("add edge %s -> %s: %w", from, to, ErrCyclicEdge)
	}
	fn.Deps[to] = struct{}{}
	tn.Dependents[from] = struct{}{}
	g.order = nil
	return nil
}

// pathExists reports whether a directed dependency path exists from
// src to dst.
func (g *Graph) pathExists(src, dst string) bool {
	if src == dst {
		return true
	}
	seen := map[string]struct{}{src: {}}
	queue := []string{src}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n, ok := g.nodes[id]
		if !ok {
			continue
		}
		for dep := range n.Deps {
			if dep == dst {
				return true
			}
			if _, ok := seen[dep]; !ok {
				seen[dep] = struct{}{}
				queue = append(queue, dep)
			}
		}
	}
	return false
}

// MarkDirty marks the given nodes dirty and walks dependents
// breadth-first, marking every transitively-reachable dependent dirty
// exactly once. It returns the full dirty set (seeds included, sorted)
// so the caller can scope recomputation.
func (g *Graph) MarkDirty(ids []string) []string {
	dirty := make(map[string]struct{})
	var queue []string
	for _, id := range ids {
		n, ok := g.nodes[id]
		if !ok {
			continue
		}
		if _, seen := dirty[id]; !seen {
			dirty[id] = struct{}{}
			n.Dirty = true
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for dep := range g.nodes[id].Dependents {
			if _, seen := dirty[dep]; seen {
				continue
			}
			dirty[dep] = struct{}{}
			g.nodes[dep].Dirty = true
			queue = append(queue, dep)
		}
	}
	return sortedSet(dirty)
}

// ClearDirty clears the dirty flag on the given nodes.
func (g *Graph) ClearDirty(ids []string) {
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			n.Dirty = false
		}
	}
}

// DirtyNodes returns the IDs of all dirty nodes, sorted.
func (g *Graph) DirtyNodes() []string {
	dirty := make(map[string]struct{})
	for id, n := range g.nodes {
		if n.Dirty {
			dirty[id] = struct{}{}
		}
	}
	return sortedSet(dirty)
}

// SetValue stores a node's last-computed value.
func (g *Graph) SetValue(id string, v models.Value) {
	if n, ok := g.nodes[id]; ok {
		n.Value = v
	}
}

// Value returns a node's last-computed value.
func (g *Graph) Value(id string) (models.Value, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return models.Value{}, false
	}
	return n.Value, true
}
