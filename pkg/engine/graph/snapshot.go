package graph

import (
	"fmt"

	"github.com/tiendc/go-deepcopy"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

// NodeSnapshot is the exported form of one graph node.
type NodeSnapshot struct {
	// ID is the "sheet!cell" node identifier.
	ID string `json:"id"`
	// Formula is the originating formula text, if any.
	Formula string `json:"formula,omitempty"`
	// Deps lists the node IDs this node reads from.
	Deps []string `json:"deps,omitempty"`
	// Dirty is the node's dirty flag.
	Dirty bool `json:"dirty,omitempty"`
	// NonConverged marks a cycle member that failed to converge.
	NonConverged bool `json:"non_converged,omitempty"`
	// Value is the node's last-computed value.
	Value models.Value `json:"value"`
}

// Snapshot is the full graph exported as plain structured data:
// nodes, edges (via each node's dependency list), detected cycles, and
// the current topological order. It can be re-imported to restore a
// prior session.
type Snapshot struct {
	// Nodes lists every node, sorted by ID.
	Nodes []NodeSnapshot `json:"nodes"`
	// Cycles lists detected cycles as closed ID paths.
	Cycles [][]string `json:"cycles,omitempty"`
	// Order is the current topological calculation order.
	Order []string `json:"order"`
}

// Export captures the graph as a detached snapshot. The returned data
// shares no memory with the live graph.
func (g *Graph) Export() (*Snapshot, error) {
	snap := &Snapshot{Order: g.Order()}
	for _, id := range g.NodeIDs() {
		n := g.nodes[id]
		snap.Nodes = append(snap.Nodes, NodeSnapshot{
			ID:           n.ID,
			Formula:      n.Formula,
			Deps:         sortedSet(n.Deps),
			Dirty:        n.Dirty,
			NonConverged: n.NonConverged,
			Value:        n.Value,
		})
	}
	if len(g.cycles) > 0 {
		if err := deepcopy.Copy(&snap.Cycles, g.cycles); err != nil {
			return nil, fmt.Errorf("export graph: %w", err)
		}
	}
	var detachedOrder []string
	if err := deepcopy.Copy(&detachedOrder, snap.Order); err != nil {
		return nil, fmt.Errorf("export graph: %w", err)
	}
	snap.Order = detachedOrder
	return snap, nil
}

// Import replaces the graph contents with a previously exported
// snapshot. Dependent sets and cycles are rebuilt from the imported
// dependency sets rather than trusted from the snapshot.
func (g *Graph) Import(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("import graph: nil snapshot")
	}
	g.nodes = make(map[string]*Node, len(snap.Nodes))
	g.invalidate()
	for _, ns := range snap.Nodes {
		n := g.AddNode(ns.ID, ns.Formula, ns.Deps)
		n.Dirty = ns.Dirty
		n.NonConverged = ns.NonConverged
		n.Value = ns.Value
	}
	g.Build()
	return nil
}
