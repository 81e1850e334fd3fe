package graph

import (
	"errors"
	"reflect"
	"testing"

	"github.com/paintbox/sheetcalc/pkg/engine/models"
)

func buildChain(t *testing.T) *Graph {
	t.Helper()
	g := New()
	g.AddNode("Sheet1!A3", "=A1+A2", []string{"Sheet1!A1", "Sheet1!A2"})
	g.AddNode("Sheet1!A4", "=A3*2", []string{"Sheet1!A3"})
	g.Build()
	return g
}

func TestBuildDerivesDependents(t *testing.T) {
	g := buildChain(t)

	n, ok := g.Node("Sheet1!A1")
	if !ok {
		t.Fatal("expected bare node for Sheet1!A1")
	}
	if _, ok := n.Dependents["Sheet1!A3"]; !ok {
		t.Errorf("A1 dependents missing A3: %v", n.Dependents)
	}

	a3, _ := g.Node("Sheet1!A3")
	if _, ok := a3.Dependents["Sheet1!A4"]; !ok {
		t.Errorf("A3 dependents missing A4: %v", a3.Dependents)
	}
}

func TestOrderDependenciesFirst(t *testing.T) {
	g := buildChain(t)
	order := g.Order()

	pos := make(map[string]int, len(order))
	for i, id := range order {
		if _, dup := pos[id]; dup {
			t.Fatalf("node %s appears twice in order", id)
		}
		pos[id] = i
	}
	if len(order) != g.NodeCount() {
		t.Fatalf("order has %d entries, want %d", len(order), g.NodeCount())
	}
	if pos["Sheet1!A1"] > pos["Sheet1!A3"] || pos["Sheet1!A2"] > pos["Sheet1!A3"] {
		t.Errorf("inputs must precede A3: %v", order)
	}
	if pos["Sheet1!A3"] > pos["Sheet1!A4"] {
		t.Errorf("A3 must precede A4: %v", order)
	}
}

func TestOrderStable(t *testing.T) {
	g := buildChain(t)
	first := g.Order()
	second := g.Order()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("order changed between calls: %v vs %v", first, second)
	}
}

func TestTwoNodeCycle(t *testing.T) {
	g := New()
	g.AddNode("Sheet1!A1", "=B1+1", []string{"Sheet1!B1"})
	g.AddNode("Sheet1!B1", "=A1+1", []string{"Sheet1!A1"})
	g.Build()

	cycles := g.Cycles()
	if len(cycles) != 1 {
		t.Fatalf("want 1 cycle, got %d: %v", len(cycles), cycles)
	}
	c := cycles[0]
	if len(c) != 3 || c[0] != c[len(c)-1] {
		t.Errorf("cycle should be a closed two-node path, got %v", c)
	}

	// The cycle must not break ordering: every node still gets exactly
	// one position.
	order := g.Order()
	if len(order) != 2 {
		t.Fatalf("order has %d entries, want 2: %v", len(order), order)
	}
	seen := map[string]bool{}
	for _, id := range order {
		if seen[id] {
			t.Fatalf("duplicate %s in order", id)
		}
		seen[id] = true
	}

	members := g.CycleMembers()
	if len(members) != 2 {
		t.Errorf("want 2 cycle members, got %v", members)
	}
}

func TestMarkDirtyPropagatesToDependents(t *testing.T) {
	g := buildChain(t)

	dirty := g.MarkDirty([]string{"Sheet1!A1"})
	want := []string{"Sheet1!A1", "Sheet1!A3", "Sheet1!A4"}
	if !reflect.DeepEqual(dirty, want) {
		t.Errorf("dirty set %v, want %v", dirty, want)
	}

	// A4 has no dependents: only itself.
	g.ClearDirty(dirty)
	dirty = g.MarkDirty([]string{"Sheet1!A4"})
	if !reflect.DeepEqual(dirty, []string{"Sheet1!A4"}) {
		t.Errorf("dirty set %v, want only A4", dirty)
	}
}

func TestAddEdgeRejectsCycle(t *testing.T) {
	g := buildChain(t)

	// A4 already depends on A3; the reverse edge closes a cycle.
	err := g.AddEdge("Sheet1!A3", "Sheet1!A4")
	if !errors.Is(err, ErrCyclicEdge) {
		t.Fatalf("want ErrCyclicEdge, got %v", err)
	}

	// The rejected edge must not leave partial state behind.
	a3, _ := g.Node("Sheet1!A3")
	if _, ok := a3.Deps["Sheet1!A4"]; ok {
		t.Error("rejected edge was partially applied")
	}

	if err := g.AddEdge("Sheet1!A4", "Sheet1!A2"); err != nil {
		t.Fatalf("valid edge rejected: %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	g := New()
	g.AddNode("Sheet1!A1", "=B1+1", []string{"Sheet1!B1"})
	g.AddNode("Sheet1!B1", "=A1+1", []string{"Sheet1!A1"})
	g.AddNode("Sheet1!C1", "=A1*2", []string{"Sheet1!A1"})
	g.Build()
	g.SetValue("Sheet1!C1", models.NumberFromInt(4))

	snap, err := g.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	restored := New()
	if err := restored.Import(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if restored.NodeCount() != g.NodeCount() {
		t.Fatalf("restored %d nodes, want %d", restored.NodeCount(), g.NodeCount())
	}
	if len(restored.Cycles()) != len(g.Cycles()) {
		t.Errorf("restored %d cycles, want %d", len(restored.Cycles()), len(g.Cycles()))
	}
	v, ok := restored.Value("Sheet1!C1")
	if !ok || v.AsString() != "4" {
		t.Errorf("restored C1 value = %v (%v)", v, ok)
	}
}
