package maybenot

import "testing"

func TestGuaranteedEdges_IgnoresLowProbabilityAndSentinels(t *testing.T) {
	st0 := NewState()
	st0.AddTransition(NormalSent, 1, 0.9)          // guaranteed edge
	st0.AddTransition(PaddingSent, 2, 0.01)        // below threshold, dropped
	st0.AddTransition(TunnelSent, StateEnd, 0.5)   // sentinel, dropped
	st0.AddTransition(TunnelRecv, StateSignal, 0.5) // sentinel, dropped
	st1 := NewState()
	st2 := NewState()

	m, err := NewMachine(Machine{States: []State{st0, st1, st2}})
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}

	adj := m.GuaranteedEdges()
	if len(adj[0]) != 1 || adj[0][0] != 1 {
		t.Fatalf("expected state 0 to have exactly one guaranteed edge to state 1, got %v", adj[0])
	}
	if len(adj[1]) != 0 || len(adj[2]) != 0 {
		t.Errorf("expected states 1 and 2 to have no outgoing guaranteed edges, got %v %v", adj[1], adj[2])
	}
}

func TestStronglyConnectedComponents_DetectsCycle(t *testing.T) {
	// 0 -> 1 -> 0 forms one SCC; 2 is isolated.
	st0 := NewState()
	st0.AddTransition(NormalSent, 1, 1.0)
	st1 := NewState()
	st1.AddTransition(NormalSent, 0, 1.0)
	st2 := NewState()

	m, err := NewMachine(Machine{States: []State{st0, st1, st2}})
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}

	comps := m.StronglyConnectedComponents()
	var cycleComp, isolatedComp []int
	for _, c := range comps {
		if len(c) == 2 {
			cycleComp = c
		}
		if len(c) == 1 && (c[0] == 2) {
			isolatedComp = c
		}
	}
	if cycleComp == nil {
		t.Fatalf("expected a two-state strongly connected component, got %v", comps)
	}
	if isolatedComp == nil {
		t.Fatalf("expected state 2 to be its own component, got %v", comps)
	}
}

func TestStronglyConnectedComponents_AcyclicMachineIsAllSingletons(t *testing.T) {
	st0 := NewState()
	st0.AddTransition(NormalSent, 1, 1.0)
	st1 := NewState()

	m, err := NewMachine(Machine{States: []State{st0, st1}})
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	comps := m.StronglyConnectedComponents()
	if len(comps) != 2 {
		t.Fatalf("expected 2 singleton components for an acyclic machine, got %d: %v", len(comps), comps)
	}
	for _, c := range comps {
		if len(c) != 1 {
			t.Errorf("expected every component to be a singleton, got %v", c)
		}
	}
}
