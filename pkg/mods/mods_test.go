package mods

import (
	"math"
	"testing"
)

func deltas(s State) []float64 {
	out := make([]float64, s.Len())
	for i, e := range s.Entries() {
		out[i] = e.Delta
	}
	return out
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRefreshCapsModifications(t *testing.T) {
	c := NewCombinator([]Modification{{Residue: 'M', Delta: 16}})

	s := Empty()
	for i := 0; i < 4; i++ {
		s = c.Refresh(s, 'M', 2)
	}
	got := deltas(s)
	want := []float64{0, 16, 32}
	if len(got) != len(want) {
		t.Fatalf("deltas = %v, want %v", got, want)
	}
	for i := range want {
		if !near(got[i], want[i]) {
			t.Errorf("delta %d = %v, want %v", i, got[i], want[i])
		}
	}
	for _, e := range s.Entries() {
		if e.Count > 2 {
			t.Errorf("entry %+v exceeds the cap", e)
		}
	}
}

func TestRefreshUnmodifiedResidue(t *testing.T) {
	c := NewCombinator([]Modification{{Residue: 'S', Delta: 79.966}})
	s := c.Refresh(Empty(), 'A', 3)
	if s.Len() != 1 || s.Entries()[0].Delta != 0 {
		t.Errorf("unmodified residue changed the state: %v", s.Entries())
	}
}

func TestRefreshZeroCap(t *testing.T) {
	c := NewCombinator([]Modification{{Residue: 'S', Delta: 79.966}})
	if s := c.Refresh(Empty(), 'S', 0); s.Len() != 1 {
		t.Errorf("max=0 should keep only the unmodified entry, got %v", s.Entries())
	}
}

func TestRefreshDoesNotMutate(t *testing.T) {
	c := NewCombinator([]Modification{{Residue: 'S', Delta: 80}, {Residue: 'T', Delta: 80}})
	base := c.Refresh(Empty(), 'S', 3)
	before := deltas(base)

	_ = c.Refresh(base, 'T', 3)
	_ = c.Refresh(base, 'S', 3)

	after := deltas(base)
	if len(before) != len(after) {
		t.Fatalf("state mutated: %v -> %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("state mutated: %v -> %v", before, after)
		}
	}
}

func TestRefreshMergesEqualSums(t *testing.T) {
	c := NewCombinator([]Modification{
		{Residue: 'N', Delta: 0.984016},
		{Residue: 'Q', Delta: 0.984016},
	})
	s := c.Refresh(Empty(), 'N', 3)
	s = c.Refresh(s, 'Q', 3)
	// 0, +0.98, +1.97; N-only and Q-only land on the same delta
	if s.Len() != 3 {
		t.Errorf("deltas = %v, want 3 distinct", deltas(s))
	}
}

func TestFloor(t *testing.T) {
	c := NewCombinator([]Modification{
		{Residue: 'Q', Delta: -17.026549},
		{Residue: 'M', Delta: 15.994915},
	})
	if got := c.Floor(2); !near(got, -34.053098) {
		t.Errorf("Floor(2) = %v", got)
	}
	if got := c.Floor(0); got != 0 {
		t.Errorf("Floor(0) = %v", got)
	}
	var none *Combinator
	if got := none.Floor(3); got != 0 {
		t.Errorf("nil Floor = %v", got)
	}
	if got := NewCombinator(nil).Floor(3); got != 0 {
		t.Errorf("Floor without mods = %v", got)
	}
}
