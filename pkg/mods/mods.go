/*
Package mods enumerates the extra mass a peptide can carry from variable modifications.

A Combinator knows which mass deltas each residue may take. While the search
extends a peptide one residue at a time, Refresh folds the new residue into a
State: the set of cumulative deltas reachable with at most N modifications.

	c := mods.NewCombinator([]mods.Modification{{Residue: 'M', Delta: 15.994915}})
	s := mods.Empty()
	s = c.Refresh(s, 'M', 2) // {0, +15.99}
	s = c.Refresh(s, 'M', 2) // {0, +15.99, +31.99}

States are never modified in place, so a caller can keep old ones around
and return to them when it backtracks.
*/
package mods

import (
	"math"
	"sort"
)

// Modification is a mass shift a residue may carry.
type Modification struct {
	Residue byte
	Delta   float64
	Name    string
}

// Entry is one reachable cumulative delta and the fewest modifications
// needed to reach it.
type Entry struct {
	Delta float64
	Count int
}

// State is an immutable set of entries ordered by delta.
type State struct {
	entries []Entry
}

var empty = State{entries: []Entry{{Delta: 0, Count: 0}}}

// Empty returns the state of an unmodified peptide.
func Empty() State { return empty }

// Entries returns the reachable deltas. The slice must not be modified.
func (s State) Entries() []Entry { return s.entries }

// Len returns the number of reachable deltas.
func (s State) Len() int { return len(s.entries) }

// Combinator holds the per-residue modification deltas.
type Combinator struct {
	byResidue [256][]float64
	minDelta  float64
	count     int
}

// NewCombinator indexes mods by residue. Zero deltas are ignored.
func NewCombinator(mods []Modification) *Combinator {
	c := &Combinator{}
	for _, m := range mods {
		if m.Delta == 0 {
			continue
		}
		c.byResidue[m.Residue] = append(c.byResidue[m.Residue], m.Delta)
		c.minDelta = math.Min(c.minDelta, m.Delta)
		c.count++
	}
	return c
}

// Len returns the number of configured modifications.
func (c *Combinator) Len() int { return c.count }

// Deltas returns the deltas configured for residue.
func (c *Combinator) Deltas(residue byte) []float64 { return c.byResidue[residue] }

// Floor returns the lowest cumulative delta reachable with max modifications.
// It is 0 unless some delta is negative.
func (c *Combinator) Floor(max int) float64 {
	if c == nil || max <= 0 {
		return 0
	}
	return float64(max) * c.minDelta
}

// Refresh returns the state after appending residue to the peptide. Entries
// that already use max modifications are carried over without extending.
func (c *Combinator) Refresh(s State, residue byte, max int) State {
	if c == nil || max <= 0 {
		return s
	}
	deltas := c.byResidue[residue]
	if len(deltas) == 0 {
		return s
	}

	seen := make(map[int64]int, len(s.entries)*(len(deltas)+1))
	next := make([]Entry, 0, len(s.entries)*(len(deltas)+1))
	add := func(e Entry) {
		k := key(e.Delta)
		if at, ok := seen[k]; ok {
			if e.Count < next[at].Count {
				next[at].Count = e.Count
			}
			return
		}
		seen[k] = len(next)
		next = append(next, e)
	}

	for _, e := range s.entries {
		add(e)
	}
	for _, e := range s.entries {
		if e.Count >= max {
			continue
		}
		for _, d := range deltas {
			add(Entry{Delta: e.Delta + d, Count: e.Count + 1})
		}
	}
	sort.Slice(next, func(i, j int) bool { return next[i].Delta < next[j].Delta })
	return State{entries: next}
}

// key buckets deltas to 1e-6 Da so float noise does not split equal sums.
func key(d float64) int64 { return int64(math.Round(d * 1e6)) }
