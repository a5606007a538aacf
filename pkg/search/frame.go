package search

import "github.com/bastiangx/massfind/pkg/mods"

// match records a tolerance hit found while walking a prefix, so entries
// that share the prefix can replay it without searching the masses again.
type match struct {
	length int
	delta  float64
	first  int
	last   int
}

// frame is the walk state at a branch point. Every suffix table entry up to
// and including bound shares the first depth residues with the entry that
// pushed it.
type frame struct {
	bound   int
	depth   int
	mass    float64
	mods    mods.State
	tagAt   int
	matches []match
}

// branch is a depth at which later entries leave the current path.
type branch struct {
	depth int
	bound int
}

// branches lists, deepest first, the points below depth from where entries
// after i leave the path of entry i. It follows the skip table: each jump
// lands on the first entry that shares less with i than the previous block.
func (w *walker) branches(i, from int, buf []branch) []branch {
	buf = buf[:0]
	n := len(w.table)
	for j := i + 1; j < n; {
		d := w.lcp[j]
		if d <= from {
			break
		}
		bound := j + w.skip[j]
		buf = append(buf, branch{depth: d, bound: bound})
		j = bound + 1
	}
	return buf
}
