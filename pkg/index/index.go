/*
Package index builds the enhanced suffix array that the mass search walks.

An index is three parallel tables over a corpus:

	Suffix  digestion-respecting suffixes, sorted by content
	LCP     shared prefix length with the previous entry
	Skip    how many following entries share at least that prefix

Together they encode a suffix tree without any node allocation: a run of
entries with lcp >= L is one subtree below depth L, and Skip jumps over it.

	ix, err := index.Build(c, corpus.Trypsin())

Tables are read-only once built and can be shared by concurrent searches.
*/
package index

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bastiangx/massfind/pkg/corpus"
	"github.com/charmbracelet/log"
)

// ErrIndexOverflow is returned when a table points outside its corpus.
// The tables and the corpus do not belong together; rebuild the index.
var ErrIndexOverflow = errors.New("index offset beyond corpus")

// Tables are the persisted part of an index.
type Tables struct {
	Suffix []corpus.Region
	LCP    []int
	Skip   []int
}

// Len returns the number of suffix table entries.
func (t *Tables) Len() int { return len(t.Suffix) }

// Equal reports whether both table sets hold the same values.
func (t *Tables) Equal(o *Tables) bool {
	if t.Len() != o.Len() || len(t.LCP) != len(o.LCP) || len(t.Skip) != len(o.Skip) {
		return false
	}
	for i := range t.Suffix {
		if t.Suffix[i] != o.Suffix[i] {
			return false
		}
	}
	for i := range t.LCP {
		if t.LCP[i] != o.LCP[i] {
			return false
		}
	}
	for i := range t.Skip {
		if t.Skip[i] != o.Skip[i] {
			return false
		}
	}
	return true
}

// Index binds tables to the corpus and digestion rule they were built from.
type Index struct {
	Tables
	corpus *corpus.Corpus
	rule   corpus.Rule
}

// Corpus returns the indexed text.
func (ix *Index) Corpus() *corpus.Corpus { return ix.corpus }

// Rule returns the digestion rule used to enumerate candidates.
func (ix *Index) Rule() corpus.Rule { return ix.rule }

// Build enumerates candidates, sorts them and derives the lcp and skip tables.
func Build(c *corpus.Corpus, rule corpus.Rule) (*Index, error) {
	if c == nil || c.Len() < 2 || c.At(0) != c.Sentinel() || c.At(c.Len()-1) != c.Sentinel() {
		return nil, corpus.ErrFormat
	}
	start := time.Now()

	table := Candidates(c, rule)
	SortSuffixes(c, table)
	lcp := LCP(c, table)
	skip := Skip(lcp)

	log.Debugf("Built index: %d entries over %d bytes in %v", len(table), c.Len(), time.Since(start))
	return &Index{
		Tables: Tables{Suffix: table, LCP: lcp, Skip: skip},
		corpus: c,
		rule:   rule,
	}, nil
}

// SortSuffixes orders regions by their content, keeping corpus order for ties.
func SortSuffixes(c *corpus.Corpus, table []corpus.Region) {
	text := c.Bytes()
	sort.SliceStable(table, func(i, j int) bool {
		a, b := table[i], table[j]
		return bytes.Compare(text[a.Start:a.End()], text[b.Start:b.End()]) < 0
	})
}

// Attach binds previously saved tables to a corpus, checking that every
// offset lands inside it.
func Attach(c *corpus.Corpus, t *Tables, rule corpus.Rule) (*Index, error) {
	n := t.Len()
	if len(t.LCP) != n || len(t.Skip) != n {
		return nil, fmt.Errorf("%w: table lengths %d/%d/%d", ErrIndexOverflow, n, len(t.LCP), len(t.Skip))
	}
	for i, r := range t.Suffix {
		// a sentinel must follow every region
		if r.Start < 1 || r.Length < 1 || r.End() >= c.Len() {
			return nil, fmt.Errorf("%w: entry %d (%d,%d) with corpus length %d", ErrIndexOverflow, i, r.Start, r.Length, c.Len())
		}
		if t.LCP[i] < 0 || t.LCP[i] > r.Length || (i == 0 && t.LCP[i] != 0) ||
			(i > 0 && t.LCP[i] > t.Suffix[i-1].Length) {
			return nil, fmt.Errorf("%w: lcp[%d]=%d", ErrIndexOverflow, i, t.LCP[i])
		}
		if t.Skip[i] < 0 || i+t.Skip[i] >= n {
			return nil, fmt.Errorf("%w: skip[%d]=%d", ErrIndexOverflow, i, t.Skip[i])
		}
	}
	return &Index{Tables: *t, corpus: c, rule: rule}, nil
}
