/*
Package search walks an index for peptides whose mass matches a query list.

The suffix table, read in order together with its lcp and skip tables, is a
depth-first traversal of a suffix tree. The engine descends one residue at a
time and pushes a frame wherever a later entry leaves the current path, so
siblings resume from the shared prefix instead of summing it again.

	eng := search.New(search.Options{Residues: residue.Default()})
	hits, err := eng.Find(ctx, ix, search.Query{
		Masses:    []float64{1000.5, 1200.6},
		Tolerance: 0.02,
	})

hits[p] lists every (region, delta) whose mass plus delta lies within the
tolerance of Masses[p]. An Engine holds no per-call state and can serve any
number of goroutines over the same index.
*/
package search

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/bastiangx/massfind/pkg/corpus"
	"github.com/bastiangx/massfind/pkg/index"
	"github.com/bastiangx/massfind/pkg/mods"
	"github.com/bastiangx/massfind/pkg/residue"
	"github.com/charmbracelet/log"
)

var (
	// ErrInvalidInput is returned before any work when a query is malformed.
	ErrInvalidInput = errors.New("invalid search input")
	// ErrBudgetExceeded is returned when a search takes more steps than allowed.
	ErrBudgetExceeded = errors.New("search step budget exceeded")
)

// checkEvery is how many descend steps pass between context checks.
const checkEvery = 4096

// Hit is one peptide matching a query mass.
type Hit struct {
	Region corpus.Region
	Delta  float64
}

// Query describes one search.
type Query struct {
	// Masses must be sorted ascending.
	Masses    []float64
	Tolerance float64
	// MaxMods caps the number of modifications per peptide.
	MaxMods int
	// Tags, when set, restrict hits to peptides containing one of them.
	Tags []string
}

// Options configure an Engine.
type Options struct {
	Residues *residue.Table
	Mods     *mods.Combinator
	// MaxSteps bounds the residues walked per call. Zero means no limit.
	MaxSteps int
}

// Engine runs mass searches. It is safe for concurrent use.
type Engine struct {
	residues *residue.Table
	mods     *mods.Combinator
	maxSteps int
}

// New creates an engine. A nil residue table selects residue.Default.
func New(opts Options) *Engine {
	res := opts.Residues
	if res == nil {
		res = residue.Default()
	}
	return &Engine{
		residues: res,
		mods:     opts.Mods,
		maxSteps: opts.MaxSteps,
	}
}

// Residues returns the mass table in use.
func (e *Engine) Residues() *residue.Table { return e.residues }

// Mods returns the modification combinator, which may be nil.
func (e *Engine) Mods() *mods.Combinator { return e.mods }

// Validate checks a query without running it.
func (q Query) Validate() error {
	if math.IsNaN(q.Tolerance) || q.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance %v", ErrInvalidInput, q.Tolerance)
	}
	if q.MaxMods < 0 {
		return fmt.Errorf("%w: max modifications %d", ErrInvalidInput, q.MaxMods)
	}
	for i, m := range q.Masses {
		if math.IsNaN(m) {
			return fmt.Errorf("%w: mass %d is NaN", ErrInvalidInput, i)
		}
		if i > 0 && m < q.Masses[i-1] {
			return fmt.Errorf("%w: masses not sorted at %d (%v after %v)", ErrInvalidInput, i, m, q.Masses[i-1])
		}
	}
	if _, err := newTagSet(q.Tags); err != nil {
		return err
	}
	return nil
}

// Find returns, for each query mass, the peptides within tolerance of it.
// Results in one slot appear in the order the walk found them.
func (e *Engine) Find(ctx context.Context, ix *index.Index, q Query) ([][]Hit, error) {
	if ix == nil {
		return nil, fmt.Errorf("%w: nil index", ErrInvalidInput)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if len(q.Masses) == 0 {
		return [][]Hit{}, nil
	}
	tags, _ := newTagSet(q.Tags)

	w := &walker{
		ctx:      ctx,
		text:     ix.Corpus().Bytes(),
		rule:     ix.Rule(),
		table:    ix.Suffix,
		lcp:      ix.LCP,
		skip:     ix.Skip,
		residues: e.residues,
		comb:     e.mods,
		maxMods:  q.MaxMods,
		maxSteps: e.maxSteps,
		masses:   q.Masses,
		tol:      q.Tolerance,
		tags:     tags,
		limit:    q.Masses[len(q.Masses)-1] + q.Tolerance - e.mods.Floor(q.MaxMods),
		out:      make([][]Hit, len(q.Masses)),
	}
	if err := w.run(); err != nil {
		return nil, err
	}
	log.Debugf("Search over %d entries: %d steps, %d pruned, %d hits", len(w.table), w.steps, w.pruned, w.hits)
	return w.out, nil
}

// walker holds the state of one Find call.
type walker struct {
	ctx      context.Context
	text     []byte
	rule     corpus.Rule
	table    []corpus.Region
	lcp      []int
	skip     []int
	residues *residue.Table
	comb     *mods.Combinator
	maxMods  int
	maxSteps int
	masses   []float64
	tol      float64
	tags     tagSet
	// limit is the largest prefix mass that can still reach a query mass.
	limit float64

	out    [][]Hit
	stack  []frame
	steps  int
	pruned int
	hits   int
}

func (w *walker) run() error {
	var pending []branch
	n := len(w.table)

	for i := 0; i < n; {
		r := w.table[i]
		for len(w.stack) > 0 {
			top := w.stack[len(w.stack)-1]
			if top.bound >= i && top.depth <= w.lcp[i] {
				break
			}
			w.stack = w.stack[:len(w.stack)-1]
		}

		cur := frame{mods: mods.Empty(), tagAt: -1}
		if len(w.stack) > 0 {
			cur = w.stack[len(w.stack)-1]
		}
		// the walk below reads one residue past the resume depth at most
		if cur.depth > r.Length || r.Start < 1 || r.End() >= len(w.text) {
			return fmt.Errorf("%w: entry %d (%d,%d) resumed at depth %d of corpus length %d",
				index.ErrIndexOverflow, i, r.Start, r.Length, cur.depth, len(w.text))
		}
		if len(w.stack) > 0 {
			for _, m := range cur.matches {
				w.emit(corpus.Region{Start: r.Start, Length: m.length}, m)
			}
		}
		// shrink the capacity so appends never write into a pushed frame
		cur.matches = cur.matches[:len(cur.matches):len(cur.matches)]

		pending = w.branches(i, cur.depth, pending)
		next := len(pending) - 1

		pruned := false
		for {
			for next >= 0 && pending[next].depth == cur.depth {
				f := cur
				f.bound = pending[next].bound
				f.matches = cur.matches[:len(cur.matches):len(cur.matches)]
				w.stack = append(w.stack, f)
				next--
			}

			if cur.depth > 0 && w.boundary(r, cur.depth) && (!w.tags.enabled() || cur.tagAt >= 0) {
				cur.matches = w.test(r.Start, cur)
			}
			if cur.depth == r.Length {
				break
			}

			pos := r.Start + cur.depth
			if pos >= len(w.text) {
				return fmt.Errorf("%w: entry %d reads offset %d of %d", index.ErrIndexOverflow, i, pos, len(w.text))
			}
			b := w.text[pos]
			cur.mass += w.residues.MassOf(b)
			cur.mods = w.comb.Refresh(cur.mods, b, w.maxMods)
			cur.depth++
			if w.tags.enabled() && cur.tagAt < 0 && cur.depth >= TagLen && w.tags.has(w.text[pos-TagLen+1:pos+1]) {
				cur.tagAt = cur.depth
			}

			if err := w.step(); err != nil {
				return err
			}
			if cur.mass > w.limit {
				pruned = true
				break
			}
		}

		if !pruned {
			i++
			continue
		}
		w.pruned++
		i = w.skipPruned(i, cur)
	}
	return nil
}

// skipPruned moves past every entry that shares the pruned prefix of entry
// i. Those entries can only hold the matches already found on the way down,
// so they are replayed without walking; when there are none the skip table
// jumps over whole blocks.
func (w *walker) skipPruned(i int, cur frame) int {
	n := len(w.table)
	j := i + 1
	if len(cur.matches) == 0 {
		for j < n && w.lcp[j] >= cur.depth {
			j += w.skip[j] + 1
		}
		return j
	}
	for ; j < n && w.lcp[j] >= cur.depth; j++ {
		for _, m := range cur.matches {
			w.emit(corpus.Region{Start: w.table[j].Start, Length: m.length}, m)
		}
	}
	return j
}

// boundary reports whether a peptide of entry r may end after depth residues.
// It always looks at the entry's own next residue, so a depth shared with
// the previous entry is judged again for this one.
func (w *walker) boundary(r corpus.Region, depth int) bool {
	if depth == r.Length {
		return true
	}
	end := r.Start + depth
	return w.rule.IsCleavageSite(w.text[end-1], w.text[end])
}

// test matches every modified mass of the prefix against the query list and
// returns the frame's matches extended with the new ones.
func (w *walker) test(start int, cur frame) []match {
	matches := cur.matches
	for _, e := range cur.mods.Entries() {
		first, last := Window(w.masses, cur.mass+e.Delta, w.tol)
		if first == last {
			continue
		}
		m := match{length: cur.depth, delta: e.Delta, first: first, last: last}
		w.emit(corpus.Region{Start: start, Length: cur.depth}, m)
		matches = append(matches, m)
	}
	return matches
}

func (w *walker) emit(r corpus.Region, m match) {
	h := Hit{Region: r, Delta: m.delta}
	for p := m.first; p < m.last; p++ {
		w.out[p] = append(w.out[p], h)
	}
	w.hits++
}

func (w *walker) step() error {
	w.steps++
	if w.maxSteps > 0 && w.steps > w.maxSteps {
		return fmt.Errorf("%w: %d steps", ErrBudgetExceeded, w.maxSteps)
	}
	if w.steps%checkEvery == 0 && w.ctx != nil {
		if err := w.ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
