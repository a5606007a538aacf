package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/bastiangx/massfind/pkg/corpus"
	"github.com/bastiangx/massfind/pkg/index"
	"github.com/bastiangx/massfind/pkg/mods"
	"github.com/bastiangx/massfind/pkg/residue"
)

// toyTable uses small integer masses so sums compare exactly.
func toyTable() *residue.Table {
	t := &residue.Table{}
	for b, m := range map[byte]float64{'A': 1, 'B': 2, 'C': 3, 'D': 4, 'K': 5, 'P': 6, 'Q': 8, 'R': 7, 'E': 7} {
		t.Set(b, m)
	}
	return t
}

func mustIndex(t testing.TB, text string) *index.Index {
	t.Helper()
	c, err := corpus.New([]byte(text), '$')
	if err != nil {
		t.Fatalf("corpus %q: %v", text, err)
	}
	ix, err := index.Build(c, corpus.Trypsin())
	if err != nil {
		t.Fatalf("build %q: %v", text, err)
	}
	return ix
}

func hitStrings(c *corpus.Corpus, slot []Hit) []string {
	out := make([]string, len(slot))
	for i, h := range slot {
		out[i] = fmt.Sprintf("%s@%d%+g", c.String(h.Region), h.Region.Start, h.Delta)
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFindCleavageBlocking(t *testing.T) {
	ix := mustIndex(t, "$ABK$CDKP$")
	eng := New(Options{Residues: toyTable()})

	// AB=3 is not a peptide, CDK=12 is blocked by the following P
	hits, err := eng.Find(context.Background(), ix, Query{
		Masses:    []float64{3.0, 8.0, 12.0, 18.0},
		Tolerance: 0.01,
	})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	want := [][]string{
		nil,
		{"ABK@1+0"},
		nil,
		{"CDKP@5+0"},
	}
	if len(hits) != len(want) {
		t.Fatalf("got %d slots, want %d", len(hits), len(want))
	}
	for p := range want {
		if got := hitStrings(ix.Corpus(), hits[p]); !equalStrings(got, want[p]) {
			t.Errorf("slot %d = %v, want %v", p, got, want[p])
		}
	}
}

func TestFindReevaluatesSharedBoundary(t *testing.T) {
	// AKP and AKQ share "AK"; only the second may end after K
	ix := mustIndex(t, "$AKP$AKQ$")
	eng := New(Options{Residues: toyTable()})

	hits, err := eng.Find(context.Background(), ix, Query{Masses: []float64{6.0}, Tolerance: 0.01})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	got := hitStrings(ix.Corpus(), hits[0])
	if want := []string{"AK@5+0"}; !equalStrings(got, want) {
		t.Errorf("slot 0 = %v, want %v", got, want)
	}
}

func TestFindReplaysSharedPrefix(t *testing.T) {
	// both records start with AKB; AK is found once and replayed for the second
	ix := mustIndex(t, "$AKBB$AKBC$")
	eng := New(Options{Residues: toyTable()})

	hits, err := eng.Find(context.Background(), ix, Query{Masses: []float64{6.0}, Tolerance: 0.01})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	got := hitStrings(ix.Corpus(), hits[0])
	if want := []string{"AK@1+0", "AK@6+0"}; !equalStrings(got, want) {
		t.Errorf("slot 0 = %v, want %v", got, want)
	}
}

func TestFindFanOut(t *testing.T) {
	ix := mustIndex(t, "$ABK$CDKP$")
	eng := New(Options{Residues: toyTable()})

	hits, err := eng.Find(context.Background(), ix, Query{
		Masses:    []float64{7.995, 8.0, 8.005, 8.02},
		Tolerance: 0.01,
	})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	for p, want := range []int{1, 1, 1, 0} {
		if len(hits[p]) != want {
			t.Errorf("slot %d has %d hits, want %d", p, len(hits[p]), want)
		}
	}
}

func TestFindModifications(t *testing.T) {
	ix := mustIndex(t, "$ABK$CDKP$")
	eng := New(Options{
		Residues: toyTable(),
		Mods:     mods.NewCombinator([]mods.Modification{{Residue: 'K', Delta: 1}}),
	})

	hits, err := eng.Find(context.Background(), ix, Query{Masses: []float64{9.0, 19.0}, Tolerance: 0.01, MaxMods: 1})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got, want := hitStrings(ix.Corpus(), hits[0]), []string{"ABK@1+1"}; !equalStrings(got, want) {
		t.Errorf("slot 0 = %v, want %v", got, want)
	}
	if got, want := hitStrings(ix.Corpus(), hits[1]), []string{"CDKP@5+1"}; !equalStrings(got, want) {
		t.Errorf("slot 1 = %v, want %v", got, want)
	}

	hits, err = eng.Find(context.Background(), ix, Query{Masses: []float64{9.0}, Tolerance: 0.01, MaxMods: 0})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(hits[0]) != 0 {
		t.Errorf("MaxMods=0 still produced %v", hitStrings(ix.Corpus(), hits[0]))
	}
}

func TestFindTags(t *testing.T) {
	ix := mustIndex(t, "$ABK$CDKP$")
	eng := New(Options{Residues: toyTable()})

	hits, err := eng.Find(context.Background(), ix, Query{
		Masses:    []float64{8.0, 18.0},
		Tolerance: 0.01,
		Tags:      []string{"DKP"},
	})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(hits[0]) != 0 {
		t.Errorf("ABK has no tag but was returned: %v", hitStrings(ix.Corpus(), hits[0]))
	}
	if got, want := hitStrings(ix.Corpus(), hits[1]), []string{"CDKP@5+0"}; !equalStrings(got, want) {
		t.Errorf("slot 1 = %v, want %v", got, want)
	}
}

func TestFindRejectsInvalidInput(t *testing.T) {
	ix := mustIndex(t, "$ABK$CDKP$")
	eng := New(Options{Residues: toyTable()})

	tests := []struct {
		name string
		q    Query
	}{
		{"unsorted", Query{Masses: []float64{8, 3}}},
		{"nan mass", Query{Masses: []float64{nan()}}},
		{"negative tolerance", Query{Masses: []float64{8}, Tolerance: -1}},
		{"negative mods", Query{Masses: []float64{8}, MaxMods: -1}},
		{"short tag", Query{Masses: []float64{8}, Tags: []string{"AB"}}},
		{"long tag", Query{Masses: []float64{8}, Tags: []string{"ABKC"}}},
		{"bad tag with empty masses", Query{Tags: []string{"A"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := eng.Find(context.Background(), ix, tt.q)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
			if hits != nil {
				t.Errorf("partial results returned: %v", hits)
			}
		})
	}
	if _, err := eng.Find(context.Background(), nil, Query{Masses: []float64{1}}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("nil index: err = %v", err)
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestFindEmptyMassesSkipsWalk(t *testing.T) {
	ix := mustIndex(t, "$ABK$CDKP$")
	// a budget of one step would fail any walk
	eng := New(Options{Residues: toyTable(), MaxSteps: 1})

	hits, err := eng.Find(context.Background(), ix, Query{Tolerance: 0.01})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if hits == nil || len(hits) != 0 {
		t.Errorf("hits = %v, want an empty non-nil result", hits)
	}
}

func TestFindBudget(t *testing.T) {
	ix := mustIndex(t, "$ABK$CDKP$")
	eng := New(Options{Residues: toyTable(), MaxSteps: 2})

	hits, err := eng.Find(context.Background(), ix, Query{Masses: []float64{100}, Tolerance: 0.01})
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("err = %v, want ErrBudgetExceeded", err)
	}
	if hits != nil {
		t.Errorf("partial results returned: %v", hits)
	}
}

func TestFindCorruptTables(t *testing.T) {
	eng := New(Options{Residues: toyTable()})
	q := Query{Masses: []float64{100}, Tolerance: 0.01}

	// a shared prefix longer than the second entry
	ix := mustIndex(t, "$AAAA$B$")
	ix.LCP[1] = 4
	if _, err := eng.Find(context.Background(), ix, q); !errors.Is(err, index.ErrIndexOverflow) {
		t.Errorf("lcp past entry end: err = %v, want ErrIndexOverflow", err)
	}

	// an entry running into the closing sentinel
	ix = mustIndex(t, "$AAAA$B$")
	ix.Suffix[1].Length = 2
	if _, err := eng.Find(context.Background(), ix, q); !errors.Is(err, index.ErrIndexOverflow) {
		t.Errorf("entry past corpus end: err = %v, want ErrIndexOverflow", err)
	}
}

func TestFindCanceled(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	recs := make([][]byte, 300)
	for i := range recs {
		recs[i] = randomSequence(rng, "ABCD", 40)
	}
	c, err := corpus.FromRecords(recs, '$')
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}
	ix, err := index.Build(c, corpus.Trypsin())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := New(Options{Residues: toyTable()})
	if _, err := eng.Find(ctx, ix, Query{Masses: []float64{1e9}}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func randomSequence(rng *rand.Rand, alphabet string, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return b
}

// bruteForce scores every peptide of every candidate independently.
func bruteForce(ix *index.Index, res *residue.Table, mm []mods.Modification, q Query) [][]string {
	text := ix.Corpus().Bytes()
	rule := ix.Rule()
	tags := map[string]bool{}
	for _, tag := range q.Tags {
		tags[tag] = true
	}
	byResidue := map[byte][]float64{}
	for _, m := range mm {
		byResidue[m.Residue] = append(byResidue[m.Residue], m.Delta)
	}

	out := make([][]string, len(q.Masses))
	for _, r := range index.Candidates(ix.Corpus(), rule) {
		for d := 1; d <= r.Length; d++ {
			end := r.Start + d
			if d < r.Length && !rule.IsCleavageSite(text[end-1], text[end]) {
				continue
			}
			pep := text[r.Start:end]
			if len(tags) > 0 {
				found := false
				for k := 0; k+TagLen <= len(pep); k++ {
					if tags[string(pep[k:k+TagLen])] {
						found = true
						break
					}
				}
				if !found {
					continue
				}
			}
			mass := res.Mass(pep)

			deltas := map[float64]bool{}
			var walk func(k, used int, delta float64)
			walk = func(k, used int, delta float64) {
				if k == len(pep) {
					deltas[delta] = true
					return
				}
				walk(k+1, used, delta)
				if used < q.MaxMods {
					for _, dd := range byResidue[pep[k]] {
						walk(k+1, used+1, delta+dd)
					}
				}
			}
			walk(0, 0, 0)

			for delta := range deltas {
				m := mass + delta
				for p, qm := range q.Masses {
					if !Less(qm, m, q.Tolerance) && qm <= m+q.Tolerance {
						out[p] = append(out[p], fmt.Sprintf("%s@%d%+g", pep, r.Start, delta))
					}
				}
			}
		}
	}
	for p := range out {
		sort.Strings(out[p])
	}
	return out
}

func randomQuery(rng *rand.Rand, text []byte) Query {
	n := 1 + rng.Intn(12)
	masses := make([]float64, n)
	for i := range masses {
		masses[i] = float64(rng.Intn(40))
	}
	sort.Float64s(masses)
	q := Query{Masses: masses, Tolerance: 0.5, MaxMods: rng.Intn(3)}
	if len(text) > TagLen+1 && rng.Intn(3) == 0 {
		for k := 0; k < 2; k++ {
			at := 1 + rng.Intn(len(text)-TagLen-1)
			q.Tags = append(q.Tags, string(text[at:at+TagLen]))
		}
	}
	return q
}

func TestFindMatchesBruteForce(t *testing.T) {
	rounds := 200
	if testing.Short() {
		rounds = 20
	}
	rng := rand.New(rand.NewSource(42))
	res := toyTable()
	mm := []mods.Modification{
		{Residue: 'K', Delta: 2},
		{Residue: 'D', Delta: -1},
		{Residue: 'A', Delta: 3},
	}

	for round := 0; round < rounds; round++ {
		recs := make([][]byte, 1+rng.Intn(6))
		for i := range recs {
			recs[i] = randomSequence(rng, "ABKRPCD", 1+rng.Intn(12))
		}
		c, err := corpus.FromRecords(recs, '$')
		if err != nil {
			t.Fatalf("FromRecords: %v", err)
		}
		ix, err := index.Build(c, corpus.Trypsin())
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		q := randomQuery(rng, c.Bytes())

		var comb *mods.Combinator
		if rng.Intn(2) == 0 {
			comb = mods.NewCombinator(mm)
		}
		eng := New(Options{Residues: res, Mods: comb})
		hits, err := eng.Find(context.Background(), ix, q)
		if err != nil {
			t.Fatalf("round %d: Find: %v", round, err)
		}

		var used []mods.Modification
		if comb != nil {
			used = mm
		}
		want := bruteForce(ix, res, used, q)
		for p := range want {
			got := hitStrings(c, hits[p])
			if !equalStrings(got, want[p]) {
				t.Fatalf("round %d corpus %q query %+v slot %d:\n got  %v\n want %v",
					round, c.Bytes(), q, p, got, want[p])
			}
		}
	}
}

func TestFindContainment(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	recs := make([][]byte, 40)
	for i := range recs {
		recs[i] = randomSequence(rng, "ABKRPCD", 5+rng.Intn(20))
	}
	c, _ := corpus.FromRecords(recs, '$')
	ix, err := index.Build(c, corpus.Trypsin())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	res := toyTable()
	q := Query{Masses: []float64{10, 10.2, 10.4, 20, 20.1, 33}, Tolerance: 0.25}

	hits, err := New(Options{Residues: res}).Find(context.Background(), ix, q)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	for p, slot := range hits {
		for _, h := range slot {
			m := res.Mass(c.Slice(h.Region)) + h.Delta
			if Less(q.Masses[p], m, q.Tolerance) || q.Masses[p] > m+q.Tolerance {
				t.Errorf("slot %d (%v) holds %s with mass %v", p, q.Masses[p], c.String(h.Region), m)
			}
		}
	}
}

func TestFindConcurrent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	recs := make([][]byte, 30)
	for i := range recs {
		recs[i] = randomSequence(rng, "ABKRPCD", 3+rng.Intn(15))
	}
	c, _ := corpus.FromRecords(recs, '$')
	ix, err := index.Build(c, corpus.Trypsin())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	mm := []mods.Modification{{Residue: 'K', Delta: 2}}
	eng := New(Options{Residues: toyTable(), Mods: mods.NewCombinator(mm)})

	queries := make([]Query, 8)
	for i := range queries {
		queries[i] = randomQuery(rng, c.Bytes())
	}

	var wg sync.WaitGroup
	for _, q := range queries {
		wg.Add(1)
		go func(q Query) {
			defer wg.Done()
			hits, err := eng.Find(context.Background(), ix, q)
			if err != nil {
				t.Errorf("Find: %v", err)
				return
			}
			want := bruteForce(ix, eng.Residues(), mm, q)
			for p := range want {
				if got := hitStrings(c, hits[p]); !equalStrings(got, want[p]) {
					t.Errorf("slot %d: got %v, want %v", p, got, want[p])
				}
			}
		}(q)
	}
	wg.Wait()
}

func TestSearcherStats(t *testing.T) {
	ix := mustIndex(t, "$ABK$CDKP$")
	s := NewSearcher(New(Options{Residues: toyTable()}), ix)
	stats := s.Stats()
	if stats["entries"] != 2 || stats["records"] != 2 || stats["corpusBytes"] != 10 {
		t.Errorf("stats = %v", stats)
	}
	hits, err := s.Search(context.Background(), Query{Masses: []float64{8}})
	if err != nil || len(hits[0]) != 1 {
		t.Errorf("Search = %v, %v", hits, err)
	}
}
