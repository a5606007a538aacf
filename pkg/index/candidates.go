package index

import "github.com/bastiangx/massfind/pkg/corpus"

// Candidates scans the corpus once and returns every digestion-respecting
// start as a region running to the end of its record.
//
// A start is either the first residue of a record or the residue right after
// a cleavage site. When a position is both, it is emitted twice; the search
// treats the two entries as separate suffixes. Zero-length regions are dropped.
func Candidates(c *corpus.Corpus, rule corpus.Rule) []corpus.Region {
	text := c.Bytes()
	sentinel := c.Sentinel()

	out := make([]corpus.Region, 0, len(text)/8)
	emit := func(start, end int) {
		if end > start {
			out = append(out, corpus.Region{Start: start, Length: end - start})
		}
	}

	// end caches the sentinel that closes the current record
	end := 0
	for p := 1; p < len(text); p++ {
		if p > end {
			end = p
			for end < len(text) && text[end] != sentinel {
				end++
			}
		}
		if text[p-1] == sentinel {
			emit(p, end)
		}
		if rule.IsCleavageSite(text[p-1], text[p]) {
			emit(p, end)
		}
	}
	return out
}
