package index

import "github.com/bastiangx/massfind/pkg/corpus"

// LCP computes the common prefix length of each suffix table entry with the
// entry before it. lcp[0] is 0.
//
// The scan is bounded by the length of the left entry only. Because every
// region is followed by a sentinel in the corpus, a shorter right entry stops
// the scan at its sentinel, so the result never exceeds either length.
func LCP(c *corpus.Corpus, table []corpus.Region) []int {
	text := c.Bytes()
	lcp := make([]int, len(table))
	for i := 1; i < len(table); i++ {
		prev, cur := table[i-1], table[i]
		n := 0
		for n < prev.Length && text[prev.Start+n] == text[cur.Start+n] {
			n++
		}
		lcp[i] = n
	}
	return lcp
}

// Skip computes, for every entry, how many consecutive following entries
// have an lcp of at least lcp[i]. Those entries all share the first lcp[i]
// residues with entry i, so the search can jump over them in one step.
func Skip(lcp []int) []int {
	n := len(lcp)
	skip := make([]int, n)
	// stack of indices whose next smaller lcp is still unknown
	stack := make([]int, 0, 64)
	for i := n - 1; i >= 0; i-- {
		for len(stack) > 0 && lcp[stack[len(stack)-1]] >= lcp[i] {
			stack = stack[:len(stack)-1]
		}
		next := n
		if len(stack) > 0 {
			next = stack[len(stack)-1]
		}
		skip[i] = next - i - 1
		stack = append(stack, i)
	}
	return skip
}
