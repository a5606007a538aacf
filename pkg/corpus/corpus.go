/*
Package corpus holds the sentinel-delimited text that every index table points into.

A corpus is one byte slice made of records, each terminated by the sentinel:

	$MKWVTFISLLK$GSSHHHHHHR$

The first and last byte are always the sentinel, so every record is framed
on both sides. Other packages never copy the text: they keep Region values
(start, length) that refer back to it.
*/
package corpus

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

// DefaultSentinel separates records when no other sentinel is configured.
const DefaultSentinel byte = '$'

// ErrFormat is returned when the text is not framed by the sentinel.
var ErrFormat = errors.New("corpus is not sentinel framed")

// Region is a substring of the corpus.
type Region struct {
	Start  int
	Length int
}

// End returns the exclusive end offset.
func (r Region) End() int { return r.Start + r.Length }

// Corpus is the immutable text shared by the index tables.
type Corpus struct {
	text     []byte
	sentinel byte
}

// New wraps text as a corpus. The slice is owned by the corpus afterwards.
func New(text []byte, sentinel byte) (*Corpus, error) {
	if len(text) < 2 {
		return nil, fmt.Errorf("%w: length %d", ErrFormat, len(text))
	}
	if text[0] != sentinel || text[len(text)-1] != sentinel {
		return nil, fmt.Errorf("%w: want %q at both ends", ErrFormat, sentinel)
	}
	return &Corpus{text: text, sentinel: sentinel}, nil
}

// FromRecords joins sequences into a corpus, upper-casing residues and
// dropping any sentinel bytes found inside a sequence.
func FromRecords(seqs [][]byte, sentinel byte) (*Corpus, error) {
	size := 1
	for _, s := range seqs {
		size += len(s) + 1
	}
	text := make([]byte, 0, size)
	text = append(text, sentinel)
	for _, s := range seqs {
		for _, b := range s {
			if b == sentinel {
				continue
			}
			if 'a' <= b && b <= 'z' {
				b -= 'a' - 'A'
			}
			text = append(text, b)
		}
		text = append(text, sentinel)
	}
	return New(text, sentinel)
}

// Len returns the corpus length including sentinels.
func (c *Corpus) Len() int { return len(c.text) }

// Sentinel returns the record separator.
func (c *Corpus) Sentinel() byte { return c.sentinel }

// At returns the byte at position i.
func (c *Corpus) At(i int) byte { return c.text[i] }

// Bytes exposes the underlying text. Callers must not modify it.
func (c *Corpus) Bytes() []byte { return c.text }

// Slice returns the bytes of r.
func (c *Corpus) Slice(r Region) []byte { return c.text[r.Start:r.End()] }

// String returns the content of r as a string.
func (c *Corpus) String(r Region) string { return string(c.Slice(r)) }

// Contains reports whether r lies inside the corpus.
func (c *Corpus) Contains(r Region) bool {
	return r.Start >= 0 && r.Length >= 0 && r.End() <= len(c.text)
}

// Compare orders two regions by content.
func (c *Corpus) Compare(a, b Region) int {
	return bytes.Compare(c.Slice(a), c.Slice(b))
}

// Records returns the span of every record, sentinels excluded.
// Empty records are reported with zero length.
func (c *Corpus) Records() []Region {
	var out []Region
	start := 1
	for i := 1; i < len(c.text); i++ {
		if c.text[i] == c.sentinel {
			out = append(out, Region{Start: start, Length: i - start})
			start = i + 1
		}
	}
	return out
}

// RecordOf returns the index of the record that contains offset pos,
// given starts as returned by RecordStarts.
func RecordOf(starts []int, pos int) int {
	return sort.SearchInts(starts, pos+1) - 1
}

// RecordStarts returns the start offset of every record.
func (c *Corpus) RecordStarts() []int {
	recs := c.Records()
	starts := make([]int, len(recs))
	for i, r := range recs {
		starts[i] = r.Start
	}
	return starts
}
