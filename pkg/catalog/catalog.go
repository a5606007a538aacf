// Package catalog maps corpus records back to the sequences they came from.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/bastiangx/massfind/pkg/corpus"
	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
	"github.com/vmihailenco/msgpack/v5"
)

// catalogVersion is bumped whenever the encoded layout changes.
// Version 1 files have no digestion and still decode.
const catalogVersion = 2

// ErrMismatch is returned when a catalog does not describe a corpus.
var ErrMismatch = errors.New("catalog does not match corpus")

// Record describes one sequence of the corpus.
type Record struct {
	ID          string `msgpack:"id"`
	Description string `msgpack:"d,omitempty"`
	Start       int    `msgpack:"s"`
	Length      int    `msgpack:"l"`
}

// Span returns the record's region in the corpus.
func (r Record) Span() corpus.Region { return corpus.Region{Start: r.Start, Length: r.Length} }

// Digestion is the cleavage rule an index over the catalog's corpus was built with.
type Digestion struct {
	Cleave string `msgpack:"c"`
	Block  string `msgpack:"b"`
}

// Catalog indexes records by accession and by corpus offset.
type Catalog struct {
	records   []Record
	starts    []int
	trie      *patricia.Trie
	digestion *Digestion
}

type file struct {
	Version   int        `msgpack:"v"`
	Records   []Record   `msgpack:"r"`
	Digestion *Digestion `msgpack:"dg,omitempty"`
}

// New builds a catalog over the records of c. ids and descriptions are given
// in corpus order; descriptions may be nil.
func New(c *corpus.Corpus, ids, descriptions []string) (*Catalog, error) {
	spans := c.Records()
	if len(ids) != len(spans) {
		return nil, fmt.Errorf("%w: %d ids for %d records", ErrMismatch, len(ids), len(spans))
	}
	records := make([]Record, len(spans))
	for i, s := range spans {
		records[i] = Record{ID: ids[i], Start: s.Start, Length: s.Length}
		if i < len(descriptions) {
			records[i].Description = descriptions[i]
		}
	}
	return fromRecords(records), nil
}

// Anonymous names every record of c by its position, for corpora built
// without headers.
func Anonymous(c *corpus.Corpus) *Catalog {
	spans := c.Records()
	ids := make([]string, len(spans))
	for i := range spans {
		ids[i] = fmt.Sprintf("record_%d", i+1)
	}
	cat, _ := New(c, ids, nil)
	return cat
}

func fromRecords(records []Record) *Catalog {
	cat := &Catalog{
		records: records,
		starts:  make([]int, len(records)),
		trie:    patricia.NewTrie(),
	}
	for i, r := range records {
		cat.starts[i] = r.Start
		if !cat.trie.Insert(patricia.Prefix(r.ID), i) {
			log.Warnf("Duplicate record id %q, keeping the first", r.ID)
		}
	}
	return cat
}

// Len returns the number of records.
func (cat *Catalog) Len() int { return len(cat.records) }

// Records returns all records in corpus order.
func (cat *Catalog) Records() []Record { return cat.records }

// Lookup finds a record by its exact id.
func (cat *Catalog) Lookup(id string) (Record, bool) {
	item := cat.trie.Get(patricia.Prefix(id))
	if item == nil {
		return Record{}, false
	}
	return cat.records[item.(int)], true
}

// WithPrefix returns up to limit records whose id starts with prefix.
// A limit of 0 returns all of them.
func (cat *Catalog) WithPrefix(prefix string, limit int) []Record {
	var out []Record
	err := cat.trie.VisitSubtree(patricia.Prefix(prefix), func(p patricia.Prefix, item patricia.Item) error {
		out = append(out, cat.records[item.(int)])
		if limit > 0 && len(out) >= limit {
			return errLimit
		}
		return nil
	})
	if err != nil && err != errLimit {
		log.Errorf("Error visiting catalog: %v", err)
	}
	return out
}

var errLimit = errors.New("limit reached")

// Resolve returns the record holding region r.
func (cat *Catalog) Resolve(r corpus.Region) (Record, bool) {
	i := corpus.RecordOf(cat.starts, r.Start)
	if i < 0 {
		return Record{}, false
	}
	rec := cat.records[i]
	if r.End() > rec.Start+rec.Length {
		return Record{}, false
	}
	return rec, true
}

// Offset returns the position of r inside its record, counting from 1.
func (cat *Catalog) Offset(r corpus.Region) (Record, int, bool) {
	rec, ok := cat.Resolve(r)
	if !ok {
		return Record{}, 0, false
	}
	return rec, r.Start - rec.Start + 1, true
}

// Matches reports whether the catalog describes exactly the records of c.
func (cat *Catalog) Matches(c *corpus.Corpus) error {
	spans := c.Records()
	if len(spans) != len(cat.records) {
		return fmt.Errorf("%w: %d records, corpus has %d", ErrMismatch, len(cat.records), len(spans))
	}
	for i, s := range spans {
		if s != cat.records[i].Span() {
			return fmt.Errorf("%w: record %q spans %v, corpus has %v", ErrMismatch, cat.records[i].ID, cat.records[i].Span(), s)
		}
	}
	return nil
}

// SetDigestion records the rule the index was built with.
func (cat *Catalog) SetDigestion(d Digestion) { cat.digestion = &d }

// Digestion returns the recorded rule, if any.
func (cat *Catalog) Digestion() (Digestion, bool) {
	if cat.digestion == nil {
		return Digestion{}, false
	}
	return *cat.digestion, true
}

// Encode writes the catalog with msgpack.
func (cat *Catalog) Encode(w io.Writer) error {
	return msgpack.NewEncoder(w).Encode(file{Version: catalogVersion, Records: cat.records, Digestion: cat.digestion})
}

// Decode reads a catalog written by Encode.
func Decode(r io.Reader) (*Catalog, error) {
	var f file
	if err := msgpack.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if f.Version < 1 || f.Version > catalogVersion {
		return nil, fmt.Errorf("catalog version %d, want %d", f.Version, catalogVersion)
	}
	if !sort.SliceIsSorted(f.Records, func(i, j int) bool { return f.Records[i].Start < f.Records[j].Start }) {
		return nil, fmt.Errorf("catalog records out of order")
	}
	cat := fromRecords(f.Records)
	cat.digestion = f.Digestion
	return cat, nil
}

// Label formats a hit location as "id:offset".
func (cat *Catalog) Label(r corpus.Region) string {
	rec, off, ok := cat.Offset(r)
	if !ok {
		return fmt.Sprintf("?:%d", r.Start)
	}
	return fmt.Sprintf("%s:%d", rec.ID, off)
}
