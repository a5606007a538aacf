/*
Package store saves and loads an index as plain files next to each other.

A saved index with prefix "db/human" is made of

	db/human.sa      suffix table, "start length" per line
	db/human.lcp     lcp table, one integer per line
	db/human.skip    skip table, one integer per line
	db/human.corpus  the sentinel framed corpus
	db/human.cat     record catalog (msgpack)

The three tables are line aligned: line i of each file describes entry i.
Every file is written to a temp file and renamed into place.
*/
package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bastiangx/massfind/internal/utils"
	"github.com/bastiangx/massfind/pkg/catalog"
	"github.com/bastiangx/massfind/pkg/corpus"
	"github.com/bastiangx/massfind/pkg/index"
	"github.com/charmbracelet/log"
)

// ErrPersistence is returned when saved files are missing or corrupt.
// Nothing is retried; rebuild the index from its source.
var ErrPersistence = errors.New("index persistence")

// Bundle is everything a saved index holds.
type Bundle struct {
	Index   *index.Index
	Catalog *catalog.Catalog
}

// Exists reports whether every artifact for prefix is present.
func Exists(prefix string) bool {
	for _, f := range []FileFormat{FormatSuffix, FormatLCP, FormatSkip, FormatCorpus, FormatCatalog} {
		if !utils.FileExists(Path(prefix, f)) {
			return false
		}
	}
	return true
}

// Save writes the index, its corpus and the catalog under prefix.
func Save(b *Bundle, prefix string) error {
	start := time.Now()
	if err := SaveTables(&b.Index.Tables, prefix); err != nil {
		return err
	}
	if err := SaveCorpus(b.Index.Corpus(), prefix); err != nil {
		return err
	}
	if b.Catalog != nil {
		if rule, ok := b.Index.Rule().(*corpus.SiteRule); ok {
			b.Catalog.SetDigestion(catalog.Digestion{Cleave: rule.Cleave(), Block: rule.Block()})
		}
		if err := SaveCatalog(b.Catalog, prefix); err != nil {
			return err
		}
	}
	log.Infof("Saved index %s: %s entries in %v", prefix, utils.FormatWithCommas(b.Index.Len()), time.Since(start))
	return nil
}

// Load reads a saved index and binds it to rule. A missing catalog is
// replaced by an anonymous one. When the catalog records the rule the index
// was built with, a different SiteRule is refused.
func Load(prefix string, rule corpus.Rule) (*Bundle, error) {
	start := time.Now()
	if err := Check(prefix); err != nil {
		return nil, err
	}
	c, err := LoadCorpus(prefix)
	if err != nil {
		return nil, err
	}
	t, err := LoadTables(prefix)
	if err != nil {
		return nil, err
	}
	ix, err := index.Attach(c, t, rule)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPersistence, prefix, err)
	}

	var cat *catalog.Catalog
	if utils.FileExists(Path(prefix, FormatCatalog)) {
		if cat, err = LoadCatalog(prefix); err != nil {
			return nil, err
		}
		if err := cat.Matches(c); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrPersistence, prefix, err)
		}
		if err := checkDigestion(cat, rule); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrPersistence, prefix, err)
		}
	} else {
		log.Warnf("No catalog for %s, naming records by position", prefix)
		cat = catalog.Anonymous(c)
	}

	log.Infof("Loaded index %s: %s entries, %d records in %v",
		prefix, utils.FormatWithCommas(ix.Len()), cat.Len(), time.Since(start))
	return &Bundle{Index: ix, Catalog: cat}, nil
}

// Check detects the format of every artifact under prefix before any of it
// is read. The catalog is optional; the others must be present.
func Check(prefix string) error {
	for _, want := range []FileFormat{FormatSuffix, FormatLCP, FormatSkip, FormatCorpus, FormatCatalog} {
		path := Path(prefix, want)
		if want == FormatCatalog && !utils.FileExists(path) {
			continue
		}
		got, err := DetectFileFormat(path)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		if got != want {
			return fmt.Errorf("%w: %s detected as %v", ErrPersistence, path, got)
		}
	}
	return nil
}

func checkDigestion(cat *catalog.Catalog, rule corpus.Rule) error {
	d, ok := cat.Digestion()
	if !ok {
		log.Warnf("Index predates recorded digestion rules, assuming the configured rule")
		return nil
	}
	site, ok := rule.(*corpus.SiteRule)
	if !ok {
		log.Debugf("Custom rule, skipping digestion check against cleave=%q block=%q", d.Cleave, d.Block)
		return nil
	}
	if site.Cleave() != d.Cleave || site.Block() != d.Block {
		return fmt.Errorf("index built with cleave=%q block=%q, rule has cleave=%q block=%q",
			d.Cleave, d.Block, site.Cleave(), site.Block())
	}
	return nil
}

// SaveTables writes the three table files.
func SaveTables(t *index.Tables, prefix string) error {
	if len(t.LCP) != t.Len() || len(t.Skip) != t.Len() {
		return fmt.Errorf("%w: table lengths %d/%d/%d", ErrPersistence, t.Len(), len(t.LCP), len(t.Skip))
	}
	err := writeLines(Path(prefix, FormatSuffix), t.Len(), func(w *bufio.Writer, i int) {
		r := t.Suffix[i]
		w.WriteString(strconv.Itoa(r.Start))
		w.WriteByte(' ')
		w.WriteString(strconv.Itoa(r.Length))
	})
	if err != nil {
		return err
	}
	if err := writeInts(Path(prefix, FormatLCP), t.LCP); err != nil {
		return err
	}
	return writeInts(Path(prefix, FormatSkip), t.Skip)
}

func writeInts(path string, vals []int) error {
	return writeLines(path, len(vals), func(w *bufio.Writer, i int) {
		w.WriteString(strconv.Itoa(vals[i]))
	})
}

func writeLines(path string, n int, line func(w *bufio.Writer, i int)) error {
	err := utils.WriteFileAtomic(path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		for i := 0; i < n; i++ {
			line(bw, i)
			bw.WriteByte('\n')
		}
		return bw.Flush()
	})
	if err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, path, err)
	}
	return nil
}

// LoadTables reads the three table files and checks they line up.
func LoadTables(prefix string) (*index.Tables, error) {
	t := &index.Tables{}

	err := readLines(Path(prefix, FormatSuffix), 2, func(f []int) {
		t.Suffix = append(t.Suffix, corpus.Region{Start: f[0], Length: f[1]})
	})
	if err != nil {
		return nil, err
	}
	if t.LCP, err = readInts(Path(prefix, FormatLCP)); err != nil {
		return nil, err
	}
	if t.Skip, err = readInts(Path(prefix, FormatSkip)); err != nil {
		return nil, err
	}
	if len(t.LCP) != t.Len() || len(t.Skip) != t.Len() {
		return nil, fmt.Errorf("%w: %s: tables have %d/%d/%d lines", ErrPersistence, prefix, t.Len(), len(t.LCP), len(t.Skip))
	}
	log.Debugf("Read %d table entries from %s", t.Len(), prefix)
	return t, nil
}

func readInts(path string) ([]int, error) {
	var out []int
	err := readLines(path, 1, func(f []int) { out = append(out, f[0]) })
	return out, err
}

// readLines parses every line of path as exactly fields signed integers.
func readLines(path string, fields int, row func([]int)) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	defer file.Close()

	vals := make([]int, fields)
	sc := bufio.NewScanner(file)
	for n := 1; sc.Scan(); n++ {
		parts := strings.Fields(sc.Text())
		if len(parts) != fields {
			return fmt.Errorf("%w: %s:%d: %d fields, want %d", ErrPersistence, path, n, len(parts), fields)
		}
		for i, p := range parts {
			v, err := strconv.Atoi(p)
			if err != nil {
				return fmt.Errorf("%w: %s:%d: %w", ErrPersistence, path, n, err)
			}
			vals[i] = v
		}
		row(vals)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrPersistence, path, err)
	}
	return nil
}

// SaveCorpus writes the raw corpus bytes.
func SaveCorpus(c *corpus.Corpus, prefix string) error {
	path := Path(prefix, FormatCorpus)
	err := utils.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(c.Bytes())
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, path, err)
	}
	return nil
}

// LoadCorpus reads a corpus saved by SaveCorpus. Its first byte is the sentinel.
func LoadCorpus(prefix string) (*corpus.Corpus, error) {
	path := Path(prefix, FormatCorpus)
	if err := ValidateFileFormat(path, FormatCorpus); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	c, err := corpus.New(data, data[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPersistence, path, err)
	}
	return c, nil
}

// SaveCatalog writes the record catalog.
func SaveCatalog(cat *catalog.Catalog, prefix string) error {
	path := Path(prefix, FormatCatalog)
	if err := utils.WriteFileAtomic(path, cat.Encode); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, path, err)
	}
	return nil
}

// LoadCatalog reads a catalog saved by SaveCatalog.
func LoadCatalog(prefix string) (*catalog.Catalog, error) {
	path := Path(prefix, FormatCatalog)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	defer file.Close()

	cat, err := catalog.Decode(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPersistence, path, err)
	}
	return cat, nil
}
