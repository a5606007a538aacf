// Package fasta reads protein FASTA files into records for the corpus builder.
package fasta

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bastiangx/massfind/internal/utils"
	"github.com/charmbracelet/log"
)

// Record is one parsed sequence.
type Record struct {
	ID          string
	Description string
	Seq         []byte
}

// maxLine allows very long single-line sequences.
const maxLine = 64 * 1024 * 1024

type multiReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiReadCloser) Close() error {
	var err error
	for _, c := range m.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Open returns a reader for path, decompressing gzip input. "-" reads stdin.
func Open(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	// gzip magic number or .gz suffix
	var sig [2]byte
	n, _ := fh.Read(sig[:])
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		_ = fh.Close()
		return nil, err
	}
	if (n == 2 && sig[0] == 0x1f && sig[1] == 0x8b) || strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(fh)
		if err != nil {
			_ = fh.Close()
			return nil, err
		}
		return &multiReadCloser{Reader: gr, closers: []io.Closer{gr, fh}}, nil
	}
	return fh, nil
}

// Stream parses r and calls emit once per record. Residues are upper-cased
// and anything that is not a letter is dropped. Sequence bytes are copied,
// so emit may keep them.
func Stream(ctx context.Context, r io.Reader, emit func(Record) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)

	var (
		cur   Record
		open  bool
		seq   = make([]byte, 0, 1<<16)
		count int
	)
	flush := func() error {
		if !open {
			return nil
		}
		count++
		if cur.ID == "" {
			cur.ID = fmt.Sprintf("record_%d", count)
		}
		cur.Seq = append([]byte(nil), seq...)
		seq = seq[:0]
		return emit(cur)
	}

	for sc.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := sc.Bytes()
		if len(line) == 0 || line[0] == ';' {
			continue
		}
		if line[0] == '>' {
			if err := flush(); err != nil {
				return err
			}
			cur = Record{}
			cur.ID, cur.Description = parseHeader(line[1:])
			open = true
			continue
		}
		// a sequence before any header starts an unnamed record
		open = true
		n := len(seq)
		seq = append(seq, line...)
		seq = seq[:n+len(utils.NormalizeSequence(seq[n:]))]
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("fasta scan: %w", err)
	}
	return flush()
}

// ReadFile loads every record of path.
func ReadFile(ctx context.Context, path string) ([]Record, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var out []Record
	err = Stream(ctx, rc, func(r Record) error {
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	log.Debugf("Read %d records from %s", len(out), path)
	return out, nil
}

// Split returns the ids, descriptions and sequences of records.
func Split(records []Record) (ids, descriptions []string, seqs [][]byte) {
	ids = make([]string, len(records))
	descriptions = make([]string, len(records))
	seqs = make([][]byte, len(records))
	for i, r := range records {
		ids[i] = r.ID
		descriptions[i] = r.Description
		seqs[i] = r.Seq
	}
	return ids, descriptions, seqs
}

func parseHeader(hdr []byte) (id, desc string) {
	hdr = bytes.TrimSpace(hdr)
	if i := bytes.IndexAny(hdr, " \t"); i >= 0 {
		return string(hdr[:i]), string(bytes.TrimSpace(hdr[i+1:]))
	}
	return string(hdr), ""
}
