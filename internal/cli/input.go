// Package cli handles interactive mass queries for debugging and exploring an index
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bastiangx/massfind/internal/utils"
	"github.com/bastiangx/massfind/pkg/catalog"
	"github.com/bastiangx/massfind/pkg/search"
	"github.com/charmbracelet/log"
)

// InputHandler reads query masses from stdin and prints the peptides that
// match them. Lines starting with ':' change the query options:
//
//	:tol 0.05     tolerance
//	:mods 1       maximum modifications per peptide
//	:tags PEP,LVN sequence tags, ":tags" alone clears them
//	:rec sp|P02   records whose accession starts with the prefix, or the
//	              one record with exactly that accession
type InputHandler struct {
	searcher     search.ISearcher
	catalog      *catalog.Catalog
	tolerance    float64
	maxMods      int
	tags         []string
	hitLimit     int
	requestCount int
}

// NewInputHandler handles initialization of the InputHandler with basic parameters
func NewInputHandler(s search.ISearcher, cat *catalog.Catalog, tolerance float64, maxMods, limit int) *InputHandler {
	return &InputHandler{
		searcher:  s,
		catalog:   cat,
		tolerance: tolerance,
		maxMods:   maxMods,
		hitLimit:  limit,
	}
}

// Start begins the interface loop on stdin.
func (h *InputHandler) Start() error {
	log.Print("massfind CLI")
	log.Print("enter masses separated by spaces and press Enter (Ctrl+C to exit):")
	return h.Run(os.Stdin)
}

// Run processes lines from r until it ends.
func (h *InputHandler) Run(r io.Reader) error {
	reader := bufio.NewReader(r)
	for {
		log.Print("> ")
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			if _, herr := h.handleInput(line); herr != nil {
				log.Error(herr)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// handleInput runs one command or query and returns the number of hits printed.
func (h *InputHandler) handleInput(line string) (int, error) {
	if strings.HasPrefix(line, ":") {
		return 0, h.handleCommand(line[1:])
	}
	h.requestCount++

	masses, err := utils.ParseMasses(line)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	hits, err := h.searcher.Search(context.Background(), search.Query{
		Masses:    masses,
		Tolerance: h.tolerance,
		MaxMods:   h.maxMods,
		Tags:      h.tags,
	})
	if err != nil {
		return 0, err
	}
	log.Debugf("Took [ %v ] for %d masses", time.Since(start), len(masses))

	c := h.searcher.Index().Corpus()
	printed := 0
	for p, slot := range hits {
		if len(slot) == 0 {
			log.Warnf("No peptides within %v of %v", h.tolerance, masses[p])
			continue
		}
		log.Printf("%.4f: %s peptides", masses[p], utils.FormatWithCommas(len(slot)))
		for i, hit := range slot {
			if h.hitLimit > 0 && i >= h.hitLimit {
				log.Printf("    ... %d more", len(slot)-i)
				break
			}
			where := fmt.Sprintf("@%d", hit.Region.Start)
			if h.catalog != nil {
				where = h.catalog.Label(hit.Region)
			}
			pep := fmt.Sprintf("\033[38;5;75m%s\033[0m", c.String(hit.Region))
			log.Printf("%2d. %-40s %-24s %+.4f", i+1, pep, where, hit.Delta)
			printed++
		}
	}
	return printed, nil
}

func (h *InputHandler) handleCommand(cmd string) error {
	name, arg, _ := strings.Cut(strings.TrimSpace(cmd), " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "tol":
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil || v < 0 {
			return fmt.Errorf("invalid tolerance %q", arg)
		}
		h.tolerance = v
	case "mods":
		v, err := strconv.Atoi(arg)
		if err != nil || v < 0 {
			return fmt.Errorf("invalid modification count %q", arg)
		}
		h.maxMods = v
	case "tags":
		h.tags = utils.ParseTags(arg)
	case "rec":
		_, err := h.listRecords(arg)
		return err
	default:
		return fmt.Errorf("unknown command %q", name)
	}
	log.Infof("tolerance=%v mods=%d tags=%v", h.tolerance, h.maxMods, h.tags)
	return nil
}

// listRecords prints catalog records whose id starts with prefix.
func (h *InputHandler) listRecords(prefix string) (int, error) {
	if h.catalog == nil {
		return 0, fmt.Errorf("no catalog loaded")
	}
	if prefix == "" {
		return 0, fmt.Errorf("usage: :rec <accession prefix>")
	}
	records := h.catalog.WithPrefix(prefix, h.hitLimit)
	if rec, ok := h.catalog.Lookup(prefix); ok {
		// an exact accession hides the longer ones it prefixes
		records = []catalog.Record{rec}
	}
	if len(records) == 0 {
		log.Warnf("No records starting with %q", prefix)
		return 0, nil
	}
	for i, rec := range records {
		log.Printf("%2d. %-24s %6s aa  %s", i+1, rec.ID, utils.FormatWithCommas(rec.Length), rec.Description)
	}
	return len(records), nil
}
