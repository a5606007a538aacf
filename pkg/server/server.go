package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bastiangx/massfind/pkg/catalog"
	"github.com/bastiangx/massfind/pkg/config"
	"github.com/bastiangx/massfind/pkg/search"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// Server handles the IPC for mass searches
type Server struct {
	searcher search.ISearcher
	catalog  *catalog.Catalog
	config   *config.Config
	dec      *msgpack.Decoder
	out      *bufio.Writer
	enc      *msgpack.Encoder
}

// NewServer creates a search server using stdin/stdout for IPC
func NewServer(s search.ISearcher, cat *catalog.Catalog, cfg *config.Config) *Server {
	return NewServerWithIO(s, cat, cfg, os.Stdin, os.Stdout)
}

// NewServerWithIO creates a server on any reader and writer pair
func NewServerWithIO(s search.ISearcher, cat *catalog.Catalog, cfg *config.Config, r io.Reader, w io.Writer) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	out := bufio.NewWriter(w)
	return &Server{
		searcher: s,
		catalog:  cat,
		config:   cfg,
		dec:      msgpack.NewDecoder(bufio.NewReader(r)),
		out:      out,
		enc:      msgpack.NewEncoder(out),
	}
}

// Start serves requests until the input ends or ctx is canceled
func (s *Server) Start(ctx context.Context) error {
	log.Debug("Starting Server.")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var req SearchRequest
		if err := s.dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			log.Errorf("Decoding request: %v", err)
			s.sendError("", fmt.Sprintf("malformed request: %v", err), 400)
			return err
		}
		s.handle(ctx, &req)
	}
}

func (s *Server) handle(ctx context.Context, req *SearchRequest) {
	switch req.Action {
	case "":
		s.handleSearch(ctx, req)
	case "get_info":
		s.handleInfo(req)
	case "lookup":
		s.handleLookup(req)
	default:
		s.sendError(req.ID, fmt.Sprintf("unknown action %q", req.Action), 400)
	}
}

func (s *Server) handleSearch(ctx context.Context, req *SearchRequest) {
	start := time.Now()

	if n := s.config.Server.MaxMasses; n > 0 && len(req.Masses) > n {
		s.sendError(req.ID, fmt.Sprintf("too many masses: %d (max %d)", len(req.Masses), n), 400)
		return
	}
	q := search.Query{
		Masses:    req.Masses,
		Tolerance: s.config.Search.Tolerance,
		MaxMods:   s.config.Search.MaxMods,
		Tags:      upperTags(req.Tags),
	}
	if req.Tolerance != nil {
		q.Tolerance = *req.Tolerance
	}
	if req.MaxMods != nil {
		q.MaxMods = *req.MaxMods
	}

	hits, err := s.searcher.Search(ctx, q)
	if err != nil {
		log.Debugf("Search %s failed: %v", req.ID, err)
		s.sendError(req.ID, err.Error(), errorCode(err))
		return
	}

	limit := s.config.Server.MaxHits
	if req.Limit > 0 && (limit <= 0 || req.Limit < limit) {
		limit = req.Limit
	}
	resp := SearchResponse{
		ID:    req.ID,
		Slots: make([]SearchSlot, len(hits)),
	}
	for p, slot := range hits {
		resp.Slots[p] = s.renderSlot(req.Masses[p], slot, limit)
		resp.Count += len(resp.Slots[p].Hits)
	}
	resp.TimeTaken = time.Since(start).Microseconds()
	s.send(resp)
}

func (s *Server) renderSlot(mass float64, slot []search.Hit, limit int) SearchSlot {
	out := SearchSlot{Mass: mass, Hits: make([]SearchHit, 0, len(slot))}
	c := s.searcher.Index().Corpus()
	for i, h := range slot {
		if limit > 0 && i >= limit {
			out.More = true
			break
		}
		hit := SearchHit{Peptide: c.String(h.Region), Delta: h.Delta}
		if s.catalog != nil {
			if rec, off, ok := s.catalog.Offset(h.Region); ok {
				hit.Record, hit.Offset = rec.ID, off
			}
		}
		out.Hits = append(out.Hits, hit)
	}
	return out
}

// upperTags copies tags in the residue alphabet's case.
func upperTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = strings.ToUpper(t)
	}
	return out
}

func (s *Server) handleLookup(req *SearchRequest) {
	if s.catalog == nil {
		s.sendError(req.ID, "no catalog loaded", 500)
		return
	}
	if req.Prefix == "" {
		s.sendError(req.ID, "lookup needs a prefix", 400)
		return
	}
	limit := s.config.Server.MaxHits
	if req.Limit > 0 && (limit <= 0 || req.Limit < limit) {
		limit = req.Limit
	}
	records := s.catalog.WithPrefix(req.Prefix, limit)
	if records == nil {
		records = []catalog.Record{}
	}
	s.send(LookupResponse{ID: req.ID, Records: records, Count: len(records)})
}

func (s *Server) handleInfo(req *SearchRequest) {
	stats := s.searcher.Stats()
	s.send(InfoResponse{
		ID:            req.ID,
		Status:        "ok",
		Entries:       stats["entries"],
		Records:       stats["records"],
		CorpusBytes:   stats["corpusBytes"],
		Modifications: stats["modifications"],
		Tolerance:     s.config.Search.Tolerance,
		MaxMods:       s.config.Search.MaxMods,
	})
}

// errorCode maps search errors onto the codes clients see
func errorCode(err error) int {
	switch {
	case errors.Is(err, search.ErrInvalidInput):
		return 400
	case errors.Is(err, search.ErrBudgetExceeded):
		return 422
	default:
		return 500
	}
}

func (s *Server) sendError(id, msg string, code int) {
	s.send(SearchError{ID: id, Error: msg, Code: code})
}

func (s *Server) send(v any) {
	if err := s.enc.Encode(v); err != nil {
		log.Errorf("Encoding response: %v", err)
		return
	}
	if err := s.out.Flush(); err != nil {
		log.Errorf("Writing response: %v", err)
	}
}
