package search

import (
	"context"

	"github.com/bastiangx/massfind/pkg/index"
)

// ISearcher defines the interface the CLI and the IPC server search through
type ISearcher interface {
	// Search runs a query against the bound index
	Search(ctx context.Context, q Query) ([][]Hit, error)

	// Index returns the bound index, used to render hits
	Index() *index.Index

	// Stats returns statistics about the loaded index
	Stats() map[string]int
}

// Searcher binds an Engine to one index.
type Searcher struct {
	engine *Engine
	index  *index.Index
}

// NewSearcher returns a Searcher over ix.
func NewSearcher(e *Engine, ix *index.Index) *Searcher {
	return &Searcher{engine: e, index: ix}
}

func (s *Searcher) Search(ctx context.Context, q Query) ([][]Hit, error) {
	return s.engine.Find(ctx, s.index, q)
}

func (s *Searcher) Index() *index.Index { return s.index }

func (s *Searcher) Stats() map[string]int {
	stats := map[string]int{
		"entries":     s.index.Len(),
		"corpusBytes": s.index.Corpus().Len(),
		"records":     len(s.index.Corpus().RecordStarts()),
	}
	if s.engine.mods != nil {
		stats["modifications"] = s.engine.mods.Len()
	}
	return stats
}
