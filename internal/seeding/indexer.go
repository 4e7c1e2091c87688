package seeding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jianxion/Dining-Concierge-Chatbot/internal/domain"
	"github.com/jianxion/Dining-Concierge-Chatbot/internal/integrations/search"
)

// RefScanner lists thin restaurant references from the lookup table.
// *repository.Client satisfies this interface.
type RefScanner interface {
	ScanRestaurantRefs(ctx context.Context) ([]domain.RestaurantRef, error)
}

// SearchIndex prepares and fills the restaurants search index.
// *search.Client satisfies this interface.
type SearchIndex interface {
	EnsureIndex(ctx context.Context) error
	BulkIndex(ctx context.Context, refs []domain.RestaurantRef) (search.BulkStats, error)
}

// Indexer projects the lookup table into the search index so the fulfillment
// worker can sample restaurants by cuisine.
type Indexer struct {
	store RefScanner
	index SearchIndex
}

// NewIndexer wires an Indexer from its dependencies.
func NewIndexer(store RefScanner, index SearchIndex) (*Indexer, error) {
	if store == nil {
		return nil, errors.New("seeding: ref scanner must not be nil")
	}
	if index == nil {
		return nil, errors.New("seeding: search index must not be nil")
	}
	return &Indexer{store: store, index: index}, nil
}

// Run creates the index if needed, scans every restaurant reference, and
// bulk-indexes them.
func (ix *Indexer) Run(ctx context.Context) (search.BulkStats, error) {
	if err := ix.index.EnsureIndex(ctx); err != nil {
		return search.BulkStats{}, fmt.Errorf("seeding: ensure index: %w", err)
	}

	refs, err := ix.store.ScanRestaurantRefs(ctx)
	if err != nil {
		return search.BulkStats{}, fmt.Errorf("seeding: scan restaurants: %w", err)
	}
	slog.Info("scanned restaurant references", "count", len(refs))

	stats, err := ix.index.BulkIndex(ctx, refs)
	if err != nil {
		return stats, fmt.Errorf("seeding: bulk index: %w", err)
	}
	if stats.Failed > 0 {
		slog.Warn("bulk indexing finished with failures", "indexed", stats.Indexed, "failed", stats.Failed)
	} else {
		slog.Info("bulk indexing finished", "indexed", stats.Indexed)
	}
	return stats, nil
}
