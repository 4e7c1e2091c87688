// Package seeding holds the one-shot jobs that populate the restaurant data
// stores: the Yelp loader that fills the lookup table and the indexer that
// projects it into the search index.
package seeding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jianxion/Dining-Concierge-Chatbot/internal/domain"
	"github.com/jianxion/Dining-Concierge-Chatbot/internal/integrations/yelp"
	"github.com/jianxion/Dining-Concierge-Chatbot/internal/slots"
)

const (
	searchLocation   = "Manhattan, NY"
	searchPageLimit  = 50 // Yelp caps pages at 50
	perCuisineTarget = 200
	pageThrottle     = 350 * time.Millisecond
)

// BusinessSearcher pages through Yelp business search results.
// *yelp.Client satisfies this interface.
type BusinessSearcher interface {
	SearchBusinesses(ctx context.Context, p yelp.SearchParams) ([]yelp.Business, error)
}

// RestaurantWriter persists shaped restaurant records.
// *repository.Client satisfies this interface.
type RestaurantWriter interface {
	BatchWriteRestaurants(ctx context.Context, restaurants []domain.Restaurant) error
}

// Loader collects restaurants from Yelp for every supported cuisine and
// writes them to the lookup table.
type Loader struct {
	yelp  BusinessSearcher
	store RestaurantWriter
	sleep func(time.Duration)
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithSleep overrides the inter-page throttle, for tests.
func WithSleep(fn func(time.Duration)) LoaderOption {
	return func(l *Loader) {
		l.sleep = fn
	}
}

// NewLoader wires a Loader from its dependencies.
func NewLoader(searcher BusinessSearcher, store RestaurantWriter, opts ...LoaderOption) (*Loader, error) {
	if searcher == nil {
		return nil, errors.New("seeding: business searcher must not be nil")
	}
	if store == nil {
		return nil, errors.New("seeding: restaurant writer must not be nil")
	}
	l := &Loader{
		yelp:  searcher,
		store: store,
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run fetches up to perCuisineTarget businesses per supported cuisine,
// dedupes them across cuisines by business ID, and writes the whole batch to
// the lookup table. It returns the number of records written.
func (l *Loader) Run(ctx context.Context) (int, error) {
	seen := make(map[string]struct{})
	var restaurants []domain.Restaurant

	for _, cuisine := range slots.Cuisines() {
		for _, biz := range l.fetchCuisine(ctx, cuisine) {
			if _, ok := seen[biz.ID]; ok {
				continue
			}
			seen[biz.ID] = struct{}{}
			restaurants = append(restaurants, shapeRestaurant(biz, cuisine))
		}
	}

	if err := l.store.BatchWriteRestaurants(ctx, restaurants); err != nil {
		return 0, fmt.Errorf("seeding: write restaurants: %w", err)
	}
	slog.Info("seeded restaurant table", "count", len(restaurants))
	return len(restaurants), nil
}

// fetchCuisine pages through one cuisine's search results until the target
// count is reached or the results run dry. A page error stops this cuisine
// but keeps whatever was collected so far; the remaining cuisines still run.
func (l *Loader) fetchCuisine(ctx context.Context, cuisine string) []yelp.Business {
	var collected []yelp.Business
	seen := make(map[string]struct{})

	for offset := 0; offset < perCuisineTarget; offset += searchPageLimit {
		page, err := l.yelp.SearchBusinesses(ctx, yelp.SearchParams{
			Term:     cuisine + " restaurants",
			Location: searchLocation,
			Limit:    searchPageLimit,
			Offset:   offset,
			SortBy:   "best_match",
		})
		if err != nil {
			slog.Error("yelp search page failed", "cuisine", cuisine, "offset", offset, "err", err)
			break
		}
		if len(page) == 0 {
			break
		}
		for _, biz := range page {
			if biz.ID == "" {
				continue
			}
			if _, ok := seen[biz.ID]; ok {
				continue
			}
			seen[biz.ID] = struct{}{}
			collected = append(collected, biz)
		}
		if len(collected) >= perCuisineTarget {
			collected = collected[:perCuisineTarget]
			break
		}
		l.sleep(pageThrottle)
	}

	slog.Info("collected businesses", "cuisine", cuisine, "count", len(collected))
	return collected
}

func shapeRestaurant(biz yelp.Business, cuisine string) domain.Restaurant {
	r := domain.Restaurant{
		BusinessID:  biz.ID,
		Name:        biz.Name,
		Address:     formatAddress(biz.Location),
		ReviewCount: biz.ReviewCount,
		Rating:      biz.Rating,
		ZipCode:     biz.Location.ZipCode,
		Cuisine:     cuisine,
		InsertedAt:  nowUTC().Format(time.RFC3339),
	}
	if biz.Coordinates.Latitude != nil && biz.Coordinates.Longitude != nil {
		r.Coordinates = &domain.Coordinates{
			Lat: *biz.Coordinates.Latitude,
			Lon: *biz.Coordinates.Longitude,
		}
	}
	return r
}

// formatAddress joins the street lines, city, state, and zip into one
// comma-separated line, skipping blanks.
func formatAddress(loc yelp.Location) string {
	var parts []string
	for _, p := range []string{loc.Address1, loc.Address2, loc.Address3, loc.City, loc.State, loc.ZipCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

var nowUTC = func() time.Time {
	return time.Now().UTC()
}
