// Package gallery builds filtered, paginated views over the record store,
// loading payloads lazily per visible page. The local store is always
// preferred; a fresh device with an empty store falls back to the remote
// archive so account history still shows up.
package gallery

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/artbox-app/artbox/internal/log"
	"github.com/artbox-app/artbox/internal/models"
	"github.com/artbox-app/artbox/internal/store"
	"github.com/artbox-app/artbox/internal/sync"
)

// DefaultPageSize is used when a caller passes a non-positive page size.
const DefaultPageSize = 20

// Query selects a view over the archive.
type Query struct {
	TagID         string // exact tag membership
	SearchText    string // case-insensitive match on prompt / prompt summary
	FavoritesOnly bool
}

// Gallery serves consistent paged views of whichever source is
// authoritative for this device.
type Gallery struct {
	store  *store.Store
	engine *sync.Engine
}

// New creates a gallery over the store, with the sync engine as the remote
// fallback source. engine may be nil for purely local use.
func New(s *store.Store, engine *sync.Engine) *Gallery {
	return &Gallery{store: s, engine: engine}
}

// Records returns the filtered, ordered record list. An empty local store
// triggers a one-time additive pull of the remote archive; local data, once
// present, always wins over a remote fetch for the same uuid.
func (g *Gallery) Records(ctx context.Context, q Query) ([]models.ImageRecord, error) {
	count, err := g.store.CountRecords()
	if err != nil {
		return nil, err
	}
	if count == 0 && g.engine != nil {
		if _, err := g.engine.DownloadAll(ctx, false); err != nil {
			// Remote unreachable is not fatal: serve the (empty) local view.
			log.Errorf("gallery: remote fallback failed: %v", err)
		}
	}

	recs, err := g.store.ListRecords()
	if err != nil {
		return nil, err
	}
	return Filter(recs, q), nil
}

// Filter applies the query and orders descending by timestamp. A missing
// timestamp sorts as epoch zero, i.e. last. Pure function.
func Filter(records []models.ImageRecord, q Query) []models.ImageRecord {
	needle := strings.ToLower(strings.TrimSpace(q.SearchText))

	out := make([]models.ImageRecord, 0, len(records))
	for _, rec := range records {
		if q.FavoritesOnly && !rec.Favorite {
			continue
		}
		if q.TagID != "" && !rec.HasTag(q.TagID) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(rec.Prompt), needle) &&
			!strings.Contains(strings.ToLower(rec.PromptSummary), needle) {
			continue
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Page is one visible slice of a filtered view.
type Page struct {
	Records    []models.ImageRecord
	Number     int
	Size       int
	TotalPages int
	TotalItems int
}

// Paginate slices records into the requested page. The page number is
// clamped so it never exceeds the total page count — a page-size change
// mid-browse lands on the nearest valid page instead of past the end.
func Paginate(records []models.ImageRecord, page, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	totalItems := len(records)
	totalPages := (totalItems + pageSize - 1) / pageSize

	if upper := max(totalPages, 1); page > upper {
		page = upper
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > totalItems {
		start = totalItems
	}
	if end > totalItems {
		end = totalItems
	}

	return Page{
		Records:    records[start:end],
		Number:     page,
		Size:       pageSize,
		TotalPages: totalPages,
		TotalItems: totalItems,
	}
}

// LoadPageBlobs resolves payloads for the visible slice only. Dangling
// records (metadata without a blob) come back in the unavailable list and
// never fail the page render.
func (g *Gallery) LoadPageBlobs(page Page) (map[string]*models.ImageBlob, []string) {
	blobs := make(map[string]*models.ImageBlob, len(page.Records))
	var unavailable []string

	for _, rec := range page.Records {
		blob, err := g.store.GetBlob(rec.UUID)
		if err != nil {
			if !errors.Is(err, store.ErrItemUnavailable) {
				log.Errorf("gallery: load blob %s: %v", rec.UUID, err)
			}
			unavailable = append(unavailable, rec.UUID)
			continue
		}
		blobs[rec.UUID] = blob
	}
	return blobs, unavailable
}
