package listing

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
)

// EmptyState tells the page which message to show instead of the grid.
type EmptyState int

const (
	EmptyNone       EmptyState = iota // Render the grid
	EmptyNoListings                   // Nothing has been listed yet
	EmptyNoMatches                    // Listings exist but none match the search term
)

// String returns a human-readable name for the EmptyState.
func (e EmptyState) String() string {
	switch e {
	case EmptyNone:
		return "None"
	case EmptyNoListings:
		return "NoListings"
	case EmptyNoMatches:
		return "NoMatches"
	default:
		return "Unknown(" + strconv.Itoa(int(e)) + ")"
	}
}

// Store owns the listing sequence and the active search term of one session.
// The sequence is ordered most recent first.
type Store struct {
	mu         sync.RWMutex
	listings   []Listing
	searchTerm string
	lastID     int64
	now        func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// CreateListing resolves the draft's image, builds a listing with a fresh id
// and timestamp and prepends it to the sequence. Callers are expected to have
// checked Draft.CanSubmit.
//
// It is the synchronous form of the two steps below. Callers that must not
// block on image conversion, such as a session worker, run ResolveImage in a
// separate goroutine and hand its result to Insert.
func (s *Store) CreateListing(ctx context.Context, draft Draft) Listing {
	return s.Insert(draft, ResolveImage(ctx, draft.Image))
}

// Insert is the second half of CreateListing: it builds a listing from the
// draft with an image reference already produced by ResolveImage and
// prepends it. The price is parsed here.
func (s *Store) Insert(draft Draft, imageURL string) Listing {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	l := Listing{
		ID:          s.nextID(now),
		Title:       draft.Title,
		Price:       ParsePrice(draft.Price),
		Description: draft.Description,
		ImageURL:    imageURL,
		SellerName:  draft.SellerName,
		CreatedAt:   now.UnixMilli(),
	}

	s.listings = append([]Listing{l}, s.listings...)

	log.Info().
		Str("id", l.ID).
		Str("title", l.Title).
		Float64("price", l.Price).
		Str("seller", l.SellerName).
		Int("count", len(s.listings)).
		Msg("listing created")

	return l
}

// nextID derives the id from the creation timestamp. Two listings created in
// the same millisecond would collide, so ids are kept strictly increasing.
func (s *Store) nextID(now time.Time) string {
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return strconv.FormatInt(id, 10)
}

// SetSearchTerm replaces the active filter. An empty term disables filtering.
func (s *Store) SetSearchTerm(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchTerm = term
}

// SearchTerm returns the active filter.
func (s *Store) SearchTerm() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchTerm
}

// Listings returns a copy of the full sequence.
func (s *Store) Listings() []Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Listing, len(s.listings))
	copy(out, s.listings)
	return out
}

// Get returns the listing with the given id.
func (s *Store) Get(id string) (Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.listings {
		if l.ID == id {
			return l, true
		}
	}
	return Listing{}, false
}

// Len returns the number of listings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listings)
}

// Filtered returns the listings matching the active search term.
func (s *Store) Filtered() []Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Filter(s.listings, s.searchTerm)
}

// EmptyState reports which empty-state message applies, if any.
func (s *Store) EmptyState() EmptyState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return emptyStateFor(len(s.listings), len(Filter(s.listings, s.searchTerm)))
}

func emptyStateFor(total, matched int) EmptyState {
	switch {
	case total == 0:
		return EmptyNoListings
	case matched == 0:
		return EmptyNoMatches
	default:
		return EmptyNone
	}
}

// Filter returns the subsequence of listings whose title or description
// contains term, ignoring case. The order of the input is preserved and an
// empty term returns every listing.
func Filter(listings []Listing, term string) []Listing {
	// A Caser is stateful and must not be shared between goroutines
	fold := cases.Fold()
	needle := fold.String(term)

	out := make([]Listing, 0, len(listings))
	for _, l := range listings {
		if needle == "" ||
			strings.Contains(fold.String(l.Title), needle) ||
			strings.Contains(fold.String(l.Description), needle) {
			out = append(out, l)
		}
	}
	return out
}
