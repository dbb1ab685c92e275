package listing

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCreateListing_ExampleDraft(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	store := NewStore().WithClock(fixedClock(now))

	l := store.CreateListing(context.Background(), Draft{
		Title:      "BMW M5 F90",
		Price:      "1500000",
		SellerName: "KingDrifter01",
	})

	assert.Equal(t, "BMW M5 F90", l.Title)
	assert.Equal(t, float64(1500000), l.Price)
	assert.Equal(t, PlaceholderImageURL, l.ImageURL)
	assert.Equal(t, "KingDrifter01", l.SellerName)
	assert.Equal(t, now.UnixMilli(), l.CreatedAt)
	assert.NotEmpty(t, l.ID)

	listings := store.Listings()
	require.Len(t, listings, 1)
	assert.Equal(t, l, listings[0])
}

func TestCreateListing_Prepends(t *testing.T) {
	store := NewStore()

	l1 := store.CreateListing(context.Background(), Draft{Title: "L1", Price: "1", SellerName: "a"})
	l2 := store.CreateListing(context.Background(), Draft{Title: "L2", Price: "2", SellerName: "b"})

	listings := store.Listings()
	require.Len(t, listings, 2)
	assert.Equal(t, l2.ID, listings[0].ID)
	assert.Equal(t, l1.ID, listings[1].ID)
}

func TestCreateListing_UniqueIDsWithinSameMillisecond(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	store := NewStore().WithClock(fixedClock(now))

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		l := store.CreateListing(context.Background(), Draft{Title: "x", Price: "1", SellerName: "s"})
		assert.False(t, seen[l.ID], "duplicate id %s", l.ID)
		seen[l.ID] = true
	}
	assert.Equal(t, "1700000000000", store.Listings()[4].ID)
	assert.Equal(t, "1700000000004", store.Listings()[0].ID)
}

func TestCreateListing_NonNumericPrice(t *testing.T) {
	store := NewStore()
	l := store.CreateListing(context.Background(), Draft{Title: "Golf", Price: "çok ucuz", SellerName: "s"})
	assert.True(t, math.IsNaN(l.Price))
	assert.False(t, l.HasPrice())
	assert.Equal(t, 1, store.Len())
}

func TestCreateListing_WithImage(t *testing.T) {
	store := NewStore()
	l := store.CreateListing(context.Background(), Draft{
		Title:      "Civic",
		Price:      "100",
		SellerName: "s",
		Image:      &ImageFile{Name: "car.png", ContentType: "image/png", Data: []byte("abc")},
	})
	assert.Equal(t, "data:image/png;base64,YWJj", l.ImageURL)
}

func TestInsert_SplitCreateMatchesCreateListing(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	draft := Draft{
		Title:      "Civic",
		Price:      "100",
		SellerName: "s",
		Image:      &ImageFile{Name: "car.png", ContentType: "image/png", Data: []byte("abc")},
	}

	direct := NewStore().WithClock(fixedClock(now)).CreateListing(context.Background(), draft)

	split := NewStore().WithClock(fixedClock(now))
	imageURL := ResolveImage(context.Background(), draft.Image)
	l := split.Insert(draft, imageURL)

	assert.Equal(t, direct, l)
	assert.Equal(t, []Listing{l}, split.Listings())
}

func TestFilter(t *testing.T) {
	listings := []Listing{
		{ID: "3", Title: "BMW M5", Description: "Drift ayarlı"},
		{ID: "2", Title: "Honda Civic Type R", Description: "Full çizim"},
		{ID: "1", Title: "Golf", Description: "Temiz civic değil"},
	}

	tests := []struct {
		name string
		term string
		want []string
	}{
		{"empty term returns all", "", []string{"3", "2", "1"}},
		{"matches title case-insensitively", "civic", []string{"2", "1"}},
		{"matches description", "DRIFT", []string{"3"}},
		{"no match", "ferrari", []string{}},
		{"upper-case term", "BMW", []string{"3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(listings, tt.term)
			ids := make([]string, 0, len(got))
			for _, l := range got {
				ids = append(ids, l.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestFilter_IsSubsequenceForArbitraryTerms(t *testing.T) {
	listings := []Listing{
		{ID: "a", Title: "Toyota Supra", Description: "1695HP"},
		{ID: "b", Title: "Nissan GT-R", Description: "chrome kaplama"},
		{ID: "c", Title: "Mazda RX-7", Description: "Drift"},
	}

	for _, term := range []string{"", "a", "r", "SUPRA", "x-7", "hp", "zzz"} {
		got := Filter(listings, term)
		var want []Listing
		for _, l := range listings {
			lt := strings.ToLower(term)
			if strings.Contains(strings.ToLower(l.Title), lt) || strings.Contains(strings.ToLower(l.Description), lt) {
				want = append(want, l)
			}
		}
		if want == nil {
			want = []Listing{}
		}
		assert.Equal(t, want, got, "term %q", term)
	}
}

func TestStore_ExampleSearch(t *testing.T) {
	store := NewStore()
	store.CreateListing(context.Background(), Draft{Title: "BMW M5", Price: "1", SellerName: "a"})
	store.CreateListing(context.Background(), Draft{Title: "Honda Civic Type R", Price: "2", SellerName: "b"})

	store.SetSearchTerm("civic")
	filtered := store.Filtered()
	require.Len(t, filtered, 1)
	assert.Equal(t, "Honda Civic Type R", filtered[0].Title)
	assert.Equal(t, "civic", store.SearchTerm())
}

func TestStore_EmptyState(t *testing.T) {
	store := NewStore()
	assert.Equal(t, EmptyNoListings, store.EmptyState())

	store.SetSearchTerm("anything")
	assert.Equal(t, EmptyNoListings, store.EmptyState())

	store.CreateListing(context.Background(), Draft{Title: "BMW", Price: "1", SellerName: "a"})
	assert.Equal(t, EmptyNoMatches, store.EmptyState())

	store.SetSearchTerm("")
	assert.Equal(t, EmptyNone, store.EmptyState())
}

func TestStore_Get(t *testing.T) {
	store := NewStore()
	l := store.CreateListing(context.Background(), Draft{Title: "BMW", Price: "1", SellerName: "a"})

	got, ok := store.Get(l.ID)
	assert.True(t, ok)
	assert.Equal(t, l, got)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestEmptyStateString(t *testing.T) {
	assert.Equal(t, "None", EmptyNone.String())
	assert.Equal(t, "NoListings", EmptyNoListings.String())
	assert.Equal(t, "NoMatches", EmptyNoMatches.String())
	assert.Equal(t, "Unknown(7)", EmptyState(7).String())
}
