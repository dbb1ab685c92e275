package listing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Listing is a published car ad. Listings are never mutated after creation.
type Listing struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	ImageURL    string  `json:"imageUrl"` // Remote URL or data URI
	SellerName  string  `json:"sellerName"`
	CreatedAt   int64   `json:"createdAt"` // Milliseconds since epoch
}

// HasPrice reports whether the price parsed to a real number.
func (l Listing) HasPrice() bool {
	return !math.IsNaN(l.Price) && !math.IsInf(l.Price, 0)
}

// MarshalJSON encodes a NaN price as null, which encoding/json would otherwise reject.
func (l Listing) MarshalJSON() ([]byte, error) {
	type alias Listing
	out := struct {
		alias
		Price *float64 `json:"price"`
	}{alias: alias(l)}
	if l.HasPrice() {
		out.Price = &l.Price
	}
	return json.Marshal(out)
}

// ImageFile is an image picked on the user's device. It only lives in memory
// for the lifetime of the draft and is never uploaded anywhere.
type ImageFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Draft is the in-progress form state of a new listing. Price is kept as the
// raw text the user typed until submission.
type Draft struct {
	Title       string
	Price       string
	Description string
	SellerName  string
	Image       *ImageFile
}

// CanSubmit reports whether the required fields (title, price, seller name)
// are present. Nothing else is validated.
func (d Draft) CanSubmit() bool {
	return d.Title != "" && d.Price != "" && d.SellerName != ""
}

// CanGenerate reports whether the draft has enough data to request generated ad copy.
func (d Draft) CanGenerate() bool {
	return d.Title != "" && d.Price != ""
}

// ParsePrice converts the raw price text to a number. Anything that is not a
// complete decimal number becomes NaN.
func ParsePrice(text string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
