package web

import (
	"html/template"
	"math"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cpmpazar/cpm-pazar/internal/listing"
)

const (
	priceUnit  = " CPM"
	dateLayout = "02.01.2006"

	titleWidth       = 40
	descriptionWidth = 180
)

// FormatPrice renders a price with Turkish digit grouping, rounded to whole
// units, followed by the in-game currency: 1500000 -> "1.500.000 CPM".
func FormatPrice(price float64) string {
	switch {
	case math.IsNaN(price):
		return "NaN" + priceUnit
	case math.IsInf(price, 1):
		return "∞" + priceUnit
	case math.IsInf(price, -1):
		return "-∞" + priceUnit
	}

	// A Printer is not safe for concurrent use
	p := message.NewPrinter(language.Turkish)
	rounded := math.Round(price)
	if math.Abs(rounded) < math.MaxInt64 {
		return p.Sprintf("%d", int64(rounded)) + priceUnit
	}
	return p.Sprintf("%.0f", rounded) + priceUnit
}

// FormatDate renders a millisecond timestamp as a local dd.MM.yyyy date.
func FormatDate(createdAt int64) string {
	return time.UnixMilli(createdAt).Local().Format(dateLayout)
}

// Truncate shortens text to the given display width. Wide characters count
// double, so mixed-script titles line up on the cards.
func Truncate(text string, width int) string {
	return runewidth.Truncate(strings.TrimSpace(text), width, "…")
}

func truncateTitle(text string) string {
	return Truncate(text, titleWidth)
}

func truncateDescription(text string) string {
	return Truncate(text, descriptionWidth)
}

// imageURL marks listing image references as safe for src attributes. Data
// URIs would otherwise be rewritten by html/template; anything that is not an
// inline image or a web URL is replaced by the placeholder.
func imageURL(u string) template.URL {
	switch {
	case strings.HasPrefix(u, "data:image/"),
		strings.HasPrefix(u, "https://"),
		strings.HasPrefix(u, "http://"):
		return template.URL(u)
	default:
		return template.URL(listing.PlaceholderImageURL)
	}
}
