package contact

import (
	"context"
	"fmt"

	"github.com/cpmpazar/cpm-pazar/internal/listing"
)

const (
	MsgContactSimulated = "Satıcıyla (%s) iletişime geçiliyor... (Simülasyon)"
	MsgContactRelayed   = "Mesajın moderatörlere iletildi, %s seninle oyunda iletişime geçecek."
)

// Contacter performs the contact-seller action for a listing and returns the
// acknowledgement shown to the buyer.
type Contacter interface {
	ContactSeller(ctx context.Context, l listing.Listing) (string, error)
}

// Simulated acknowledges locally. Nothing is sent or stored.
type Simulated struct{}

// ContactSeller implements Contacter.
func (Simulated) ContactSeller(_ context.Context, l listing.Listing) (string, error) {
	return fmt.Sprintf(MsgContactSimulated, l.SellerName), nil
}
