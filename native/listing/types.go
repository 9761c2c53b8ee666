package listing

import "nftmarket/core/types"

const (
	// DefaultPageLimit is used when a caller does not request a page size.
	DefaultPageLimit = 500
	// MaxPageLimit caps every page regardless of the requested size.
	MaxPageLimit = 10000
)

// Listing is an offer to sell a token at a fixed price.
type Listing struct {
	TokenID string     `json:"token_id"`
	Price   types.Coin `json:"price"`
}

// Clone returns a deep copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	return &Listing{TokenID: l.TokenID, Price: l.Price.Clone()}
}

// Entry joins a listing with the listed token.
type Entry struct {
	TokenID string       `json:"token_id"`
	Price   types.Coin   `json:"price"`
	Token   *types.Token `json:"token"`
}

// Page is one slice of the listing index. Next is the start_after value for
// the following page and is empty once the index is exhausted.
type Page struct {
	Entries []Entry `json:"entries"`
	Next    string  `json:"next,omitempty"`
}

// Cursor walks stored listings in ascending token id order.
type Cursor interface {
	Next() bool
	Listing() *Listing
	Error() error
	Release()
}

// ClampLimit applies the default and the hard cap.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageLimit
	case limit > MaxPageLimit:
		return MaxPageLimit
	default:
		return limit
	}
}
