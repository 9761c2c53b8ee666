package types

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Token is a non-fungible token held in the ledger. Lock and redemption
// state is tracked separately by the redeemable module.
type Token struct {
	ID       string `json:"token_id"`
	Owner    string `json:"owner"`
	TokenURI string `json:"token_uri,omitempty"`
	Metadata string `json:"metadata,omitempty"`
}

// Clone returns a copy of the token.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}

// MintRequest carries the caller supplied definition of a token minted during
// a primary sale.
type MintRequest struct {
	TokenID  string `json:"token_id"`
	Owner    string `json:"owner,omitempty"`
	TokenURI string `json:"token_uri,omitempty"`
	Metadata string `json:"metadata,omitempty"`
}

// ErrEmptyTokenID is returned when a token id normalises to the empty string.
var ErrEmptyTokenID = errors.New("token: token_id required")

const maxTokenIDLength = 256

// NormalizeTokenID trims surrounding whitespace and applies Unicode NFC so
// visually identical ids share one storage key.
func NormalizeTokenID(id string) (string, error) {
	normalized := norm.NFC.String(strings.TrimSpace(id))
	if normalized == "" {
		return "", ErrEmptyTokenID
	}
	if len(normalized) > maxTokenIDLength {
		return "", fmt.Errorf("token: token_id longer than %d bytes", maxTokenIDLength)
	}
	return normalized, nil
}
