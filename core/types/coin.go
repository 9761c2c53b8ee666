package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/holiman/uint256"
)

// MaxAmountBits bounds coin amounts to the uint128 range used by the ledger.
const MaxAmountBits = 128

var (
	ErrInvalidDenom  = errors.New("coin: invalid denom")
	ErrInvalidAmount = errors.New("coin: invalid amount")
	ErrAmountTooWide = errors.New("coin: amount exceeds uint128")

	denomPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9/:._-]{1,127}$`)
	coinPattern  = regexp.MustCompile(`^([0-9]+)([a-zA-Z][a-zA-Z0-9/:._-]{1,127})$`)
)

// Coin is a single-denomination amount. Amounts never exceed 2^128-1.
type Coin struct {
	Denom  string
	Amount *uint256.Int
}

// NewCoin constructs a coin from a uint64 amount.
func NewCoin(denom string, amount uint64) Coin {
	return Coin{Denom: denom, Amount: uint256.NewInt(amount)}
}

// ParseCoin parses the compact "<amount><denom>" notation, e.g. "10uturnt".
func ParseCoin(raw string) (Coin, error) {
	trimmed := strings.TrimSpace(raw)
	match := coinPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return Coin{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	amount, err := uint256.FromDecimal(match[1])
	if err != nil {
		return Coin{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	coin := Coin{Denom: match[2], Amount: amount}
	if err := coin.Validate(); err != nil {
		return Coin{}, err
	}
	return coin, nil
}

// ValidateDenom reports whether the supplied denom is well formed.
func ValidateDenom(denom string) error {
	if !denomPattern.MatchString(denom) {
		return fmt.Errorf("%w: %q", ErrInvalidDenom, denom)
	}
	return nil
}

// Validate checks the denom format and the uint128 bound. Zero amounts are
// valid coins; callers decide whether zero is acceptable.
func (c Coin) Validate() error {
	if err := ValidateDenom(c.Denom); err != nil {
		return err
	}
	if c.Amount == nil {
		return fmt.Errorf("%w: missing", ErrInvalidAmount)
	}
	if c.Amount.BitLen() > MaxAmountBits {
		return ErrAmountTooWide
	}
	return nil
}

// IsZero reports whether the amount is zero or missing.
func (c Coin) IsZero() bool {
	return c.Amount == nil || c.Amount.IsZero()
}

// Clone returns a deep copy of the coin.
func (c Coin) Clone() Coin {
	out := Coin{Denom: c.Denom}
	if c.Amount != nil {
		out.Amount = new(uint256.Int).Set(c.Amount)
	} else {
		out.Amount = new(uint256.Int)
	}
	return out
}

// Equal compares denom and amount.
func (c Coin) Equal(other Coin) bool {
	if c.Denom != other.Denom {
		return false
	}
	return c.AmountOrZero().Eq(other.AmountOrZero())
}

// AmountOrZero returns the amount, substituting zero for a nil value.
func (c Coin) AmountOrZero() *uint256.Int {
	if c.Amount == nil {
		return new(uint256.Int)
	}
	return c.Amount
}

// String renders the coin in compact notation.
func (c Coin) String() string {
	return c.AmountOrZero().Dec() + c.Denom
}

type coinJSON struct {
	Denom  string          `json:"denom"`
	Amount json.RawMessage `json:"amount"`
}

// MarshalJSON encodes the amount as a decimal string so 128-bit values
// survive JavaScript clients.
func (c Coin) MarshalJSON() ([]byte, error) {
	amount, err := json.Marshal(c.AmountOrZero().Dec())
	if err != nil {
		return nil, err
	}
	return json.Marshal(coinJSON{Denom: c.Denom, Amount: amount})
}

// UnmarshalJSON accepts the amount as a decimal string or a JSON number.
func (c *Coin) UnmarshalJSON(data []byte) error {
	var raw coinJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	text := strings.TrimSpace(string(raw.Amount))
	if text == "" || text == "null" {
		return fmt.Errorf("%w: missing", ErrInvalidAmount)
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw.Amount, &s); err != nil {
			return err
		}
		text = strings.TrimSpace(s)
	}
	amount, err := uint256.FromDecimal(text)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	c.Denom = strings.TrimSpace(raw.Denom)
	c.Amount = amount
	return nil
}

// Coins is the sequence of funds attached to a call.
type Coins []Coin

// Validate checks every entry.
func (cs Coins) Validate() error {
	for i, coin := range cs {
		if err := coin.Validate(); err != nil {
			return fmt.Errorf("funds[%d]: %w", i, err)
		}
	}
	return nil
}

// Clone deep copies the sequence.
func (cs Coins) Clone() Coins {
	if cs == nil {
		return nil
	}
	out := make(Coins, len(cs))
	for i, coin := range cs {
		out[i] = coin.Clone()
	}
	return out
}

// String renders the coins comma separated.
func (cs Coins) String() string {
	parts := make([]string, len(cs))
	for i, coin := range cs {
		parts[i] = coin.String()
	}
	return strings.Join(parts, ",")
}
