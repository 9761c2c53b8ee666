package sales

import (
	"encoding/json"

	"nftmarket/core/types"
)

// Status is the lifecycle phase of a primary sale.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
)

// Sale is a time-boxed minting round. A TotalSupply of zero means unlimited.
// Times are unix seconds.
type Sale struct {
	TotalSupply  uint64     `json:"total_supply"`
	TokensMinted uint64     `json:"tokens_minted"`
	StartTime    int64      `json:"start_time"`
	EndTime      int64      `json:"end_time"`
	Price        types.Coin `json:"price"`
	Disabled     bool       `json:"disabled"`
}

// Clone returns a deep copy of the sale.
func (s *Sale) Clone() *Sale {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Price = s.Price.Clone()
	return &clone
}

func (s *Sale) soldOut() bool {
	return s.TotalSupply > 0 && s.TokensMinted >= s.TotalSupply
}

// Status reports the phase of the sale at now.
func (s *Sale) Status(now int64) Status {
	switch {
	case s.Disabled || s.soldOut() || now >= s.EndTime:
		return StatusEnded
	case now < s.StartTime:
		return StatusScheduled
	default:
		return StatusActive
	}
}

// Contains reports whether the sale is enabled and now falls in
// [StartTime, EndTime).
func (s *Sale) Contains(now int64) bool {
	return !s.Disabled && s.StartTime <= now && now < s.EndTime
}

// purchasable mirrors the scan used by BuyItem. It does not consult
// StartTime.
func (s *Sale) purchasable(now int64) bool {
	return !s.Disabled && s.EndTime > now && (s.TokensMinted < s.TotalSupply || s.TotalSupply == 0)
}

// haltable reports whether HaltSale may disable the sale.
func (s *Sale) haltable(now int64) bool {
	return !s.Disabled && s.EndTime > now
}

// overlaps compares closed intervals, so touching endpoints overlap.
func (s *Sale) overlaps(start, end int64) bool {
	return within(s.StartTime, start, end) || within(s.EndTime, start, end) ||
		within(start, s.StartTime, s.EndTime) || within(end, s.StartTime, s.EndTime)
}

func within(v, lo, hi int64) bool { return lo <= v && v <= hi }

// Object renders the sale as the JSON string used in event attributes.
func (s *Sale) Object() string {
	raw, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(raw)
}

// Purchase describes a completed buy_item call.
type Purchase struct {
	Token    *types.Token     `json:"token"`
	Sale     *Sale            `json:"sale"`
	Fund     types.Coin       `json:"fund"`
	Refund   types.Coin       `json:"refund"`
	Messages []types.BankSend `json:"messages"`
}
