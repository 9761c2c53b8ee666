package settlement

import (
	"errors"
	"fmt"
	"sort"

	mkterrors "nftmarket/core/errors"
	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/common"
	"nftmarket/native/listing"
)

var (
	errNilRegistry = errors.New("settlement engine: listing registry not configured")
	errNilTokens   = errors.New("settlement engine: token ledger not configured")
	errNilAllow    = errors.New("settlement engine: allow gate flagged but not configured")
	errNilLock     = errors.New("settlement engine: lock gate flagged but not configured")
)

type registry interface {
	Validate(tokenID string, price types.Coin, requester string) (*listing.Listing, error)
	List(tokenID string, price types.Coin, requester string) (*listing.Listing, error)
	Delist(tokenID, requester string) error
	Get(tokenID string) (*listing.Listing, bool, error)
	Remove(tokenID string) error
	Iterate(startAfter string) (*listing.Iterator, error)
}

type tokenLedger interface {
	Get(id string) (*types.Token, bool, error)
	Transfer(id, to string) error
}

type allowGate interface {
	Permits(addr string) (bool, error)
}

type lockGate interface {
	Check(tokenID string) error
}

// Deps lists the collaborators of an engine. The ownership gate is reached
// through the registry. Allow and Lock are only consulted when the matching
// gate is part of the capability set.
type Deps struct {
	Registry registry
	Tokens   tokenLedger
	Allow    allowGate
	Lock     lockGate
	Emitter  events.Emitter
	Contract string
}

// Engine settles secondary market trades.
type Engine struct {
	gates    Gates
	registry registry
	tokens   tokenLedger
	allow    allowGate
	lock     lockGate
	emitter  events.Emitter
	contract string
}

// Settlement describes a completed purchase.
type Settlement struct {
	TokenID  string           `json:"token_id"`
	Seller   string           `json:"seller"`
	Buyer    string           `json:"buyer"`
	Price    types.Coin       `json:"price"`
	Fund     types.Coin       `json:"fund"`
	Refund   types.Coin       `json:"refund"`
	Messages []types.BankSend `json:"messages"`
}

// NewEngine builds an engine for the capability set. Construction fails when
// a flagged gate has no implementation.
func NewEngine(gates Gates, deps Deps) (*Engine, error) {
	gates |= GateOwnership
	switch {
	case deps.Registry == nil:
		return nil, errNilRegistry
	case deps.Tokens == nil:
		return nil, errNilTokens
	case gates.Has(GateAllow) && deps.Allow == nil:
		return nil, errNilAllow
	case gates.Has(GateLock) && deps.Lock == nil:
		return nil, errNilLock
	}
	e := &Engine{
		gates:    gates,
		registry: deps.Registry,
		tokens:   deps.Tokens,
		emitter:  deps.Emitter,
		contract: deps.Contract,
	}
	if gates.Has(GateAllow) {
		e.allow = deps.Allow
	}
	if gates.Has(GateLock) {
		e.lock = deps.Lock
	}
	if e.emitter == nil {
		e.emitter = events.NoopEmitter{}
	}
	return e, nil
}

// Gates returns the capability set fixed at construction.
func (e *Engine) Gates() Gates { return e.gates }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// List offers every entry for sale. Token ids are processed in ascending
// order and every entry is validated before anything is written.
func (e *Engine) List(listings map[string]types.Coin, requester string) ([]*listing.Listing, error) {
	ids := make([]string, 0, len(listings))
	for id := range listings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	validated := make([]*listing.Listing, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		candidate, err := e.registry.Validate(raw, listings[raw], requester)
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", raw, err)
		}
		if _, dup := seen[candidate.TokenID]; dup {
			return nil, fmt.Errorf("list %q: %w", raw, mkterrors.ErrTokenAlreadyListed)
		}
		seen[candidate.TokenID] = struct{}{}
		if e.lock != nil {
			if err := e.lock.Check(candidate.TokenID); err != nil {
				return nil, fmt.Errorf("list %q: %w", raw, err)
			}
		}
		validated = append(validated, candidate)
	}

	out := make([]*listing.Listing, 0, len(validated))
	for _, candidate := range validated {
		stored, err := e.registry.List(candidate.TokenID, candidate.Price, requester)
		if err != nil {
			return nil, err
		}
		out = append(out, stored)
	}
	return out, nil
}

// Delist withdraws an offer.
func (e *Engine) Delist(tokenID, requester string) error {
	return e.registry.Delist(tokenID, requester)
}

func (e *Engine) checkBuyer(buyer string) error {
	if e.allow == nil {
		return nil
	}
	ok, err := e.allow.Permits(buyer)
	if err != nil {
		return err
	}
	if !ok {
		return mkterrors.ErrUnauthorized
	}
	return nil
}

// BuySpecific purchases the listed token. Every check runs before the token
// moves or the listing is removed.
func (e *Engine) BuySpecific(tokenID string, funds types.Coins, buyer string) (*Settlement, error) {
	if err := e.checkBuyer(buyer); err != nil {
		return nil, err
	}
	if err := common.RequireSingleFund(funds); err != nil {
		return nil, err
	}
	offer, ok, err := e.registry.Get(tokenID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, mkterrors.ErrNoListedTokens
	}
	fund, refund, err := common.SinglePayment(funds, offer.Price)
	if err != nil {
		return nil, err
	}
	if e.lock != nil {
		if err := e.lock.Check(offer.TokenID); err != nil {
			return nil, err
		}
	}
	token, exists, err := e.tokens.Get(offer.TokenID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, mkterrors.ErrTokenIDNotFound
	}
	seller := token.Owner

	if err := e.tokens.Transfer(offer.TokenID, buyer); err != nil {
		return nil, err
	}
	if err := e.registry.Remove(offer.TokenID); err != nil {
		return nil, err
	}

	result := &Settlement{
		TokenID:  offer.TokenID,
		Seller:   seller,
		Buyer:    buyer,
		Price:    offer.Price.Clone(),
		Fund:     fund,
		Refund:   types.Coin{Denom: offer.Price.Denom, Amount: refund},
		Messages: common.PaymentMessages(seller, offer.Price, buyer, refund),
	}
	e.emitter.Emit(events.TokenSold{
		By:       buyer,
		Contract: e.contract,
		TokenID:  offer.TokenID,
		Seller:   seller,
		Price:    result.Price,
		Refund:   result.Refund,
	})
	return result, nil
}

// Cheapest returns the listing that sorts first under (amount, denom,
// token id), all ascending. Listings the lock gate refuses are skipped.
func (e *Engine) Cheapest() (*listing.Listing, error) {
	it, err := e.registry.Iterate("")
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var best *listing.Listing
	for it.Next() {
		entry := it.Entry()
		candidate := &listing.Listing{TokenID: entry.TokenID, Price: entry.Price}
		if best != nil && !cheaper(candidate, best) {
			continue
		}
		if e.lock != nil {
			if err := e.lock.Check(entry.TokenID); err != nil {
				if mkterrors.KindOf(err) == mkterrors.KindStateGate {
					continue
				}
				return nil, err
			}
		}
		if best == nil || cheaper(candidate, best) {
			best = candidate
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	if best == nil {
		return nil, mkterrors.ErrNoListedTokens
	}
	return best, nil
}

// BuyCheapest purchases the cheapest listing.
func (e *Engine) BuyCheapest(funds types.Coins, buyer string) (*Settlement, error) {
	if err := e.checkBuyer(buyer); err != nil {
		return nil, err
	}
	if err := common.RequireSingleFund(funds); err != nil {
		return nil, err
	}
	best, err := e.Cheapest()
	if err != nil {
		return nil, err
	}
	return e.BuySpecific(best.TokenID, funds, buyer)
}

func cheaper(a, b *listing.Listing) bool {
	if c := a.Price.AmountOrZero().Cmp(b.Price.AmountOrZero()); c != 0 {
		return c < 0
	}
	if a.Price.Denom != b.Price.Denom {
		return a.Price.Denom < b.Price.Denom
	}
	return a.TokenID < b.TokenID
}
