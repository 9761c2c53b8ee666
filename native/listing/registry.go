package listing

import (
	"errors"
	"strings"

	mkterrors "nftmarket/core/errors"
	"nftmarket/core/events"
	"nftmarket/core/types"
)

var (
	errNilState     = errors.New("listing registry: state not configured")
	errNilTokens    = errors.New("listing registry: token ledger not configured")
	errNilOwnerGate = errors.New("listing registry: ownership gate not configured")
)

type engineState interface {
	ListingGet(tokenID string) (*Listing, bool, error)
	ListingPut(listing *Listing) error
	ListingDelete(tokenID string) error
	ListingCursor(startAfter string) Cursor
}

type tokenLedger interface {
	Get(id string) (*types.Token, bool, error)
}

type ownerGate interface {
	IsOwner(addr string) (bool, error)
}

// Registry owns the token id to price index.
type Registry struct {
	state    engineState
	tokens   tokenLedger
	owner    ownerGate
	emitter  events.Emitter
	contract string
}

// NewRegistry constructs a registry with a no-op emitter.
func NewRegistry() *Registry {
	return &Registry{emitter: events.NoopEmitter{}}
}

func (r *Registry) SetState(state engineState) { r.state = state }

func (r *Registry) SetTokenLedger(tokens tokenLedger) { r.tokens = tokens }

func (r *Registry) SetOwnerGate(owner ownerGate) { r.owner = owner }

func (r *Registry) SetContract(addr string) { r.contract = addr }

func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func (r *Registry) ready() error {
	switch {
	case r == nil || r.state == nil:
		return errNilState
	case r.tokens == nil:
		return errNilTokens
	case r.owner == nil:
		return errNilOwnerGate
	}
	return nil
}

// authorize accepts the token holder or the contract administrator.
func (r *Registry) authorize(token *types.Token, requester string) error {
	if token.Owner == strings.TrimSpace(requester) {
		return nil
	}
	admin, err := r.owner.IsOwner(requester)
	if err != nil {
		return err
	}
	if !admin {
		return mkterrors.ErrUnauthorized
	}
	return nil
}

// Validate runs every check performed by List without writing anything and
// returns the listing that List would store.
func (r *Registry) Validate(tokenID string, price types.Coin, requester string) (*Listing, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	id, err := types.NormalizeTokenID(tokenID)
	if err != nil {
		return nil, err
	}
	if price.IsZero() {
		return nil, mkterrors.ErrInvalidListingPrice
	}
	if err := price.Validate(); err != nil {
		return nil, errors.Join(mkterrors.ErrInvalidListingPrice, err)
	}
	token, ok, err := r.tokens.Get(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, mkterrors.ErrTokenIDNotFound
	}
	if err := r.authorize(token, requester); err != nil {
		return nil, err
	}
	if _, listed, err := r.state.ListingGet(id); err != nil {
		return nil, err
	} else if listed {
		return nil, mkterrors.ErrTokenAlreadyListed
	}
	return &Listing{TokenID: id, Price: price.Clone()}, nil
}

// List offers a token for sale.
func (r *Registry) List(tokenID string, price types.Coin, requester string) (*Listing, error) {
	listing, err := r.Validate(tokenID, price, requester)
	if err != nil {
		return nil, err
	}
	if err := r.state.ListingPut(listing); err != nil {
		return nil, err
	}
	r.emitter.Emit(events.ListingCreated{By: requester, Contract: r.contract, TokenID: listing.TokenID, Price: listing.Price})
	return listing.Clone(), nil
}

// Delist withdraws an offer. Only the holder or the administrator may delist.
func (r *Registry) Delist(tokenID, requester string) error {
	if err := r.ready(); err != nil {
		return err
	}
	id, err := types.NormalizeTokenID(tokenID)
	if err != nil {
		return err
	}
	if _, listed, err := r.state.ListingGet(id); err != nil {
		return err
	} else if !listed {
		return mkterrors.ErrNoListedTokens
	}
	token, ok, err := r.tokens.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		return mkterrors.ErrTokenIDNotFound
	}
	if err := r.authorize(token, requester); err != nil {
		return err
	}
	if err := r.state.ListingDelete(id); err != nil {
		return err
	}
	r.emitter.Emit(events.ListingRemoved{By: requester, Contract: r.contract, TokenID: id})
	return nil
}

// Remove deletes a listing after settlement. Callers have already checked
// authority.
func (r *Registry) Remove(tokenID string) error {
	if err := r.ready(); err != nil {
		return err
	}
	id, err := types.NormalizeTokenID(tokenID)
	if err != nil {
		return err
	}
	return r.state.ListingDelete(id)
}

// Get returns the listing for tokenID if one exists.
func (r *Registry) Get(tokenID string) (*Listing, bool, error) {
	if r == nil || r.state == nil {
		return nil, false, errNilState
	}
	id, err := types.NormalizeTokenID(tokenID)
	if err != nil {
		return nil, false, err
	}
	return r.state.ListingGet(id)
}

// Iterate returns a lazy iterator over listings strictly after startAfter.
// An empty startAfter begins at the first listing.
func (r *Registry) Iterate(startAfter string) (*Iterator, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	from := strings.TrimSpace(startAfter)
	if from != "" {
		normalized, err := types.NormalizeTokenID(from)
		if err != nil {
			return nil, err
		}
		from = normalized
	}
	return &Iterator{cursor: r.state.ListingCursor(from), tokens: r.tokens}, nil
}

// ListAll returns one page of listings strictly after startAfter.
func (r *Registry) ListAll(startAfter string, limit int) (Page, error) {
	it, err := r.Iterate(startAfter)
	if err != nil {
		return Page{}, err
	}
	defer it.Close()

	limit = ClampLimit(limit)
	page := Page{Entries: make([]Entry, 0)}
	for it.Next() {
		if len(page.Entries) == limit {
			page.Next = page.Entries[len(page.Entries)-1].TokenID
			break
		}
		page.Entries = append(page.Entries, it.Entry())
	}
	if err := it.Err(); err != nil {
		return Page{}, err
	}
	return page, nil
}

// Iterator yields listings joined with their tokens.
type Iterator struct {
	cursor Cursor
	tokens tokenLedger
	entry  Entry
	err    error
	done   bool
}

func (it *Iterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	if !it.cursor.Next() {
		it.err = it.cursor.Error()
		it.done = true
		return false
	}
	listing := it.cursor.Listing()
	if listing == nil {
		it.err = errors.New("listing registry: cursor returned empty listing")
		return false
	}
	token, ok, err := it.tokens.Get(listing.TokenID)
	if err != nil {
		it.err = err
		return false
	}
	if !ok {
		token = nil
	}
	it.entry = Entry{TokenID: listing.TokenID, Price: listing.Price.Clone(), Token: token}
	return true
}

// Entry returns the current element.
func (it *Iterator) Entry() Entry { return it.entry }

// Err reports the first failure encountered while iterating.
func (it *Iterator) Err() error { return it.err }

// Close releases the underlying cursor.
func (it *Iterator) Close() {
	if it.cursor != nil {
		it.cursor.Release()
	}
}
