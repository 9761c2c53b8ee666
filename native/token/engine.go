package token

import (
	"errors"
	"strings"

	mkterrors "nftmarket/core/errors"
	"nftmarket/core/events"
	"nftmarket/core/types"
)

var (
	errNilState     = errors.New("token engine: state not configured")
	errOwnerMissing = errors.New("token engine: owner required")
)

type engineState interface {
	TokenGet(id string) (*types.Token, bool, error)
	TokenPut(token *types.Token) error
	TokenCount() (uint64, error)
	TokenSetCount(count uint64) error
}

// Engine is the token ledger: it owns token existence and ownership.
type Engine struct {
	state   engineState
	emitter events.Emitter
}

// NewEngine constructs a token ledger with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

// Get loads a token. The boolean reports existence.
func (e *Engine) Get(id string) (*types.Token, bool, error) {
	if err := e.ready(); err != nil {
		return nil, false, err
	}
	normalized, err := types.NormalizeTokenID(id)
	if err != nil {
		return nil, false, err
	}
	return e.state.TokenGet(normalized)
}

// Exists reports whether the token has been minted.
func (e *Engine) Exists(id string) (bool, error) {
	_, ok, err := e.Get(id)
	return ok, err
}

// Owner returns the current holder of the token.
func (e *Engine) Owner(id string) (string, error) {
	token, ok, err := e.Get(id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", mkterrors.ErrTokenIDNotFound
	}
	return token.Owner, nil
}

// Mint creates a new token. Minting an id that already exists fails with
// ErrClaimed.
func (e *Engine) Mint(req types.MintRequest) (*types.Token, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	id, err := types.NormalizeTokenID(req.TokenID)
	if err != nil {
		return nil, err
	}
	owner := strings.TrimSpace(req.Owner)
	if owner == "" {
		return nil, errOwnerMissing
	}
	if _, exists, err := e.state.TokenGet(id); err != nil {
		return nil, err
	} else if exists {
		return nil, mkterrors.ErrClaimed
	}
	count, err := e.state.TokenCount()
	if err != nil {
		return nil, err
	}
	token := &types.Token{
		ID:       id,
		Owner:    owner,
		TokenURI: strings.TrimSpace(req.TokenURI),
		Metadata: req.Metadata,
	}
	if err := e.state.TokenPut(token); err != nil {
		return nil, err
	}
	if err := e.state.TokenSetCount(count + 1); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.TokenMinted{TokenID: id, Owner: owner})
	return token.Clone(), nil
}

// Transfer moves the token to a new owner.
func (e *Engine) Transfer(id, to string) error {
	if err := e.ready(); err != nil {
		return err
	}
	recipient := strings.TrimSpace(to)
	if recipient == "" {
		return errOwnerMissing
	}
	token, ok, err := e.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		return mkterrors.ErrTokenIDNotFound
	}
	from := token.Owner
	token.Owner = recipient
	if err := e.state.TokenPut(token); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenTransferred{TokenID: token.ID, From: from, To: recipient})
	return nil
}

// Count returns the number of minted tokens.
func (e *Engine) Count() (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.state.TokenCount()
}
