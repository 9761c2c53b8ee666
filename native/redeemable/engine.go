package redeemable

import (
	"errors"

	mkterrors "nftmarket/core/errors"
	"nftmarket/core/events"
	"nftmarket/core/types"
)

var (
	errNilState     = errors.New("redeemable engine: state not configured")
	errNilOwnerGate = errors.New("redeemable engine: ownership gate not configured")
	errNilTokens    = errors.New("redeemable engine: token ledger not configured")
)

type engineState interface {
	LockGet(tokenID string) (bool, error)
	LockPut(tokenID string, locked bool) error
	RedeemedGet(tokenID string) (bool, error)
	RedeemedPut(tokenID string) error
}

type ownerGate interface {
	IsOwner(addr string) (bool, error)
	Authorize(caller string) error
}

type tokenLedger interface {
	Owner(id string) (string, error)
}

// Status describes whether a token may be traded.
type Status struct {
	Locked   bool `json:"locked"`
	Redeemed bool `json:"redeemed"`
}

// Engine is the lock gate. Locked tokens may be unlocked again; redemption is
// permanent.
type Engine struct {
	state    engineState
	owner    ownerGate
	tokens   tokenLedger
	emitter  events.Emitter
	contract string
}

func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetOwnerGate(owner ownerGate) { e.owner = owner }

func (e *Engine) SetTokenLedger(tokens tokenLedger) { e.tokens = tokens }

func (e *Engine) SetContract(addr string) { e.contract = addr }

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
	if e.owner == nil {
		return errNilOwnerGate
	}
	if e.tokens == nil {
		return errNilTokens
	}
	return nil
}

// Status reports the lock and redemption flags for a token.
func (e *Engine) Status(tokenID string) (Status, error) {
	if e == nil || e.state == nil {
		return Status{}, errNilState
	}
	id, err := types.NormalizeTokenID(tokenID)
	if err != nil {
		return Status{}, err
	}
	redeemed, err := e.state.RedeemedGet(id)
	if err != nil {
		return Status{}, err
	}
	locked, err := e.state.LockGet(id)
	if err != nil {
		return Status{}, err
	}
	return Status{Locked: locked, Redeemed: redeemed}, nil
}

// Check fails with ErrTicketRedeemed or ErrTicketLocked, in that order, when
// the token may not be traded.
func (e *Engine) Check(tokenID string) error {
	status, err := e.Status(tokenID)
	if err != nil {
		return err
	}
	if status.Redeemed {
		return mkterrors.ErrTicketRedeemed
	}
	if status.Locked {
		return mkterrors.ErrTicketLocked
	}
	return nil
}

// Seed marks tokens locked during instantiate.
func (e *Engine) Seed(tokenIDs []string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	for _, raw := range tokenIDs {
		id, err := types.NormalizeTokenID(raw)
		if err != nil {
			return err
		}
		if err := e.state.LockPut(id, true); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) Lock(caller, tokenID string) error {
	return e.setLocked(caller, tokenID, true)
}

func (e *Engine) Unlock(caller, tokenID string) error {
	return e.setLocked(caller, tokenID, false)
}

func (e *Engine) setLocked(caller, tokenID string, locked bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.owner.Authorize(caller); err != nil {
		return err
	}
	id, err := types.NormalizeTokenID(tokenID)
	if err != nil {
		return err
	}
	if _, err := e.tokens.Owner(id); err != nil {
		return err
	}
	if err := e.state.LockPut(id, locked); err != nil {
		return err
	}
	action := "unlock"
	if locked {
		action = "lock"
	}
	e.emitter.Emit(events.TokenLockChanged{By: caller, Contract: e.contract, TokenID: id, Action: action})
	return nil
}

// Redeem permanently marks a token as used. The holder or the administrator
// may redeem; redeeming twice fails with ErrTicketRedeemed.
func (e *Engine) Redeem(caller, tokenID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	id, err := types.NormalizeTokenID(tokenID)
	if err != nil {
		return err
	}
	holder, err := e.tokens.Owner(id)
	if err != nil {
		return err
	}
	if holder != caller {
		admin, err := e.owner.IsOwner(caller)
		if err != nil {
			return err
		}
		if !admin {
			return mkterrors.ErrUnauthorized
		}
	}
	redeemed, err := e.state.RedeemedGet(id)
	if err != nil {
		return err
	}
	if redeemed {
		return mkterrors.ErrTicketRedeemed
	}
	if err := e.state.RedeemedPut(id); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenLockChanged{By: caller, Contract: e.contract, TokenID: id, Action: "redeem"})
	return nil
}
