package ownable

import (
	"errors"
	"strings"

	mkterrors "nftmarket/core/errors"
	"nftmarket/core/events"
)

var (
	errNilState     = errors.New("ownable engine: state not configured")
	errOwnerMissing = errors.New("ownable engine: owner required")
	// ErrOwnerNotSet is returned before the contract has been instantiated.
	ErrOwnerNotSet = errors.New("ownable engine: owner not set")
)

type engineState interface {
	OwnerGet() (string, bool, error)
	OwnerPut(owner string) error
}

// Engine answers whether a caller is the contract administrator.
type Engine struct {
	state    engineState
	emitter  events.Emitter
	contract string
}

// NewEngine constructs an ownership gate with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetContract records the address reported in emitted events.
func (e *Engine) SetContract(addr string) { e.contract = addr }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Owner returns the administrator address.
func (e *Engine) Owner() (string, error) {
	if e == nil || e.state == nil {
		return "", errNilState
	}
	owner, ok, err := e.state.OwnerGet()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrOwnerNotSet
	}
	return owner, nil
}

// IsOwner reports whether addr is the administrator.
func (e *Engine) IsOwner(addr string) (bool, error) {
	owner, err := e.Owner()
	if err != nil {
		return false, err
	}
	return owner == strings.TrimSpace(addr), nil
}

// Authorize fails with ErrUnauthorized unless caller is the administrator.
func (e *Engine) Authorize(caller string) error {
	ok, err := e.IsOwner(caller)
	if err != nil {
		return err
	}
	if !ok {
		return mkterrors.ErrUnauthorized
	}
	return nil
}

// Initialize stores the first administrator. It is used during instantiate.
func (e *Engine) Initialize(owner string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	trimmed := strings.TrimSpace(owner)
	if trimmed == "" {
		return errOwnerMissing
	}
	return e.state.OwnerPut(trimmed)
}

// SetOwner hands administration to newOwner. Only the current owner may call it.
func (e *Engine) SetOwner(caller, newOwner string) error {
	if err := e.Authorize(caller); err != nil {
		return err
	}
	trimmed := strings.TrimSpace(newOwner)
	if trimmed == "" {
		return errOwnerMissing
	}
	if err := e.state.OwnerPut(trimmed); err != nil {
		return err
	}
	e.emitter.Emit(events.OwnerChanged{By: caller, Contract: e.contract, Owner: trimmed})
	return nil
}
