package allowable

import (
	"errors"
	"sort"
	"strings"

	"nftmarket/core/events"
)

var (
	errNilState     = errors.New("allowable engine: state not configured")
	errNilOwnerGate = errors.New("allowable engine: ownership gate not configured")
)

type engineState interface {
	AllowEnabled() (bool, error)
	AllowSetEnabled(enabled bool) error
	AllowHas(addr string) (bool, error)
	AllowAdd(addr string) error
	AllowRemove(addr string) error
	AllowList() ([]string, error)
}

type ownerGate interface {
	Authorize(caller string) error
}

// Engine is the allow gate. When disabled every caller is permitted.
type Engine struct {
	state    engineState
	owner    ownerGate
	emitter  events.Emitter
	contract string
}

func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

func (e *Engine) SetState(state engineState) { e.state = state }

// SetOwnerGate configures the gate used to authorise list administration.
func (e *Engine) SetOwnerGate(owner ownerGate) { e.owner = owner }

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
	return nil
}

func (e *Engine) authorize(caller string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.owner == nil {
		return errNilOwnerGate
	}
	return e.owner.Authorize(caller)
}

// IsEnabled reports whether the allow-list is enforced.
func (e *Engine) IsEnabled() (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	return e.state.AllowEnabled()
}

// IsAllowed reports raw allow-list membership regardless of the enabled flag.
func (e *Engine) IsAllowed(addr string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	return e.state.AllowHas(strings.TrimSpace(addr))
}

// Permits reports whether addr may transact: always when the list is
// disabled, otherwise only members.
func (e *Engine) Permits(addr string) (bool, error) {
	enabled, err := e.IsEnabled()
	if err != nil {
		return false, err
	}
	if !enabled {
		return true, nil
	}
	return e.IsAllowed(addr)
}

// Addresses returns the allow-list in ascending order.
func (e *Engine) Addresses() ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	list, err := e.state.AllowList()
	if err != nil {
		return nil, err
	}
	sort.Strings(list)
	return list, nil
}

// Seed writes the initial configuration without an authorisation check.
func (e *Engine) Seed(enabled bool, addrs []string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.state.AllowSetEnabled(enabled); err != nil {
		return err
	}
	for _, addr := range normalize(addrs) {
		if err := e.state.AllowAdd(addr); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) SetEnabled(caller string, enabled bool) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	if err := e.state.AllowSetEnabled(enabled); err != nil {
		return err
	}
	e.emitter.Emit(events.AllowListUpdated{By: caller, Contract: e.contract, Action: "set_enabled", Enabled: &enabled})
	return nil
}

func (e *Engine) AddAddresses(caller string, addrs []string) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	normalized := normalize(addrs)
	for _, addr := range normalized {
		if err := e.state.AllowAdd(addr); err != nil {
			return err
		}
	}
	e.emitter.Emit(events.AllowListUpdated{By: caller, Contract: e.contract, Action: "add", Addresses: normalized})
	return nil
}

func (e *Engine) RemoveAddresses(caller string, addrs []string) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	normalized := normalize(addrs)
	for _, addr := range normalized {
		if err := e.state.AllowRemove(addr); err != nil {
			return err
		}
	}
	e.emitter.Emit(events.AllowListUpdated{By: caller, Contract: e.contract, Action: "remove", Addresses: normalized})
	return nil
}

// Clear empties the allow-list. The enabled flag is left unchanged.
func (e *Engine) Clear(caller string) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	list, err := e.state.AllowList()
	if err != nil {
		return err
	}
	for _, addr := range list {
		if err := e.state.AllowRemove(addr); err != nil {
			return err
		}
	}
	e.emitter.Emit(events.AllowListUpdated{By: caller, Contract: e.contract, Action: "clear"})
	return nil
}

func normalize(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		trimmed := strings.TrimSpace(addr)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Strings(out)
	return out
}
