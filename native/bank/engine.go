package bank

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"nftmarket/core/events"
	"nftmarket/core/types"
)

var (
	errNilState = errors.New("bank engine: state not configured")
	// ErrInsufficientBalance is returned when an account cannot cover a transfer.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrBalanceOverflow is returned when a credit would exceed the uint128 range.
	ErrBalanceOverflow = errors.New("bank: balance overflow")
	errEmptyAddress    = errors.New("bank: address required")
)

type engineState interface {
	BalanceGet(addr, denom string) (*uint256.Int, error)
	BalancePut(addr, denom string, amount *uint256.Int) error
}

// Engine keeps per-denomination account balances and executes the payment
// instructions returned by the marketplace.
type Engine struct {
	state   engineState
	emitter events.Emitter
}

func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

func (e *Engine) SetState(state engineState) { e.state = state }

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

// Balance returns the holdings of addr in denom.
func (e *Engine) Balance(addr, denom string) (types.Coin, error) {
	if err := e.ready(); err != nil {
		return types.Coin{}, err
	}
	amount, err := e.state.BalanceGet(strings.TrimSpace(addr), denom)
	if err != nil {
		return types.Coin{}, err
	}
	return types.Coin{Denom: denom, Amount: amount}, nil
}

// Credit mints coins into addr. It is used for genesis allocations.
func (e *Engine) Credit(addr string, coin types.Coin) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := coin.Validate(); err != nil {
		return err
	}
	return e.credit(strings.TrimSpace(addr), coin)
}

func (e *Engine) credit(addr string, coin types.Coin) error {
	if addr == "" {
		return errEmptyAddress
	}
	current, err := e.state.BalanceGet(addr, coin.Denom)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(current, coin.Amount)
	if overflow || next.BitLen() > types.MaxAmountBits {
		return ErrBalanceOverflow
	}
	return e.state.BalancePut(addr, coin.Denom, next)
}

func (e *Engine) debit(addr string, coin types.Coin) error {
	if addr == "" {
		return errEmptyAddress
	}
	current, err := e.state.BalanceGet(addr, coin.Denom)
	if err != nil {
		return err
	}
	if current.Lt(coin.Amount) {
		return fmt.Errorf("%w: %s holds %s%s, needs %s", ErrInsufficientBalance, addr, current.Dec(), coin.Denom, coin)
	}
	return e.state.BalancePut(addr, coin.Denom, new(uint256.Int).Sub(current, coin.Amount))
}

// Transfer moves coin from one account to another.
func (e *Engine) Transfer(from, to string, coin types.Coin) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := coin.Validate(); err != nil {
		return err
	}
	if coin.IsZero() {
		return nil
	}
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if err := e.debit(from, coin); err != nil {
		return err
	}
	if err := e.credit(to, coin); err != nil {
		return err
	}
	e.emitter.Emit(events.BankTransfer{From: from, To: to, Amount: coin.Clone()})
	return nil
}

// Escrow moves the funds attached to a call into the contract account.
func (e *Engine) Escrow(sender, contract string, funds types.Coins) error {
	for _, coin := range funds {
		if err := e.Transfer(sender, contract, coin); err != nil {
			return err
		}
	}
	return nil
}

// Execute pays out instructions from the contract account in order.
func (e *Engine) Execute(contract string, msgs []types.BankSend) error {
	for _, msg := range msgs {
		if err := e.Transfer(contract, msg.ToAddress, msg.Amount); err != nil {
			return err
		}
	}
	return nil
}
