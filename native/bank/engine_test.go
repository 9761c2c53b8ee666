package bank

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"nftmarket/core/types"
)

type mockState struct {
	balances map[string]*uint256.Int
}

func newMockState() *mockState { return &mockState{balances: make(map[string]*uint256.Int)} }

func (m *mockState) BalanceGet(addr, denom string) (*uint256.Int, error) {
	if v, ok := m.balances[addr+"/"+denom]; ok {
		return new(uint256.Int).Set(v), nil
	}
	return new(uint256.Int), nil
}

func (m *mockState) BalancePut(addr, denom string, amount *uint256.Int) error {
	m.balances[addr+"/"+denom] = new(uint256.Int).Set(amount)
	return nil
}

func TestEscrowAndExecute(t *testing.T) {
	engine := NewEngine()
	engine.SetState(newMockState())
	if err := engine.Credit("buyer", types.NewCoin("uturnt", 12)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := engine.Escrow("buyer", "contract", types.Coins{types.NewCoin("uturnt", 12)}); err != nil {
		t.Fatalf("escrow: %v", err)
	}
	msgs := []types.BankSend{
		{ToAddress: "seller", Amount: types.NewCoin("uturnt", 10)},
		{ToAddress: "buyer", Amount: types.NewCoin("uturnt", 2)},
	}
	if err := engine.Execute("contract", msgs); err != nil {
		t.Fatalf("execute: %v", err)
	}
	for addr, want := range map[string]uint64{"seller": 10, "buyer": 2, "contract": 0} {
		got, err := engine.Balance(addr, "uturnt")
		if err != nil {
			t.Fatalf("balance: %v", err)
		}
		if got.Amount.Uint64() != want {
			t.Fatalf("%s: expected %d, got %s", addr, want, got.Amount.Dec())
		}
	}
}

func TestTransferRejectsOverdraft(t *testing.T) {
	engine := NewEngine()
	engine.SetState(newMockState())
	if err := engine.Transfer("alice", "bob", types.NewCoin("uturnt", 1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestCreditRejectsOverflow(t *testing.T) {
	engine := NewEngine()
	engine.SetState(newMockState())
	max := new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	if err := engine.Credit("alice", types.Coin{Denom: "uturnt", Amount: max}); err != nil {
		t.Fatalf("credit max: %v", err)
	}
	if err := engine.Credit("alice", types.NewCoin("uturnt", 1)); !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}
