package redeemable

import (
	"errors"
	"testing"

	mkterrors "nftmarket/core/errors"
)

type mockState struct {
	locked   map[string]bool
	redeemed map[string]bool
}

func newMockState() *mockState {
	return &mockState{locked: make(map[string]bool), redeemed: make(map[string]bool)}
}

func (m *mockState) LockGet(id string) (bool, error) { return m.locked[id], nil }
func (m *mockState) LockPut(id string, locked bool) error {
	if locked {
		m.locked[id] = true
	} else {
		delete(m.locked, id)
	}
	return nil
}
func (m *mockState) RedeemedGet(id string) (bool, error) { return m.redeemed[id], nil }
func (m *mockState) RedeemedPut(id string) error {
	m.redeemed[id] = true
	return nil
}

type mockGate struct{ admin string }

func (g mockGate) IsOwner(addr string) (bool, error) { return addr == g.admin, nil }
func (g mockGate) Authorize(caller string) error {
	if caller != g.admin {
		return mkterrors.ErrUnauthorized
	}
	return nil
}

type mockTokens map[string]string

func (m mockTokens) Owner(id string) (string, error) {
	owner, ok := m[id]
	if !ok {
		return "", mkterrors.ErrTokenIDNotFound
	}
	return owner, nil
}

func newEngine() (*Engine, *mockState) {
	state := newMockState()
	engine := NewEngine()
	engine.SetState(state)
	engine.SetOwnerGate(mockGate{admin: "admin"})
	engine.SetTokenLedger(mockTokens{"1": "alice", "2": "bob"})
	return engine, state
}

func TestLockAndUnlock(t *testing.T) {
	engine, _ := newEngine()
	if err := engine.Lock("alice", "1"); !errors.Is(err, mkterrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := engine.Lock("admin", "1"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := engine.Check("1"); !errors.Is(err, mkterrors.ErrTicketLocked) {
		t.Fatalf("expected locked, got %v", err)
	}
	if err := engine.Unlock("admin", "1"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := engine.Check("1"); err != nil {
		t.Fatalf("expected tradable token, got %v", err)
	}
	if err := engine.Lock("admin", "missing"); !errors.Is(err, mkterrors.ErrTokenIDNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRedeemedTakesPrecedenceOverLocked(t *testing.T) {
	engine, _ := newEngine()
	if err := engine.Seed([]string{"2"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := engine.Redeem("bob", "2"); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if err := engine.Check("2"); !errors.Is(err, mkterrors.ErrTicketRedeemed) {
		t.Fatalf("expected redeemed before locked, got %v", err)
	}
	if err := engine.Redeem("admin", "2"); !errors.Is(err, mkterrors.ErrTicketRedeemed) {
		t.Fatalf("expected second redeem to fail, got %v", err)
	}
}

func TestRedeemRequiresHolderOrAdmin(t *testing.T) {
	engine, state := newEngine()
	if err := engine.Redeem("mallory", "1"); !errors.Is(err, mkterrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if state.redeemed["1"] {
		t.Fatalf("failed redeem must not mutate state")
	}
	if err := engine.Redeem("admin", "1"); err != nil {
		t.Fatalf("admin redeem: %v", err)
	}
	status, _ := engine.Status("1")
	if !status.Redeemed || status.Locked {
		t.Fatalf("unexpected status %+v", status)
	}
}
