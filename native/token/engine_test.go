package token

import (
	"errors"
	"testing"

	mkterrors "nftmarket/core/errors"
	"nftmarket/core/events"
	"nftmarket/core/types"
)

type mockState struct {
	tokens map[string]*types.Token
	count  uint64
}

func newMockState() *mockState {
	return &mockState{tokens: make(map[string]*types.Token)}
}

func (m *mockState) TokenGet(id string) (*types.Token, bool, error) {
	token, ok := m.tokens[id]
	if !ok {
		return nil, false, nil
	}
	return token.Clone(), true, nil
}

func (m *mockState) TokenPut(token *types.Token) error {
	m.tokens[token.ID] = token.Clone()
	return nil
}

func (m *mockState) TokenCount() (uint64, error) { return m.count, nil }

func (m *mockState) TokenSetCount(count uint64) error {
	m.count = count
	return nil
}

func TestMintAndTransfer(t *testing.T) {
	state := newMockState()
	buf := events.NewBuffer()
	engine := NewEngine()
	engine.SetState(state)
	engine.SetEmitter(buf)

	token, err := engine.Mint(types.MintRequest{TokenID: " 1 ", Owner: "alice", TokenURI: "ipfs://1"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if token.ID != "1" || token.Owner != "alice" {
		t.Fatalf("unexpected token %+v", token)
	}
	if _, err := engine.Mint(types.MintRequest{TokenID: "1", Owner: "bob"}); !errors.Is(err, mkterrors.ErrClaimed) {
		t.Fatalf("expected claimed, got %v", err)
	}
	if err := engine.Transfer("1", "bob"); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	owner, err := engine.Owner("1")
	if err != nil || owner != "bob" {
		t.Fatalf("expected bob, got %q (%v)", owner, err)
	}
	count, _ := engine.Count()
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}
	if got := len(buf.Events()); got != 2 {
		t.Fatalf("expected mint and transfer events, got %d", got)
	}
}

func TestOwnerOfMissingToken(t *testing.T) {
	engine := NewEngine()
	engine.SetState(newMockState())
	if _, err := engine.Owner("missing"); !errors.Is(err, mkterrors.ErrTokenIDNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := engine.Transfer("missing", "bob"); !errors.Is(err, mkterrors.ErrTokenIDNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEngineRequiresState(t *testing.T) {
	if _, err := NewEngine().Count(); !errors.Is(err, errNilState) {
		t.Fatalf("expected nil state error, got %v", err)
	}
}
