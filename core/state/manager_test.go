package state

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"nftmarket/core/types"
	"nftmarket/native/listing"
	"nftmarket/native/sales"
	"nftmarket/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.MemDB) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { _ = db.Close() })
	return NewManager(db, NewLayout("nft1contract")), db
}

func TestTokenRecords(t *testing.T) {
	mgr, _ := newTestManager(t)
	if _, ok, err := mgr.TokenGet("1"); err != nil || ok {
		t.Fatalf("expected missing token, ok=%v err=%v", ok, err)
	}
	if err := mgr.TokenPut(&types.Token{ID: "1", Owner: "alice", TokenURI: "ipfs://1"}); err != nil {
		t.Fatalf("put token: %v", err)
	}
	token, ok, err := mgr.TokenGet("1")
	if err != nil || !ok {
		t.Fatalf("get token: ok=%v err=%v", ok, err)
	}
	if token.Owner != "alice" || token.TokenURI != "ipfs://1" {
		t.Fatalf("unexpected token %+v", token)
	}
	if err := mgr.TokenSetCount(3); err != nil {
		t.Fatalf("set count: %v", err)
	}
	if count, _ := mgr.TokenCount(); count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
}

func TestListingCursorIsOrderedAndExclusive(t *testing.T) {
	mgr, _ := newTestManager(t)
	for _, id := range []string{"b", "a", "c", "a/b"} {
		if err := mgr.ListingPut(&listing.Listing{TokenID: id, Price: types.NewCoin("uturnt", 1)}); err != nil {
			t.Fatalf("put listing: %v", err)
		}
	}
	// Tokens must not leak into the listing range.
	if err := mgr.TokenPut(&types.Token{ID: "z", Owner: "alice"}); err != nil {
		t.Fatalf("put token: %v", err)
	}

	collect := func(startAfter string) []string {
		cursor := mgr.ListingCursor(startAfter)
		defer cursor.Release()
		var ids []string
		for cursor.Next() {
			ids = append(ids, cursor.Listing().TokenID)
		}
		if err := cursor.Error(); err != nil {
			t.Fatalf("cursor: %v", err)
		}
		return ids
	}
	if got := collect(""); len(got) != 4 || got[0] != "a" || got[1] != "a/b" || got[2] != "b" || got[3] != "c" {
		t.Fatalf("unexpected order %v", got)
	}
	if got := collect("a"); len(got) != 3 || got[0] != "a/b" {
		t.Fatalf("start_after must be exclusive, got %v", got)
	}
	if got := collect("c"); len(got) != 0 {
		t.Fatalf("expected empty tail, got %v", got)
	}
}

func TestSalesHistoryRoundTrip(t *testing.T) {
	mgr, _ := newTestManager(t)
	history, err := mgr.SalesGet()
	if err != nil || len(history) != 0 {
		t.Fatalf("expected empty history, got %v (%v)", history, err)
	}
	big := new(uint256.Int).Lsh(uint256.NewInt(1), 100)
	want := []*sales.Sale{
		{TotalSupply: 1, TokensMinted: 1, StartTime: 100, EndTime: 200, Price: types.NewCoin("usdc", 10), Disabled: true},
		{TotalSupply: 0, StartTime: 300, EndTime: 400, Price: types.Coin{Denom: "uturnt", Amount: big}},
	}
	if err := mgr.SalesPut(want); err != nil {
		t.Fatalf("put sales: %v", err)
	}
	got, err := mgr.SalesGet()
	if err != nil {
		t.Fatalf("get sales: %v", err)
	}
	if len(got) != 2 || !got[0].Disabled || got[1].Price.Amount.Cmp(big) != 0 || got[1].EndTime != 400 {
		t.Fatalf("unexpected history %+v", got)
	}
	if err := mgr.SalesPut([]*sales.Sale{{StartTime: -1, EndTime: 1, Price: types.NewCoin("usdc", 1)}}); err == nil {
		t.Fatalf("expected negative time to be rejected")
	}
}

func TestGateRecords(t *testing.T) {
	mgr, _ := newTestManager(t)
	if _, ok, _ := mgr.OwnerGet(); ok {
		t.Fatalf("owner must start unset")
	}
	if err := mgr.OwnerPut("admin"); err != nil {
		t.Fatalf("put owner: %v", err)
	}
	if owner, ok, _ := mgr.OwnerGet(); !ok || owner != "admin" {
		t.Fatalf("unexpected owner %q", owner)
	}

	if err := mgr.AllowSetEnabled(true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	for _, addr := range []string{"b", "a"} {
		if err := mgr.AllowAdd(addr); err != nil {
			t.Fatalf("allow add: %v", err)
		}
	}
	if err := mgr.AllowRemove("b"); err != nil {
		t.Fatalf("allow remove: %v", err)
	}
	list, err := mgr.AllowList()
	if err != nil || len(list) != 1 || list[0] != "a" {
		t.Fatalf("unexpected allow list %v (%v)", list, err)
	}
	if enabled, _ := mgr.AllowEnabled(); !enabled {
		t.Fatalf("expected enabled flag")
	}

	if err := mgr.LockPut("1", true); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if locked, _ := mgr.LockGet("1"); !locked {
		t.Fatalf("expected lock")
	}
	if err := mgr.LockPut("1", false); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if locked, _ := mgr.LockGet("1"); locked {
		t.Fatalf("expected unlock")
	}
	if err := mgr.RedeemedPut("1"); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if redeemed, _ := mgr.RedeemedGet("1"); !redeemed {
		t.Fatalf("expected redeemed")
	}
}

func TestBalances(t *testing.T) {
	mgr, db := newTestManager(t)
	zero, err := mgr.BalanceGet("alice", "ibc/ABC")
	if err != nil || !zero.IsZero() {
		t.Fatalf("expected zero balance, got %v (%v)", zero, err)
	}
	if err := mgr.BalancePut("alice", "ibc/ABC", uint256.NewInt(42)); err != nil {
		t.Fatalf("put balance: %v", err)
	}
	got, _ := mgr.BalanceGet("alice", "ibc/ABC")
	if got.Uint64() != 42 {
		t.Fatalf("expected 42, got %s", got.Dec())
	}
	if err := mgr.BalancePut("alice", "ibc/ABC", new(uint256.Int)); err != nil {
		t.Fatalf("clear balance: %v", err)
	}
	if db.Len() != 0 {
		t.Fatalf("zero balances must not be stored")
	}
}

func TestBalanceKeysDoNotCollideOnSlash(t *testing.T) {
	mgr, _ := newTestManager(t)
	if err := mgr.BalancePut("alice", "ibc/uatom", uint256.NewInt(500)); err != nil {
		t.Fatalf("put balance: %v", err)
	}
	other, err := mgr.BalanceGet("alice/ibc", "uatom")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if !other.IsZero() {
		t.Fatalf("alice/ibc must not see alice's ibc/uatom balance, got %s", other.Dec())
	}
	own, _ := mgr.BalanceGet("alice", "ibc/uatom")
	if own.Uint64() != 500 {
		t.Fatalf("expected 500, got %s", own.Dec())
	}
}

func TestTxCommitAndDiscard(t *testing.T) {
	mgr, db := newTestManager(t)

	tx := mgr.Begin()
	if err := tx.OwnerPut("admin"); err != nil {
		t.Fatalf("owner put: %v", err)
	}
	if owner, ok, _ := tx.OwnerGet(); !ok || owner != "admin" {
		t.Fatalf("tx must read its own writes")
	}
	if _, ok, _ := mgr.OwnerGet(); ok {
		t.Fatalf("parent must not see uncommitted writes")
	}
	tx.Discard()
	if db.Len() != 0 {
		t.Fatalf("discard must drop writes")
	}

	tx = mgr.Begin()
	if err := tx.OwnerPut("admin"); err != nil {
		t.Fatalf("owner put: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if owner, ok, _ := mgr.OwnerGet(); !ok || owner != "admin" {
		t.Fatalf("commit must persist writes")
	}
	if err := tx.Commit(); !errors.Is(err, storage.ErrCacheClosed) {
		t.Fatalf("expected second commit to fail, got %v", err)
	}
}

func TestEnsureStateVersion(t *testing.T) {
	mgr, _ := newTestManager(t)
	if err := mgr.EnsureStateVersion(false); err != nil {
		t.Fatalf("fresh state must be accepted: %v", err)
	}
	if err := mgr.SetStateVersion(StateVersion + 1); err != nil {
		t.Fatalf("set version: %v", err)
	}
	if err := mgr.EnsureStateVersion(false); !errors.Is(err, ErrStateVersionMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := mgr.EnsureStateVersion(true); err != nil {
		t.Fatalf("migrations must be allowed: %v", err)
	}
}
