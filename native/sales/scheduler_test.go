package sales

import (
	"errors"
	"testing"

	mkterrors "nftmarket/core/errors"
	"nftmarket/core/events"
	"nftmarket/core/types"
)

type mockState struct {
	sales  []*Sale
	writes int
}

func (m *mockState) SalesGet() ([]*Sale, error) {
	out := make([]*Sale, len(m.sales))
	for i, s := range m.sales {
		out[i] = s.Clone()
	}
	return out, nil
}

func (m *mockState) SalesPut(sales []*Sale) error {
	m.writes++
	m.sales = make([]*Sale, len(sales))
	for i, s := range sales {
		m.sales[i] = s.Clone()
	}
	return nil
}

type mockGate struct{ admin string }

func (g mockGate) Owner() (string, error) { return g.admin, nil }
func (g mockGate) Authorize(caller string) error {
	if caller != g.admin {
		return mkterrors.ErrUnauthorized
	}
	return nil
}

type mockTokens struct {
	minted map[string]*types.Token
}

func (m *mockTokens) Mint(req types.MintRequest) (*types.Token, error) {
	if _, ok := m.minted[req.TokenID]; ok {
		return nil, mkterrors.ErrClaimed
	}
	tok := &types.Token{ID: req.TokenID, Owner: req.Owner}
	m.minted[req.TokenID] = tok
	return tok.Clone(), nil
}

const T = int64(1_700_000_000)

type fixture struct {
	state     *mockState
	tokens    *mockTokens
	scheduler *Scheduler
	now       int64
	emitted   *events.Buffer
}

func newFixture() *fixture {
	f := &fixture{
		state:   &mockState{},
		tokens:  &mockTokens{minted: make(map[string]*types.Token)},
		now:     T,
		emitted: events.NewBuffer(),
	}
	f.scheduler = NewScheduler()
	f.scheduler.SetState(f.state)
	f.scheduler.SetOwnerGate(mockGate{admin: "admin"})
	f.scheduler.SetTokenLedger(f.tokens)
	f.scheduler.SetEmitter(f.emitted)
	f.scheduler.SetNowFunc(func() int64 { return f.now })
	return f
}

func usdc(amount uint64) types.Coin { return types.NewCoin("usdc", amount) }

func TestSupplyCapDisablesSale(t *testing.T) {
	f := newFixture()
	if _, err := f.scheduler.AddSale("admin", 1, T, T+100, usdc(10)); err != nil {
		t.Fatalf("add sale: %v", err)
	}
	purchase, err := f.scheduler.BuyItem(types.MintRequest{TokenID: "ticket-1"}, types.Coins{usdc(10)}, "buyer")
	if err != nil {
		t.Fatalf("buy item: %v", err)
	}
	if purchase.Token.Owner != "buyer" {
		t.Fatalf("mint owner must default to buyer, got %q", purchase.Token.Owner)
	}
	if len(purchase.Messages) != 1 || purchase.Messages[0].ToAddress != "admin" {
		t.Fatalf("expected single payment to admin, got %+v", purchase.Messages)
	}
	stored := f.state.sales[0]
	if stored.TokensMinted != 1 || !stored.Disabled {
		t.Fatalf("expected sale to be sold out and disabled: %+v", stored)
	}
	if _, err := f.scheduler.BuyItem(types.MintRequest{TokenID: "ticket-2"}, types.Coins{usdc(10)}, "buyer"); !errors.Is(err, mkterrors.ErrNoOngoingPrimarySale) {
		t.Fatalf("expected no ongoing sale, got %v", err)
	}
}

func TestOverlappingSaleRejected(t *testing.T) {
	f := newFixture()
	if _, err := f.scheduler.AddSale("admin", 0, T, T+100, usdc(10)); err != nil {
		t.Fatalf("add sale: %v", err)
	}
	_, err := f.scheduler.AddSale("admin", 0, T+50, T+150, usdc(10))
	var param *mkterrors.InvalidPrimarySaleParamError
	if !errors.As(err, &param) || param.Field != mkterrors.FieldOverlap {
		t.Fatalf("expected overlap error, got %v", err)
	}
	if len(f.state.sales) != 1 {
		t.Fatalf("rejected sale must not be stored")
	}
	if mkterrors.KindOf(err) != mkterrors.KindConflict {
		t.Fatalf("overlap must classify as conflict")
	}
}

func TestOverlapIsInclusive(t *testing.T) {
	f := newFixture()
	if _, err := f.scheduler.AddSale("admin", 0, T, T+100, usdc(1)); err != nil {
		t.Fatalf("add sale: %v", err)
	}
	if _, err := f.scheduler.AddSale("admin", 0, T+100, T+200, usdc(1)); !errors.Is(err, mkterrors.ErrInvalidPrimarySaleParam) {
		t.Fatalf("touching endpoints must overlap, got %v", err)
	}
	if _, err := f.scheduler.AddSale("admin", 0, T+10, T+20, usdc(1)); !errors.Is(err, mkterrors.ErrInvalidPrimarySaleParam) {
		t.Fatalf("nested window must overlap, got %v", err)
	}
	if _, err := f.scheduler.AddSale("admin", 0, T+101, T+200, usdc(1)); err != nil {
		t.Fatalf("sequential windows must both succeed: %v", err)
	}
}

func TestOverlapIgnoresDisabledSales(t *testing.T) {
	f := newFixture()
	if _, err := f.scheduler.AddSale("admin", 0, T, T+100, usdc(1)); err != nil {
		t.Fatalf("add sale: %v", err)
	}
	if _, err := f.scheduler.HaltSale("admin"); err != nil {
		t.Fatalf("halt: %v", err)
	}
	if _, err := f.scheduler.AddSale("admin", 0, T, T+100, usdc(1)); err != nil {
		t.Fatalf("disabled sales must not block scheduling: %v", err)
	}
	all, _ := f.scheduler.AllSales()
	if len(all) != 2 || !all[0].Disabled || all[1].Disabled {
		t.Fatalf("history must be retained in order: %+v", all)
	}
}

func TestAddSaleValidation(t *testing.T) {
	f := newFixture()
	cases := []struct {
		name   string
		caller string
		start  int64
		end    int64
		price  types.Coin
		field  string
		want   error
	}{
		{"unauthorized", "bob", T, T + 10, usdc(1), "", mkterrors.ErrUnauthorized},
		{"start in past", "admin", T - 1, T + 10, usdc(1), mkterrors.FieldStartTime, nil},
		{"end before start", "admin", T + 10, T + 10, usdc(1), mkterrors.FieldEndTime, nil},
		{"bad price", "admin", T, T + 10, types.Coin{Denom: "x"}, mkterrors.FieldPrice, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.scheduler.AddSale(tc.caller, 0, tc.start, tc.end, tc.price)
			if tc.want != nil {
				if !errors.Is(err, tc.want) {
					t.Fatalf("expected %v, got %v", tc.want, err)
				}
			} else {
				var param *mkterrors.InvalidPrimarySaleParamError
				if !errors.As(err, &param) || param.Field != tc.field {
					t.Fatalf("expected field %q, got %v", tc.field, err)
				}
			}
			if len(f.state.sales) != 0 || f.state.writes != 0 {
				t.Fatalf("failed add must not write")
			}
		})
	}
}

func TestHaltSaleWithoutEligibleSale(t *testing.T) {
	f := newFixture()
	if _, err := f.scheduler.HaltSale("admin"); !errors.Is(err, mkterrors.ErrNoOngoingPrimarySale) {
		t.Fatalf("expected no ongoing sale, got %v", err)
	}
	if _, err := f.scheduler.AddSale("admin", 0, T, T+100, usdc(1)); err != nil {
		t.Fatalf("add sale: %v", err)
	}
	f.now = T + 100
	writes := f.state.writes
	if _, err := f.scheduler.HaltSale("admin"); !errors.Is(err, mkterrors.ErrNoOngoingPrimarySale) {
		t.Fatalf("ended sale is not haltable, got %v", err)
	}
	if f.state.writes != writes || f.state.sales[0].Disabled {
		t.Fatalf("failed halt must not mutate")
	}
	if _, err := f.scheduler.HaltSale("bob"); !errors.Is(err, mkterrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestHaltDisablesScheduledSale(t *testing.T) {
	f := newFixture()
	if _, err := f.scheduler.AddSale("admin", 0, T+500, T+600, usdc(1)); err != nil {
		t.Fatalf("add sale: %v", err)
	}
	halted, err := f.scheduler.HaltSale("admin")
	if err != nil {
		t.Fatalf("halt: %v", err)
	}
	if !halted.Disabled || halted.Status(T) != StatusEnded {
		t.Fatalf("halted sale must be ended: %+v", halted)
	}
}

func TestBuyItemFundsAndRefund(t *testing.T) {
	f := newFixture()
	if _, err := f.scheduler.AddSale("admin", 0, T, T+100, usdc(10)); err != nil {
		t.Fatalf("add sale: %v", err)
	}
	cases := []struct {
		name  string
		funds types.Coins
		want  error
	}{
		{"none", nil, mkterrors.ErrNoFundsPresent},
		{"multiple", types.Coins{usdc(10), types.NewCoin("uturnt", 1)}, mkterrors.ErrMultipleFunds},
		{"wrong", types.Coins{types.NewCoin("uturnt", 10)}, mkterrors.ErrWrongFund},
		{"short", types.Coins{usdc(9)}, mkterrors.ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.scheduler.BuyItem(types.MintRequest{TokenID: "x"}, tc.funds, "buyer"); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(f.tokens.minted) != 0 || f.state.sales[0].TokensMinted != 0 {
				t.Fatalf("failed purchase must not mint")
			}
		})
	}

	purchase, err := f.scheduler.BuyItem(types.MintRequest{TokenID: "x", Owner: "gift"}, types.Coins{usdc(15)}, "buyer")
	if err != nil {
		t.Fatalf("buy item: %v", err)
	}
	if purchase.Token.Owner != "gift" {
		t.Fatalf("explicit mint owner must be honoured")
	}
	if len(purchase.Messages) != 2 || purchase.Messages[1].ToAddress != "buyer" || purchase.Messages[1].Amount.Amount.Uint64() != 5 {
		t.Fatalf("expected refund of 5 to buyer, got %+v", purchase.Messages)
	}
	if purchase.Sale.Disabled {
		t.Fatalf("unlimited sale must stay enabled")
	}

	_, err = f.scheduler.BuyItem(types.MintRequest{TokenID: "x"}, types.Coins{usdc(10)}, "buyer")
	var moduleErr *mkterrors.TokenModuleError
	if !errors.As(err, &moduleErr) || !errors.Is(err, mkterrors.ErrClaimed) {
		t.Fatalf("expected token module claimed error, got %v", err)
	}
	if f.state.sales[0].TokensMinted != 1 {
		t.Fatalf("claimed mint must not increment")
	}
}

func TestMintedNeverExceedsSupply(t *testing.T) {
	f := newFixture()
	if _, err := f.scheduler.AddSale("admin", 3, T, T+100, usdc(1)); err != nil {
		t.Fatalf("add sale: %v", err)
	}
	for i := 0; i < 5; i++ {
		_, err := f.scheduler.BuyItem(types.MintRequest{TokenID: string(rune('a' + i))}, types.Coins{usdc(1)}, "buyer")
		if i < 3 && err != nil {
			t.Fatalf("buy %d: %v", i, err)
		}
		if i >= 3 && !errors.Is(err, mkterrors.ErrNoOngoingPrimarySale) {
			t.Fatalf("buy %d: expected sold out, got %v", i, err)
		}
		if f.state.sales[0].TokensMinted > f.state.sales[0].TotalSupply {
			t.Fatalf("minted exceeded supply")
		}
	}
}

func TestActiveSaleAndStatus(t *testing.T) {
	f := newFixture()
	if _, err := f.scheduler.AddSale("admin", 0, T+10, T+20, usdc(1)); err != nil {
		t.Fatalf("add sale: %v", err)
	}
	if _, ok, _ := f.scheduler.ActiveSale(T); ok {
		t.Fatalf("scheduled sale is not active")
	}
	if sale, ok, _ := f.scheduler.ActiveSale(T + 10); !ok || sale.Status(T+10) != StatusActive {
		t.Fatalf("expected active sale at start time")
	}
	if _, ok, _ := f.scheduler.ActiveSale(T + 20); ok {
		t.Fatalf("end time is exclusive")
	}
	sales, _ := f.scheduler.AllSales()
	if got := sales[0].Status(T); got != StatusScheduled {
		t.Fatalf("expected scheduled, got %s", got)
	}
	if got := sales[0].Status(T + 25); got != StatusEnded {
		t.Fatalf("expected ended, got %s", got)
	}
}

func TestBuyItemBeforeStartUsesLiteralScan(t *testing.T) {
	f := newFixture()
	if _, err := f.scheduler.AddSale("admin", 0, T+10, T+20, usdc(1)); err != nil {
		t.Fatalf("add sale: %v", err)
	}
	if _, err := f.scheduler.BuyItem(types.MintRequest{TokenID: "early"}, types.Coins{usdc(1)}, "buyer"); err != nil {
		t.Fatalf("scan only checks end time and supply: %v", err)
	}
}
