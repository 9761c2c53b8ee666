package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	mkterrors "nftmarket/core/errors"
	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/bank"
	"nftmarket/native/common"
	"nftmarket/native/marketplace"
	"nftmarket/native/settlement"
	"nftmarket/storage"
)

const (
	hostAdmin  = "admin"
	hostSeller = "seller"
	hostBuyer  = "buyer"
	hostMarket = "market"
)

func newTestHost(t *testing.T, opts HostOptions) *Host {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Unix(1_000, 0) }
	}
	host, err := NewHost(storage.NewMemDB(), marketplace.NewContract(hostMarket, "", settlement.GateOwnership), opts)
	require.NoError(t, err)
	_, err = host.Instantiate(context.Background(), hostAdmin, marketplace.InstantiateMsg{
		Tokens: []types.MintRequest{{TokenID: "ticket-1", Owner: hostSeller}},
	}, map[string]types.Coins{
		hostBuyer: {types.NewCoin("uturnt", 100)},
	})
	require.NoError(t, err)
	return host
}

func balance(t *testing.T, host *Host, addr string) string {
	t.Helper()
	res, err := host.Query(context.Background(), marketplace.QueryMsg{Balance: &marketplace.BalanceQuery{Address: addr, Denom: "uturnt"}})
	require.NoError(t, err)
	return res.(types.Coin).AmountOrZero().Dec()
}

func listTicket(t *testing.T, host *Host, amount uint64) {
	t.Helper()
	_, err := host.Execute(context.Background(), hostSeller, nil, marketplace.ExecuteMsg{
		List: &marketplace.ListMsg{Listings: map[string]types.Coin{"ticket-1": types.NewCoin("uturnt", amount)}},
	})
	require.NoError(t, err)
}

func TestHostSettlesPaymentsAndRefund(t *testing.T) {
	host := newTestHost(t, HostOptions{})
	listTicket(t, host, 40)

	res, err := host.Execute(context.Background(), hostBuyer, types.Coins{types.NewCoin("uturnt", 55)}, marketplace.ExecuteMsg{
		Buy: &marketplace.BuyMsg{},
	})
	require.NoError(t, err)
	require.Equal(t, uint64(3), res.Height)
	require.NotEmpty(t, res.Response.Events)

	require.Equal(t, "40", balance(t, host, hostSeller))
	require.Equal(t, "60", balance(t, host, hostBuyer))
	require.Equal(t, "0", balance(t, host, hostMarket))
}

func TestHostDiscardsFailedCall(t *testing.T) {
	host := newTestHost(t, HostOptions{})
	listTicket(t, host, 40)
	before := host.Height()

	_, err := host.Execute(context.Background(), hostBuyer, types.Coins{types.NewCoin("uturnt", 39)}, marketplace.ExecuteMsg{
		Buy: &marketplace.BuyMsg{},
	})
	require.ErrorIs(t, err, mkterrors.ErrInsufficientFunds)
	require.Equal(t, before, host.Height())
	require.Equal(t, "100", balance(t, host, hostBuyer))
	require.Equal(t, "0", balance(t, host, hostMarket))

	res, err := host.Query(context.Background(), marketplace.QueryMsg{ListedTokens: &marketplace.ListedTokensQuery{}})
	require.NoError(t, err)
	require.NotNil(t, res)
}

func TestHostRejectsUnfundedEscrow(t *testing.T) {
	host := newTestHost(t, HostOptions{})
	listTicket(t, host, 40)

	_, err := host.Execute(context.Background(), "pauper", types.Coins{types.NewCoin("uturnt", 40)}, marketplace.ExecuteMsg{
		Buy: &marketplace.BuyMsg{},
	})
	require.True(t, errors.Is(err, bank.ErrInsufficientBalance), "unexpected error: %v", err)
}

func TestHostPauseGuard(t *testing.T) {
	host := newTestHost(t, HostOptions{Pauses: common.NewPauseSet([]string{ModuleSettlement})})
	_, err := host.Execute(context.Background(), hostSeller, nil, marketplace.ExecuteMsg{
		List: &marketplace.ListMsg{Listings: map[string]types.Coin{"ticket-1": types.NewCoin("uturnt", 1)}},
	})
	require.ErrorIs(t, err, common.ErrModulePaused)

	_, err = host.Execute(context.Background(), hostAdmin, nil, marketplace.ExecuteMsg{
		SetEnabled: &marketplace.SetEnabledMsg{Enabled: true},
	})
	require.NoError(t, err)
}

func TestHostSalesPauseAllowsAdministration(t *testing.T) {
	host := newTestHost(t, HostOptions{Pauses: common.NewPauseSet([]string{ModuleSales})})
	ctx := context.Background()
	_, err := host.Execute(ctx, hostAdmin, nil, marketplace.ExecuteMsg{
		AddPrimarySale: &marketplace.AddPrimarySaleMsg{TotalSupply: 5, StartTime: 1_000, EndTime: 2_000, Price: types.NewCoin("uturnt", 3)},
	})
	require.NoError(t, err)

	_, err = host.Execute(ctx, hostBuyer, types.Coins{types.NewCoin("uturnt", 3)}, marketplace.ExecuteMsg{
		BuyItem: &marketplace.BuyItemMsg{MintRequest: types.MintRequest{TokenID: "fresh"}},
	})
	require.ErrorIs(t, err, common.ErrModulePaused)

	_, err = host.Execute(ctx, hostAdmin, nil, marketplace.ExecuteMsg{HaltSale: &marketplace.Empty{}})
	require.NoError(t, err)
}

func TestHostInstantiateOnce(t *testing.T) {
	host := newTestHost(t, HostOptions{})
	_, err := host.Instantiate(context.Background(), hostAdmin, marketplace.InstantiateMsg{}, nil)
	require.ErrorIs(t, err, ErrAlreadyInstantiated)
}

func TestHostExecuteBeforeInstantiate(t *testing.T) {
	host, err := NewHost(storage.NewMemDB(), marketplace.NewContract(hostMarket, "", settlement.GateOwnership), HostOptions{})
	require.NoError(t, err)
	_, err = host.Execute(context.Background(), hostAdmin, nil, marketplace.ExecuteMsg{HaltSale: &marketplace.Empty{}})
	require.ErrorIs(t, err, ErrNotInstantiated)
}

func TestHostPublishesAfterCommit(t *testing.T) {
	stream := events.NewStream()
	host := newTestHost(t, HostOptions{Stream: stream})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, stop, _ := stream.Subscribe(ctx, "")
	defer stop()

	listTicket(t, host, 10)
	select {
	case update := <-updates:
		require.Equal(t, events.TypeListingCreated, update.Event.Type)
		require.Equal(t, uint64(2), update.Height)
	case <-time.After(time.Second):
		t.Fatalf("expected listing event")
	}

	_, err := host.Execute(context.Background(), hostSeller, nil, marketplace.ExecuteMsg{
		Delist: &marketplace.DelistMsg{TokenID: "missing"},
	})
	require.Error(t, err)
	select {
	case update := <-updates:
		t.Fatalf("unexpected event after failed call: %+v", update)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHostReopensAtCommittedHeight(t *testing.T) {
	db := storage.NewMemDB()
	contract := marketplace.NewContract(hostMarket, "", settlement.GateOwnership)
	host, err := NewHost(db, contract, HostOptions{})
	require.NoError(t, err)
	_, err = host.Instantiate(context.Background(), hostAdmin, marketplace.InstantiateMsg{}, nil)
	require.NoError(t, err)

	reopened, err := NewHost(db, contract, HostOptions{})
	require.NoError(t, err)
	require.Equal(t, uint64(1), reopened.Height())
}
