package marketplace

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	mkterrors "nftmarket/core/errors"
	"nftmarket/core/events"
	"nftmarket/core/state"
	"nftmarket/core/types"
	"nftmarket/crypto"
	"nftmarket/native/listing"
	"nftmarket/native/sales"
	"nftmarket/native/settlement"
	"nftmarket/storage"
)

const (
	admin    = "admin"
	alice    = "alice"
	bob      = "bob"
	contract = "market"
)

func newTestContract(t *testing.T, gates settlement.Gates) (*Contract, *state.Manager) {
	t.Helper()
	st := state.NewManager(storage.NewMemDB(), state.NewLayout(contract))
	c := NewContract(contract, "", gates)
	_, err := c.Instantiate(st, types.Env{BlockTime: 100}, types.MessageInfo{Sender: admin}, InstantiateMsg{
		Tokens: []types.MintRequest{
			{TokenID: "t1", Owner: alice},
			{TokenID: "t2", Owner: alice},
			{TokenID: "t3", Owner: bob},
		},
	}, nil)
	require.NoError(t, err)
	return c, st
}

func attr(t *testing.T, resp *types.Response, key string) string {
	t.Helper()
	v, ok := resp.Attribute(key)
	require.Truef(t, ok, "missing attribute %s", key)
	return v
}

func TestInstantiateDefaultsOwnerToSender(t *testing.T) {
	c, st := newTestContract(t, settlement.GateOwnership)
	res, err := c.Query(st, types.Env{}, QueryMsg{Owner: &Empty{}})
	require.NoError(t, err)
	require.Equal(t, OwnerResponse{Owner: admin}, res)

	tok, err := c.Query(st, types.Env{}, QueryMsg{Token: &TokenQuery{TokenID: "t3"}})
	require.NoError(t, err)
	require.Equal(t, bob, tok.(*types.Token).Owner)
}

func TestListAndBuyThroughExecute(t *testing.T) {
	c, st := newTestContract(t, settlement.GateOwnership)
	buf := events.NewBuffer()

	resp, err := c.Execute(st, types.Env{BlockTime: 100}, types.MessageInfo{Sender: alice}, ExecuteMsg{
		List: &ListMsg{Listings: map[string]types.Coin{"t1": types.NewCoin("uturnt", 10)}},
	}, buf)
	require.NoError(t, err)
	require.Equal(t, "list", attr(t, resp, AttrMethod))
	require.Equal(t, alice, attr(t, resp, events.AttrBy))
	require.Equal(t, contract, attr(t, resp, events.AttrContractAddress))
	require.Equal(t, "t1", attr(t, resp, events.AttrTokenID))
	require.Equal(t, "10", attr(t, resp, events.AttrAmount))
	require.Equal(t, "uturnt", attr(t, resp, events.AttrDenom))
	require.Len(t, buf.Events(), 1)

	id := "t1"
	resp, err = c.Execute(st, types.Env{BlockTime: 101}, types.MessageInfo{
		Sender: bob,
		Funds:  types.Coins{types.NewCoin("uturnt", 15)},
	}, ExecuteMsg{Buy: &BuyMsg{TokenID: &id}}, buf)
	require.NoError(t, err)
	require.Equal(t, "buy", attr(t, resp, AttrMethod))
	require.Len(t, resp.Messages, 2)
	require.Equal(t, alice, resp.Messages[0].ToAddress)
	require.Equal(t, "10", resp.Messages[0].Amount.Amount.Dec())
	require.Equal(t, bob, resp.Messages[1].ToAddress)
	require.Equal(t, "5", resp.Messages[1].Amount.Amount.Dec())

	tok, err := c.Query(st, types.Env{}, QueryMsg{Token: &TokenQuery{TokenID: "t1"}})
	require.NoError(t, err)
	require.Equal(t, bob, tok.(*types.Token).Owner)
}

func TestBuyCheapestWithoutTokenID(t *testing.T) {
	c, st := newTestContract(t, settlement.GateOwnership)
	_, err := c.Execute(st, types.Env{}, types.MessageInfo{Sender: alice}, ExecuteMsg{
		List: &ListMsg{Listings: map[string]types.Coin{
			"t1": types.NewCoin("uturnt", 30),
			"t2": types.NewCoin("uturnt", 20),
		}},
	}, nil)
	require.NoError(t, err)

	resp, err := c.Execute(st, types.Env{}, types.MessageInfo{
		Sender: bob,
		Funds:  types.Coins{types.NewCoin("uturnt", 20)},
	}, ExecuteMsg{Buy: &BuyMsg{}}, nil)
	require.NoError(t, err)
	require.Equal(t, "t2", attr(t, resp, events.AttrTokenID))
	require.Len(t, resp.Messages, 1)
}

func TestNonPayableRejectsFunds(t *testing.T) {
	c, st := newTestContract(t, settlement.GateOwnership)
	_, err := c.Execute(st, types.Env{}, types.MessageInfo{
		Sender: alice,
		Funds:  types.Coins{types.NewCoin("uturnt", 1)},
	}, ExecuteMsg{Delist: &DelistMsg{TokenID: "t1"}}, nil)
	require.ErrorIs(t, err, mkterrors.ErrFundsNotAccepted)
}

func TestMessageMustNameOneOperation(t *testing.T) {
	c, st := newTestContract(t, settlement.GateOwnership)
	_, err := c.Execute(st, types.Env{}, types.MessageInfo{Sender: admin}, ExecuteMsg{}, nil)
	require.ErrorIs(t, err, errNoVariant)

	_, err = c.Execute(st, types.Env{}, types.MessageInfo{Sender: admin}, ExecuteMsg{
		HaltSale:          &Empty{},
		ClearAllowedAddrs: &Empty{},
	}, nil)
	require.ErrorIs(t, err, errMultipleVariant)

	var msg ExecuteMsg
	require.NoError(t, json.Unmarshal([]byte(`{"halt_sale":{}}`), &msg))
	method, err := msg.Method()
	require.NoError(t, err)
	require.Equal(t, "halt_sale", method)
}

func TestPrimarySaleLifecycle(t *testing.T) {
	c, st := newTestContract(t, settlement.GateOwnership)
	price := types.NewCoin("uturnt", 7)

	resp, err := c.Execute(st, types.Env{BlockTime: 100}, types.MessageInfo{Sender: admin}, ExecuteMsg{
		AddPrimarySale: &AddPrimarySaleMsg{TotalSupply: 1, StartTime: 150, EndTime: 200, Price: price},
	}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, attr(t, resp, events.AttrSaleObject))

	res, err := c.Query(st, types.Env{BlockTime: 120}, QueryMsg{ActivePrimarySale: &Empty{}})
	require.NoError(t, err)
	require.Nil(t, res.(ActiveSaleResponse).Sale)

	res, err = c.Query(st, types.Env{BlockTime: 160}, QueryMsg{ActivePrimarySale: &Empty{}})
	require.NoError(t, err)
	active := res.(ActiveSaleResponse).Sale
	require.NotNil(t, active)
	require.Equal(t, sales.StatusActive, active.Status)

	resp, err = c.Execute(st, types.Env{BlockTime: 160}, types.MessageInfo{
		Sender: bob,
		Funds:  types.Coins{types.NewCoin("uturnt", 7)},
	}, ExecuteMsg{BuyItem: &BuyItemMsg{MintRequest: types.MintRequest{TokenID: "fresh"}}}, nil)
	require.NoError(t, err)
	require.Equal(t, "fresh", attr(t, resp, events.AttrTokenID))
	require.Len(t, resp.Messages, 1)
	require.Equal(t, admin, resp.Messages[0].ToAddress)

	res, err = c.Query(st, types.Env{BlockTime: 160}, QueryMsg{PrimarySales: &Empty{}})
	require.NoError(t, err)
	history := res.(SalesResponse).Sales
	require.Len(t, history, 1)
	require.True(t, history[0].Disabled)
	require.Equal(t, sales.StatusEnded, history[0].Status)
}

func TestAllowListAdministration(t *testing.T) {
	c, st := newTestContract(t, settlement.GateOwnership|settlement.GateAllow)
	env := types.Env{}

	_, err := c.Execute(st, env, types.MessageInfo{Sender: alice}, ExecuteMsg{SetEnabled: &SetEnabledMsg{Enabled: true}}, nil)
	require.ErrorIs(t, err, mkterrors.ErrUnauthorized)

	_, err = c.Execute(st, env, types.MessageInfo{Sender: admin}, ExecuteMsg{SetEnabled: &SetEnabledMsg{Enabled: true}}, nil)
	require.NoError(t, err)
	_, err = c.Execute(st, env, types.MessageInfo{Sender: admin}, ExecuteMsg{AddAllowedAddrs: &AddressesMsg{Addresses: []string{bob}}}, nil)
	require.NoError(t, err)

	res, err := c.Query(st, env, QueryMsg{IsEnabled: &Empty{}})
	require.NoError(t, err)
	require.Equal(t, BoolResponse{Result: true}, res)
	res, err = c.Query(st, env, QueryMsg{IsAllowed: &AddressQuery{Address: bob}})
	require.NoError(t, err)
	require.Equal(t, BoolResponse{Result: true}, res)

	_, err = c.Execute(st, env, types.MessageInfo{Sender: alice}, ExecuteMsg{
		List: &ListMsg{Listings: map[string]types.Coin{"t1": types.NewCoin("uturnt", 5)}},
	}, nil)
	require.NoError(t, err)
	_, err = c.Execute(st, env, types.MessageInfo{Sender: "carol", Funds: types.Coins{types.NewCoin("uturnt", 5)}}, ExecuteMsg{Buy: &BuyMsg{}}, nil)
	require.ErrorIs(t, err, mkterrors.ErrUnauthorized)

	_, err = c.Execute(st, env, types.MessageInfo{Sender: admin}, ExecuteMsg{ClearAllowedAddrs: &Empty{}}, nil)
	require.NoError(t, err)
	res, err = c.Query(st, env, QueryMsg{IsAllowed: &AddressQuery{Address: bob}})
	require.NoError(t, err)
	require.Equal(t, BoolResponse{Result: false}, res)
}

func TestAllowListGatesPrimarySalePurchase(t *testing.T) {
	c, st := newTestContract(t, settlement.GateOwnership|settlement.GateAllow)
	env := types.Env{BlockTime: 160}
	owner := types.MessageInfo{Sender: admin}

	_, err := c.Execute(st, types.Env{BlockTime: 100}, owner, ExecuteMsg{
		AddPrimarySale: &AddPrimarySaleMsg{TotalSupply: 2, StartTime: 150, EndTime: 200, Price: types.NewCoin("uturnt", 7)},
	}, nil)
	require.NoError(t, err)
	_, err = c.Execute(st, env, owner, ExecuteMsg{SetEnabled: &SetEnabledMsg{Enabled: true}}, nil)
	require.NoError(t, err)
	_, err = c.Execute(st, env, owner, ExecuteMsg{AddAllowedAddrs: &AddressesMsg{Addresses: []string{bob}}}, nil)
	require.NoError(t, err)

	funds := types.Coins{types.NewCoin("uturnt", 7)}
	_, err = c.Execute(st, env, types.MessageInfo{Sender: "carol", Funds: funds}, ExecuteMsg{
		BuyItem: &BuyItemMsg{MintRequest: types.MintRequest{TokenID: "carol-1"}},
	}, nil)
	require.ErrorIs(t, err, mkterrors.ErrUnauthorized)

	resp, err := c.Execute(st, env, types.MessageInfo{Sender: bob, Funds: funds}, ExecuteMsg{
		BuyItem: &BuyItemMsg{MintRequest: types.MintRequest{TokenID: "bob-1"}},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "bob-1", attr(t, resp, events.AttrTokenID))
}

func TestLockAndRedeem(t *testing.T) {
	c, st := newTestContract(t, settlement.GateOwnership|settlement.GateLock)
	env := types.Env{}

	_, err := c.Execute(st, env, types.MessageInfo{Sender: admin}, ExecuteMsg{LockItem: &TokenMsg{TokenID: "t1"}}, nil)
	require.NoError(t, err)
	_, err = c.Execute(st, env, types.MessageInfo{Sender: alice}, ExecuteMsg{
		List: &ListMsg{Listings: map[string]types.Coin{"t1": types.NewCoin("uturnt", 5)}},
	}, nil)
	require.ErrorIs(t, err, mkterrors.ErrTicketLocked)

	_, err = c.Execute(st, env, types.MessageInfo{Sender: bob}, ExecuteMsg{RedeemItem: &TokenMsg{TokenID: "t3"}}, nil)
	require.NoError(t, err)
	res, err := c.Query(st, env, QueryMsg{IsRedeemed: &TokenQuery{TokenID: "t3"}})
	require.NoError(t, err)
	require.Equal(t, BoolResponse{Result: true}, res)
}

func TestListedTokensPagination(t *testing.T) {
	c, st := newTestContract(t, settlement.GateOwnership)
	_, err := c.Execute(st, types.Env{}, types.MessageInfo{Sender: admin}, ExecuteMsg{
		List: &ListMsg{Listings: map[string]types.Coin{
			"t1": types.NewCoin("uturnt", 1),
			"t2": types.NewCoin("uturnt", 2),
			"t3": types.NewCoin("uturnt", 3),
		}},
	}, nil)
	require.NoError(t, err)

	res, err := c.Query(st, types.Env{}, QueryMsg{ListedTokens: &ListedTokensQuery{Limit: 2}})
	require.NoError(t, err)
	page := res.(listing.Page)
	require.Len(t, page.Entries, 2)
	require.Equal(t, "t2", page.Next)

	res, err = c.Query(st, types.Env{}, QueryMsg{ListedTokens: &ListedTokensQuery{StartAfter: page.Next}})
	require.NoError(t, err)
	page = res.(listing.Page)
	require.Len(t, page.Entries, 1)
	require.Equal(t, "t3", page.Entries[0].TokenID)
	require.Equal(t, bob, page.Entries[0].Token.Owner)
}

func TestAddressPrefixValidation(t *testing.T) {
	st := state.NewManager(storage.NewMemDB(), state.NewLayout(contract))
	owner := crypto.MustAddress(crypto.DefaultPrefix, make([]byte, 20)).String()
	c := NewContract(contract, crypto.DefaultPrefix, settlement.GateOwnership)

	_, err := c.Instantiate(st, types.Env{}, types.MessageInfo{Sender: "not-an-address"}, InstantiateMsg{}, nil)
	require.Error(t, err)

	_, err = c.Instantiate(st, types.Env{}, types.MessageInfo{Sender: owner}, InstantiateMsg{}, nil)
	require.NoError(t, err)

	_, err = c.Execute(st, types.Env{}, types.MessageInfo{Sender: owner}, ExecuteMsg{SetOwner: &SetOwnerMsg{Owner: "bogus"}}, nil)
	require.Error(t, err)
	require.False(t, errors.Is(err, mkterrors.ErrUnauthorized))
}

func TestExecuteMsgAdminOnly(t *testing.T) {
	require.True(t, ExecuteMsg{HaltSale: &Empty{}}.AdminOnly())
	require.True(t, ExecuteMsg{LockItem: &TokenMsg{TokenID: "t"}}.AdminOnly())
	require.False(t, ExecuteMsg{RedeemItem: &TokenMsg{TokenID: "t"}}.AdminOnly())
	require.False(t, ExecuteMsg{Buy: &BuyMsg{}}.AdminOnly())
	require.False(t, ExecuteMsg{}.AdminOnly())
}
