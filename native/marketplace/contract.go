package marketplace

import (
	"errors"
	"fmt"
	"strconv"

	"nftmarket/core/events"
	mkterrors "nftmarket/core/errors"
	"nftmarket/core/state"
	"nftmarket/core/types"
	"nftmarket/crypto"
	"nftmarket/native/allowable"
	"nftmarket/native/listing"
	"nftmarket/native/ownable"
	"nftmarket/native/redeemable"
	"nftmarket/native/sales"
	"nftmarket/native/settlement"
	"nftmarket/native/token"
)

// Response attribute keys.
const (
	AttrMethod = "method"
	AttrAction = "action"
	AttrOwner  = "owner"
)

var errNilState = errors.New("marketplace: state not configured")

// Contract composes the marketplace modules behind the execute and query
// message sets. It holds no state of its own; every call wires fresh engines
// over the supplied state.
type Contract struct {
	gates   settlement.Gates
	address string
	prefix  crypto.AddressPrefix
}

// NewContract builds a contract bound to address. Addresses supplied in
// messages are validated against prefix unless it is empty.
func NewContract(address string, prefix crypto.AddressPrefix, gates settlement.Gates) *Contract {
	return &Contract{gates: gates | settlement.GateOwnership, address: address, prefix: prefix}
}

// Address returns the contract account.
func (c *Contract) Address() string { return c.address }

// Gates returns the settlement capability set.
func (c *Contract) Gates() settlement.Gates { return c.gates }

type modules struct {
	tokens     *token.Engine
	owner      *ownable.Engine
	allow      *allowable.Engine
	lock       *redeemable.Engine
	registry   *listing.Registry
	settlement *settlement.Engine
	sales      *sales.Scheduler
}

func (c *Contract) wire(st *state.Manager, env types.Env, emitter events.Emitter) (*modules, error) {
	if st == nil {
		return nil, errNilState
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	m := &modules{
		tokens:   token.NewEngine(),
		owner:    ownable.NewEngine(),
		allow:    allowable.NewEngine(),
		lock:     redeemable.NewEngine(),
		registry: listing.NewRegistry(),
		sales:    sales.NewScheduler(),
	}
	m.tokens.SetState(st)
	m.tokens.SetEmitter(emitter)

	m.owner.SetState(st)
	m.owner.SetContract(c.address)
	m.owner.SetEmitter(emitter)

	m.allow.SetState(st)
	m.allow.SetOwnerGate(m.owner)
	m.allow.SetContract(c.address)
	m.allow.SetEmitter(emitter)

	m.lock.SetState(st)
	m.lock.SetOwnerGate(m.owner)
	m.lock.SetTokenLedger(m.tokens)
	m.lock.SetContract(c.address)
	m.lock.SetEmitter(emitter)

	m.registry.SetState(st)
	m.registry.SetTokenLedger(m.tokens)
	m.registry.SetOwnerGate(m.owner)
	m.registry.SetContract(c.address)
	m.registry.SetEmitter(emitter)

	blockTime := env.BlockTime
	m.sales.SetState(st)
	m.sales.SetOwnerGate(m.owner)
	m.sales.SetTokenLedger(m.tokens)
	m.sales.SetContract(c.address)
	m.sales.SetEmitter(emitter)
	m.sales.SetNowFunc(func() int64 { return blockTime })

	engine, err := settlement.NewEngine(c.gates, settlement.Deps{
		Registry: m.registry,
		Tokens:   m.tokens,
		Allow:    m.allow,
		Lock:     m.lock,
		Emitter:  emitter,
		Contract: c.address,
	})
	if err != nil {
		return nil, err
	}
	m.settlement = engine
	return m, nil
}

func (c *Contract) validateAddress(addr string) (string, error) {
	if c.prefix == "" {
		return addr, nil
	}
	return crypto.ValidateAddress(c.prefix, addr)
}

func (c *Contract) validateAddresses(addrs []string) ([]string, error) {
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		valid, err := c.validateAddress(addr)
		if err != nil {
			return nil, err
		}
		out = append(out, valid)
	}
	return out, nil
}

// Instantiate seeds the owner, allow list, lock set, initial tokens and an
// optional first sale. The owner defaults to the sender.
func (c *Contract) Instantiate(st *state.Manager, env types.Env, info types.MessageInfo, msg InstantiateMsg, emitter events.Emitter) (*types.Response, error) {
	if len(info.Funds) > 0 {
		return nil, mkterrors.ErrFundsNotAccepted
	}
	m, err := c.wire(st, env, emitter)
	if err != nil {
		return nil, err
	}
	owner := msg.Owner
	if owner == "" {
		owner = info.Sender
	}
	if owner, err = c.validateAddress(owner); err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	if err := m.owner.Initialize(owner); err != nil {
		return nil, err
	}
	allowed, err := c.validateAddresses(msg.AllowedAddrs)
	if err != nil {
		return nil, fmt.Errorf("allowed_addrs: %w", err)
	}
	if err := m.allow.Seed(msg.AllowEnabled, allowed); err != nil {
		return nil, err
	}
	for _, req := range msg.Tokens {
		if req.Owner == "" {
			req.Owner = owner
		}
		if req.Owner, err = c.validateAddress(req.Owner); err != nil {
			return nil, fmt.Errorf("token %q owner: %w", req.TokenID, err)
		}
		if _, err := m.tokens.Mint(req); err != nil {
			return nil, fmt.Errorf("token %q: %w", req.TokenID, err)
		}
	}
	if err := m.lock.Seed(msg.LockedTokens); err != nil {
		return nil, err
	}
	resp := types.NewResponse().
		AddAttribute(AttrMethod, "instantiate").
		AddAttribute(AttrOwner, owner).
		AddAttribute(events.AttrContractAddress, c.address)
	if sale := msg.InitialSale; sale != nil {
		added, err := m.sales.AddSale(owner, sale.TotalSupply, sale.StartTime, sale.EndTime, sale.Price)
		if err != nil {
			return nil, err
		}
		resp.AddAttribute(events.AttrSaleObject, added.Object())
	}
	return resp, nil
}

// Execute dispatches a mutating message. Only buy and buy_item accept funds.
func (c *Contract) Execute(st *state.Manager, env types.Env, info types.MessageInfo, msg ExecuteMsg, emitter events.Emitter) (*types.Response, error) {
	method, err := msg.Method()
	if err != nil {
		return nil, err
	}
	if msg.Buy == nil && msg.BuyItem == nil && len(info.Funds) > 0 {
		return nil, mkterrors.ErrFundsNotAccepted
	}
	m, err := c.wire(st, env, emitter)
	if err != nil {
		return nil, err
	}
	resp := types.NewResponse().
		AddAttribute(AttrMethod, method).
		AddAttribute(events.AttrBy, info.Sender).
		AddAttribute(events.AttrContractAddress, c.address)
	sender := info.Sender

	switch {
	case msg.List != nil:
		listed, err := m.settlement.List(msg.List.Listings, sender)
		if err != nil {
			return nil, err
		}
		for _, l := range listed {
			addCoin(resp.AddAttribute(events.AttrTokenID, l.TokenID), l.Price)
		}
	case msg.Delist != nil:
		if err := m.settlement.Delist(msg.Delist.TokenID, sender); err != nil {
			return nil, err
		}
		id, _ := types.NormalizeTokenID(msg.Delist.TokenID)
		resp.AddAttribute(events.AttrTokenID, id)
	case msg.Buy != nil:
		var result *settlement.Settlement
		if msg.Buy.TokenID != nil {
			result, err = m.settlement.BuySpecific(*msg.Buy.TokenID, info.Funds, sender)
		} else {
			result, err = m.settlement.BuyCheapest(info.Funds, sender)
		}
		if err != nil {
			return nil, err
		}
		addCoin(resp.AddAttribute(events.AttrTokenID, result.TokenID), result.Price)
		resp.Messages = append(resp.Messages, result.Messages...)
		resp.Data = result
	case msg.AddPrimarySale != nil:
		p := msg.AddPrimarySale
		sale, err := m.sales.AddSale(sender, p.TotalSupply, p.StartTime, p.EndTime, p.Price)
		if err != nil {
			return nil, err
		}
		addCoin(resp.AddAttribute(events.AttrSaleObject, sale.Object()), sale.Price)
	case msg.HaltSale != nil:
		sale, err := m.sales.HaltSale(sender)
		if err != nil {
			return nil, err
		}
		addCoin(resp.AddAttribute(events.AttrSaleObject, sale.Object()), sale.Price)
	case msg.BuyItem != nil:
		if c.gates.Has(settlement.GateAllow) {
			ok, err := m.allow.Permits(sender)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, mkterrors.ErrUnauthorized
			}
		}
		req := msg.BuyItem.MintRequest
		if req.Owner != "" {
			if req.Owner, err = c.validateAddress(req.Owner); err != nil {
				return nil, err
			}
		}
		purchase, err := m.sales.BuyItem(req, info.Funds, sender)
		if err != nil {
			return nil, err
		}
		resp.AddAttribute(events.AttrTokenID, purchase.Token.ID)
		addCoin(resp.AddAttribute(events.AttrSaleObject, purchase.Sale.Object()), purchase.Sale.Price)
		resp.Messages = append(resp.Messages, purchase.Messages...)
		resp.Data = purchase
	case msg.SetOwner != nil:
		owner, err := c.validateAddress(msg.SetOwner.Owner)
		if err != nil {
			return nil, err
		}
		if err := m.owner.SetOwner(sender, owner); err != nil {
			return nil, err
		}
		resp.AddAttribute(AttrOwner, owner)
	case msg.SetEnabled != nil:
		if err := m.allow.SetEnabled(sender, msg.SetEnabled.Enabled); err != nil {
			return nil, err
		}
		resp.AddAttribute("enabled", strconv.FormatBool(msg.SetEnabled.Enabled))
	case msg.AddAllowedAddrs != nil:
		addrs, err := c.validateAddresses(msg.AddAllowedAddrs.Addresses)
		if err != nil {
			return nil, err
		}
		if err := m.allow.AddAddresses(sender, addrs); err != nil {
			return nil, err
		}
	case msg.RemoveAllowedAddrs != nil:
		if err := m.allow.RemoveAddresses(sender, msg.RemoveAllowedAddrs.Addresses); err != nil {
			return nil, err
		}
	case msg.ClearAllowedAddrs != nil:
		if err := m.allow.Clear(sender); err != nil {
			return nil, err
		}
	case msg.LockItem != nil:
		if err := m.lock.Lock(sender, msg.LockItem.TokenID); err != nil {
			return nil, err
		}
		resp.AddAttribute(events.AttrTokenID, msg.LockItem.TokenID)
	case msg.UnlockItem != nil:
		if err := m.lock.Unlock(sender, msg.UnlockItem.TokenID); err != nil {
			return nil, err
		}
		resp.AddAttribute(events.AttrTokenID, msg.UnlockItem.TokenID)
	case msg.RedeemItem != nil:
		if err := m.lock.Redeem(sender, msg.RedeemItem.TokenID); err != nil {
			return nil, err
		}
		resp.AddAttribute(events.AttrTokenID, msg.RedeemItem.TokenID)
	}
	return resp, nil
}

// Query answers a read-only message. env.BlockTime drives sale status.
func (c *Contract) Query(st *state.Manager, env types.Env, msg QueryMsg) (any, error) {
	if _, err := msg.Method(); err != nil {
		return nil, err
	}
	m, err := c.wire(st, env, nil)
	if err != nil {
		return nil, err
	}
	switch {
	case msg.ListedTokens != nil:
		return m.registry.ListAll(msg.ListedTokens.StartAfter, msg.ListedTokens.Limit)
	case msg.PrimarySales != nil:
		history, err := m.sales.AllSales()
		if err != nil {
			return nil, err
		}
		out := SalesResponse{Sales: make([]SaleView, 0, len(history))}
		for i, sale := range history {
			out.Sales = append(out.Sales, SaleView{Index: i, Status: sale.Status(env.BlockTime), Sale: sale})
		}
		return out, nil
	case msg.ActivePrimarySale != nil:
		history, err := m.sales.AllSales()
		if err != nil {
			return nil, err
		}
		for i, sale := range history {
			if sale.Contains(env.BlockTime) {
				return ActiveSaleResponse{Sale: &SaleView{Index: i, Status: sale.Status(env.BlockTime), Sale: sale}}, nil
			}
		}
		return ActiveSaleResponse{}, nil
	case msg.IsAllowed != nil:
		ok, err := m.allow.IsAllowed(msg.IsAllowed.Address)
		if err != nil {
			return nil, err
		}
		return BoolResponse{Result: ok}, nil
	case msg.IsEnabled != nil:
		ok, err := m.allow.IsEnabled()
		if err != nil {
			return nil, err
		}
		return BoolResponse{Result: ok}, nil
	case msg.Owner != nil:
		owner, err := m.owner.Owner()
		if err != nil {
			return nil, err
		}
		return OwnerResponse{Owner: owner}, nil
	case msg.Token != nil:
		id, err := types.NormalizeTokenID(msg.Token.TokenID)
		if err != nil {
			return nil, err
		}
		tok, ok, err := m.tokens.Get(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, mkterrors.ErrTokenIDNotFound
		}
		return tok, nil
	case msg.IsRedeemed != nil:
		status, err := m.lock.Status(msg.IsRedeemed.TokenID)
		if err != nil {
			return nil, err
		}
		return BoolResponse{Result: status.Redeemed}, nil
	case msg.TokenStatus != nil:
		return m.lock.Status(msg.TokenStatus.TokenID)
	case msg.Balance != nil:
		amount, err := st.BalanceGet(msg.Balance.Address, msg.Balance.Denom)
		if err != nil {
			return nil, err
		}
		return types.Coin{Denom: msg.Balance.Denom, Amount: amount}, nil
	}
	return nil, errNoVariant
}

func addCoin(resp *types.Response, coin types.Coin) {
	resp.AddAttribute(events.AttrAmount, coin.AmountOrZero().Dec())
	resp.AddAttribute(events.AttrDenom, coin.Denom)
}
