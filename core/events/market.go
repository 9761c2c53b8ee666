package events

import (
	"strings"

	"nftmarket/core/types"
)

const (
	TypeListingCreated   = "market.listing.created"
	TypeListingRemoved   = "market.listing.removed"
	TypeTokenSold        = "market.token.sold"
	TypeSaleAdded        = "market.sale.added"
	TypeSaleHalted       = "market.sale.halted"
	TypeItemPurchased    = "market.sale.item_purchased"
	TypeOwnerChanged     = "market.owner.changed"
	TypeAllowListUpdated = "market.allowlist.updated"
	TypeTokenLockChanged = "market.token.lock_changed"
	TypeBankTransfer     = "bank.transfer"
	TypeTokenMinted      = "token.minted"
	TypeTokenTransferred = "token.transferred"
)

// Attribute keys shared by every marketplace event.
const (
	AttrBy              = "by"
	AttrContractAddress = "contract_address"
	AttrTokenID         = "token_id"
	AttrSaleObject      = "sale_object"
	AttrAmount          = "amount"
	AttrDenom           = "denom"
)

type ListingCreated struct {
	By       string
	Contract string
	TokenID  string
	Price    types.Coin
}

func (ListingCreated) EventType() string { return TypeListingCreated }

func (e ListingCreated) Event() *types.Event {
	attrs := baseAttrs(e.By, e.Contract)
	attrs[AttrTokenID] = e.TokenID
	putCoin(attrs, e.Price)
	return &types.Event{Type: TypeListingCreated, Attributes: attrs}
}

type ListingRemoved struct {
	By       string
	Contract string
	TokenID  string
}

func (ListingRemoved) EventType() string { return TypeListingRemoved }

func (e ListingRemoved) Event() *types.Event {
	attrs := baseAttrs(e.By, e.Contract)
	attrs[AttrTokenID] = e.TokenID
	return &types.Event{Type: TypeListingRemoved, Attributes: attrs}
}

type TokenSold struct {
	By       string
	Contract string
	TokenID  string
	Seller   string
	Price    types.Coin
	Refund   types.Coin
}

func (TokenSold) EventType() string { return TypeTokenSold }

func (e TokenSold) Event() *types.Event {
	attrs := baseAttrs(e.By, e.Contract)
	attrs[AttrTokenID] = e.TokenID
	attrs["seller"] = e.Seller
	putCoin(attrs, e.Price)
	attrs["refund"] = formatCoinAmount(e.Refund)
	return &types.Event{Type: TypeTokenSold, Attributes: attrs}
}

type SaleAdded struct {
	By         string
	Contract   string
	SaleObject string
	Price      types.Coin
}

func (SaleAdded) EventType() string { return TypeSaleAdded }

func (e SaleAdded) Event() *types.Event {
	attrs := baseAttrs(e.By, e.Contract)
	attrs[AttrSaleObject] = e.SaleObject
	putCoin(attrs, e.Price)
	return &types.Event{Type: TypeSaleAdded, Attributes: attrs}
}

type SaleHalted struct {
	By         string
	Contract   string
	SaleObject string
}

func (SaleHalted) EventType() string { return TypeSaleHalted }

func (e SaleHalted) Event() *types.Event {
	attrs := baseAttrs(e.By, e.Contract)
	attrs[AttrSaleObject] = e.SaleObject
	return &types.Event{Type: TypeSaleHalted, Attributes: attrs}
}

type ItemPurchased struct {
	By         string
	Contract   string
	TokenID    string
	SaleObject string
	Price      types.Coin
	Refund     types.Coin
}

func (ItemPurchased) EventType() string { return TypeItemPurchased }

func (e ItemPurchased) Event() *types.Event {
	attrs := baseAttrs(e.By, e.Contract)
	attrs[AttrTokenID] = e.TokenID
	attrs[AttrSaleObject] = e.SaleObject
	putCoin(attrs, e.Price)
	attrs["refund"] = formatCoinAmount(e.Refund)
	return &types.Event{Type: TypeItemPurchased, Attributes: attrs}
}

type OwnerChanged struct {
	By       string
	Contract string
	Owner    string
}

func (OwnerChanged) EventType() string { return TypeOwnerChanged }

func (e OwnerChanged) Event() *types.Event {
	attrs := baseAttrs(e.By, e.Contract)
	attrs["owner"] = e.Owner
	return &types.Event{Type: TypeOwnerChanged, Attributes: attrs}
}

type AllowListUpdated struct {
	By        string
	Contract  string
	Action    string
	Addresses []string
	Enabled   *bool
}

func (AllowListUpdated) EventType() string { return TypeAllowListUpdated }

func (e AllowListUpdated) Event() *types.Event {
	attrs := baseAttrs(e.By, e.Contract)
	attrs["action"] = e.Action
	if len(e.Addresses) > 0 {
		attrs["addresses"] = strings.Join(e.Addresses, ",")
	}
	if e.Enabled != nil {
		if *e.Enabled {
			attrs["enabled"] = "true"
		} else {
			attrs["enabled"] = "false"
		}
	}
	return &types.Event{Type: TypeAllowListUpdated, Attributes: attrs}
}

type TokenLockChanged struct {
	By       string
	Contract string
	TokenID  string
	Action   string
}

func (TokenLockChanged) EventType() string { return TypeTokenLockChanged }

func (e TokenLockChanged) Event() *types.Event {
	attrs := baseAttrs(e.By, e.Contract)
	attrs[AttrTokenID] = e.TokenID
	attrs["action"] = e.Action
	return &types.Event{Type: TypeTokenLockChanged, Attributes: attrs}
}

type BankTransfer struct {
	From   string
	To     string
	Amount types.Coin
}

func (BankTransfer) EventType() string { return TypeBankTransfer }

func (e BankTransfer) Event() *types.Event {
	attrs := map[string]string{
		"from": e.From,
		"to":   e.To,
	}
	putCoin(attrs, e.Amount)
	return &types.Event{Type: TypeBankTransfer, Attributes: attrs}
}

type TokenMinted struct {
	TokenID string
	Owner   string
}

func (TokenMinted) EventType() string { return TypeTokenMinted }

func (e TokenMinted) Event() *types.Event {
	return &types.Event{Type: TypeTokenMinted, Attributes: map[string]string{
		AttrTokenID: e.TokenID,
		"owner":     e.Owner,
	}}
}

type TokenTransferred struct {
	TokenID string
	From    string
	To      string
}

func (TokenTransferred) EventType() string { return TypeTokenTransferred }

func (e TokenTransferred) Event() *types.Event {
	return &types.Event{Type: TypeTokenTransferred, Attributes: map[string]string{
		AttrTokenID: e.TokenID,
		"from":      e.From,
		"to":        e.To,
	}}
}

func baseAttrs(by, contract string) map[string]string {
	attrs := map[string]string{AttrBy: by}
	if contract != "" {
		attrs[AttrContractAddress] = contract
	}
	return attrs
}

func putCoin(attrs map[string]string, coin types.Coin) {
	attrs[AttrAmount] = formatCoinAmount(coin)
	attrs[AttrDenom] = coin.Denom
}

func formatCoinAmount(coin types.Coin) string {
	return coin.AmountOrZero().Dec()
}
