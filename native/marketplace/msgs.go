package marketplace

import (
	"errors"
	"reflect"

	"nftmarket/core/types"
	"nftmarket/native/sales"
)

var (
	errNoVariant       = errors.New("marketplace: message names no operation")
	errMultipleVariant = errors.New("marketplace: message names more than one operation")
)

// InstantiateMsg seeds a contract.
type InstantiateMsg struct {
	Owner        string              `json:"owner,omitempty"`
	AllowEnabled bool                `json:"allow_enabled"`
	AllowedAddrs []string            `json:"allowed_addrs,omitempty"`
	LockedTokens []string            `json:"locked_tokens,omitempty"`
	Tokens       []types.MintRequest `json:"tokens,omitempty"`
	InitialSale  *AddPrimarySaleMsg  `json:"initial_sale,omitempty"`
}

type ListMsg struct {
	Listings map[string]types.Coin `json:"listings"`
}

type DelistMsg struct {
	TokenID string `json:"token_id"`
}

// BuyMsg buys a specific token, or the cheapest listing when TokenID is nil.
type BuyMsg struct {
	TokenID *string `json:"token_id,omitempty"`
}

type AddPrimarySaleMsg struct {
	TotalSupply uint64     `json:"total_supply"`
	StartTime   int64      `json:"start_time"`
	EndTime     int64      `json:"end_time"`
	Price       types.Coin `json:"price"`
}

type BuyItemMsg struct {
	MintRequest types.MintRequest `json:"mint_request"`
}

type SetOwnerMsg struct {
	Owner string `json:"owner"`
}

type SetEnabledMsg struct {
	Enabled bool `json:"enabled"`
}

type AddressesMsg struct {
	Addresses []string `json:"addresses"`
}

type TokenMsg struct {
	TokenID string `json:"token_id"`
}

type Empty struct{}

// ExecuteMsg is a tagged union: exactly one field is set.
type ExecuteMsg struct {
	List               *ListMsg           `json:"list,omitempty"`
	Delist             *DelistMsg         `json:"delist,omitempty"`
	Buy                *BuyMsg            `json:"buy,omitempty"`
	AddPrimarySale     *AddPrimarySaleMsg `json:"add_primary_sale,omitempty"`
	HaltSale           *Empty             `json:"halt_sale,omitempty"`
	BuyItem            *BuyItemMsg        `json:"buy_item,omitempty"`
	SetOwner           *SetOwnerMsg       `json:"set_owner,omitempty"`
	SetEnabled         *SetEnabledMsg     `json:"set_enabled,omitempty"`
	AddAllowedAddrs    *AddressesMsg      `json:"add_allowed_addrs,omitempty"`
	RemoveAllowedAddrs *AddressesMsg      `json:"remove_allowed_addrs,omitempty"`
	ClearAllowedAddrs  *Empty             `json:"clear_allowed_addrs,omitempty"`
	LockItem           *TokenMsg          `json:"lock_item,omitempty"`
	UnlockItem         *TokenMsg          `json:"unlock_item,omitempty"`
	RedeemItem         *TokenMsg          `json:"redeem_item,omitempty"`
}

// Method returns the snake_case name of the selected operation.
func (m ExecuteMsg) Method() (string, error) { return variant(m) }

type ListedTokensQuery struct {
	StartAfter string `json:"start_after,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type AddressQuery struct {
	Address string `json:"address"`
}

type TokenQuery struct {
	TokenID string `json:"token_id"`
}

type BalanceQuery struct {
	Address string `json:"address"`
	Denom   string `json:"denom"`
}

// QueryMsg is a tagged union: exactly one field is set.
type QueryMsg struct {
	ListedTokens      *ListedTokensQuery `json:"listed_tokens,omitempty"`
	PrimarySales      *Empty             `json:"primary_sales,omitempty"`
	ActivePrimarySale *Empty             `json:"active_primary_sale,omitempty"`
	IsAllowed         *AddressQuery      `json:"is_allowed,omitempty"`
	IsEnabled         *Empty             `json:"is_enabled,omitempty"`
	Owner             *Empty             `json:"owner,omitempty"`
	Token             *TokenQuery        `json:"token,omitempty"`
	IsRedeemed        *TokenQuery        `json:"is_redeemed,omitempty"`
	TokenStatus       *TokenQuery        `json:"token_status,omitempty"`
	Balance           *BalanceQuery      `json:"balance,omitempty"`
}

// Method returns the snake_case name of the selected query.
func (m QueryMsg) Method() (string, error) { return variant(m) }

// AdminOnly reports whether the selected operation is reserved for the
// contract owner.
func (m ExecuteMsg) AdminOnly() bool {
	method, err := m.Method()
	if err != nil {
		return false
	}
	switch method {
	case "add_primary_sale", "halt_sale", "set_owner", "set_enabled",
		"add_allowed_addrs", "remove_allowed_addrs", "clear_allowed_addrs",
		"lock_item", "unlock_item":
		return true
	}
	return false
}

// variant finds the single non-nil pointer field and returns its JSON name.
func variant(msg any) (string, error) {
	v := reflect.ValueOf(msg)
	t := v.Type()
	name := ""
	for i := 0; i < v.NumField(); i++ {
		if v.Field(i).IsNil() {
			continue
		}
		if name != "" {
			return "", errMultipleVariant
		}
		name = jsonName(t.Field(i))
	}
	if name == "" {
		return "", errNoVariant
	}
	return name, nil
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			return tag[:i]
		}
	}
	if tag == "" {
		return f.Name
	}
	return tag
}

// BoolResponse answers yes/no queries.
type BoolResponse struct {
	Result bool `json:"result"`
}

// OwnerResponse answers the owner query.
type OwnerResponse struct {
	Owner string `json:"owner"`
}

// SaleView annotates a sale with its lifecycle phase at query time.
type SaleView struct {
	Index  int          `json:"index"`
	Status sales.Status `json:"status"`
	*sales.Sale
}

// SalesResponse answers primary_sales.
type SalesResponse struct {
	Sales []SaleView `json:"sales"`
}

// ActiveSaleResponse answers active_primary_sale. Sale is nil when no window
// is open.
type ActiveSaleResponse struct {
	Sale *SaleView `json:"sale"`
}
