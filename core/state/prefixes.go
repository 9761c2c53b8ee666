package state

import (
	"strconv"
	"strings"
)

// Layout names every persistent slot of one marketplace contract. It is
// derived once from the contract address and threaded through every call.
// Keys are stored unhashed so listings iterate in token id order.
type Layout struct {
	TokenPrefix    []byte
	TokenCount     []byte
	ListingPrefix  []byte
	Sales          []byte
	Owner          []byte
	AllowEnabled   []byte
	AllowPrefix    []byte
	LockedPrefix   []byte
	RedeemedPrefix []byte
	BalancePrefix  []byte
	ChainHeight    []byte
	Version        []byte
}

// NewLayout derives the layout for the contract at address. Balances live in
// a chain-wide namespace shared by all contracts.
func NewLayout(contract string) Layout {
	ns := "market/" + strings.TrimSpace(contract) + "/"
	return Layout{
		TokenPrefix:    []byte(ns + "token/"),
		TokenCount:     []byte(ns + "token-count"),
		ListingPrefix:  []byte(ns + "listing/"),
		Sales:          []byte(ns + "sales"),
		Owner:          []byte(ns + "owner"),
		AllowEnabled:   []byte(ns + "allow/enabled"),
		AllowPrefix:    []byte(ns + "allow/addr/"),
		LockedPrefix:   []byte(ns + "lock/locked/"),
		RedeemedPrefix: []byte(ns + "lock/redeemed/"),
		BalancePrefix:  []byte("bank/balance/"),
		ChainHeight:    []byte("chain/height"),
		Version:        []byte("state/version"),
	}
}

func join(prefix []byte, parts ...string) []byte {
	size := len(prefix)
	for i, p := range parts {
		if i > 0 {
			size++
		}
		size += len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, p := range parts {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = append(buf, p...)
	}
	return buf
}

func (l Layout) tokenKey(id string) []byte { return join(l.TokenPrefix, id) }
func (l Layout) listingKey(id string) []byte { return join(l.ListingPrefix, id) }
func (l Layout) allowKey(addr string) []byte { return join(l.AllowPrefix, addr) }
func (l Layout) lockedKey(id string) []byte { return join(l.LockedPrefix, id) }
func (l Layout) redeemedKey(id string) []byte { return join(l.RedeemedPrefix, id) }

// balanceKey length-prefixes the address since both parts may contain '/'.
func (l Layout) balanceKey(addr, denom string) []byte {
	return join(l.BalancePrefix, strconv.Itoa(len(addr))+":"+addr, denom)
}
