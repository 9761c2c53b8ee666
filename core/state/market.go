package state

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"nftmarket/core/types"
	"nftmarket/native/listing"
	"nftmarket/native/sales"
	"nftmarket/storage"
)

type storedCoin struct {
	Denom  string
	Amount *big.Int
}

func newStoredCoin(c types.Coin) storedCoin {
	return storedCoin{Denom: c.Denom, Amount: c.AmountOrZero().ToBig()}
}

func (s storedCoin) toCoin() (types.Coin, error) {
	amount := new(uint256.Int)
	if s.Amount != nil {
		var overflow bool
		amount, overflow = uint256.FromBig(s.Amount)
		if overflow {
			return types.Coin{}, fmt.Errorf("state: stored amount overflows")
		}
	}
	return types.Coin{Denom: s.Denom, Amount: amount}, nil
}

type storedToken struct {
	ID       string
	Owner    string
	TokenURI string
	Metadata string
}

type storedListing struct {
	TokenID string
	Price   storedCoin
}

type storedSale struct {
	TotalSupply  uint64
	TokensMinted uint64
	StartTime    uint64
	EndTime      uint64
	Price        storedCoin
	Disabled     bool
}

func newStoredSale(s *sales.Sale) (storedSale, error) {
	if s.StartTime < 0 || s.EndTime < 0 {
		return storedSale{}, fmt.Errorf("state: sale window before epoch")
	}
	return storedSale{
		TotalSupply:  s.TotalSupply,
		TokensMinted: s.TokensMinted,
		StartTime:    uint64(s.StartTime),
		EndTime:      uint64(s.EndTime),
		Price:        newStoredCoin(s.Price),
		Disabled:     s.Disabled,
	}, nil
}

func (s storedSale) toSale() (*sales.Sale, error) {
	price, err := s.Price.toCoin()
	if err != nil {
		return nil, err
	}
	return &sales.Sale{
		TotalSupply:  s.TotalSupply,
		TokensMinted: s.TokensMinted,
		StartTime:    int64(s.StartTime),
		EndTime:      int64(s.EndTime),
		Price:        price,
		Disabled:     s.Disabled,
	}, nil
}

// --- token ledger ---

func (m *Manager) TokenGet(id string) (*types.Token, bool, error) {
	var stored storedToken
	ok, err := m.KVGet(m.layout.tokenKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &types.Token{ID: stored.ID, Owner: stored.Owner, TokenURI: stored.TokenURI, Metadata: stored.Metadata}, true, nil
}

func (m *Manager) TokenPut(token *types.Token) error {
	if token == nil {
		return fmt.Errorf("state: nil token")
	}
	return m.KVPut(m.layout.tokenKey(token.ID), storedToken{
		ID:       token.ID,
		Owner:    token.Owner,
		TokenURI: token.TokenURI,
		Metadata: token.Metadata,
	})
}

func (m *Manager) TokenCount() (uint64, error) {
	var count uint64
	if _, err := m.KVGet(m.layout.TokenCount, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (m *Manager) TokenSetCount(count uint64) error {
	return m.KVPut(m.layout.TokenCount, count)
}

// --- listing registry ---

func (m *Manager) ListingGet(id string) (*listing.Listing, bool, error) {
	var stored storedListing
	ok, err := m.KVGet(m.layout.listingKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	price, err := stored.Price.toCoin()
	if err != nil {
		return nil, false, err
	}
	return &listing.Listing{TokenID: stored.TokenID, Price: price}, true, nil
}

func (m *Manager) ListingPut(l *listing.Listing) error {
	if l == nil {
		return fmt.Errorf("state: nil listing")
	}
	return m.KVPut(m.layout.listingKey(l.TokenID), storedListing{TokenID: l.TokenID, Price: newStoredCoin(l.Price)})
}

func (m *Manager) ListingDelete(id string) error {
	return m.KVDelete(m.layout.listingKey(id))
}

// ListingCursor walks listings with token ids strictly greater than
// startAfter in ascending order.
func (m *Manager) ListingCursor(startAfter string) listing.Cursor {
	var start []byte
	if startAfter != "" {
		start = append(m.layout.listingKey(startAfter), 0x00)
	}
	return &listingCursor{it: m.db.NewIterator(m.layout.ListingPrefix, start)}
}

type listingCursor struct {
	it      storage.Iterator
	current *listing.Listing
	err     error
}

func (c *listingCursor) Next() bool {
	if c.err != nil {
		return false
	}
	if !c.it.Next() {
		c.err = c.it.Error()
		return false
	}
	var stored storedListing
	if err := rlpDecode(c.it.Value(), &stored); err != nil {
		c.err = err
		return false
	}
	price, err := stored.Price.toCoin()
	if err != nil {
		c.err = err
		return false
	}
	c.current = &listing.Listing{TokenID: stored.TokenID, Price: price}
	return true
}

func (c *listingCursor) Listing() *listing.Listing { return c.current.Clone() }
func (c *listingCursor) Error() error              { return c.err }
func (c *listingCursor) Release()                  { c.it.Release() }

// --- primary sales ---

// SalesGet loads the full sale history in creation order.
func (m *Manager) SalesGet() ([]*sales.Sale, error) {
	var stored []storedSale
	if _, err := m.KVGet(m.layout.Sales, &stored); err != nil {
		return nil, err
	}
	out := make([]*sales.Sale, 0, len(stored))
	for _, record := range stored {
		sale, err := record.toSale()
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
	}
	return out, nil
}

// SalesPut replaces the sale history as one record.
func (m *Manager) SalesPut(history []*sales.Sale) error {
	stored := make([]storedSale, 0, len(history))
	for _, sale := range history {
		if sale == nil {
			return fmt.Errorf("state: nil sale")
		}
		record, err := newStoredSale(sale)
		if err != nil {
			return err
		}
		stored = append(stored, record)
	}
	return m.KVPut(m.layout.Sales, stored)
}

// --- ownership gate ---

func (m *Manager) OwnerGet() (string, bool, error) {
	var owner string
	ok, err := m.KVGet(m.layout.Owner, &owner)
	if err != nil || !ok {
		return "", false, err
	}
	return owner, owner != "", nil
}

func (m *Manager) OwnerPut(owner string) error {
	return m.KVPut(m.layout.Owner, owner)
}

// --- allow gate ---

func (m *Manager) AllowEnabled() (bool, error) {
	var enabled bool
	if _, err := m.KVGet(m.layout.AllowEnabled, &enabled); err != nil {
		return false, err
	}
	return enabled, nil
}

func (m *Manager) AllowSetEnabled(enabled bool) error {
	return m.KVPut(m.layout.AllowEnabled, enabled)
}

func (m *Manager) AllowHas(addr string) (bool, error) {
	if addr == "" {
		return false, nil
	}
	return m.KVHas(m.layout.allowKey(addr))
}

func (m *Manager) AllowAdd(addr string) error {
	return m.flag(m.layout.allowKey(addr), true)
}

func (m *Manager) AllowRemove(addr string) error {
	return m.flag(m.layout.allowKey(addr), false)
}

func (m *Manager) AllowList() ([]string, error) {
	it := m.db.NewIterator(m.layout.AllowPrefix, nil)
	defer it.Release()
	out := make([]string, 0)
	for it.Next() {
		out = append(out, string(it.Key()[len(m.layout.AllowPrefix):]))
	}
	return out, it.Error()
}

// --- lock gate ---

func (m *Manager) LockGet(tokenID string) (bool, error) {
	return m.KVHas(m.layout.lockedKey(tokenID))
}

func (m *Manager) LockPut(tokenID string, locked bool) error {
	return m.flag(m.layout.lockedKey(tokenID), locked)
}

func (m *Manager) RedeemedGet(tokenID string) (bool, error) {
	return m.KVHas(m.layout.redeemedKey(tokenID))
}

func (m *Manager) RedeemedPut(tokenID string) error {
	return m.flag(m.layout.redeemedKey(tokenID), true)
}

// --- bank ---

func (m *Manager) BalanceGet(addr, denom string) (*uint256.Int, error) {
	var stored *big.Int
	ok, err := m.KVGet(m.layout.balanceKey(addr, denom), &stored)
	if err != nil {
		return nil, err
	}
	if !ok || stored == nil {
		return new(uint256.Int), nil
	}
	amount, overflow := uint256.FromBig(stored)
	if overflow {
		return nil, fmt.Errorf("state: stored balance overflows")
	}
	return amount, nil
}

func (m *Manager) BalancePut(addr, denom string, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return m.KVDelete(m.layout.balanceKey(addr, denom))
	}
	return m.KVPut(m.layout.balanceKey(addr, denom), amount.ToBig())
}

// --- chain metadata ---

// ChainHeight returns the number of committed calls.
func (m *Manager) ChainHeight() (uint64, error) {
	var height uint64
	if _, err := m.KVGet(m.layout.ChainHeight, &height); err != nil {
		return 0, err
	}
	return height, nil
}

func (m *Manager) SetChainHeight(height uint64) error {
	return m.KVPut(m.layout.ChainHeight, height)
}
