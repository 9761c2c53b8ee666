package sales

import (
	"errors"
	"time"

	mkterrors "nftmarket/core/errors"
	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/common"
)

var (
	errNilState     = errors.New("sales scheduler: state not configured")
	errNilOwnerGate = errors.New("sales scheduler: ownership gate not configured")
	errNilTokens    = errors.New("sales scheduler: token ledger not configured")
)

type engineState interface {
	SalesGet() ([]*Sale, error)
	SalesPut(sales []*Sale) error
}

type ownerGate interface {
	Owner() (string, error)
	Authorize(caller string) error
}

type tokenLedger interface {
	Mint(req types.MintRequest) (*types.Token, error)
}

// Scheduler manages the append-only history of primary sales. Each call
// loads the full history, mutates it in memory and writes it back once.
type Scheduler struct {
	state    engineState
	owner    ownerGate
	tokens   tokenLedger
	emitter  events.Emitter
	nowFn    func() int64
	contract string
}

// NewScheduler constructs a scheduler using wall-clock time.
func NewScheduler() *Scheduler {
	return &Scheduler{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

func (s *Scheduler) SetState(state engineState) { s.state = state }

func (s *Scheduler) SetOwnerGate(owner ownerGate) { s.owner = owner }

func (s *Scheduler) SetTokenLedger(tokens tokenLedger) { s.tokens = tokens }

func (s *Scheduler) SetContract(addr string) { s.contract = addr }

func (s *Scheduler) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

// SetNowFunc overrides the block clock. Passing nil restores wall-clock time.
func (s *Scheduler) SetNowFunc(now func() int64) {
	if now == nil {
		s.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	s.nowFn = now
}

func (s *Scheduler) now() int64 {
	if s.nowFn == nil {
		return time.Now().Unix()
	}
	return s.nowFn()
}

func (s *Scheduler) ready() error {
	switch {
	case s == nil || s.state == nil:
		return errNilState
	case s.owner == nil:
		return errNilOwnerGate
	case s.tokens == nil:
		return errNilTokens
	}
	return nil
}

// AddSale appends a new sale window. Only the administrator may schedule
// sales and windows may not overlap any sale that is still enabled.
func (s *Scheduler) AddSale(caller string, totalSupply uint64, start, end int64, price types.Coin) (*Sale, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := s.owner.Authorize(caller); err != nil {
		return nil, err
	}
	now := s.now()
	if start < now {
		return nil, mkterrors.InvalidPrimarySaleParam(mkterrors.FieldStartTime)
	}
	if end <= start {
		return nil, mkterrors.InvalidPrimarySaleParam(mkterrors.FieldEndTime)
	}
	if err := price.Validate(); err != nil {
		return nil, errors.Join(mkterrors.InvalidPrimarySaleParam(mkterrors.FieldPrice), err)
	}
	history, err := s.state.SalesGet()
	if err != nil {
		return nil, err
	}
	for _, existing := range history {
		if !existing.Disabled && existing.overlaps(start, end) {
			return nil, mkterrors.InvalidPrimarySaleParam(mkterrors.FieldOverlap)
		}
	}
	sale := &Sale{
		TotalSupply: totalSupply,
		StartTime:   start,
		EndTime:     end,
		Price:       price.Clone(),
	}
	history = append(history, sale)
	if err := s.state.SalesPut(history); err != nil {
		return nil, err
	}
	s.emitter.Emit(events.SaleAdded{By: caller, Contract: s.contract, SaleObject: sale.Object(), Price: sale.Price})
	return sale.Clone(), nil
}

// HaltSale disables the first sale that is enabled and has not ended.
func (s *Scheduler) HaltSale(caller string) (*Sale, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := s.owner.Authorize(caller); err != nil {
		return nil, err
	}
	history, err := s.state.SalesGet()
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, sale := range history {
		if !sale.haltable(now) {
			continue
		}
		sale.Disabled = true
		if err := s.state.SalesPut(history); err != nil {
			return nil, err
		}
		s.emitter.Emit(events.SaleHalted{By: caller, Contract: s.contract, SaleObject: sale.Object()})
		return sale.Clone(), nil
	}
	return nil, mkterrors.ErrNoOngoingPrimarySale
}

// BuyItem mints a token from the first purchasable sale and pays the
// administrator. The minted token goes to req.Owner, or the buyer when unset.
func (s *Scheduler) BuyItem(req types.MintRequest, funds types.Coins, buyer string) (*Purchase, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	history, err := s.state.SalesGet()
	if err != nil {
		return nil, err
	}
	now := s.now()
	var sale *Sale
	for _, candidate := range history {
		if candidate.purchasable(now) {
			sale = candidate
			break
		}
	}
	if sale == nil {
		return nil, mkterrors.ErrNoOngoingPrimarySale
	}
	fund, refund, err := common.SinglePayment(funds, sale.Price)
	if err != nil {
		return nil, err
	}
	admin, err := s.owner.Owner()
	if err != nil {
		return nil, err
	}
	if req.Owner == "" {
		req.Owner = buyer
	}
	token, err := s.tokens.Mint(req)
	if err != nil {
		if errors.Is(err, mkterrors.ErrClaimed) {
			return nil, &mkterrors.TokenModuleError{Err: err}
		}
		return nil, err
	}
	sale.TokensMinted++
	if sale.TotalSupply > 0 && sale.TokensMinted == sale.TotalSupply {
		sale.Disabled = true
	}
	if err := s.state.SalesPut(history); err != nil {
		return nil, err
	}

	purchase := &Purchase{
		Token:    token,
		Sale:     sale.Clone(),
		Fund:     fund,
		Refund:   types.Coin{Denom: sale.Price.Denom, Amount: refund},
		Messages: common.PaymentMessages(admin, sale.Price, buyer, refund),
	}
	s.emitter.Emit(events.ItemPurchased{
		By:         buyer,
		Contract:   s.contract,
		TokenID:    token.ID,
		SaleObject: sale.Object(),
		Price:      sale.Price,
		Refund:     purchase.Refund,
	})
	return purchase, nil
}

// ActiveSale returns the first enabled sale whose window contains now.
func (s *Scheduler) ActiveSale(now int64) (*Sale, bool, error) {
	if s == nil || s.state == nil {
		return nil, false, errNilState
	}
	history, err := s.state.SalesGet()
	if err != nil {
		return nil, false, err
	}
	for _, sale := range history {
		if sale.Contains(now) {
			return sale.Clone(), true, nil
		}
	}
	return nil, false, nil
}

// Active evaluates ActiveSale at the block clock.
func (s *Scheduler) Active() (*Sale, bool, error) {
	return s.ActiveSale(s.now())
}

// AllSales returns the full history in creation order.
func (s *Scheduler) AllSales() ([]*Sale, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	history, err := s.state.SalesGet()
	if err != nil {
		return nil, err
	}
	out := make([]*Sale, len(history))
	for i, sale := range history {
		out[i] = sale.Clone()
	}
	return out, nil
}
