package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	mkterrors "nftmarket/core/errors"
	"nftmarket/core/events"
	"nftmarket/core/state"
	"nftmarket/core/types"
	"nftmarket/native/bank"
	"nftmarket/native/common"
	"nftmarket/native/marketplace"
	"nftmarket/observability"
	telemetry "nftmarket/observability/otel"
	"nftmarket/storage"
)

// Pausable module names.
const (
	ModuleSettlement = "settlement"
	ModuleSales      = "sales"
)

var (
	ErrAlreadyInstantiated = errors.New("host: contract already instantiated")
	ErrNotInstantiated     = errors.New("host: contract not instantiated")
	errNilContract         = errors.New("host: contract required")
)

// HostOptions configures optional collaborators. Zero values select wall
// clock time, no pauses, the default logger and a fresh event stream.
type HostOptions struct {
	ChainID      string
	Clock        func() time.Time
	Pauses       common.PauseView
	Stream       *events.Stream
	Logger       *slog.Logger
	AllowMigrate bool
}

// Host executes contract calls one at a time. Each call runs against a
// buffered view of state: attached funds are escrowed into the contract,
// the contract runs, its payment instructions are executed, and the view is
// committed in a single batch. Any failure discards the view.
type Host struct {
	mu       sync.Mutex
	state    *state.Manager
	contract *marketplace.Contract
	chainID  string
	clock    func() time.Time
	pauses   common.PauseView
	stream   *events.Stream
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.HostMetrics
	height   uint64
}

// Result is the outcome of a committed call.
type Result struct {
	Height   uint64          `json:"height"`
	Response *types.Response `json:"response"`
}

// NewHost opens the contract state stored in db.
func NewHost(db storage.Database, contract *marketplace.Contract, opts HostOptions) (*Host, error) {
	if contract == nil {
		return nil, errNilContract
	}
	manager := state.NewManager(db, state.NewLayout(contract.Address()))
	if err := manager.EnsureStateVersion(opts.AllowMigrate); err != nil {
		return nil, err
	}
	height, err := manager.ChainHeight()
	if err != nil {
		return nil, fmt.Errorf("load height: %w", err)
	}
	h := &Host{
		state:    manager,
		contract: contract,
		chainID:  opts.ChainID,
		clock:    opts.Clock,
		pauses:   opts.Pauses,
		stream:   opts.Stream,
		logger:   opts.Logger,
		tracer:   telemetry.Tracer(),
		metrics:  observability.Host(),
		height:   height,
	}
	if h.clock == nil {
		h.clock = time.Now
	}
	if h.stream == nil {
		h.stream = events.NewStream()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.metrics.SetHeight(height)
	return h, nil
}

// Stream exposes committed events.
func (h *Host) Stream() *events.Stream { return h.stream }

// Contract returns the hosted contract.
func (h *Host) Contract() *marketplace.Contract { return h.contract }

// Height returns the height of the last committed call.
func (h *Host) Height() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.height
}

func (h *Host) env(height uint64) types.Env {
	return types.Env{
		ChainID:         h.chainID,
		BlockHeight:     height,
		BlockTime:       h.clock().Unix(),
		ContractAddress: h.contract.Address(),
	}
}

// Instantiate seeds the contract and credits the initial balances in one
// commit. It fails once an owner has been recorded.
func (h *Host) Instantiate(ctx context.Context, sender string, msg marketplace.InstantiateMsg, balances map[string]types.Coins) (*Result, error) {
	return h.run(ctx, "instantiate", sender, nil, func(tx *state.Tx, env types.Env, emitter events.Emitter) (*types.Response, error) {
		if _, ok, err := tx.OwnerGet(); err != nil {
			return nil, err
		} else if ok {
			return nil, ErrAlreadyInstantiated
		}
		ledger := bank.NewEngine()
		ledger.SetState(tx)
		ledger.SetEmitter(emitter)
		for addr, coins := range balances {
			for _, coin := range coins {
				if err := ledger.Credit(addr, coin); err != nil {
					return nil, fmt.Errorf("balance %s: %w", addr, err)
				}
			}
		}
		if err := tx.SetStateVersion(state.StateVersion); err != nil {
			return nil, err
		}
		return h.contract.Instantiate(tx.Manager, env, types.MessageInfo{Sender: sender}, msg, emitter)
	})
}

// Execute runs msg for sender with the attached funds.
func (h *Host) Execute(ctx context.Context, sender string, funds types.Coins, msg marketplace.ExecuteMsg) (*Result, error) {
	method, err := msg.Method()
	if err != nil {
		return nil, err
	}
	if err := common.Guard(h.pauses, moduleFor(method)); err != nil {
		return nil, err
	}
	if err := funds.Validate(); err != nil {
		return nil, err
	}
	return h.run(ctx, method, sender, funds, func(tx *state.Tx, env types.Env, emitter events.Emitter) (*types.Response, error) {
		if _, ok, err := tx.OwnerGet(); err != nil {
			return nil, err
		} else if !ok {
			return nil, ErrNotInstantiated
		}
		ledger := bank.NewEngine()
		ledger.SetState(tx)
		ledger.SetEmitter(emitter)
		if err := ledger.Escrow(sender, h.contract.Address(), funds); err != nil {
			return nil, err
		}
		resp, err := h.contract.Execute(tx.Manager, env, types.MessageInfo{Sender: sender, Funds: funds.Clone()}, msg, emitter)
		if err != nil {
			return nil, err
		}
		if err := ledger.Execute(h.contract.Address(), resp.Messages); err != nil {
			return nil, fmt.Errorf("payments: %w", err)
		}
		return resp, nil
	})
}

type callFunc func(tx *state.Tx, env types.Env, emitter events.Emitter) (*types.Response, error)

func (h *Host) run(ctx context.Context, method, sender string, funds types.Coins, call callFunc) (*Result, error) {
	_, span := h.tracer.Start(ctx, "host."+method, trace.WithAttributes(
		attribute.String("market.method", method),
		attribute.String("market.sender", sender),
		attribute.String("market.funds", funds.String()),
	))
	defer span.End()
	started := time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()

	height := h.height + 1
	tx := h.state.Begin()
	buffer := events.NewBuffer()
	resp, err := call(tx, h.env(height), buffer)
	if err == nil {
		err = tx.SetChainHeight(height)
	}
	if err != nil {
		tx.Discard()
		kind := mkterrors.KindOf(err)
		h.metrics.RecordCall(method, kind.String(), time.Since(started))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.Debug("call rejected",
			slog.String("method", method),
			slog.String("sender", sender),
			slog.String("reason", kind.String()),
			slog.Any("error", err))
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		h.metrics.RecordCall(method, "commit_failed", time.Since(started))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.Error("commit failed", slog.String("method", method), slog.Any("error", err))
		return nil, fmt.Errorf("commit: %w", err)
	}
	h.height = height

	payloads := buffer.Payloads()
	resp.Events = payloads
	h.stream.Publish(height, payloads)
	for _, evt := range payloads {
		h.metrics.RecordEvent(evt.Type)
		recordActivity(evt)
	}
	h.metrics.SetHeight(height)
	h.metrics.RecordCall(method, "ok", time.Since(started))
	span.SetAttributes(attribute.Int64("market.height", int64(height)))
	h.logger.Info("call committed",
		slog.String("method", method),
		slog.String("sender", sender),
		slog.Uint64("height", height),
		slog.Int("events", len(payloads)))
	return &Result{Height: height, Response: resp}, nil
}

// Query answers msg against committed state at the current clock.
func (h *Host) Query(ctx context.Context, msg marketplace.QueryMsg) (any, error) {
	method, err := msg.Method()
	if err != nil {
		return nil, err
	}
	_, span := h.tracer.Start(ctx, "host.query."+method)
	defer span.End()

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.contract.Query(h.state, h.env(h.height), msg)
}

// moduleFor names the pausable module a method belongs to. Administrative
// methods belong to none so operators can still act while trading is paused.
func moduleFor(method string) string {
	switch method {
	case "list", "delist", "buy":
		return ModuleSettlement
	case "buy_item":
		return ModuleSales
	default:
		return ""
	}
}

func recordActivity(evt *types.Event) {
	switch evt.Type {
	case events.TypeBankTransfer:
		observability.Events().RecordPayment(evt.Attributes[events.AttrDenom])
	case events.TypeTokenSold:
		observability.Events().RecordSale("secondary")
	case events.TypeItemPurchased:
		observability.Events().RecordSale("primary")
	}
}
