package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dca-vault/internal/coin"
	"dca-vault/internal/dca"
	"dca-vault/internal/state"

	sdkmath "cosmossdk.io/math"
	"go.uber.org/zap"
)

// Submitter hands a swap leg to the router. Outcomes come back later through
// Chain.DeliverSwapResult.
type Submitter interface {
	Submit(ctx context.Context, sender string, req dca.SwapRequest) error
}

// Observer is told about committed contract activity.
type Observer interface {
	CycleStarted(ctx context.Context, cycle uint64, legs int)
	LegResolved(ctx context.Context, result dca.SwapResult, stray bool)
	CycleFinalized(ctx context.Context, report dca.CycleReport)
	SubmitFailed(ctx context.Context, req dca.SwapRequest, err error)
}

type NopObserver struct{}

func (NopObserver) CycleStarted(context.Context, uint64, int) {}

func (NopObserver) LegResolved(context.Context, dca.SwapResult, bool) {}

func (NopObserver) CycleFinalized(context.Context, dca.CycleReport) {}

func (NopObserver) SubmitFailed(context.Context, dca.SwapRequest, error) {}

// Chain serializes calls into the contract. Each call runs over a transaction
// on the store and commits only if the call and its bank messages succeed.
type Chain struct {
	store     state.Store
	address   string
	submitter Submitter
	log       *zap.Logger

	mu sync.Mutex

	obsMu    sync.RWMutex
	observer Observer
}

func NewChain(store state.Store, address string, submitter Submitter, log *zap.Logger) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chain{
		store:     store,
		address:   address,
		submitter: submitter,
		log:       log,
		observer:  NopObserver{},
	}
}

func (c *Chain) Address() string {
	return c.address
}

func (c *Chain) SetObserver(o Observer) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	if o == nil {
		o = NopObserver{}
	}
	c.observer = o
}

func (c *Chain) Instantiate(ctx context.Context, sender string, funds coin.Coins, msg dca.InstantiateMsg, now time.Time) (dca.Response, error) {
	return c.execute(ctx, now, func(contract *dca.Contract, ledger *Ledger) (dca.Response, error) {
		if err := ledger.Send(ctx, sender, c.address, funds); err != nil {
			return dca.Response{}, err
		}
		return contract.Instantiate(ctx, sender, funds, msg, now)
	})
}

// PerformDca opens a cycle and submits its legs after the state is committed.
// A leg the submitter rejects is resolved as failed right away.
func (c *Chain) PerformDca(ctx context.Context, caller string, now time.Time) (dca.Response, error) {
	resp, err := c.execute(ctx, now, func(contract *dca.Contract, _ *Ledger) (dca.Response, error) {
		return contract.PerformDca(ctx, caller, now)
	})
	if err != nil {
		return resp, err
	}
	calls := resp.SwapCalls()
	c.obs().CycleStarted(ctx, resp.Cycle, len(calls))
	if resp.Report != nil {
		c.obs().CycleFinalized(ctx, *resp.Report)
	}
	for _, call := range calls {
		c.submit(ctx, call.Request, now)
	}
	return resp, nil
}

// ResubmitPending hands the open cycle's unresolved legs to the submitter
// again. Submitters dedupe by correlation id.
func (c *Chain) ResubmitPending(ctx context.Context, now time.Time) (int, error) {
	var reqs []dca.SwapRequest
	err := c.query(ctx, func(contract *dca.Contract, _ *Ledger) error {
		var err error
		reqs, err = contract.PendingRequests(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	for _, req := range reqs {
		c.submit(ctx, req, now)
	}
	return len(reqs), nil
}

func (c *Chain) submit(ctx context.Context, req dca.SwapRequest, now time.Time) {
	if c.submitter == nil {
		return
	}
	err := c.submitter.Submit(ctx, c.address, req)
	if err == nil {
		return
	}
	c.log.Warn("swap submit failed", zap.String("correlation_id", req.CorrelationID), zap.Error(err))
	c.obs().SubmitFailed(ctx, req, err)
	if _, derr := c.DeliverSwapResult(ctx, dca.Failed(req.CorrelationID, "submit: "+err.Error()), now); derr != nil {
		c.log.Error("failed to resolve rejected swap leg", zap.String("correlation_id", req.CorrelationID), zap.Error(derr))
	}
}

// DeliverSwapResult settles the leg's escrow and hands the result to the
// contract. A successful leg credits its output to the contract account.
func (c *Chain) DeliverSwapResult(ctx context.Context, result dca.SwapResult, now time.Time) (dca.Response, error) {
	resp, err := c.execute(ctx, now, func(contract *dca.Contract, ledger *Ledger) (dca.Response, error) {
		checked, err := contract.CheckSwapResult(ctx, result)
		if err != nil {
			return dca.Response{}, err
		}
		result = checked
		if result.Succeeded() {
			if _, ok, err := ledger.Settle(ctx, result.CorrelationID, coin.Coins{*result.TokenIn}); err != nil {
				return dca.Response{}, err
			} else if ok {
				if err := ledger.Mint(ctx, c.address, coin.Coins{*result.TokenOut}); err != nil {
					return dca.Response{}, err
				}
			}
		} else if _, _, err := ledger.Refund(ctx, result.CorrelationID); err != nil {
			return dca.Response{}, err
		}
		return contract.OnSwapResult(ctx, result, now)
	})
	if err != nil {
		return resp, err
	}
	c.obs().LegResolved(ctx, result, resp.Stray)
	if resp.Report != nil {
		c.obs().CycleFinalized(ctx, *resp.Report)
	}
	return resp, nil
}

func (c *Chain) Pause(ctx context.Context, caller string) (dca.Response, error) {
	return c.execute(ctx, time.Time{}, func(contract *dca.Contract, _ *Ledger) (dca.Response, error) {
		return contract.Pause(ctx, caller)
	})
}

func (c *Chain) Resume(ctx context.Context, caller string, now time.Time) (dca.Response, error) {
	return c.execute(ctx, now, func(contract *dca.Contract, _ *Ledger) (dca.Response, error) {
		return contract.Resume(ctx, caller, now)
	})
}

func (c *Chain) Cancel(ctx context.Context, caller string) (dca.Response, error) {
	return c.execute(ctx, time.Time{}, func(contract *dca.Contract, _ *Ledger) (dca.Response, error) {
		return contract.Cancel(ctx, caller)
	})
}

// Mint credits an account directly, for funding owners on a local ledger.
func (c *Chain) Mint(ctx context.Context, addr string, coins coin.Coins) error {
	_, err := c.execute(ctx, time.Time{}, func(_ *dca.Contract, ledger *Ledger) (dca.Response, error) {
		return dca.Response{}, ledger.Mint(ctx, addr, coins)
	})
	return err
}

func (c *Chain) Config(ctx context.Context) (cfg dca.Config, err error) {
	err = c.query(ctx, func(contract *dca.Contract, _ *Ledger) error {
		cfg, err = contract.Config(ctx)
		return err
	})
	return cfg, err
}

func (c *Chain) State(ctx context.Context) (st dca.State, err error) {
	err = c.query(ctx, func(contract *dca.Contract, _ *Ledger) error {
		st, err = contract.State(ctx)
		return err
	})
	return st, err
}

func (c *Chain) UpcomingSwap(ctx context.Context, now time.Time) (up dca.UpcomingSwap, err error) {
	err = c.query(ctx, func(contract *dca.Contract, _ *Ledger) error {
		up, err = contract.UpcomingSwap(ctx, now)
		return err
	})
	return up, err
}

func (c *Chain) AllUpcomingSwaps(ctx context.Context, now time.Time, limit int) (ups []dca.UpcomingSwap, err error) {
	err = c.query(ctx, func(contract *dca.Contract, _ *Ledger) error {
		ups, err = contract.AllUpcomingSwaps(ctx, now, limit)
		return err
	})
	return ups, err
}

func (c *Chain) SourceFunds(ctx context.Context) (funds coin.Coin, err error) {
	err = c.query(ctx, func(contract *dca.Contract, _ *Ledger) error {
		funds, err = contract.SourceFunds(ctx)
		return err
	})
	return funds, err
}

func (c *Chain) AllFunds(ctx context.Context) (funds coin.Coins, err error) {
	err = c.query(ctx, func(contract *dca.Contract, _ *Ledger) error {
		funds, err = contract.AllFunds(ctx)
		return err
	})
	return funds, err
}

func (c *Chain) Balance(ctx context.Context, addr, denom string) (amount sdkmath.Int, err error) {
	err = c.query(ctx, func(_ *dca.Contract, ledger *Ledger) error {
		amount, err = ledger.Balance(ctx, addr, denom)
		return err
	})
	return amount, err
}

func (c *Chain) Balances(ctx context.Context, addr string) (coins coin.Coins, err error) {
	err = c.query(ctx, func(_ *dca.Contract, ledger *Ledger) error {
		coins, err = ledger.Balances(ctx, addr)
		return err
	})
	return coins, err
}

func (c *Chain) Escrows(ctx context.Context) (escrows []Escrow, err error) {
	err = c.query(ctx, func(_ *dca.Contract, ledger *Ledger) error {
		escrows, err = ledger.Escrows(ctx)
		return err
	})
	return escrows, err
}

func (c *Chain) execute(ctx context.Context, now time.Time, fn func(*dca.Contract, *Ledger) (dca.Response, error)) (dca.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx := state.Begin(c.store)
	defer tx.Discard()
	ledger := NewLedger(tx)
	contract := dca.New(tx, ledger, c.address, c.log)

	resp, err := fn(contract, ledger)
	if err != nil {
		return dca.Response{}, err
	}
	if err := c.apply(ctx, ledger, resp, now); err != nil {
		return dca.Response{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return dca.Response{}, fmt.Errorf("commit: %w", err)
	}
	return resp, nil
}

func (c *Chain) apply(ctx context.Context, ledger *Ledger, resp dca.Response, now time.Time) error {
	for _, msg := range resp.Messages {
		switch {
		case msg.Send != nil:
			if err := ledger.Send(ctx, c.address, msg.Send.To, msg.Send.Amount); err != nil {
				return fmt.Errorf("bank send to %s: %w", msg.Send.To, err)
			}
		case msg.Swap != nil:
			esc := Escrow{
				CorrelationID: msg.Swap.Request.CorrelationID,
				Owner:         c.address,
				Router:        msg.Swap.Request.Router,
				Funds:         msg.Swap.Funds,
				LockedAt:      now,
			}
			if err := ledger.Lock(ctx, esc); err != nil {
				return fmt.Errorf("escrow %s: %w", esc.CorrelationID, err)
			}
		default:
			return errors.New("empty message")
		}
	}
	return nil
}

// query runs fn over a transaction that is always discarded.
func (c *Chain) query(ctx context.Context, fn func(*dca.Contract, *Ledger) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx := state.Begin(c.store)
	defer tx.Discard()
	ledger := NewLedger(tx)
	return fn(dca.New(tx, ledger, c.address, c.log), ledger)
}

func (c *Chain) obs() Observer {
	c.obsMu.RLock()
	defer c.obsMu.RUnlock()
	return c.observer
}
