package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dca-vault/internal/coin"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SimulatedConfig drives the in-process router. Rates are keyed by
// "<input denom>><output denom>" and give output units per input unit.
type SimulatedConfig struct {
	Rates   map[string]decimal.Decimal
	Failing map[string]string
	Impact  decimal.Decimal
	Latency time.Duration
	Buffer  int
}

func PairKey(in, out string) string {
	return in + ">" + out
}

// Simulated executes swaps against a fixed rate table and reports outcomes
// after Latency. Resubmitting a correlation id returns the first ack.
type Simulated struct {
	cfg SimulatedConfig
	log *zap.Logger

	mu       sync.Mutex
	acks     map[string]Ack
	outcomes chan Outcome
	done     chan struct{}
	closed   bool
}

func NewSimulated(cfg SimulatedConfig, log *zap.Logger) *Simulated {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	return &Simulated{
		cfg:      cfg,
		log:      log,
		acks:     make(map[string]Ack),
		outcomes: make(chan Outcome, cfg.Buffer),
		done:     make(chan struct{}),
	}
}

func (s *Simulated) Submit(ctx context.Context, req Request) (Ack, error) {
	if err := ctx.Err(); err != nil {
		return Ack{}, err
	}
	digest, err := Digest(req)
	if err != nil {
		return Ack{}, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Ack{}, errors.New("simulated router closed")
	}
	if ack, ok := s.acks[req.CorrelationID]; ok {
		s.mu.Unlock()
		return ack, nil
	}
	ack := Ack{ID: fmt.Sprintf("sim-%d", len(s.acks)+1), Digest: digest}
	s.acks[req.CorrelationID] = ack
	s.mu.Unlock()

	outcome := s.execute(req)
	if s.cfg.Latency <= 0 {
		s.deliver(outcome)
	} else {
		time.AfterFunc(s.cfg.Latency, func() { s.deliver(outcome) })
	}
	return ack, nil
}

func (s *Simulated) execute(req Request) Outcome {
	fail := func(reason string) Outcome {
		return Outcome{CorrelationID: req.CorrelationID, Error: reason}
	}
	if reason, ok := s.cfg.Failing[req.OutputDenom]; ok {
		return fail(reason)
	}
	offer, err := req.Offer()
	if err != nil {
		return fail(err.Error())
	}
	rate, ok := s.cfg.Rates[PairKey(offer.Denom, req.OutputDenom)]
	if !ok {
		return fail("no route for " + PairKey(offer.Denom, req.OutputDenom))
	}
	tolerance, err := decimal.NewFromString(req.Slippage.Twap.SlippagePercentage)
	if err != nil {
		return fail("bad slippage: " + err.Error())
	}
	if s.cfg.Impact.GreaterThan(tolerance) {
		return fail(fmt.Sprintf("slippage %s exceeds max %s", s.cfg.Impact, tolerance))
	}
	quoted := decimal.NewFromBigInt(offer.Amount.BigInt(), 0).Mul(rate)
	filled := quoted.Mul(decimal.NewFromInt(1).Sub(s.cfg.Impact)).Floor()
	if !filled.IsPositive() {
		return fail("output rounds to zero")
	}
	out := coin.New(req.OutputDenom, sdkmath.NewIntFromBigInt(filled.BigInt()))
	return Outcome{CorrelationID: req.CorrelationID, Events: []Event{SwapEvent(offer, out)}}
}

func (s *Simulated) deliver(o Outcome) {
	select {
	case s.outcomes <- o:
	case <-s.done:
		s.log.Debug("simulated outcome dropped after close", zap.String("correlation_id", o.CorrelationID))
	}
}

func (s *Simulated) Run(ctx context.Context, handler func(Outcome)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case o := <-s.outcomes:
			if handler != nil {
				handler(o)
			}
		}
	}
}

func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}
