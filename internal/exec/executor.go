package exec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"dca-vault/internal/dca"
	"dca-vault/internal/router"
	"dca-vault/internal/router/rest"
	"dca-vault/internal/state"

	"go.uber.org/zap"
)

const ackPrefix = "swapack:"

// Executor submits swap legs to the router with retries. A correlation id that
// was acknowledged once is never sent again, across restarts when a store is set.
type Executor struct {
	router  router.Router
	store   state.Store
	log     *zap.Logger
	backoff time.Duration

	mu    sync.Mutex
	cache map[string]router.Ack
}

func New(r router.Router, store state.Store, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		router:  r,
		store:   store,
		log:     log,
		backoff: 200 * time.Millisecond,
		cache:   make(map[string]router.Ack),
	}
}

// Submit wires the executor into the host.
func (e *Executor) Submit(ctx context.Context, sender string, req dca.SwapRequest) error {
	_, err := e.SubmitRequest(ctx, router.NewRequest(sender, req))
	return err
}

func (e *Executor) SubmitRequest(ctx context.Context, req router.Request) (router.Ack, error) {
	if req.CorrelationID == "" {
		return e.submitWithRetry(ctx, req)
	}
	cacheKey := ackPrefix + req.CorrelationID
	e.mu.Lock()
	if ack, ok := e.cache[cacheKey]; ok {
		e.mu.Unlock()
		return ack, nil
	}
	e.mu.Unlock()
	if e.store != nil {
		if raw, ok, err := e.store.Get(ctx, cacheKey); err != nil {
			return router.Ack{}, err
		} else if ok {
			var ack router.Ack
			if err := json.Unmarshal([]byte(raw), &ack); err != nil {
				return router.Ack{}, fmt.Errorf("decode %s: %w", cacheKey, err)
			}
			e.mu.Lock()
			e.cache[cacheKey] = ack
			e.mu.Unlock()
			return ack, nil
		}
	}
	ack, err := e.submitWithRetry(ctx, req)
	if err != nil {
		return router.Ack{}, err
	}
	if e.store != nil {
		payload, _ := json.Marshal(ack)
		if err := e.store.Set(ctx, cacheKey, string(payload)); err != nil {
			e.log.Warn("failed to persist swap ack", zap.String("correlation_id", req.CorrelationID), zap.Error(err))
		}
	}
	e.mu.Lock()
	e.cache[cacheKey] = ack
	e.mu.Unlock()
	e.log.Info("swap leg submitted", zap.String("correlation_id", req.CorrelationID), zap.String("ack", ack.ID))
	return ack, nil
}

func (e *Executor) submitWithRetry(ctx context.Context, req router.Request) (router.Ack, error) {
	var ack router.Ack
	err := e.retry(ctx, func() error {
		var err error
		ack, err = e.router.Submit(ctx, req)
		return err
	})
	if err != nil {
		return router.Ack{}, err
	}
	if ack.ID == "" {
		return router.Ack{}, errors.New("empty swap ack id")
	}
	return ack, nil
}

func (e *Executor) retry(ctx context.Context, fn func() error) error {
	backoff := e.backoff
	for attempt := 0; attempt < 5; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt == 4 {
			return fmt.Errorf("retry failed: %w", err)
		}
		e.log.Debug("swap submit retry", zap.Int("attempt", attempt+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *rest.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}
