package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"dca-vault/internal/alerts"
	"dca-vault/internal/config"
	"dca-vault/internal/dca"
	"dca-vault/internal/exec"
	"dca-vault/internal/history"
	"dca-vault/internal/host"
	"dca-vault/internal/metrics"
	"dca-vault/internal/router"
	"dca-vault/internal/router/rest"
	"dca-vault/internal/router/ws"
	"dca-vault/internal/state"
	"dca-vault/internal/state/sqlite"

	"go.uber.org/zap"
)

type App struct {
	cfg      *config.Config
	log      *zap.Logger
	store    state.Store
	chain    *host.Chain
	executor *exec.Executor
	source   router.Source
	metrics  *metrics.Metrics
	prom     *metrics.Prometheus
	alerts   *alerts.Telegram
	history  *history.Writer
	closers  []func() error
	now      func() time.Time

	operatorWarned bool
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}
	r, source, err := newRouter(cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	hist, err := history.New(cfg.History, log)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("history: %w", err)
	}
	a := newApp(cfg, log, store, r, source, hist)
	a.closers = append(a.closers, hist.Close)
	return a, nil
}

// newApp wires the contract host around an open store and router.
func newApp(cfg *config.Config, log *zap.Logger, store state.Store, r router.Router, source router.Source, hist *history.Writer) *App {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{
		cfg:     cfg,
		log:     log,
		store:   store,
		source:  source,
		metrics: metrics.NewNoop(),
		alerts:  alerts.NewTelegram(cfg.Telegram, log),
		history: hist,
		now:     func() time.Time { return time.Now().UTC() },
	}
	if cfg.Metrics.EnabledValue() {
		a.prom = metrics.NewPrometheus()
		a.metrics = a.prom.Metrics
	}
	if closer, ok := source.(interface{ Close() error }); ok {
		a.closers = append(a.closers, closer.Close)
	}
	a.executor = exec.New(r, store, log)
	a.chain = host.NewChain(store, cfg.Contract.Address, a.executor, log)
	a.chain.SetObserver(&observer{log: log, metrics: a.metrics, alerts: a.alerts, history: a.history})
	return a
}

func newRouter(cfg *config.Config, log *zap.Logger) (router.Router, router.Source, error) {
	rc := cfg.Router
	switch rc.Mode {
	case config.RouterRemote:
		var signer *router.Signer
		if rc.SigningKey != "" {
			var err error
			if signer, err = router.NewSigner(rc.SigningKey); err != nil {
				return nil, nil, fmt.Errorf("router signing key: %w", err)
			}
			log.Info("router requests signed", zap.String("signer", signer.Address().Hex()))
		}
		restClient := rest.New(rc.BaseURL, rc.Timeout, log)
		var stream *ws.Client
		if rc.WSURL != "" {
			stream = ws.New(rc.WSURL, rc.ReconnectDelay, rc.PingInterval, log)
		}
		remote := router.NewRemote(restClient, stream, signer, cfg.Contract.Address, log)
		return remote, remote, nil
	default:
		sim := router.NewSimulated(router.SimulatedConfig{
			Rates:   rc.Simulated.Rates,
			Failing: rc.Simulated.Failing,
			Impact:  rc.Simulated.Impact,
			Latency: rc.Simulated.Latency,
		}, log)
		return sim, sim, nil
	}
}

func (a *App) Chain() *host.Chain {
	return a.chain
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, err)
		}
		a.store = nil
	}
	return errors.Join(errs...)
}

func (a *App) Run(ctx context.Context) error {
	defer a.Close()
	a.history.Start(ctx)
	if err := a.bootstrap(ctx); err != nil {
		return err
	}
	a.startMetricsServer(ctx)
	a.startOperator(ctx)

	streamErr := make(chan error, 1)
	go func() {
		streamErr <- a.source.Run(ctx, func(o router.Outcome) { a.deliverOutcome(ctx, o) })
	}()

	if a.cfg.Keeper.ResubmitOnStart {
		n, err := a.chain.ResubmitPending(ctx, a.now())
		if err != nil {
			a.log.Warn("resubmit pending legs failed", zap.Error(err))
		} else if n > 0 {
			a.log.Info("resubmitted pending legs", zap.Int("legs", n))
		}
	}

	var tick <-chan time.Time
	if a.cfg.Keeper.EnabledValue() {
		ticker := time.NewTicker(a.cfg.Keeper.TickInterval)
		defer ticker.Stop()
		tick = ticker.C
	} else {
		a.log.Info("keeper disabled, waiting for router outcomes only")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-streamErr:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("router outcome stream stopped: %v", err)
		case <-tick:
			if err := a.tick(ctx); err != nil {
				a.metrics.KeeperErrors.Inc()
				a.log.Warn("keeper tick failed", zap.Error(err))
			}
		}
	}
}

// bootstrap instantiates the strategy from config on first run.
func (a *App) bootstrap(ctx context.Context) error {
	cfg, err := a.chain.Config(ctx)
	if err == nil {
		a.log.Info("strategy loaded",
			zap.String("source", cfg.SourceDenom),
			zap.Int("destinations", len(cfg.Destinations)),
			zap.Uint64("num_trades", cfg.NumTrades),
		)
		return a.refreshGauge(ctx)
	}
	if !errors.Is(err, dca.ErrNotInstantiated) {
		return err
	}
	msg, funds, err := InstantiateMsg(a.cfg.Strategy, a.cfg.Contract.Executor)
	if err != nil {
		return err
	}
	owner := a.cfg.Contract.Owner
	if a.cfg.Contract.FundOwner {
		if err := a.chain.Mint(ctx, owner, funds); err != nil {
			return fmt.Errorf("fund owner: %w", err)
		}
	}
	resp, err := a.chain.Instantiate(ctx, owner, funds, msg, a.now())
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}
	next, _ := resp.Attribute("next_swap")
	a.log.Info("strategy instantiated",
		zap.String("owner", owner),
		zap.String("deposit", funds.String()),
		zap.String("next_swap", next),
	)
	return a.refreshGauge(ctx)
}

// tick starts a cycle when one is due. Dispatch is a no-op otherwise.
func (a *App) tick(ctx context.Context) error {
	now := a.now()
	up, err := a.chain.UpcomingSwap(ctx, now)
	if err != nil {
		return err
	}
	if !up.CanExecute {
		return nil
	}
	resp, err := a.chain.PerformDca(ctx, a.cfg.Contract.Executor, now)
	if err != nil {
		var notDue *dca.NotDueYetError
		if errors.As(err, &notDue) || errors.Is(err, dca.ErrCycleInFlight) {
			a.log.Debug("swap cycle skipped", zap.Error(err))
			return nil
		}
		return err
	}
	a.log.Info("swap cycle dispatched",
		zap.Uint64("cycle", resp.Cycle),
		zap.Int("legs", len(resp.SwapCalls())),
	)
	return a.refreshGauge(ctx)
}

func (a *App) deliverOutcome(ctx context.Context, o router.Outcome) {
	result := router.ToResult(o)
	if !result.Succeeded() {
		a.log.Info("swap leg failed", zap.String("correlation_id", result.CorrelationID), zap.String("reason", result.Reason))
	}
	if _, err := a.chain.DeliverSwapResult(ctx, result, a.now()); err != nil {
		a.log.Error("swap result delivery failed", zap.String("correlation_id", result.CorrelationID), zap.Error(err))
	}
}

func (a *App) refreshGauge(ctx context.Context) error {
	cfg, err := a.chain.Config(ctx)
	if err != nil {
		return err
	}
	st, err := a.chain.State(ctx)
	if err != nil {
		return err
	}
	remaining := float64(0)
	if !st.Cancelled && st.TradesExecuted < cfg.NumTrades {
		remaining = float64(cfg.NumTrades - st.TradesExecuted)
	}
	a.metrics.TradesRemaining.Set(remaining)
	return nil
}

func (a *App) startMetricsServer(ctx context.Context) {
	if a.prom == nil {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.prom.Handler())
	srv := &http.Server{Addr: a.cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		a.log.Info("metrics listening", zap.String("addr", a.cfg.Metrics.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}
