package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	RouterSimulated = "simulated"
	RouterRemote    = "remote"
)

type Config struct {
	Log      LoggingConfig  `yaml:"log"`
	State    StateConfig    `yaml:"state"`
	Contract ContractConfig `yaml:"contract"`
	Strategy StrategyConfig `yaml:"strategy"`
	Keeper   KeeperConfig   `yaml:"keeper"`
	Router   RouterConfig   `yaml:"router"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Telegram TelegramConfig `yaml:"telegram"`
	History  HistoryConfig  `yaml:"history"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	// Format is json or console.
	Format string `yaml:"format"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// ContractConfig names the principals of the local deployment.
type ContractConfig struct {
	Address  string `yaml:"address"`
	Owner    string `yaml:"owner"`
	Executor string `yaml:"executor"`
	// FundOwner mints the deposit to the owner on first run so the strategy
	// can be instantiated against an empty ledger.
	FundOwner bool `yaml:"fund_owner"`
}

type DestinationConfig struct {
	Denom  string `yaml:"denom"`
	Weight string `yaml:"weight"`
}

// StrategyConfig is the instantiate message. Amounts are decimal integer
// strings so they are not limited to 64 bits.
type StrategyConfig struct {
	Recipient            string              `yaml:"recipient"`
	StrategyType         string              `yaml:"strategy_type"`
	SourceDenom          string              `yaml:"source_denom"`
	Destinations         []DestinationConfig `yaml:"destinations"`
	AmountPerTrade       string              `yaml:"amount_per_trade"`
	NumTrades            uint64              `yaml:"num_trades"`
	SwapInterval         time.Duration       `yaml:"swap_interval"`
	MaxSlippage          decimal.Decimal     `yaml:"max_slippage"`
	QuoteWindow          time.Duration       `yaml:"quote_window"`
	RouterContract       string              `yaml:"router_contract"`
	PlatformFee          string              `yaml:"platform_fee"`
	PlatformFeeRecipient string              `yaml:"platform_fee_recipient"`
	AssignRemainder      bool                `yaml:"assign_remainder"`
}

type KeeperConfig struct {
	Enabled         *bool         `yaml:"enabled"`
	TickInterval    time.Duration `yaml:"tick_interval"`
	ResubmitOnStart bool          `yaml:"resubmit_on_start"`
}

func (k KeeperConfig) EnabledValue() bool {
	return k.Enabled == nil || *k.Enabled
}

type RouterConfig struct {
	Mode           string                `yaml:"mode"`
	BaseURL        string                `yaml:"base_url"`
	Timeout        time.Duration         `yaml:"timeout"`
	WSURL          string                `yaml:"ws_url"`
	ReconnectDelay time.Duration         `yaml:"reconnect_delay"`
	PingInterval   time.Duration         `yaml:"ping_interval"`
	SigningKey     string                `yaml:"signing_key"`
	Simulated      SimulatedRouterConfig `yaml:"simulated"`
}

type SimulatedRouterConfig struct {
	// Rates maps "<in>><out>" pairs to output units per input unit.
	Rates   map[string]decimal.Decimal `yaml:"rates"`
	Failing map[string]string          `yaml:"failing"`
	Impact  decimal.Decimal            `yaml:"impact"`
	Latency time.Duration              `yaml:"latency"`
}

type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

func (m MetricsConfig) EnabledValue() bool {
	return m.Enabled == nil || *m.Enabled
}

type TelegramConfig struct {
	Enabled                bool          `yaml:"enabled"`
	Token                  string        `yaml:"token"`
	ChatID                 string        `yaml:"chat_id"`
	OperatorEnabled        bool          `yaml:"operator_enabled"`
	OperatorPollInterval   time.Duration `yaml:"operator_poll_interval"`
	OperatorAllowedUserIDs []int64       `yaml:"operator_allowed_user_ids"`
}

type HistoryConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("DCA_TELEGRAM_TOKEN")); v != "" {
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("DCA_HISTORY_DSN")); v != "" {
		cfg.History.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("DCA_ROUTER_KEY")); v != "" {
		cfg.Router.SigningKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/dca-vault.db"
	}
	if cfg.Contract.Address == "" {
		cfg.Contract.Address = "dca1vault"
	}
	if cfg.Contract.Executor == "" {
		cfg.Contract.Executor = cfg.Contract.Owner
	}
	if cfg.Strategy.Recipient == "" {
		cfg.Strategy.Recipient = cfg.Contract.Owner
	}
	if cfg.Strategy.StrategyType == "" {
		cfg.Strategy.StrategyType = "linear"
	}
	if cfg.Strategy.QuoteWindow == 0 {
		cfg.Strategy.QuoteWindow = 30 * time.Second
	}
	if cfg.Strategy.PlatformFee == "" {
		cfg.Strategy.PlatformFee = "0"
	}
	if cfg.Keeper.TickInterval == 0 {
		cfg.Keeper.TickInterval = 5 * time.Second
	}
	if cfg.Router.Mode == "" {
		cfg.Router.Mode = RouterSimulated
	}
	if cfg.Router.Timeout == 0 {
		cfg.Router.Timeout = 10 * time.Second
	}
	if cfg.Router.ReconnectDelay == 0 {
		cfg.Router.ReconnectDelay = 3 * time.Second
	}
	if cfg.Router.PingInterval == 0 {
		cfg.Router.PingInterval = 30 * time.Second
	}
	if cfg.Router.WSURL == "" && cfg.Router.BaseURL != "" {
		cfg.Router.WSURL = "ws" + strings.TrimPrefix(strings.TrimRight(cfg.Router.BaseURL, "/"), "http") + "/ws"
	}
	if cfg.Metrics.Enabled == nil {
		enabled := true
		cfg.Metrics.Enabled = &enabled
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = "127.0.0.1:9464"
	}
	if cfg.Telegram.OperatorPollInterval == 0 {
		cfg.Telegram.OperatorPollInterval = 3 * time.Second
	}
	if cfg.History.Schema == "" {
		cfg.History.Schema = "public"
	}
	if cfg.History.QueueSize == 0 {
		cfg.History.QueueSize = 256
	}
}

func validate(cfg *Config) error {
	if cfg.Contract.Owner == "" {
		return errors.New("contract.owner is required")
	}
	for field, addr := range map[string]string{
		"contract.address":  cfg.Contract.Address,
		"contract.owner":    cfg.Contract.Owner,
		"contract.executor": cfg.Contract.Executor,
	} {
		if strings.Contains(addr, ":") {
			return fmt.Errorf("%s must not contain ':'", field)
		}
	}
	if cfg.Strategy.SourceDenom == "" {
		return errors.New("strategy.source_denom is required")
	}
	if len(cfg.Strategy.Destinations) == 0 {
		return errors.New("strategy.destinations is required")
	}
	if cfg.Strategy.AmountPerTrade == "" {
		return errors.New("strategy.amount_per_trade is required")
	}
	if cfg.Strategy.NumTrades == 0 {
		return errors.New("strategy.num_trades must be > 0")
	}
	if cfg.Strategy.SwapInterval <= 0 {
		return errors.New("strategy.swap_interval must be > 0")
	}
	if cfg.Strategy.RouterContract == "" {
		return errors.New("strategy.router_contract is required")
	}
	if cfg.Keeper.TickInterval < 0 {
		return errors.New("keeper.tick_interval must be >= 0")
	}
	switch cfg.Router.Mode {
	case RouterSimulated:
	case RouterRemote:
		if cfg.Router.BaseURL == "" {
			return errors.New("router.base_url is required in remote mode")
		}
	default:
		return fmt.Errorf("router.mode must be %s or %s", RouterSimulated, RouterRemote)
	}
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.DSN) == "" {
		return errors.New("history.dsn is required when history is enabled")
	}
	return nil
}
