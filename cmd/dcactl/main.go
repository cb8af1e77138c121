package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"dca-vault/internal/config"
	"dca-vault/internal/dca"
	"dca-vault/internal/host"
	"dca-vault/internal/logging"
	"dca-vault/internal/state/sqlite"

	"go.uber.org/zap"
)

const usage = `usage: dcactl [-config path] [-as address] [-limit n] <command>

commands:
  config     print the strategy config
  state      print the schedule state
  upcoming   list remaining swap times, at most -limit entries
  funds      print tracked balances held by the contract
  escrows    list swap legs still holding funds
  pause      pause the schedule
  resume     resume the schedule
  cancel     refund every tracked balance to the owner
`

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	caller := flag.String("as", "", "caller address for admin commands (defaults to contract.owner)")
	limit := flag.Int("limit", dca.DefaultUpcomingLimit, "maximum entries listed by upcoming")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := config.LoadEnv(".env"); err != nil {
		fatal(err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	log := logging.New(config.LoggingConfig{Level: "warn", Format: "console"})
	defer func() { _ = log.Sync() }()

	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		fatal(err)
	}
	defer store.Close()
	chain := host.NewChain(store, cfg.Contract.Address, nil, log)

	as := strings.TrimSpace(*caller)
	if as == "" {
		as = cfg.Contract.Owner
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	out, err := run(ctx, chain, flag.Arg(0), as, *limit, time.Now().UTC())
	if err != nil {
		log.Debug("command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		fatal(err)
	}
	printJSON(out)
}

func run(ctx context.Context, chain *host.Chain, cmd, caller string, limit int, now time.Time) (any, error) {
	switch cmd {
	case "config":
		return chain.Config(ctx)
	case "state":
		return chain.State(ctx)
	case "upcoming":
		return chain.AllUpcomingSwaps(ctx, now, limit)
	case "funds":
		funds, err := chain.AllFunds(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{"funds": funds.String()}, nil
	case "escrows":
		return chain.Escrows(ctx)
	case "pause":
		resp, err := chain.Pause(ctx, caller)
		return resp.Attributes, err
	case "resume":
		resp, err := chain.Resume(ctx, caller, now)
		return resp.Attributes, err
	case "cancel":
		resp, err := chain.Cancel(ctx, caller)
		return resp.Attributes, err
	default:
		return nil, errors.New("unknown command: " + cmd)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
