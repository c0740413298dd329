// Command dbinit is the operator-facing counterpart to cmd/hedgedaemon: it
// owns schema setup, lock-contention recovery, and the read-only monitoring
// API, grounded on original_source's scripts/ one-off DB tools plus the
// servers/app.py + servers/reader.py process (a separate monitoring host
// from the trading daemon, per original_source's RE-5 note).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/bifrosttrader/hedge-daemon/pkg/appconfig"
	"github.com/bifrosttrader/hedge-daemon/pkg/pgsink"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	case "release-locks":
		runReleaseLocks(os.Args[2:])
	case "serve-api":
		runServeAPI(os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: dbinit <subcommand> [options]")
	fmt.Println("\nSubcommands:")
	fmt.Println("  init           create/verify schema (status_current, operations, daemon_control, ...)")
	fmt.Println("  stats          print row counts for the daemon's tables")
	fmt.Println("  release-locks  terminate backends holding locks on daemon_heartbeat/daemon_run_status")
	fmt.Println("  serve-api      run the read-only monitoring HTTP API (GET /status, GET /operations)")
	fmt.Println("\nAll subcommands take -config <path> (default config/config.yaml).")
}

func loadPGConfig(fs *flag.FlagSet, args []string) pgsink.Config {
	configFile := fs.String("config", "config/config.yaml", "Configuration file path")
	fs.Parse(args)

	cfg, err := appconfig.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("[dbinit] failed to load config: %v", err)
	}
	if cfg.Status.Sink != "postgres" {
		log.Fatalf("[dbinit] status.sink is %q, expected \"postgres\"", cfg.Status.Sink)
	}
	return pgsink.Config{
		Host:     cfg.Status.Postgres.Host,
		Port:     cfg.Status.Postgres.Port,
		Database: cfg.Status.Postgres.Database,
		User:     cfg.Status.Postgres.User,
		Password: cfg.Status.Postgres.Password,
	}
}

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	pgCfg := loadPGConfig(fs, args)

	ctx := context.Background()
	sink, err := pgsink.Connect(ctx, pgCfg)
	if err != nil {
		log.Fatalf("[dbinit] init failed: %v", err)
	}
	defer sink.Close()
	fmt.Println("schema ready")
}

func runReleaseLocks(args []string) {
	fs := flag.NewFlagSet("release-locks", flag.ExitOnError)
	pgCfg := loadPGConfig(fs, args)

	n := pgsink.ReleasePGLocksForTables(context.Background(), pgCfg, pgsink.DaemonLockTables)
	fmt.Printf("terminated %d backend(s)\n", n)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	pgCfg := loadPGConfig(fs, args)

	ctx := context.Background()
	sink, err := pgsink.Connect(ctx, pgCfg)
	if err != nil {
		log.Fatalf("[dbinit] stats failed: %v", err)
	}
	defer sink.Close()

	snap, err := sink.ReadStatusCurrent(ctx)
	if err != nil {
		fmt.Printf("status_current: unavailable (%v)\n", err)
	} else {
		fmt.Printf("status_current: daemon_state=%s trading_state=%s symbol=%s net_delta=%.1f\n",
			snap.DaemonState, snap.TradingState, snap.Symbol, snap.NetDelta)
	}

	ops, err := sink.ReadOperations(ctx, nil, nil, nil, 1000)
	if err != nil {
		fmt.Printf("operations: unavailable (%v)\n", err)
	} else {
		fmt.Printf("operations: %d row(s) in the most recent 1000\n", len(ops))
	}

	accounts, err := sink.ReadAccounts(ctx)
	if err != nil {
		fmt.Printf("accounts: unavailable (%v)\n", err)
	} else {
		fmt.Printf("accounts: %d synced account(s)\n", len(accounts))
	}
}

func runServeAPI(args []string) {
	fs := flag.NewFlagSet("serve-api", flag.ExitOnError)
	addr := fs.String("addr", ":8766", "bind address for the monitoring API")
	pgCfg := loadPGConfig(fs, args)

	ctx := context.Background()
	sink, err := pgsink.Connect(ctx, pgCfg)
	if err != nil {
		log.Fatalf("[dbinit] serve-api failed: %v", err)
	}
	defer sink.Close()

	srv := newMonitorServer(*addr, sink)
	log.Printf("[dbinit] monitoring API listening on %s (read-only, separate from the trading daemon)", *addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("[dbinit] monitoring API stopped: %v", err)
	}
}
