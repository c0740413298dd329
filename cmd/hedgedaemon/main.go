package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bifrosttrader/hedge-daemon/pkg/appconfig"
	"github.com/bifrosttrader/hedge-daemon/pkg/daemon"
	"github.com/bifrosttrader/hedge-daemon/pkg/httpapi"
	"github.com/bifrosttrader/hedge-daemon/pkg/ibclient"
	"github.com/bifrosttrader/hedge-daemon/pkg/metrics"
	"github.com/bifrosttrader/hedge-daemon/pkg/pgsink"
)

const (
	appName    = "hedge-daemon"
	appVersion = "0.1.0"
)

var (
	configFile = flag.String("config", "config/config.yaml", "Configuration file path")
	debug      = flag.Bool("debug", false, "Verbose logging")
	paper      = flag.Bool("paper", false, "Force paper trading mode (overrides config)")
	stable     = flag.Bool("stable", false, "Use the in-process paper broker instead of NATS, for a dependency-free run")
	version    = flag.Bool("version", false, "Print version and exit")
	help       = flag.Bool("help", false, "Print help and exit")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", appName, appVersion)
		os.Exit(0)
	}
	if *help {
		printHelp()
		os.Exit(0)
	}

	log.Printf("[main] loading configuration from: %s", *configFile)
	cfg, err := appconfig.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	if *paper {
		cfg.Gates.Guard.Risk.PaperTrade = true
	}
	if *debug {
		log.Printf("[main] config: symbol=%s order_type=%s paper_trade=%v status_sink=%s",
			cfg.Symbol, cfg.Order.OrderType, cfg.Gates.Guard.Risk.PaperTrade, cfg.Status.Sink)
	}

	var broker ibclient.BrokerClient
	if *stable || cfg.Gates.Guard.Risk.PaperTrade {
		log.Println("[main] using in-process paper broker")
		broker = ibclient.NewPaperBrokerClient()
	} else {
		natsURL := fmt.Sprintf("nats://%s:4222", cfg.IB.Host)
		log.Printf("[main] using NATS broker client at %s", natsURL)
		broker = ibclient.NewNATSBrokerClient(natsURL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sink *pgsink.Sink
	if cfg.Status.Sink == "postgres" {
		pgCfg := pgsink.Config{
			Host:     cfg.Status.Postgres.Host,
			Port:     cfg.Status.Postgres.Port,
			Database: cfg.Status.Postgres.Database,
			User:     cfg.Status.Postgres.User,
			Password: cfg.Status.Postgres.Password,
		}
		s, err := pgsink.Connect(ctx, pgCfg)
		if err != nil {
			log.Printf("[main] postgres sink unavailable, running without DB persistence/control: %v", err)
		} else {
			sink = s
			defer sink.Close()
		}
	}

	d := daemon.New(cfg, *configFile, broker, sink)

	srv := httpapi.New(fmt.Sprintf(":%d", cfg.StatusServer.Port), d, sink)
	srv.Handle("/metrics", metrics.Handler())
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Printf("[main] http server stopped: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("[main] received signal: %v, shutting down", sig)
		d.Stop()
		cancel()
	}()

	log.Printf("[main] %s v%s starting (symbol=%s)", appName, appVersion, cfg.Symbol)
	if err := d.Run(ctx); err != nil {
		log.Fatalf("[main] daemon run failed: %v", err)
	}
	log.Println("[main] daemon stopped")
}

func printHelp() {
	fmt.Printf("Usage: %s [OPTIONS]\n\n", appName)
	fmt.Println("Delta-hedging daemon: watches option positions against an underlying")
	fmt.Println("and sends offsetting stock orders to keep net delta in band.")
	fmt.Println("\nOptions:")
	flag.PrintDefaults()
	fmt.Println("\nExamples:")
	fmt.Printf("  %s --config config/config.yaml\n", appName)
	fmt.Printf("  %s --config config/config.yaml --stable   # no NATS/Postgres required\n", appName)
}
