package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/crmkit/genwatch/internal/common/config"
	"github.com/crmkit/genwatch/internal/state"
	"github.com/crmkit/genwatch/internal/state/broadcast"
	"github.com/crmkit/genwatch/internal/watcher"
	"github.com/crmkit/genwatch/pkg/logger"
	"github.com/crmkit/genwatch/pkg/metrics"
	"github.com/crmkit/genwatch/pkg/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	address    string
	trigger    bool

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of genwatch",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("genwatch version %s\n", version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:   "genwatch",
		Short: "Live watcher for a bulk CRM generation job",
		Long: `genwatch attaches one watcher tab to a server-side batch-generation job,
keeps its view current over a resilient duplex connection and mirrors every
state change to sibling tabs sharing the broadcast scope.`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", "genwatch.yaml", "path to configuration file")
	rootCmd.Flags().StringVar(&address, "address", "", "tab address override (session identifier is read from its query)")
	rootCmd.Flags().BoolVar(&trigger, "trigger", false, "start the generation job after attaching")
	rootCmd.AddCommand(versionCmd)
}

func run() {
	cfg, cfgPath, err := config.LoadConfig[config.WatcherConfig](configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration from %s: %v", cfgPath, err)
	}
	if address != "" {
		cfg.Address = address
	}
	if cfg.Address == "" {
		cfg.Address = "http://localhost:3000/"
	}

	zlogger, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() {
		_ = zlogger.Sync()
	}()

	zlogger.Info("starting genwatch",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath))

	m := metrics.New(cfg.Metrics)

	transport, err := broadcast.NewTransport(zlogger, cfg.Broadcast)
	if err != nil {
		zlogger.Fatal("failed to create broadcast transport", zap.Error(err))
	}
	defer func() {
		_ = transport.Close()
	}()

	store, err := state.New(zlogger, transport, m)
	if err != nil {
		zlogger.Fatal("failed to create state store", zap.Error(err))
	}

	w, err := watcher.New(zlogger, cfg, store, m)
	if err != nil {
		zlogger.Fatal("failed to create watcher", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		zlogger.Fatal("failed to start watcher", zap.Error(err))
	}
	zlogger.Info("watcher attached",
		zap.String("session", w.SessionID()),
		zap.String("address", w.Address()))

	if trigger {
		go func() {
			if err := w.Trigger(ctx); err != nil {
				zlogger.Error("trigger failed", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	w.Close()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
