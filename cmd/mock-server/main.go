package main

import (
	"fmt"
	"log"
	"os"

	"github.com/crmkit/genwatch/internal/common/config"
	"github.com/crmkit/genwatch/internal/mockgen"
	"github.com/crmkit/genwatch/pkg/logger"
	"github.com/crmkit/genwatch/pkg/metrics"
	"github.com/crmkit/genwatch/pkg/version"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mock-server",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mock-server version %s\n", version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:   "mock-server",
		Short: "Mock generation backend for genwatch",
		Long: `mock-server emulates the batch-generation backend: the trigger and
status endpoints plus the duplex connection the watcher attaches to, backed
by a synthetic generation job.`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", "mock-server.yaml", "path to configuration file")
	rootCmd.AddCommand(versionCmd)
}

func run() {
	cfg, cfgPath, err := config.LoadConfig[config.MockServerConfig](configPath)
	if err != nil {
		// The mock server is useful without a config file; fall back to
		// defaults.
		cfg = &config.MockServerConfig{}
		cfg.SetDefaults()
		log.Printf("no configuration at %s, using defaults", cfgPath)
	}

	zlogger, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() {
		_ = zlogger.Sync()
	}()

	m := metrics.New(cfg.Metrics)
	srv := mockgen.NewServer(zlogger, cfg, m)

	router := gin.Default()
	srv.RegisterRoutes(router)

	zlogger.Info("starting mock generation backend",
		zap.String("version", version.Get()),
		zap.Int("port", cfg.Port),
		zap.Int("companies", cfg.Companies),
		zap.Int("contacts", cfg.Contacts))

	if err := router.Run(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		zlogger.Fatal("server exited", zap.Error(err))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
