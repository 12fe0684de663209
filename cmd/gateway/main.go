package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fincore/gateway/internal/gateway"
	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/logger"
	"github.com/fincore/gateway/pkg/observability"
)

var version = "0.1.0"

// errFailed is returned when a command ran but the operation it reported
// ended with an error status. The result has already been printed.
var errFailed = errors.New("operation failed")

// globalFlags are shared by every command that touches the store.
type globalFlags struct {
	settingsFile string
	metricsFile  string
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "gateway",
		Short: "Fincore gateway - financial back-office integration",
		Long: `The gateway connects back-office systems (banks, ERPs, CRMs, project
management tools and message brokers) through a uniform connector contract.
Every operation is recorded in the operation log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.settingsFile, "config", "c", "", "Path to gateway settings YAML (GATEWAY_* env vars override it)")
	root.PersistentFlags().StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file after the command")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Gateway v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(
		newCatalogCommand(),
		newImportCommand(flags),
		newConnectorsCommand(flags),
		newJobsCommand(flags),
		newStatusCommand(flags),
		newTestCommand(flags),
		newSyncCommand(flags),
		newSendCommand(flags),
		newLogsCommand(flags),
		newBankingCommand(flags),
		newERPCommand(flags),
		newCRMCommand(flags),
		newPMCommand(flags),
	)
	return root
}

// withService loads settings, sets up logging and tracing, opens the
// service and runs fn. Everything is released before it returns.
func withService(ctx context.Context, flags *globalFlags, fn func(ctx context.Context, svc *gateway.Service) error) (err error) {
	settings, err := config.LoadSettings(flags.settingsFile)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if err := logger.Init(settings.Log); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	exporter := settings.Tracing.Exporter
	if !settings.Tracing.Enabled {
		exporter = "none"
	}
	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    settings.Tracing.ServiceName,
		ServiceVersion: version,
		Exporter:       exporter,
	})
	if err != nil {
		return err
	}
	defer func() {
		if serr := shutdown(context.WithoutCancel(ctx)); serr != nil {
			logger.Warn("failed to shut down tracing", zap.Error(serr))
		}
	}()

	svc, closeFn, err := gateway.Open(ctx, settings)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeFn(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()

	err = fn(ctx, svc)

	if flags.metricsFile != "" {
		if merr := prometheus.WriteToTextfile(flags.metricsFile, prometheus.DefaultGatherer); merr != nil {
			logger.Warn("failed to write metrics", zap.String("path", flags.metricsFile), zap.Error(merr))
		}
	}
	return err
}
