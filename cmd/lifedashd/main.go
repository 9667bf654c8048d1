package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/modoterra/lifedash/internal/buildinfo"
	"github.com/modoterra/lifedash/pkg/config"
	"github.com/modoterra/lifedash/pkg/daemon"
	"github.com/modoterra/lifedash/pkg/logging"
	"github.com/modoterra/lifedash/pkg/transport/grpchealth"
	"github.com/modoterra/lifedash/pkg/transport/uds"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "lifedashd",
	Short:        "lifedash daemon: owns the store and the AI upstream",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		logger := logging.New(os.Stderr, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := run(ctx, cfg, logger); err != nil {
			logger.Error("daemon error", "err", err)
			return err
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "lifedashd %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", config.DefaultPath(), "path to lifedash.yaml")
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves and validates the configuration.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Resolve(path)
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config %s: %w", path, errors.Join(errs...))
	}
	return cfg, nil
}

// run wires the daemon from cfg and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	for _, dir := range []string{cfg.DataDir, filepath.Dir(cfg.Socket)} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	st, err := daemon.OpenStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	pub := daemon.OpenPublisher(cfg.Events)
	defer pub.Close()

	as, err := daemon.NewAssist(cfg.Assist, logger)
	if err != nil {
		return err
	}

	d := daemon.New(daemon.Options{
		Socket:    cfg.Socket,
		Store:     st,
		Publisher: pub,
		Assist:    as,
		Logger:    logger,
	})
	defer d.Shutdown()

	var health *grpchealth.Server
	if cfg.GRPC.Addr != "" {
		health = grpchealth.New(cfg.GRPC.Addr, logger)
		if err := health.Listen(); err != nil {
			return err
		}
		defer health.Stop()
		go func() {
			if err := health.Serve(); err != nil {
				logger.Error("grpc health server", "err", err)
			}
		}()
	}

	poll := daemon.NewPollLoop(d, cfg.HealthInterval, logger)
	poll.OnChange(func(h uds.HealthEvent) {
		if health != nil {
			health.SetServing(h.OK)
		}
		if h.OK {
			daemon.NotifyStatus(logger, "store %s healthy", h.Store)
		} else {
			daemon.NotifyStatus(logger, "store %s unhealthy: %s", h.Store, h.Error)
		}
	})
	go poll.Run(ctx)
	go daemon.RunWatchdog(ctx, func() bool { return d.Health().OK }, logger)

	go func() {
		select {
		case <-d.Server().Ready():
			if health != nil {
				health.SetServing(d.Health().OK)
			}
			daemon.NotifyReady(logger)
		case <-ctx.Done():
		}
	}()
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		daemon.NotifyStopping(logger)
	}()

	logger.Info("starting lifedashd",
		"version", buildinfo.Version,
		"store", cfg.Store.Driver,
		"assist", cfg.Assist.Provider,
		"kafka", len(cfg.Events.Brokers) > 0,
	)
	return d.Run(ctx)
}
