package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/modoterra/lifedash/internal/buildinfo"
	"github.com/modoterra/lifedash/pkg/config"
	"github.com/modoterra/lifedash/pkg/config/presets"
	"github.com/modoterra/lifedash/pkg/core"
	"github.com/modoterra/lifedash/pkg/daemon/service"
	"github.com/modoterra/lifedash/pkg/transport/uds"
	tuimodel "github.com/modoterra/lifedash/pkg/tui/model"
)

var (
	socketFlag string
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "lifedash",
	Short:        "Personal dashboard in the terminal",
	Long:         "lifedash is a TUI + daemon for notes, tasks, a calendar, cash flow, subscriptions and AI rephrasing.",
	SilenceUsage: true,
	RunE:         runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "daemon socket path (overrides the config)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "path to lifedash.yaml")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serviceCmd)
}

// settings resolves the config file, .env and environment, then the
// --socket flag.
func settings() (*config.Config, error) {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return nil, err
	}
	if socketFlag != "" {
		cfg.Socket = socketFlag
	}
	return cfg, nil
}

// --- Root: TUI ---

func runTUI(_ *cobra.Command, _ []string) error {
	cfg, err := settings()
	if err != nil {
		return err
	}
	ensureDaemon(cfg.Socket)
	app := tuimodel.New(cfg.Socket)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func ensureDaemon(socketPath string) {
	if _, err := os.Stat(socketPath); err == nil {
		return
	}
	cmd := exec.Command("lifedashd", "--config", configPath)
	if err := cmd.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: could not start lifedashd:", err)
		return
	}
	go func() { _ = cmd.Wait() }()
	for i := 0; i < 30; i++ {
		if _, err := os.Stat(socketPath); err == nil {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Fprintln(os.Stderr, "warning: daemon socket did not appear, continuing anyway")
}

func dialDaemon() (*uds.Client, error) {
	cfg, err := settings()
	if err != nil {
		return nil, err
	}
	client, err := uds.Dial(cfg.Socket)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon at %s: %w", cfg.Socket, err)
	}
	return client, nil
}

// call dials the daemon, runs one request and decodes the reply into T.
func call[T any](method string, data any) (T, error) {
	var zero T
	client, err := dialDaemon()
	if err != nil {
		return zero, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return uds.Call[T](ctx, client, method, data)
}

// mutate runs a write and turns a rejected mutation into an error.
func mutate(out io.Writer, method string, data any, done string) error {
	m, err := call[core.Mutation](method, data)
	if err != nil {
		return err
	}
	if err := m.Err(); err != nil {
		return err
	}
	if m.ID != "" {
		fmt.Fprintf(out, "%s ✓ %s\n", done, m.ID)
	} else {
		fmt.Fprintf(out, "%s ✓\n", done)
	}
	return nil
}

// --- Ping ---

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check if daemon is running",
	RunE: func(cmd *cobra.Command, _ []string) error {
		pong, err := call[uds.PingResponse](uds.MethodPing, nil)
		if err != nil {
			return err
		}
		if pong.Pong {
			fmt.Fprintln(cmd.OutOrStdout(), "pong ✓")
		}
		return nil
	},
}

// --- Version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "lifedash %s (%s) built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	},
}

// --- Daemon ---

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start daemon in foreground (for debugging)",
	Long:  "Normally the TUI auto-spawns the daemon. Use this to run it manually.",
	RunE: func(_ *cobra.Command, _ []string) error {
		cmd := exec.Command("lifedashd", "--config", configPath)
		if socketFlag != "" {
			cmd.Env = append(os.Environ(), "LIFEDASH_SOCKET="+socketFlag)
		}
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	},
}

// --- Status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon, service and store status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := settings()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		fmt.Fprintln(out, service.Status(ctx, cfg.Socket))
		fmt.Fprintf(out, "store: %s\n", cfg.Store.Driver)

		pong, err := call[uds.PingResponse](uds.MethodPing, nil)
		if err != nil {
			fmt.Fprintln(out, "daemon: unreachable")
			return nil
		}
		fmt.Fprintf(out, "daemon: responding (%s)\n", time.UnixMilli(pong.TSUnixMS).Format(time.RFC3339))
		return nil
	},
}

// --- Config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage lifedash.yaml",
}

var (
	configInitPreset  string
	configInitDataDir string
	configInitDetect  bool
	configInitForce   bool
)

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter lifedash.yaml",
	Long:  "Presets: local (SQLite), ephemeral (in-memory), postgres. --detect adapts local to the environment.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := os.Stat(configPath); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
		}

		var (
			c   *config.Config
			err error
		)
		if configInitDetect {
			c, err = presets.Detect(configInitDataDir, os.Getenv)
		} else {
			c, err = presets.Generate(configInitPreset, configInitDataDir)
		}
		if err != nil {
			return err
		}
		if err := config.Save(configPath, c); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Generated %s (store: %s, assist: %s)\n", configPath, c.Store.Driver, c.Assist.Provider)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a lifedash.yaml",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) > 0 {
			path = args[0]
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		c, err := config.Parse(data)
		if err != nil {
			return err
		}

		errs := config.Validate(c)
		if len(errs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (store: %s)\n", path, c.Store.Driver)
			return nil
		}

		stderr := cmd.ErrOrStderr()
		fmt.Fprintf(stderr, "%s: %d error(s)\n", path, len(errs))
		for _, e := range errs {
			fmt.Fprintf(stderr, "  • %s\n", e)
		}
		return fmt.Errorf("%s is invalid", path)
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPreset, "preset", "local", "preset name")
	configInitCmd.Flags().StringVar(&configInitDataDir, "data-dir", "", "data directory (default: XDG data dir)")
	configInitCmd.Flags().BoolVar(&configInitDetect, "detect", false, "detect Postgres, OpenAI, Kafka and journald from the environment")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
}

// --- Service ---

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the lifedashd systemd user service",
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install and start the user unit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := service.Install(ctx, configPath); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "lifedashd.service installed ✓")
		return nil
	},
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop and remove the user unit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := service.Uninstall(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "lifedashd.service removed ✓")
		return nil
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the user unit state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := settings()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		fmt.Fprintln(cmd.OutOrStdout(), service.Status(ctx, cfg.Socket))
		return nil
	},
}

var (
	logsLines  int
	logsFollow bool
)

var serviceLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the daemon's journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		out := cmd.OutOrStdout()
		return service.Logs(ctx, logsLines, logsFollow, func(l service.LogLine) {
			fmt.Fprintln(out, l)
		})
	},
}

func unitAction(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: "Ask the user systemd manager to " + action + " the unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := service.Control(ctx, action); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s → lifedashd.service ✓\n", action)
			return nil
		},
	}
}

func init() {
	serviceLogsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of past entries")
	serviceLogsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "keep streaming new entries")
	serviceCmd.AddCommand(serviceInstallCmd)
	serviceCmd.AddCommand(serviceUninstallCmd)
	serviceCmd.AddCommand(serviceStatusCmd)
	serviceCmd.AddCommand(serviceLogsCmd)
	serviceCmd.AddCommand(unitAction("start"))
	serviceCmd.AddCommand(unitAction("stop"))
	serviceCmd.AddCommand(unitAction("restart"))
}
