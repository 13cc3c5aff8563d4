package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"commuter/internal/config"
	"commuter/internal/console"
	"commuter/internal/logging"

	"github.com/spf13/cobra"
)

const defaultConsoleLog = "commuter-operator.log"

// flags override values loaded from the environment.
type flags struct {
	origin   string
	inbox    string
	frameDir string
	logLevel string
	logFile  string
}

func newRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:           "operator",
		Short:         "Watch and steer a remote browsing agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd.Context(), f)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.origin, "origin", "", "agent host origin (overrides COMMUTER_ORIGIN)")
	pf.StringVar(&f.inbox, "inbox", "", "directory watched for documents to upload (overrides COMMUTER_INBOX)")
	pf.StringVar(&f.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	pf.StringVar(&f.logFile, "log-file", "", "log file (overrides LOG_FILE)")

	consoleCmd := &cobra.Command{
		Use:   "console",
		Short: "Run the interactive terminal console (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd.Context(), f)
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the session headlessly and log what happens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), f)
		},
	}
	watchCmd.Flags().StringVar(&f.frameDir, "frame-dir", "", "directory the latest frame is written to (overrides COMMUTER_FRAME_DIR)")

	root.AddCommand(consoleCmd, watchCmd)
	return root
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(f flags) (*config.Operator, error) {
	cfg, err := config.LoadOperator()
	if err != nil {
		return nil, err
	}
	if f.origin != "" {
		cfg.Origin = f.origin
	}
	if f.inbox != "" {
		cfg.Inbox = f.inbox
	}
	if f.frameDir != "" {
		cfg.FrameDir = f.frameDir
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.logFile != "" {
		cfg.Logging.File = f.logFile
	}
	return cfg, cfg.Validate()
}

func newLogger(lc config.LogConfig, quiet bool) (*logging.Logger, error) {
	return logging.New(logging.Config{
		Level:       lc.Level,
		Development: lc.Development,
		File:        lc.File,
		MaxSizeMB:   lc.MaxSizeMB,
		MaxBackups:  lc.MaxBackups,
		MaxAgeDays:  lc.MaxAgeDays,
		Quiet:       quiet,
	})
}

func runConsole(ctx context.Context, f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	// The terminal belongs to the UI, so logs only go to a file.
	if cfg.Logging.File == "" {
		cfg.Logging.File = defaultConsoleLog
	}
	logger, err := newLogger(cfg.Logging, true)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	return console.Run(ctx, cfg, logger.Logger)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "operator:", err)
		stop()
		os.Exit(1)
	}
}
