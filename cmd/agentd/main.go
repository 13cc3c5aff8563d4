package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"commuter/internal/agentproc"
	"commuter/internal/browser"
	"commuter/internal/config"
	"commuter/internal/logging"
	"commuter/internal/metrics"
	"commuter/internal/realtime"
	"commuter/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type flags struct {
	port      int
	database  string
	agent     string
	noBrowser bool
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "agentd",
		Short:         "Host a remote browser and its agent for operators",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&f.port, "port", 0, "listen port (overrides PORT)")
	fl.StringVar(&f.database, "db", "", "database path (overrides AGENTD_DB)")
	fl.StringVar(&f.agent, "agent", "", "agent command line (overrides AGENTD_AGENT_COMMAND)")
	fl.BoolVar(&f.noBrowser, "no-browser", false, "run without a browser (overrides AGENTD_DISABLE_BROWSER)")
	return cmd
}

func loadConfig(f flags) (*config.Agent, error) {
	cfg, err := config.LoadAgent()
	if err != nil {
		return nil, err
	}
	if f.port != 0 {
		cfg.Port = f.port
	}
	if f.database != "" {
		cfg.Database = f.database
	}
	if f.agent != "" {
		cfg.AgentCommand = f.agent
	}
	if f.noBrowser {
		cfg.DisableBrowser = true
	}
	return cfg, cfg.Validate()
}

func serve(ctx context.Context, cfg *config.Agent) error {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Logger

	st, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New()

	opts := realtime.Options{
		Store:              st,
		Metrics:            m,
		ScreenshotInterval: cfg.ScreenshotInterval,
		ScreenshotRate:     cfg.ScreenshotRate,
		Development:        cfg.Logging.Development,
		Logger:             log,
	}

	if !cfg.DisableBrowser {
		b, err := browser.Launch(ctx, browser.Options{
			RemoteURL: cfg.BrowserURL,
			Headless:  cfg.Headless,
			Width:     cfg.ViewportWidth,
			Height:    cfg.ViewportHeight,
			StartURL:  cfg.StartURL,
			Logger:    log,
		})
		if err != nil {
			return fmt.Errorf("launch browser: %w", err)
		}
		defer b.Close()
		opts.Browser = b
	}

	var agent *agentproc.Process
	if cfg.AgentCommand != "" {
		path, args := agentproc.ParseCommand(cfg.AgentCommand)
		agent, err = agentproc.New(agentproc.Options{
			Path:      path,
			Args:      args,
			WorkDir:   cfg.AgentWorkDir,
			OnRestart: m.AgentRestarts.Inc,
			Logger:    log,
		})
		if err != nil {
			return err
		}
		opts.Agent = agent
	}

	hub := realtime.New(opts)
	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: hub.Handler(),
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	hubDone := make(chan struct{})
	go func() {
		hub.Run(runCtx)
		close(hubDone)
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("agentd listening", zap.String("addr", cfg.Addr()), zap.Bool("browser", opts.Browser != nil), zap.Bool("agent", agent != nil))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			cancel()
			<-hubDone
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()

	hub.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	<-hubDone
	if agent != nil {
		agent.Shutdown(shutdownCtx)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "agentd:", err)
		stop()
		os.Exit(1)
	}
}
