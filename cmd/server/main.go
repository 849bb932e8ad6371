package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"citypulse/internal/api"
	"citypulse/internal/config"
	"citypulse/internal/engine"
	"citypulse/internal/logging"
	"citypulse/internal/store"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "citypulse",
		Short:        "Urban mobility simulation with an hourly control pipeline",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(runCmd(&configPath))
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

func serveCmd(configPath *string) *cobra.Command {
	var port, resume string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulation over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}
			return runServe(cmd.Context(), cfg, resume)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "HTTP port (overrides config)")
	cmd.Flags().StringVar(&resume, "resume", "", "continue from a run exported by 'run --out'")
	return cmd
}

func runCmd(configPath *string) *cobra.Command {
	var (
		steps int
		out   string
		seed  int64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation headless and export the final city",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if seed != 0 {
				cfg.Simulation.Seed = seed
			}
			if steps > cfg.Server.MaxRunSteps {
				cfg.Server.MaxRunSteps = steps
			}
			return runHeadless(cmd.Context(), cfg, steps, out)
		},
	}
	cmd.Flags().IntVarP(&steps, "steps", "n", 24, "hours to simulate")
	cmd.Flags().StringVarP(&out, "out", "o", "data/run.json", "export path")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (overrides config)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "citypulse", version)
		},
	}
}

// deps are the long-lived pieces shared by serve and run.
type deps struct {
	logger *slog.Logger
	engine *engine.Engine
	store  *store.Store
}

func setup(cfg *config.Config) (*deps, error) {
	logger := logging.NewLogger(cfg.Logging.Level, os.Stderr)
	d := &deps{logger: logger}

	opts := engine.Options{
		Seed:            cfg.Simulation.Seed,
		BusUnitsMax:     cfg.Simulation.BusUnitsMax,
		TrainUnitsMax:   cfg.Simulation.TrainUnitsMax,
		ReserveFraction: cfg.Simulation.ReserveFraction,
		MaxRunSteps:     cfg.Server.MaxRunSteps,
		Speed:           cfg.Simulation.Speed,
		Logger:          logger,
		Decisions:       logging.NewDecisionLogger(cfg.Logging.DecisionsDir, cfg.Logging.Level),
	}
	if opts.Decisions != nil {
		logger.Info("writing decision trace", "dir", cfg.Logging.DecisionsDir)
	}
	if cfg.Store.Path != "" {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open run store: %w", err)
		}
		d.store = st
		opts.Recorder = st
		logger.Info("recording runs", "path", cfg.Store.Path)
	}
	d.engine = engine.NewEngine(opts)
	return d, nil
}

func (d *deps) close() {
	if err := d.engine.Close(); err != nil {
		d.logger.Warn("closing engine", "error", err)
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn("closing run store", "error", err)
		}
	}
}

func runServe(ctx context.Context, cfg *config.Config, resume string) error {
	d, err := setup(cfg)
	if err != nil {
		return err
	}
	defer d.close()

	if resume != "" {
		if err := d.engine.LoadRun(resume); err != nil {
			return fmt.Errorf("resume %s: %w", resume, err)
		}
	}

	var runs api.RunStore
	if d.store != nil {
		runs = d.store
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.New(d.engine, runs, d.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		d.logger.Info("server listening", "port", cfg.Server.Port, "run_id", d.engine.RunID())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		d.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func runHeadless(ctx context.Context, cfg *config.Config, steps int, out string) error {
	d, err := setup(cfg)
	if err != nil {
		return err
	}
	defer d.close()

	p, err := d.engine.Run(ctx, steps)
	if err != nil {
		return err
	}
	if err := d.engine.ExportRun(out); err != nil {
		return err
	}
	d.logger.Info("run complete",
		"run_id", p.RunID,
		"t", p.Time.T,
		"liveability", p.Scores.Liveability,
		"environment", p.Scores.Environment,
		"cost_today", p.Cost.Today,
		"escalations", len(p.Escalations),
		"out", out)
	return nil
}
