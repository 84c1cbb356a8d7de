// internal/cli/run.go
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tamzrod/nvstore/internal/archive"
	"github.com/tamzrod/nvstore/internal/bus"
	"github.com/tamzrod/nvstore/internal/config"
	"github.com/tamzrod/nvstore/internal/engine"
	"github.com/tamzrod/nvstore/internal/status"
	"github.com/tamzrod/nvstore/internal/writer"
)

// pollInterval is how often the collaborator loop services acknowledges
// when no completion woke it.
const pollInterval = time.Millisecond

// RunOptions holds flags for the run command.
type RunOptions struct {
	ConfigPath string

	// Ticks stops the run after this many engine ticks; zero runs until
	// interrupted.
	Ticks uint64
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the storage engine against the configured devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, opts, rootOpts.logger())
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to the YAML config (required)")
	cmd.Flags().Uint64Var(&opts.Ticks, "ticks", 0, "stop after this many engine ticks (0 = until interrupted)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

// loadConfig is Load, Validate, Normalize.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, opts *RunOptions, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// --------------------
	// Engine
	// --------------------

	e, closeDevices, err := engine.Build(cfg, log)
	if err != nil {
		return fmt.Errorf("engine build failed: %w", err)
	}
	defer closeDevices()

	// --------------------
	// Archive (optional)
	// --------------------

	var store *archive.Store
	if cfg.Archive != nil {
		store, err = archive.Open(cfg.Archive.Database)
		if err != nil {
			return fmt.Errorf("archive open failed: %w", err)
		}
		defer store.Close()
	}

	// --------------------
	// Status block (optional)
	// --------------------

	plan, err := writer.BuildStatusPlan(cfg.Status)
	if err != nil {
		return err
	}
	var statusWriter writer.StatusWriter
	if plan != nil {
		w, closeWriter, err := writer.BuildStatusWriter(plan, time.Duration(cfg.Status.TimeoutMs)*time.Millisecond)
		if err != nil {
			return fmt.Errorf("status writer failed: %w", err)
		}
		defer closeWriter()
		statusWriter = w
	}

	// --------------------
	// Engine loop
	// --------------------

	out := make(chan engine.TickResult, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(ctx, time.Duration(cfg.Engine.TickUs)*time.Microsecond, out)
	}()

	log.Info("engine started",
		"driver", cfg.Devices.Driver,
		"tick_us", cfg.Engine.TickUs,
		"archive", store != nil,
		"status", statusWriter != nil,
	)

	d := newDriver(e, cfg.Simulation, store, log)
	d.start()

	pub := &statusPublisher{w: statusWriter, log: log}
	pub.publish(e.Snapshot())

	poll := time.NewTicker(pollInterval)
	defer poll.Stop()
	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-done
			pub.publish(e.Snapshot())
			log.Info("engine stopped",
				"ticks", e.Ticks(),
				"dropped", e.Dropped(),
				"archived", d.archived,
				"flash_exchanges", e.Exchanges(bus.Flash),
				"fram_exchanges", e.Exchanges(bus.FRAM),
			)
			return nil

		case <-out:
			d.step(ctx)

		case <-poll.C:
			d.step(ctx)
			if opts.Ticks > 0 && e.Ticks() >= opts.Ticks {
				cancel()
			}

		case <-secTicker.C:
			pub.second(e.Snapshot())
		}
	}
}

// statusPublisher owns seconds-in-error, the one status value the engine
// does not keep.
type statusPublisher struct {
	w   writer.StatusWriter
	log *slog.Logger

	secondsInError uint16
}

// second is the 1 Hz tick: count while in error, reset on recovery.
func (p *statusPublisher) second(s status.Snapshot) {
	if s.Health == status.HealthError {
		if p.secondsInError < 65535 {
			p.secondsInError++
		}
	} else {
		p.secondsInError = 0
	}
	p.publish(s)
}

func (p *statusPublisher) publish(s status.Snapshot) {
	if p.w == nil {
		return
	}
	s.SecondsInError = p.secondsInError
	if err := p.w.WriteStatus(s); err != nil {
		p.log.Warn("status write failed", "err", err)
	}
}
