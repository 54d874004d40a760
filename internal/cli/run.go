package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/triggersim/internal/engine"
	"github.com/roach88/triggersim/internal/ir"
	"github.com/roach88/triggersim/internal/mqtt"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Injects   []string // channel[@time]
	Fires     []string // trigger ids
	Database  string
	StepDelay time.Duration
	Paced     bool // use the configured step delay
	MaxSteps  int
	Broker    string

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator

	// Publisher allows overriding the MQTT publisher (for testing).
	Publisher mqtt.Publisher
}

// Injection is one parsed --inject flag.
type Injection struct {
	Channel string
	At      float64
	HasTime bool // false: inject at the current simulated time
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Runs      []ir.RunRecord  `json:"runs"`
	States    map[string]bool `json:"states"`
	FinalTime float64         `json:"final_time"`
	Trace     []ir.TraceEntry `json:"trace"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <layout>",
		Short: "Load a layout and simulate stimuli against it",
		Long: `Load a layout and drive it with external stimuli.

Each --inject starts a run with a pulse on a channel, optionally at a given
simulated time (channel@time). Each --fire starts a run by firing a trigger
manually. Stimuli are applied in order, injections first, and each run is
simulated until its queue drains or the step quota is exceeded.

With --db every finished run and its trace are stored in the database.

Examples:
  triggersim run ./layouts/relay.json --inject power
  triggersim run ./layouts/clock.cue --inject tick@2.5 --max-steps 50
  triggersim run ./layouts/relay.json --fire A --db ./triggersim.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Injects, "inject", nil, "inject a pulse: channel[@time] (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Fires, "fire", nil, "manually fire a trigger by id (repeatable)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for run traces (default from config)")
	cmd.Flags().DurationVar(&opts.StepDelay, "step-delay", 0, "pause between processed events")
	cmd.Flags().BoolVar(&opts.Paced, "paced", false, "pause between events using the configured step delay")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", 0, "events processed per run before aborting (default from config)")
	cmd.Flags().StringVar(&opts.Broker, "mqtt", "", "MQTT broker URL for notifications (default from config)")

	return cmd
}

func runSimulation(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	cfg := opts.config()
	logger := slog.Default()

	injections := make([]Injection, 0, len(opts.Injects))
	for _, raw := range opts.Injects {
		inj, err := ParseInjection(raw)
		if err != nil {
			return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
		}
		injections = append(injections, inj)
	}
	if len(injections) == 0 && len(opts.Fires) == 0 {
		return outputCompileError(formatter, ErrCodeGeneric, "nothing to simulate: give at least one --inject or --fire", nil)
	}

	snaps, err := LoadLayout(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	logger.Info("layout loaded", "path", path, "triggers", len(snaps))

	sessOpts := SessionOptions{
		StepDelay:   opts.StepDelay,
		MaxSteps:    cfg.Engine.MaxSteps,
		Database:    cfg.Store.Path,
		Broker:      cfg.MQTT.Broker,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		ClientID:    cfg.MQTT.ClientID,
		Publisher:   opts.Publisher,
		RunIDs:      opts.RunIDs,
		Logger:      logger,
	}
	if opts.Paced && !cmd.Flags().Changed("step-delay") {
		sessOpts.StepDelay = cfg.Pacing.StepDelay
	}
	if opts.MaxSteps > 0 {
		sessOpts.MaxSteps = opts.MaxSteps
	}
	if opts.Database != "" {
		sessOpts.Database = opts.Database
	}
	if opts.Broker != "" {
		sessOpts.Broker = opts.Broker
	}
	if !formatter.IsJSON() {
		sessOpts.Observers = []engine.Observer{newTextObserver(&sync.Mutex{}, formatter.Writer, false)}
	}

	sess, err := OpenSession(sessOpts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			logger.Error("error closing session", "error", closeErr)
		}
	}()
	eng := sess.Engine

	if err := eng.LoadSnapshot(snaps); err != nil {
		// Bad entries are skipped; the rest of the layout still runs.
		logger.Warn("layout entries skipped", "error", err)
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping simulation", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var failures []error
	stimuli := make([]func() error, 0, len(injections)+len(opts.Fires))
	for _, inj := range injections {
		stimuli = append(stimuli, func() error {
			at := eng.Now()
			if inj.HasTime {
				at = inj.At
			}
			return eng.InjectPulse(inj.Channel, at)
		})
	}
	for _, id := range opts.Fires {
		stimuli = append(stimuli, func() error { return eng.ManualFire(id) })
	}
	for _, stimulus := range stimuli {
		if err := simulate(ctx, eng, stimulus); err != nil {
			if ctx.Err() != nil {
				eng.Reset()
				return interrupted(sess, formatter)
			}
			failures = append(failures, err)
		}
	}

	if err := sess.PersistRuns(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to persist runs", err)
	}

	if formatter.IsJSON() {
		resp := CLIResponse{Status: "ok", Data: RunResult{
			Runs:      nonNilRuns(eng.Runs()),
			States:    eng.States(),
			FinalTime: eng.Now(),
			Trace:     eng.Trace(),
		}}
		if len(failures) > 0 {
			code, message := simErrorCode(failures[0])
			resp.Status = "error"
			resp.Error = &CLIError{Code: code, Message: message}
		}
		if err := encodeJSON(formatter.Writer, resp); err != nil {
			return err
		}
	} else {
		printStates(formatter, eng)
		for _, f := range failures {
			code, message := simErrorCode(f)
			fmt.Fprintf(formatter.Writer, "Error [%s]: %s\n", code, message)
		}
	}

	if len(failures) > 0 {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d stimulus(es) failed", len(failures)), errors.Join(failures...))
	}
	return nil
}

// simulate applies one stimulus and waits for the run it starts. A run
// aborted by the step quota is reported as an error; the engine stays
// usable. A silent manual fire starts no run, so there is nothing to wait
// for.
func simulate(ctx context.Context, eng *engine.Engine, stimulus func() error) error {
	before := len(eng.Runs())
	if err := stimulus(); err != nil {
		return err
	}
	if err := eng.Wait(ctx); err != nil {
		if ctx.Err() != nil || len(eng.Runs()) > before {
			return err
		}
	}
	return nil
}

func interrupted(sess *Session, formatter *OutputFormatter) error {
	if err := sess.PersistRuns(context.Background()); err != nil {
		slog.Error("failed to persist runs", "error", err)
	}
	formatter.Printf("Interrupted.\n")
	return NewExitError(ExitFailure, "simulation interrupted")
}

// ParseInjection parses "channel" or "channel@time". The time must be a
// finite, non-negative number.
func ParseInjection(raw string) (Injection, error) {
	ch, at, found := raw, "", false
	if i := strings.LastIndex(raw, "@"); i >= 0 {
		ch, at, found = raw[:i], raw[i+1:], true
	}
	ch = strings.TrimSpace(ch)
	if ch == "" {
		return Injection{}, fmt.Errorf("invalid --inject %q: channel is empty", raw)
	}
	if !found {
		return Injection{Channel: ch}, nil
	}
	t, err := strconv.ParseFloat(strings.TrimSpace(at), 64)
	if err != nil || t < 0 || math.IsInf(t, 0) || math.IsNaN(t) {
		return Injection{}, fmt.Errorf("invalid --inject %q: time must be a non-negative number", raw)
	}
	return Injection{Channel: ch, At: t, HasTime: true}, nil
}

// simErrorCode returns the code and message to report for a failed
// stimulus.
func simErrorCode(err error) (string, string) {
	var simErr *engine.SimError
	if errors.As(err, &simErr) {
		return string(simErr.Code), simErr.Error()
	}
	if engine.IsStepsExceededError(err) {
		return "STEPS_EXCEEDED", err.Error()
	}
	return ErrCodeGeneric, err.Error()
}

func printStates(formatter *OutputFormatter, eng *engine.Engine) {
	states := eng.States()
	fmt.Fprintf(formatter.Writer, "\nT=%s\n", formatTime(eng.Now()))
	for _, id := range eng.TriggerIDs() {
		state := "inactive"
		if states[id] {
			state = "active"
		}
		fmt.Fprintf(formatter.Writer, "  %-16s %s\n", id, state)
	}
}

func nonNilRuns(runs []ir.RunRecord) []ir.RunRecord {
	if runs == nil {
		return []ir.RunRecord{}
	}
	return runs
}
