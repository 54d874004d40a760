package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/triggersim/internal/engine"
	"github.com/roach88/triggersim/internal/ir"
	"github.com/roach88/triggersim/internal/mqtt"
	"github.com/roach88/triggersim/internal/store"
)

// SessionOptions configures the engine behind one command invocation.
type SessionOptions struct {
	StepDelay time.Duration
	MaxSteps  int    // zero disables the quota
	Database  string // empty disables persistence

	// MQTT notifications. Publisher overrides Broker (for testing).
	Broker      string
	TopicPrefix string
	ClientID    string
	Publisher   mqtt.Publisher

	Observers []engine.Observer
	RunIDs    engine.RunIDGenerator // defaults to UUIDv7Generator
	Logger    *slog.Logger
}

// Session owns an engine and the optional store and notifier wired to it.
type Session struct {
	Engine   *engine.Engine
	Store    *store.Store
	Notifier *mqtt.Notifier

	logger    *slog.Logger
	persisted map[string]bool
}

// OpenSession builds an idle engine with the configured pacer and observers,
// opening the database and MQTT connection if requested.
func OpenSession(opts SessionOptions) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{logger: logger, persisted: make(map[string]bool)}

	if opts.Database != "" {
		logger.Debug("opening database", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		s.Store = st
	}

	observers := append([]engine.Observer{}, opts.Observers...)
	pub := opts.Publisher
	if pub == nil && opts.Broker != "" {
		logger.Info("connecting to MQTT broker", "broker", opts.Broker)
		rp, err := mqtt.NewRealPublisher(opts.Broker, opts.ClientID, opts.TopicPrefix)
		if err != nil {
			_ = s.closeStore()
			return nil, WrapExitError(ExitCommandError, "failed to connect to MQTT broker", err)
		}
		pub = rp
	}
	if pub != nil {
		s.Notifier = mqtt.NewNotifier(pub, opts.TopicPrefix, mqtt.DefaultQueueSize, logger)
		observers = append(observers, s.Notifier)
	}

	engineOpts := []engine.Option{
		engine.WithPacer(engine.NewPacer(opts.StepDelay)),
		engine.WithMaxSteps(opts.MaxSteps),
		engine.WithLogger(logger),
	}
	if len(observers) > 0 {
		engineOpts = append(engineOpts, engine.WithObserver(engine.MultiObserver(observers)))
	}
	if opts.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}
	s.Engine = engine.New(nil, engineOpts...)
	return s, nil
}

// PersistRuns writes every finished run not yet stored. The layout written
// with a run is the current one, so this must be called before the layout
// is edited after a run; runs whose layout has since changed are skipped.
func (s *Session) PersistRuns(ctx context.Context) error {
	if s.Store == nil {
		return nil
	}
	snaps := s.Engine.Snapshot()
	hash, err := ir.LayoutHash(snaps)
	if err != nil {
		return fmt.Errorf("hash layout: %w", err)
	}

	var errs []error
	for _, run := range s.Engine.Runs() {
		if s.persisted[run.ID] {
			continue
		}
		s.persisted[run.ID] = true
		if run.LayoutHash != hash {
			s.logger.Warn("run not persisted: layout changed since it ran", "run_id", run.ID)
			continue
		}
		if err := s.Store.WriteRun(ctx, run, snaps, s.Engine.RunTrace(run.ID)); err != nil {
			errs = append(errs, err)
			continue
		}
		s.logger.Debug("run persisted", "run_id", run.ID, "outcome", run.Outcome)
	}
	return errors.Join(errs...)
}

// Close shuts the engine down, drains the notifier and closes the store.
func (s *Session) Close() error {
	s.Engine.Close()
	var errs []error
	if s.Notifier != nil {
		if err := s.Notifier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close notifier: %w", err))
		}
		if n := s.Notifier.Dropped(); n > 0 {
			s.logger.Warn("notifications dropped", "count", n)
		}
	}
	if err := s.closeStore(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Session) closeStore() error {
	if s.Store == nil {
		return nil
	}
	if err := s.Store.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// textObserver prints notifications as they happen. Output may interleave
// with other writers (the shell prompt), so writes share a mutex.
type textObserver struct {
	mu     *sync.Mutex
	w      io.Writer
	states bool // also print state changes
}

func newTextObserver(mu *sync.Mutex, w io.Writer, states bool) *textObserver {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &textObserver{mu: mu, w: w, states: states}
}

func (o *textObserver) OnLog(line engine.LogLine) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if line.Emphasis {
		fmt.Fprintf(o.w, "» %s\n", line.Text)
		return
	}
	fmt.Fprintf(o.w, "  %s\n", line.Text)
}

func (o *textObserver) OnStateChanged(id string, active bool) {
	if !o.states {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	state := "inactive"
	if active {
		state = "active"
	}
	fmt.Fprintf(o.w, "  [%s is %s]\n", id, state)
}

func (o *textObserver) OnFlash(string, engine.FlashCue) {}
