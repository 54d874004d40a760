package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/roach88/triggersim/internal/engine"
	"github.com/roach88/triggersim/internal/ir"
	"github.com/roach88/triggersim/internal/layout"
	"github.com/roach88/triggersim/internal/mqtt"
)

// ShellOptions holds flags for the shell command.
type ShellOptions struct {
	*RootOptions
	Database  string
	StepDelay time.Duration
	Broker    string

	// RunIDs and Publisher override the defaults (for testing).
	RunIDs    engine.RunIDGenerator
	Publisher mqtt.Publisher
}

// layoutSource is a loaded layout and where it came from.
type layoutSource struct {
	Snapshots []ir.TriggerSnapshot
	Origin    string
}

const shellHelp = `Commands:
  load <file|name>             replace all triggers with a layout
  save <file>                  write the current layout (.json/.yaml)
  store <name>                 save the current layout in the database
  add <id> [field=value ...]   add a trigger
  delete <id>                  remove a trigger
  select <id>                  select a trigger
  set <id> <field> <value>     edit a field (` + "delay, activateOn, deactivateOn, triggerOn, whenTriggered, initialState, x, y" + `)
  toggle <id>                  flip a trigger's state (and its initial state)
  inject <channel> [time]      inject a pulse and start a run
  fire <id>                    fire a trigger manually
  wait                         block until the current run ends
  reset                        stop, rewind the clock and restore initial states
  clear                        stop and remove every trigger
  list                         show triggers and their states
  show <id>                    show one trigger's configuration
  queue                        show pending events
  trace [n]                    show the last n trace entries (default 20)
  help                         show this help
  quit                         leave the shell`

// NewShellCommand creates the shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	return newShellCommand(&ShellOptions{RootOptions: rootOpts})
}

func newShellCommand(opts *ShellOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell [layout]",
		Short: "Interactive simulator",
		Long: `Start an interactive, line-oriented simulator.

Runs are paced by the configured step delay (pacing.step_delay, 700ms by
default) so their progress can be followed as it prints. Edits are rejected
while a run is in progress; "reset" stops it.

With a database (--db or store.path) every finished run is stored.

Examples:
  triggersim shell
  triggersim shell ./layouts/relay.json --step-delay 200ms
  echo "inject power\nwait\nlist" | triggersim shell ./layouts/relay.json --step-delay 0`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			initial := ""
			if len(args) == 1 {
				initial = args[0]
			}
			return runShell(opts, initial, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for run traces (default from config)")
	cmd.Flags().DurationVar(&opts.StepDelay, "step-delay", 0, "pause between processed events (default from config)")
	cmd.Flags().StringVar(&opts.Broker, "mqtt", "", "MQTT broker URL for notifications (default from config)")

	return cmd
}

// Shell interprets commands against one session.
type Shell struct {
	sess *Session
	mu   *sync.Mutex // guards out; shared with the printing observer
	out  io.Writer
	ctx  context.Context
}

func runShell(opts *ShellOptions, initial string, cmd *cobra.Command) error {
	cfg := opts.config()
	logger := slog.Default()
	mu := &sync.Mutex{}
	out := cmd.OutOrStdout()

	sessOpts := SessionOptions{
		StepDelay:   cfg.Pacing.StepDelay,
		MaxSteps:    cfg.Engine.MaxSteps,
		Database:    cfg.Store.Path,
		Broker:      cfg.MQTT.Broker,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		ClientID:    cfg.MQTT.ClientID,
		Publisher:   opts.Publisher,
		RunIDs:      opts.RunIDs,
		Logger:      logger,
		Observers:   []engine.Observer{newTextObserver(mu, out, true)},
	}
	if cmd.Flags().Changed("step-delay") {
		sessOpts.StepDelay = opts.StepDelay
	}
	if opts.Database != "" {
		sessOpts.Database = opts.Database
	}
	if opts.Broker != "" {
		sessOpts.Broker = opts.Broker
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
			logger.Info("received signal, leaving shell", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	sh := &Shell{sess: sess, mu: mu, out: out, ctx: ctx}
	if initial != "" {
		if err := sh.Execute("load " + initial); err != nil {
			return WrapExitError(ExitCommandError, "failed to load layout", err)
		}
	}

	in := cmd.InOrStdin()
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if interactive {
		sh.printf("triggersim shell. Type \"help\" for commands.\n")
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		if interactive {
			sh.printf("> ")
		}
		var line string
		var ok bool
		select {
		case line, ok = <-lines:
		case <-ctx.Done():
			ok = false
		}
		if !ok {
			break
		}

		err := sh.Execute(line)
		if errors.Is(err, errQuit) {
			break
		}
		if err != nil {
			sh.printf("Error: %v\n", err)
		}
	}

	// Stop any run still in progress so its record is final.
	if sess.Engine.Running() {
		sess.Engine.Reset()
	}
	if err := sess.PersistRuns(context.Background()); err != nil {
		return WrapExitError(ExitCommandError, "failed to persist runs", err)
	}
	return nil
}

var errQuit = errors.New("quit")

// Execute runs one command line. Finished runs are persisted first, while
// the layout they ran against is still current.
func (s *Shell) Execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	if err := s.sess.PersistRuns(s.ctx); err != nil {
		slog.Warn("failed to persist runs", "error", err)
	}

	eng := s.sess.Engine
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "help", "?":
		s.printf("%s\n", shellHelp)
	case "quit", "exit":
		return errQuit
	case "load":
		if len(args) != 1 {
			return usage("load <file|name>")
		}
		src, err := loadNamedLayout(s.ctx, s.sess.Store, args[0])
		if err != nil {
			return err
		}
		err = eng.LoadSnapshot(src.Snapshots)
		loaded := len(eng.TriggerIDs())
		if err != nil {
			s.printf("Partially loaded %d of %d trigger(s) from %s (%d skipped)\n",
				loaded, len(src.Snapshots), src.Origin, len(src.Snapshots)-loaded)
			return err
		}
		s.printf("Loaded %d trigger(s) from %s\n", loaded, src.Origin)
	case "save":
		if len(args) != 1 {
			return usage("save <file>")
		}
		if err := layout.SaveFile(args[0], eng.Snapshot()); err != nil {
			return err
		}
		s.printf("Wrote %s\n", args[0])
	case "store":
		if len(args) != 1 {
			return usage("store <name>")
		}
		if s.sess.Store == nil {
			return errors.New("no database: start the shell with --db")
		}
		info, err := s.sess.Store.SaveLayout(s.ctx, args[0], eng.Snapshot())
		if err != nil {
			return err
		}
		s.printf("Saved %s revision %d\n", info.Name, info.Revision)
	case "add":
		if len(args) < 1 {
			return usage("add <id> [field=value ...]")
		}
		return s.add(args[0], args[1:])
	case "delete", "del", "rm":
		if len(args) != 1 {
			return usage("delete <id>")
		}
		return eng.DeleteTrigger(args[0])
	case "select":
		if len(args) != 1 {
			return usage("select <id>")
		}
		return eng.SelectTrigger(args[0])
	case "set":
		if len(args) < 2 {
			return usage("set <id> <field> <value>")
		}
		return eng.UpdateTrigger(args[0], args[1], strings.Join(args[2:], " "))
	case "toggle":
		if len(args) != 1 {
			return usage("toggle <id>")
		}
		return eng.ToggleTrigger(args[0])
	case "inject":
		if len(args) < 1 || len(args) > 2 {
			return usage("inject <channel> [time]")
		}
		at := eng.Now()
		if len(args) == 2 {
			inj, err := ParseInjection(args[0] + "@" + args[1])
			if err != nil {
				return err
			}
			at = inj.At
		}
		return eng.InjectPulse(args[0], at)
	case "fire":
		if len(args) != 1 {
			return usage("fire <id>")
		}
		return eng.ManualFire(args[0])
	case "wait":
		err := eng.Wait(s.ctx)
		if engine.IsStepsExceededError(err) {
			// Already reported through the trace.
			return nil
		}
		return err
	case "reset":
		eng.Reset()
	case "clear":
		eng.Clear()
	case "list", "ls":
		s.list()
	case "show":
		if len(args) != 1 {
			return usage("show <id>")
		}
		return s.show(args[0])
	case "queue":
		s.queue()
	case "trace":
		n := 20
		if len(args) == 1 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v <= 0 {
				return usage("trace [n]")
			}
			n = v
		}
		s.trace(n)
	default:
		return fmt.Errorf("unknown command %q (try \"help\")", name)
	}
	return nil
}

func (s *Shell) add(id string, assignments []string) error {
	eng := s.sess.Engine
	if err := eng.AddTrigger(engine.Config{ID: id}); err != nil {
		return err
	}
	for _, a := range assignments {
		field, value, ok := strings.Cut(a, "=")
		if !ok {
			return fmt.Errorf("expected field=value, got %q", a)
		}
		if err := eng.UpdateTrigger(id, field, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Shell) list() {
	// Gather everything before taking the output lock: the engine calls
	// the printing observer with its own lock held.
	eng := s.sess.Engine
	ids := eng.TriggerIDs()
	states := eng.States()
	selected := eng.Selected()
	now := eng.Now()
	pending := eng.QueueLen()
	status := "idle"
	if eng.Running() {
		status = "running"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "T=%s (%s, %d pending)\n", formatTime(now), status, pending)
	if len(ids) == 0 {
		fmt.Fprintln(s.out, "  (no triggers)")
	}
	for _, id := range ids {
		mark := " "
		if id == selected {
			mark = "*"
		}
		state := "inactive"
		if states[id] {
			state = "active"
		}
		fmt.Fprintf(s.out, " %s %-16s %s\n", mark, id, state)
	}
}

func (s *Shell) show(id string) error {
	cfg, ok := s.sess.Engine.TriggerConfig(id)
	if !ok {
		return fmt.Errorf("unknown trigger %q", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "%s\n", cfg.ID)
	fmt.Fprintf(s.out, "  delay:         %s\n", formatTime(cfg.Delay))
	fmt.Fprintf(s.out, "  activateOn:    %s\n", strings.Join(cfg.ActivateOn, ", "))
	fmt.Fprintf(s.out, "  deactivateOn:  %s\n", strings.Join(cfg.DeactivateOn, ", "))
	fmt.Fprintf(s.out, "  triggerOn:     %s\n", strings.Join(cfg.TriggerOn, ", "))
	fmt.Fprintf(s.out, "  whenTriggered: %s\n", cfg.WhenTriggered)
	fmt.Fprintf(s.out, "  initialState:  %t\n", cfg.InitialState)
	fmt.Fprintf(s.out, "  position:      (%s, %s)\n", formatTime(cfg.X), formatTime(cfg.Y))
	return nil
}

func (s *Shell) queue() {
	pending := s.sess.Engine.Pending()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(pending) == 0 {
		fmt.Fprintln(s.out, "  (queue empty)")
		return
	}
	for _, ev := range pending {
		fmt.Fprintf(s.out, "  T=%s '%s' from %s\n", formatTime(ev.Time), ev.Channel, ev.SourceID)
	}
}

func (s *Shell) trace(n int) {
	entries := s.sess.Engine.Trace()
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		fmt.Fprintf(s.out, "  [%d] T=%s %s\n", e.Seq, formatTime(e.Time), describeEntry(e))
	}
}

func (s *Shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func usage(u string) error {
	return fmt.Errorf("usage: %s", u)
}
