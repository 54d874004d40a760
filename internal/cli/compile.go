package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/triggersim/internal/ir"
	"github.com/roach88/triggersim/internal/layout"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
	To     string // output encoding: json | yaml
}

// CompilationResult is the JSON payload of a successful compile.
type CompilationResult struct {
	Hash     string               `json:"hash"`
	Triggers []ir.TriggerSnapshot `json:"triggers"`
	Output   string               `json:"output,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <layout>",
		Short: "Compile a layout to the JSON or YAML interchange format",
		Long: `Compile a layout (JSON, YAML, CUE file, or CUE package directory) into
the snapshot interchange format.

Without --output the encoded layout is written to stdout. With --output the
encoding follows the file extension unless --to is given.

Examples:
  triggersim compile ./layouts/clock.cue
  triggersim compile ./layouts/clock.cue -o clock.json
  triggersim compile ./layouts/clock.json --to yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.To, "to", "", "output encoding (json|yaml)")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	format, err := compileTarget(opts)
	if err != nil {
		return outputCompileError(formatter, ErrCodeUnsupported, err.Error(), nil)
	}

	snaps, err := LoadLayout(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Loaded %d trigger(s) from %s", len(snaps), path)

	hash, err := ir.LayoutHash(snaps)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	data, err := layout.Encode(snaps, format)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	if formatter.IsJSON() {
		return formatter.Success(CompilationResult{Hash: hash, Triggers: nonNilLayout(snaps), Output: opts.Output})
	}
	if opts.Output == "" {
		_, err := formatter.Writer.Write(data)
		return err
	}
	formatter.Printf("✓ Compiled %d trigger(s)\n", len(snaps))
	formatter.Printf("Wrote %s layout to %s (hash %s)\n", format, opts.Output, hash)
	return nil
}

// compileTarget picks the output encoding: --to wins, then the output
// file's extension, then JSON.
func compileTarget(opts *CompileOptions) (layout.Format, error) {
	switch {
	case opts.To != "":
		f := layout.Format(opts.To)
		if f != layout.FormatJSON && f != layout.FormatYAML {
			return "", fmt.Errorf("invalid --to %q: must be json or yaml", opts.To)
		}
		return f, nil
	case opts.Output != "":
		f, err := layout.FormatFromPath(opts.Output)
		if err != nil {
			return "", err
		}
		if f == layout.FormatCUE {
			return "", errors.New("cannot write layouts as CUE")
		}
		return f, nil
	}
	return layout.FormatJSON, nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputLoadError reports a layout that could not be loaded, with its CUE
// position when there is one.
func outputLoadError(formatter *OutputFormatter, err error) error {
	code, message := parseLoadError(err)
	var loadErr *LoadError
	if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
		message = fmt.Sprintf("%s:%d:%d: %s", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column(), message)
	}
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// parseLoadError extracts error code and message from an error.
func parseLoadError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

func nonNilLayout(snaps []ir.TriggerSnapshot) []ir.TriggerSnapshot {
	if snaps == nil {
		return []ir.TriggerSnapshot{}
	}
	return snaps
}
