package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/triggersim/internal/compiler"
	"github.com/roach88/triggersim/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Triggers int                        `json:"triggers"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Cycles   []compiler.CycleWarning    `json:"cycles,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <layout>",
		Short: "Check a layout without running it",
		Long: `Check a layout for problems the registry would reject on load
(empty or duplicate ids, bad delays) and lint it: outputs nobody hears and
firing cycles, with zero-delay cycles flagged as warnings.

Exits 1 if any error is found. Warnings alone do not fail validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	snaps, err := LoadLayout(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Loaded %d trigger(s) from %s", len(snaps), path)

	result := ValidateLayout(snaps)
	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// ValidateLayout runs the validator and the cycle analysis over a layout.
func ValidateLayout(snaps []ir.TriggerSnapshot) ValidationResult {
	errs := compiler.Validate(snaps)
	return ValidationResult{
		Valid:    !compiler.HasErrors(errs),
		Triggers: len(snaps),
		Errors:   errs,
		Cycles:   compiler.AnalyzeCycles(snaps),
	}
}

// outputValidateSuccess outputs successful validation results, including
// any warnings.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Layout valid (%d trigger(s))\n", result.Triggers)
	printFindings(formatter, result)
	return nil
}

// outputValidationErrors outputs a failed validation.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	count := 0
	var first compiler.ValidationError
	for _, e := range result.Errors {
		if e.Warning {
			continue
		}
		if count == 0 {
			first = e
		}
		count++
	}

	if formatter.IsJSON() {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    first.Code,
				Message: first.Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", count))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	printFindings(formatter, result)

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", count))
}

func printFindings(formatter *OutputFormatter, result ValidationResult) {
	if len(result.Errors) == 0 && len(result.Cycles) == 0 {
		return
	}
	fmt.Fprintln(formatter.Writer)
	for _, e := range result.Errors {
		label := "error"
		if e.Warning {
			label = "warning"
		}
		fmt.Fprintf(formatter.Writer, "  %s %s: %s: %s\n", label, e.Code, e.Field, e.Message)
	}
	for _, c := range result.Cycles {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", c.Level, c.Message)
	}
}
