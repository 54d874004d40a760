package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/triggersim/internal/layout"
	"github.com/roach88/triggersim/internal/store"
)

// LayoutsOptions holds flags shared by the layouts subcommands.
type LayoutsOptions struct {
	*RootOptions
	Database string
	Output   string // export: output file
	To       string // export: encoding when writing to stdout
}

// NewLayoutsCommand creates the layouts command group.
func NewLayoutsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LayoutsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "layouts",
		Short: "Manage named layouts in the database",
		Long: `Save, list, export and delete named layouts.

Saving under an existing name creates a new revision. Layout bodies are
stored by content hash, so runs keep pointing at the layout they ran against
even after the name moves on or is deleted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	save := &cobra.Command{
		Use:           "save <name> <layout>",
		Short:         "Store a layout file under a name",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayoutsSave(opts, args[0], args[1], cmd)
		},
	}

	list := &cobra.Command{
		Use:           "list",
		Short:         "List named layouts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayoutsList(opts, cmd)
		},
	}

	export := &cobra.Command{
		Use:           "export <name>",
		Short:         "Write a named layout as JSON or YAML",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayoutsExport(opts, args[0], cmd)
		},
	}
	export.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path (encoding from extension)")
	export.Flags().StringVar(&opts.To, "to", "json", "encoding when writing to stdout (json|yaml)")

	del := &cobra.Command{
		Use:           "delete <name>",
		Short:         "Remove a named layout",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayoutsDelete(opts, args[0], cmd)
		},
	}

	cmd.AddCommand(save, list, export, del)
	return cmd
}

func runLayoutsSave(opts *LayoutsOptions, name, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	snaps, err := LoadLayout(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	result := ValidateLayout(snaps)
	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}

	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	info, err := st.SaveLayout(context.Background(), name, snaps)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to save layout", err)
	}
	if formatter.IsJSON() {
		return formatter.Success(info)
	}
	fmt.Fprintf(formatter.Writer, "✓ Saved %s revision %d (%d trigger(s), hash %s)\n",
		info.Name, info.Revision, info.Triggers, truncateID(info.Hash))
	return nil
}

func runLayoutsList(opts *LayoutsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.ListLayouts(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list layouts", err)
	}
	if formatter.IsJSON() {
		return formatter.Success(infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(formatter.Writer, "No layouts stored.")
		return nil
	}
	for _, info := range infos {
		fmt.Fprintf(formatter.Writer, "%-20s rev %-3d %3d trigger(s)  %s\n",
			info.Name, info.Revision, info.Triggers, truncateID(info.Hash))
	}
	return nil
}

func runLayoutsExport(opts *LayoutsOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	snaps, info, err := st.LoadLayout(context.Background(), name)
	if errors.Is(err, store.ErrNotFound) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("layout not found: %s", name), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("layout not found: %s", name))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load layout", err)
	}

	if opts.Output != "" {
		if err := layout.SaveFile(opts.Output, snaps); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, err.Error(), nil)
		}
		if formatter.IsJSON() {
			return formatter.Success(info)
		}
		fmt.Fprintf(formatter.Writer, "Wrote %s revision %d to %s\n", info.Name, info.Revision, opts.Output)
		return nil
	}

	format := layout.Format(opts.To)
	if format != layout.FormatJSON && format != layout.FormatYAML {
		return outputCompileError(formatter, ErrCodeUnsupported, fmt.Sprintf("invalid --to %q: must be json or yaml", opts.To), nil)
	}
	data, err := layout.Encode(snaps, format)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	_, err = formatter.Writer.Write(data)
	return err
}

func runLayoutsDelete(opts *LayoutsOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openStore(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	deleted, err := st.DeleteLayout(context.Background(), name)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to delete layout", err)
	}
	if !deleted {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("layout not found: %s", name), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("layout not found: %s", name))
	}
	if formatter.IsJSON() {
		return formatter.Success(map[string]string{"deleted": name})
	}
	fmt.Fprintf(formatter.Writer, "✓ Deleted %s\n", name)
	return nil
}

// loadNamedLayout resolves a layout argument: a path on disk wins, otherwise
// the name is looked up in the store.
func loadNamedLayout(ctx context.Context, st *store.Store, arg string) (layoutSource, error) {
	if _, err := os.Stat(arg); err == nil || st == nil {
		snaps, err := LoadLayout(arg)
		return layoutSource{Snapshots: snaps, Origin: arg}, err
	}
	snaps, info, err := st.LoadLayout(ctx, arg)
	if err != nil {
		return layoutSource{}, err
	}
	return layoutSource{Snapshots: snaps, Origin: fmt.Sprintf("%s@%d", info.Name, info.Revision)}, nil
}
