package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"media-library/internal/database"
	"media-library/internal/library"
	"media-library/internal/logging"
	"media-library/internal/pipeline"
)

func newSyncCmd(flags *rootFlags) *cobra.Command {
	var noProcess bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the store with the files on disk",
		Long: `Walks the library, records new and changed files, flags missing ones
and then derives thumbnails for every record the pass marked for
regeneration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(a *app) error {
				result, err := a.indexer.Sync(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %d, changed %d, restored %d, missing %d, to regenerate %d\n",
					result.Added, result.Changed, result.Restored, result.Missing, len(result.Regenerate))

				if noProcess || len(result.Regenerate) == 0 {
					return nil
				}
				sum, err := a.process(cmd.Context(), result.Regenerate)
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), sum)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noProcess, "no-process", false, "skip thumbnail generation after the sync")
	return cmd
}

func newProcessCmd(flags *rootFlags) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Generate thumbnails for records that lack one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(a *app) error {
				ctx := cmd.Context()
				recs, err := a.db.AllRecords(ctx)
				if err != nil {
					return err
				}
				thumbs, err := a.db.ThumbnailIDs(ctx)
				if err != nil {
					return err
				}
				sum, err := a.process(ctx, pipeline.Pending(recs, thumbs, all))
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), sum)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "regenerate every present playable record, including failed ones")
	return cmd
}

func newDurationsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "durations",
		Short: "Probe the duration of playable records where it is unknown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(a *app) error {
				progress := newProgressReporter("Scanning durations")
				a.pipeline.SetOnProgress(progress.update)
				sum, err := a.pipeline.ScanDurations(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "probed %d, unknown %d, inaccessible %d\n",
					sum.Generated, sum.Failed, sum.Inaccessible)
				return nil
			})
		},
	}
}

func newRegenerateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate <id-or-path>...",
		Short: "Discard and re-derive the previews of specific records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(a *app) error {
				ctx := cmd.Context()
				var errs []error
				for _, arg := range args {
					id, err := resolveRecord(cmd, a, arg)
					if err != nil {
						errs = append(errs, err)
						continue
					}
					outcome, err := a.pipeline.Regenerate(ctx, id)
					if err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", arg, err))
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", arg, outcome)
				}
				return errors.Join(errs...)
			})
		},
	}
}

// resolveRecord accepts a record ID or a library-relative path.
func resolveRecord(cmd *cobra.Command, a *app, arg string) (string, error) {
	ctx := cmd.Context()
	if rec, err := a.db.GetRecord(ctx, arg); err == nil {
		return rec.ID, nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return "", err
	}
	rec, err := a.db.GetRecordByPath(ctx, arg)
	if err != nil {
		return "", fmt.Errorf("%s: %w", arg, err)
	}
	return rec.ID, nil
}

func newExportCmd(flags *rootFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole store as JSON, without preview payloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(a *app) error {
				doc, err := a.db.Export(cmd.Context())
				if err != nil {
					return err
				}
				return writeOutput(cmd, output, func(w io.Writer) error {
					return encodeJSON(w, doc)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func newExportSelectionCmd(flags *rootFlags) *cobra.Command {
	var (
		output string
		filter library.Filter
	)
	cmd := &cobra.Command{
		Use:   "export-selection",
		Short: "Write the reduced form of the records matching a filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(a *app) error {
				a.library.SetFilter(filter)
				entries, err := a.library.Selection(cmd.Context())
				if err != nil {
					return err
				}
				return writeOutput(cmd, output, func(w io.Writer) error {
					return encodeJSON(w, entries)
				})
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	f.StringVar(&filter.Query, "query", "", "words that must all appear in the path, title or tags")
	f.StringVar(&filter.Tag, "tag", "", "only records with this tag")
	f.IntVar(&filter.MinRating, "min-rating", 0, "only records rated at least this")
	f.BoolVar(&filter.ShowHidden, "hidden", false, "include hidden records")
	f.BoolVar(&filter.ShowDeleted, "deleted", false, "include records flagged deleted")
	f.BoolVar(&filter.ShowMissing, "missing", false, "include records whose file is missing")
	return cmd
}

func newPurgeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove records flagged deleted, with their previews",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(a *app) error {
				n, err := a.db.Purge(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d records\n", n)
				return nil
			})
		},
	}
}

func newResetCmd(flags *rootFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every record, preview and playlist from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				if !term.IsTerminal(int(os.Stdin.Fd())) {
					return errors.New("refusing to reset without a terminal; pass --yes")
				}
				ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), "This deletes all library data. Type 'yes' to continue: ")
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("reset aborted")
				}
			}
			return withApp(cmd, flags, func(a *app) error {
				if err := a.db.ClearAll(cmd.Context()); err != nil {
					return err
				}
				if err := a.db.Vacuum(cmd.Context()); err != nil {
					logging.Warn("Vacuum after reset failed: %v", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "store cleared")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// confirm prints prompt and reports whether the answer was "yes".
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("error reading confirmation: %w", err)
	}
	return strings.EqualFold(strings.TrimSpace(line), "yes"), nil
}

func printSummary(w io.Writer, sum pipeline.Summary) {
	fmt.Fprintf(w, "processed %d: generated %d, failed %d, inaccessible %d, skipped %d",
		sum.Processed, sum.Generated, sum.Failed, sum.Inaccessible, sum.Skipped)
	if sum.Canceled {
		fmt.Fprint(w, " (canceled)")
	}
	fmt.Fprintln(w)
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeOutput runs fn against the named file, or stdout when path is empty.
func writeOutput(cmd *cobra.Command, path string, fn func(w io.Writer) error) error {
	if path == "" {
		return fn(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
