package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"media-library/internal/filesystem"
)

func newPlaylistCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Manage stored playlists",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored playlists",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, flags, func(a *app) error {
					lists, err := a.library.Playlists(cmd.Context())
					if err != nil {
						return err
					}
					for _, pl := range lists {
						fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d items\n", pl.Name, len(pl.IDs))
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "import <name> <file.json>",
			Short: "Store a JSON array of record IDs; unknown IDs are dropped",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := os.ReadFile(args[1])
				if err != nil {
					return err
				}
				return withApp(cmd, flags, func(a *app) error {
					kept, dropped, err := a.library.ImportPlaylist(cmd.Context(), args[0], data)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "imported %q: %d kept, %d unknown dropped\n", args[0], kept, dropped)
					return nil
				})
			},
		},
		newPlaylistExportCmd(flags),
		newPlaylistImportWPLCmd(flags),
		newPlaylistExportWPLCmd(flags),
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a stored playlist",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, flags, func(a *app) error {
					return a.library.DeletePlaylist(cmd.Context(), args[0])
				})
			},
		},
	)
	return cmd
}

func newPlaylistExportCmd(flags *rootFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Write a playlist as a JSON array of record IDs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(a *app) error {
				data, err := a.library.ExportPlaylist(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeOutput(cmd, output, func(w io.Writer) error {
					_, err := w.Write(append(data, '\n'))
					return err
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func newPlaylistImportWPLCmd(flags *rootFlags) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "import-wpl <file.wpl>",
		Short: "Store a Windows Media Player playlist, matching its paths to records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := filesystem.OpenWithRetry(args[0], filesystem.DefaultRetryConfig())
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			return withApp(cmd, flags, func(a *app) error {
				stored, unresolved, err := a.library.ImportWPL(cmd.Context(), name, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %q\n", stored)
				for _, src := range unresolved {
					fmt.Fprintf(cmd.ErrOrStderr(), "  no record for %s\n", src)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "store under this name instead of the playlist title")
	return cmd
}

func newPlaylistExportWPLCmd(flags *rootFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export-wpl <name>",
		Short: "Write a playlist as a Windows Media Player playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(a *app) error {
				return writeOutput(cmd, output, func(w io.Writer) error {
					return a.library.ExportWPL(cmd.Context(), args[0], w)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}
