package main

import (
	"github.com/spf13/cobra"

	"media-library/internal/startup"
)

type rootFlags struct {
	library string
	quiet   bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "medialib",
		Short:         "medialib keeps a local video library indexed and previewed.",
		Version:       startup.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&flags.library, "library", "l", "", "library root directory (overrides LIBRARY_DIR)")
	root.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "skip the startup banner")

	root.AddCommand(
		newServeCmd(flags),
		newSyncCmd(flags),
		newProcessCmd(flags),
		newDurationsCmd(flags),
		newRegenerateCmd(flags),
		newExportCmd(flags),
		newExportSelectionCmd(flags),
		newPlaylistCmd(flags),
		newPurgeCmd(flags),
		newResetCmd(flags),
	)
	return root
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, flags *rootFlags, fn func(a *app) error) error {
	a, err := openApp(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
