package cli

import (
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <segment>",
	Short: "Replay a log segment against the data directory",
	Long: `Replay applies every record of the given log segment to the relation
files in the data directory, finishes any action the segment left
incomplete, and flushes the result back to disk.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.OpenStore(flagDataDir); err != nil {
			return err
		}
		return a.Replay(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
