package cli

import (
	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe <segment>",
	Short: "Print a per-record summary of a log segment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		return a.Describe(args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
