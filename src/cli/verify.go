package cli

import (
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <relation-a> <relation-b>",
	Short: "Compare two copies of a relation block by block",
	Long: `Verify masks away the differences replay is allowed to produce (LSNs of
unlogged cleanups, hint bits, unused space) and reports every block
where the two copies still disagree.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		return a.Verify(args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
