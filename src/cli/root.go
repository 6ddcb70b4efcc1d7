package cli

import (
	"context"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Blackdeer1524/btredo/src/app"
)

var (
	flagEnvFile string
	flagDataDir string
)

var rootCmd = &cobra.Command{
	Use:           "btredo",
	Short:         "B-tree index log replay and inspection",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "optional .env file with BTREDO_* settings")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data", ".", "directory holding <id>.rel relation files")
}

// newApp builds the application from flags and environment, shared by every
// subcommand.
func newApp() (*app.App, error) {
	cfg, err := app.LoadConfig(flagEnvFile)
	if err != nil {
		return nil, err
	}

	log, err := app.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	return app.New(cfg, afero.NewOsFs(), log), nil
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
