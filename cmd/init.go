package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/twinpilot/internal/config"
	"github.com/ziadkadry99/twinpilot/internal/persona"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up a twin with an interactive wizard",
	Long:  `Runs an interactive wizard to configure your twin, writes .twinpilot.yml, and seeds the persona's default voice and policy rules.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.RunWizard(cfgFile)
		if err != nil {
			return err
		}

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		_, err = persona.NewStore(database).EnsureDefault(cmd.Context(), cfg.PersonaID)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
