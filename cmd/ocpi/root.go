package main

import (
	"fmt"

	"ocpi/internal/config"
	"ocpi/internal/logging"

	"github.com/spf13/cobra"
)

type app struct {
	cfgFile string
	cfg     *config.Config
	log     *logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "ocpi",
		Short:        "Roaming adapter between the charging core and eMSP partners",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			a.log = logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
			logging.SetDefault(a.log)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (yaml)")

	root.AddCommand(newServeCmd(a), newMigrateCmd(a))
	return root
}
