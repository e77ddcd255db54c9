// Package cli implements the crosstalk CLI commands.
package cli

import (
	"fmt"

	"github.com/HendryAvila/crosstalk/internal/config"
	"github.com/HendryAvila/crosstalk/internal/hub"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgPath     string
	dataDirFlag string

	cfg    config.Config
	logger *zap.Logger
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "crosstalk",
	Short: "Local chat hub for AI CLI sessions",
	Long: "crosstalk connects AI assistant sessions running on one machine.\n" +
		"It serves MCP tools over stdio for messaging, collaboration requests,\n" +
		"and a shared context store, plus read-only commands to inspect the hub.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if dataDirFlag != "" {
			cfg.DataDir = dataDirFlag
		}

		// stdout carries the MCP transport when serving, so all logging
		// goes to stderr.
		zc := zap.NewProductionConfig()
		zc.OutputPaths = []string{"stderr"}
		zc.ErrorOutputPaths = []string{"stderr"}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Config file path (default: ~/.crosstalk/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dataDirFlag, "data-dir", "d", "", "Data directory (default: ~/.crosstalk)")
}

// openStore opens the hub store for the inspection commands.
func openStore() (*hub.Store, error) {
	storeCfg := hub.DefaultConfig()
	storeCfg.DataDir = cfg.DataDir
	return hub.Open(storeCfg)
}
