package cli

import (
	"fmt"

	srv "github.com/HendryAvila/crosstalk/internal/server"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: "Serves the crosstalk MCP tools over stdio. This is the command an AI\n" +
		"CLI's MCP configuration should point at; each session runs its own\n" +
		"server process, all sharing one hub database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cleanup, err := srv.New(cfg, logger)
		defer cleanup()
		if err != nil {
			return fmt.Errorf("initializing server: %w", err)
		}

		logger.Info("crosstalk serving on stdio",
			zap.String("version", srv.Version),
			zap.String("data_dir", cfg.DataDir))
		if err := server.ServeStdio(s); err != nil {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the crosstalk version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("crosstalk", srv.Version)
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(versionCmd)
}
