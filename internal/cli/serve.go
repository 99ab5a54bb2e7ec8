package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hearthkeep/hearth/internal/daemon"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "Listen host (overrides config)")
	serveCmd.Flags().Int("port", 0, "Listen port (overrides config)")
	serveCmd.Flags().Bool("metrics", false, "Enable the /metrics endpoint")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Hearth API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.API.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.API.Port = port
	}
	if metrics, _ := cmd.Flags().GetBool("metrics"); metrics {
		cfg.Metrics.Enabled = true
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return daemon.Run(ctx, cfg)
}
