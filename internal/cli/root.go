// Package cli implements the wayctl command-line tool: webhook replay,
// synthetic payload seeding, and failed-delivery inspection.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wayctl",
	Short: "Waypost operations CLI",
	Long: `wayctl is the operations tool for the waypost ingestion pipeline.

Replay recorded webhook payloads against an instance, seed synthetic
location and trip events, and inspect failed sink deliveries awaiting
re-drive.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("url", "http://localhost:8080/webhook-endpoint", "webhook endpoint URL")
}
