package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const cliName = "resock"

var rootCmd = &cobra.Command{
	Use:   cliName,
	Short: "resock is a reconnecting WebSocket client",
	Long:  "resock connects to a WebSocket endpoint, keeps the connection alive with automatic reconnects and relays stdin lines as text frames.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing %s: %v\n", cliName, err)
		os.Exit(1)
	}
}
