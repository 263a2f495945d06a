package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	host       string
	playerID   string
	playerName string
)

var rootCmd = &cobra.Command{
	Use:   "pong-cli",
	Short: "A CLI to interact with the ideal-pong server",
	Long: `A command-line interface for making requests to the various endpoints
of the ideal-pong application.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:8080", "The host address of the server")
	rootCmd.PersistentFlags().StringVar(&playerID, "player-id", "", "Player ID sent with tournament actions")
	rootCmd.PersistentFlags().StringVar(&playerName, "player-name", "", "Display name sent with tournament actions")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your command '%s'", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
