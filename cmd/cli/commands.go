package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	scoreGoal   int
	statusQuery string
	limit       int
	dryRun      bool
)

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(matchesCmd)
	rootCmd.AddCommand(tournamentCmd)
	rootCmd.AddCommand(jobCmd)

	leaderboardCmd.Flags().IntVar(&limit, "limit", 10, "Number of players to show")

	tournamentListCmd.Flags().StringVar(&statusQuery, "status", "", "Only list tournaments with this status")
	tournamentCreateCmd.Flags().IntVar(&scoreGoal, "goal", 0, "Points needed to win each match")
	tournamentCmd.AddCommand(tournamentListCmd, tournamentCreateCmd, tournamentShowCmd,
		tournamentJoinCmd, tournamentLeaveCmd, tournamentStartCmd, tournamentCancelCmd)

	jobCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Log notifications instead of sending them")
	jobCmd.AddCommand(
		jobCommand("check-stalled", "Restart or report stalled bracket matches"),
		jobCommand("archive", "Evict settled tournaments past their retention"),
		jobCommand("leaderboard", "Post the leaderboard to Slack"),
	)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/health", nil)
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Get application metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/metrics", nil)
	},
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the player leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/leaderboard?limit="+strconv.Itoa(limit), nil)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats [player-id]",
	Short: "Show statistics and recent matches for a player",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/players/"+args[0]+"/stats", nil)
	},
}

var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "List live matches",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/matches", nil)
	},
}

var tournamentCmd = &cobra.Command{
	Use:   "tournament",
	Short: "Manage tournaments",
}

var tournamentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tournaments",
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoint := "/tournaments"
		if statusQuery != "" {
			endpoint += "?status=" + statusQuery
		}
		return performRequest(http.MethodGet, endpoint, nil)
	},
}

var tournamentCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a tournament and join it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{"name": args[0]}
		if scoreGoal > 0 {
			body["scoreGoal"] = scoreGoal
		}
		return performRequest(http.MethodPost, "/tournaments", body)
	},
}

var tournamentShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a tournament and its bracket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/tournaments/"+args[0], nil)
	},
}

var tournamentJoinCmd = tournamentAction("join", "Join a waiting tournament")
var tournamentLeaveCmd = tournamentAction("leave", "Leave a waiting tournament")
var tournamentStartCmd = tournamentAction("start", "Start a tournament you created")
var tournamentCancelCmd = tournamentAction("cancel", "Cancel a tournament you created")

func tournamentAction(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return performRequest(http.MethodPost, "/tournaments/"+args[0]+"/"+action, nil)
		},
	}
}

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Trigger scheduled jobs",
}

func jobCommand(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint := "/jobs/" + name
			if dryRun {
				endpoint += "?dry_run=true"
			}
			return performRequest(http.MethodPost, endpoint, nil)
		},
	}
}

func performRequest(method, endpoint string, body any) error {
	url := host + endpoint
	fmt.Printf("Making request to %s %s\n", method, url)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if playerID != "" {
		req.Header.Set("X-Player-ID", playerID)
		req.Header.Set("X-Player-Name", playerName)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	fmt.Printf("Status Code: %d\n", resp.StatusCode)
	fmt.Println("Response Body:")
	fmt.Println(string(respBody))

	return nil
}
