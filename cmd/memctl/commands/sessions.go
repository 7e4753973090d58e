package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tutorgrid/memory-api/internal/config"
	"github.com/tutorgrid/memory-api/internal/database"
)

// NewSessionsCmd creates the sessions command
func NewSessionsCmd() *cobra.Command {
	var days int
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sessions <user-id>",
		Short: "List a user's recent session summaries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := args[0]

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
				}
			}()

			repo := database.NewSummaryRepository(db)
			summaries, err := repo.ListByUser(context.Background(), userID, days, limit)
			if err != nil {
				return fmt.Errorf("failed to list summaries: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(summaries)
			}

			if len(summaries) == 0 {
				fmt.Printf("No summaries for user %s in the last %d days\n", userID, days)
				return nil
			}

			fmt.Printf("Summaries for user %s (last %d days):\n", userID, days)
			for _, s := range summaries {
				fmt.Printf("  - Session: %s\n", s.SessionID)
				fmt.Printf("    Topic:   %s\n", s.CoreTopic)
				if len(s.KeyPoints) > 0 {
					fmt.Printf("    Key points: %s\n", strings.Join(s.KeyPoints, "; "))
				}
				fmt.Printf("    Messages: %d\n", s.MessageCount)
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Lookback window in days")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of summaries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summaries as JSON")

	return cmd
}
