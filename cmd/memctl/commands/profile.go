package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tutorgrid/memory-api/internal/config"
	"github.com/tutorgrid/memory-api/internal/database"
)

// NewProfileCmd creates the profile command
func NewProfileCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "profile <user-id>",
		Short: "Show a user's learning profile",
		Long:  "Show the consolidated learning profile for a user, creating a default one if none exists",
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

			repo := database.NewProfileRepository(db)
			profile, err := repo.GetOrCreate(context.Background(), userID)
			if err != nil {
				return fmt.Errorf("failed to load profile: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(profile)
			}

			fmt.Printf("Profile for user: %s\n", profile.UserID)
			if profile.Preferences.LearningStyle != nil {
				fmt.Printf("  Learning style:  %s\n", *profile.Preferences.LearningStyle)
			}
			if profile.Preferences.DifficultyPreference != nil {
				fmt.Printf("  Difficulty:      %s\n", *profile.Preferences.DifficultyPreference)
			}
			fmt.Printf("  Sessions:        %d\n", profile.Statistics.TotalSessions)
			fmt.Printf("  Questions:       %d\n", profile.Statistics.TotalQuestions)
			fmt.Printf("  Avg session len: %.2f\n", profile.Statistics.AvgSessionLength)
			if len(profile.WeakPoints) > 0 {
				fmt.Println("  Weak points:")
				for _, wp := range profile.WeakPoints {
					fmt.Printf("    - %s (confusion %d)\n", wp.Concept, wp.ConfusionScore)
				}
			}
			if len(profile.KnowledgeGraph) > 0 {
				fmt.Printf("  Concepts tracked: %d\n", len(profile.KnowledgeGraph))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the profile as JSON")

	return cmd
}
