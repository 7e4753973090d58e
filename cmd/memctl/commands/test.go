package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tutorgrid/memory-api/internal/cache"
	"github.com/tutorgrid/memory-api/internal/config"
	"github.com/tutorgrid/memory-api/internal/database"
	"github.com/tutorgrid/memory-api/internal/queue"
)

// NewTestCmd creates the test command
func NewTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test service connectivity",
		Long:  "Check connectivity to Postgres, Redis, and RabbitMQ using the loaded configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			failed := false

			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				fmt.Printf("✗ Postgres: %v\n", err)
				failed = true
			} else {
				defer func() {
					if err := db.Close(); err != nil {
						fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
					}
				}()
				if err := db.PingContext(ctx); err != nil {
					fmt.Printf("✗ Postgres: %v\n", err)
					failed = true
				} else {
					fmt.Println("✓ Postgres is reachable")
				}
			}

			c, err := cache.NewProfileCache(cfg.RedisURL, cache.DefaultTTL, nil)
			if err != nil {
				fmt.Printf("✗ Redis: %v\n", err)
				failed = true
			} else {
				fmt.Println("✓ Redis is reachable")
				if err := c.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close Redis connection: %v\n", err)
				}
			}

			if cfg.RabbitMQURL == "" {
				fmt.Println("- RabbitMQ not configured, skipping")
			} else {
				q, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
				if err != nil {
					fmt.Printf("✗ RabbitMQ: %v\n", err)
					failed = true
				} else {
					fmt.Println("✓ RabbitMQ is reachable")
					if err := q.Close(); err != nil {
						fmt.Fprintf(os.Stderr, "Warning: failed to close RabbitMQ connection: %v\n", err)
					}
				}
			}

			if failed {
				return fmt.Errorf("connectivity test failed")
			}
			fmt.Println("\n✓ All configured services are reachable")
			return nil
		},
	}

	return cmd
}
