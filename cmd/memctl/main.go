package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tutorgrid/memory-api/cmd/memctl/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "memctl",
		Short: "Operations tool for the memory API",
		Long:  "CLI tool for inspecting user profiles, session summaries, and service connectivity",
	}

	rootCmd.AddCommand(commands.NewProfileCmd())
	rootCmd.AddCommand(commands.NewSessionsCmd())
	rootCmd.AddCommand(commands.NewTestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
