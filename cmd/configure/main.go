package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/benvon/taskboard/cmd/configure/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "taskboard-configure",
		Short: "Configuration tool for the task board API",
		Long:  "CLI tool for configuring OIDC providers, CORS, rate limits and the database schema",
	}

	rootCmd.AddCommand(commands.NewOIDCCmd())
	rootCmd.AddCommand(commands.NewListCmd())
	rootCmd.AddCommand(commands.NewTestCmd())
	rootCmd.AddCommand(commands.NewCorsCmd())
	rootCmd.AddCommand(commands.NewRatelimitCmd())
	rootCmd.AddCommand(commands.NewMigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
