package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate command
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Create or upgrade the board schema. The server also does this on start.",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := db.Migrate(ctx); err != nil {
				return err
			}
			fmt.Println("Database schema is up to date.")
			return nil
		},
	}
}
