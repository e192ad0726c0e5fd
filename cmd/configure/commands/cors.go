package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benvon/taskboard/internal/database"
	"github.com/benvon/taskboard/internal/models"
)

// NewCorsCmd creates the cors configuration command with list and set subcommands
func NewCorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage CORS configuration",
		Long:  "List or update CORS allowed origins and options (stored in database). The same origins may open notification websockets.",
	}
	cmd.AddCommand(newCorsListCmd())
	cmd.AddCommand(newCorsSetCmd())
	return cmd
}

func newCorsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current CORS configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			c, err := database.NewCorsConfigRepository(db).Get(context.Background())
			if err != nil {
				return fmt.Errorf("get cors config: %w", err)
			}
			if c == nil {
				fmt.Println("No CORS configuration in database. Use 'cors set' to add one.")
				return nil
			}
			fmt.Println("CORS configuration:")
			fmt.Printf("  Allowed origins: %s\n", strings.Join(c.AllowedOrigins, ", "))
			fmt.Printf("  Allow credentials: %v\n", c.AllowCredentials)
			fmt.Printf("  Max-Age: %d\n", c.MaxAge)
			return nil
		},
	}
}

func newCorsSetCmd() *cobra.Command {
	var origins string
	var allowCreds bool
	var maxAge int
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set CORS configuration",
		Long:  "Update CORS allowed origins (comma-separated). Stored in database; running servers pick it up within a minute.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &models.CorsConfig{
				AllowedOrigins:   models.ParseOrigins(origins),
				AllowCredentials: allowCreds,
				MaxAge:           maxAge,
			}
			if err := c.Validate(); err != nil {
				return fmt.Errorf("--origins: %w", err)
			}
			db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := database.NewCorsConfigRepository(db).Set(context.Background(), c); err != nil {
				return fmt.Errorf("set cors config: %w", err)
			}
			fmt.Printf("CORS configuration updated (%d origins).\n", len(c.AllowedOrigins))
			return nil
		},
	}
	cmd.Flags().StringVar(&origins, "origins", "", "Comma-separated allowed origins (required)")
	cmd.Flags().BoolVar(&allowCreds, "allow-credentials", true, "Allow credentials (needed for the session cookie)")
	cmd.Flags().IntVar(&maxAge, "max-age", 600, "Access-Control-Max-Age (seconds)")
	return cmd
}
