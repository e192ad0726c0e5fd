package commands

import (
	"fmt"
	"os"

	"github.com/benvon/taskboard/internal/config"
	"github.com/benvon/taskboard/internal/database"
)

// openDatabase loads the server config and connects to its database. The
// returned func closes the connection.
func openDatabase() (*database.DB, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
