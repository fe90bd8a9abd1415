// Package cmd provides shared constructors for the command-line entrypoints.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bevelworks/cadent/pkg/store"
	"github.com/bevelworks/cadent/pkg/store/file"
	"github.com/bevelworks/cadent/pkg/store/postgresql"
)

// NewStore selects the store backend from the database URL scheme:
// "postgres://" and "postgresql://" get the PostgreSQL store, anything else
// falls back to the file store.
func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) store.Store {
	scheme, _, _ := strings.Cut(databaseURL, "://")

	switch scheme {
	case "postgres", "postgresql":
		st, err := postgresql.NewStore(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL store: %w", err))
		}

		return st
	default:
		return file.NewStore(databaseURL)
	}
}
