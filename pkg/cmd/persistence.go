// Package cmd provides common initialization for the command-line binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coreza/coreza/pkg/persistence"
	"github.com/coreza/coreza/pkg/persistence/file"
	"github.com/coreza/coreza/pkg/persistence/postgresql"
)

// NewPersistence creates the persistence backend for the given database URL.
// postgres:// URLs get the PostgreSQL backend; anything else falls back to
// the file backend, treating the URL as a directory path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to initialize postgresql persistence: %w", err))
		}

		return p
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"))
	}
}
