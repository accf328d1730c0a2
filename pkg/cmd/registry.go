package cmd

import (
	"fmt"
	"log/slog"

	"github.com/coreza/coreza/pkg/handlers"
	"github.com/coreza/coreza/pkg/handlers/comparator"
	"github.com/coreza/coreza/pkg/handlers/indicator"
	"github.com/coreza/coreza/pkg/handlers/market"
)

// NewRegistry builds the handler registry with every native handler
// registered and validates it, so a broken registration fails at startup.
func NewRegistry(logger *slog.Logger) *handlers.Registry {
	registry := handlers.NewRegistry(logger)

	indicator.Register(registry)
	comparator.Register(registry)
	market.Register(registry)

	if err := registry.Validate(); err != nil {
		panic(fmt.Errorf("handler registry validation failed: %w", err))
	}

	logger.Info("Handler registry initialized", "handlers", registry.Len())

	return registry
}
