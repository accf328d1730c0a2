// Package handlers provides the registry of node handler functions.
//
// Handlers are pure request/response callables: they receive the resolved
// node inputs (always including user_id and credential_id) and return an
// output mapping. The registry maps a stable (service, name) key to each
// handler and is populated and validated once at startup; dispatch never
// resolves handlers by reflection.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Func is the shape of a node handler.
type Func func(ctx context.Context, inputs map[string]any) (map[string]any, error)

// Key identifies a handler by the service and operation segments of its
// dispatch path: /alpaca/get_account registers as {alpaca get_account}.
type Key struct {
	Service string
	Name    string
}

func (k Key) String() string {
	return k.Service + "_" + k.Name
}

// Registry holds all registered handlers plus short aliases keyed by the
// last path segment (so /indicator/rsi resolves through the alias "rsi").
type Registry struct {
	logger   *slog.Logger
	handlers map[Key]Func
	aliases  map[string]Key
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger.With("module", "handler_registry"),
		handlers: make(map[Key]Func),
		aliases:  make(map[string]Key),
	}
}

// Register binds a handler to its (service, name) key. Registering the same
// key twice replaces the previous handler.
func (r *Registry) Register(service, name string, fn Func) {
	key := Key{Service: strings.ToLower(service), Name: strings.ToLower(name)}
	r.handlers[key] = fn
	r.logger.Debug("Registered handler", "service", key.Service, "name", key.Name)
}

// Alias binds a bare operation name to a fully-qualified handler key.
func (r *Registry) Alias(alias, service, name string) {
	r.aliases[strings.ToLower(alias)] = Key{Service: strings.ToLower(service), Name: strings.ToLower(name)}
}

// Lookup resolves a handler: aliases keyed by the final path segment first,
// then the exact (service, name) key.
func (r *Registry) Lookup(service, name string) (Func, bool) {
	name = strings.ToLower(name)

	if key, ok := r.aliases[name]; ok {
		if fn, ok := r.handlers[key]; ok {
			return fn, true
		}
	}

	fn, ok := r.handlers[Key{Service: strings.ToLower(service), Name: name}]

	return fn, ok
}

// Validate checks registry consistency. It runs once at startup so a broken
// registration fails the process rather than a run.
func (r *Registry) Validate() error {
	for key, fn := range r.handlers {
		if key.Service == "" || key.Name == "" {
			return fmt.Errorf("handler %q: %w", key, errors.New("empty service or name"))
		}

		if fn == nil {
			return fmt.Errorf("handler %q: %w", key, errors.New("nil handler func"))
		}
	}

	for alias, key := range r.aliases {
		if _, ok := r.handlers[key]; !ok {
			return fmt.Errorf("alias %q points to unregistered handler %q", alias, key)
		}
	}

	return nil
}

// Len returns the number of registered handlers, for startup logging.
func (r *Registry) Len() int {
	return len(r.handlers)
}
