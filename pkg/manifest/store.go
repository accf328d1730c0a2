// Package manifest loads and serves node type manifests.
//
// Manifests are read once at process startup, validated against a JSON
// schema, and held in an immutable in-memory store. A set of builtin
// manifests ships embedded in the binary; an optional directory of *.json
// files can extend or override them.
package manifest

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/coreza/coreza/pkg/models"
)

//go:embed schema.json
var schemaJSON string

//go:embed builtin/*.json
var builtinFS embed.FS

var ErrManifestNotFound = errors.New("manifest not found")

// NotFoundError reports a node type with no registered manifest.
type NotFoundError struct {
	NodeType string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("manifest not found for node type %q", e.NodeType)
}

func (e *NotFoundError) Unwrap() error {
	return ErrManifestNotFound
}

// Store is an immutable manifest lookup table keyed by manifest name.
type Store struct {
	logger    *slog.Logger
	manifests map[string]*models.Manifest
}

// NewStore loads only the embedded builtin manifests.
func NewStore(logger *slog.Logger) (*Store, error) {
	return Load(logger, "")
}

// Load builds a store from the builtin manifests plus, when dir is
// non-empty, every *.json file under dir. A directory manifest with the
// same name as a builtin replaces it.
func Load(logger *slog.Logger, dir string) (*Store, error) {
	store := &Store{
		logger:    logger.With("module", "manifest"),
		manifests: make(map[string]*models.Manifest),
	}

	entries, err := fs.Glob(builtinFS, "builtin/*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list builtin manifests: %w", err)
	}

	for _, entry := range entries {
		data, err := builtinFS.ReadFile(entry)
		if err != nil {
			return nil, fmt.Errorf("failed to read builtin manifest %s: %w", entry, err)
		}

		if err := store.add(entry, data); err != nil {
			return nil, err
		}
	}

	if dir != "" {
		files, err := filepath.Glob(filepath.Join(dir, "*.json"))
		if err != nil {
			return nil, fmt.Errorf("failed to list manifest directory %s: %w", dir, err)
		}

		for _, file := range files {
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("failed to read manifest %s: %w", file, err)
			}

			if err := store.add(file, data); err != nil {
				return nil, err
			}
		}
	}

	store.logger.Info("Loaded manifests", "count", len(store.manifests))

	return store, nil
}

func (s *Store) add(source string, data []byte) error {
	if err := validateSchema(data); err != nil {
		return fmt.Errorf("invalid manifest %s: %w", source, err)
	}

	var m models.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to parse manifest %s: %w", source, err)
	}

	if _, exists := s.manifests[m.Name]; exists {
		s.logger.Warn("Replacing manifest", "name", m.Name, "source", source)
	}

	s.manifests[m.Name] = &m

	return nil
}

func validateSchema(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	dataLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}

		return fmt.Errorf("schema validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Get returns the manifest for a node type.
func (s *Store) Get(nodeType string) (*models.Manifest, error) {
	m, ok := s.manifests[nodeType]
	if !ok {
		return nil, &NotFoundError{NodeType: nodeType}
	}

	return m, nil
}

// Names lists the registered manifest names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.manifests))
	for name := range s.manifests {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
