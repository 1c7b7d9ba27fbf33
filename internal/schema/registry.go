package schema

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

var (
	registry   = make(map[string]*FormSchema)
	registryMu sync.RWMutex
)

func init() {
	if err := loadEmbedded(); err != nil {
		panic(fmt.Sprintf("schema registry: %v", err))
	}
}

// loadEmbedded parses every embedded schema document and registers it under
// its file name (newsletter_signups.json -> newsletter_signups).
func loadEmbedded() error {
	entries, err := fs.ReadDir(schemaFiles, "schemas")
	if err != nil {
		return err
	}

	for _, entry := range entries {
		data, err := fs.ReadFile(schemaFiles, path.Join("schemas", entry.Name()))
		if err != nil {
			return err
		}

		s, err := Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.Name(), err)
		}

		name := strings.TrimSuffix(entry.Name(), ".json")
		if s.Name == "" {
			s.Name = name
		}
		Register(name, s)
	}
	return nil
}

// Register adds a schema to the registry.
// Panics if the table name is already registered.
func Register(tableName string, s *FormSchema) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[tableName]; exists {
		panic(fmt.Sprintf("schema already registered: %s", tableName))
	}
	registry[tableName] = s
}

// Get returns the schema for a table name.
// Returns false if no schema is registered under that name.
func Get(tableName string) (*FormSchema, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	s, ok := registry[tableName]
	return s, ok
}

// Names returns all registered table names, sorted for consistent ordering.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered schemas.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}
