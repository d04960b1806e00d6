package catalog

import (
	"embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/catalog.yaml
var defaultFS embed.FS

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded built-in catalog. The catalog is parsed and
// validated once; a validation failure here is a build defect and is
// surfaced rather than papered over.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		data, err := defaultFS.ReadFile("defaults/catalog.yaml")
		if err != nil {
			defaultErr = fmt.Errorf("read embedded catalog: %w", err)
			return
		}
		defaultCatalog, defaultErr = Parse(data)
	})
	return defaultCatalog, defaultErr
}

// LoadFile loads and validates a catalog from a YAML file. Any malformed
// rule makes the whole load fail with ErrCatalogInvalid.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// Parse unmarshals and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogInvalid, err)
	}
	if err := cat.validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}
