// pkg/registry/registry.go
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	gwerrors "staffing-gateway/internal/common/errors"
	"staffing-gateway/internal/common/validation"
	"staffing-gateway/internal/gateway/routes"
)

// LoadCatalog reads a catalog file. An empty path loads the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse validates data against the catalog schema and decodes it. Schema
// violations are reported together as one configuration error.
func Parse(data []byte) (*Catalog, error) {
	result, err := validation.ValidateJSON(catalogSchema, data)
	if err != nil {
		return nil, gwerrors.NewConfigurationError(fmt.Sprintf("catalog is not valid JSON: %v", err))
	}
	if !result.Valid {
		return nil, gwerrors.NewConfigurationError(
			"catalog schema violations: " + strings.Join(result.GetErrorMessages(), "; "))
	}

	var cat Catalog
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cat); err != nil {
		return nil, gwerrors.NewConfigurationError(fmt.Sprintf("decode catalog: %v", err))
	}
	return &cat, nil
}

// LoadTable loads the catalog at path and builds the route table from it.
func LoadTable(path string) (*routes.Table, *Catalog, error) {
	cat, err := LoadCatalog(path)
	if err != nil {
		return nil, nil, err
	}
	table, err := routes.NewTable(cat.Descriptors())
	if err != nil {
		return nil, nil, err
	}
	return table, cat, nil
}
