// pkg/registry/schema.go
package registry

import (
	_ "embed"
	"net/http"
	"sort"

	"staffing-gateway/internal/gateway/routes"
)

//go:embed catalog.schema.json
var catalogSchema []byte

//go:embed resources.json
var defaultCatalog []byte

// Catalog is the on-disk form of the resource route table.
type Catalog struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated,omitempty"`
	Resources   []Resource `json:"resources"`
}

type Resource struct {
	Name         string          `json:"name"`
	Label        string          `json:"label,omitempty"`
	Description  string          `json:"description,omitempty"`
	Path         string          `json:"path"`
	UpstreamPath string          `json:"upstreamPath"`
	Bulk         bool            `json:"bulk,omitempty"`
	Pagination   string          `json:"pagination,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	Verbs        map[string]Verb `json:"verbs"`
}

type Verb struct {
	Query          []string `json:"query,omitempty"`
	Body           bool     `json:"body,omitempty"`
	TransportError string   `json:"transportError,omitempty"`
}

// Schema returns the JSON schema catalogs are checked against.
func Schema() []byte {
	return append([]byte(nil), catalogSchema...)
}

// Descriptor converts r into a route descriptor.
func (r Resource) Descriptor() routes.Descriptor {
	verbs := make(map[string]routes.VerbSpec, len(r.Verbs))
	for method, v := range r.Verbs {
		verbs[method] = routes.VerbSpec{
			Query:          append([]string(nil), v.Query...),
			Body:           v.Body,
			TransportError: v.TransportError,
		}
	}
	return routes.Descriptor{
		Name:         r.Name,
		Label:        r.Label,
		Path:         r.Path,
		UpstreamPath: r.UpstreamPath,
		Verbs:        verbs,
		Bulk:         r.Bulk,
		Pagination:   routes.PaginationStyle(r.Pagination),
	}
}

// Descriptors converts every resource, in catalog order.
func (c *Catalog) Descriptors() []routes.Descriptor {
	out := make([]routes.Descriptor, 0, len(c.Resources))
	for _, r := range c.Resources {
		out = append(out, r.Descriptor())
	}
	return out
}

// Names returns the resource names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Resources))
	for _, r := range c.Resources {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// ByTag returns the resources carrying tag.
func (c *Catalog) ByTag(tag string) []Resource {
	var out []Resource
	for _, r := range c.Resources {
		for _, t := range r.Tags {
			if t == tag {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// Find looks up a resource by name.
func (c *Catalog) Find(name string) (Resource, bool) {
	for _, r := range c.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return Resource{}, false
}

// ReadOnly reports whether the resource only declares GET.
func (r Resource) ReadOnly() bool {
	_, hasGet := r.Verbs[http.MethodGet]
	return hasGet && len(r.Verbs) == 1
}
