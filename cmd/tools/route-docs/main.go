// cmd/tools/route-docs/main.go
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"staffing-gateway/internal/gateway/routes"
	"staffing-gateway/pkg/registry"
)

// RouteData holds data for templates
type RouteData struct {
	Name         string
	Label        string
	Description  string
	LocalPath    string
	UpstreamPath string
	Bulk         bool
	Pagination   string
	Tags         []string
	Verbs        []VerbData
}

type VerbData struct {
	Method         string
	Query          []string
	Body           bool
	TransportError string
}

// DocData is the root template value.
type DocData struct {
	Version    string
	Prefix     string
	Routes     []RouteData
	OffsetList []string
	PageList   []string
}

// paginationShape renders the list shape a pagination style passes through.
func paginationShape(style string) string {
	switch routes.PaginationStyle(style) {
	case routes.PaginationOffset:
		return "`{ data: [...], meta: { limit, offset, returned, hasMore } }`"
	case routes.PaginationPage:
		return "`{ data: [...], page, per_page, total, total_pages }`"
	}
	return "not paginated"
}

func codeList(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = "`" + it + "`"
	}
	return strings.Join(quoted, ", ")
}

const docTemplate = `# Gateway route reference

Catalog version {{ .Version }}. Every route answers with the envelope
` + "`{ success, data }`" + ` or ` + "`{ success, error, details? }`" + ` and ` + "`Cache-Control: no-store`" + `.

## Pagination shapes

List endpoints pass the upstream pagination through unchanged, so two
shapes exist side by side.

- offset: {{ paginationShape "offset" }}, used by {{ codeList .OffsetList }}
- page: {{ paginationShape "page" }}, used by {{ codeList .PageList }}

## Routes
{{ range .Routes }}{{ $route := . }}
### {{ .Name }}{{ if .Bulk }} (bulk){{ end }}
{{ if .Description }}
{{ .Description }}
{{ end }}
- Local: ` + "`{{ $.Prefix }}{{ .LocalPath }}`" + `
- Upstream: ` + "`{{ .UpstreamPath }}`" + `
- Pagination: {{ paginationShape .Pagination }}
{{- if .Tags }}
- Tags: {{ codeList .Tags }}
{{- end }}

| Verb | Query whitelist | Body | Transport error |
|---|---|---|---|
{{- range .Verbs }}
| {{ .Method }} | {{ if $route.Bulk }}n/a{{ else }}{{ codeList .Query }}{{ end }} | {{ if .Body }}forwarded{{ else }}none{{ end }} | {{ .TransportError }} |
{{- end }}
{{ end }}`

func buildData(cat *registry.Catalog, prefix string) DocData {
	data := DocData{Version: cat.Version, Prefix: strings.TrimRight(prefix, "/")}
	for _, r := range cat.Resources {
		d := r.Descriptor()
		rd := RouteData{
			Name:         r.Name,
			Label:        r.Label,
			Description:  r.Description,
			LocalPath:    r.Path,
			UpstreamPath: r.UpstreamPath,
			Bulk:         r.Bulk,
			Pagination:   r.Pagination,
			Tags:         r.Tags,
		}
		for _, m := range d.Methods() {
			spec, _ := d.Verb(m)
			rd.Verbs = append(rd.Verbs, VerbData{
				Method:         m,
				Query:          spec.Query,
				Body:           spec.Body,
				TransportError: d.TransportMessage(m),
			})
		}
		data.Routes = append(data.Routes, rd)

		switch routes.PaginationStyle(r.Pagination) {
		case routes.PaginationOffset:
			data.OffsetList = append(data.OffsetList, r.Name)
		case routes.PaginationPage:
			data.PageList = append(data.PageList, r.Name)
		}
	}
	sort.Strings(data.OffsetList)
	sort.Strings(data.PageList)
	return data
}

func render(w io.Writer, data DocData) error {
	funcMap := template.FuncMap{
		"paginationShape": paginationShape,
		"codeList":        codeList,
	}
	tmpl, err := template.New("routes.md").Funcs(funcMap).Parse(docTemplate)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	return tmpl.Execute(w, data)
}

func main() {
	catalogPath := flag.String("catalog", "", "Path to the catalog JSON file (empty uses the built-in catalog)")
	output := flag.String("output", "", "Output markdown file (empty writes to stdout)")
	prefix := flag.String("prefix", "/api", "Local path prefix the gateway mounts routes under")
	flag.Parse()

	cat, err := registry.LoadCatalog(*catalogPath)
	if err != nil {
		fmt.Printf("Error loading catalog: %v\n", err)
		os.Exit(1)
	}

	var w io.Writer = os.Stdout
	if *output != "" {
		if err := os.MkdirAll(filepath.Dir(*output), 0755); err != nil {
			fmt.Printf("Error creating directory: %v\n", err)
			os.Exit(1)
		}
		file, err := os.Create(*output)
		if err != nil {
			fmt.Printf("Error creating file %s: %v\n", *output, err)
			os.Exit(1)
		}
		defer file.Close()
		w = file
	}

	if err := render(w, buildData(cat, *prefix)); err != nil {
		fmt.Printf("Error rendering routes: %v\n", err)
		os.Exit(1)
	}
	if *output != "" {
		fmt.Printf("Generated %s (%d routes)\n", *output, len(cat.Resources))
	}
}
