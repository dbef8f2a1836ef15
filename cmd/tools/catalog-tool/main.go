// cmd/tools/catalog-tool/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"staffing-gateway/internal/gateway/query"
	"staffing-gateway/internal/gateway/routes"
	"staffing-gateway/pkg/registry"
)

var catalogPath string

// paramFlags collects repeated -param key=value flags.
type paramFlags map[string]string

func (p paramFlags) String() string { return fmt.Sprint(map[string]string(p)) }

func (p paramFlags) Set(v string) error {
	key, val, ok := strings.Cut(v, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	p[key] = val
	return nil
}

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	resolveCmd := flag.NewFlagSet("resolve", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{validateCmd, listCmd, resolveCmd, updateCmd} {
		fs.StringVar(&catalogPath, "path", "", "Path to catalog file (empty uses the built-in catalog)")
	}

	// List command flags
	tag := listCmd.String("tag", "", "Only list resources carrying this tag")

	// Resolve command flags
	resource := resolveCmd.String("resource", "", "Resource name (e.g., technician-schedule)")
	method := resolveCmd.String("method", "GET", "HTTP verb")
	rawQuery := resolveCmd.String("query", "", "Inbound query string (e.g., from_date=2024-01-01&x=1)")
	params := paramFlags{}
	resolveCmd.Var(params, "param", "Path parameter key=value (repeatable)")

	// Update command flags
	nameUpdate := updateCmd.String("resource", "", "Resource to update")
	field := updateCmd.String("field", "", "Field to update (label, description, pagination)")
	value := updateCmd.String("value", "", "New value for the field")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		err = validateCatalog(os.Stdout, catalogPath)

	case "list":
		listCmd.Parse(os.Args[2:])
		err = listResources(os.Stdout, catalogPath, *tag)

	case "resolve":
		resolveCmd.Parse(os.Args[2:])
		if *resource == "" {
			fmt.Println("Error: resource is required for resolve.")
			resolveCmd.Usage()
			os.Exit(1)
		}
		err = resolve(os.Stdout, catalogPath, *resource, *method, params, *rawQuery)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if catalogPath == "" || *nameUpdate == "" || *field == "" {
			fmt.Println("Error: path, resource and field are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		err = updateResource(catalogPath, *nameUpdate, *field, *value)
		if err == nil {
			fmt.Printf("Updated resource %s, field %s to %q\n", *nameUpdate, *field, *value)
		}

	case "help":
		fallthrough
	default:
		help()
		return
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// validateCatalog runs the same checks the gateway runs at startup.
func validateCatalog(w io.Writer, path string) error {
	table, cat, err := registry.LoadTable(path)
	if err != nil {
		return fmt.Errorf("catalog validation failed: %w", err)
	}
	routeCount := 0
	for _, d := range table.Descriptors() {
		routeCount += len(d.Verbs)
	}
	fmt.Fprintf(w, "Catalog validation passed. Version %s, %d resources, %d routes.\n",
		cat.Version, table.Len(), routeCount)
	return nil
}

func listResources(w io.Writer, path, tag string) error {
	cat, err := registry.LoadCatalog(path)
	if err != nil {
		return err
	}
	resources := cat.Resources
	if tag != "" {
		resources = cat.ByTag(tag)
	}
	for _, r := range resources {
		d := r.Descriptor()
		extra := ""
		if d.Bulk {
			extra = " [bulk]"
		} else if d.Pagination != routes.PaginationNone {
			extra = fmt.Sprintf(" [%s pagination]", d.Pagination)
		}
		fmt.Fprintf(w, "%-30s %-22s %-50s -> %s%s\n",
			r.Name, strings.Join(d.Methods(), ","), d.Path, d.UpstreamPath, extra)
	}
	return nil
}

// resolve prints the outbound request the gateway would issue.
func resolve(w io.Writer, path, resource, method string, params map[string]string, rawQuery string) error {
	table, _, err := registry.LoadTable(path)
	if err != nil {
		return err
	}
	method = strings.ToUpper(method)
	upstreamPath, err := table.Resolve(resource, method, params)
	if err != nil {
		return err
	}
	d, _ := table.Descriptor(resource)
	spec, _ := d.Verb(method)

	out := upstreamPath
	if !d.Bulk && rawQuery != "" {
		in := query.Parse(rawQuery)
		if q := query.Encode(query.Translate(in, spec.Query)); q != "" {
			out += "?" + q
		}
		if dropped := query.Dropped(in, spec.Query); len(dropped) > 0 {
			fmt.Fprintf(w, "dropped: %s\n", strings.Join(dropped, ","))
		}
	}
	fmt.Fprintf(w, "%s %s\n", method, out)
	return nil
}

func updateResource(path, name, field, value string) error {
	cat, err := registry.LoadCatalog(path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	found := false
	for i := range cat.Resources {
		if cat.Resources[i].Name != name {
			continue
		}
		found = true
		switch field {
		case "label":
			cat.Resources[i].Label = value
		case "description":
			cat.Resources[i].Description = value
		case "pagination":
			cat.Resources[i].Pagination = value
		default:
			return fmt.Errorf("unknown field: %s", field)
		}
		break
	}
	if !found {
		return fmt.Errorf("resource %s not found", name)
	}

	cat.LastUpdated = time.Now().Format("2006-01-02")
	return saveCatalog(cat, path)
}

// saveCatalog re-validates before writing so a bad edit never lands on disk.
func saveCatalog(cat *registry.Catalog, path string) error {
	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if _, err := registry.Parse(data); err != nil {
		return err
	}
	if _, err := routes.NewTable(cat.Descriptors()); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return nil
}

func help() {
	fmt.Print(`
Usage: catalog-tool <command> [flags]

Commands:
  validate  Validate a catalog exactly as the gateway does at startup
  list      List resources, verbs and upstream paths
  resolve   Show the outbound request for a resource, verb, params and query
  update    Update a resource field in a catalog file
  help      Show this help message

Examples:
  catalog-tool validate -path configs/resources.json
  catalog-tool list -tag bulk
  catalog-tool resolve -resource technician-schedule -param id=T-7 -query "from_date=2024-01-01&bogus=1"
  catalog-tool update -path configs/resources.json -resource inventory -field pagination -value offset

Use 'catalog-tool <command> -h' for more information about a command.
` + "\n")
}
