package routes

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
)

// PaginationStyle records which list shape an upstream endpoint returns.
// The gateway passes both through untouched.
type PaginationStyle string

const (
	// PaginationNone marks non-list or unpaginated endpoints.
	PaginationNone PaginationStyle = ""
	// PaginationOffset: { data: [...], meta: { limit, offset, returned, hasMore } }
	PaginationOffset PaginationStyle = "offset"
	// PaginationPage: { data: [...], page, per_page, total, total_pages }
	PaginationPage PaginationStyle = "page"
)

// VerbSpec is the per-verb part of a descriptor.
type VerbSpec struct {
	// Query lists the inbound query keys forwarded upstream. Everything
	// else is dropped.
	Query []string
	// Body marks verbs whose request body is forwarded.
	Body bool
	// TransportError overrides the message reported when the upstream
	// cannot be reached.
	TransportError string
}

// Descriptor is the immutable configuration of one resource route.
type Descriptor struct {
	Name         string
	Label        string
	Path         string
	UpstreamPath string
	Verbs        map[string]VerbSpec
	Bulk         bool
	Pagination   PaginationStyle
}

var (
	slotPattern    = regexp.MustCompile(`^\{([A-Za-z_][A-Za-z0-9_]*)\}$`)
	allowedMethods = map[string]bool{
		http.MethodGet:    true,
		http.MethodPost:   true,
		http.MethodPut:    true,
		http.MethodPatch:  true,
		http.MethodDelete: true,
	}
)

// Slots returns the path-parameter names of the local path template in
// order of appearance.
func (d Descriptor) Slots() []string {
	return templateSlots(d.Path)
}

// Methods returns the declared verbs, sorted.
func (d Descriptor) Methods() []string {
	out := make([]string, 0, len(d.Verbs))
	for m := range d.Verbs {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Verb looks up the spec for method.
func (d Descriptor) Verb(method string) (VerbSpec, bool) {
	spec, ok := d.Verbs[strings.ToUpper(method)]
	return spec, ok
}

// TransportMessage is the error text shown when the upstream call for
// method cannot complete.
func (d Descriptor) TransportMessage(method string) string {
	if spec, ok := d.Verb(method); ok && spec.TransportError != "" {
		return spec.TransportError
	}
	label := d.Label
	if label == "" {
		label = d.Name
	}
	switch strings.ToUpper(method) {
	case http.MethodGet:
		return fmt.Sprintf("Failed to fetch %s from external API", label)
	case http.MethodPost:
		return fmt.Sprintf("Failed to create %s in external API", label)
	case http.MethodPut, http.MethodPatch:
		return fmt.Sprintf("Failed to update %s in external API", label)
	case http.MethodDelete:
		return fmt.Sprintf("Failed to delete %s in external API", label)
	}
	return fmt.Sprintf("Failed to reach external API for %s", label)
}

func templateSlots(tmpl string) []string {
	var slots []string
	for _, seg := range strings.Split(tmpl, "/") {
		if m := slotPattern.FindStringSubmatch(seg); m != nil {
			slots = append(slots, m[1])
		}
	}
	return slots
}

// shape replaces slot names so two templates that route identically
// compare equal.
func shape(tmpl string) string {
	segs := strings.Split(tmpl, "/")
	for i, seg := range segs {
		if slotPattern.MatchString(seg) {
			segs[i] = "{}"
		}
	}
	return strings.Join(segs, "/")
}

func (d Descriptor) validate() []string {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf("%s: ", d.Name)+fmt.Sprintf(format, args...))
	}

	if d.Name == "" {
		return []string{"descriptor without name"}
	}
	for _, tmpl := range []struct{ field, value string }{{"path", d.Path}, {"upstream_path", d.UpstreamPath}} {
		if !strings.HasPrefix(tmpl.value, "/") {
			add("%s %q must start with /", tmpl.field, tmpl.value)
			continue
		}
		for _, seg := range strings.Split(tmpl.value, "/")[1:] {
			if seg == "" {
				add("%s %q has an empty segment", tmpl.field, tmpl.value)
				break
			}
			if strings.ContainsAny(seg, "{}") && !slotPattern.MatchString(seg) {
				add("%s %q has malformed slot %q", tmpl.field, tmpl.value, seg)
			}
			if strings.ContainsAny(seg, "?#") {
				add("%s %q must not contain a query or fragment", tmpl.field, tmpl.value)
			}
		}
	}

	local := map[string]bool{}
	for _, s := range templateSlots(d.Path) {
		if local[s] {
			add("slot {%s} appears twice in path", s)
		}
		local[s] = true
	}
	for _, s := range templateSlots(d.UpstreamPath) {
		if !local[s] {
			add("upstream slot {%s} is not bound by path %q", s, d.Path)
		}
	}

	if len(d.Verbs) == 0 {
		add("no verbs declared")
	}
	for method, spec := range d.Verbs {
		if !allowedMethods[method] {
			add("unsupported verb %q", method)
		}
		seen := map[string]bool{}
		for _, key := range spec.Query {
			if key == "" {
				add("%s declares an empty query key", method)
			}
			if seen[key] {
				add("%s declares query key %q twice", method, key)
			}
			seen[key] = true
		}
		if spec.Body && (method == http.MethodGet || method == http.MethodDelete) {
			add("%s cannot carry a body", method)
		}
	}

	if d.Bulk {
		spec, ok := d.Verbs[http.MethodPost]
		if !ok || len(d.Verbs) != 1 {
			add("bulk operations declare exactly POST")
		} else {
			if !spec.Body {
				add("bulk POST must forward its body")
			}
			if len(spec.Query) > 0 {
				add("bulk POST does not translate query parameters")
			}
		}
		if len(local) > 0 {
			add("bulk operations use a fixed path")
		}
	}

	switch d.Pagination {
	case PaginationNone, PaginationOffset, PaginationPage:
	default:
		add("unknown pagination style %q", d.Pagination)
	}

	return problems
}
