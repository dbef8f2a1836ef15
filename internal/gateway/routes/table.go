// Package routes holds the resource route table: the static mapping from a
// dashboard resource and verb to a path on the external management service.
package routes

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	gwerrors "staffing-gateway/internal/common/errors"
)

var (
	ErrUnknownResource  = errors.New("unknown resource")
	ErrVerbNotDeclared  = errors.New("verb not declared for resource")
	ErrMissingPathParam = errors.New("missing path parameter")
	ErrInvalidPathParam = errors.New("invalid path parameter")
)

// Table is built once at startup and only read afterwards.
type Table struct {
	byName map[string]Descriptor
	order  []string
}

// NewTable validates descriptors and freezes them into a Table. Every
// problem found is reported in a single configuration error.
func NewTable(descriptors []Descriptor) (*Table, error) {
	t := &Table{byName: make(map[string]Descriptor, len(descriptors))}

	var problems []string
	routed := map[string]string{}

	for _, d := range descriptors {
		problems = append(problems, d.validate()...)
		if d.Name == "" {
			continue
		}
		if _, dup := t.byName[d.Name]; dup {
			problems = append(problems, fmt.Sprintf("%s: duplicate resource name", d.Name))
			continue
		}
		for method := range d.Verbs {
			key := method + " " + shape(d.Path)
			if other, taken := routed[key]; taken {
				problems = append(problems, fmt.Sprintf("%s: %s %s already served by %s", d.Name, method, d.Path, other))
			}
			routed[key] = d.Name
		}

		t.byName[d.Name] = freeze(d)
		t.order = append(t.order, d.Name)
	}

	if len(problems) > 0 {
		return nil, gwerrors.NewConfigurationError(strings.Join(problems, "; "))
	}
	return t, nil
}

// freeze copies the descriptor's maps and slices so later mutation of the
// caller's values cannot leak into the table.
func freeze(d Descriptor) Descriptor {
	verbs := make(map[string]VerbSpec, len(d.Verbs))
	for m, spec := range d.Verbs {
		spec.Query = append([]string(nil), spec.Query...)
		verbs[m] = spec
	}
	d.Verbs = verbs
	return d
}

// Descriptor returns the named descriptor.
func (t *Table) Descriptor(name string) (Descriptor, bool) {
	d, ok := t.byName[name]
	return d, ok
}

// Descriptors returns all descriptors in registration order.
func (t *Table) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.byName[name])
	}
	return out
}

// Len reports the number of registered resources.
func (t *Table) Len() int {
	return len(t.order)
}

// Resolve returns the upstream path for resource and method with every
// slot replaced by its individually percent-encoded parameter.
func (t *Table) Resolve(resource, method string, params map[string]string) (string, error) {
	d, ok := t.byName[resource]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
	if _, ok := d.Verb(method); !ok {
		return "", fmt.Errorf("%w: %s %s", ErrVerbNotDeclared, strings.ToUpper(method), resource)
	}
	return Substitute(d.UpstreamPath, params)
}

// Substitute fills a path template.
func Substitute(tmpl string, params map[string]string) (string, error) {
	segs := strings.Split(tmpl, "/")
	for i, seg := range segs {
		m := slotPattern.FindStringSubmatch(seg)
		if m == nil {
			continue
		}
		val, ok := params[m[1]]
		if !ok || val == "" {
			return "", fmt.Errorf("%w: {%s} in %s", ErrMissingPathParam, m[1], tmpl)
		}
		// PathEscape leaves dots alone; a dot segment would be collapsed
		// by the upstream into a path no descriptor declares.
		if val == "." || val == ".." {
			return "", fmt.Errorf("%w: {%s}=%q in %s", ErrInvalidPathParam, m[1], val, tmpl)
		}
		segs[i] = url.PathEscape(val)
	}
	return strings.Join(segs, "/"), nil
}
