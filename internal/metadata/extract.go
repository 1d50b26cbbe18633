package metadata

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dlclark/regexp2"

	"eosearch/internal/errdefs"
	"eosearch/internal/logging"
	"eosearch/internal/pathquery"
	"eosearch/internal/transform"
)

// Discovery configures the pick-up of document fields that no mapping
// names.
type Discovery struct {
	Enabled bool
	// Pattern filters discovered keys.
	Pattern string
	// Path selects the candidate nodes.
	Path string
	// IDPath and ValuePath, when set, switch to pivot mode: each candidate
	// node yields one property named by IDPath with the value at ValuePath,
	// both relative to the node.
	IDPath    string
	ValuePath string
}

type discovery struct {
	pattern *regexp2.Regexp
	path    pathquery.Query
	id      pathquery.Query
	value   pathquery.Query
}

// Extractor applies a fixed set of mappings to documents. It is safe for
// concurrent use.
type Extractor struct {
	dialect   pathquery.Dialect
	mappings  []FieldMapping
	discovery *discovery
}

// NewExtractor compiles the discovery settings for mappings.
func NewExtractor(dialect pathquery.Dialect, mappings []FieldMapping, disc Discovery) (*Extractor, error) {
	e := &Extractor{dialect: dialect, mappings: mappings}
	if !disc.Enabled || disc.Path == "" {
		return e, nil
	}
	d := &discovery{}
	pattern := disc.Pattern
	if pattern == "" {
		pattern = `^[a-zA-Z0-9_:-]+$`
	}
	re, err := transform.CompileRegex(pattern)
	if err != nil {
		return nil, &errdefs.ConfigError{Kind: "discovery pattern", Input: pattern, Err: err}
	}
	d.pattern = re
	if d.path, err = pathquery.Compile(dialect, disc.Path); err != nil {
		return nil, err
	}
	if disc.IDPath != "" {
		if d.id, err = pathquery.Compile(dialect, relative(dialect, disc.IDPath)); err != nil {
			return nil, err
		}
		valuePath := disc.ValuePath
		if valuePath == "" {
			return nil, &errdefs.ConfigError{Kind: "discovery", Input: disc.IDPath, Err: errors.New("id path needs a value path")}
		}
		if d.value, err = pathquery.Compile(dialect, relative(dialect, valuePath)); err != nil {
			return nil, err
		}
	}
	e.discovery = d
	return e, nil
}

func relative(dialect pathquery.Dialect, p string) string {
	if dialect == pathquery.JSON && !strings.HasPrefix(p, "$") {
		return "$." + p
	}
	return p
}

// Mappings returns the mappings the extractor applies.
func (e *Extractor) Mappings() []FieldMapping { return e.mappings }

// Extract builds the property bag of doc. Path mappings come first in
// mapping order, then templates, then discovered keys, then defaults for
// keys that are still absent. Conversion failures are
// returned joined; the affected properties are NotAvailable and the rest of
// the bag is still built.
func (e *Extractor) Extract(doc *pathquery.Document, defaults map[string]any) (*PropertyBag, error) {
	bag := NewPropertyBag()
	used := map[string]bool{}
	var errs []error

	var templates []FieldMapping
	for _, m := range e.mappings {
		switch m.Kind() {
		case KindLiteral:
			bag.Set(m.Name, m.Literal)
		case KindTemplate:
			bag.Set(m.Name, NotAvailable)
			templates = append(templates, m)
		case KindPath:
			v, err := e.resolve(doc, m)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", m.Name, err))
				v = NotAvailable
			} else if v != NotAvailable {
				used[e.usedKey(m.Path)] = true
			}
			bag.Set(m.Name, v)
		}
	}

	for _, m := range templates {
		v, err := m.Template.EvalFunc(bag.Lookup)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Name, err))
			continue
		}
		bag.Set(m.Name, v)
	}

	if e.discovery != nil {
		if err := e.discover(doc, bag, used); err != nil {
			errs = append(errs, fmt.Errorf("discovery: %w", err))
		}
	}

	for _, k := range slices.Sorted(maps.Keys(defaults)) {
		bag.SetDefault(k, defaults[k])
	}

	if len(errs) > 0 {
		logging.L().Debug("metadata extraction incomplete", "errors", len(errs))
	}
	return bag, errors.Join(errs...)
}

func (e *Extractor) resolve(doc *pathquery.Document, m FieldMapping) (any, error) {
	v, err := m.Path.Resolve(doc)
	switch {
	case errors.Is(err, errdefs.ErrNotFound):
		return NotAvailable, nil
	case err != nil:
		return nil, err
	case v == nil || len(m.Converters) == 0:
		return v, nil
	}
	// several matches are converted one by one
	if list, ok := v.([]any); ok && e.multiMatch(doc, m) {
		out := make([]any, len(list))
		for i, item := range list {
			if out[i], err = transform.Chain(item, m.Converters); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return transform.Chain(v, m.Converters)
}

// multiMatch tells a list made of several matches from a single matched
// value that happens to be a list.
func (e *Extractor) multiMatch(doc *pathquery.Document, m FieldMapping) bool {
	entries, err := m.Path.Entries(doc)
	return err == nil && len(entries) > 1
}

// usedKey identifies the document node a mapping consumed, so discovery
// does not report it a second time.
func (e *Extractor) usedKey(q pathquery.Query) string {
	if e.dialect == pathquery.XML {
		return xmlLocalName(q.String())
	}
	return pathquery.CanonicalPath(q)
}

func xmlLocalName(expr string) string {
	expr = strings.TrimSuffix(strings.TrimSpace(expr), "/text()")
	if i := strings.LastIndexByte(expr, '/'); i >= 0 {
		expr = expr[i+1:]
	}
	if i := strings.IndexByte(expr, '['); i >= 0 {
		expr = expr[:i]
	}
	if i := strings.LastIndexByte(expr, ':'); i >= 0 {
		expr = expr[i+1:]
	}
	return expr
}

func (e *Extractor) discover(doc *pathquery.Document, bag *PropertyBag, used map[string]bool) error {
	d := e.discovery
	entries, err := pathquery.Children(doc, d.path)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		key, value := entry.Key, entry.Value
		if d.id != nil {
			sub, err := doc.Sub(subject(entry))
			if err != nil {
				return err
			}
			id, err := d.id.Resolve(sub)
			if err != nil {
				continue
			}
			key = transform.Text(id)
			if value, err = d.value.Resolve(sub); err != nil {
				value = NotAvailable
			}
		} else if e.dialect == pathquery.XML {
			if used[key] {
				continue
			}
		} else if entry.Path != "" && used[entry.Path] {
			continue
		}
		if key == "" || bag.Has(key) {
			continue
		}
		if ok, err := d.pattern.MatchString(key); err != nil || !ok {
			continue
		}
		bag.Set(key, value)
	}
	return nil
}

func subject(entry pathquery.Entry) any {
	if entry.Node != nil {
		return entry.Node
	}
	return entry.Value
}

// Extract is a one-shot Extractor.Extract.
func Extract(doc *pathquery.Document, mappings []FieldMapping, disc Discovery, defaults map[string]any) (*PropertyBag, error) {
	e, err := NewExtractor(doc.Dialect(), mappings, disc)
	if err != nil {
		return nil, err
	}
	return e.Extract(doc, defaults)
}
