// Package query turns caller search arguments into provider request
// parameters.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"eosearch/internal/metadata"
	"eosearch/internal/pathquery"
	"eosearch/internal/spec"
	"eosearch/internal/template"
	"eosearch/internal/transform"
)

// GenericProductType is sent for caller product types the provider does not
// list.
const GenericProductType = "GENERIC_PRODUCT_TYPE"

// ProductTypeKey is the argument holding the product type.
const ProductTypeKey = "productType"

type freeText struct {
	union      string
	wrapper    *template.Template
	operators  []string
	operations map[string][]*template.Template
}

// Formatter builds request parameters for one provider. It is immutable and
// safe for concurrent use.
type Formatter struct {
	provider string
	products map[string]spec.Product
	base     []metadata.FieldMapping
	byType   map[string][]metadata.FieldMapping
	freeText map[string]freeText
}

// New compiles the provider's outgoing templates. JSON providers inherit
// metadata.DefaultMapping underneath their own mapping.
func New(name string, p spec.Provider, reg *transform.Registry) (*Formatter, error) {
	dialect := pathquery.Dialect(p.Dialect)
	if dialect == "" {
		dialect = pathquery.JSON
	}
	var base []metadata.FieldMapping
	if dialect == pathquery.JSON {
		defaults, err := metadata.ParseOrderedMappings(dialect, metadata.DefaultMapping, metadata.DefaultMappingOrder, reg)
		if err != nil {
			return nil, err
		}
		base = defaults
	}
	own, err := metadata.ParseOrderedMappings(dialect, p.MetadataMapping, p.MappingOrder, reg)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", name, err)
	}
	f := &Formatter{
		provider: name,
		products: p.Products,
		base:     metadata.Merge(base, own),
		byType:   map[string][]metadata.FieldMapping{},
		freeText: map[string]freeText{},
	}
	for callerType, prod := range p.Products {
		if len(prod.MetadataMapping) == 0 {
			continue
		}
		extra, err := metadata.ParseOrderedMappings(dialect, prod.MetadataMapping, prod.MappingOrder, reg)
		if err != nil {
			return nil, fmt.Errorf("provider %s product %s: %w", name, callerType, err)
		}
		f.byType[callerType] = metadata.Merge(f.base, extra)
	}
	for param, op := range p.FreeTextSearch {
		ft, err := compileFreeText(op, reg)
		if err != nil {
			return nil, fmt.Errorf("provider %s free text %s: %w", name, param, err)
		}
		f.freeText[param] = ft
	}
	return f, nil
}

func compileFreeText(op spec.FreeTextOp, reg *transform.Registry) (freeText, error) {
	wrapper := op.Wrapper
	if wrapper == "" {
		wrapper = "{}"
	}
	// "{}" is the slot for the joined clauses.
	w, err := template.Parse(strings.ReplaceAll(wrapper, "{}", "{_clauses}"), reg)
	if err != nil {
		return freeText{}, err
	}
	ft := freeText{union: op.Union, wrapper: w, operations: map[string][]*template.Template{}}
	if ft.union == "" {
		ft.union = " "
	}
	for operator, clauses := range op.Operations {
		ft.operators = append(ft.operators, operator)
		for _, c := range clauses {
			t, err := template.Parse(c, reg)
			if err != nil {
				return freeText{}, err
			}
			ft.operations[operator] = append(ft.operations[operator], t)
		}
	}
	sort.Strings(ft.operators)
	return ft, nil
}

// ProductType maps a caller product type to the provider's name for it.
// Unknown types map to GenericProductType; an empty caller type yields
// ("", false).
func (f *Formatter) ProductType(callerType string) (string, bool) {
	if callerType == "" {
		return "", false
	}
	if p, ok := f.products[callerType]; ok && p.ProductType != "" {
		return p.ProductType, true
	}
	return GenericProductType, true
}

// Mappings returns the field mappings that apply to callerType.
func (f *Formatter) Mappings(callerType string) []metadata.FieldMapping {
	if m, ok := f.byType[callerType]; ok {
		return m
	}
	return f.base
}

// Format builds the request parameters for a search of providerType. Caller
// args override the product's static parameters. A mapping is rendered only
// when its own field is given; any other field its template names must be
// available too, or the call fails with a MissingFieldError.
func (f *Formatter) Format(providerType string, args map[string]any) (map[string]any, error) {
	callerType, _ := args[ProductTypeKey].(string)
	prod := f.products[callerType]

	vars := make(map[string]any, len(prod.Params)+len(args)+1)
	out := make(map[string]any, len(prod.Params))
	for k, v := range prod.Params {
		vars[k] = v
		out[k] = v
	}
	for k, v := range args {
		vars[k] = v
	}
	if providerType != "" {
		vars[ProductTypeKey] = providerType
	}

	var errs []error
	for _, m := range f.Mappings(callerType) {
		if !m.Queryable() {
			continue
		}
		if _, given := vars[m.Name]; !given {
			continue
		}
		rendered, err := m.Outgoing.Execute(vars)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Name, err))
			continue
		}
		if m.OutgoingKey != "" {
			out[m.OutgoingKey] = embed(rendered)
			continue
		}
		var fragment map[string]any
		if err := json.Unmarshal([]byte(rendered), &fragment); err != nil {
			errs = append(errs, fmt.Errorf("%s: outgoing %q is not a JSON object: %w", m.Name, rendered, err))
			continue
		}
		for k, v := range fragment {
			out[k] = v
		}
	}

	for param, ft := range f.freeText {
		if s, ok := ft.render(vars); ok {
			out[param] = s
		}
	}
	return out, errors.Join(errs...)
}

// embed decodes JSON objects and arrays so they are sent structurally.
func embed(s string) any {
	t := strings.TrimSpace(s)
	if t == "" || (t[0] != '{' && t[0] != '[') {
		return s
	}
	var v any
	if err := json.Unmarshal([]byte(t), &v); err != nil {
		return s
	}
	return v
}

// render joins, per operator, the clauses whose fields are all given, then
// joins operators with the union separator and fills the wrapper.
func (ft freeText) render(vars map[string]any) (string, bool) {
	var groups []string
	for _, operator := range ft.operators {
		var clauses []string
		for _, t := range ft.operations[operator] {
			s, err := t.Execute(vars)
			if err != nil {
				continue
			}
			clauses = append(clauses, s)
		}
		switch len(clauses) {
		case 0:
		case 1:
			groups = append(groups, clauses[0])
		default:
			groups = append(groups, "("+strings.Join(clauses, " "+operator+" ")+")")
		}
	}
	if len(groups) == 0 {
		return "", false
	}
	s, err := ft.wrapper.Execute(map[string]any{"_clauses": strings.Join(groups, ft.union)})
	if err != nil {
		return "", false
	}
	return s, true
}
