// Package pathquery resolves path queries against provider documents.
// JSON documents are queried with JSONPath, XML documents with XPath 1.0.
// A query that matches nothing reports errdefs.ErrNotFound so callers can
// substitute their own "not available" marker.
package pathquery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"

	"github.com/antchfx/xmlquery"
)

// Dialect selects the query language used for a document.
type Dialect string

const (
	JSON Dialect = "json"
	XML  Dialect = "xml"
)

// DefaultNamespacePrefix is the prefix bound to an XML document's default
// namespace, so that queries can address un-prefixed elements.
const DefaultNamespacePrefix = "ns"

// Document is a parsed provider document.
type Document struct {
	dialect Dialect

	root  any
	order map[uintptr][]string

	xml *xmlquery.Node
	ns  map[string]string
}

// Dialect reports how the document must be queried.
func (d *Document) Dialect() Dialect { return d.dialect }

// Root returns the decoded JSON tree, or the XML document node.
func (d *Document) Root() any {
	if d.dialect == XML {
		return d.xml
	}
	return d.root
}

// FromValue wraps an already decoded JSON-like tree. Object keys of maps it
// contains are reported in lexical order.
func FromValue(v any) *Document {
	return &Document{dialect: JSON, root: v}
}

// FromXMLNode wraps an XML node.
func FromXMLNode(n *xmlquery.Node) *Document {
	return &Document{dialect: XML, xml: n, ns: namespaces(n)}
}

// Sub returns a document rooted at v, a value or node taken from d, that
// keeps d's key order and namespace bindings. Relative queries resolved
// against it start from v.
func (d *Document) Sub(v any) (*Document, error) {
	if d.dialect == XML {
		n, ok := v.(*xmlquery.Node)
		if !ok {
			return nil, fmt.Errorf("xml sub-document needs a node, got %T", v)
		}
		return &Document{dialect: XML, xml: n, ns: d.ns}, nil
	}
	return &Document{dialect: JSON, root: v, order: d.order}, nil
}

// Keys returns the keys of m in the order they appeared in the source
// document. Maps that were not produced by DecodeJSON yield sorted keys.
func (d *Document) Keys(m map[string]any) []string {
	if d.order != nil && len(m) > 0 {
		if keys, ok := d.order[reflect.ValueOf(m).Pointer()]; ok && len(keys) == len(m) {
			return keys
		}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DecodeJSON parses a JSON document. Integral numbers become int64, other
// numbers float64.
func DecodeJSON(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	d := &decoder{dec: dec, order: map[uintptr][]string{}}
	v, err := d.value()
	if err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return &Document{dialect: JSON, root: v, order: d.order}, nil
}

// DecodeJSONBytes is DecodeJSON over a byte slice.
func DecodeJSONBytes(b []byte) (*Document, error) {
	return DecodeJSON(bytes.NewReader(b))
}

// DecodeXML parses an XML document.
func DecodeXML(r io.Reader) (*Document, error) {
	n, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("decode xml: %w", err)
	}
	return FromXMLNode(n), nil
}

// Decode parses raw according to dialect.
func Decode(dialect Dialect, raw []byte) (*Document, error) {
	if dialect == XML {
		return DecodeXML(bytes.NewReader(raw))
	}
	return DecodeJSONBytes(raw)
}

type decoder struct {
	dec   *json.Decoder
	order map[uintptr][]string
}

func (d *decoder) value() (any, error) {
	tok, err := d.dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return d.object()
		case '[':
			return d.array()
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		return t.Float64()
	default:
		return t, nil
	}
}

func (d *decoder) object() (any, error) {
	m := make(map[string]any)
	var keys []string
	for d.dec.More() {
		tok, err := d.dec.Token()
		if err != nil {
			return nil, err
		}
		k, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key %v is not a string", tok)
		}
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		if _, dup := m[k]; !dup {
			keys = append(keys, k)
		}
		m[k] = v
	}
	if _, err := d.dec.Token(); err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		d.order[reflect.ValueOf(m).Pointer()] = keys
	}
	return m, nil
}

func (d *decoder) array() (any, error) {
	arr := []any{}
	for d.dec.More() {
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	if _, err := d.dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

// namespaces collects every namespace declared in the tree. The default
// namespace is bound to DefaultNamespacePrefix.
func namespaces(top *xmlquery.Node) map[string]string {
	ns := map[string]string{}
	var walk func(n *xmlquery.Node)
	walk = func(n *xmlquery.Node) {
		if n.Type == xmlquery.ElementNode {
			for _, a := range n.Attr {
				switch {
				case a.Name.Space == "xmlns":
					if _, ok := ns[a.Name.Local]; !ok {
						ns[a.Name.Local] = a.Value
					}
				case a.Name.Space == "" && a.Name.Local == "xmlns":
					if _, ok := ns[DefaultNamespacePrefix]; !ok {
						ns[DefaultNamespacePrefix] = a.Value
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(top)
	return ns
}
