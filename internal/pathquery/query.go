package pathquery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/ohler55/ojg/jp"

	"eosearch/internal/errdefs"
)

// Entry is one node reached by a query together with the field name it
// sits under in its parent.
type Entry struct {
	Key   string
	Value any
	// Path is the normalized path of the node when the query pins it down
	// to a single location.
	Path string
	// Node is set for XML entries.
	Node *xmlquery.Node
}

// Query is a compiled path query.
type Query interface {
	// Resolve returns the single matched value, a []any when several nodes
	// match, or errdefs.ErrNotFound.
	Resolve(doc *Document) (any, error)
	// Entries returns every matched node with its field name, in document
	// order. Keys are empty when the query shape does not name them.
	Entries(doc *Document) ([]Entry, error)
	Dialect() Dialect
	String() string
}

// Compile parses expr in the given dialect. Syntax errors are reported as
// *errdefs.ConfigError.
func Compile(dialect Dialect, expr string) (Query, error) {
	switch dialect {
	case XML:
		e, err := xpath.Compile(expr)
		if err != nil {
			return nil, &errdefs.ConfigError{Kind: "xpath", Input: expr, Err: err}
		}
		return &xmlQuery{src: expr, expr: e}, nil
	default:
		if !IsJSONPath(expr) {
			return nil, &errdefs.ConfigError{Kind: "jsonpath", Input: expr, Err: fmt.Errorf("must start with $")}
		}
		x, err := jp.ParseString(expr)
		if err != nil {
			return nil, &errdefs.ConfigError{Kind: "jsonpath", Input: expr, Err: err}
		}
		return &jsonQuery{src: expr, x: x}, nil
	}
}

// MustCompile is Compile that panics on error. For static tables only.
func MustCompile(dialect Dialect, expr string) Query {
	q, err := Compile(dialect, expr)
	if err != nil {
		panic(err)
	}
	return q
}

// IsJSONPath reports whether s looks like a JSONPath expression rather than
// a literal value.
func IsJSONPath(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "$")
}

// IsXPath reports whether s looks like an XPath location path.
func IsXPath(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	switch s[0] {
	case '/', '.', '@', '(':
		return true
	}
	return strings.Contains(s, "/") && !strings.ContainsAny(s, " {}")
}

// IsPath reports whether s is a path query in dialect rather than a literal.
func IsPath(dialect Dialect, s string) bool {
	if dialect == XML {
		return IsXPath(s)
	}
	return IsJSONPath(s)
}

// Children lists the (key, value) pairs selected by q, in document order.
func Children(doc *Document, q Query) ([]Entry, error) {
	return q.Entries(doc)
}

// Resolve compiles expr and resolves it in one step.
func Resolve(doc *Document, expr string) (any, error) {
	q, err := Compile(doc.Dialect(), expr)
	if err != nil {
		return nil, err
	}
	return q.Resolve(doc)
}

/* ────────── JSON ────────── */

type jsonQuery struct {
	src string
	x   jp.Expr
}

func (q *jsonQuery) Dialect() Dialect { return JSON }
func (q *jsonQuery) String() string   { return q.src }

func (q *jsonQuery) Resolve(doc *Document) (any, error) {
	if doc.dialect != JSON {
		return nil, fmt.Errorf("jsonpath %q applied to %s document", q.src, doc.dialect)
	}
	return single(q.x.Get(doc.root))
}

func (q *jsonQuery) Entries(doc *Document) ([]Entry, error) {
	if doc.dialect != JSON {
		return nil, fmt.Errorf("jsonpath %q applied to %s document", q.src, doc.dialect)
	}
	parent, last := splitLast(q.x)
	var parents []any
	if isRootOnly(parent) {
		parents = []any{doc.root}
	} else {
		parents = parent.Get(doc.root)
	}

	pathOf := func(jp.Frag) string { return "" }
	if len(parents) == 1 && isStatic(parent) {
		pathOf = func(f jp.Frag) string {
			return append(append(jp.Expr{}, parent...), f).String()
		}
	}

	var out []Entry
	switch f := last.(type) {
	case jp.Wildcard:
		for _, p := range parents {
			switch tv := p.(type) {
			case map[string]any:
				for _, k := range doc.Keys(tv) {
					out = append(out, Entry{Key: k, Value: tv[k], Path: pathOf(jp.Child(k))})
				}
			case []any:
				for i, v := range tv {
					out = append(out, Entry{Key: strconv.Itoa(i), Value: v, Path: pathOf(jp.Nth(i))})
				}
			}
		}
	case jp.Child:
		for _, p := range parents {
			if m, ok := p.(map[string]any); ok {
				if v, has := m[string(f)]; has {
					out = append(out, Entry{Key: string(f), Value: v, Path: pathOf(f)})
				}
			}
		}
	default:
		for _, v := range q.x.Get(doc.root) {
			out = append(out, Entry{Value: v})
		}
	}
	return out, nil
}

// splitLast separates the final selecting fragment from its parent path.
func splitLast(x jp.Expr) (jp.Expr, jp.Frag) {
	for i := len(x) - 1; i >= 0; i-- {
		if _, ok := x[i].(jp.Bracket); ok {
			continue
		}
		return x[:i], x[i]
	}
	return nil, nil
}

// isStatic reports whether x addresses at most one location.
func isStatic(x jp.Expr) bool {
	for _, f := range x {
		switch f.(type) {
		case jp.Root, jp.At, jp.Bracket, jp.Child, jp.Nth:
		default:
			return false
		}
	}
	return true
}

// CanonicalPath returns the normalized text of q, comparable with
// Entry.Path.
func CanonicalPath(q Query) string {
	if jq, ok := q.(*jsonQuery); ok {
		return jq.x.String()
	}
	return q.String()
}

func isRootOnly(x jp.Expr) bool {
	for _, f := range x {
		switch f.(type) {
		case jp.Root, jp.Bracket:
		default:
			return false
		}
	}
	return true
}

/* ────────── XML ────────── */

type xmlQuery struct {
	src  string
	expr *xpath.Expr
}

func (q *xmlQuery) Dialect() Dialect { return XML }
func (q *xmlQuery) String() string   { return q.src }

func (q *xmlQuery) compiled(doc *Document) (*xpath.Expr, error) {
	if len(doc.ns) == 0 {
		return q.expr, nil
	}
	e, err := xpath.CompileWithNS(q.src, doc.ns)
	if err != nil {
		return nil, &errdefs.ConfigError{Kind: "xpath", Input: q.src, Err: err}
	}
	return e, nil
}

func (q *xmlQuery) nodes(doc *Document) ([]*xmlquery.Node, any, error) {
	if doc.dialect != XML {
		return nil, nil, fmt.Errorf("xpath %q applied to %s document", q.src, doc.dialect)
	}
	e, err := q.compiled(doc)
	if err != nil {
		return nil, nil, err
	}
	switch v := e.Evaluate(xmlquery.CreateXPathNavigator(doc.xml)).(type) {
	case *xpath.NodeIterator:
		var nodes []*xmlquery.Node
		for v.MoveNext() {
			if nav, ok := v.Current().(*xmlquery.NodeNavigator); ok {
				nodes = append(nodes, nav.Current())
			}
		}
		return nodes, nil, nil
	default:
		return nil, v, nil
	}
}

func (q *xmlQuery) Resolve(doc *Document) (any, error) {
	nodes, scalar, err := q.nodes(doc)
	if err != nil {
		return nil, err
	}
	if scalar != nil {
		return scalar, nil
	}
	values := make([]any, 0, len(nodes))
	for _, n := range nodes {
		values = append(values, nodeValue(n))
	}
	return single(values)
}

func (q *xmlQuery) Entries(doc *Document) ([]Entry, error) {
	nodes, scalar, err := q.nodes(doc)
	if err != nil {
		return nil, err
	}
	if scalar != nil {
		return []Entry{{Value: scalar}}, nil
	}
	out := make([]Entry, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Entry{Key: n.Data, Value: n.InnerText(), Node: n})
	}
	return out, nil
}

// nodeValue keeps elements as nodes (converters such as from_georss need
// the element) and reduces text and attribute nodes to their content.
func nodeValue(n *xmlquery.Node) any {
	if n.Type == xmlquery.ElementNode {
		return n
	}
	return n.InnerText()
}

func single(values []any) (any, error) {
	switch len(values) {
	case 0:
		return nil, errdefs.ErrNotFound
	case 1:
		return values[0], nil
	default:
		return values, nil
	}
}
