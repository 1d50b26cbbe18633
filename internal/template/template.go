// Package template implements the metadata expression language: literal
// text with {field} substitutions, each optionally piped through converters
// ({field#conv(args)#conv2}). Braces are escaped by doubling them.
package template

import (
	"fmt"
	"regexp"
	"strings"

	"eosearch/internal/errdefs"
	"eosearch/internal/transform"
)

// Separator splits a field name from its converters.
const Separator = "#"

var converterName = regexp.MustCompile(`^[A-Za-z_]\w*$`)

// Field is one {name#conv...} substitution.
type Field struct {
	Name       string
	Converters []transform.Spec
}

// Apply runs the field's converter chain on v.
func (f Field) Apply(v any) (any, error) {
	return transform.Chain(v, f.Converters)
}

type part struct {
	literal string
	field   *Field
}

// Template is a compiled expression. It is immutable once parsed.
type Template struct {
	src   string
	parts []part
}

// Parse compiles src, binding converters from reg (transform.Default when
// nil). Syntax errors and unknown converters are *errdefs.ConfigError.
func Parse(src string, reg *transform.Registry) (*Template, error) {
	if reg == nil {
		reg = transform.Default()
	}
	t := &Template{src: src}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.parts = append(t.parts, part{literal: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(src); i++ {
		switch c := src[i]; c {
		case '{':
			if i+1 < len(src) && src[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end, err := closingBrace(src, i+1)
			if err != nil {
				return nil, &errdefs.ConfigError{Kind: "template", Input: src, Err: err}
			}
			f, err := parseField(src[i+1:end], reg)
			if err != nil {
				return nil, &errdefs.ConfigError{Kind: "template", Input: src, Err: err}
			}
			flush()
			t.parts = append(t.parts, part{field: f})
			i = end
		case '}':
			if i+1 < len(src) && src[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, &errdefs.ConfigError{Kind: "template", Input: src, Err: fmt.Errorf("single '}' at offset %d", i)}
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return t, nil
}

// MustParse is Parse that panics on error.
func MustParse(src string, reg *transform.Registry) *Template {
	t, err := Parse(src, reg)
	if err != nil {
		panic(err)
	}
	return t
}

// HasFields reports whether s contains at least one {field} substitution.
func HasFields(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		if i+1 < len(s) && s[i+1] == '{' {
			i++
			continue
		}
		if end, err := closingBrace(s, i+1); err == nil && end > i+1 {
			return true
		}
	}
	return false
}

// closingBrace returns the index of the '}' closing a field opened before
// start. Braces inside converter argument parentheses or quotes do not
// count.
func closingBrace(s string, start int) (int, error) {
	depth := 0
	var quote byte
	for i := start; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			if depth > 0 {
				quote = c
			}
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case '{':
			if depth == 0 {
				return 0, fmt.Errorf("unexpected '{' at offset %d", i)
			}
		case '}':
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unterminated field starting at offset %d", start-1)
}

// splitConversions splits s on '#' outside parentheses and quotes.
func splitConversions(s string) []string {
	var (
		out   []string
		depth int
		quote byte
		from  int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			if depth > 0 {
				quote = c
			}
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case '#':
			if depth == 0 {
				out = append(out, s[from:i])
				from = i + 1
			}
		}
	}
	return append(out, s[from:])
}

func parseField(body string, reg *transform.Registry) (*Field, error) {
	segments := splitConversions(body)
	name := strings.TrimSpace(segments[0])
	if name == "" {
		return nil, fmt.Errorf("empty field name in {%s}", body)
	}
	f := &Field{Name: name}
	for _, seg := range segments[1:] {
		convName, rawArgs := seg, ""
		if open := strings.IndexByte(seg, '('); open >= 0 {
			if !strings.HasSuffix(seg, ")") {
				return nil, fmt.Errorf("converter call %q is missing ')'", seg)
			}
			convName, rawArgs = seg[:open], seg[open+1:len(seg)-1]
		}
		if !converterName.MatchString(convName) {
			return nil, fmt.Errorf("bad converter name %q", convName)
		}
		spec, err := reg.BindString(convName, rawArgs)
		if err != nil {
			return nil, err
		}
		f.Converters = append(f.Converters, spec)
	}
	return f, nil
}

// Source returns the text the template was parsed from.
func (t *Template) Source() string { return t.src }

func (t *Template) String() string { return t.src }

// Fields returns the substitutions in order of appearance.
func (t *Template) Fields() []Field {
	var out []Field
	for _, p := range t.parts {
		if p.field != nil {
			out = append(out, *p.field)
		}
	}
	return out
}

// SingleField returns the field when the template is exactly one
// substitution with no surrounding text.
func (t *Template) SingleField() (Field, bool) {
	if len(t.parts) == 1 && t.parts[0].field != nil {
		return *t.parts[0].field, true
	}
	return Field{}, false
}

// Lookup resolves a field name to its value.
type Lookup func(name string) (any, bool)

// Vars adapts a map to a Lookup.
func Vars(m map[string]any) Lookup {
	return func(name string) (any, bool) {
		v, ok := m[name]
		return v, ok
	}
}

// Execute renders the template against vars.
func (t *Template) Execute(vars map[string]any) (string, error) {
	return t.ExecuteFunc(Vars(vars))
}

// ExecuteFunc renders the template, resolving fields through lookup. An
// unresolved field is a *errdefs.MissingFieldError.
func (t *Template) ExecuteFunc(lookup Lookup) (string, error) {
	var b strings.Builder
	for _, p := range t.parts {
		if p.field == nil {
			b.WriteString(p.literal)
			continue
		}
		v, err := t.resolve(*p.field, lookup)
		if err != nil {
			return "", err
		}
		b.WriteString(transform.Text(v))
	}
	return b.String(), nil
}

// Eval is Execute, except that a template made of a single field yields the
// converted value itself rather than its text.
func (t *Template) Eval(vars map[string]any) (any, error) {
	return t.EvalFunc(Vars(vars))
}

// EvalFunc is Eval over a Lookup.
func (t *Template) EvalFunc(lookup Lookup) (any, error) {
	if f, ok := t.SingleField(); ok {
		return t.resolve(f, lookup)
	}
	return t.ExecuteFunc(lookup)
}

func (t *Template) resolve(f Field, lookup Lookup) (any, error) {
	v, ok := lookup(f.Name)
	if !ok {
		return nil, &errdefs.MissingFieldError{Field: f.Name}
	}
	out, err := f.Apply(v)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return out, nil
}

// Format parses and executes src in one step, with the default registry.
func Format(src string, vars map[string]any) (string, error) {
	t, err := Parse(src, nil)
	if err != nil {
		return "", err
	}
	return t.Execute(vars)
}
