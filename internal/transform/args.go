package transform

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errNotLiteral = errors.New("not a literal")

// ParseArgs parses the argument text of a converter call. A comma separated
// list of literals yields one argument per literal: integers, floats,
// quoted strings, raw strings (r'...'), booleans, None/null and nested
// [...] lists. Text that is not such a list (a regular expression, a bare
// date) is a single string argument.
func ParseArgs(s string) ([]any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	items, err := splitTopLevel(s)
	if err != nil {
		return []any{s}, nil
	}
	args := make([]any, 0, len(items))
	for _, item := range items {
		if item == "" && len(items) > 1 {
			// omitted slot, as in slice bounds "(-3,)"
			args = append(args, nil)
			continue
		}
		v, err := parseLiteral(item)
		if err != nil {
			return []any{s}, nil
		}
		args = append(args, v)
	}
	return args, nil
}

// splitTopLevel splits s on commas that are outside quotes and brackets.
func splitTopLevel(s string) ([]string, error) {
	var (
		items []string
		depth int
		quote byte
		raw   bool
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case c == '\\' && !raw:
				i++
			case c == '\\' && raw && i+1 < len(s) && s[i+1] == quote:
				i++
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
			raw = i > 0 && (s[i-1] == 'r' || s[i-1] == 'R')
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced %q at %d", c, i)
			}
		case ',':
			if depth == 0 {
				items = append(items, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if quote != 0 || depth != 0 {
		return nil, errors.New("unterminated literal")
	}
	return append(items, strings.TrimSpace(s[start:])), nil
}

func parseLiteral(s string) (any, error) {
	if s == "" {
		return nil, errNotLiteral
	}
	switch s {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	case "None", "null":
		return nil, nil
	}
	switch {
	case s[0] == '[':
		if s[len(s)-1] != ']' {
			return nil, errNotLiteral
		}
		inner := strings.TrimSpace(s[1 : len(s)-1])
		if inner == "" {
			return []any{}, nil
		}
		items, err := splitTopLevel(inner)
		if err != nil {
			return nil, err
		}
		list := make([]any, 0, len(items))
		for _, item := range items {
			v, err := parseLiteral(item)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case (s[0] == 'r' || s[0] == 'R') && len(s) >= 3 && isQuote(s[1]) && s[len(s)-1] == s[1]:
		return s[2 : len(s)-1], nil
	case isQuote(s[0]) && len(s) >= 2 && s[len(s)-1] == s[0]:
		return unescape(s[1 : len(s)-1]), nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	return nil, errNotLiteral
}

func isQuote(c byte) bool { return c == '\'' || c == '"' }

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case '\\', '\'', '"':
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
