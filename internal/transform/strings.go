package transform

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/dlclark/regexp2"
)

var regexCache sync.Map // pattern -> *regexp2.Regexp

var (
	pyNamedGroup = regexp.MustCompile(`\(\?P<`)
	pyGroupRef   = regexp.MustCompile(`\\g<(\w+)>|\\(\d{1,2})|\\(.)|\$`)
)

// CompileRegex compiles a provider pattern. Python named groups
// ((?P<name>...)) are accepted alongside the .NET syntax regexp2 speaks.
// Compiled patterns are cached.
func CompileRegex(pattern string) (*regexp2.Regexp, error) {
	if re, ok := regexCache.Load(pattern); ok {
		return re.(*regexp2.Regexp), nil
	}
	re, err := regexp2.Compile(pyNamedGroup.ReplaceAllString(pattern, "(?<"), regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", pattern, err)
	}
	regexCache.Store(pattern, re)
	return re, nil
}

// ReplacementTemplate rewrites a Python re.sub replacement (\1, \g<name>)
// into regexp2 syntax.
func ReplacementTemplate(repl string) string {
	return pyGroupRef.ReplaceAllStringFunc(repl, func(m string) string {
		switch {
		case m == "$":
			return "$$"
		case strings.HasPrefix(m, `\g<`):
			return "${" + m[3:len(m)-1] + "}"
		case len(m) >= 2 && m[1] >= '0' && m[1] <= '9':
			return "${" + m[1:] + "}"
		}
		switch m[1] {
		case 'n':
			return "\n"
		case 't':
			return "\t"
		case '\\':
			return `\`
		}
		return m
	})
}

// Substitute replaces every match of pattern in s with repl.
func Substitute(s, pattern, repl string) (string, error) {
	re, err := CompileRegex(pattern)
	if err != nil {
		return "", err
	}
	return re.Replace(s, ReplacementTemplate(repl), -1, -1)
}

func checkPattern(i int) func([]any) error {
	return func(args []any) error {
		if i >= len(args) {
			return nil
		}
		p, err := argString(args, i)
		if err != nil {
			return err
		}
		_, err = CompileRegex(p)
		return err
	}
}

func stringConverters() []Converter {
	return []Converter{
		unary("csv_list", func(v any) (any, error) {
			list, ok := asList(v)
			if !ok {
				return Text(v), nil
			}
			items := make([]string, len(list))
			for i, item := range list {
				items[i] = Text(item)
			}
			return strings.Join(items, ","), nil
		}),
		unary("remove_extension", func(v any) (any, error) {
			s, err := asString(v)
			if err != nil {
				return nil, err
			}
			if i := strings.LastIndexByte(s, '.'); i > 0 {
				return s[:i], nil
			}
			return s, nil
		}),
		{
			Name: "get_group_name", MinArgs: 1, MaxArgs: 1, Check: checkPattern(0),
			Fn: func(v any, args []any) (any, error) {
				pattern, _ := argString(args, 0)
				re, err := CompileRegex(pattern)
				if err != nil {
					return nil, err
				}
				m, err := re.FindStringMatch(Text(v))
				if err != nil {
					return nil, err
				}
				if m == nil {
					return NotAvailable, nil
				}
				if name := lastNamedGroup(m); name != "" {
					return name, nil
				}
				return NotAvailable, nil
			},
		},
		{
			Name: "replace_str", MinArgs: 2, MaxArgs: 2, Check: checkPattern(0),
			Fn: func(v any, args []any) (any, error) {
				pattern, _ := argString(args, 0)
				repl, _ := argString(args, 1)
				return Substitute(Text(v), pattern, repl)
			},
		},
		{
			Name: "recursive_sub_str", MinArgs: 2, MaxArgs: 2, Check: checkPattern(0),
			Fn: func(v any, args []any) (any, error) {
				pattern, _ := argString(args, 0)
				repl, _ := argString(args, 1)
				return subLeaves(v, pattern, repl)
			},
		},
		{
			Name: "dict_update", MinArgs: 1, MaxArgs: 1,
			Check: func(args []any) error {
				_, err := updatePairs(args[0])
				return err
			},
			Fn: func(v any, args []any) (any, error) {
				m, ok := v.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("expected an object, got %T", v)
				}
				updates, _ := updatePairs(args[0])
				out := make(map[string]any, len(m)+len(updates))
				for k, val := range m {
					out[k] = val
				}
				for _, u := range updates {
					sub := map[string]any{}
					if existing, ok := out[u.key].(map[string]any); ok {
						for k, val := range existing {
							sub[k] = val
						}
					}
					for _, kv := range u.values {
						sub[kv.key] = kv.value
					}
					out[u.key] = sub
				}
				return out, nil
			},
		},
		{
			Name: "slice_str", MinArgs: 2, MaxArgs: 3,
			Fn: func(v any, args []any) (any, error) {
				s, err := asString(v)
				if err != nil {
					return nil, err
				}
				return slice(s, args)
			},
		},
		{
			Name: "replace_str_tuple", MinArgs: 1, MaxArgs: -1,
			Check: func(args []any) error {
				_, err := replacementPairs(args)
				return err
			},
			Fn: func(v any, args []any) (any, error) {
				s, err := asString(v)
				if err != nil {
					return nil, err
				}
				pairs, _ := replacementPairs(args)
				for _, p := range pairs {
					s = strings.ReplaceAll(s, p[0], p[1])
				}
				return s, nil
			},
		},
	}
}

// lastNamedGroup returns the named group that closed last in m.
func lastNamedGroup(m *regexp2.Match) string {
	var (
		name string
		end  = -1
	)
	for _, g := range m.Groups() {
		if len(g.Captures) == 0 || isNumber(g.Name) {
			continue
		}
		if e := g.Index + g.Length; e >= end {
			name, end = g.Name, e
		}
	}
	return name
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func subLeaves(v any, pattern, repl string) (any, error) {
	switch tv := v.(type) {
	case string:
		return Substitute(tv, pattern, repl)
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, val := range tv {
			sub, err := subLeaves(val, pattern, repl)
			if err != nil {
				return nil, err
			}
			out[k] = sub
		}
		return out, nil
	case []any:
		out := make([]any, len(tv))
		for i, val := range tv {
			sub, err := subLeaves(val, pattern, repl)
			if err != nil {
				return nil, err
			}
			out[i] = sub
		}
		return out, nil
	}
	return v, nil
}

type keyValue struct {
	key   string
	value any
}

type dictUpdate struct {
	key    string
	values []keyValue
}

func updatePairs(arg any) ([]dictUpdate, error) {
	list, ok := asList(arg)
	if !ok {
		return nil, fmt.Errorf("dict_update expects [[key, [[subkey, value], ...]], ...]")
	}
	out := make([]dictUpdate, 0, len(list))
	for _, item := range list {
		pair, ok := asList(item)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("dict_update entry %v is not a [key, values] pair", item)
		}
		values, ok := asList(pair[1])
		if !ok {
			return nil, fmt.Errorf("dict_update values for %v must be a list", pair[0])
		}
		u := dictUpdate{key: Text(pair[0])}
		for _, raw := range values {
			kv, ok := asList(raw)
			if !ok || len(kv) != 2 {
				return nil, fmt.Errorf("dict_update value %v is not a [key, value] pair", raw)
			}
			u.values = append(u.values, keyValue{key: Text(kv[0]), value: kv[1]})
		}
		out = append(out, u)
	}
	return out, nil
}

// replacementPairs accepts either a single list of [old, new] pairs or the
// pairs given as separate arguments.
func replacementPairs(args []any) ([][2]string, error) {
	items := args
	if len(args) == 1 {
		if list, ok := asList(args[0]); ok && len(list) > 0 {
			if _, nested := asList(list[0]); nested {
				items = list
			}
		}
	}
	out := make([][2]string, 0, len(items))
	for _, item := range items {
		pair, ok := asList(item)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("replacement %v is not an [old, new] pair", item)
		}
		out = append(out, [2]string{Text(pair[0]), Text(pair[1])})
	}
	return out, nil
}

// slice applies Python slice semantics to the runes of s. Arguments may be
// None (nil) to take the default bound.
func slice(s string, args []any) (string, error) {
	runes := []rune(s)
	n := len(runes)
	step := 1
	if len(args) > 2 && args[2] != nil {
		v, err := argInt(args, 2)
		if err != nil {
			return "", err
		}
		if v == 0 {
			return "", fmt.Errorf("slice step cannot be zero")
		}
		step = v
	}
	bound := func(i int, def int) (int, error) {
		if i >= len(args) || args[i] == nil {
			return def, nil
		}
		v, err := argInt(args, i)
		if err != nil {
			return 0, err
		}
		if v < 0 {
			v += n
		}
		lo, hi := 0, n
		if step < 0 {
			lo, hi = -1, n-1
		}
		return min(max(v, lo), hi), nil
	}
	startDef, stopDef := 0, n
	if step < 0 {
		startDef, stopDef = n-1, -1
	}
	start, err := bound(0, startDef)
	if err != nil {
		return "", err
	}
	stop, err := bound(1, stopDef)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		b.WriteRune(runes[i])
	}
	return b.String(), nil
}
