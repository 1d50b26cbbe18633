package transform

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/paulmach/orb"
)

// Text renders v as template substitution text. Structured values
// (maps, lists, parameter documents) become canonical JSON so the same
// value always yields the same text.
func Text(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case Marker:
		return string(tv)
	case bool:
		return strconv.FormatBool(tv)
	case int:
		return strconv.Itoa(tv)
	case int32:
		return strconv.FormatInt(int64(tv), 10)
	case int64:
		return strconv.FormatInt(tv, 10)
	case float32:
		return strconv.FormatFloat(float64(tv), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case json.Number:
		return tv.String()
	case *xmlquery.Node:
		return strings.TrimSpace(tv.InnerText())
	case orb.Geometry:
		return MarshalWKT(tv, -1)
	case fmt.Stringer:
		return tv.String()
	}
	s, err := CanonicalJSON(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

// CanonicalJSON encodes v as RFC 8785 canonical JSON.
func CanonicalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	out, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func asString(v any) (string, error) {
	switch tv := v.(type) {
	case string:
		return tv, nil
	case nil:
		return "", fmt.Errorf("expected a string, got nil")
	case map[string]any, []any:
		return "", fmt.Errorf("expected a string, got %T", v)
	}
	return Text(v), nil
}

func asInt64(v any) (int64, error) {
	switch tv := v.(type) {
	case int:
		return int64(tv), nil
	case int32:
		return int64(tv), nil
	case int64:
		return tv, nil
	case float64:
		return int64(tv), nil
	case json.Number:
		if i, err := tv.Int64(); err == nil {
			return i, nil
		}
		f, err := tv.Float64()
		return int64(f), err
	case string:
		s := strings.TrimSpace(tv)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", tv)
		}
		return int64(f), nil
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}

func asFloat(v any) (float64, error) {
	switch tv := v.(type) {
	case float64:
		return tv, nil
	case float32:
		return float64(tv), nil
	case int:
		return float64(tv), nil
	case int64:
		return float64(tv), nil
	case json.Number:
		return tv.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(tv), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", tv)
		}
		return f, nil
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}

func argString(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("missing argument %d", i+1)
	}
	s, ok := args[i].(string)
	if !ok {
		return Text(args[i]), nil
	}
	return s, nil
}

func argInt(args []any, i int) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument %d", i+1)
	}
	n, err := asInt64(args[i])
	return int(n), err
}

func asList(v any) ([]any, bool) {
	switch tv := v.(type) {
	case []any:
		return tv, true
	case []string:
		out := make([]any, len(tv))
		for i, s := range tv {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(tv))
		for i, n := range tv {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(tv))
		for i, f := range tv {
			out[i] = f
		}
		return out, true
	}
	return nil, false
}
