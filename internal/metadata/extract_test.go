package metadata

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eosearch/internal/errdefs"
	"eosearch/internal/pathquery"
)

const discoveryDoc = `{
	"foo": "foo-val",
	"bar": "bar-val",
	"baz": {"baaz": "baz-val"},
	"qux": [
		{"somekey": "a", "someval": "a-val"},
		{"somekey": "b", "someval": "b-val", "some": "thing"},
		{"somekey": "c"},
		{"someval": "d-val"}
	],
	"ignored": "ignored-val"
}`

func mustMappings(t *testing.T, raw map[string]any) []FieldMapping {
	t.Helper()
	m, err := ParseMappings(pathquery.JSON, raw, nil)
	require.NoError(t, err)
	return m
}

func decode(t *testing.T, s string) *pathquery.Document {
	t.Helper()
	doc, err := pathquery.DecodeJSONBytes([]byte(s))
	require.NoError(t, err)
	return doc
}

func TestBasicDiscovery(t *testing.T) {
	mappings := mustMappings(t, map[string]any{
		"fooProperty":     "$.foo",
		"missingProperty": "$.missing",
	})
	bag, err := Extract(decode(t, discoveryDoc), mappings, Discovery{
		Enabled: true,
		Pattern: `^(?!ignored)[a-zA-Z0-9_]+$`,
		Path:    "$.*",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"fooProperty", "missingProperty", "bar", "baz", "qux"}, bag.Keys())
	assert.Equal(t, map[string]any{
		"fooProperty":     "foo-val",
		"missingProperty": NotAvailable,
		"bar":             "bar-val",
		"baz":             map[string]any{"baaz": "baz-val"},
		"qux": []any{
			map[string]any{"somekey": "a", "someval": "a-val"},
			map[string]any{"somekey": "b", "someval": "b-val", "some": "thing"},
			map[string]any{"somekey": "c"},
			map[string]any{"someval": "d-val"},
		},
	}, bag.Map())
}

func TestPivotDiscovery(t *testing.T) {
	mappings := mustMappings(t, map[string]any{
		"fooProperty":     "$.foo",
		"missingProperty": "$.missing",
	})
	bag, err := Extract(decode(t, discoveryDoc), mappings, Discovery{
		Enabled:   true,
		Pattern:   `^(?!ignored)[a-zA-Z0-9_]+$`,
		Path:      "$.qux[*]",
		IDPath:    "somekey",
		ValuePath: "someval",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"fooProperty":     "foo-val",
		"missingProperty": NotAvailable,
		"a":               "a-val",
		"b":               "b-val",
		"c":               NotAvailable,
	}, bag.Map())
	assert.Equal(t, []string{"fooProperty", "missingProperty", "a", "b", "c"}, bag.Keys())
}

func TestExplicitMappingWinsOverDiscovery(t *testing.T) {
	mappings := mustMappings(t, map[string]any{"bar": "$.baz.baaz"})
	bag, err := Extract(decode(t, discoveryDoc), mappings, Discovery{Enabled: true, Path: "$.*"}, nil)
	require.NoError(t, err)
	v, _ := bag.Get("bar")
	assert.Equal(t, "baz-val", v)
}

func TestMappingKinds(t *testing.T) {
	doc := decode(t, `{
		"id": "S1A_IW_GRDH_1SDV_20141126T230844_20141126T230904_003459_0040CE_E073_COG",
		"props": {"date": "2021-04-21T18:27:19.123Z", "gone": null, "tags": ["x", "y"]},
		"items": [{"d": "2021-01-01"}, {"d": "2021-02-01"}]
	}`)
	mappings := mustMappings(t, map[string]any{
		"id":          "$.id",
		"startDate":   "{$.props.date#to_iso_date}",
		"mode":        "{$.id#get_sensor_mode_from_s1_id}",
		"nothing":     "$.props.gone",
		"tags":        "$.props.tags",
		"dates":       "{$.items[*].d#to_timestamp_milliseconds}",
		"provider":    "acme",
		"downloadUrl": "https://example.com/{id}/{mode}",
		"queryable":   []any{"sensorMode={mode}", "$.id"},
	})
	bag, err := Extract(doc, mappings, Discovery{}, map[string]any{
		"platform":  "SENTINEL1",
		"provider":  "ignored-default",
		"nothing":   "ignored-default",
		"startDate": "ignored-default",
	})
	require.NoError(t, err)

	get := func(k string) any {
		v, ok := bag.Get(k)
		require.True(t, ok, k)
		return v
	}
	assert.Equal(t, "2021-04-21", get("startDate"))
	assert.Equal(t, "IW", get("mode"))
	assert.Nil(t, get("nothing"))
	assert.Equal(t, []any{"x", "y"}, get("tags"))
	assert.Equal(t, []any{int64(1609459200000), int64(1612137600000)}, get("dates"))
	assert.Equal(t, "acme", get("provider"))
	assert.Equal(t, "https://example.com/S1A_IW_GRDH_1SDV_20141126T230844_20141126T230904_003459_0040CE_E073_COG/IW", get("downloadUrl"))
	assert.Equal(t, "SENTINEL1", get("platform"))
	assert.True(t, bag.Has("queryable"))

	var q FieldMapping
	for _, m := range mappings {
		if m.Name == "queryable" {
			q = m
		}
	}
	assert.True(t, q.Queryable())
	assert.Equal(t, "sensorMode", q.OutgoingKey)
	assert.Equal(t, KindPath, q.Kind())
}

func TestExtractKeepsMappingOrder(t *testing.T) {
	raw := map[string]any{"zeta": "$.z", "alpha": "$.a", "mid": "$.m"}
	mappings, err := ParseOrderedMappings(pathquery.JSON, raw, []string{"zeta", "alpha", "mid"}, nil)
	require.NoError(t, err)

	bag, err := Extract(decode(t, `{"z": 1, "a": 2, "m": 3}`), mappings, Discovery{}, map[string]any{
		"y": "default", "b": "default", "alpha": "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid", "b", "y"}, bag.Keys())

	data, err := json.Marshal(bag)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":2,"mid":3,"b":"default","y":"default"}`, string(data))
}

func TestParseOrderedMappingsAppendsUnlisted(t *testing.T) {
	raw := map[string]any{"c": "$.c", "a": "$.a", "b": "$.b"}
	mappings, err := ParseOrderedMappings(pathquery.JSON, raw, []string{"c", "gone"}, nil)
	require.NoError(t, err)

	var names []string
	for _, m := range mappings {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
}

func TestConversionErrorsAreCollected(t *testing.T) {
	doc := decode(t, `{"good": "2021-04-21", "bad": "yesterday", "worse": "tomorrow"}`)
	mappings := mustMappings(t, map[string]any{
		"good":  "{$.good#to_iso_date}",
		"bad":   "{$.bad#to_iso_date}",
		"worse": "{$.worse#to_timestamp_milliseconds}",
	})
	bag, err := Extract(doc, mappings, Discovery{}, nil)
	require.Error(t, err)

	var convErr *errdefs.ConversionError
	assert.True(t, errors.As(err, &convErr))
	assert.Contains(t, err.Error(), "bad")
	assert.Contains(t, err.Error(), "worse")

	good, _ := bag.Get("good")
	assert.Equal(t, "2021-04-21", good)
	assert.True(t, bag.IsNotAvailable("bad"))
	assert.True(t, bag.IsNotAvailable("worse"))
}

func TestParseMappingErrors(t *testing.T) {
	_, err := ParseMappings(pathquery.JSON, map[string]any{"x": "{$.a#no_such}"}, nil)
	assert.True(t, errors.Is(err, errdefs.ErrUnknownConverter))

	_, err = ParseMappings(pathquery.JSON, map[string]any{"x": []any{"a", "b", "c"}}, nil)
	var cfgErr *errdefs.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestXMLExtraction(t *testing.T) {
	doc, err := pathquery.DecodeXML(strings.NewReader(`<feed xmlns="http://www.w3.org/2005/Atom">
	  <entry>
	    <id>S2A_MSIL1C_20160602T065342_N0202_R077_T39KVU_20160602T065342</id>
	    <cloud>12.5</cloud>
	    <orbit>77</orbit>
	  </entry>
	</feed>`))
	require.NoError(t, err)

	mappings, err := ParseMappings(pathquery.XML, map[string]any{
		"id":              "/ns:feed/ns:entry/ns:id/text()",
		"processingLevel": "{/ns:feed/ns:entry/ns:id/text()#get_processing_level_from_s2_id}",
		"missing":         "//ns:nope",
		"kind":            "optical",
	}, nil)
	require.NoError(t, err)

	bag, err := Extract(doc, mappings, Discovery{Enabled: true, Path: "/ns:feed/ns:entry/*"}, nil)
	require.NoError(t, err)
	m := bag.Map()
	assert.Equal(t, "S2MSIL1C", m["processingLevel"])
	assert.Equal(t, NotAvailable, m["missing"])
	assert.Equal(t, "optical", m["kind"])
	assert.Equal(t, "12.5", m["cloud"])
	assert.Equal(t, "77", m["orbit"])
	assert.Equal(t, []string{"id", "kind", "missing", "processingLevel", "cloud", "orbit"}, bag.Keys())
}

func TestPropertyBagJSON(t *testing.T) {
	bag := NewPropertyBag()
	bag.Set("z", 1)
	bag.Set("a", NotAvailable)
	bag.Set("m", nil)
	bag.Set("z", 2)
	raw, err := json.Marshal(bag)
	require.NoError(t, err)
	assert.Equal(t, `{"z":2,"a":"Not Available","m":null}`, string(raw))

	bag.Delete("z")
	assert.Equal(t, []string{"a", "m"}, bag.Keys())
	bag.SetDefault("a", "ignored")
	bag.SetDefault("m", "ignored")
	bag.SetDefault("n", "filled")
	assert.True(t, bag.IsNotAvailable("a"))
	v, _ := bag.Get("m")
	assert.Nil(t, v)
	v, _ = bag.Get("n")
	assert.Equal(t, "filled", v)
}

func TestDefaultMappingCompiles(t *testing.T) {
	mappings, err := ParseMappings(pathquery.JSON, DefaultMapping, nil)
	require.NoError(t, err)
	assert.Len(t, mappings, len(DefaultMapping))

	merged := Merge(mappings, mustMappings(t, map[string]any{"id": "$.properties.identifier", "extra": "$.x"}))
	assert.Len(t, merged, len(DefaultMapping)+1)
	for _, m := range merged {
		if m.Name == "id" {
			assert.Equal(t, "$.properties.identifier", m.Path.String())
		}
	}
}
