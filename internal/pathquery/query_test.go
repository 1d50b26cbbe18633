package pathquery

import (
	"errors"
	"testing"

	"github.com/antchfx/xmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eosearch/internal/errdefs"
)

const sample = `{
	"foo": "foo-val",
	"bar": "bar-val",
	"baz": {"baaz": "baz-val"},
	"nothing": null,
	"qux": [
		{"somekey": "a", "someval": "a-val"},
		{"somekey": "b", "someval": "b-val", "some": "thing"},
		{"somekey": "c"},
		{"someval": "d-val"}
	],
	"count": 42,
	"ratio": 0.5
}`

func decodeSample(t *testing.T) *Document {
	t.Helper()
	doc, err := DecodeJSONBytes([]byte(sample))
	require.NoError(t, err)
	return doc
}

func TestJSONResolve(t *testing.T) {
	doc := decodeSample(t)

	cases := []struct {
		expr string
		want any
	}{
		{"$.foo", "foo-val"},
		{"$.baz.baaz", "baz-val"},
		{"$.qux[0].somekey", "a"},
		{"$.qux[?(@.somekey == 'b')].someval", "b-val"},
		{"$..baaz", "baz-val"},
		{"$.count", int64(42)},
		{"$.ratio", 0.5},
		{"$.qux[*].somekey", []any{"a", "b", "c"}},
	}
	for _, tc := range cases {
		got, err := Resolve(doc, tc.expr)
		require.NoError(t, err, tc.expr)
		assert.Equal(t, tc.want, got, tc.expr)
	}

	got, err := Resolve(doc, "$.nothing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestJSONNotFound(t *testing.T) {
	doc := decodeSample(t)
	_, err := Resolve(doc, "$.missing")
	assert.True(t, errors.Is(err, errdefs.ErrNotFound))

	_, err = Resolve(FromValue("scalar"), "$.a.b.c")
	assert.True(t, errors.Is(err, errdefs.ErrNotFound))
}

func TestCompileErrors(t *testing.T) {
	var cfgErr *errdefs.ConfigError
	_, err := Compile(JSON, "$.a[")
	assert.ErrorAs(t, err, &cfgErr)
	_, err = Compile(JSON, "foo")
	assert.ErrorAs(t, err, &cfgErr)
	_, err = Compile(XML, "//a[")
	assert.ErrorAs(t, err, &cfgErr)
	assert.Panics(t, func() { MustCompile(XML, "//a[") })
}

func TestJSONChildrenInDocumentOrder(t *testing.T) {
	doc := decodeSample(t)
	entries, err := Children(doc, MustCompile(JSON, "$.*"))
	require.NoError(t, err)

	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	assert.Equal(t, []string{"foo", "bar", "baz", "nothing", "qux", "count", "ratio"}, keys)

	items, err := Children(doc, MustCompile(JSON, "$.qux[*]"))
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, "3", items[3].Key)
}

func TestFromValueSortsKeys(t *testing.T) {
	doc := FromValue(map[string]any{"b": 1, "a": 2})
	entries, err := Children(doc, MustCompile(JSON, "$.*"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
}

const atom = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:georss="http://www.georss.org/georss">
  <entry>
    <id>S2A_1</id>
    <title>first</title>
    <georss:polygon>1 2 3 4 5 6 1 2</georss:polygon>
    <link rel="enclosure" href="https://example.com/1"/>
  </entry>
  <entry>
    <id>S2A_2</id>
    <title>second</title>
  </entry>
</feed>`

func TestXMLResolveWithNamespaces(t *testing.T) {
	doc, err := Decode(XML, []byte(atom))
	require.NoError(t, err)
	assert.Equal(t, XML, doc.Dialect())

	id, err := Resolve(doc, "/ns:feed/ns:entry[1]/ns:id/text()")
	require.NoError(t, err)
	assert.Equal(t, "S2A_1", id)

	href, err := Resolve(doc, "//ns:entry[1]/ns:link[@rel='enclosure']/@href")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/1", href)

	poly, err := Resolve(doc, "//georss:polygon")
	require.NoError(t, err)
	node, ok := poly.(*xmlquery.Node)
	require.True(t, ok, "element matches stay nodes, got %T", poly)
	assert.Equal(t, "polygon", node.Data)

	count, err := Resolve(doc, "count(//ns:entry)")
	require.NoError(t, err)
	assert.Equal(t, float64(2), count)

	_, err = Resolve(doc, "//ns:missing")
	assert.True(t, errors.Is(err, errdefs.ErrNotFound))

	entries, err := Children(doc, MustCompile(XML, "/ns:feed/ns:entry[2]/*"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Key: "id", Value: "S2A_2"}, entries[0])
}

func TestDialectMismatch(t *testing.T) {
	doc := decodeSample(t)
	_, err := MustCompile(XML, "//a").Resolve(doc)
	assert.Error(t, err)
}

func TestIsPath(t *testing.T) {
	assert.True(t, IsPath(JSON, "$.a"))
	assert.False(t, IsPath(JSON, "constant"))
	assert.True(t, IsPath(XML, "//ns:id"))
	assert.True(t, IsPath(XML, "ns:a/ns:b"))
	assert.False(t, IsPath(XML, "constant"))
	assert.False(t, IsPath(XML, "{a}/{b}"))
}
