package template

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eosearch/internal/errdefs"
	"eosearch/internal/transform"
)

func TestExecute(t *testing.T) {
	cases := []struct {
		src  string
		vars map[string]any
		want string
	}{
		{"plain text", nil, "plain text"},
		{"{a}-{b}", map[string]any{"a": "x", "b": int64(3)}, "x-3"},
		{"{{literal}} {a}", map[string]any{"a": 1.5}, "{literal} 1.5"},
		{"{some_extension:a_parameter}", map[string]any{"some_extension:a_parameter": "value"}, "value"},
		{"{fieldname#datetime_to_timestamp_milliseconds}", map[string]any{"fieldname": "2021-04-21"}, "1618963200000"},
		{"{d#to_iso_date}/{d#to_timestamp_milliseconds}", map[string]any{"d": "2021-04-21T18:27:19.123Z"}, "2021-04-21/1619029639123"},
		{"{fieldname#slice_str(1,12,2)}", map[string]any{"fieldname": "abcdefghijklmnop"}, "bdfhjl"},
		{
			"{fieldname#get_group_name((?P<this_is_foo>foo)|(?P<that_is_bar>bar))}",
			map[string]any{"fieldname": "foo"}, "this_is_foo",
		},
		{
			`{fieldname#replace_str(r'(.*) is (.*)',r'\1 was \2...')}`,
			map[string]any{"fieldname": "this is foo"}, "this was foo...",
		},
		{
			`{id#replace_str(r'^S2[AB]_([0-9]{4})',r'\1')}`,
			map[string]any{"id": "S2A_1234_rest"}, "1234_rest",
		},
		{
			"{start_date#get_corine_product_type(2000-06-01T00:00:00Z)}",
			map[string]any{"start_date": "2000-01-01T00:00:00Z"}, "Corine Land Cover 2000",
		},
		{
			"{fieldname#to_iso_date#remove_extension}",
			map[string]any{"fieldname": "2021-04-21T18:27:19Z"}, "2021-04-21",
		},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			tpl, err := Parse(tc.src, nil)
			require.NoError(t, err)
			got, err := tpl.Execute(tc.vars)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{
		"{unterminated",
		"stray } brace",
		"{}",
		"{a#not_a_converter}",
		"{a#slice_str}",
		"{a#to_iso_date(}",
		"{a#9bad}",
	} {
		_, err := Parse(src, nil)
		var cfgErr *errdefs.ConfigError
		assert.ErrorAs(t, err, &cfgErr, src)
	}

	_, err := Parse("{a#not_a_converter}", nil)
	assert.True(t, errors.Is(err, errdefs.ErrUnknownConverter))
}

func TestMissingField(t *testing.T) {
	tpl := MustParse("{present} {absent}", nil)
	_, err := tpl.Execute(map[string]any{"present": "x"})
	var missing *errdefs.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "absent", missing.Field)
}

func TestEvalKeepsStructure(t *testing.T) {
	tpl := MustParse("{id#split_cop_dem_id}", nil)
	v, err := tpl.Eval(map[string]any{"id": "Copernicus_DSM_10_N59_00_E119_00"})
	require.NoError(t, err)
	assert.Equal(t, []int{118, 58, 120, 60}, v)

	text, err := tpl.Execute(map[string]any{"id": "Copernicus_DSM_10_N59_00_E119_00"})
	require.NoError(t, err)
	assert.Equal(t, "[118,58,120,60]", text)

	mixed := MustParse("bbox={id#split_cop_dem_id}", nil)
	v, err = mixed.Eval(map[string]any{"id": "Copernicus_DSM_10_N59_00_E119_00"})
	require.NoError(t, err)
	assert.Equal(t, "bbox=[118,58,120,60]", v)
}

func TestNotAvailableAndNil(t *testing.T) {
	tpl := MustParse("{a#to_iso_date}", nil)
	v, err := tpl.Eval(map[string]any{"a": transform.NotAvailable})
	require.NoError(t, err)
	assert.Equal(t, transform.NotAvailable, v)

	s, err := tpl.Execute(map[string]any{"a": nil})
	require.NoError(t, err)
	assert.Equal(t, "", s)
}

func TestFieldsAndPaths(t *testing.T) {
	tpl := MustParse(`{$.properties[?(@.kind == 'a#b')].date#to_iso_date}`, nil)
	f, ok := tpl.SingleField()
	require.True(t, ok)
	assert.Equal(t, `$.properties[?(@.kind == 'a#b')].date`, f.Name)
	require.Len(t, f.Converters, 1)
	assert.Equal(t, "to_iso_date", f.Converters[0].Name)

	assert.True(t, HasFields("x {a} y"))
	assert.False(t, HasFields("x {{a}} y"))
	assert.False(t, HasFields("$.plain.path"))
}

func TestCustomRegistry(t *testing.T) {
	reg := transform.NewRegistry()
	reg.Register(transform.Converter{Name: "shout", Fn: func(v any, _ []any) (any, error) {
		return transform.Text(v) + "!", nil
	}})
	tpl, err := Parse("{a#shout}", reg)
	require.NoError(t, err)
	out, err := tpl.Execute(map[string]any{"a": "hey"})
	require.NoError(t, err)
	assert.Equal(t, "hey!", out)

	_, err = Parse("{a#to_iso_date}", reg)
	assert.Error(t, err)
}

func TestConcurrentExecute(t *testing.T) {
	tpl := MustParse("{d#to_iso_date}", nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := tpl.Execute(map[string]any{"d": "2021-04-21T18:27:19Z"})
			assert.NoError(t, err)
			assert.Equal(t, "2021-04-21", out)
		}()
	}
	wg.Wait()
}

func TestFormat(t *testing.T) {
	out, err := Format("{a}:{b#csv_list}", map[string]any{"a": "x", "b": []any{"1", "2"}})
	require.NoError(t, err)
	assert.Equal(t, "x:1,2", out)
}
