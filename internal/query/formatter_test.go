package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eosearch/internal/errdefs"
	"eosearch/internal/spec"
)

func testProvider() spec.Provider {
	return spec.Provider{
		Dialect: "json",
		Products: map[string]spec.Product{
			"ERA5_SL": {
				ProductType: "reanalysis-era5-single-levels",
				Params:      map[string]any{"format": "grib", "variable": "2m_temperature"},
			},
			"S2_MSI_L1C": {
				ProductType: "S2MSI1C",
				MetadataMapping: map[string]any{
					"cloudCover": []any{"maxCloud={cloudCover}", "$.properties.cc"},
				},
			},
		},
		MetadataMapping: map[string]any{
			"productType":                []any{"dataset={productType}", "$.dataset"},
			"startTimeFromAscendingNode": []any{"start={startTimeFromAscendingNode#to_iso_date}", "$.start"},
			"geometry":                   []any{"area={geometry#to_bounds}", "$.geometry"},
			"variables":                  []any{`{{"variable": {variables}}}`, "$.variables"},
		},
		FreeTextSearch: map[string]spec.FreeTextOp{
			"q": {
				Union:   " OR ",
				Wrapper: "({})",
				Operations: map[string][]string{
					"AND": {`platform:{platform}`, `instrument:{instrument}`},
				},
			},
		},
	}
}

func TestProductType(t *testing.T) {
	f, err := New("cds", testProvider(), nil)
	require.NoError(t, err)

	pt, ok := f.ProductType("ERA5_SL")
	assert.True(t, ok)
	assert.Equal(t, "reanalysis-era5-single-levels", pt)

	pt, ok = f.ProductType("UNLISTED")
	assert.True(t, ok)
	assert.Equal(t, GenericProductType, pt)

	pt, ok = f.ProductType("")
	assert.False(t, ok)
	assert.Empty(t, pt)
}

func TestFormatMergesStaticParams(t *testing.T) {
	f, err := New("cds", testProvider(), nil)
	require.NoError(t, err)

	out, err := f.Format("reanalysis-era5-single-levels", map[string]any{
		"productType":                "ERA5_SL",
		"startTimeFromAscendingNode": "2020-01-01T10:00:00Z",
		"geometry":                   "POLYGON ((1 43, 2 43, 2 44, 1 44, 1 43))",
		"format":                     "netcdf",
	})
	require.NoError(t, err)

	assert.Equal(t, "reanalysis-era5-single-levels", out["dataset"])
	assert.Equal(t, "2020-01-01", out["start"])
	assert.Equal(t, []any{1.0, 43.0, 2.0, 44.0}, out["area"])
	// unmapped caller args never reach the request
	assert.Equal(t, "grib", out["format"])
	assert.Equal(t, "2m_temperature", out["variable"])
	assert.NotContains(t, out, "q")
}

func TestFormatSkipsArgsNotGiven(t *testing.T) {
	f, err := New("cds", testProvider(), nil)
	require.NoError(t, err)

	out, err := f.Format("", map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFormatJSONFragment(t *testing.T) {
	f, err := New("cds", testProvider(), nil)
	require.NoError(t, err)

	out, err := f.Format("X", map[string]any{"variables": []any{"t2m", "u10"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"t2m", "u10"}, out["variable"])
	assert.Equal(t, "X", out["dataset"])
}

func TestFormatProductMapping(t *testing.T) {
	f, err := New("cds", testProvider(), nil)
	require.NoError(t, err)

	out, err := f.Format("S2MSI1C", map[string]any{"productType": "S2_MSI_L1C", "cloudCover": 20})
	require.NoError(t, err)
	assert.Equal(t, "20", out["maxCloud"])

	out, err = f.Format("S2MSI1C", map[string]any{"productType": "ERA5_SL", "cloudCover": 20})
	require.NoError(t, err)
	assert.NotContains(t, out, "maxCloud")
}

func TestFormatFreeText(t *testing.T) {
	f, err := New("cds", testProvider(), nil)
	require.NoError(t, err)

	out, err := f.Format("", map[string]any{"platform": "S2A", "instrument": "MSI"})
	require.NoError(t, err)
	assert.Equal(t, "((platform:S2A AND instrument:MSI))", out["q"])

	out, err = f.Format("", map[string]any{"platform": "S2A"})
	require.NoError(t, err)
	assert.Equal(t, "(platform:S2A)", out["q"])
}

func TestFormatConversionError(t *testing.T) {
	f, err := New("cds", testProvider(), nil)
	require.NoError(t, err)

	_, err = f.Format("", map[string]any{"startTimeFromAscendingNode": "not a date"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startTimeFromAscendingNode")
}

func TestFormatMissingFieldIsFatal(t *testing.T) {
	p := testProvider()
	p.MetadataMapping["geometry"] = []any{"area={geometry#to_bounds}/{crs}", "$.geometry"}
	f, err := New("cds", p, nil)
	require.NoError(t, err)

	_, err = f.Format("PT", map[string]any{"geometry": "POINT (1 2)"})
	require.Error(t, err)
	var missing *errdefs.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "crs", missing.Field)

	out, err := f.Format("PT", map[string]any{"geometry": "POINT (1 2)", "crs": "EPSG:4326"})
	require.NoError(t, err)
	assert.Contains(t, out, "area")
}

func TestNewRejectsBadTemplate(t *testing.T) {
	p := testProvider()
	p.MetadataMapping["bad"] = []any{"x={a#no_such_converter}", "$.x"}
	_, err := New("cds", p, nil)
	require.Error(t, err)
}

func TestMappingsPerProduct(t *testing.T) {
	f, err := New("cds", testProvider(), nil)
	require.NoError(t, err)

	names := func(callerType string) map[string]bool {
		out := map[string]bool{}
		for _, m := range f.Mappings(callerType) {
			out[m.Name] = true
		}
		return out
	}
	assert.True(t, names("S2_MSI_L1C")["cloudCover"])
	assert.True(t, names("S2_MSI_L1C")["uid"])
	assert.True(t, names("ERA5_SL")["uid"])
}
