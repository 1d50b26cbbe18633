package transform

import (
	"fmt"
	"strconv"
	"time"
)

// NamedValues is a multi-select request parameter.
type NamedValues struct {
	Name  string   `json:"name"`
	Value []string `json:"value"`
}

// NamedValue is a single-choice request parameter.
type NamedValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ParamDocument is the structured request body expected by ECMWF/CDS style
// providers.
type ParamDocument struct {
	MultiStringSelectValues []NamedValues `json:"multiStringSelectValues"`
	StringChoiceValues      []NamedValue  `json:"stringChoiceValues"`
}

var sisSwitchDate = time.Date(2011, time.January, 1, 0, 0, 0, 0, time.UTC)

var sisCIIPeriods = []corinePeriod{{1971, 2000}, {2011, 2040}, {2041, 2070}, {2071, 2100}}

var sisExperiments = []string{"rcp_2_6", "rcp_8_5", "rcp_4_5"}

var era5PressureLevels = []string{
	"1", "2", "3", "5", "7", "10", "20", "30", "50", "70", "100", "125", "150",
	"175", "200", "225", "250", "300", "350", "400", "450", "500", "550", "600",
	"650", "700", "750", "775", "800", "825", "850", "875", "900", "925", "950",
	"975", "1000",
}

var era5PressureVariables = []string{
	"divergence", "fraction_of_cloud_cover", "geopotential",
	"ozone_mass_mixing_ratio", "potential_vorticity", "relative_humidity",
	"specific_cloud_ice_water_content", "specific_cloud_liquid_water_content",
	"specific_humidity", "specific_rain_water_content",
	"specific_snow_water_content", "temperature", "u_component_of_wind",
	"v_component_of_wind", "vertical_velocity", "vorticity",
}

var era5LandVariables = []string{
	"evaporation_from_bare_soil",
	"evaporation_from_open_water_surfaces_excluding_oceans",
	"evaporation_from_the_top_of_canopy",
	"evaporation_from_vegetation_transpiration", "potential_evaporation",
	"runoff", "snow_evaporation", "sub_surface_runoff", "surface_runoff",
	"total_evaporation", "10m_u_component_of_wind", "10m_v_component_of_wind",
	"surface_pressure", "total_precipitation",
	"leaf_area_index_high_vegetation", "leaf_area_index_low_vegetation",
}

var era5SingleLevelVariables = []string{
	"10m_u_component_of_wind", "10m_v_component_of_wind",
	"2m_dewpoint_temperature", "2m_temperature", "mean_sea_level_pressure",
	"mean_wave_direction", "mean_wave_period", "sea_surface_temperature",
	"significant_height_of_combined_wind_waves_and_swell", "surface_pressure",
	"total_precipitation",
}

// SISParams builds the request for the SIS hydrology dataset. Ranges starting
// before 2011 select the essential climate variables with yearly periods;
// later ranges select the climate impact indicators and their 30-year
// periods.
func SISParams(start, end time.Time) ParamDocument {
	choices := func(productType string) []NamedValue {
		return []NamedValue{
			{"product_type", productType},
			{"processing_type", "bias_corrected"},
			{"variable_type", "absolute_values"},
			{"horizontal_resolution", "5_km"},
			{"rcm", "cclm4_8_17"},
			{"gcm", "ec_earth"},
			{"format", "zip"},
		}
	}
	if start.Before(sisSwitchDate) {
		var periods []string
		for y := start.Year(); y <= end.Year(); y++ {
			periods = append(periods, strconv.Itoa(y))
		}
		return ParamDocument{
			MultiStringSelectValues: []NamedValues{
				{"variable", []string{"2m_air_temperature", "precipitation"}},
				{"experiment", sisExperiments},
				{"period", periods},
				{"time_aggregation", []string{"daily"}},
				{"ensemble_member", []string{"r12i1p1"}},
			},
			StringChoiceValues: choices("essential_climate_variables"),
		}
	}
	var periods []string
	for _, p := range sisCIIPeriods {
		if p.from <= end.Year() && p.to >= start.Year() {
			periods = append(periods, fmt.Sprintf("%d_%d", p.from, p.to))
		}
	}
	return ParamDocument{
		MultiStringSelectValues: []NamedValues{
			{"variable", []string{
				"2m_air_temperature", "highest_5_day_precipitation_amount",
				"longest_dry_spells", "number_of_dry_spells", "precipitation",
			}},
			{"experiment", sisExperiments},
			{"period", periods},
			{"time_aggregation", []string{"annual_mean", "monthly_mean"}},
			{"ensemble_member", []string{"r12i1p1", "r1i1p1", "r2i1p1"}},
		},
		StringChoiceValues: choices("climate_impact_indicators"),
	}
}

// ERA5PressureLevelParams builds the ERA5 pressure-level request for the
// hour of t.
func ERA5PressureLevelParams(t time.Time) ParamDocument {
	return ParamDocument{
		MultiStringSelectValues: []NamedValues{
			{"month", []string{month(t)}},
			{"year", []string{year(t)}},
			{"pressure_level", era5PressureLevels},
			{"time", []string{hour(t)}},
			{"day", []string{day(t)}},
			{"variable", era5PressureVariables},
			{"product_type", []string{"reanalysis"}},
		},
		StringChoiceValues: []NamedValue{{"format", "grib"}},
	}
}

// ERA5LandParams builds the ERA5-Land request for the hour of t.
func ERA5LandParams(t time.Time) ParamDocument {
	return ParamDocument{
		MultiStringSelectValues: []NamedValues{
			{"variable", era5LandVariables},
			{"day", []string{day(t)}},
			{"time", []string{hour(t)}},
		},
		StringChoiceValues: []NamedValue{
			{"format", "grib"},
			{"year", year(t)},
			{"month", month(t)},
		},
	}
}

// ERA5SingleLevelParams builds the ERA5 single-level request for the hour
// of t.
func ERA5SingleLevelParams(t time.Time) ParamDocument {
	return ParamDocument{
		MultiStringSelectValues: []NamedValues{
			{"time", []string{hour(t)}},
			{"day", []string{day(t)}},
			{"month", []string{month(t)}},
			{"year", []string{year(t)}},
			{"variable", era5SingleLevelVariables},
			{"product_type", []string{"reanalysis", "ensemble_members"}},
		},
		StringChoiceValues: []NamedValue{{"format", "grib"}},
	}
}

func year(t time.Time) string  { return strconv.Itoa(t.Year()) }
func month(t time.Time) string { return t.Format("01") }
func day(t time.Time) string   { return t.Format("02") }
func hour(t time.Time) string  { return t.Format("15") + ":00" }

func parameterConverters() []Converter {
	at := func(name string, fn func(time.Time) ParamDocument) Converter {
		return unary(name, func(v any) (any, error) {
			t, err := asTime(v)
			if err != nil {
				return nil, err
			}
			return fn(t), nil
		})
	}
	return []Converter{
		{
			Name: "get_ecmwf_sis_params", MinArgs: 1, MaxArgs: 1,
			Check: func(args []any) error {
				_, err := asTime(Text(args[0]))
				return err
			},
			Fn: func(v any, args []any) (any, error) {
				start, err := asTime(v)
				if err != nil {
					return nil, err
				}
				end, err := asTime(Text(args[0]))
				if err != nil {
					return nil, err
				}
				return SISParams(start, end), nil
			},
		},
		at("get_ecmwf_era5pl_params", ERA5PressureLevelParams),
		at("get_ecmwf_era5land_params", ERA5LandParams),
		at("get_ecmwf_era5sl_params", ERA5SingleLevelParams),
	}
}
