package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	s2LevelRe  = regexp.MustCompile(`^S2[A-D]_MSI(L1C|L2A)`)
	stampRe    = regexp.MustCompile(`[0-9]{8}T[0-9]{6}`)
	copDemRe   = regexp.MustCompile(`_([NS])(\d+)_\d+_([EW])(\d+)_\d+$`)
	mgrsTileRe = regexp.MustCompile(`^T?(\d{1,2})([C-X])([A-Z]{2})$`)
)

var s1Polarisations = map[string]string{
	"SV": "VV",
	"SH": "HH",
	"DH": "HH+HV",
	"DV": "VV+VH",
}

func parseStamp(s string) (time.Time, error) {
	t, err := time.Parse(compactStamp, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad acquisition stamp %q", s)
	}
	return t, nil
}

// S1Params splits a Sentinel-1 product identifier such as
// S1A_IW_GRDH_1SDV_20141126T230844_20141126T230904_003459_0040CE_E073_COG.
// The acquisition window is widened by one second on each side.
func S1Params(id string) (map[string]any, error) {
	parts := strings.Split(id, "_")
	if len(parts) < 6 || len(parts[2]) < 3 || len(parts[3]) < 4 {
		return nil, fmt.Errorf("not a Sentinel-1 identifier: %q", id)
	}
	start, err := parseStamp(parts[4])
	if err != nil {
		return nil, err
	}
	end, err := parseStamp(parts[5])
	if err != nil {
		return nil, err
	}
	productType := parts[2][:3]
	switch {
	case strings.Contains(id, "CARD_BS"):
		productType = "CARD-BS"
	case parts[len(parts)-1] == "COG":
		productType += "-COG"
	}
	polarisation, ok := s1Polarisations[parts[3][2:4]]
	if !ok {
		return nil, fmt.Errorf("unknown polarisation code %q", parts[3][2:4])
	}
	return map[string]any{
		"sensorMode":      parts[1],
		"processingLevel": "LEVEL" + parts[3][:1],
		"startDate":       start.Add(-time.Second).Format(isoSeconds),
		"endDate":         end.Add(time.Second).Format(isoSeconds),
		"productType":     productType,
		"polarisation":    polarisation,
	}, nil
}

// S3Params splits a Sentinel-3 product identifier.
func S3Params(id string) (map[string]any, error) {
	parts := strings.Split(id, "_")
	stamps := stampRe.FindAllString(id, 2)
	if len(id) < 15 || len(parts) < 3 || len(stamps) < 2 {
		return nil, fmt.Errorf("not a Sentinel-3 identifier: %q", id)
	}
	start, err := parseStamp(stamps[0])
	if err != nil {
		return nil, err
	}
	end, err := parseStamp(stamps[1])
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"productType": id[4:15],
		"startDate":   start.Add(-time.Second).Format(isoSeconds),
		"endDate":     end.Add(time.Second).Format(isoSeconds),
		"timeliness":  parts[len(parts)-2],
		"sat":         "Sentinel-" + parts[0][1:],
	}, nil
}

// S5PParams splits a Sentinel-5P product identifier. The acquisition window
// is widened by ten seconds on each side.
func S5PParams(id string) (map[string]any, error) {
	parts := strings.Split(id, "_")
	if len(id) < 19 || len(parts) < 8 {
		return nil, fmt.Errorf("not a Sentinel-5P identifier: %q", id)
	}
	start, err := parseStamp(parts[len(parts)-6])
	if err != nil {
		return nil, err
	}
	end, err := parseStamp(parts[len(parts)-5])
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"productType":     id[9:19],
		"processingMode":  parts[1],
		"processingLevel": strings.ReplaceAll(parts[2], "_", ""),
		"startDate":       start.Add(-10 * time.Second).Format(isoSeconds),
		"endDate":         end.Add(10 * time.Second).Format(isoSeconds),
	}, nil
}

func missionConverters() []Converter {
	s1Field := func(key string) func(any) (any, error) {
		return func(v any) (any, error) {
			s, err := asString(v)
			if err != nil {
				return nil, err
			}
			params, err := S1Params(s)
			if err != nil {
				return nil, err
			}
			return params[key], nil
		}
	}
	idFunc := func(fn func(string) (map[string]any, error)) func(any) (any, error) {
		return func(v any) (any, error) {
			s, err := asString(v)
			if err != nil {
				return nil, err
			}
			return fn(s)
		}
	}
	return []Converter{
		unary("split_id_into_s1_params", idFunc(S1Params)),
		unary("get_processing_level_from_s1_id", s1Field("processingLevel")),
		unary("get_sensor_mode_from_s1_id", s1Field("sensorMode")),
		unary("get_processing_level_from_s2_id", func(v any) (any, error) {
			s, err := asString(v)
			if err != nil {
				return nil, err
			}
			m := s2LevelRe.FindStringSubmatch(s)
			if m == nil {
				return nil, fmt.Errorf("not a Sentinel-2 MSI identifier: %q", s)
			}
			return "S2MSI" + m[1], nil
		}),
		unary("split_id_into_s3_params", idFunc(S3Params)),
		unary("split_id_into_s5p_params", idFunc(S5PParams)),
		unary("get_processing_level_from_s5p_id", func(v any) (any, error) {
			s, err := asString(v)
			if err != nil {
				return nil, err
			}
			if len(s) < 12 {
				return nil, fmt.Errorf("not a Sentinel-5P identifier: %q", s)
			}
			return strings.ReplaceAll(s[9:12], "_", ""), nil
		}),
		unary("fake_l2a_title_from_l1c", func(v any) (any, error) {
			s, err := asString(v)
			if err != nil {
				return nil, err
			}
			parts := strings.Split(s, "_")
			if len(parts) != 7 {
				return nil, fmt.Errorf("not a Sentinel-2 L1C title: %q", s)
			}
			return fmt.Sprintf("%s_MSIL2A_%s%s%s%s",
				parts[0], parts[2], strings.Repeat("_", 12), parts[5], strings.Repeat("_", 16)), nil
		}),
		unary("s2msil2a_title_to_aws_productinfo", func(v any) (any, error) {
			s, err := asString(v)
			if err != nil {
				return nil, err
			}
			parts := strings.Split(s, "_")
			if len(parts) != 7 {
				return nil, fmt.Errorf("not a Sentinel-2 L2A title: %q", s)
			}
			tile := mgrsTileRe.FindStringSubmatch(parts[5])
			if tile == nil {
				return nil, fmt.Errorf("bad MGRS tile %q", parts[5])
			}
			t, err := parseStamp(parts[2])
			if err != nil {
				return nil, err
			}
			zone, _ := strconv.Atoi(tile[1])
			return fmt.Sprintf("https://roda.sentinel-hub.com/sentinel-s2-l2a/tiles/%d/%s/%s/%d/%d/%d/0/{collection}.json",
				zone, tile[2], tile[3], t.Year(), int(t.Month()), t.Day()), nil
		}),
		unary("split_cop_dem_id", func(v any) (any, error) {
			s, err := asString(v)
			if err != nil {
				return nil, err
			}
			m := copDemRe.FindStringSubmatch(s)
			if m == nil {
				return nil, fmt.Errorf("not a Copernicus DEM identifier: %q", s)
			}
			lat, _ := strconv.Atoi(m[2])
			lon, _ := strconv.Atoi(m[4])
			if m[1] == "S" {
				lat = -lat
			}
			if m[3] == "W" {
				lon = -lon
			}
			return []int{lon - 1, lat - 1, lon + 1, lat + 1}, nil
		}),
	}
}
