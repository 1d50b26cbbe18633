package transform

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
	"github.com/paulmach/orb/simplify"
)

const (
	// CoordsPrecision is the number of decimals kept by the rounding
	// WKT converters.
	CoordsPrecision = 4
	// WKTMaxLen is the length above which to_rounded_wkt simplifies.
	WKTMaxLen = 1600
	// DefaultSRID is assumed when an EWKT value carries no SRID.
	DefaultSRID = 4326
)

var (
	ewktRe     = regexp.MustCompile(`^(?i)SRID=(\d+);(.*)$`)
	srsDigits  = regexp.MustCompile(`(\d+)\s*$`)
	spaceRuns  = regexp.MustCompile(`\s+`)
	wktTighten = strings.NewReplacer(" (", "(", "( ", "(", " )", ")", ") ", ")", ", ", ",", " ,", ",")
)

// ParseWKT parses WKT text, tolerating the spacing variants providers emit.
func ParseWKT(s string) (orb.Geometry, error) {
	s = strings.ToUpper(strings.TrimSpace(spaceRuns.ReplaceAllString(s, " ")))
	for {
		next := wktTighten.Replace(s)
		if next == s {
			break
		}
		s = next
	}
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("parse wkt: %w", err)
	}
	return g, nil
}

// ParseEWKT parses "SRID=n;WKT" (or plain WKT, assumed EPSG:4326) and
// reprojects the geometry to EPSG:4326.
func ParseEWKT(s string) (orb.Geometry, error) {
	srid := DefaultSRID
	body := s
	if m := ewktRe.FindStringSubmatch(strings.TrimSpace(s)); m != nil {
		srid, _ = strconv.Atoi(m[1])
		body = m[2]
	}
	g, err := ParseWKT(body)
	if err != nil {
		return nil, err
	}
	return ToWGS84(g, srid)
}

// ToWGS84 reprojects g from the given EPSG code to geographic coordinates.
// Only spherical mercator sources are supported besides EPSG:4326.
func ToWGS84(g orb.Geometry, srid int) (orb.Geometry, error) {
	switch srid {
	case 4326:
		return g, nil
	case 3857, 900913, 3785, 102100:
		return project.Geometry(orb.Clone(g), project.Mercator.ToWGS84), nil
	}
	return nil, fmt.Errorf("unsupported projection EPSG:%d", srid)
}

// SRIDFromName extracts the EPSG code from names such as "EPSG:3857" or
// "urn:ogc:def:crs:EPSG::3857".
func SRIDFromName(name string) (int, error) {
	m := srsDigits.FindStringSubmatch(name)
	if m == nil {
		return 0, fmt.Errorf("unrecognised srs name %q", name)
	}
	return strconv.Atoi(m[1])
}

// GeometryOf converts the supported geometry representations to an
// orb.Geometry: orb values, WKT/EWKT text, GeoJSON text or objects,
// {lonmin,latmin,lonmax,latmax} boxes, 4-number lists and GeoRSS nodes.
func GeometryOf(v any) (orb.Geometry, error) {
	switch tv := v.(type) {
	case orb.Geometry:
		return tv, nil
	case *xmlquery.Node:
		return geometryFromGeoRSS(tv)
	case string:
		s := strings.TrimSpace(tv)
		switch {
		case strings.HasPrefix(s, "{"):
			return geometryFromGeoJSON([]byte(s))
		case ewktRe.MatchString(s):
			return ParseEWKT(s)
		default:
			return ParseWKT(s)
		}
	case map[string]any:
		if _, ok := tv["type"]; ok {
			raw, err := json.Marshal(tv)
			if err != nil {
				return nil, err
			}
			return geometryFromGeoJSON(raw)
		}
		return boundFromMap(tv)
	}
	if list, ok := asList(v); ok && len(list) == 4 {
		var c [4]float64
		for i, item := range list {
			f, err := asFloat(item)
			if err != nil {
				return nil, err
			}
			c[i] = f
		}
		return boxPolygon(orb.Bound{Min: orb.Point{c[0], c[1]}, Max: orb.Point{c[2], c[3]}}), nil
	}
	return nil, fmt.Errorf("cannot read a geometry from %T", v)
}

func geometryFromGeoJSON(raw []byte) (orb.Geometry, error) {
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	return g.Geometry(), nil
}

func boundFromMap(m map[string]any) (orb.Geometry, error) {
	var c [4]float64
	for i, key := range []string{"lonmin", "latmin", "lonmax", "latmax"} {
		raw, ok := m[key]
		if !ok {
			return nil, fmt.Errorf("bounding box is missing %q", key)
		}
		f, err := asFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("bounding box %s: %w", key, err)
		}
		c[i] = f
	}
	return boxPolygon(orb.Bound{Min: orb.Point{c[0], c[1]}, Max: orb.Point{c[2], c[3]}}), nil
}

// parts lists the members of a multi geometry in input order; a single
// geometry is its own only part.
func parts(g orb.Geometry) []orb.Geometry {
	var out []orb.Geometry
	switch tg := g.(type) {
	case orb.MultiPolygon:
		for _, p := range tg {
			out = append(out, p)
		}
	case orb.MultiLineString:
		for _, l := range tg {
			out = append(out, l)
		}
	case orb.MultiPoint:
		for _, p := range tg {
			out = append(out, p)
		}
	case orb.Collection:
		out = append(out, tg...)
	default:
		out = append(out, g)
	}
	return out
}

func boundsList(b orb.Bound) []float64 {
	return []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

func geometryConverters() []Converter {
	geom := func(name string, fn func(orb.Geometry, []any) (any, error), minArgs, maxArgs int) Converter {
		return Converter{Name: name, MinArgs: minArgs, MaxArgs: maxArgs, Fn: func(v any, args []any) (any, error) {
			g, err := GeometryOf(v)
			if err != nil {
				return nil, err
			}
			return fn(g, args)
		}}
	}
	return []Converter{
		geom("to_rounded_wkt", func(g orb.Geometry, _ []any) (any, error) {
			return roundedWKT(g), nil
		}, 0, 0),
		geom("to_ewkt", func(g orb.Geometry, _ []any) (any, error) {
			return fmt.Sprintf("SRID=%d;%s", DefaultSRID, MarshalWKT(g, CoordsPrecision)), nil
		}, 0, 0),
		{Name: "from_ewkt", Fn: func(v any, _ []any) (any, error) {
			s, err := asString(v)
			if err != nil {
				return nil, err
			}
			return ParseEWKT(s)
		}},
		geom("to_geojson", func(g orb.Geometry, _ []any) (any, error) {
			raw, err := json.Marshal(geojson.NewGeometry(g))
			if err != nil {
				return nil, err
			}
			return string(raw), nil
		}, 0, 0),
		geom("to_bounds_lists", func(g orb.Geometry, _ []any) (any, error) {
			ps := parts(g)
			out := make([][]float64, 0, len(ps))
			for i := len(ps) - 1; i >= 0; i-- {
				out = append(out, boundsList(ps[i].Bound()))
			}
			return out, nil
		}, 0, 0),
		geom("to_bounds", func(g orb.Geometry, _ []any) (any, error) {
			return boundsList(g.Bound()), nil
		}, 0, 0),
		geom("to_nwse_bounds_str", func(g orb.Geometry, args []any) (any, error) {
			sep := ","
			if len(args) > 0 {
				sep = Text(args[0])
			}
			b := g.Bound()
			return strings.Join([]string{
				formatCoord(b.Max[1], -1), formatCoord(b.Min[0], -1),
				formatCoord(b.Min[1], -1), formatCoord(b.Max[0], -1),
			}, sep), nil
		}, 0, 1),
		geom("to_longitude_latitude", func(g orb.Geometry, _ []any) (any, error) {
			c := g.Bound().Center()
			return map[string]any{"lon": c[0], "lat": c[1]}, nil
		}, 0, 0),
		geom("to_wkt", func(g orb.Geometry, _ []any) (any, error) {
			return MarshalWKT(g, -1), nil
		}, 0, 0),
		{Name: "from_georss", Fn: func(v any, _ []any) (any, error) {
			return geometryFromGeoRSSValue(v)
		}},
	}
}

// roundedWKT renders g with CoordsPrecision decimals, simplifying it with a
// growing tolerance while the text stays longer than WKTMaxLen.
func roundedWKT(g orb.Geometry) string {
	out := MarshalWKT(g, CoordsPrecision)
	for tolerance := 0.1; len(out) > WKTMaxLen && tolerance <= 1; tolerance += 0.1 {
		simplified := simplify.DouglasPeucker(tolerance).Simplify(orb.Clone(g))
		out = MarshalWKT(simplified, CoordsPrecision)
	}
	return out
}
