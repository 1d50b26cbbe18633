package transform

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// MarshalWKT renders g as WKT with "TYPE (x y, ...)" spacing. prec is the
// number of decimals to keep; a negative prec uses the shortest exact form.
func MarshalWKT(g orb.Geometry, prec int) string {
	var b strings.Builder
	writeWKT(&b, g, prec)
	return b.String()
}

func writeWKT(b *strings.Builder, g orb.Geometry, prec int) {
	switch tg := g.(type) {
	case orb.Point:
		b.WriteString("POINT (")
		writePoint(b, tg, prec)
		b.WriteByte(')')
	case orb.MultiPoint:
		if len(tg) == 0 {
			b.WriteString("MULTIPOINT EMPTY")
			return
		}
		b.WriteString("MULTIPOINT (")
		for i, p := range tg {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('(')
			writePoint(b, p, prec)
			b.WriteByte(')')
		}
		b.WriteByte(')')
	case orb.LineString:
		if len(tg) == 0 {
			b.WriteString("LINESTRING EMPTY")
			return
		}
		b.WriteString("LINESTRING ")
		writePath(b, tg, prec)
	case orb.MultiLineString:
		if len(tg) == 0 {
			b.WriteString("MULTILINESTRING EMPTY")
			return
		}
		b.WriteString("MULTILINESTRING (")
		for i, l := range tg {
			if i > 0 {
				b.WriteString(", ")
			}
			writePath(b, l, prec)
		}
		b.WriteByte(')')
	case orb.Ring:
		writeWKT(b, orb.Polygon{tg}, prec)
	case orb.Polygon:
		if len(tg) == 0 {
			b.WriteString("POLYGON EMPTY")
			return
		}
		b.WriteString("POLYGON ")
		writeRings(b, tg, prec)
	case orb.MultiPolygon:
		if len(tg) == 0 {
			b.WriteString("MULTIPOLYGON EMPTY")
			return
		}
		b.WriteString("MULTIPOLYGON (")
		for i, p := range tg {
			if i > 0 {
				b.WriteString(", ")
			}
			writeRings(b, p, prec)
		}
		b.WriteByte(')')
	case orb.Bound:
		writeWKT(b, boxPolygon(tg), prec)
	case orb.Collection:
		if len(tg) == 0 {
			b.WriteString("GEOMETRYCOLLECTION EMPTY")
			return
		}
		b.WriteString("GEOMETRYCOLLECTION (")
		for i, member := range tg {
			if i > 0 {
				b.WriteString(", ")
			}
			writeWKT(b, member, prec)
		}
		b.WriteByte(')')
	}
}

func writeRings(b *strings.Builder, p orb.Polygon, prec int) {
	b.WriteByte('(')
	for i, r := range p {
		if i > 0 {
			b.WriteString(", ")
		}
		writePath(b, r, prec)
	}
	b.WriteByte(')')
}

func writePath[P ~[]orb.Point](b *strings.Builder, pts P, prec int) {
	b.WriteByte('(')
	for i, p := range pts {
		if i > 0 {
			b.WriteString(", ")
		}
		writePoint(b, p, prec)
	}
	b.WriteByte(')')
}

func writePoint(b *strings.Builder, p orb.Point, prec int) {
	b.WriteString(formatCoord(p[0], prec))
	b.WriteByte(' ')
	b.WriteString(formatCoord(p[1], prec))
}

func formatCoord(f float64, prec int) string {
	s := strconv.FormatFloat(f, 'f', prec, 64)
	// no negative zero, before or after rounding
	if strings.Trim(s, "-0.") == "" {
		s = strings.TrimPrefix(s, "-")
	}
	return s
}

// boxPolygon returns the polygon of b, starting at its south-east corner and
// running counter-clockwise.
func boxPolygon(b orb.Bound) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{b.Max[0], b.Min[1]},
		{b.Max[0], b.Max[1]},
		{b.Min[0], b.Max[1]},
		{b.Min[0], b.Min[1]},
		{b.Max[0], b.Min[1]},
	}}
}
