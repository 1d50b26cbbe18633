package transform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/paulmach/orb"
)

func geometryFromGeoRSSValue(v any) (orb.Geometry, error) {
	switch tv := v.(type) {
	case *xmlquery.Node:
		return geometryFromGeoRSS(tv)
	case string:
		doc, err := xmlquery.Parse(strings.NewReader(tv))
		if err != nil {
			return nil, fmt.Errorf("parse georss: %w", err)
		}
		root := firstElement(doc)
		if root == nil {
			return nil, fmt.Errorf("georss fragment has no element")
		}
		return geometryFromGeoRSS(root)
	}
	return nil, fmt.Errorf("expected a georss element, got %T", v)
}

// geometryFromGeoRSS reads either a <polygon> element holding "x y x y ..."
// coordinates, or an element wrapping a single <Multisurface> whose element
// children are the polygons of a multipolygon. A srsName on the
// Multisurface is honoured by reprojecting to EPSG:4326.
func geometryFromGeoRSS(n *xmlquery.Node) (orb.Geometry, error) {
	if n.Type == xmlquery.DocumentNode {
		if n = firstElement(n); n == nil {
			return nil, fmt.Errorf("georss document has no element")
		}
	}
	if strings.Contains(strings.ToLower(n.Data), "polygon") {
		ring, err := georssRing(n.InnerText())
		if err != nil {
			return nil, err
		}
		return orb.Polygon{ring}, nil
	}
	children := elements(n)
	if len(children) != 1 || !strings.Contains(strings.ToLower(children[0].Data), "multisurface") {
		return nil, fmt.Errorf("unsupported georss element <%s>", n.Data)
	}
	surface := children[0]
	var mp orb.MultiPolygon
	for _, part := range elements(surface) {
		ring, err := georssRing(part.InnerText())
		if err != nil {
			return nil, err
		}
		mp = append(mp, orb.Polygon{ring})
	}
	srs := surface.SelectAttr("srsName")
	if srs == "" {
		return mp, nil
	}
	srid, err := SRIDFromName(srs)
	if err != nil {
		return nil, err
	}
	return ToWGS84(mp, srid)
}

func georssRing(text string) (orb.Ring, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || len(fields)%2 != 0 {
		return nil, fmt.Errorf("georss coordinates must come in pairs, got %d values", len(fields))
	}
	ring := make(orb.Ring, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		x, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("georss coordinate %q: %w", fields[i], err)
		}
		y, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("georss coordinate %q: %w", fields[i+1], err)
		}
		ring = append(ring, orb.Point{x, y})
	}
	return ring, nil
}

func elements(n *xmlquery.Node) []*xmlquery.Node {
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

func firstElement(n *xmlquery.Node) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return c
		}
	}
	return nil
}
