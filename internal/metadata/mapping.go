// Package metadata turns provider documents into normalized property bags
// using per-provider field mappings.
package metadata

import (
	"fmt"
	"sort"
	"strings"

	"eosearch/internal/errdefs"
	"eosearch/internal/pathquery"
	"eosearch/internal/template"
	"eosearch/internal/transform"
)

// Kind tells how a mapping produces its value.
type Kind int

const (
	// KindPath resolves a path query in the document.
	KindPath Kind = iota
	// KindLiteral stores a constant.
	KindLiteral
	// KindTemplate renders a template against the properties extracted so
	// far.
	KindTemplate
)

// FieldMapping describes one output property.
type FieldMapping struct {
	Name string
	// OutgoingKey and Outgoing form the optional request side of the
	// mapping ("key=template"). Outgoing without a key is a JSON fragment
	// template merged into the request body.
	OutgoingKey string
	Outgoing    *template.Template
	// Exactly one of Path, Template and Literal is used, see Kind.
	Path       pathquery.Query
	Converters []transform.Spec
	Template   *template.Template
	Literal    string
}

// Kind reports how the mapping is resolved.
func (m FieldMapping) Kind() Kind {
	switch {
	case m.Path != nil:
		return KindPath
	case m.Template != nil:
		return KindTemplate
	default:
		return KindLiteral
	}
}

// Queryable reports whether the mapping has a request side.
func (m FieldMapping) Queryable() bool { return m.Outgoing != nil }

// ParseMapping builds the mapping for one property from its configuration
// value: a string (path, "{path#conv}", template or literal), or a two
// element list [outgoing, string].
func ParseMapping(dialect pathquery.Dialect, name string, raw any, reg *transform.Registry) (FieldMapping, error) {
	m := FieldMapping{Name: name}
	var src string
	switch tv := raw.(type) {
	case string:
		src = tv
	case []any:
		if len(tv) != 2 {
			return m, &errdefs.ConfigError{Kind: "mapping", Input: name, Err: fmt.Errorf("want [outgoing, path], got %d items", len(tv))}
		}
		if tv[0] != nil {
			out, ok := tv[0].(string)
			if !ok {
				return m, &errdefs.ConfigError{Kind: "mapping", Input: name, Err: fmt.Errorf("outgoing must be a string, got %T", tv[0])}
			}
			if err := m.setOutgoing(out, reg); err != nil {
				return m, err
			}
		}
		if tv[1] != nil {
			s, ok := tv[1].(string)
			if !ok {
				return m, &errdefs.ConfigError{Kind: "mapping", Input: name, Err: fmt.Errorf("path must be a string, got %T", tv[1])}
			}
			src = s
		}
	case nil:
	default:
		src = transform.Text(tv)
	}
	return m, m.setSource(dialect, src, reg)
}

func (m *FieldMapping) setOutgoing(src string, reg *transform.Registry) error {
	src = strings.TrimSpace(src)
	if key, value, ok := strings.Cut(src, "="); ok && !strings.HasPrefix(src, "{") {
		t, err := template.Parse(value, reg)
		if err != nil {
			return err
		}
		m.OutgoingKey, m.Outgoing = strings.TrimSpace(key), t
		return nil
	}
	t, err := template.Parse(src, reg)
	if err != nil {
		return err
	}
	m.Outgoing = t
	return nil
}

func (m *FieldMapping) setSource(dialect pathquery.Dialect, src string, reg *transform.Registry) error {
	trimmed := strings.TrimSpace(src)
	if pathquery.IsPath(dialect, trimmed) {
		q, err := pathquery.Compile(dialect, trimmed)
		if err != nil {
			return err
		}
		m.Path = q
		return nil
	}
	if !template.HasFields(src) {
		m.Literal = src
		return nil
	}
	t, err := template.Parse(src, reg)
	if err != nil {
		return err
	}
	// "{path#conv...}" is a path with a converter chain, anything else is a
	// template over already extracted properties.
	if f, ok := t.SingleField(); ok && pathquery.IsPath(dialect, f.Name) {
		q, err := pathquery.Compile(dialect, f.Name)
		if err != nil {
			return err
		}
		m.Path, m.Converters = q, f.Converters
		return nil
	}
	m.Template = t
	return nil
}

// ParseMappings builds mappings from a metadata_mapping section that has no
// recorded key order. Mappings come back sorted by name.
func ParseMappings(dialect pathquery.Dialect, raw map[string]any, reg *transform.Registry) ([]FieldMapping, error) {
	return ParseOrderedMappings(dialect, raw, nil, reg)
}

// ParseOrderedMappings builds mappings from a metadata_mapping section.
// Names in order come first, in that order; names missing from order
// follow sorted.
func ParseOrderedMappings(dialect pathquery.Dialect, raw map[string]any, order []string, reg *transform.Registry) ([]FieldMapping, error) {
	names := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, name := range order {
		if _, ok := raw[name]; ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	var rest []string
	for name := range raw {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	names = append(names, rest...)

	out := make([]FieldMapping, 0, len(names))
	for _, name := range names {
		m, err := ParseMapping(dialect, name, raw[name], reg)
		if err != nil {
			return nil, fmt.Errorf("metadata mapping %s: %w", name, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Merge overlays override on base by property name. Properties only in
// base keep their position, new ones are appended.
func Merge(base, override []FieldMapping) []FieldMapping {
	idx := make(map[string]int, len(base))
	out := append([]FieldMapping(nil), base...)
	for i, m := range out {
		idx[m.Name] = i
	}
	for _, m := range override {
		if i, ok := idx[m.Name]; ok {
			out[i] = m
			continue
		}
		idx[m.Name] = len(out)
		out = append(out, m)
	}
	return out
}

// DefaultMappingOrder lists the OpenSearch-derived properties every JSON
// provider inherits before its own metadata_mapping is applied, in output
// order.
var DefaultMappingOrder = []string{
	"uid", "productType", "doi", "platform", "platformSerialIdentifier",
	"instrument", "sensorType", "compositeType", "processingLevel", "orbitType",
	"spectralRange", "wavelengths", "hasSecurityConstraints", "dissemination",
	"title", "topicCategory", "keyword", "abstract", "resolution",
	"organisationName", "organisationRole", "publicationDate", "lineage",
	"useLimitation", "accessConstraint", "otherConstraint", "classification",
	"language", "specification", "parentIdentifier", "productionStatus",
	"acquisitionType", "orbitNumber", "orbitDirection", "track", "frame",
	"swathIdentifier", "cloudCover", "snowCover", "lowestLocation",
	"highestLocation", "productVersion", "productQualityStatus",
	"productQualityDegradationTag", "processorName", "processingCenter",
	"creationDate", "modificationDate", "processingDate", "sensorMode",
	"archivingCenter", "processingMode", "availabilityTime",
	"acquisitionStation", "acquisitionSubType", "startTimeFromAscendingNode",
	"completionTimeFromAscendingNode", "illuminationAzimuthAngle",
	"illuminationZenithAngle", "illuminationElevationAngle", "polarizationMode",
	"polarisationChannels", "antennaLookDirection", "minimumIncidenceAngle",
	"maximumIncidenceAngle", "dopplerFrequency", "incidenceAngleVariation",
	"id", "geometry", "quicklook", "downloadLink",
}

// DefaultMapping maps each DefaultMappingOrder property to its path. Most
// live under the document's properties object.
var DefaultMapping = func() map[string]any {
	m := make(map[string]any, len(DefaultMappingOrder))
	for _, name := range DefaultMappingOrder {
		switch name {
		case "uid", "id", "geometry":
			m[name] = "$." + name
		default:
			m[name] = "$.properties." + name
		}
	}
	return m
}()
