package metadata

import (
	"bytes"
	"encoding/json"

	"github.com/antchfx/xmlquery"
	"github.com/paulmach/orb"

	"eosearch/internal/transform"
)

// NotAvailable marks a mapped property missing from the source document.
const NotAvailable = transform.NotAvailable

// PropertyBag is an insertion-ordered property map. An absent key, a key
// holding NotAvailable and a key holding nil are three different states.
type PropertyBag struct {
	keys   []string
	values map[string]any
}

// NewPropertyBag returns an empty bag.
func NewPropertyBag() *PropertyBag {
	return &PropertyBag{values: map[string]any{}}
}

// Set stores v under k, keeping k's original position if already present.
func (b *PropertyBag) Set(k string, v any) {
	if _, ok := b.values[k]; !ok {
		b.keys = append(b.keys, k)
	}
	b.values[k] = v
}

// SetDefault stores v under k unless k is already present. Extracted
// values, NotAvailable included, stay on top of defaults.
func (b *PropertyBag) SetDefault(k string, v any) {
	if _, ok := b.values[k]; ok {
		return
	}
	b.Set(k, v)
}

// Get returns the value stored under k.
func (b *PropertyBag) Get(k string) (any, bool) {
	v, ok := b.values[k]
	return v, ok
}

// Has reports whether k is present, whatever its value.
func (b *PropertyBag) Has(k string) bool {
	_, ok := b.values[k]
	return ok
}

// IsNotAvailable reports whether k is present and marked NotAvailable.
func (b *PropertyBag) IsNotAvailable(k string) bool {
	v, ok := b.values[k]
	return ok && v == NotAvailable
}

// Delete removes k.
func (b *PropertyBag) Delete(k string) {
	if _, ok := b.values[k]; !ok {
		return
	}
	delete(b.values, k)
	for i, key := range b.keys {
		if key == k {
			b.keys = append(b.keys[:i], b.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (b *PropertyBag) Keys() []string {
	return append([]string(nil), b.keys...)
}

// Len returns the number of keys.
func (b *PropertyBag) Len() int { return len(b.keys) }

// Map returns a copy of the bag as a plain map.
func (b *PropertyBag) Map() map[string]any {
	out := make(map[string]any, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// Lookup is the template.Lookup view of the bag.
func (b *PropertyBag) Lookup(name string) (any, bool) {
	return b.Get(name)
}

// MarshalJSON encodes the bag as an object in insertion order. Geometries
// are written as WKT and XML nodes as their text.
func (b *PropertyBag) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range b.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(plain(b.values[k]))
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// plain turns values without a natural JSON form into text.
func plain(v any) any {
	switch tv := v.(type) {
	case orb.Geometry, *xmlquery.Node:
		return transform.Text(tv)
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = plain(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, item := range tv {
			out[k] = plain(item)
		}
		return out
	}
	return v
}
