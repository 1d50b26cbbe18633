// Package sink delivers search entries to their destinations.
package sink

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"eosearch/internal/search"
)

// Adapter is the common behaviour every sink exposes.
type Adapter interface {
	Configure(any) error     // driver-specific YAML ⇒ struct
	Push(search.Entry) error // deliver one entry
	Close() error            // idempotent
}

// Decode converts a raw YAML config block (as left in the pipeline file)
// into the driver's typed config. Typed values pass through unchanged.
func Decode[T any](raw any, out *T) error {
	switch v := raw.(type) {
	case nil:
		return nil
	case T:
		*out = v
		return nil
	case *T:
		*out = *v
		return nil
	}
	b, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("sink config: %w", err)
	}
	return nil
}

/*──────── registry ───────*/

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}
