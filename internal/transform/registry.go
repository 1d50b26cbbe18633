package transform

import (
	"fmt"
	"sort"
	"sync"

	"eosearch/internal/errdefs"
)

// Marker is a value that stands for something other than data.
type Marker string

// NotAvailable marks a property that is mapped but could not be resolved in
// the source document. It is distinct from nil and from an absent key.
const NotAvailable Marker = "Not Available"

func (m Marker) String() string { return string(m) }

// Func converts value using the literal args given in the template.
type Func func(value any, args []any) (any, error)

// Converter is a registered conversion function.
type Converter struct {
	Name string
	// MinArgs and MaxArgs bound the literal argument count; MaxArgs < 0
	// means unbounded.
	MinArgs int
	MaxArgs int
	// Check validates literal args when a template is compiled.
	Check func(args []any) error
	// HandlesNotAvailable lets NotAvailable reach Fn instead of passing
	// through unchanged.
	HandlesNotAvailable bool
	Fn                  Func
}

// Registry maps converter names to converters.
type Registry struct {
	mu         sync.RWMutex
	converters map[string]Converter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{converters: make(map[string]Converter)}
}

// Register adds or replaces a converter.
func (r *Registry) Register(c Converter) {
	r.mu.Lock()
	r.converters[c.Name] = c
	r.mu.Unlock()
}

// Clone returns an independent copy of r.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := NewRegistry()
	for name, conv := range r.converters {
		c.converters[name] = conv
	}
	return c
}

// Get returns the converter registered under name.
func (r *Registry) Get(name string) (Converter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.converters[name]
	return c, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.converters))
	for name := range r.converters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Spec is a converter bound to its literal arguments.
type Spec struct {
	Name string
	Args []any
	conv Converter
}

// Bind resolves name and validates args. Unknown names and bad arguments
// are configuration errors.
func (r *Registry) Bind(name string, args []any) (Spec, error) {
	c, ok := r.Get(name)
	if !ok {
		return Spec{}, &errdefs.ConfigError{Kind: "converter", Input: name, Err: errdefs.ErrUnknownConverter}
	}
	if len(args) < c.MinArgs || (c.MaxArgs >= 0 && len(args) > c.MaxArgs) {
		return Spec{}, &errdefs.ConfigError{
			Kind:  "converter",
			Input: name,
			Err:   fmt.Errorf("got %d arguments, want %s", len(args), arity(c)),
		}
	}
	if c.Check != nil {
		if err := c.Check(args); err != nil {
			return Spec{}, &errdefs.ConfigError{Kind: "converter", Input: name, Err: err}
		}
	}
	return Spec{Name: name, Args: args, conv: c}, nil
}

// BindString parses a raw argument list (the text between the parentheses
// of a template call) and binds it.
func (r *Registry) BindString(name, rawArgs string) (Spec, error) {
	args, err := ParseArgs(rawArgs)
	if err != nil {
		return Spec{}, &errdefs.ConfigError{Kind: "converter arguments", Input: rawArgs, Err: err}
	}
	return r.Bind(name, args)
}

// Apply runs the converter on v. NotAvailable and nil pass through.
func (s Spec) Apply(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if v == NotAvailable && !s.conv.HandlesNotAvailable {
		return v, nil
	}
	out, err := s.conv.Fn(v, s.Args)
	if err != nil {
		return nil, errdefs.Convert(s.Name, v, err)
	}
	return out, nil
}

func (s Spec) String() string {
	if len(s.Args) == 0 {
		return s.Name
	}
	return fmt.Sprintf("%s%v", s.Name, s.Args)
}

// Chain applies specs left to right, each output feeding the next.
func Chain(v any, specs []Spec) (any, error) {
	var err error
	for _, s := range specs {
		if v, err = s.Apply(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func arity(c Converter) string {
	switch {
	case c.MaxArgs < 0:
		return fmt.Sprintf("at least %d", c.MinArgs)
	case c.MinArgs == c.MaxArgs:
		return fmt.Sprint(c.MinArgs)
	default:
		return fmt.Sprintf("%d to %d", c.MinArgs, c.MaxArgs)
	}
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the registry holding every built-in converter. It is
// built once and shared; callers that need extra converters should start
// from NewRegistry and RegisterBuiltins.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry()
		RegisterBuiltins(defaultReg)
	})
	return defaultReg
}

// RegisterBuiltins registers the built-in catalog into r.
func RegisterBuiltins(r *Registry) {
	for _, group := range [][]Converter{
		datetimeConverters(),
		geometryConverters(),
		stringConverters(),
		missionConverters(),
		classificationConverters(),
		parameterConverters(),
	} {
		for _, c := range group {
			r.Register(c)
		}
	}
}

func unary(name string, fn func(any) (any, error)) Converter {
	return Converter{Name: name, Fn: func(v any, _ []any) (any, error) { return fn(v) }}
}
