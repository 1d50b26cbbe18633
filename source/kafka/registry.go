package kafka

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a request source driver.
type Factory func() Adapter

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register makes a driver available to NewAdapter under name. Drivers
// register themselves from init.
func Register(name string, f Factory) {
	mu.Lock()
	registry[name] = f
	mu.Unlock()
}

// Drivers lists the registered driver names.
func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewAdapter returns a fresh driver by name.
func NewAdapter(name string) (Adapter, error) {
	mu.RLock()
	f, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("kafka: unsupported driver %q (have %v)", name, Drivers())
	}
	return f(), nil
}

func init() { Register("sarama", func() Adapter { return &SaramaDriver{} }) }
