package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"strings"
	"sync"
	"time"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"eosearch/internal/errdefs"
	"eosearch/internal/spec"
)

// EnvPrefix marks environment overrides of the provider catalog:
// EOSEARCH__PROVIDERS__CDS__POLL__MAX_ATTEMPTS=10 sets
// providers.cds.poll.max_attempts.
const EnvPrefix = "EOSEARCH__"

// Catalog defaults.
const (
	DefaultResultsEntry = "content"
	DefaultPollInterval = time.Second
	DefaultPollStrategy = "constant"
	DefaultDialect      = "json"
)

//go:embed schema.json
var catalogSchema []byte

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	const name = "schema.json"
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(catalogSchema))
	if err != nil {
		return nil, fmt.Errorf("unmarshal catalog schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("add catalog schema: %w", err)
	}
	return c.Compile(name)
})

// LoadProviders reads the provider catalog at path, validates it, applies
// environment overrides and fills defaults.
func LoadProviders(path string) (spec.Catalog, error) {
	var cat spec.Catalog
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
		return cat, &errdefs.ConfigError{Kind: "provider catalog", Input: path, Err: err}
	}
	if err := spec.CheckSchemaVersion(k.String("schema_version")); err != nil {
		return cat, &errdefs.ConfigError{Kind: "provider catalog", Input: path, Err: err}
	}
	if err := validate(k.Raw()); err != nil {
		return cat, &errdefs.ConfigError{Kind: "provider catalog", Input: path, Err: err}
	}
	// Environment overrides are not schema validated.
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return cat, fmt.Errorf("load environment: %w", err)
	}
	if err := k.Unmarshal("", &cat); err != nil {
		return cat, &errdefs.ConfigError{Kind: "provider catalog", Input: path, Err: err}
	}
	if err := recordMappingOrder(path, &cat); err != nil {
		return cat, &errdefs.ConfigError{Kind: "provider catalog", Input: path, Err: err}
	}
	applyDefaults(&cat)
	return cat, nil
}

// recordMappingOrder copies the key order of every metadata_mapping section
// in the catalog file onto cat. Koanf loads sections into maps, which drop
// it.
func recordMappingOrder(path string, cat *spec.Catalog) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if len(doc.Content) == 0 {
		return nil
	}
	providers := child(doc.Content[0], "providers")
	for name, pn := range pairs(providers) {
		p, ok := cat.Providers[name]
		if !ok {
			continue
		}
		p.MappingOrder = keys(child(pn, "metadata_mapping"))
		for pt, prodNode := range pairs(child(pn, "products")) {
			if prod, ok := p.Products[pt]; ok {
				prod.MappingOrder = keys(child(prodNode, "metadata_mapping"))
				p.Products[pt] = prod
			}
		}
		cat.Providers[name] = p
	}
	return nil
}

// child returns the value under key in mapping node n, or nil.
func child(n *yaml.Node, key string) *yaml.Node {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// pairs yields the key/value pairs of mapping node n in file order.
func pairs(n *yaml.Node) iter.Seq2[string, *yaml.Node] {
	n = deref(n)
	return func(yield func(string, *yaml.Node) bool) {
		if n == nil || n.Kind != yaml.MappingNode {
			return
		}
		for i := 0; i+1 < len(n.Content); i += 2 {
			if !yield(n.Content[i].Value, n.Content[i+1]) {
				return
			}
		}
	}
}

func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func keys(n *yaml.Node) []string {
	var out []string
	for k := range pairs(n) {
		out = append(out, k)
	}
	return out
}

// envKey maps EOSEARCH__PROVIDERS__CDS__RESULTS_ENTRY to
// providers.cds.results_entry.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func validate(raw map[string]any) error {
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	// Round trip through JSON so the instance only holds JSON types.
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}

func applyDefaults(c *spec.Catalog) {
	if c.SchemaVersion == "" {
		c.SchemaVersion = spec.SupportedSchema
	}
	for name, p := range c.Providers {
		if p.Name == "" {
			p.Name = name
		}
		if p.Dialect == "" {
			p.Dialect = DefaultDialect
		}
		if p.ResultsEntry == "" {
			p.ResultsEntry = DefaultResultsEntry
		}
		if p.Poll.Interval == 0 {
			p.Poll.Interval = DefaultPollInterval
		}
		if p.Poll.Strategy == "" {
			p.Poll.Strategy = DefaultPollStrategy
		}
		if p.Poll.MaxInterval == 0 && p.Poll.Strategy == "exponential" {
			p.Poll.MaxInterval = 30 * p.Poll.Interval
		}
		c.Providers[name] = p
	}
}
