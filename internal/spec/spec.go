// Package spec holds the configuration file types: the pipeline file and
// the provider catalog it points at.
package spec

import "time"

// Plugin is an out-of-process converter service.
type Plugin struct {
	// Target is the gRPC address, e.g. "localhost:9400".
	Target string `yaml:"target"`
	// Timeout bounds each remote conversion.
	Timeout time.Duration `yaml:"timeout"`
}

// Source names the optional stream of search requests.
type Source struct {
	Kind   string `yaml:"kind"`
	Driver string `yaml:"driver"`
	// Config is the driver config path, relative to the pipeline file.
	Config string `yaml:"config"`
}

type sinkConfigs struct {
	Kafka  any `yaml:"kafka"`
	Stdout any `yaml:"stdout"`
}

// SearchSpec is one search the pipeline runs.
type SearchSpec struct {
	Provider    string         `yaml:"provider" json:"provider"`
	ProductType string         `yaml:"product_type" json:"product_type"`
	Args        map[string]any `yaml:"args" json:"args"`
	// Pages bounds how many result pages are fetched; 0 means one.
	Pages int `yaml:"pages" json:"pages"`
}

// File is the pipeline file.
type File struct {
	SchemaVersion string `yaml:"schema_version"`

	// Providers is the provider catalog path, relative to the pipeline file.
	Providers string `yaml:"providers"`

	Searches []SearchSpec `yaml:"searches"`
	Source   *Source      `yaml:"source"`

	Sinks       []string    `yaml:"sinks"`
	SinkConfigs sinkConfigs `yaml:"sink_configs"`

	// Plugins add remote converters on top of the built-in ones.
	Plugins []Plugin `yaml:"plugins"`

	MetricsPort int `yaml:"metrics_port"`
	// Concurrency bounds how many searches run at once; 0 keeps the default.
	Concurrency int `yaml:"concurrency"`
}

// Catalog is the provider configuration file.
type Catalog struct {
	SchemaVersion string              `koanf:"schema_version"`
	Providers     map[string]Provider `koanf:"providers"`
}

// Provider describes one remote catalog and how to talk to it.
type Provider struct {
	Name string `koanf:"name"`
	// Dialect of result documents, "json" (default) or "xml".
	Dialect string `koanf:"dialect"`

	MetadataURL    string `koanf:"metadata_url"`
	DataRequestURL string `koanf:"data_request_url"`
	StatusURL      string `koanf:"status_url"`
	ResultURL      string `koanf:"result_url"`
	ResultsEntry   string `koanf:"results_entry"`

	Pagination Pagination `koanf:"pagination"`

	Products          map[string]Product        `koanf:"products"`
	MetadataMapping   map[string]any            `koanf:"metadata_mapping"`
	// MappingOrder is the key order of metadata_mapping in the catalog file.
	MappingOrder      []string                  `koanf:"-"`
	DiscoverMetadata  Discovery                 `koanf:"discover_metadata"`
	FreeTextSearch    map[string]FreeTextOp     `koanf:"free_text_search_operations"`
	ProductTypeConfig map[string]map[string]any `koanf:"product_type_config"`

	Poll      Poll          `koanf:"poll"`
	RateLimit RateLimit     `koanf:"rate_limit"`
	Auth      Auth          `koanf:"auth"`
	Timeout   time.Duration `koanf:"timeout"`
}

// Product is the per product type section of a provider.
type Product struct {
	ProductType     string         `koanf:"productType"`
	MetadataMapping map[string]any `koanf:"metadata_mapping"`
	MappingOrder    []string       `koanf:"-"`
	// Params holds every other key, sent as static request parameters.
	Params map[string]any `koanf:",remain"`
}

// Pagination locates paging information in result pages.
type Pagination struct {
	NextPageURLKeyPath  string `koanf:"next_page_url_key_path"`
	TotalItemsNbKeyPath string `koanf:"total_items_nb_key_path"`
}

// Discovery enables automatic pick-up of unmapped result fields.
type Discovery struct {
	AutoDiscovery     bool   `koanf:"auto_discovery"`
	MetadataPattern   string `koanf:"metadata_pattern"`
	MetadataPath      string `koanf:"metadata_path"`
	MetadataPathID    string `koanf:"metadata_path_id"`
	MetadataPathValue string `koanf:"metadata_path_value"`
}

// FreeTextOp joins several caller arguments into one free-text parameter.
type FreeTextOp struct {
	// Union separates the clauses, e.g. " AND ".
	Union string `koanf:"union"`
	// Wrapper wraps the joined clauses; "{}" marks where they go.
	Wrapper string `koanf:"wrapper"`
	// Operations maps an operator name to clause templates.
	Operations map[string][]string `koanf:"operations"`
}

// Poll bounds the status loop.
type Poll struct {
	Interval    time.Duration `koanf:"interval"`
	MaxInterval time.Duration `koanf:"max_interval"`
	MaxAttempts int           `koanf:"max_attempts"`
	Timeout     time.Duration `koanf:"timeout"`
	// Strategy is "constant" (default) or "exponential".
	Strategy string `koanf:"strategy"`
}

// RateLimit throttles outbound requests. Zero RPS disables it.
type RateLimit struct {
	RPS   float64 `koanf:"rps"`
	Burst int     `koanf:"burst"`
}

// Auth holds static headers sent with every request.
type Auth struct {
	Headers map[string]string `koanf:"headers"`
	// TokenURL, when set, is fetched on re-authentication; its "token"
	// field replaces the Authorization header.
	TokenURL string `koanf:"token_url"`
}
