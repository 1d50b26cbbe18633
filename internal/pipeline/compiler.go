package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eosearch/internal/config"
	"eosearch/internal/logging"
	"eosearch/internal/plugin"
	"eosearch/internal/search"
	"eosearch/internal/spec"
	"eosearch/internal/transform"
	"eosearch/sink"
	_ "eosearch/sink/kafka"
	_ "eosearch/sink/stdout"
	"eosearch/source/kafka"
)

// DefaultSourceDriver is used when the source block names no driver.
const DefaultSourceDriver = "sarama"

// describeTimeout bounds the startup call listing a plugin's converters.
const describeTimeout = 10 * time.Second

func Compile(path string) (*Runner, error) {
	r := NewRunner()
	if err := LoadYAML(path, r); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

// LoadYAML reads the pipeline file at path and the provider catalog it
// names, and wires searchers, sinks and the optional request source into r.
func LoadYAML(path string, r *Runner) error {
	cfg, catalogPath, err := config.LoadPipelineSpec(path)
	if err != nil {
		return err
	}
	catalog, err := config.LoadProviders(catalogPath)
	if err != nil {
		return err
	}
	r.metricsPort = cfg.MetricsPort
	if cfg.Concurrency > 0 {
		r.SetConcurrency(cfg.Concurrency)
	}

	reg, err := attachPlugins(r, cfg.Plugins)
	if err != nil {
		return err
	}
	if err := addSearchers(r, catalog, reg); err != nil {
		return err
	}
	for i, s := range cfg.Searches {
		if _, ok := r.searchers[s.Provider]; !ok {
			return fmt.Errorf("search %d: unknown provider %q", i, s.Provider)
		}
		r.AddSearch(s)
	}

	if err := addSinks(r, cfg); err != nil {
		return err
	}

	if cfg.Source == nil {
		return nil
	}
	kc, err := config.LoadSourceConfig(*cfg.Source)
	if err != nil {
		return err
	}
	driver := cfg.Source.Driver
	if driver == "" {
		driver = DefaultSourceDriver
	}
	src, err := kafka.NewAdapter(driver)
	if err != nil {
		return err
	}
	if err = src.Configure(kc); err != nil {
		return err
	}
	r.SetSource(src)

	// driver may want acks
	if aw, ok := src.(kafka.AckAware); ok {
		r.SubscribeAck(aw.OnAck)
	}
	return nil
}

// attachPlugins returns the converter registry providers compile against:
// the built-ins, plus the converters each plugin serves.
func attachPlugins(r *Runner, plugins []spec.Plugin) (*transform.Registry, error) {
	if len(plugins) == 0 {
		return transform.Default(), nil
	}
	reg := transform.Default().Clone()
	for _, p := range plugins {
		c, err := plugin.NewGRPCClient(p.Target)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p.Target, err)
		}
		r.AddCloser(c)
		ctx, cancel := context.WithTimeout(context.Background(), describeTimeout)
		names, err := plugin.Attach(ctx, reg, c, p.Timeout)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p.Target, err)
		}
		logging.L().Info("plugin converters attached", "target", p.Target, "converters", len(names))
	}
	return reg, nil
}

// addSearchers builds an orchestrator per provider. Providers returning XML
// documents can be used for extraction but not searched.
func addSearchers(r *Runner, catalog spec.Catalog, reg *transform.Registry) error {
	for name, p := range catalog.Providers {
		if !strings.EqualFold(p.Dialect, "json") {
			logging.L().Debug("provider not searchable", "provider", name, "dialect", p.Dialect)
			continue
		}
		o, err := search.New(name, p, search.WithRegistry(reg))
		if err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
		r.AddSearcher(o)
	}
	return nil
}

func addSinks(r *Runner, cfg spec.File) error {
	for _, name := range cfg.Sinks {
		sDrv, err := sink.NewAdapter(name)
		if err != nil {
			return err
		}

		switch name {
		case "stdout":
			err = sDrv.Configure(cfg.SinkConfigs.Stdout)
		case "kafka":
			err = sDrv.Configure(cfg.SinkConfigs.Kafka)
		default:
			err = fmt.Errorf("no config block for sink %q", name)
		}
		if err != nil {
			return fmt.Errorf("sink %s: %w", name, err)
		}
		r.AddSink(sDrv)
	}
	return nil
}
