package plugin

import (
	"context"
	"fmt"
	"time"

	"eosearch/internal/logging"
	"eosearch/internal/transform"
)

// DefaultTimeout bounds a single remote conversion when none is configured.
const DefaultTimeout = 5 * time.Second

// Converters describes the converters c serves as registry entries whose
// function calls c, each call bounded by timeout.
func Converters(ctx context.Context, c Client, timeout time.Duration) ([]transform.Converter, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ds, err := c.Describe(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]transform.Converter, 0, len(ds))
	for _, d := range ds {
		name := d.Name
		out = append(out, transform.Converter{
			Name:    name,
			MinArgs: d.MinArgs,
			MaxArgs: d.MaxArgs,
			Fn: func(v any, args []any) (any, error) {
				ctx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				return c.Convert(ctx, name, v, args)
			},
		})
	}
	return out, nil
}

// Attach registers the converters c serves into reg and returns their
// names. A remote converter replaces a local one of the same name.
func Attach(ctx context.Context, reg *transform.Registry, c Client, timeout time.Duration) ([]string, error) {
	convs, err := Converters(ctx, c, timeout)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(convs))
	for _, conv := range convs {
		if reg.Has(conv.Name) {
			logging.L().Info("remote converter replaces built-in", "converter", conv.Name)
		}
		reg.Register(conv)
		names = append(names, conv.Name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("plugin serves no converters")
	}
	return names, nil
}
