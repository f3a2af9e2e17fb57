package brick

import (
	"context"
	"sort"
	"sync"

	"github.com/edaniels/golog"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Constructor opens a brick from backend specific attributes.
type Constructor func(ctx context.Context, attrs map[string]any, logger golog.Logger) (*Brick, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register makes a backend available under name. It panics if name is taken.
func Register(name string, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		panic("brick: backend registered twice: " + name)
	}
	registry[name] = c
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open constructs the configured backend and validates the resulting brick.
func Open(ctx context.Context, cfg *Config, logger golog.Logger) (*Brick, error) {
	registryMu.RLock()
	c, ok := registry[cfg.Backend]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown backend %q (have %v)", cfg.Backend, Backends())
	}
	b, err := c(ctx, cfg.Attributes, logger.Named(cfg.Backend))
	if err != nil {
		return nil, errors.Wrapf(err, "open %s backend", cfg.Backend)
	}
	if err := b.Validate(); err != nil {
		b.Close()
		return nil, errors.Wrapf(err, "%s backend", cfg.Backend)
	}
	return b, nil
}

// DecodeAttributes decodes an attribute map into out using its json tags.
func DecodeAttributes(attrs map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(attrs); err != nil {
		return errors.Wrap(err, "decode attributes")
	}
	return nil
}
