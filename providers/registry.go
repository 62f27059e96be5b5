package providers

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Registry resolves operator keys to provider configurations and maps each
// configuration to its concrete Strategy. The configuration set is loaded
// once and read-only; strategies are built on first use and cached, so
// issuer discovery for OIDC kinds happens lazily rather than at startup.
type Registry struct {
	configs map[string]*Config
	entries map[string]*strategyEntry
}

// strategyEntry guards one provider's strategy construction. The lock is
// per entry: a slow or failing build (issuer discovery is a network call)
// only blocks callers of that provider, and a failed build is retried on
// the next call while successes stay cached.
type strategyEntry struct {
	mu       sync.Mutex
	strategy Strategy
}

// NewRegistry builds a registry over the given provider configurations.
func NewRegistry(configs []Config) (*Registry, error) {
	byOp := make(map[string]*Config, len(configs))
	entries := make(map[string]*strategyEntry, len(configs))
	for i := range configs {
		cfg := &configs[i]
		if _, dup := byOp[cfg.Op]; dup {
			return nil, errors.Errorf("[NewRegistry] duplicate provider op %q", cfg.Op)
		}
		byOp[cfg.Op] = cfg
		entries[cfg.Op] = &strategyEntry{}
	}
	return &Registry{
		configs: byOp,
		entries: entries,
	}, nil
}

// NewRegistryFromFile loads the provider listing from path and builds a
// registry over it.
func NewRegistryFromFile(path string) (*Registry, error) {
	configs, err := LoadConfigs(path)
	if err != nil {
		return nil, err
	}
	log.Info().Int("providers", len(configs)).Str("path", path).Msg("loaded provider configuration")
	return NewRegistry(configs)
}

// Resolve looks up a configuration by its operator key.
func (r *Registry) Resolve(key string) (*Config, error) {
	cfg, ok := r.configs[key]
	if !ok {
		return nil, errors.Wrapf(ErrProviderNotConfigured, "[Registry.Resolve] op %q", key)
	}
	return cfg, nil
}

// Keys returns the display strings of every configured provider, for the
// client's login-options listing.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.configs))
	for _, cfg := range r.configs {
		keys = append(keys, cfg.DisplayName)
	}
	sort.Strings(keys)
	return keys
}

// StrategyFor returns the Strategy instance for the given configuration,
// building it on first use. Kinds without an implementation fail with
// ErrProviderUnsupported.
func (r *Registry) StrategyFor(ctx context.Context, cfg *Config) (Strategy, error) {
	entry, ok := r.entries[cfg.Op]
	if !ok {
		return nil, errors.Wrapf(ErrProviderNotConfigured, "[Registry.StrategyFor] op %q", cfg.Op)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.strategy != nil {
		return entry.strategy, nil
	}

	s, err := buildStrategy(ctx, cfg)
	if err != nil {
		return nil, err
	}
	entry.strategy = s
	return s, nil
}

func buildStrategy(ctx context.Context, cfg *Config) (Strategy, error) {
	switch cfg.Kind {
	case KindGithub:
		return NewGithub(cfg), nil
	case KindGoogle, KindGitlab, KindDex:
		s, err := NewOIDC(ctx, cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "[buildStrategy] op %q", cfg.Op)
		}
		return s, nil
	case KindApple, KindOkta, KindFacebook, KindAzure, KindAuth0:
		return nil, errors.Wrapf(ErrProviderUnsupported, "[buildStrategy] kind %q", cfg.Kind)
	default:
		return nil, errors.Wrapf(ErrProviderUnsupported, "[buildStrategy] kind %q", cfg.Kind)
	}
}
