package storage

import (
	"context"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	"ProSocialFlow/internal/config"
)

// Factory opens a backend from configuration.
type Factory func(ctx context.Context, cfg config.HistoryConfig) (Backend, error)

// Registry keeps a mapping from backend names to their factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// DefaultRegistry registers the memory, postgres and redis backends.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.Register(config.BackendMemory, openMemory)
	reg.Register(config.BackendPostgres, openPostgres)
	reg.Register(config.BackendRedis, openRedis)
	return reg
}

// Register adds or replaces a backend factory.
func (r *Registry) Register(name string, factory Factory) {
	if r.factories == nil {
		r.factories = map[string]Factory{}
	}
	r.factories[name] = factory
}

// Resolve returns a factory by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Factory, error) {
	if factory, ok := r.factories[name]; ok {
		return factory, nil
	}
	return nil, fmt.Errorf("history backend %s is not registered (known: %v)", name, r.Names())
}

// Names lists registered backends.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open resolves cfg.Backend and opens it.
func (r *Registry) Open(ctx context.Context, cfg config.HistoryConfig) (Backend, error) {
	factory, err := r.Resolve(cfg.Backend)
	if err != nil {
		return nil, err
	}
	return factory(ctx, cfg)
}

func openMemory(_ context.Context, cfg config.HistoryConfig) (Backend, error) {
	return NewMemoryStore(cfg.Limit), nil
}

func openPostgres(ctx context.Context, cfg config.HistoryConfig) (Backend, error) {
	db, err := OpenPostgres(cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	return NewPostgresRepository(db, cfg.Limit), nil
}

func openRedis(_ context.Context, cfg config.HistoryConfig) (Backend, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return NewRedisStore(client, cfg.Redis.Prefix, cfg.Limit), nil
}
