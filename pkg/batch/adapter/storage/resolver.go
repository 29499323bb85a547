package storage

import (
	"context"

	"go.uber.org/fx"

	storageConfig "github.com/tigerroll/hourglass/pkg/batch/adapter/storage/config"
	coreAdapter "github.com/tigerroll/hourglass/pkg/batch/core/adapter"
	coreConfig "github.com/tigerroll/hourglass/pkg/batch/core/config"
	exception "github.com/tigerroll/hourglass/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

// connectionResolver dispatches storage connection requests to the provider
// registered for the connection's configured backend type.
type connectionResolver struct {
	providers map[string]StorageProvider
	cfg       *coreConfig.Config
}

// ResolverParams collects every registered storage provider from the Fx
// graph together with the application configuration.
type ResolverParams struct {
	fx.In
	Providers []StorageProvider `group:"storage_providers"`
	Cfg       *coreConfig.Config
}

// NewStorageConnectionResolver builds the resolver over the provider group,
// keyed by each provider's backend type.
func NewStorageConnectionResolver(p ResolverParams) StorageConnectionResolver {
	providers := make(map[string]StorageProvider, len(p.Providers))
	for _, provider := range p.Providers {
		providers[provider.Type()] = provider
	}
	return &connectionResolver{providers: providers, cfg: p.Cfg}
}

// ResolveConnection resolves a generic resource connection by name.
func (r *connectionResolver) ResolveConnection(ctx context.Context, name string) (coreAdapter.ResourceConnection, error) {
	return r.ResolveStorageConnection(ctx, name)
}

// ResolveConnectionName resolves a generic resource connection name based on the execution context.
// Currently, it does not implement dynamic resolution logic and returns the default name.
func (r *connectionResolver) ResolveConnectionName(ctx context.Context, jobExecution interface{}, stepExecution interface{}, defaultName string) (string, error) {
	logger.Debugf("Resolving storage connection name. Defaulting to '%s'.", defaultName)
	return defaultName, nil
}

// ResolveStorageConnection resolves a StorageConnection instance by name,
// looking up the connection's backend type in the configuration and
// delegating to the matching provider.
func (r *connectionResolver) ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error) {
	storageCfg, err := storageConfig.NamedStorageConfig(r.cfg, name)
	if err != nil {
		return nil, err
	}

	provider, ok := r.providers[storageCfg.Type]
	if !ok {
		return nil, exception.NewConfigErrorf("storage", "no storage provider registered for type %q (connection %q)", storageCfg.Type, name)
	}

	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, exception.NewBatchErrorf("storage", "failed to get storage connection %q from provider %q", name, storageCfg.Type, err)
	}
	return conn, nil
}

// ResolveStorageConnectionName resolves the name of the data storage connection based on the execution context.
// This method applies the same logic as ResolveConnectionName.
func (r *connectionResolver) ResolveStorageConnectionName(ctx context.Context, jobExecution interface{}, stepExecution interface{}, defaultName string) (string, error) {
	return r.ResolveConnectionName(ctx, jobExecution, stepExecution, defaultName)
}

var _ StorageConnectionResolver = (*connectionResolver)(nil)

// Module provides the storage connection resolver to the Fx graph. Backend
// provider modules (local, gcs) register themselves into the
// "storage_providers" group separately.
var Module = fx.Options(
	fx.Provide(NewStorageConnectionResolver),
)
