package database

import (
	"go.uber.org/fx"
)

// DBProviderMapParams collects every registered DBProvider from the Fx graph.
type DBProviderMapParams struct {
	fx.In
	Providers []DBProvider `group:"db_providers"`
}

// NewDBProviderMap converts the provider group into a map keyed by database
// type, so consumers can look up the provider for a decoded connection
// config without iterating the group.
func NewDBProviderMap(p DBProviderMapParams) map[string]DBProvider {
	providerMap := make(map[string]DBProvider, len(p.Providers))
	for _, provider := range p.Providers {
		providerMap[provider.Type()] = provider
	}
	return providerMap
}

// Module exports the type-keyed DBProvider map for dependency injection.
var Module = fx.Options(
	fx.Provide(NewDBProviderMap),
)
