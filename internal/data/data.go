// Package data provides data access layer implementations.
// It handles database connections, Redis, and external notification sinks.
// The MySQL and Redis handles are injected directly into the repositories.
package data

import (
	"github.com/google/wire"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewMySQLClient,
	NewRedisClient,
	NewCredentialRepo,
	NewTokenCache,
	NewOrderStore,
	NewInventoryStore,
	NewPricingStore,
	NewMetricsRecorder,
	NewEventPublisher,
	NewNotifier,
)
