package biz

import (
	"sellersync/internal/conf"
	"sellersync/pkg/signer"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewRequestSigner,
	NewTokenManager,
	NewClientRegistry,
	NewOrdersService,
	NewInventoryService,
	NewPricingService,
	NewSyncScheduler,
)

// NewRequestSigner builds the SigV4 signer for the configured service scope.
func NewRequestSigner(mc *conf.Marketplace) *signer.RequestSigner {
	return signer.New(mc.Service)
}
