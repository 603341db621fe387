package biz

// Endpoint is the region-routed API target for one marketplace.
type Endpoint struct {
	// BaseURL is the regional API host.
	BaseURL string
	// Region is the SigV4 signing region.
	Region string
}

// Regional endpoints for the partner API.
var (
	endpointNA = Endpoint{BaseURL: "https://sellingpartnerapi-na.amazon.com", Region: "us-east-1"}
	endpointEU = Endpoint{BaseURL: "https://sellingpartnerapi-eu.amazon.com", Region: "eu-west-1"}
	endpointFE = Endpoint{BaseURL: "https://sellingpartnerapi-fe.amazon.com", Region: "us-west-2"}
)

// marketplaceEndpoints maps marketplace IDs to their regional endpoint.
// Static lookup table; unknown marketplaces fall back to NA.
var marketplaceEndpoints = map[string]Endpoint{
	// North America
	"ATVPDKIKX0DER":  endpointNA, // US
	"A2EUQ1WTGCTBG2": endpointNA, // CA
	"A1AM78C64UM0Y8": endpointNA, // MX
	"A2Q3Y263D00KWC": endpointNA, // BR
	// Europe
	"A1F83G8C2ARO7P": endpointEU, // UK
	"A1PA6795UKMFR9": endpointEU, // DE
	"A13V1IB3VIYZZH": endpointEU, // FR
	"APJ6JRA9NG5V4":  endpointEU, // IT
	"A1RKKUPIHCS9HS": endpointEU, // ES
	"A1805IZSGTT6HS": endpointEU, // NL
	"A2NODRKZP88ZB9": endpointEU, // SE
	"A1C3SOZRARQ6R3": endpointEU, // PL
	// Far East
	"A1VC38T7YXB528": endpointFE, // JP
	"A39IBJ37TRP1C6": endpointFE, // AU
	"A19VAU5U5O7RUS": endpointFE, // SG
}

// EndpointForMarketplace resolves the regional endpoint for a marketplace ID.
func EndpointForMarketplace(marketplaceID string) Endpoint {
	if ep, ok := marketplaceEndpoints[marketplaceID]; ok {
		return ep
	}
	return endpointNA
}
