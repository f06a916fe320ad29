package amazon

import (
	"strings"

	"github.com/goliatone/go-spapi-push/core"
)

// SP-API runs three regional endpoints; each one signs against a specific
// AWS region.
var spapiEndpoints = map[string]string{
	"us-east-1": "https://sellingpartnerapi-na.amazon.com",
	"eu-west-1": "https://sellingpartnerapi-eu.amazon.com",
	"us-west-2": "https://sellingpartnerapi-fe.amazon.com",
}

// ResolveEndpoint picks the configured endpoint, falls back to the
// regional default, and finally to North America.
func ResolveEndpoint(cfg core.Config) string {
	if endpoint := strings.TrimRight(strings.TrimSpace(cfg.SPAPI.Endpoint), "/"); endpoint != "" {
		return endpoint
	}
	region := strings.ToLower(strings.TrimSpace(cfg.SPAPI.Region))
	if endpoint, ok := spapiEndpoints[region]; ok {
		return endpoint
	}
	return core.DefaultSPAPIEndpoint
}

// EndpointForRegion maps an AWS region to its SP-API endpoint. Unknown
// regions return an empty string.
func EndpointForRegion(region string) string {
	return spapiEndpoints[strings.ToLower(strings.TrimSpace(region))]
}
