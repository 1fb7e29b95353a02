package ratelimit

import "github.com/danielgtaylor/huma/v2"

// MetadataKey is the operation metadata key carrying admission config.
const MetadataKey = "admission"

// EndpointConfig tags a route with its admission endpoint key. Attached to
// huma operations via the Metadata field; routes without it skip admission
// control entirely.
type EndpointConfig struct {
	// Endpoint is the policy table key for this route.
	Endpoint string

	// SuppressHeaders omits the quota response headers. The redirect
	// endpoint sets this to keep its responses minimal.
	SuppressHeaders bool
}

// GetEndpointConfig extracts the EndpointConfig from operation metadata,
// if present.
func GetEndpointConfig(ctx huma.Context) *EndpointConfig {
	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return nil
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)
	if !ok {
		return nil
	}

	return &cfg
}
