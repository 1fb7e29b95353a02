package ratelimit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Well-known endpoint keys. Endpoints are data, not code: adding one means
// adding a policy entry and tagging the route, nothing else.
const (
	EndpointCreate   = "create"
	EndpointUpdate   = "update"
	EndpointDelete   = "delete"
	EndpointList     = "list"
	EndpointRedirect = "redirect"
)

// LimitConfig is one (limit, window) pair.
type LimitConfig struct {
	Limit  int64
	Window time.Duration
}

// EndpointLimits holds the two identity tiers for a single endpoint.
type EndpointLimits struct {
	Authenticated LimitConfig
	Anonymous     LimitConfig
}

// Policy maps endpoint keys to their per-tier limits.
type Policy struct {
	Endpoints map[string]EndpointLimits
}

// Limits returns the limits for an endpoint, if configured.
func (p *Policy) Limits(endpoint string) (EndpointLimits, bool) {
	limits, ok := p.Endpoints[endpoint]

	return limits, ok
}

// DefaultPolicy returns the built-in limit tables. The redirect endpoint
// runs materially hotter than the mutation endpoints.
func DefaultPolicy() *Policy {
	return &Policy{Endpoints: map[string]EndpointLimits{
		EndpointCreate: {
			Authenticated: LimitConfig{Limit: 30, Window: time.Minute},
			Anonymous:     LimitConfig{Limit: 5, Window: time.Minute},
		},
		EndpointUpdate: {
			Authenticated: LimitConfig{Limit: 60, Window: time.Minute},
			Anonymous:     LimitConfig{Limit: 5, Window: time.Minute},
		},
		EndpointDelete: {
			Authenticated: LimitConfig{Limit: 60, Window: time.Minute},
			Anonymous:     LimitConfig{Limit: 5, Window: time.Minute},
		},
		EndpointList: {
			Authenticated: LimitConfig{Limit: 120, Window: time.Minute},
			Anonymous:     LimitConfig{Limit: 30, Window: time.Minute},
		},
		EndpointRedirect: {
			Authenticated: LimitConfig{Limit: 5000, Window: time.Minute},
			Anonymous:     LimitConfig{Limit: 1000, Window: time.Minute},
		},
	}}
}

type policyFile struct {
	Endpoints map[string]struct {
		Authenticated limitEntry `yaml:"authenticated"`
		Anonymous     limitEntry `yaml:"anonymous"`
	} `yaml:"endpoints"`
}

type limitEntry struct {
	Limit         int64 `yaml:"limit"`
	WindowSeconds int64 `yaml:"windowSeconds"`
}

// LoadPolicy reads limit tables from a YAML file. Endpoints present in the
// file override the defaults; the rest keep their built-in limits.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate limit config: %w", err)
	}

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rate limit config: %w", err)
	}

	policy := DefaultPolicy()

	for endpoint, entry := range file.Endpoints {
		limits := EndpointLimits{
			Authenticated: LimitConfig{
				Limit:  entry.Authenticated.Limit,
				Window: time.Duration(entry.Authenticated.WindowSeconds) * time.Second,
			},
			Anonymous: LimitConfig{
				Limit:  entry.Anonymous.Limit,
				Window: time.Duration(entry.Anonymous.WindowSeconds) * time.Second,
			},
		}

		if err := validateLimits(endpoint, limits); err != nil {
			return nil, err
		}

		policy.Endpoints[endpoint] = limits
	}

	return policy, nil
}

func validateLimits(endpoint string, limits EndpointLimits) error {
	for tier, cfg := range map[string]LimitConfig{
		"authenticated": limits.Authenticated,
		"anonymous":     limits.Anonymous,
	} {
		if cfg.Limit <= 0 || cfg.Window <= 0 {
			return fmt.Errorf("rate limit config: endpoint %q tier %s needs positive limit and window", endpoint, tier)
		}
	}

	return nil
}
