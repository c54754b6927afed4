// Package normalize rewrites plugin payloads written for the legacy gateway
// generation into the shape the current admin API accepts, and injects the
// anonymous-bypass defaults.
//
// Normalize is pure and idempotent: Normalize(Normalize(p)) equals Normalize(p).
package normalize

import (
	"sort"
	"strconv"
	"strings"
)

const (
	configKey    = "config"
	dottedPrefix = configKey + "."

	PluginACL                = "acl"
	PluginJWT                = "jwt"
	PluginRateLimiting       = "rate-limiting"
	PluginRequestTransformer = "request-transformer"

	RateLimitErrorCode    = 429
	RateLimitErrorMessage = "API rate limit exceeded"
)

var numericFields = map[string]struct{}{
	"port": {}, "timeout": {}, "size": {},
	"hour": {}, "minute": {}, "second": {}, "day": {}, "month": {}, "year": {},
	"error_code": {}, "status": {}, "limit": {}, "window_size": {},
	"retry_count": {}, "max_retries": {},
	"allowed_payload_size": {}, "max_body_size": {}, "max_request_size": {},
}

var (
	transformerActions = []string{"add", "append", "remove", "replace", "rename"}
	transformerFields  = []string{"headers", "querystring", "body"}
	jwtDroppedFields   = []string{"algorithms", "claims_to_verify", "maximum_expiration"}
)

// Normalizer applies schema translation under one bypass policy.
type Normalizer struct {
	policy Policy
}

func New(policy Policy) Normalizer {
	return Normalizer{policy: policy.WithDefaults()}
}

func (n Normalizer) Policy() Policy {
	return n.policy
}

// Normalize returns plugin with the package rules applied, using DefaultPolicy.
func Normalize(plugin map[string]any) map[string]any {
	return New(DefaultPolicy()).Normalize(plugin)
}

// Normalize returns a normalized deep copy of plugin; the input is untouched.
func (n Normalizer) Normalize(plugin map[string]any) map[string]any {
	out := copyMap(plugin)
	config := flattenDotted(out)
	coerceNumeric(config)

	name, _ := out["name"].(string)
	switch name {
	case PluginACL:
		n.normalizeACL(config)
	case PluginJWT:
		n.normalizeJWT(config)
	case PluginRateLimiting:
		normalizeRateLimiting(config)
	case PluginRequestTransformer:
		normalizeRequestTransformer(config)
	}
	out[configKey] = config
	return out
}

// flattenDotted moves top-level "config.a.b" keys to config[a][b] and returns
// the config map, creating it when missing.
func flattenDotted(plugin map[string]any) map[string]any {
	config, ok := plugin[configKey].(map[string]any)
	if !ok || config == nil {
		config = map[string]any{}
	}

	var dotted []string
	for key := range plugin {
		if strings.HasPrefix(key, dottedPrefix) {
			dotted = append(dotted, key)
		}
	}
	sort.Strings(dotted)

	for _, key := range dotted {
		value := plugin[key]
		delete(plugin, key)

		parts := strings.Split(strings.TrimPrefix(key, dottedPrefix), ".")
		current := config
		for _, part := range parts[:len(parts)-1] {
			next, ok := current[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				current[part] = next
			}
			current = next
		}
		current[parts[len(parts)-1]] = value
	}
	plugin[configKey] = config
	return config
}

// coerceNumeric converts parseable strings under known numeric field names,
// at any depth. Unparseable values are left alone.
func coerceNumeric(v any) {
	switch node := v.(type) {
	case map[string]any:
		for key, child := range node {
			if s, ok := child.(string); ok {
				if _, numeric := numericFields[key]; numeric {
					if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
						node[key] = n
					}
				}
				continue
			}
			coerceNumeric(child)
		}
	case []any:
		for _, child := range node {
			coerceNumeric(child)
		}
	}
}

func (n Normalizer) normalizeACL(config map[string]any) {
	if v, ok := config["whitelist"]; ok {
		config["allow"] = v
		delete(config, "whitelist")
	}
	if v, ok := config["blacklist"]; ok {
		config["deny"] = v
		delete(config, "blacklist")
	}
	delete(config, "status")

	for _, field := range []string{"allow", "deny"} {
		if s, ok := config[field].(string); ok {
			config[field] = []any{s}
		}
	}
	if allow, ok := config["allow"].([]any); ok {
		config["allow"], _ = n.policy.EnsureAllowed(allow)
	}
	if _, ok := config["hide_groups_header"]; !ok {
		config["hide_groups_header"] = false
	}
}

func (n Normalizer) normalizeJWT(config map[string]any) {
	for _, field := range jwtDroppedFields {
		delete(config, field)
	}
	config["anonymous"] = n.policy.AnonymousConsumer
	if _, ok := config["header_names"]; !ok {
		config["header_names"] = []any{"authorization"}
	}
	if _, ok := config["uri_param_names"]; !ok {
		config["uri_param_names"] = []any{"jwt"}
	}
}

func normalizeRateLimiting(config map[string]any) {
	if _, ok := config["error_code"]; !ok {
		config["error_code"] = RateLimitErrorCode
	}
	if _, ok := config["error_message"]; !ok {
		config["error_message"] = RateLimitErrorMessage
	}
}

func normalizeRequestTransformer(config map[string]any) {
	for _, action := range transformerActions {
		section, ok := config[action].(map[string]any)
		if !ok {
			continue
		}
		for _, field := range transformerFields {
			if s, ok := section[field].(string); ok {
				section[field] = []any{s}
			}
		}
	}
}
