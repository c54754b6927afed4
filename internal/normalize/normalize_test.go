package normalize

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFlattenDottedKeys(t *testing.T) {
	in := map[string]any{
		"name":                   "request-transformer",
		"config.remove.headers":  "x-debug",
		"config.add.querystring": []any{"a:1"},
		"config.http_method":     "POST",
	}
	got := Normalize(in)
	want := map[string]any{
		"name": "request-transformer",
		"config": map[string]any{
			"remove":      map[string]any{"headers": []any{"x-debug"}},
			"add":         map[string]any{"querystring": []any{"a:1"}},
			"http_method": "POST",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("normalize mismatch (-want +got):\n%s", diff)
	}
	if _, ok := in["config"]; ok {
		t.Fatalf("input must not be modified")
	}
}

func TestFlattenMergesIntoExistingConfig(t *testing.T) {
	got := Normalize(map[string]any{
		"name":               "cors",
		"config":             map[string]any{"origins": []any{"*"}, "nested": "scalar"},
		"config.nested.deep": true,
	})
	want := map[string]any{
		"name": "cors",
		"config": map[string]any{
			"origins": []any{"*"},
			"nested":  map[string]any{"deep": true},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNumericCoercionAnywhereInConfig(t *testing.T) {
	got := Normalize(map[string]any{
		"name": "request-size-limiting",
		"config": map[string]any{
			"allowed_payload_size": "128",
			"size_unit":            "megabytes",
			"timeout":              "soon",
			"upstream":             map[string]any{"port": " 8080 "},
			"targets":              []any{map[string]any{"retry_count": "3"}},
			"limit":                5,
		},
	})
	config := got["config"].(map[string]any)
	want := map[string]any{
		"allowed_payload_size": 128,
		"size_unit":            "megabytes",
		"timeout":              "soon",
		"upstream":             map[string]any{"port": 8080},
		"targets":              []any{map[string]any{"retry_count": 3}},
		"limit":                5,
	}
	if diff := cmp.Diff(want, config); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestACLRules(t *testing.T) {
	got := Normalize(map[string]any{
		"name": "acl",
		"config": map[string]any{
			"whitelist": []string{"g1"},
			"blacklist": "banned",
			"status":    "enabled",
		},
	})
	want := map[string]any{
		"name": "acl",
		"config": map[string]any{
			"allow":              []any{"g1", AnonymousToken},
			"deny":               []any{"banned"},
			"hide_groups_header": false,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("acl mismatch (-want +got):\n%s", diff)
	}
}

func TestACLAllowGetsBypassOnce(t *testing.T) {
	once := Normalize(map[string]any{"name": "acl", "config": map[string]any{"allow": []any{"g1"}}})
	twice := Normalize(once)

	want := []any{"g1", AnonymousToken}
	if diff := cmp.Diff(want, twice["config"].(map[string]any)["allow"]); diff != "" {
		t.Fatalf("allow mismatch (-want +got):\n%s", diff)
	}
}

func TestACLEmptyAllowStaysEmpty(t *testing.T) {
	got := Normalize(map[string]any{"name": "acl", "config": map[string]any{"allow": []any{}, "hide_groups_header": true}})
	config := got["config"].(map[string]any)
	if len(config["allow"].([]any)) != 0 {
		t.Fatalf("empty allow must not receive the bypass group: %v", config["allow"])
	}
	if config["hide_groups_header"] != true {
		t.Fatalf("explicit hide_groups_header must be kept")
	}
}

func TestJWTRules(t *testing.T) {
	got := Normalize(map[string]any{
		"name": "jwt",
		"config": map[string]any{
			"anonymous":          "portal_loggedin",
			"algorithms":         []any{"HS256"},
			"claims_to_verify":   []any{"exp"},
			"maximum_expiration": 3600,
			"uri_param_names":    []any{"token"},
		},
	})
	want := map[string]any{
		"name": "jwt",
		"config": map[string]any{
			"anonymous":       AnonymousToken,
			"header_names":    []any{"authorization"},
			"uri_param_names": []any{"token"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("jwt mismatch (-want +got):\n%s", diff)
	}
}

func TestJWTWithoutConfig(t *testing.T) {
	got := Normalize(map[string]any{"name": "jwt"})
	config := got["config"].(map[string]any)
	if config["anonymous"] != AnonymousToken {
		t.Fatalf("expected anonymous fallback, got %v", config["anonymous"])
	}
}

func TestRateLimitingDefaults(t *testing.T) {
	got := Normalize(map[string]any{"name": "rate-limiting", "config.minute": "10"})
	want := map[string]any{
		"name": "rate-limiting",
		"config": map[string]any{
			"minute":        10,
			"error_code":    RateLimitErrorCode,
			"error_message": RateLimitErrorMessage,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rate-limiting mismatch (-want +got):\n%s", diff)
	}

	custom := Normalize(map[string]any{"name": "rate-limiting", "config": map[string]any{"error_code": "503", "error_message": "slow down"}})
	config := custom["config"].(map[string]any)
	if config["error_code"] != 503 || config["error_message"] != "slow down" {
		t.Fatalf("explicit values must be kept: %v", config)
	}
}

func TestRulesOnlyApplyToMatchingName(t *testing.T) {
	got := Normalize(map[string]any{"name": "cors", "config": map[string]any{"whitelist": []any{"g"}, "anonymous": "x"}})
	want := map[string]any{"name": "cors", "config": map[string]any{"whitelist": []any{"g"}, "anonymous": "x"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected rewrite (-want +got):\n%s", diff)
	}
}

func TestCustomPolicy(t *testing.T) {
	n := New(Policy{AnonymousConsumer: "guest", AnonymousGroup: "guests"})
	jwt := n.Normalize(map[string]any{"name": "jwt"})
	acl := n.Normalize(map[string]any{"name": "acl", "config": map[string]any{"allow": []any{"g"}}})

	if jwt["config"].(map[string]any)["anonymous"] != "guest" {
		t.Fatalf("unexpected anonymous consumer: %v", jwt["config"])
	}
	if diff := cmp.Diff([]any{"g", "guests"}, acl["config"].(map[string]any)["allow"]); diff != "" {
		t.Fatalf("allow mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	cases := []map[string]any{
		{"name": "acl", "config.whitelist": []any{"a", "b"}, "config.status": "1"},
		{"name": "acl", "config": map[string]any{"allow": "solo"}},
		{"name": "jwt", "config": map[string]any{"claims_to_verify": []any{"exp"}, "header_names": []any{"x-jwt"}}},
		{"name": "rate-limiting", "config.hour": "100", "config.policy": "local"},
		{"name": "request-transformer", "config.add.headers": "x-a:1", "config.rename.body": []any{"a:b"}},
		{"name": "request-size-limiting", "config": map[string]any{"allowed_payload_size": "12"}},
		{"name": "cors"},
		{"name": "ip-restriction", "config": nil},
	}
	for _, in := range cases {
		once := Normalize(in)
		twice := Normalize(once)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Fatalf("normalize not idempotent for %v (-once +twice):\n%s", in, diff)
		}
	}
}

func TestPolicyEnsureAllowed(t *testing.T) {
	p := DefaultPolicy()
	in := []any{"g1"}
	out, changed := p.EnsureAllowed(in)
	if !changed || len(out) != 2 || len(in) != 1 {
		t.Fatalf("unexpected ensure result: in=%v out=%v changed=%v", in, out, changed)
	}
	if _, changed := p.EnsureAllowed(out); changed {
		t.Fatalf("second ensure must be a no-op")
	}
	if _, changed := p.EnsureAllowed(nil); changed {
		t.Fatalf("empty allow list must be left alone")
	}
}
