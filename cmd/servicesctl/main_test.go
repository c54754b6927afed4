package main

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/gatewaysync/internal/normalize"
	"github.com/danmuck/gatewaysync/internal/testutil/fakegateway"
)

func writeServices(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "services.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write services: %v", err)
	}
	return path
}

func TestRunReconcilesAndFixesACLs(t *testing.T) {
	gw := fakegateway.New(t)
	global := gw.AddPlugin("", "", "acl", map[string]any{"allow": []any{"admins"}})
	path := writeServices(t, `[{"name":"orders","upstream_url":"http://orders","uris":"/orders",
		"plugins":[{"name":"acl","config.whitelist":["ops"]}]}]`)

	var stderr bytes.Buffer
	if code := run([]string{"--admin-url", gw.URL(), path}, &stderr); code != 0 {
		t.Fatalf("unexpected exit %d: %s", code, stderr.String())
	}

	services := gw.Services()
	if len(services) != 1 || services[0].Name != "orders" {
		t.Fatalf("unexpected services: %+v", services)
	}
	if routes := gw.Routes(services[0].ID); len(routes) != 1 || routes[0].Name != "orders-route-0" {
		t.Fatalf("unexpected routes: %+v", routes)
	}
	for _, p := range gw.Plugins("") {
		if p.Name != "acl" {
			continue
		}
		allow, _ := p.Config["allow"].([]any)
		if len(allow) == 0 || allow[len(allow)-1] != normalize.AnonymousToken {
			t.Fatalf("plugin %s allow list not fixed: %v", p.ID, allow)
		}
		if p.ID == global.ID && len(allow) != 2 {
			t.Fatalf("unexpected global allow list: %v", allow)
		}
	}
}

func TestRunSkipFixup(t *testing.T) {
	gw := fakegateway.New(t)
	gw.AddPlugin("", "", "acl", map[string]any{"allow": []any{"admins"}})
	path := writeServices(t, `{"services": []}`)

	var stderr bytes.Buffer
	if code := run([]string{"--admin-url", gw.URL(), "--skip-fixup", path}, &stderr); code != 0 {
		t.Fatalf("unexpected exit %d: %s", code, stderr.String())
	}
	for _, req := range gw.Requests() {
		if req.Path == "/plugins" {
			t.Fatalf("fixup ran despite --skip-fixup")
		}
	}
}

func TestRunPrintsRejectedBody(t *testing.T) {
	gw := fakegateway.New(t)
	gw.Fail(http.MethodPost, "/services/orders/plugins", http.StatusBadRequest, -1)
	path := writeServices(t, `[{"name":"orders","url":"http://orders","plugins":[{"name":"jwt"}]}]`)

	var stderr bytes.Buffer
	if code := run([]string{"--admin-url", gw.URL(), path}, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "injected failure") {
		t.Fatalf("expected gateway response body on stderr, got %q", stderr.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	var stderr bytes.Buffer
	if code := run(nil, &stderr); code != 2 {
		t.Fatalf("expected usage exit 2, got %d", code)
	}
	if code := run([]string{"missing.json"}, &stderr); code != 1 {
		t.Fatalf("expected exit 1 for unreadable file, got %d", code)
	}
}

func TestRunSendsAdminToken(t *testing.T) {
	gw := fakegateway.New(t)
	gw.RequireToken("s3cret")
	path := writeServices(t, `[{"name":"orders","url":"http://orders"}]`)

	var stderr bytes.Buffer
	if code := run([]string{"--admin-url", gw.URL(), path}, &stderr); code != 1 {
		t.Fatalf("expected exit 1 without a token, got %d", code)
	}
	if !strings.Contains(stderr.String(), "Invalid credentials") {
		t.Fatalf("expected gateway message on stderr, got %q", stderr.String())
	}

	stderr.Reset()
	if code := run([]string{"--admin-url", gw.URL(), "--admin-token", "s3cret", path}, &stderr); code != 0 {
		t.Fatalf("unexpected exit %d: %s", code, stderr.String())
	}
	if services := gw.Services(); len(services) != 1 {
		t.Fatalf("unexpected services: %+v", services)
	}
}
