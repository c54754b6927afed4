package reconcile

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/danmuck/gatewaysync/internal/admin"
	"github.com/danmuck/gatewaysync/internal/desired"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncServicesCreateUpdateDelete(t *testing.T) {
	r, gw := newTestReconciler(t, Limits{})
	billing := gw.AddService("billing", "http://billing:9000")
	stale := gw.AddService("stale", "http://stale")

	sum, err := r.SyncServices(context.Background(), []desired.Service{
		{Name: "orders", UpstreamURL: "http://orders:8080", Retries: intPtr(3)},
		{Name: "billing", URL: "http://billing:9100"},
	})
	require.NoError(t, err)

	assert.Equal(t, Counts{Created: 1, Updated: 1, Deleted: 1}, sum.Get(KindService))

	names := map[string]admin.Service{}
	for _, svc := range gw.Services() {
		names[svc.Name] = svc
	}
	require.Contains(t, names, "orders")
	require.Contains(t, names, "billing")
	assert.NotContains(t, names, "stale")
	require.NotNil(t, names["orders"].Retries)
	assert.Equal(t, 3, *names["orders"].Retries)
	assert.Equal(t, "http://orders:8080", names["orders"].URL)
	assert.Equal(t, "http://billing:9100", names["billing"].URL)

	var create, patch, del bool
	for _, req := range mutationsUnder(gw, "/services") {
		switch {
		case req.Method == http.MethodPost && req.Path == "/services":
			create = true
			assert.Equal(t, "http://orders:8080", req.Body["url"])
			assert.NotContains(t, req.Body, "upstream_url")
			assert.NotContains(t, req.Body, "connect_timeout")
		case req.Method == http.MethodPatch && req.Path == "/services/"+billing.ID:
			patch = true
			assert.NotContains(t, req.Body, "id")
			assert.NotContains(t, req.Body, "retries")
		case req.Method == http.MethodDelete && req.Path == "/services/"+stale.ID:
			del = true
		}
	}
	assert.True(t, create && patch && del, "create=%v patch=%v delete=%v", create, patch, del)
}

func TestSyncServicesRefusesListingAboveCeiling(t *testing.T) {
	r, gw := newTestReconciler(t, Limits{Services: 2})
	gw.AddService("a", "http://a")
	gw.AddService("b", "http://b")
	gw.AddService("c", "http://c")

	_, err := r.SyncServices(context.Background(), []desired.Service{{Name: "a"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, admin.ErrPageCeilingExceeded))
	assert.Empty(t, gw.Mutations())
	assert.Len(t, gw.Services(), 3)
}

func TestSyncRoutesPatchesKeptAndDeletesStale(t *testing.T) {
	r, gw := newTestReconciler(t, Limits{})
	svc := gw.AddService("orders", "http://orders")
	r1 := gw.AddRoute(svc.ID, "r1", "/old")
	stale := gw.AddRoute(svc.ID, "stale", "/gone")

	_, err := r.SyncServices(context.Background(), []desired.Service{{
		Name:   "orders",
		Routes: []desired.Route{{Name: "r1", Paths: desired.StringList{"/a"}}},
	}})
	require.NoError(t, err)

	routeMutations := mutationsUnder(gw, "/routes")
	require.Len(t, routeMutations, 2)
	assert.Equal(t, http.MethodPatch, routeMutations[0].Method)
	assert.Equal(t, "/services/orders/routes/"+r1.ID, routeMutations[0].Path)
	assert.Equal(t, []any{"/a"}, routeMutations[0].Body["paths"])
	assert.Equal(t, true, routeMutations[0].Body["strip_path"])
	assert.Equal(t, false, routeMutations[0].Body["preserve_host"])
	assert.Equal(t, http.MethodDelete, routeMutations[1].Method)
	assert.Equal(t, "/services/orders/routes/"+stale.ID, routeMutations[1].Path)

	routes := gw.Routes(svc.ID)
	require.Len(t, routes, 1)
	assert.Equal(t, []string{"/a"}, routes[0].Paths)
}

func TestSyncRoutesLegacyURIsAndSynthesizedNames(t *testing.T) {
	r, gw := newTestReconciler(t, Limits{})

	_, err := r.SyncServices(context.Background(), []desired.Service{
		{Name: "legacy", URL: "http://legacy", URIs: desired.StringList{"/legacy"}, StripURI: boolPtr(false)},
		{Name: "multi", URL: "http://multi", Routes: []desired.Route{
			{Name: "multi-public", Paths: desired.StringList{"/m"}},
			{URIs: desired.StringList{"/m2"}, StripURI: boolPtr(false), Methods: desired.StringList{"GET"}},
		}},
	})
	require.NoError(t, err)

	byName := map[string]admin.Route{}
	for _, svc := range gw.Services() {
		for _, route := range gw.Routes(svc.ID) {
			byName[route.Name] = route
		}
	}
	require.Contains(t, byName, "legacy-route-0")
	require.NotNil(t, byName["legacy-route-0"].StripPath)
	assert.False(t, *byName["legacy-route-0"].StripPath)
	assert.Equal(t, []string{"/legacy"}, byName["legacy-route-0"].Paths)

	require.Contains(t, byName, "multi-public")
	require.Contains(t, byName, "multi-route-1")
	assert.Equal(t, []string{"/m2"}, byName["multi-route-1"].Paths)
	assert.Equal(t, []string{"GET"}, byName["multi-route-1"].Methods)
	assert.False(t, *byName["multi-route-1"].StripPath)
}

func TestSyncRoutesConflictFallsBackToPatch(t *testing.T) {
	r, gw := newTestReconciler(t, Limits{})
	svc := gw.AddService("orders", "http://orders")
	existing := gw.AddRoute(svc.ID, "orders-route-0", "/old")

	// The first listing fails, so the route looks new and the create conflicts.
	gw.Fail(http.MethodGet, "/services/orders/routes", http.StatusBadRequest, 1)

	sum, err := r.SyncServices(context.Background(), []desired.Service{{
		Name:   "orders",
		Routes: []desired.Route{{Paths: desired.StringList{"/new"}}},
	}})
	require.NoError(t, err)
	assert.Equal(t, Counts{Updated: 1}, sum.Get(KindRoute))

	routes := gw.Routes(svc.ID)
	require.Len(t, routes, 1)
	assert.Equal(t, existing.ID, routes[0].ID)
	assert.Equal(t, []string{"/new"}, routes[0].Paths)
}

func TestSyncRoutesFailuresDoNotAbort(t *testing.T) {
	r, gw := newTestReconciler(t, Limits{})
	svc := gw.AddService("orders", "http://orders")
	stale := gw.AddRoute(svc.ID, "stale", "/gone")
	gw.Fail(http.MethodDelete, "/services/orders/routes/"+stale.ID, http.StatusBadRequest, -1)

	sum, err := r.SyncServices(context.Background(), []desired.Service{{
		Name:    "orders",
		Routes:  []desired.Route{{Name: "keep", Paths: desired.StringList{"/k"}}},
		Plugins: []desired.Plugin{{"name": "cors"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, Counts{Created: 1, Failed: 1}, sum.Get(KindRoute))
	assert.Equal(t, 1, sum.Get(KindPlugin).Created)
}
