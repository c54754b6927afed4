package reconcile

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/danmuck/gatewaysync/internal/admin"
	"github.com/danmuck/gatewaysync/internal/desired"
	"github.com/danmuck/gatewaysync/internal/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncPluginsDeletesBeforeCreatingAndNormalizes(t *testing.T) {
	r, gw := newTestReconciler(t, Limits{})
	svc := gw.AddService("orders", "http://orders")
	consumer := gw.AddConsumer("portal")
	cors := gw.AddPlugin(svc.ID, "", "cors", map[string]any{"origins": []any{"*"}})
	acl := gw.AddPlugin(svc.ID, "", "acl", map[string]any{"allow": []any{"legacy"}})
	owned := gw.AddPlugin(svc.ID, consumer.ID, "rate-limiting", map[string]any{"minute": 1})

	sum, err := r.SyncServices(context.Background(), []desired.Service{{
		Name: "orders",
		Plugins: []desired.Plugin{
			{"name": "acl", "config.whitelist": "ops"},
			{"name": "jwt", "config": map[string]any{"claims_to_verify": []any{"exp"}}},
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, Counts{Created: 1, Updated: 1, Deleted: 1}, sum.Get(KindPlugin))

	muts := mutationsUnder(gw, "/plugins")
	require.Len(t, muts, 3)
	assert.Equal(t, http.MethodDelete, muts[0].Method)
	assert.Equal(t, "/services/orders/plugins/"+cors.ID, muts[0].Path)
	assert.Equal(t, http.MethodPost, muts[1].Method)
	assert.Equal(t, "jwt", muts[1].Body["name"])
	assert.Equal(t, http.MethodPatch, muts[2].Method)
	assert.Equal(t, "/services/orders/plugins/"+acl.ID, muts[2].Path)
	assert.NotContains(t, muts[2].Body, "id")
	assert.NotContains(t, muts[2].Body, "config.whitelist")

	jwtConfig := muts[1].Body["config"].(map[string]any)
	assert.Equal(t, normalize.AnonymousToken, jwtConfig["anonymous"])
	assert.NotContains(t, jwtConfig, "claims_to_verify")

	aclConfig := muts[2].Body["config"].(map[string]any)
	assert.Equal(t, []any{"ops", normalize.AnonymousToken}, aclConfig["allow"])

	var kept bool
	for _, p := range gw.Plugins(svc.ID) {
		if p.ID == owned.ID {
			kept = true
		}
	}
	assert.True(t, kept, "consumer-scoped plugin must not be touched")
}

func TestSyncPluginsCreateFailureAborts(t *testing.T) {
	r, gw := newTestReconciler(t, Limits{})
	gw.AddService("orders", "http://orders")
	gw.Fail(http.MethodPost, "/services/orders/plugins", http.StatusBadRequest, 1)

	_, err := r.SyncServices(context.Background(), []desired.Service{
		{Name: "orders", Plugins: []desired.Plugin{{"name": "jwt"}}},
		{Name: "later", URL: "http://later"},
	})
	require.Error(t, err)
	var serr *admin.StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusBadRequest, serr.StatusCode)

	// The run stopped before reaching the second service's routes and plugins.
	for _, req := range gw.Requests() {
		assert.NotContains(t, req.Path, "/services/later/")
	}
}

func TestSyncPluginsUpdateAndDeleteFailuresContinue(t *testing.T) {
	r, gw := newTestReconciler(t, Limits{})
	svc := gw.AddService("orders", "http://orders")
	old := gw.AddPlugin(svc.ID, "", "cors", nil)
	limit := gw.AddPlugin(svc.ID, "", "rate-limiting", map[string]any{"minute": 1})
	gw.Fail(http.MethodDelete, "/services/orders/plugins/"+old.ID, http.StatusBadRequest, -1)
	gw.Fail(http.MethodPatch, "/services/orders/plugins/"+limit.ID, http.StatusBadRequest, -1)

	sum, err := r.SyncServices(context.Background(), []desired.Service{{
		Name: "orders",
		Plugins: []desired.Plugin{
			{"name": "rate-limiting", "config.minute": "10"},
			{"name": "request-size-limiting", "config.allowed_payload_size": "8"},
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, Counts{Created: 1, Failed: 2}, sum.Get(KindPlugin))

	var created map[string]any
	for _, req := range mutationsUnder(gw, "/plugins") {
		if req.Method == http.MethodPost {
			created = req.Body
		}
	}
	require.NotNil(t, created)
	assert.Equal(t, float64(8), created["config"].(map[string]any)["allowed_payload_size"])
}
