package reconcile

import (
	"context"
	"net/http"
	"testing"

	"github.com/danmuck/gatewaysync/internal/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixupACLExtendsAllowLists(t *testing.T) {
	r, gw := newTestReconciler(t, Limits{})
	svc := gw.AddService("orders", "http://orders")
	missing := gw.AddPlugin(svc.ID, "", "acl", map[string]any{"allow": []any{"ops"}})
	gw.AddPlugin("", "", "acl", map[string]any{"allow": []any{"ops", normalize.AnonymousToken}})
	gw.AddPlugin("", "", "acl", map[string]any{"deny": []any{"banned"}})
	gw.AddPlugin(svc.ID, "", "jwt", map[string]any{})

	report := r.FixupACL(context.Background())
	assert.Equal(t, FixupReport{Checked: 3, Updated: 1}, report)

	muts := gw.Mutations()
	require.Len(t, muts, 1)
	assert.Equal(t, http.MethodPatch, muts[0].Method)
	assert.Equal(t, "/plugins/"+missing.ID, muts[0].Path)
	assert.Equal(t, map[string]any{
		"config": map[string]any{"allow": []any{"ops", normalize.AnonymousToken}},
	}, muts[0].Body)

	for _, p := range gw.Plugins(svc.ID) {
		if p.ID == missing.ID {
			assert.Equal(t, []any{"ops", normalize.AnonymousToken}, p.Config["allow"])
		}
	}
}

// ACLs without an allow list are deny-only; adding the anonymous group would
// turn them into allow lists.
func TestFixupACLLeavesDenyOnlyPluginsAlone(t *testing.T) {
	r, gw := newTestReconciler(t, Limits{})
	gw.AddPlugin("", "", "acl", map[string]any{"deny": []any{"banned"}})
	gw.AddPlugin("", "", "acl", map[string]any{"allow": []any{}, "deny": []any{"banned"}})
	gw.AddPlugin("", "", "acl", nil)
	single := gw.AddPlugin("", "", "acl", map[string]any{"allow": "ops"})

	report := r.FixupACL(context.Background())
	assert.Equal(t, FixupReport{Checked: 4, Updated: 1}, report)

	muts := gw.Mutations()
	require.Len(t, muts, 1)
	assert.Equal(t, "/plugins/"+single.ID, muts[0].Path)
	assert.Equal(t, map[string]any{
		"config": map[string]any{"allow": []any{"ops", normalize.AnonymousToken}},
	}, muts[0].Body)
}

func TestFixupACLSwallowsFailures(t *testing.T) {
	r, gw := newTestReconciler(t, Limits{})
	first := gw.AddPlugin("", "", "acl", map[string]any{"allow": []any{"a"}})
	gw.AddPlugin("", "", "acl", map[string]any{"allow": []any{"b"}})
	gw.Fail(http.MethodPatch, "/plugins/"+first.ID, http.StatusInternalServerError, -1)

	report := r.FixupACL(context.Background())
	assert.Equal(t, FixupReport{Checked: 2, Updated: 1, Failed: 1}, report)
}

func TestFixupACLListingFailure(t *testing.T) {
	r, gw := newTestReconciler(t, Limits{})
	gw.Fail(http.MethodGet, "/plugins", http.StatusBadRequest, 1)

	report := r.FixupACL(context.Background())
	assert.Equal(t, FixupReport{Failed: 1}, report)
	assert.Empty(t, gw.Mutations())
}

func TestFixupACLUsesConfiguredGroup(t *testing.T) {
	gwReconciler, gw := newTestReconciler(t, Limits{})
	r := New(gwReconciler.client, Options{Policy: normalize.Policy{AnonymousGroup: "guests"}, Logger: gwReconciler.log})
	gw.AddPlugin("", "", "acl", map[string]any{"allow": []any{"ops"}})

	report := r.FixupACL(context.Background())
	assert.Equal(t, 1, report.Updated)
	plugins := gw.Plugins("")
	require.Len(t, plugins, 1)
	assert.Equal(t, []any{"ops", "guests"}, plugins[0].Config["allow"])
}
