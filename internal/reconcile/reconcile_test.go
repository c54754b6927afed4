package reconcile

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/gatewaysync/internal/admin"
	"github.com/danmuck/gatewaysync/internal/testutil/fakegateway"
	"github.com/danmuck/gatewaysync/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestReconciler(t *testing.T, limits Limits) (*Reconciler, *fakegateway.Gateway) {
	t.Helper()
	gw := fakegateway.New(t)
	logger := testlog.Start(t)
	client, err := admin.NewClient(admin.Options{
		BaseURL: gw.URL(),
		Sleep:   noSleep,
		Logger:  logger,
	})
	require.NoError(t, err)
	return New(client, Options{Limits: limits, Logger: logger}), gw
}

// mutationsUnder keeps recorded mutations whose path contains fragment.
func mutationsUnder(gw *fakegateway.Gateway, fragment string) []fakegateway.Request {
	out := make([]fakegateway.Request, 0)
	for _, r := range gw.Mutations() {
		if strings.Contains(r.Path, fragment) {
			out = append(out, r)
		}
	}
	return out
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }

func strPtr(v string) *string { return &v }
