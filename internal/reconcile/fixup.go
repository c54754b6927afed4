package reconcile

import (
	"context"

	"github.com/danmuck/gatewaysync/internal/admin"
	"github.com/danmuck/gatewaysync/internal/normalize"
)

// FixupReport describes one ACL fixup pass.
type FixupReport struct {
	Checked int
	Updated int
	Failed  int
}

// FixupACL lists plugins across every scope and adds the anonymous group to
// each acl allow list missing it. It never fails: by the time it runs the
// primary reconciliation has already been applied.
func (r *Reconciler) FixupACL(ctx context.Context) FixupReport {
	var report FixupReport
	policy := r.normalizer.Policy()

	plugins, err := admin.List[admin.Plugin](ctx, r.client, admin.PluginsPath(), r.limits.GlobalPlugins)
	if err != nil {
		r.log.Error().Err(err).Msg("acl fixup: could not list plugins")
		report.Failed++
		return report
	}

	for _, p := range plugins {
		if p.Name != normalize.PluginACL {
			continue
		}
		report.Checked++
		allow, changed := policy.EnsureAllowed(allowList(p.Config))
		if !changed {
			continue
		}
		r.log.Info().Str("plugin", p.ID).Str("group", policy.AnonymousGroup).Msg("acl fixup: extending allow list")
		_, err := r.client.Patch(ctx, admin.PluginPath(p.ID), map[string]any{
			"config": map[string]any{"allow": allow},
		})
		if err != nil {
			report.Failed++
			r.log.Error().Str("plugin", p.ID).Err(err).Msg("acl fixup: patch failed")
			continue
		}
		report.Updated++
	}

	r.log.Info().
		Int("checked", report.Checked).
		Int("updated", report.Updated).
		Int("failed", report.Failed).
		Msg("acl fixup complete")
	return report
}

func allowList(config map[string]any) []any {
	switch v := config["allow"].(type) {
	case []any:
		return v
	case string:
		return []any{v}
	default:
		return nil
	}
}
