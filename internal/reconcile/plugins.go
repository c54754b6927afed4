package reconcile

import (
	"context"
	"fmt"

	"github.com/danmuck/gatewaysync/internal/admin"
	"github.com/danmuck/gatewaysync/internal/desired"
	"github.com/danmuck/gatewaysync/internal/diff"
)

// syncPlugins converges the service's own plugins. Consumer-scoped instances
// are left to the consumer pass. Deletes run first so a replaced plugin does
// not collide with its successor. A failed create aborts the run.
func (r *Reconciler) syncPlugins(ctx context.Context, svc desired.Service, sum *Summary) error {
	log := r.log.With().Str("service", svc.Name).Logger()
	path := admin.ServicePluginsPath(svc.Name)

	listed, err := admin.List[admin.Plugin](ctx, r.client, path, r.limits.Plugins)
	if err != nil {
		return fmt.Errorf("list plugins for service %q: %w", svc.Name, err)
	}
	observed := make([]admin.Plugin, 0, len(listed))
	for _, p := range listed {
		if p.ConsumerRef() == "" {
			observed = append(observed, p)
		}
	}

	plan := diff.Compute(svc.Plugins, observed,
		func(p desired.Plugin) string { return p.Name() },
		func(p admin.Plugin) string { return p.Name },
	)

	for _, p := range plan.Delete {
		log.Info().Str("plugin", p.Name).Msg("deleting plugin")
		err := r.client.Delete(ctx, admin.ServicePluginPath(svc.Name, p.ID))
		sum.record(KindPlugin, ActionDelete, err)
		if err != nil {
			log.Error().Str("plugin", p.Name).Err(err).Msg("plugin delete failed")
		}
	}
	for _, p := range plan.Create {
		body := r.normalizer.Normalize(p)
		log.Info().Str("plugin", p.Name()).Interface("payload", body).Msg("adding plugin")
		_, err := r.client.Post(ctx, path, body)
		sum.record(KindPlugin, ActionCreate, err)
		if err != nil {
			return fmt.Errorf("create plugin %q for service %q: %w", p.Name(), svc.Name, err)
		}
	}
	for _, m := range plan.Update {
		log.Info().Str("plugin", m.Observed.Name).Msg("updating plugin")
		_, err := r.client.Patch(ctx, admin.ServicePluginPath(svc.Name, m.Observed.ID), r.normalizer.Normalize(m.Desired))
		sum.record(KindPlugin, ActionUpdate, err)
		if err != nil {
			log.Error().Str("plugin", m.Observed.Name).Err(err).Msg("plugin update failed")
		}
	}
	return nil
}
