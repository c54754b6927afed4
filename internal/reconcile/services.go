package reconcile

import (
	"context"
	"fmt"

	"github.com/danmuck/gatewaysync/internal/admin"
	"github.com/danmuck/gatewaysync/internal/desired"
	"github.com/danmuck/gatewaysync/internal/diff"
)

// SyncServices converges services, then each desired service's routes and
// plugins. Service mutations and plugin creates are fatal; route failures and
// plugin update/delete failures are logged and counted.
func (r *Reconciler) SyncServices(ctx context.Context, services []desired.Service) (Summary, error) {
	sum := newSummary()

	observed, err := admin.List[admin.Service](ctx, r.client, admin.ServicesPath(), r.limits.Services)
	if err != nil {
		return sum, fmt.Errorf("list services: %w", err)
	}
	r.log.Info().
		Int("desired", len(services)).
		Int("observed", len(observed)).
		Msg("reconciling services")

	plan := diff.Compute(services, observed,
		func(s desired.Service) string { return s.Name },
		func(s admin.Service) string { return s.Name },
	)

	for _, svc := range plan.Create {
		r.log.Info().Str("service", svc.Name).Msg("adding service")
		_, err := r.client.Post(ctx, admin.ServicesPath(), servicePayload(svc))
		sum.record(KindService, ActionCreate, err)
		if err != nil {
			return sum, fmt.Errorf("create service %q: %w", svc.Name, err)
		}
	}
	for _, m := range plan.Update {
		r.log.Info().Str("service", m.Desired.Name).Str("id", m.Observed.ID).Msg("updating service")
		_, err := r.client.Patch(ctx, admin.ServicePath(m.Observed.ID), servicePayload(m.Desired))
		sum.record(KindService, ActionUpdate, err)
		if err != nil {
			return sum, fmt.Errorf("update service %q: %w", m.Desired.Name, err)
		}
	}
	for _, svc := range plan.Delete {
		r.log.Info().Str("service", svc.Name).Str("id", svc.ID).Msg("deleting service")
		err := r.client.Delete(ctx, admin.ServicePath(svc.ID))
		sum.record(KindService, ActionDelete, err)
		if err != nil {
			return sum, fmt.Errorf("delete service %q: %w", svc.Name, err)
		}
	}

	for _, svc := range services {
		if err := r.syncRoutes(ctx, svc, &sum); err != nil {
			return sum, err
		}
		if err := r.syncPlugins(ctx, svc, &sum); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// servicePayload carries optional fields only when declared so the gateway's
// own defaults apply otherwise.
func servicePayload(svc desired.Service) map[string]any {
	body := map[string]any{"name": svc.Name}
	if url := svc.TargetURL(); url != "" {
		body["url"] = url
	}
	if svc.Retries != nil {
		body["retries"] = *svc.Retries
	}
	if svc.ConnectTimeout != nil {
		body["connect_timeout"] = *svc.ConnectTimeout
	}
	if svc.ReadTimeout != nil {
		body["read_timeout"] = *svc.ReadTimeout
	}
	if svc.WriteTimeout != nil {
		body["write_timeout"] = *svc.WriteTimeout
	}
	return body
}
