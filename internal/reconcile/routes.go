package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/danmuck/gatewaysync/internal/admin"
	"github.com/danmuck/gatewaysync/internal/desired"
	"github.com/danmuck/gatewaysync/internal/diff"
)

// ErrConflictUnresolved means a create reported a conflict but the existing
// entity could not be found on refetch.
var ErrConflictUnresolved = errors.New("reconcile: conflicting entity not found")

type namedRoute struct {
	name  string
	route desired.Route
}

// resolveRoutes names every effective route. Unnamed routes take their
// position, so reordering them renames them on the next run.
func resolveRoutes(svc desired.Service) []namedRoute {
	routes := svc.EffectiveRoutes()
	out := make([]namedRoute, 0, len(routes))
	for i, route := range routes {
		out = append(out, namedRoute{name: route.ResolvedName(svc.Name, i), route: route})
	}
	return out
}

// syncRoutes never fails the run for a single route. Only a listing that
// breaches its page ceiling is returned.
func (r *Reconciler) syncRoutes(ctx context.Context, svc desired.Service, sum *Summary) error {
	log := r.log.With().Str("service", svc.Name).Logger()
	path := admin.ServiceRoutesPath(svc.Name)

	observed, err := admin.List[admin.Route](ctx, r.client, path, r.limits.Routes)
	if err != nil {
		if !degradable(err) {
			return err
		}
		log.Warn().Err(err).Msg("could not list routes, treating as none")
		observed = []admin.Route{}
	}

	want := resolveRoutes(svc)
	log.Info().Int("routes", len(want)).Msg("processing routes")

	plan := diff.Compute(want, observed,
		func(n namedRoute) string { return n.name },
		func(o admin.Route) string { return o.Name },
	)

	for _, n := range plan.Create {
		body := routePayload(n)
		log.Info().Str("route", n.name).Msg("creating route")
		_, err := r.client.Post(ctx, path, body)
		if admin.IsConflict(err) {
			log.Info().Str("route", n.name).Msg("route already exists, updating instead")
			err = r.patchExistingRoute(ctx, svc.Name, n.name, body)
			sum.record(KindRoute, ActionUpdate, err)
		} else {
			sum.record(KindRoute, ActionCreate, err)
		}
		if err != nil {
			log.Error().Str("route", n.name).Err(err).Msg("route create failed")
		}
	}
	for _, m := range plan.Update {
		log.Info().Str("route", m.Desired.name).Msg("updating route")
		_, err := r.client.Patch(ctx, admin.ServiceRoutePath(svc.Name, m.Observed.ID), routePayload(m.Desired))
		sum.record(KindRoute, ActionUpdate, err)
		if err != nil {
			log.Error().Str("route", m.Desired.name).Err(err).Msg("route update failed")
		}
	}
	for _, o := range plan.Delete {
		log.Info().Str("route", o.Name).Msg("deleting route")
		err := r.client.Delete(ctx, admin.ServiceRoutePath(svc.Name, o.ID))
		sum.record(KindRoute, ActionDelete, err)
		if err != nil {
			log.Error().Str("route", o.Name).Err(err).Msg("route delete failed")
		}
	}
	return nil
}

func (r *Reconciler) patchExistingRoute(ctx context.Context, service, name string, body map[string]any) error {
	routes, err := admin.List[admin.Route](ctx, r.client, admin.ServiceRoutesPath(service), r.limits.Routes)
	if err != nil {
		return err
	}
	for _, route := range routes {
		if route.Name == name {
			_, err := r.client.Patch(ctx, admin.ServiceRoutePath(service, route.ID), body)
			return err
		}
	}
	return fmt.Errorf("%w: %q under service %q", ErrConflictUnresolved, name, service)
}

// routePayload fills strip_path (true) and preserve_host (false) when unset
// and accepts the legacy uris/strip_uri spellings.
func routePayload(n namedRoute) map[string]any {
	route := n.route
	paths := []string(route.Paths)
	if paths == nil {
		paths = route.URIs
	}
	if paths == nil {
		paths = []string{}
	}
	strip := true
	switch {
	case route.StripPath != nil:
		strip = *route.StripPath
	case route.StripURI != nil:
		strip = *route.StripURI
	}
	preserve := false
	if route.PreserveHost != nil {
		preserve = *route.PreserveHost
	}

	body := map[string]any{
		"name":          n.name,
		"paths":         paths,
		"strip_path":    strip,
		"preserve_host": preserve,
	}
	if route.Hosts != nil {
		body["hosts"] = []string(route.Hosts)
	}
	if route.Methods != nil {
		body["methods"] = []string(route.Methods)
	}
	if route.Protocols != nil {
		body["protocols"] = []string(route.Protocols)
	}
	if route.RegexPriority != nil {
		body["regex_priority"] = *route.RegexPriority
	}
	return body
}
