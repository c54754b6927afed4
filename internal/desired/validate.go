package desired

import (
	"fmt"
	"strings"
)

// ValidateServices checks the identity invariants the diff relies on.
func ValidateServices(services []Service) error {
	names := make(map[string]struct{}, len(services))
	for i, svc := range services {
		name := strings.TrimSpace(svc.Name)
		if name == "" {
			return fmt.Errorf("%w: service[%d] missing name", ErrInvalidDocument, i)
		}
		if _, dup := names[name]; dup {
			return fmt.Errorf("%w: duplicate service name %q", ErrInvalidDocument, name)
		}
		names[name] = struct{}{}

		routeNames := make(map[string]struct{})
		for j, route := range svc.EffectiveRoutes() {
			resolved := route.ResolvedName(svc.Name, j)
			if _, dup := routeNames[resolved]; dup {
				return fmt.Errorf("%w: service %q has duplicate route name %q", ErrInvalidDocument, name, resolved)
			}
			routeNames[resolved] = struct{}{}
		}

		pluginNames := make(map[string]struct{})
		for j, plugin := range svc.Plugins {
			pname := strings.TrimSpace(plugin.Name())
			if pname == "" {
				return fmt.Errorf("%w: service %q plugin[%d] missing name", ErrInvalidDocument, name, j)
			}
			if _, dup := pluginNames[pname]; dup {
				return fmt.Errorf("%w: service %q declares plugin %q more than once", ErrInvalidDocument, name, pname)
			}
			pluginNames[pname] = struct{}{}
		}
	}
	return nil
}

func ValidateConsumers(consumers []Consumer) error {
	names := make(map[string]struct{}, len(consumers))
	for i, c := range consumers {
		username := strings.TrimSpace(c.Username)
		if username == "" {
			return fmt.Errorf("%w: consumer[%d] missing username", ErrInvalidDocument, i)
		}
		if _, dup := names[username]; dup {
			return fmt.Errorf("%w: duplicate consumer %q", ErrInvalidDocument, username)
		}
		names[username] = struct{}{}

		switch c.EffectiveState() {
		case StatePresent, StateAbsent:
		default:
			return fmt.Errorf("%w: consumer %q has unknown state %q", ErrInvalidDocument, username, c.State)
		}

		for j, rl := range c.RateLimits {
			if rl == nil || strings.TrimSpace(rl.Service()) == "" {
				return fmt.Errorf("%w: consumer %q rate_limits[%d] missing service", ErrInvalidDocument, username, j)
			}
			switch rl.State() {
			case StatePresent, StateAbsent:
			default:
				return fmt.Errorf("%w: consumer %q rate_limits[%d] has unknown state %q", ErrInvalidDocument, username, j, rl.State())
			}
		}
	}
	return nil
}
