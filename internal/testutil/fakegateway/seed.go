package fakegateway

import (
	"github.com/danmuck/gatewaysync/internal/admin"
)

// Seeding bypasses the HTTP surface so requests recorded afterwards reflect
// only the code under test.

func (g *Gateway) AddService(name, url string) admin.Service {
	g.mu.Lock()
	defer g.mu.Unlock()
	return decodeInto[admin.Service](g.services.add(record{"name": name, "url": url}))
}

func (g *Gateway) AddRoute(serviceID, name string, paths ...string) admin.Route {
	g.mu.Lock()
	defer g.mu.Unlock()
	list := make([]any, 0, len(paths))
	for _, p := range paths {
		list = append(list, p)
	}
	return decodeInto[admin.Route](g.routes.add(record{
		"name":    name,
		"paths":   list,
		"service": ref(serviceID),
	}))
}

// AddPlugin attaches a plugin to a service; consumerID may be empty.
func (g *Gateway) AddPlugin(serviceID, consumerID, name string, config map[string]any) admin.Plugin {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := record{"name": name, "config": clone(config)}
	if serviceID != "" {
		r["service"] = ref(serviceID)
	}
	if consumerID != "" {
		r["consumer"] = ref(consumerID)
	}
	return decodeInto[admin.Plugin](g.plugins.add(r))
}

func (g *Gateway) AddConsumer(username string) admin.Consumer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return decodeInto[admin.Consumer](g.consumers.add(record{"username": username}))
}

func (g *Gateway) AddJWT(consumerID, algorithm, key, secret string) admin.JWTCredential {
	g.mu.Lock()
	defer g.mu.Unlock()
	return decodeInto[admin.JWTCredential](g.jwts.add(record{
		"algorithm": algorithm,
		"key":       key,
		"secret":    secret,
		"consumer":  ref(consumerID),
	}))
}

func (g *Gateway) AddACL(consumerID, group string) admin.ACL {
	g.mu.Lock()
	defer g.mu.Unlock()
	return decodeInto[admin.ACL](g.acls.add(record{"group": group, "consumer": ref(consumerID)}))
}

func (g *Gateway) Services() []admin.Service {
	return snapshot[admin.Service](g, &g.services, nil)
}

func (g *Gateway) Routes(serviceID string) []admin.Route {
	return snapshot[admin.Route](g, &g.routes, ownedBy("service", serviceID))
}

// Plugins returns every plugin when serviceID is empty.
func (g *Gateway) Plugins(serviceID string) []admin.Plugin {
	if serviceID == "" {
		return snapshot[admin.Plugin](g, &g.plugins, nil)
	}
	return snapshot[admin.Plugin](g, &g.plugins, ownedBy("service", serviceID))
}

func (g *Gateway) Consumers() []admin.Consumer {
	return snapshot[admin.Consumer](g, &g.consumers, nil)
}

func (g *Gateway) JWTs(consumerID string) []admin.JWTCredential {
	return snapshot[admin.JWTCredential](g, &g.jwts, ownedBy("consumer", consumerID))
}

func (g *Gateway) ACLs(consumerID string) []admin.ACL {
	return snapshot[admin.ACL](g, &g.acls, ownedBy("consumer", consumerID))
}

func snapshot[T any](g *Gateway, col *collection, match func(record) bool) []T {
	g.mu.Lock()
	defer g.mu.Unlock()
	items := col.items
	if match != nil {
		items = col.filter(match)
	}
	out := make([]T, 0, len(items))
	for _, r := range items {
		out = append(out, decodeInto[T](r))
	}
	return out
}
