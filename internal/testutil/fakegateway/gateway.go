// Package fakegateway serves an in-memory gateway admin API for tests.
package fakegateway

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/danmuck/gatewaysync/internal/auth"
	"github.com/danmuck/gatewaysync/internal/observability"
	"github.com/danmuck/gatewaysync/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Request is one admin call observed by the fake.
type Request struct {
	Method string
	Path   string
	Body   map[string]any
}

type failure struct {
	method string
	path   string
	status int
	times  int
}

// Gateway is an in-memory admin API. Listing honours ?size and advertises a
// next page when more records exist.
type Gateway struct {
	mu sync.Mutex

	services  collection
	routes    collection
	plugins   collection
	consumers collection
	jwts      collection
	acls      collection

	requests []Request
	failures []*failure
	guard    gin.HandlerFunc

	// ReportTotal adds a "total" field to listings.
	ReportTotal bool

	server *httptest.Server
}

func New(t *testing.T) *Gateway {
	t.Helper()
	logger := testlog.Start(t)

	gin.SetMode(gin.TestMode)
	g := &Gateway{}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger.With().Str("component", "fakegateway").Logger()))
	r.Use(g.record, g.authorize, g.inject)
	g.routesFor(r)

	g.server = httptest.NewServer(r)
	t.Cleanup(g.server.Close)
	return g
}

// RequireToken makes every later request present token in the admin token
// header.
func (g *Gateway) RequireToken(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.guard = auth.RequireAdminToken(auth.StaticToken{Token: token})
}

func (g *Gateway) authorize(c *gin.Context) {
	g.mu.Lock()
	guard := g.guard
	g.mu.Unlock()
	if guard == nil {
		c.Next()
		return
	}
	guard(c)
}

func (g *Gateway) URL() string {
	return g.server.URL
}

// Fail makes the next times requests matching method and path answer status.
// times < 0 fails forever.
func (g *Gateway) Fail(method, path string, status, times int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = append(g.failures, &failure{method: method, path: path, status: status, times: times})
}

func (g *Gateway) Requests() []Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Request(nil), g.requests...)
}

// Mutations returns recorded non-GET requests in order.
func (g *Gateway) Mutations() []Request {
	out := make([]Request, 0)
	for _, r := range g.Requests() {
		if r.Method != http.MethodGet {
			out = append(out, r)
		}
	}
	return out
}

func (g *Gateway) ResetRequests() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = nil
}

func (g *Gateway) record(c *gin.Context) {
	var body map[string]any
	if c.Request.Body != nil {
		data, _ := io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewReader(data))
		if len(bytes.TrimSpace(data)) > 0 {
			_ = json.Unmarshal(data, &body)
		}
	}
	g.mu.Lock()
	g.requests = append(g.requests, Request{Method: c.Request.Method, Path: c.Request.URL.Path, Body: body})
	g.mu.Unlock()
	c.Next()
}

func (g *Gateway) inject(c *gin.Context) {
	g.mu.Lock()
	for _, f := range g.failures {
		if f.times == 0 || f.method != c.Request.Method || f.path != c.Request.URL.Path {
			continue
		}
		if f.times > 0 {
			f.times--
		}
		g.mu.Unlock()
		c.AbortWithStatusJSON(f.status, gin.H{"message": "injected failure"})
		return
	}
	g.mu.Unlock()
	c.Next()
}

func (g *Gateway) routesFor(r *gin.Engine) {
	r.GET("/services", g.list(&g.services, nil))
	r.POST("/services", g.createService)
	r.GET("/services/:svc", g.getService)
	r.PATCH("/services/:svc", g.patchService)
	r.DELETE("/services/:svc", g.deleteService)

	r.GET("/services/:svc/routes", g.withService(func(c *gin.Context, svc record) {
		g.list(&g.routes, ownedBy("service", str(svc, "id")))(c)
	}))
	r.POST("/services/:svc/routes", g.withService(g.createRoute))
	r.PATCH("/services/:svc/routes/:id", g.withService(g.patchRoute))
	r.DELETE("/services/:svc/routes/:id", g.withService(g.deleteRoute))

	r.GET("/services/:svc/plugins", g.withService(func(c *gin.Context, svc record) {
		g.list(&g.plugins, ownedBy("service", str(svc, "id")))(c)
	}))
	r.POST("/services/:svc/plugins", g.withService(g.createPlugin))
	r.PATCH("/services/:svc/plugins/:id", g.withService(func(c *gin.Context, svc record) {
		g.patchPlugin(c, ownedBy("service", str(svc, "id")))
	}))
	r.DELETE("/services/:svc/plugins/:id", g.withService(func(c *gin.Context, svc record) {
		g.deletePlugin(c, ownedBy("service", str(svc, "id")))
	}))

	r.GET("/plugins", g.list(&g.plugins, nil))
	r.PATCH("/plugins/:id", func(c *gin.Context) { g.patchPlugin(c, nil) })
	r.DELETE("/plugins/:id", func(c *gin.Context) { g.deletePlugin(c, nil) })

	r.GET("/consumers", g.list(&g.consumers, nil))
	r.POST("/consumers", g.createConsumer)
	r.GET("/consumers/:consumer", g.withConsumer(func(c *gin.Context, consumer record) {
		g.mu.Lock()
		defer g.mu.Unlock()
		c.JSON(http.StatusOK, clone(consumer))
	}))
	r.DELETE("/consumers/:consumer", g.withConsumer(g.deleteConsumer))

	r.GET("/consumers/:consumer/jwt", g.withConsumer(func(c *gin.Context, consumer record) {
		g.list(&g.jwts, ownedBy("consumer", str(consumer, "id")))(c)
	}))
	r.POST("/consumers/:consumer/jwt", g.withConsumer(g.createJWT))
	r.PATCH("/consumers/:consumer/jwt/:id", g.withConsumer(g.patchJWT))
	r.DELETE("/consumers/:consumer/jwt/:id", g.withConsumer(func(c *gin.Context, consumer record) {
		g.deleteOwned(c, &g.jwts, and(ownedBy("consumer", str(consumer, "id")), byID(c.Param("id"))))
	}))

	r.GET("/consumers/:consumer/acls", g.withConsumer(func(c *gin.Context, consumer record) {
		g.list(&g.acls, ownedBy("consumer", str(consumer, "id")))(c)
	}))
	r.POST("/consumers/:consumer/acls", g.withConsumer(g.createACL))
	r.DELETE("/consumers/:consumer/acls/:id", g.withConsumer(func(c *gin.Context, consumer record) {
		g.deleteOwned(c, &g.acls, and(ownedBy("consumer", str(consumer, "id")), byIDOr("group", c.Param("id"))))
	}))
}

func (g *Gateway) list(col *collection, match func(record) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		size := 100
		if raw := c.Query("size"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				size = n
			}
		}
		g.mu.Lock()
		var items []record
		if match == nil {
			items = append([]record(nil), col.items...)
		} else {
			items = col.filter(match)
		}
		total := len(items)
		data := make([]record, 0, size)
		for i, r := range items {
			if i >= size {
				break
			}
			data = append(data, clone(r))
		}
		reportTotal := g.ReportTotal
		g.mu.Unlock()

		body := gin.H{"data": data, "next": nil}
		if total > size {
			body["next"] = c.Request.URL.Path + "?offset=" + uuid.NewString()
		}
		if reportTotal {
			body["total"] = total
		}
		c.JSON(http.StatusOK, body)
	}
}

func (g *Gateway) withService(h func(*gin.Context, record)) gin.HandlerFunc {
	return func(c *gin.Context) {
		g.mu.Lock()
		svc, ok := g.services.find(byIDOr("name", c.Param("svc")))
		g.mu.Unlock()
		if !ok {
			notFound(c)
			return
		}
		h(c, svc)
	}
}

func (g *Gateway) withConsumer(h func(*gin.Context, record)) gin.HandlerFunc {
	return func(c *gin.Context) {
		g.mu.Lock()
		consumer, ok := g.consumers.find(byIDOr("username", c.Param("consumer")))
		g.mu.Unlock()
		if !ok {
			notFound(c)
			return
		}
		h(c, consumer)
	}
}

func (g *Gateway) createService(c *gin.Context) {
	body, ok := bindBody(c)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, dup := g.services.find(byField("name", str(body, "name"))); dup {
		conflict(c, "service name already exists")
		return
	}
	c.JSON(http.StatusCreated, clone(g.services.add(body)))
}

func (g *Gateway) getService(c *gin.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	svc, ok := g.services.find(byIDOr("name", c.Param("svc")))
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, clone(svc))
}

func (g *Gateway) patchService(c *gin.Context) {
	body, ok := bindBody(c)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	svc, found := g.services.find(byIDOr("name", c.Param("svc")))
	if !found {
		notFound(c)
		return
	}
	merge(svc, body)
	c.JSON(http.StatusOK, clone(svc))
}

func (g *Gateway) deleteService(c *gin.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	svc, ok := g.services.find(byIDOr("name", c.Param("svc")))
	if !ok {
		notFound(c)
		return
	}
	id := str(svc, "id")
	g.routes.remove(ownedBy("service", id))
	g.plugins.remove(ownedBy("service", id))
	g.services.remove(byID(id))
	c.Status(http.StatusNoContent)
}

func (g *Gateway) createRoute(c *gin.Context, svc record) {
	body, ok := bindBody(c)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if name := str(body, "name"); name != "" {
		if _, dup := g.routes.find(byField("name", name)); dup {
			conflict(c, "route name already exists")
			return
		}
	}
	body["service"] = ref(str(svc, "id"))
	c.JSON(http.StatusCreated, clone(g.routes.add(body)))
}

func (g *Gateway) patchRoute(c *gin.Context, svc record) {
	body, ok := bindBody(c)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	route, found := g.routes.find(and(ownedBy("service", str(svc, "id")), byIDOr("name", c.Param("id"))))
	if !found {
		notFound(c)
		return
	}
	merge(route, body)
	c.JSON(http.StatusOK, clone(route))
}

func (g *Gateway) deleteRoute(c *gin.Context, svc record) {
	g.deleteOwned(c, &g.routes, and(ownedBy("service", str(svc, "id")), byIDOr("name", c.Param("id"))))
}

func (g *Gateway) createPlugin(c *gin.Context, svc record) {
	body, ok := bindBody(c)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	body["service"] = ref(str(svc, "id"))
	if id := str(body, "consumer_id"); id != "" {
		body["consumer"] = ref(id)
		delete(body, "consumer_id")
	}
	consumerID := refID(body, "consumer")
	dup := and(byField("name", str(body, "name")), ownedBy("service", str(svc, "id")), func(r record) bool {
		return refID(r, "consumer") == consumerID
	})
	if _, exists := g.plugins.find(dup); exists {
		conflict(c, "plugin already configured for this scope")
		return
	}
	c.JSON(http.StatusCreated, clone(g.plugins.add(body)))
}

func (g *Gateway) patchPlugin(c *gin.Context, scope func(record) bool) {
	body, ok := bindBody(c)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	match := byID(c.Param("id"))
	if scope != nil {
		match = and(scope, match)
	}
	plugin, found := g.plugins.find(match)
	if !found {
		notFound(c)
		return
	}
	merge(plugin, body)
	c.JSON(http.StatusOK, clone(plugin))
}

func (g *Gateway) deletePlugin(c *gin.Context, scope func(record) bool) {
	match := byID(c.Param("id"))
	if scope != nil {
		match = and(scope, match)
	}
	g.deleteOwned(c, &g.plugins, match)
}

func (g *Gateway) createConsumer(c *gin.Context) {
	body, ok := bindBody(c)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, dup := g.consumers.find(byField("username", str(body, "username"))); dup {
		conflict(c, "username already exists")
		return
	}
	c.JSON(http.StatusCreated, clone(g.consumers.add(body)))
}

func (g *Gateway) deleteConsumer(c *gin.Context, consumer record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := str(consumer, "id")
	g.jwts.remove(ownedBy("consumer", id))
	g.acls.remove(ownedBy("consumer", id))
	g.plugins.remove(ownedBy("consumer", id))
	g.consumers.remove(byID(id))
	c.Status(http.StatusNoContent)
}

func (g *Gateway) createJWT(c *gin.Context, consumer record) {
	body, ok := bindBody(c)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := body["iss"]; ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "schema violation (iss: unknown field)"})
		return
	}
	if str(body, "algorithm") == "" {
		body["algorithm"] = "HS256"
	}
	if str(body, "key") == "" {
		body["key"] = uuid.NewString()
	}
	if str(body, "secret") == "" {
		body["secret"] = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if _, dup := g.jwts.find(byField("key", str(body, "key"))); dup {
		conflict(c, "jwt key already exists")
		return
	}
	body["consumer"] = ref(str(consumer, "id"))
	c.JSON(http.StatusCreated, clone(g.jwts.add(body)))
}

func (g *Gateway) patchJWT(c *gin.Context, consumer record) {
	body, ok := bindBody(c)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := body["iss"]; ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "schema violation (iss: unknown field)"})
		return
	}
	cred, found := g.jwts.find(and(ownedBy("consumer", str(consumer, "id")), byID(c.Param("id"))))
	if !found {
		notFound(c)
		return
	}
	merge(cred, body)
	c.JSON(http.StatusOK, clone(cred))
}

func (g *Gateway) createACL(c *gin.Context, consumer record) {
	body, ok := bindBody(c)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	consumerID := str(consumer, "id")
	if _, dup := g.acls.find(and(ownedBy("consumer", consumerID), byField("group", str(body, "group")))); dup {
		conflict(c, "group already assigned")
		return
	}
	body["consumer"] = ref(consumerID)
	c.JSON(http.StatusCreated, clone(g.acls.add(body)))
}

func (g *Gateway) deleteOwned(c *gin.Context, col *collection, match func(record) bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if col.remove(match) == 0 {
		notFound(c)
		return
	}
	c.Status(http.StatusNoContent)
}

func bindBody(c *gin.Context) (record, bool) {
	var body record
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid json body"})
		return nil, false
	}
	if body == nil {
		body = record{}
	}
	return body, true
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
}

func conflict(c *gin.Context, msg string) {
	c.JSON(http.StatusConflict, gin.H{"message": "UNIQUE violation: " + msg})
}
