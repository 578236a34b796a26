package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func reply(body string) gin.HandlerFunc {
	return func(c *gin.Context) { c.String(http.StatusOK, body) }
}

func get(engine *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	var seen []string

	statements := NewDomainGroup("statement", "/listings/:listing_id/statements")
	statements.GET("/:year/:month", func(c *gin.Context) {
		c.String(http.StatusOK, c.Param("listing_id")+" "+c.Param("year")+"-"+c.Param("month"))
	})
	reconciliations := NewDomainGroup("reconciliation", "/reconciliations").POST("", reply("reconciled"))

	NewRouter(engine).
		Use(func(c *gin.Context) { seen = append(seen, c.FullPath()); c.Next() }).
		Register(statements, reconciliations).
		Setup()

	w := get(engine, http.MethodGet, "/api/v1/listings/l-1/statements/2024/3")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "l-1 2024-3", w.Body.String())

	w = get(engine, http.MethodPost, "/api/v1/reconciliations")
	assert.Equal(t, "reconciled", w.Body.String())

	assert.Equal(t, []string{
		"/api/v1/listings/:listing_id/statements/:year/:month",
		"/api/v1/reconciliations",
	}, seen)

	assert.Equal(t, http.StatusNotFound, get(engine, http.MethodGet, "/listings/l-1/statements/2024/3").Code)
}

func TestDomainGroup(t *testing.T) {
	t.Run("group middleware only wraps its routes", func(t *testing.T) {
		engine := gin.New()
		locked := NewDomainGroup("locked", "/locked").
			Use(func(c *gin.Context) { c.AbortWithStatus(http.StatusForbidden) }).
			GET("/x", reply("x"))
		open := NewDomainGroup("open", "/open").GET("/x", reply("x"))

		api := engine.Group("/api/v1")
		locked.RegisterRoutes(api)
		open.RegisterRoutes(api)

		assert.Equal(t, http.StatusForbidden, get(engine, http.MethodGet, "/api/v1/locked/x").Code)
		assert.Equal(t, http.StatusOK, get(engine, http.MethodGet, "/api/v1/open/x").Code)
	})

	t.Run("subgroups nest prefixes", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("statement", "")
		g.POST("/statements/build", reply("built"))
		g.Group("listing", "/listings/:listing_id/statements").
			GET("", reply("list")).
			POST("/:year/:month/lock", reply("locked"))
		g.RegisterRoutes(engine.Group("/api/v1"))

		assert.Equal(t, "built", get(engine, http.MethodPost, "/api/v1/statements/build").Body.String())
		assert.Equal(t, "list", get(engine, http.MethodGet, "/api/v1/listings/l/statements").Body.String())
		assert.Equal(t, "locked", get(engine, http.MethodPost, "/api/v1/listings/l/statements/2024/1/lock").Body.String())
		assert.Equal(t, http.StatusNotFound, get(engine, http.MethodGet, "/api/v1/listings/l/statements/2024/1/lock").Code)
	})

	t.Run("routes are listed with full prefixes", func(t *testing.T) {
		g := NewDomainGroup("statement", "")
		g.POST("/statements/build", reply(""))
		g.Group("listing", "/listings/:listing_id/statements").
			GET("", reply("")).
			GET("/:year/:month", reply(""))

		routes := g.Routes()
		require.Len(t, routes, 3)
		assert.Equal(t, RouteInfo{Group: "statement", Method: http.MethodPost, Path: "/statements/build"}, routes[0])
		assert.Equal(t, RouteInfo{Group: "listing", Method: http.MethodGet, Path: "/listings/:listing_id/statements"}, routes[1])
		assert.Equal(t, RouteInfo{Group: "listing", Method: http.MethodGet, Path: "/listings/:listing_id/statements/:year/:month"}, routes[2])
		assert.Equal(t, "statement", g.Name())
		assert.Equal(t, "", g.Prefix())
	})
}
