package web

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dokzlo13/lightdeck/internal/ledger"
	"github.com/dokzlo13/lightdeck/internal/panel"
)

// History is the read side of the event ledger.
type History interface {
	Recent(limit int) ([]*ledger.Entry, error)
}

// Macros runs named Lua macros.
type Macros interface {
	Invoke(ctx context.Context, name string) error
	Names() []string
}

// Options holds the router dependencies. Everything but Controller is
// optional.
type Options struct {
	Controller     *panel.Controller
	History        History
	Macros         Macros
	Hub            *Hub
	Refresher      *panel.Refresher
	AllowedOrigins []string
	Ready          func() bool
}

// Router is the HTTP surface of the control panel.
type Router struct {
	engine     *gin.Engine
	controller *panel.Controller
	history    History
	macros     Macros
	hub        *Hub
	refresher  *panel.Refresher
	ready      func() bool
}

// NewRouter creates a router with all routes registered.
func NewRouter(opts Options) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	SetupMiddleware(engine, opts.AllowedOrigins)

	r := &Router{
		engine:     engine,
		controller: opts.Controller,
		history:    opts.History,
		macros:     opts.Macros,
		hub:        opts.Hub,
		refresher:  opts.Refresher,
		ready:      opts.Ready,
	}
	r.setupRoutes()
	return r
}

// Handler returns the http.Handler for use with http.Server.
func (r *Router) Handler() http.Handler {
	return r.engine
}

func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.health)
	r.engine.GET("/ready", r.readiness)
	if r.hub != nil {
		r.engine.GET("/ws", gin.WrapH(r.hub))
	}

	v1 := r.engine.Group("/api/v1")

	fixtures := v1.Group("/fixtures")
	{
		fixtures.GET("", r.listFixtures)
		fixtures.GET("/:id", r.getFixture)
		fixtures.PUT("/:id/active", r.setFixtureActive)
		fixtures.POST("/:id/toggle", r.toggleFixture)
		fixtures.PUT("/:id/brightness", r.setFixtureBrightness)
	}

	groups := v1.Group("/groups")
	{
		groups.GET("", r.listGroups)
		groups.POST("", r.createGroup)
		groups.POST("/reorder", r.reorderGroups)
		groups.GET("/:id", r.getGroup)
		groups.PATCH("/:id", r.updateGroup)
		groups.DELETE("/:id", r.deleteGroup)
		groups.PUT("/:id/fixtures/:fixture", r.moveFixture)

		groups.POST("/:id/color", r.setColor)
		groups.POST("/:id/brightness", r.setBrightness)
		groups.POST("/:id/on", r.power(true))
		groups.POST("/:id/off", r.power(false))
		groups.POST("/:id/warm", r.white(true))
		groups.POST("/:id/cool", r.white(false))
		groups.POST("/:id/tempo", r.setTempo)
		groups.POST("/:id/relock", r.setTempoLock)
		groups.POST("/:id/chase", r.setChase)
		groups.POST("/:id/select", r.selectGroup(true))
		groups.POST("/:id/deselect", r.selectGroup(false))

		groups.POST("/:id/scenes", r.saveScene)
		groups.DELETE("/:id/scenes/:index", r.deleteScene)
		groups.POST("/:id/scenes/:index/recall", r.recallScene)
	}

	v1.GET("/chases", r.listChases)
	v1.GET("/settings", r.getSettings)
	v1.PUT("/settings", r.updateSettings)
	v1.POST("/discover", r.discover)
	v1.POST("/refresh", r.refresh)
	v1.GET("/history", r.listHistory)
	v1.GET("/macros", r.listMacros)
	v1.POST("/macros/:name", r.runMacro)
}

func (r *Router) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (r *Router) readiness(c *gin.Context) {
	if r.ready != nil && !r.ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: code, Message: message})
}

func groupNotFound(c *gin.Context) {
	abort(c, http.StatusNotFound, "not_found", "Group not found: "+c.Param("id"))
}

func fixtureNotFound(c *gin.Context, id string) {
	abort(c, http.StatusNotFound, "not_found", "Fixture not found: "+id)
}

func badRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, "invalid_request", message)
}

// bindOptional binds a JSON body when one is present.
func bindOptional(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}

func bindRequired(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}
