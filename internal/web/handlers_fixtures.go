package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (r *Router) listFixtures(c *gin.Context) {
	c.JSON(http.StatusOK, r.controller.Fixtures())
}

func (r *Router) getFixture(c *gin.Context) {
	id := c.Param("id")
	f, ok := r.controller.Fixture(id)
	if !ok {
		fixtureNotFound(c, id)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (r *Router) setFixtureActive(c *gin.Context) {
	id := c.Param("id")
	var req activeRequest
	if !bindRequired(c, &req) {
		return
	}
	if !r.controller.SetFixtureActive(id, req.Active) {
		fixtureNotFound(c, id)
		return
	}
	f, _ := r.controller.Fixture(id)
	c.JSON(http.StatusOK, f)
}

func (r *Router) toggleFixture(c *gin.Context) {
	id := c.Param("id")
	if !r.controller.ToggleFixture(c.Request.Context(), id) {
		fixtureNotFound(c, id)
		return
	}
	f, _ := r.controller.Fixture(id)
	c.JSON(http.StatusOK, f)
}

func (r *Router) setFixtureBrightness(c *gin.Context) {
	id := c.Param("id")
	var req brightnessRequest
	if !bindRequired(c, &req) {
		return
	}
	bri, ok := brightness(req.Brightness)
	if !ok {
		badRequest(c, "brightness must be between 1 and 254")
		return
	}
	if !r.controller.SetFixtureBrightness(c.Request.Context(), id, bri) {
		fixtureNotFound(c, id)
		return
	}
	f, _ := r.controller.Fixture(id)
	c.JSON(http.StatusOK, f)
}

func brightness(v int) (uint8, bool) {
	if v < 1 || v > 254 {
		return 0, false
	}
	return uint8(v), true
}
