package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dokzlo13/lightdeck/internal/group"
	"github.com/dokzlo13/lightdeck/internal/panel"
)

func (r *Router) listGroups(c *gin.Context) {
	c.JSON(http.StatusOK, r.controller.Groups())
}

func (r *Router) getGroup(c *gin.Context) {
	g, ok := r.controller.Group(c.Param("id"))
	if !ok {
		groupNotFound(c)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (r *Router) createGroup(c *gin.Context) {
	var req createGroupRequest
	if !bindOptional(c, &req) {
		return
	}
	c.JSON(http.StatusCreated, r.controller.CreateGroup(req.Name))
}

func (r *Router) updateGroup(c *gin.Context) {
	var req updateGroupRequest
	if !bindRequired(c, &req) {
		return
	}
	if req.FlashMode != nil && !req.FlashMode.Valid() {
		badRequest(c, "unknown flash mode: "+string(*req.FlashMode))
		return
	}
	g, ok := r.controller.UpdateGroup(c.Param("id"), req)
	if !ok {
		groupNotFound(c)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (r *Router) deleteGroup(c *gin.Context) {
	err := r.controller.DeleteGroup(c.Param("id"))
	switch {
	case errors.Is(err, group.ErrNotFound):
		groupNotFound(c)
	case errors.Is(err, group.ErrUndeletable):
		abort(c, http.StatusConflict, "undeletable", "The unassigned group cannot be deleted")
	case err != nil:
		abort(c, http.StatusInternalServerError, "internal_error", err.Error())
	default:
		c.Status(http.StatusNoContent)
	}
}

func (r *Router) reorderGroups(c *gin.Context) {
	var req reorderRequest
	if !bindRequired(c, &req) {
		return
	}
	if !r.controller.Reorder(req.Group, req.Target) {
		abort(c, http.StatusNotFound, "not_found", "Group not found")
		return
	}
	c.JSON(http.StatusOK, r.controller.Groups())
}

func (r *Router) moveFixture(c *gin.Context) {
	id := c.Param("id")
	if _, ok := r.controller.Group(id); !ok {
		groupNotFound(c)
		return
	}
	fixtureID := c.Param("fixture")
	if !r.controller.MoveFixture(fixtureID, id) {
		fixtureNotFound(c, fixtureID)
		return
	}
	r.respondGroup(c)
}

// respondGroup answers with the current state of the :id group.
func (r *Router) respondGroup(c *gin.Context) {
	g, ok := r.controller.Group(c.Param("id"))
	if !ok {
		groupNotFound(c)
		return
	}
	c.JSON(http.StatusOK, g)
}

// intent wraps a controller call that reports whether the group exists.
func (r *Router) intent(c *gin.Context, ok bool) {
	if !ok {
		groupNotFound(c)
		return
	}
	r.respondGroup(c)
}

func (r *Router) setColor(c *gin.Context) {
	var req colorRequest
	if !bindRequired(c, &req) {
		return
	}
	color, err := panel.ParseColor(req.Color)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	r.intent(c, r.controller.SetColor(c.Request.Context(), c.Param("id"), color))
}

func (r *Router) setBrightness(c *gin.Context) {
	var req brightnessRequest
	if !bindRequired(c, &req) {
		return
	}
	bri, ok := brightness(req.Brightness)
	if !ok {
		badRequest(c, "brightness must be between 1 and 254")
		return
	}
	r.intent(c, r.controller.SetBrightness(c.Request.Context(), c.Param("id"), bri))
}

func (r *Router) power(on bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req powerRequest
		if !bindOptional(c, &req) {
			return
		}
		fade, ok := panel.ParseFade(req.Fade)
		if !ok {
			badRequest(c, "unknown fade: "+req.Fade)
			return
		}
		r.intent(c, r.controller.Power(c.Request.Context(), c.Param("id"), on, fade))
	}
}

func (r *Router) white(warm bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if warm {
			r.intent(c, r.controller.Warm(c.Request.Context(), c.Param("id")))
			return
		}
		r.intent(c, r.controller.Cool(c.Request.Context(), c.Param("id")))
	}
}

func (r *Router) setTempo(c *gin.Context) {
	var req tempoRequest
	if !bindRequired(c, &req) {
		return
	}
	if *req.Tempo < 0 {
		badRequest(c, "tempo must not be negative")
		return
	}
	r.intent(c, r.controller.SetTempo(c.Param("id"), *req.Tempo))
}

func (r *Router) setTempoLock(c *gin.Context) {
	var req lockRequest
	if !bindOptional(c, &req) {
		return
	}
	locked := true
	if req.Locked != nil {
		locked = *req.Locked
	}
	r.intent(c, r.controller.SetTempoLock(c.Param("id"), locked))
}

func (r *Router) setChase(c *gin.Context) {
	var req chaseRequest
	if !bindRequired(c, &req) {
		return
	}
	mode := group.ChaseMode(req.Mode)
	if !mode.Valid() {
		badRequest(c, "unknown chase mode: "+req.Mode)
		return
	}
	r.intent(c, r.controller.SetChaseMode(c.Param("id"), mode))
}

func (r *Router) selectGroup(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		r.intent(c, r.controller.Select(c.Param("id"), active))
	}
}

func (r *Router) saveScene(c *gin.Context) {
	var req saveSceneRequest
	if !bindOptional(c, &req) {
		return
	}
	index, ok := r.controller.SaveScene(c.Param("id"), req.Name, req.TransitionTime, req.Flash)
	if !ok {
		groupNotFound(c)
		return
	}
	g, _ := r.controller.Group(c.Param("id"))
	c.JSON(http.StatusCreated, gin.H{"index": index, "scene": g.Scenes[index]})
}

func (r *Router) deleteScene(c *gin.Context) {
	index, ok := sceneIndex(c)
	if !ok {
		return
	}
	err := r.controller.DeleteScene(c.Param("id"), index)
	switch {
	case errors.Is(err, group.ErrNotFound):
		groupNotFound(c)
	case errors.Is(err, group.ErrSceneMissing):
		abort(c, http.StatusNotFound, "not_found", "Scene not found: "+c.Param("index"))
	case err != nil:
		abort(c, http.StatusInternalServerError, "internal_error", err.Error())
	default:
		c.Status(http.StatusNoContent)
	}
}

func (r *Router) recallScene(c *gin.Context) {
	index, ok := sceneIndex(c)
	if !ok {
		return
	}
	g, ok := r.controller.Group(c.Param("id"))
	if !ok {
		groupNotFound(c)
		return
	}
	if _, ok := g.Scene(index); !ok {
		abort(c, http.StatusNotFound, "not_found", "Scene not found: "+c.Param("index"))
		return
	}
	r.controller.RecallScene(c.Request.Context(), g.ID, index)
	c.JSON(http.StatusAccepted, gin.H{"status": "recalled"})
}

func sceneIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		badRequest(c, "invalid scene index: "+c.Param("index"))
		return 0, false
	}
	return index, true
}
