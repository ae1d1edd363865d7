package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightdeck/internal/lua"
)

const defaultHistoryLimit = 50

func (r *Router) listChases(c *gin.Context) {
	c.JSON(http.StatusOK, r.controller.Chases())
}

func (r *Router) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, r.controller.Settings().View())
}

func (r *Router) updateSettings(c *gin.Context) {
	var req settingsRequest
	if !bindRequired(c, &req) {
		return
	}
	if req.FlashDelayMS != nil {
		if err := r.controller.SetFlashDelay(*req.FlashDelayMS); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	if req.GlobalTempo != nil {
		if err := r.controller.SetGlobalTempo(*req.GlobalTempo); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	c.JSON(http.StatusOK, r.controller.Settings().View())
}

func (r *Router) refresh(c *gin.Context) {
	if err := r.controller.Refresh(c.Request.Context()); err != nil {
		log.Error().Err(err).Msg("Fixture refresh failed")
		abort(c, http.StatusBadGateway, "bridge_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"fixtures": r.controller.Fixtures(),
		"groups":   r.controller.Groups(),
	})
}

// discover queues a background refresh when a refresher runs, otherwise it
// refreshes inline.
func (r *Router) discover(c *gin.Context) {
	if r.refresher == nil {
		r.refresh(c)
		return
	}
	r.refresher.Trigger()
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (r *Router) listHistory(c *gin.Context) {
	if r.history == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "invalid limit: "+raw)
			return
		}
		limit = n
	}
	entries, err := r.history.Recent(limit)
	if err != nil {
		abort(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (r *Router) listMacros(c *gin.Context) {
	if r.macros == nil {
		c.JSON(http.StatusOK, []string{})
		return
	}
	c.JSON(http.StatusOK, r.macros.Names())
}

func (r *Router) runMacro(c *gin.Context) {
	name := c.Param("name")
	if r.macros == nil {
		abort(c, http.StatusNotFound, "not_found", "Macro not found: "+name)
		return
	}
	err := r.macros.Invoke(c.Request.Context(), name)
	switch {
	case errors.Is(err, lua.ErrUnknownMacro):
		abort(c, http.StatusNotFound, "not_found", "Macro not found: "+name)
	case errors.Is(err, lua.ErrRuntimeClosed):
		abort(c, http.StatusServiceUnavailable, "unavailable", err.Error())
	case err != nil:
		abort(c, http.StatusInternalServerError, "macro_failed", err.Error())
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok", "macro": name})
	}
}
