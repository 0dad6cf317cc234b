package daemon

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jmaddaus/sprintboard/internal/config"
	"github.com/jmaddaus/sprintboard/internal/store"
	"github.com/jmaddaus/sprintboard/internal/sync"
)

const defaultRunLimit = 20

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func (d *Daemon) health(c *gin.Context) {
	resp := gin.H{"status": "ok"}

	if !d.startedAt.IsZero() {
		resp["uptime"] = time.Since(d.startedAt).Round(time.Second).String()
	}
	if d.mgr != nil {
		resp["refresh"] = d.mgr.Status()
	}

	c.JSON(http.StatusOK, resp)
}

// refresh runs the pipeline and answers with its report. With ?async=true
// it only queues a run on the background loop.
func (d *Daemon) refresh(c *gin.Context) {
	if d.mgr == nil {
		writeError(c, http.StatusServiceUnavailable, "refresh not available")
		return
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		d.mgr.Trigger()
		c.JSON(http.StatusAccepted, gin.H{"status": "refresh queued"})
		return
	}

	report, err := d.mgr.Refresh(context.WithoutCancel(c.Request.Context()))
	switch {
	case errors.Is(err, sync.ErrRunInProgress):
		writeError(c, http.StatusConflict, err.Error())
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "report": report})
	default:
		c.JSON(http.StatusOK, report)
	}
}

func (d *Daemon) getSettings(c *gin.Context) {
	settings, err := d.settings.Load()
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, settings.Redacted())
}

type setSettingRequest struct {
	Value *string `json:"value"`
}

func (d *Daemon) setSetting(c *gin.Context) {
	var req setSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Value == nil {
		writeError(c, http.StatusBadRequest, "value is required")
		return
	}

	settings, err := d.settings.Set(c.Param("field"), *req.Value)
	if err != nil {
		if errors.Is(err, config.ErrUnknownField) {
			writeError(c, http.StatusNotFound, err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, settings.Redacted())
}

func (d *Daemon) listRuns(c *gin.Context) {
	limit := defaultRunLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := d.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (d *Daemon) getRun(c *gin.Context) {
	run, err := d.store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, http.StatusNotFound, err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, run)
}
