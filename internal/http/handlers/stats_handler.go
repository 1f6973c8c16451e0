package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/threadflow/go-post-scheduler/internal/repo"
)

// Stats godoc
// @ID          getStats
// @Summary     Scheduler statistics
// @Description Returns post counts by status, retry queue depths, and the total number of analytics snapshots.
// @Tags        Operations
// @Produce     json
//
// @Success     200  {object} repo.SchedulerStats
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /stats [get]
func (h *Handlers) Stats(c *gin.Context) {
	stats, err := repo.CollectStats(c.Request.Context(), h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, stats)
}
