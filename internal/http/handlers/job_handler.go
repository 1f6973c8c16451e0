// Background job trigger endpoints.
//
// Operators can run one cycle of any scheduled job on demand instead of
// waiting for its timer: useful after fixing a credential or when testing
// a deployment.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/threadflow/go-post-scheduler/internal/scheduler"
)

// JobRunResponse reports the outcome of an on-demand job cycle.
type JobRunResponse struct {
	Job       string `json:"job" example:"due_check"`
	Selected  int    `json:"selected"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// RunJob godoc
// @ID          runJob
// @Summary     Run a background job now
// @Description Executes one cycle of the named job (due_check, retry_sweep, or analytics_refresh) immediately.
// @Tags        Jobs
// @Produce     json
//
// @Param       name  path  string  true  "Job name"  Enums(due_check, retry_sweep, analytics_refresh)
//
// @Success     200  {object}  handlers.JobRunResponse
// @Failure     404  {object}  handlers.ErrorResponse "Unknown job"
// @Failure     500  {object}  handlers.ErrorResponse "Job cycle failed"
// @Router      /jobs/{name}/run [post]
func (h *Handlers) RunJob(c *gin.Context) {
	name := c.Param("name")
	res, err := h.jobs.RunNow(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, scheduler.ErrUnknownJob) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "unknown job: "+name)
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeJobFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, JobRunResponse{
		Job:       name,
		Selected:  res.Selected,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Skipped:   res.Skipped,
	})
}
