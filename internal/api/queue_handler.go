package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/lzjever/lgu-integrity/internal/api/middleware"
)

// QueueStatus reports the pending anchor jobs of this process.
func (a *API) QueueStatus(w http.ResponseWriter, r *http.Request) {
	st := a.queue.Status()
	WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"queueLength": st.QueueLength,
		"processing":  st.Processing,
		"items":       st.Items,
	})
}

// ClearQueue discards pending anchor jobs. The job being processed, if any,
// still completes.
func (a *API) ClearQueue(w http.ResponseWriter, r *http.Request) {
	n := a.queue.Clear()
	a.log.Warn("anchor queue cleared by operator",
		zap.String("operator", middleware.OperatorID(r.Context())),
		zap.Int("cleared", n),
	)
	WriteSuccess(w, http.StatusOK, map[string]interface{}{"cleared": n})
}
