package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Job progress is read-only telemetry; any origin may subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const jobPushInterval = 500 * time.Millisecond

// handleJobSocket streams job snapshots over a websocket until the job
// reaches a terminal state or the client disconnects. The first
// snapshot is pushed immediately on connect.
func (s *Server) handleJobSocket(c *gin.Context) {
	job := s.jobs.GetJob(c.Param("id"))
	if job == nil {
		notFound(c, "job not found")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "job_id", job.ID, "error", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(jobPushInterval)
	defer ticker.Stop()

	for {
		resp := toJobResponse(job)
		if err := conn.WriteJSON(resp); err != nil {
			slog.Debug("websocket write failed", "job_id", job.ID, "error", err)
			return
		}
		if resp.Status.Terminal() {
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}

		select {
		case <-ticker.C:
		case <-c.Request.Context().Done():
			return
		}
	}
}
