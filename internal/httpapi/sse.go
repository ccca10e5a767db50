package httpapi

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

// handleJobEvents streams the stored job record until it reaches a
// terminal status or the client goes away. It never contacts the batch
// provider; the poller keeps the record current.
func (s *Server) handleJobEvents(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	job, err := s.svc.Job(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	first := true
	c.Stream(func(w io.Writer) bool {
		if !first {
			select {
			case <-ctx.Done():
				return false
			case <-ticker.C:
			}
			next, err := s.svc.Job(ctx, id)
			if err != nil {
				c.SSEvent("error", gin.H{"error": err.Error()})
				return false
			}
			job = next
		}
		first = false

		c.SSEvent("job", job)
		return !job.Status.Terminal()
	})
}
