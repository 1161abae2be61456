package handler

import (
	"net/http"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/events"
	"github.com/gin-gonic/gin"
)

type WorkerStatus interface {
	Health() events.WorkerHealth
}

// Health reports "healthy" unless one of the given background workers has
// stopped, in which case it answers 503 with the worker details.
func Health(workers ...WorkerStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "healthy"}

		if len(workers) > 0 {
			reports := make([]events.WorkerHealth, 0, len(workers))
			for _, w := range workers {
				h := w.Health()
				if !h.Running {
					status = http.StatusServiceUnavailable
					body["status"] = "degraded"
				}
				reports = append(reports, h)
			}
			body["workers"] = reports
		}

		c.JSON(status, body)
	}
}
