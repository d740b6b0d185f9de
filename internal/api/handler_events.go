package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gym-access-backend/internal/mw"
)

const (
	eventBuffer    = 32
	eventKeepAlive = 25 * time.Second
)

// Events handles GET /api/events: a server-sent event stream of broadcast
// events plus the caller's directed events.
func (h *Handler) Events(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "realtime stream is disabled", Code: "unavailable"})
		return
	}

	id, events := h.hub.Subscribe(mw.MemberID(c), eventBuffer)
	defer h.hub.Unsubscribe(id)

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	keepAlive := time.NewTicker(eventKeepAlive)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
}
