package controller

import (
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"workbench/internal/service"
)

const keepAliveInterval = 15 * time.Second

type EventsController struct {
	hub *service.Hub
}

func NewEventsController(hub *service.Hub) *EventsController {
	return &EventsController{hub: hub}
}

// Stream handles GET /api/v1/events as a server-sent event stream of notifier
// events. Each SSE event is named after the notifier event.
func (ec *EventsController) Stream(c *gin.Context) {
	id, events, cancel := ec.hub.Subscribe()
	defer cancel()
	log.Printf("[HTTP] events subscriber %s connected", id)
	defer log.Printf("[HTTP] events subscriber %s disconnected", id)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	// Send headers now so clients see the stream open before the first event.
	c.Writer.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev)
			return true
		case <-ticker.C:
			_, err := io.WriteString(w, ": keep-alive\n\n")
			return err == nil
		case <-ctx.Done():
			return false
		}
	})
}
