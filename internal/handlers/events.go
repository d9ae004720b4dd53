package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/post-voting/backend/internal/notify"
)

const keepAliveInterval = 25 * time.Second

type EventsHandler struct {
	hub    *notify.Hub
	logger *slog.Logger
}

func NewEventsHandler(hub *notify.Hub, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{hub: hub, logger: logger}
}

// Stream pushes post vote changes to the client as server-sent events.
// ?post_id= narrows the stream to one post.
func (h *EventsHandler) Stream(c *gin.Context) {
	var postID int
	if raw := c.Query("post_id"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
			return
		}
		postID = n
	}

	events, cancel := h.hub.Subscribe()
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			c.Writer.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			if postID != 0 && ev.VotableID != postID {
				continue
			}
			c.SSEvent(notify.PostVotedType, ev)
			c.Writer.Flush()
		}
	}
}
