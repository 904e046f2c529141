package server

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steventanyang/deployable/internal/errors"
	"github.com/steventanyang/deployable/internal/stream"
)

func (s *Server) handleStreamStart(c *gin.Context) {
	if s.registry == nil {
		c.Error(errors.NewInternalError("streaming not configured", nil))
		return
	}

	analysisID := s.registry.Start()
	slog.Info("Analysis stream started", "analysis_id", analysisID)

	c.JSON(http.StatusOK, gin.H{"analysis_id": analysisID})
}

// handleStreamConnect attaches an SSE consumer to a started analysis
// stream and forwards events until a terminal event or disconnect.
func (s *Server) handleStreamConnect(c *gin.Context) {
	analysisID := c.Param("analysis_id")

	if s.registry == nil || !s.registry.Exists(analysisID) {
		c.Error(errors.NewNotFoundError("no stream registered for analysis_id"))
		return
	}

	setSSEHeaders(c)

	err := s.registry.Connect(c.Request.Context(), analysisID, func(event stream.Event) error {
		c.SSEvent(string(event.Type), event)
		c.Writer.Flush()
		return nil
	})
	if err != nil && !stderrors.Is(err, stream.ErrNotFound) {
		slog.Warn("Stream connection ended with error", "analysis_id", analysisID, "error", err)
	}
}

// handleStatsStream sends the current counters immediately, then relays
// every broadcast message until the client disconnects. Without redis
// only the initial snapshot is sent.
func (s *Server) handleStatsStream(c *gin.Context) {
	ctx := c.Request.Context()

	setSSEHeaders(c)

	c.SSEvent("stats", s.stats.Current(ctx))
	c.Writer.Flush()

	pubsub, err := s.stats.Subscribe(ctx)
	if err != nil {
		slog.Warn("Stats broadcast unavailable", "error", err)
		return
	}
	defer errors.SafeClose(pubsub, "stats pubsub")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var snapshot map[string]int64
			if err := json.Unmarshal([]byte(msg.Payload), &snapshot); err != nil {
				slog.Warn("Unparseable stats broadcast", "error", err)
				continue
			}
			c.SSEvent("stats", snapshot)
			c.Writer.Flush()
		}
	}
}

func setSSEHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
}
