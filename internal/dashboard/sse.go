package dashboard

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/beadboard/beadboard/internal/stream"
)

// sseSink adapts one SSE response to the stream.Sink interface. Writes are
// serialized: the subscription goroutine sends frames while heartbeats
// arrive from its own ticker, and http.ResponseWriter is not safe for
// concurrent use.
type sseSink struct {
	mu sync.Mutex
	w  gin.ResponseWriter
}

func (s *sseSink) SendInit(frame stream.InitFrame) error {
	return s.writeEvent("init", frame)
}

func (s *sseSink) SendUpdate(frame stream.UpdateFrame) error {
	return s.writeEvent("update", frame)
}

// Ping writes an SSE comment line. Clients ignore it; a dead connection
// surfaces the write error here.
func (s *sseSink) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}

func (s *sseSink) writeEvent(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}

// handleEvents is the SSE endpoint. Each connection gets its own
// subscription with independent poll and heartbeat timers; the handler
// blocks until the client disconnects or the subscription is closed.
func handleEvents(mgr *stream.Manager, retryMS int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		sink := &sseSink{w: c.Writer}

		// Reconnect advisory for EventSource clients.
		fmt.Fprintf(c.Writer, "retry: %d\n\n", retryMS)
		c.Writer.Flush()

		ctx := c.Request.Context()
		sub, err := mgr.Register(ctx, sink)
		if err != nil {
			return
		}

		select {
		case <-ctx.Done():
			mgr.Close(sub.ID())
		case <-sub.Done():
		}
	}
}
