package mcprpc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// sseKeepalive matches §4.6's "keepalive comment is written every 30s".
const sseKeepalive = 30 * time.Second

// sessionBus is the legacy SSE transport's per-session mailbox, standing
// in for original_source/mcp_transport.py's threading.Queue-backed
// _sessions map.
type sessionBus struct {
	mu       sync.Mutex
	sessions map[string]chan *Response
}

func newSessionBus() *sessionBus {
	return &sessionBus{sessions: map[string]chan *Response{}}
}

func (b *sessionBus) open() (string, chan *Response) {
	id := uuid.NewString()
	ch := make(chan *Response, 16)
	b.mu.Lock()
	b.sessions[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *sessionBus) close(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.sessions[id]; ok {
		delete(b.sessions, id)
		close(ch)
	}
}

func (b *sessionBus) send(id string, resp *Response) bool {
	b.mu.Lock()
	ch, ok := b.sessions[id]
	b.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- resp:
		return true
	default:
		return false
	}
}

// ServeSSE implements GET /mcp, the legacy transport's event stream.
func (d *Dispatcher) ServeSSE(c *gin.Context) {
	id, ch := d.bus.open()
	defer d.bus.close(id)

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	endpoint := fmt.Sprintf("/mcp/message?sessionId=%s", id)
	fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", endpoint)
	flush(w)

	ticker := time.NewTicker(sseKeepalive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case resp, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(resp)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flush(w)
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flush(w)
		}
	}
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// ServeSSEMessage implements POST /mcp/message?sessionId=<id>: process the
// JSON-RPC request and dispatch its response through the session's event
// stream, replying 202 Accepted to the POST itself.
func (d *Dispatcher) ServeSSEMessage(c *gin.Context) {
	sessionID := c.Query("sessionId")

	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed JSON-RPC payload"})
		return
	}

	resp := d.Process(c.Request.Context(), req)
	if resp != nil {
		if !d.bus.send(sessionID, resp) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found or expired"})
			return
		}
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}
