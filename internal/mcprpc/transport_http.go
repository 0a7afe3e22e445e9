package mcprpc

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ServeStreamableHTTP implements the preferred transport from §4.6: a
// single POST carrying a request object or batch array, replied to with
// the response object/array directly in the body. All-notification
// batches get 202 Accepted with no body. Mirrors
// original_source/mcp_transport.py's _handle_streamable_http.
func (d *Dispatcher) ServeStreamableHTTP(c *gin.Context) {
	sessionID := c.GetHeader("Mcp-Session-Id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	c.Header("Mcp-Session-Id", sessionID)

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	var batch []Request
	var single Request
	isBatch := false
	if err := json.Unmarshal(raw, &batch); err == nil && isJSONArray(raw) {
		isBatch = true
	} else if err := json.Unmarshal(raw, &single); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed JSON-RPC payload"})
		return
	}

	ctx := c.Request.Context()

	if isBatch {
		var responses []*Response
		for _, req := range batch {
			if resp := d.Process(ctx, req); resp != nil {
				responses = append(responses, resp)
			}
		}
		if len(responses) == 0 {
			c.Status(http.StatusAccepted)
			return
		}
		c.JSON(http.StatusOK, responses)
		return
	}

	resp := d.Process(ctx, single)
	if resp == nil {
		c.Status(http.StatusAccepted)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CloseSession implements DELETE /mcp: the Streamable HTTP session close
// signal. There is no per-session state to release outside the SSE
// transport, so this always succeeds.
func (d *Dispatcher) CloseSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func isJSONArray(raw []byte) bool {
	for _, b := range raw {
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			continue
		}
		return b == '['
	}
	return false
}
