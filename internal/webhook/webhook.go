// Package webhook handles GitHub webhook deliveries, turning issue,
// pull request, and push events into tasks. HMAC verification and
// sanitization follow the validation idiom of
// .archived/coordinator-old/mcp-server/storage/validation.go
// (bluemonday.StrictPolicy over UGCPolicy, since webhook-sourced text
// is untrusted in a way human prompt notes are not).
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"fleetd/internal/tasks"
)

// Handler mounts the GitHub webhook route and dispatches by event type.
type Handler struct {
	secret string
	tasks  *tasks.Store
	policy *bluemonday.Policy
	logger *zap.Logger
}

func NewHandler(secret string, store *tasks.Store, logger *zap.Logger) *Handler {
	return &Handler{secret: secret, tasks: store, policy: bluemonday.StrictPolicy(), logger: logger}
}

// Serve implements the /webhook/github route.
func (h *Handler) Serve(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_argument: unreadable body"})
		return
	}

	signature := c.GetHeader("X-Hub-Signature-256")
	if signature != "" && h.secret != "" && !h.verify(body, signature) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: signature mismatch"})
		return
	}

	event := c.GetHeader("X-GitHub-Event")
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_argument: malformed payload"})
		return
	}

	switch event {
	case "ping":
		c.JSON(http.StatusOK, gin.H{"ok": true, "message": "pong"})
	case "issues":
		h.handleIssue(c, payload)
	case "pull_request":
		h.handlePullRequest(c, payload)
	case "push":
		h.handlePush(c, payload)
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": event})
	}
}

func (h *Handler) verify(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (h *Handler) sanitize(s string) string { return h.policy.Sanitize(s) }

func asString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func (h *Handler) handleIssue(c *gin.Context, payload map[string]any) {
	if asString(payload, "action") != "opened" {
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": "issues:" + asString(payload, "action")})
		return
	}
	issue, _ := payload["issue"].(map[string]any)
	title := h.sanitize(asString(issue, "title"))
	body := h.sanitize(asString(issue, "body"))

	template := templateForLabels(issue)
	t, err := h.tasks.CreateFromTemplate(template, title, body, "", "github-webhook", []string{"from-issue"})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, t)
}

func templateForLabels(issue map[string]any) string {
	labels, _ := issue["labels"].([]any)
	for _, l := range labels {
		label, ok := l.(map[string]any)
		if !ok {
			continue
		}
		name := strings.ToLower(asString(label, "name"))
		switch name {
		case "bug":
			return "bug"
		case "refactor":
			return "refactor"
		case "feature":
			return "feature"
		}
	}
	return "feature"
}

func (h *Handler) handlePullRequest(c *gin.Context, payload map[string]any) {
	if asString(payload, "action") != "opened" {
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": "pull_request:" + asString(payload, "action")})
		return
	}
	pr, _ := payload["pull_request"].(map[string]any)
	title := h.sanitize(asString(pr, "title"))
	body := h.sanitize(asString(pr, "body"))

	t, err := h.tasks.CreateFromTemplate("review", title, body, "", "github-webhook", []string{"from-pr"})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) handlePush(c *gin.Context, payload map[string]any) {
	ref := asString(payload, "ref")
	if ref != "refs/heads/main" && ref != "refs/heads/master" {
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": "push:" + ref})
		return
	}
	commits, _ := payload["commits"].([]any)
	if len(commits) == 0 {
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": "push:no-commits"})
		return
	}
	repo, _ := payload["repository"].(map[string]any)
	title := "Deploy " + asString(repo, "full_name")

	t, err := h.tasks.CreateFromTemplate("deploy", title, "", "", "github-webhook", []string{"from-push"})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, t)
}
