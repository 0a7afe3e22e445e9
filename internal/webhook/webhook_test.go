package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fleetd/internal/tasks"
)

func newTestHandler(t *testing.T, secret string) (*Handler, *tasks.Store) {
	t.Helper()
	store := tasks.New(filepath.Join(t.TempDir(), "tasks.json"), zap.NewNop())
	return NewHandler(secret, store, zap.NewNop()), store
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func post(t *testing.T, h *Handler, event string, payload map[string]any, secret string, badSig bool) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/webhook/github", bytes.NewReader(body))
	r.Header.Set("X-GitHub-Event", event)
	if secret != "" {
		sig := sign(secret, body)
		if badSig {
			sig = "sha256=deadbeef"
		}
		r.Header.Set("X-Hub-Signature-256", sig)
	}

	w := httptest.NewRecorder()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/webhook/github", h.Serve)
	engine.ServeHTTP(w, r)
	return w
}

func TestPingReturnsPong(t *testing.T) {
	h, _ := newTestHandler(t, "s3cret")
	w := post(t, h, "ping", map[string]any{}, "s3cret", false)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "pong")
}

func TestBadSignatureRejected(t *testing.T) {
	h, _ := newTestHandler(t, "s3cret")
	w := post(t, h, "ping", map[string]any{}, "s3cret", true)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMissingSignatureToleratedDuringSetup(t *testing.T) {
	h, _ := newTestHandler(t, "s3cret")
	body, _ := json.Marshal(map[string]any{})
	r := httptest.NewRequest(http.MethodPost, "/webhook/github", bytes.NewReader(body))
	r.Header.Set("X-GitHub-Event", "ping")
	w := httptest.NewRecorder()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/webhook/github", h.Serve)
	engine.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestIssueOpenedCreatesTaskFromBugLabel(t *testing.T) {
	h, store := newTestHandler(t, "")
	payload := map[string]any{
		"action": "opened",
		"issue": map[string]any{
			"title":  "<script>alert(1)</script>crash on start",
			"body":   "steps to reproduce",
			"labels": []any{map[string]any{"name": "bug"}},
		},
	}
	w := post(t, h, "issues", payload, "", false)
	require.Equal(t, http.StatusCreated, w.Code)

	board := store.Board()
	require.Len(t, board[tasks.StatusPending], 1)
	created := board[tasks.StatusPending][0]
	require.Contains(t, created.Title, "[Bug]")
	require.NotContains(t, created.Title, "<script>")
}

func TestIssueOpenedDefaultsToFeatureTemplateWithoutLabels(t *testing.T) {
	h, store := newTestHandler(t, "")
	payload := map[string]any{
		"action": "opened",
		"issue":  map[string]any{"title": "something broke", "body": "", "labels": []any{}},
	}
	w := post(t, h, "issues", payload, "", false)
	require.Equal(t, http.StatusCreated, w.Code)
	board := store.Board()
	require.Len(t, board[tasks.StatusPending], 1)
	require.Contains(t, board[tasks.StatusPending][0].Title, "[Feature]")
}

func TestIssueClosedIgnored(t *testing.T) {
	h, store := newTestHandler(t, "")
	payload := map[string]any{"action": "closed", "issue": map[string]any{"title": "x"}}
	w := post(t, h, "issues", payload, "", false)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, store.Board()[tasks.StatusPending])
}

func TestPullRequestOpenedCreatesReviewTask(t *testing.T) {
	h, store := newTestHandler(t, "")
	payload := map[string]any{
		"action":       "opened",
		"pull_request": map[string]any{"title": "add feature X", "body": "details"},
	}
	w := post(t, h, "pull_request", payload, "", false)
	require.Equal(t, http.StatusCreated, w.Code)
	board := store.Board()
	require.Len(t, board[tasks.StatusPending], 1)
	require.Contains(t, board[tasks.StatusPending][0].Title, "[Review]")
}

func TestPushToMainCreatesDeployTask(t *testing.T) {
	h, store := newTestHandler(t, "")
	payload := map[string]any{
		"ref":        "refs/heads/main",
		"commits":    []any{map[string]any{"id": "abc123"}},
		"repository": map[string]any{"full_name": "acme/widgets"},
	}
	w := post(t, h, "push", payload, "", false)
	require.Equal(t, http.StatusCreated, w.Code)
	board := store.Board()
	require.Len(t, board[tasks.StatusPending], 1)
	require.Contains(t, board[tasks.StatusPending][0].Title, "[Deploy]")
}

func TestPushToFeatureBranchIgnored(t *testing.T) {
	h, store := newTestHandler(t, "")
	payload := map[string]any{
		"ref":     "refs/heads/feature/x",
		"commits": []any{map[string]any{"id": "abc123"}},
	}
	w := post(t, h, "push", payload, "", false)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, store.Board()[tasks.StatusPending])
}

func TestUnknownEventIgnoredWithOK(t *testing.T) {
	h, _ := newTestHandler(t, "")
	w := post(t, h, "star", map[string]any{}, "", false)
	require.Equal(t, http.StatusOK, w.Code)
}
