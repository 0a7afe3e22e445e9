package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fleetd/internal/ferrors"
	"fleetd/internal/render"
	"fleetd/internal/social"
)

// Status reports daemon health: instance count, task stats, watcher
// stats, and the watchdog's per-worker restart records.
func (h *Handlers) Status(c *gin.Context) {
	tasksByStatus := map[string]int{}
	for status, list := range h.c.Tasks.Board() {
		tasksByStatus[string(status)] = len(list)
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"service":      "fleetd",
		"uptime_since": h.startedAt.Format(time.RFC3339),
		"instances":    len(h.c.Registry.List()),
		"tasks":        tasksByStatus,
		"watcher":      h.c.Watcher.Stats(),
		"workers":      h.c.Watchdog.Status(),
	})
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "fleetd"})
}

// Changes exposes the watcher's recent-change ring buffer.
func (h *Handlers) Changes(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	c.JSON(http.StatusOK, gin.H{"changes": h.c.Watcher.Recent(limit)})
}

// readTextArtifact serves a memory-root markdown file as an opaque blob,
// per §6's treatment of identity/summary text as out-of-scope content
// the core never parses.
func (h *Handlers) readTextArtifact(c *gin.Context, relPath string) {
	path := filepath.Join(h.c.Config.PersistRoot, "memory", relPath)
	data, err := os.ReadFile(path)
	if err != nil {
		c.Error(ferrors.New(ferrors.NotFound, "%s not found", relPath))
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", data)
}

func (h *Handlers) Recent(c *gin.Context)  { h.readTextArtifact(c, "RECENT.md") }
func (h *Handlers) Pinned(c *gin.Context)  { h.readTextArtifact(c, "PINNED.md") }
func (h *Handlers) Summary(c *gin.Context) { h.readTextArtifact(c, "SUMMARY.md") }

func (h *Handlers) Identity(c *gin.Context) {
	h.readTextArtifact(c, c.Param("name")+".md")
}

func (h *Handlers) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.c.Config)
}

func (h *Handlers) Stats(c *gin.Context) {
	graph := h.c.KG.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"entities":  len(graph.Entities),
		"relations": len(graph.Relations),
		"instances": len(h.c.Registry.List()),
	})
}

// Inbox

type feedRequest struct {
	Name    string `json:"name" binding:"required"`
	Content string `json:"content" binding:"required"`
}

func (h *Handlers) Feed(c *gin.Context) {
	var req feedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	if err := h.c.Inbox.Write(req.Name, req.Content); err != nil {
		c.Error(err)
		return
	}
	if appendErr := h.c.Sessions.Append("feed", req.Name); appendErr != nil {
		h.c.Logger.Warn("failed to append session log entry")
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true})
}

func (h *Handlers) ListInbox(c *gin.Context) {
	msgs, err := h.c.Inbox.List()
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handlers) ClearInbox(c *gin.Context) {
	if err := h.c.Inbox.Clear(c.Param("name")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Generation queue (render)

type submitPlanRequest struct {
	Prompt    string `json:"prompt" binding:"required"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Steps     int    `json:"steps"`
	Seed      int64  `json:"seed"`
	Series    string `json:"series"`
	Requester string `json:"requester" binding:"required"`
}

func (h *Handlers) SubmitPlan(c *gin.Context) {
	var req submitPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	p, err := h.c.RenderStore.Submit(req.Prompt, req.Width, req.Height, req.Steps, req.Seed, req.Series, req.Requester)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handlers) ListQueue(c *gin.Context) {
	plans, err := h.c.RenderStore.List(render.Status(c.Query("status")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

type approvePlanRequest struct {
	ID string `json:"id" binding:"required"`
}

func (h *Handlers) ApprovePlan(c *gin.Context) {
	var req approvePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	if req.ID == "all" {
		pending, err := h.c.RenderStore.List(render.StatusPending)
		if err != nil {
			c.Error(err)
			return
		}
		for _, p := range pending {
			if approveErr := h.c.RenderStore.Approve(p.ID); approveErr != nil {
				c.Error(approveErr)
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"approved": len(pending)})
		return
	}
	if err := h.c.RenderStore.Approve(req.ID); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Scheduled posts

type schedulePostRequest struct {
	Channel string    `json:"channel" binding:"required"`
	Body    string    `json:"body" binding:"required"`
	DueAt   time.Time `json:"due_at" binding:"required"`
}

func (h *Handlers) SchedulePost(c *gin.Context) {
	var req schedulePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	p, err := h.c.PostStore.Schedule(req.Channel, req.Body, req.DueAt)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handlers) ListPosts(c *gin.Context) {
	posts, err := h.c.PostStore.List(social.Status(c.Query("status")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}
