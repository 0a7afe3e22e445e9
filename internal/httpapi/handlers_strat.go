package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fleetd/internal/ferrors"
	"fleetd/internal/strat"
)

type createAgentRequest struct {
	Parent    string `json:"parent"`
	Platform  string `json:"platform" binding:"required"`
	Workspace string `json:"workspace" binding:"required"`
	Model     string `json:"model"`
}

func (h *Handlers) CreateAgent(c *gin.Context) {
	var req createAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	agent, err := h.c.Strat.CreateAgent(req.Parent, req.Platform, req.Workspace, req.Model)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, agent)
}

func (h *Handlers) ListAgents(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	includeEnded := c.Query("include_ended") == "true"
	agents, err := h.c.Strat.ListAgents(c.Query("workspace"), limit, includeEnded)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

func (h *Handlers) GetAgent(c *gin.Context) {
	agent, err := h.c.Strat.GetAgent(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

type endAgentRequest struct {
	Summary string `json:"summary"`
}

func (h *Handlers) EndAgent(c *gin.Context) {
	var req endAgentRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.c.Strat.EndAgent(c.Param("id"), req.Summary); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type addAgentNoteRequest struct {
	Category string   `json:"category" binding:"required"`
	Content  string   `json:"content" binding:"required"`
	Tags     []string `json:"tags"`
}

func (h *Handlers) AddAgentNote(c *gin.Context) {
	var req addAgentNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	note, err := h.c.Strat.AddNote(c.Param("id"), strat.NoteCategory(req.Category), req.Content, req.Tags)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (h *Handlers) ListAgentNotes(c *gin.Context) {
	notes, err := h.c.Strat.ListNotes(c.Param("id"), strat.NoteCategory(c.Query("category")), c.Query("tag"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes})
}

type createHandoffRequest struct {
	FromAgent string `json:"from_agent" binding:"required"`
	ToScope   string `json:"to_scope" binding:"required"`
	Content   string `json:"content" binding:"required"`
	Priority  string `json:"priority"`
}

func (h *Handlers) CreateHandoff(c *gin.Context) {
	var req createHandoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	handoff, err := h.c.Strat.CreateHandoff(req.FromAgent, req.ToScope, req.Content, req.Priority)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, handoff)
}

func (h *Handlers) ListHandoffs(c *gin.Context) {
	handoffs, err := h.c.Strat.ListUnclaimedForScope(c.Query("scope"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"handoffs": handoffs})
}

func (h *Handlers) HandoffHistory(c *gin.Context) {
	handoffs, err := h.c.Strat.HandoffHistory(c.Query("scope"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"handoffs": handoffs})
}

type claimHandoffRequest struct {
	Claimant string `json:"claimant" binding:"required"`
}

func (h *Handlers) ClaimHandoff(c *gin.Context) {
	var req claimHandoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "invalid handoff id"))
		return
	}
	handoff, err := h.c.Strat.ClaimHandoff(id, req.Claimant)
	if err != nil {
		c.Error(err)
		return
	}
	if handoff == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "conflict: handoff claimed by another caller first"})
		return
	}
	c.JSON(http.StatusOK, handoff)
}

type claimAllHandoffsRequest struct {
	Scope    string `json:"scope" binding:"required"`
	Claimant string `json:"claimant" binding:"required"`
}

func (h *Handlers) ClaimAllHandoffs(c *gin.Context) {
	var req claimAllHandoffsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	claimed, err := h.c.Strat.ClaimAll(req.Scope, req.Claimant)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"handoffs": claimed})
}

func (h *Handlers) AgentContext(c *gin.Context) {
	claim := c.Query("claim") == "true"
	ctx, err := h.c.Strat.Bootstrap(c.Query("workspace"), c.Query("agent_id"), claim)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ctx)
}
