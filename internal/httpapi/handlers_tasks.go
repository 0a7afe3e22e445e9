package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetd/internal/ferrors"
	"fleetd/internal/tasks"
)

type createTaskRequest struct {
	Title        string        `json:"title" binding:"required"`
	Description  string        `json:"description"`
	Project      string        `json:"project"`
	Scope        tasks.Scope   `json:"scope"`
	Priority     tasks.Priority `json:"priority"`
	Dependencies []string      `json:"dependencies"`
	CreatedBy    string        `json:"created_by" binding:"required"`
}

func (h *Handlers) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	priority := req.Priority
	if priority == "" {
		priority = tasks.PriorityMedium
	}
	t, err := h.c.Tasks.Create(&tasks.Task{
		Title: req.Title, Description: req.Description, Project: req.Project,
		Scope: req.Scope, Priority: priority, Dependencies: req.Dependencies, CreatedBy: req.CreatedBy,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

type createFromTemplateRequest struct {
	Template    string   `json:"template" binding:"required"`
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Project     string   `json:"project"`
	CreatedBy   string   `json:"created_by" binding:"required"`
	ExtraTags   []string `json:"extra_tags"`
}

func (h *Handlers) CreateTaskFromTemplate(c *gin.Context) {
	var req createFromTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	t, err := h.c.Tasks.CreateFromTemplate(req.Template, req.Title, req.Description, req.Project, req.CreatedBy, req.ExtraTags)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handlers) ListTaskTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": tasks.TemplateNames()})
}

func (h *Handlers) ListTasks(c *gin.Context) {
	status := tasks.Status(c.Query("status"))
	c.JSON(http.StatusOK, gin.H{"tasks": h.c.Tasks.List(status)})
}

func (h *Handlers) TaskBoard(c *gin.Context) {
	c.JSON(http.StatusOK, h.c.Tasks.Board())
}

func (h *Handlers) AvailableTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.c.Tasks.Available()})
}

func (h *Handlers) GetTask(c *gin.Context) {
	t, err := h.c.Tasks.Get(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type claimRequest struct {
	InstanceID string `json:"instance_id" binding:"required"`
}

func (h *Handlers) ClaimTask(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	t, err := h.c.Tasks.Claim(c.Param("id"), req.InstanceID)
	if err != nil {
		c.Error(err)
		return
	}
	if t == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "conflict: task claimed by another caller first"})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handlers) StartTask(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	t, err := h.c.Tasks.Start(c.Param("id"), req.InstanceID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type addNoteRequest struct {
	InstanceID string `json:"instance_id" binding:"required"`
	Text       string `json:"text" binding:"required"`
}

func (h *Handlers) AddTaskNote(c *gin.Context) {
	var req addNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	t, err := h.c.Tasks.AddNote(c.Param("id"), req.InstanceID, req.Text)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type completeTaskRequest struct {
	InstanceID string   `json:"instance_id" binding:"required"`
	Result     string   `json:"result"`
	Artifacts  []string `json:"artifacts"`
}

func (h *Handlers) CompleteTask(c *gin.Context) {
	var req completeTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	t, err := h.c.Tasks.Complete(c.Param("id"), req.InstanceID, req.Result, req.Artifacts)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type failOrReleaseRequest struct {
	InstanceID string `json:"instance_id" binding:"required"`
	Reason     string `json:"reason"`
}

func (h *Handlers) FailTask(c *gin.Context) {
	var req failOrReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	t, err := h.c.Tasks.Fail(c.Param("id"), req.InstanceID, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handlers) ReleaseTask(c *gin.Context) {
	var req failOrReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	t, err := h.c.Tasks.Release(c.Param("id"), req.InstanceID, req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type forceFailRequest struct {
	Reason string `json:"reason"`
}

func (h *Handlers) ForceFailTask(c *gin.Context) {
	var req forceFailRequest
	_ = c.ShouldBindJSON(&req)
	t, err := h.c.Tasks.ForceFail(c.Param("id"), req.Reason)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handlers) DeleteTask(c *gin.Context) {
	if err := h.c.Tasks.Delete(c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
