package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetd/internal/ferrors"
)

type registerRequest struct {
	Workspace string `json:"workspace" binding:"required"`
	Platform  string `json:"platform" binding:"required"`
}

func (h *Handlers) RegisterInstance(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	inst := h.c.Registry.Register(req.Workspace, req.Platform)
	c.JSON(http.StatusCreated, inst)
}

type heartbeatRequest struct {
	Status string `json:"status"`
}

func (h *Handlers) HeartbeatInstance(c *gin.Context) {
	var req heartbeatRequest
	_ = c.ShouldBindJSON(&req)
	inst, err := h.c.Registry.Heartbeat(c.Param("id"), req.Status)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, inst)
}

type statusUpdateRequest struct {
	Status      string   `json:"status"`
	Activity    string   `json:"activity"`
	ActiveFiles []string `json:"active_files"`
}

func (h *Handlers) UpdateInstanceStatus(c *gin.Context) {
	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	inst, err := h.c.Registry.UpdateStatus(c.Param("id"), req.Status, req.Activity, req.ActiveFiles)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, inst)
}

// DeregisterInstance implements the explicit-deregister half of Open
// Question 1's auto-release decision: the registry's in-memory entry
// goes away and any tasks the instance was holding are recycled to
// pending, same as the lazy-expiry path wired in coordinator.New.
func (h *Handlers) DeregisterInstance(c *gin.Context) {
	id := c.Param("id")
	h.c.Registry.Deregister(id)
	if _, relErr := h.c.Tasks.ReleaseAllForInstance(id, "instance deregistered"); relErr != nil {
		c.Error(relErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) GetInstance(c *gin.Context) {
	inst, err := h.c.Registry.Get(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, inst)
}

func (h *Handlers) ListInstances(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"instances": h.c.Registry.List()})
}

type conflictsRequest struct {
	Files []string `json:"files" binding:"required"`
}

func (h *Handlers) CheckConflicts(c *gin.Context) {
	var req conflictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"conflicts": h.c.Registry.CheckConflicts(c.Param("id"), req.Files)})
}
