package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetd/internal/ferrors"
	"fleetd/internal/kg"
)

type addEntityRequest struct {
	Name         string   `json:"name" binding:"required"`
	EntityType   string   `json:"entity_type" binding:"required"`
	Observations []string `json:"observations"`
}

func (h *Handlers) AddEntity(c *gin.Context) {
	var req addEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	entity, err := h.c.KG.AddEntity(req.Name, req.EntityType, req.Observations)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, entity)
}

type addObservationRequest struct {
	EntityName  string `json:"entity_name" binding:"required"`
	Observation string `json:"observation" binding:"required"`
}

func (h *Handlers) AddObservation(c *gin.Context) {
	var req addObservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	if err := h.c.KG.AddObservation(req.EntityName, req.Observation); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type addRelationRequest struct {
	From string `json:"from" binding:"required"`
	Type string `json:"type" binding:"required"`
	To   string `json:"to" binding:"required"`
}

func (h *Handlers) AddRelation(c *gin.Context) {
	var req addRelationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	rel, err := h.c.KG.AddRelation(req.From, req.Type, req.To)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rel)
}

func (h *Handlers) DeleteEntity(c *gin.Context) {
	name := c.Param("name")
	if err := h.c.KG.DeleteEntity(name); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type deleteObservationRequest struct {
	EntityName string `json:"entity_name" binding:"required"`
	Substring  string `json:"substring" binding:"required"`
}

func (h *Handlers) DeleteObservation(c *gin.Context) {
	var req deleteObservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	n, err := h.c.KG.DeleteObservationBySubstring(req.EntityName, req.Substring)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": n})
}

type deleteRelationRequest struct {
	From string `json:"from" binding:"required"`
	Type string `json:"type" binding:"required"`
	To   string `json:"to" binding:"required"`
}

func (h *Handlers) DeleteRelation(c *gin.Context) {
	var req deleteRelationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	n, err := h.c.KG.DeleteRelation(req.From, req.Type, req.To)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": n})
}

type renameEntityRequest struct {
	OldName string `json:"old_name" binding:"required"`
	NewName string `json:"new_name" binding:"required"`
}

func (h *Handlers) RenameEntity(c *gin.Context) {
	var req renameEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	if err := h.c.KG.RenameEntity(req.OldName, req.NewName); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type mergeEntitiesRequest struct {
	Source string `json:"source" binding:"required"`
	Target string `json:"target" binding:"required"`
}

func (h *Handlers) MergeEntities(c *gin.Context) {
	var req mergeEntitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ferrors.New(ferrors.InvalidArgument, "%s", err.Error()))
		return
	}
	if err := h.c.KG.MergeEntities(req.Source, req.Target); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) GetKnowledge(c *gin.Context) {
	c.JSON(http.StatusOK, h.c.KG.Snapshot())
}

func (h *Handlers) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusOK, kg.QueryResult{})
		return
	}
	c.JSON(http.StatusOK, h.c.KG.QueryBySubstring(q))
}
