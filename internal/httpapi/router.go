// Package httpapi builds the single multiplexed gin router described in
// §4.5: one engine, permissive CORS, shared-secret auth on everything
// but the public/coordination set, one JSON handler per store
// operation. Grounded on internal/server/http_server.go's engine setup
// and internal/api/rest_handler.go's DTO-binding idiom.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fleetd/internal/coordinator"
	"fleetd/internal/httpapi/middleware"
	"fleetd/internal/mcprpc"
	"fleetd/internal/webhook"
)

// Handlers bundles the coordinator every handler method reads from.
type Handlers struct {
	c         *coordinator.Coordinator
	startedAt time.Time
}

// NewRouter builds the gin.Engine with every route registered.
func NewRouter(c *coordinator.Coordinator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-API-Key", "Authorization"}
	r.Use(cors.New(corsConfig))

	r.Use(middleware.RequireAPIKey(c.APIKey))
	r.Use(middleware.ErrorHandler())

	h := &Handlers{c: c, startedAt: time.Now().UTC()}

	r.GET("/health", h.Health)
	r.GET("/status", h.Status)
	r.GET("/recent", h.Recent)
	r.GET("/pinned", h.Pinned)
	r.GET("/summary", h.Summary)
	r.GET("/search", h.Search)
	r.GET("/changes", h.Changes)
	r.GET("/stats", h.Stats)
	r.GET("/identity/:name", h.Identity)
	r.GET("/config", h.GetConfig)

	r.POST("/feed", h.Feed)
	r.GET("/inbox", h.ListInbox)
	r.POST("/inbox/:name/clear", h.ClearInbox)

	r.GET("/knowledge", h.GetKnowledge)
	r.POST("/knowledge/entities", h.AddEntity)
	r.DELETE("/knowledge/entities/:name", h.DeleteEntity)
	r.POST("/knowledge/entities/rename", h.RenameEntity)
	r.POST("/knowledge/entities/merge", h.MergeEntities)
	r.POST("/knowledge/observations", h.AddObservation)
	r.DELETE("/knowledge/observations", h.DeleteObservation)
	r.POST("/knowledge/relations", h.AddRelation)
	r.DELETE("/knowledge/relations", h.DeleteRelation)

	tasksGroup := r.Group("/tasks")
	{
		tasksGroup.GET("", h.ListTasks)
		tasksGroup.POST("", h.CreateTask)
		tasksGroup.POST("/from-template", h.CreateTaskFromTemplate)
		tasksGroup.GET("/templates", h.ListTaskTemplates)
		tasksGroup.GET("/board", h.TaskBoard)
		tasksGroup.GET("/available", h.AvailableTasks)
		tasksGroup.GET("/:id", h.GetTask)
		tasksGroup.POST("/:id/claim", h.ClaimTask)
		tasksGroup.POST("/:id/start", h.StartTask)
		tasksGroup.POST("/:id/notes", h.AddTaskNote)
		tasksGroup.POST("/:id/complete", h.CompleteTask)
		tasksGroup.POST("/:id/fail", h.FailTask)
		tasksGroup.POST("/:id/release", h.ReleaseTask)
		tasksGroup.POST("/:id/force-fail", h.ForceFailTask)
		tasksGroup.DELETE("/:id", h.DeleteTask)
	}

	instanceGroup := r.Group("/instance")
	{
		instanceGroup.POST("", h.RegisterInstance)
		instanceGroup.GET("/:id", h.GetInstance)
		instanceGroup.POST("/:id/heartbeat", h.HeartbeatInstance)
		instanceGroup.POST("/:id/status", h.UpdateInstanceStatus)
		instanceGroup.POST("/:id/conflicts", h.CheckConflicts)
		instanceGroup.DELETE("/:id", h.DeregisterInstance)
	}
	r.GET("/instances", h.ListInstances)

	agentsGroup := r.Group("/agents")
	{
		agentsGroup.GET("", h.ListAgents)
		agentsGroup.POST("", h.CreateAgent)
		agentsGroup.GET("/context", h.AgentContext)
		agentsGroup.GET("/:id", h.GetAgent)
		agentsGroup.POST("/:id/end", h.EndAgent)
		agentsGroup.POST("/:id/notes", h.AddAgentNote)
		agentsGroup.GET("/:id/notes", h.ListAgentNotes)
	}

	handoffsGroup := r.Group("/handoffs")
	{
		handoffsGroup.GET("", h.ListHandoffs)
		handoffsGroup.POST("", h.CreateHandoff)
		handoffsGroup.GET("/history", h.HandoffHistory)
		handoffsGroup.POST("/:id/claim", h.ClaimHandoff)
		handoffsGroup.POST("/claim-all", h.ClaimAllHandoffs)
	}

	r.GET("/queue", h.ListQueue)
	r.POST("/queue", h.SubmitPlan)
	r.POST("/approve", h.ApprovePlan)

	r.GET("/posts", h.ListPosts)
	r.POST("/posts", h.SchedulePost)

	wh := webhook.NewHandler(c.WebhookSecret, c.Tasks, c.Logger)
	r.POST("/webhook/github", wh.Serve)

	rpc := mcprpc.NewDispatcher(c)
	r.POST("/mcp", rpc.ServeStreamableHTTP)
	r.GET("/mcp", rpc.ServeSSE)
	r.DELETE("/mcp", rpc.CloseSession)
	r.POST("/mcp/message", rpc.ServeSSEMessage)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found: no such route"})
	})

	return r
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully within a 5 second deadline, matching the teacher's
// http_server.go shutdown discipline.
func Serve(ctx context.Context, addr string, engine *gin.Engine, logger *zap.Logger) error {
	srv := &http.Server{Addr: addr, Handler: engine}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("http server stopped")
	return nil
}
