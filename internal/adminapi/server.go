// Package adminapi exposes the governance engine over HTTP for the
// designer admin tooling. The API authenticates nothing itself; the
// deployment fronts it with the studio identity proxy, so handlers
// trust the author and role fields on each request.
package adminapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bidvictrix/skillforge/internal/governance"
	"github.com/bidvictrix/skillforge/internal/harness"
)

// Server wires the engine and test harness into a gin router.
type Server struct {
	engine  *governance.Engine
	harness *harness.Harness
	logger  *zap.Logger
}

// NewServer creates a Server.
//
// Precondition: engine, h, and logger must be non-nil.
func NewServer(engine *governance.Engine, h *harness.Harness, logger *zap.Logger) *Server {
	return &Server{engine: engine, harness: h, logger: logger}
}

// Router builds the HTTP route tree.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/templates", s.listTemplates)
		api.GET("/changelog", s.listChangeLog)

		skills := api.Group("/skills")
		{
			skills.GET("", s.listSkills)
			skills.POST("", s.createSkill)
			skills.GET("/:id", s.getSkill)
			skills.PUT("/:id", s.updateSkill)
			skills.DELETE("/:id", s.deleteSkill)
			skills.POST("/:id/rollback", s.rollbackSkill)
			skills.POST("/:id/review", s.requestReview)
			skills.POST("/:id/tests", s.runTests)
			skills.GET("/:id/tests", s.testHistory)
		}

		workflows := api.Group("/workflows")
		{
			workflows.GET("", s.listWorkflows)
			workflows.GET("/:id", s.getWorkflow)
			workflows.POST("/:id/approve", s.approveWorkflow)
			workflows.POST("/:id/reject", s.rejectWorkflow)
			workflows.POST("/:id/cancel", s.cancelWorkflow)
		}
	}

	return router
}
