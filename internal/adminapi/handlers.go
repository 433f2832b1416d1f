package adminapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bidvictrix/skillforge/internal/governance"
	"github.com/bidvictrix/skillforge/internal/harness"
	"github.com/bidvictrix/skillforge/internal/skill"
)

type mutationRequest struct {
	Draft      skill.Draft `json:"draft"`
	TemplateID string      `json:"template_id,omitempty"`
	Author     string      `json:"author" binding:"required"`
	Reason     string      `json:"reason,omitempty"`
}

type deleteRequest struct {
	Author string `json:"author" binding:"required"`
	Reason string `json:"reason,omitempty"`
}

type rollbackRequest struct {
	EntryID string `json:"entry_id" binding:"required"`
	Author  string `json:"author" binding:"required"`
}

type approvalRequest struct {
	Role     governance.Role `json:"role" binding:"required"`
	Approver string          `json:"approver" binding:"required"`
}

type rejectionRequest struct {
	Role   governance.Role `json:"role" binding:"required"`
	Reason string          `json:"reason,omitempty"`
}

type runTestsRequest struct {
	Environment harness.Environment `json:"environment"`
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status())
}

func (s *Server) listTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": s.engine.Templates().All()})
}

func (s *Server) listSkills(c *gin.Context) {
	filter := skill.Filter{
		Category: skill.Category(c.Query("category")),
		Tree:     c.Query("tree"),
	}
	if v := c.Query("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "active must be a boolean"})
			return
		}
		filter.Active = &active
	}
	c.JSON(http.StatusOK, gin.H{"skills": s.engine.List(filter)})
}

func (s *Server) getSkill(c *gin.Context) {
	sk, ok := s.engine.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "skill not found"})
		return
	}
	c.JSON(http.StatusOK, sk)
}

func (s *Server) createSkill(c *gin.Context) {
	var req mutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.engine.Create(c.Request.Context(), req.Draft, req.TemplateID, req.Author, req.Reason)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) updateSkill(c *gin.Context) {
	var req mutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.engine.Update(c.Request.Context(), c.Param("id"), req.Draft, req.Author, req.Reason)
	if err != nil {
		s.writeError(c, err)
		return
	}
	// A gated change is accepted but not yet applied.
	status := http.StatusOK
	if !res.Applied {
		status = http.StatusAccepted
	}
	c.JSON(status, res)
}

func (s *Server) deleteSkill(c *gin.Context) {
	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.engine.Delete(c.Request.Context(), c.Param("id"), req.Author, req.Reason)
	if err != nil {
		s.writeError(c, err)
		return
	}
	status := http.StatusOK
	if !res.Applied {
		status = http.StatusAccepted
	}
	c.JSON(status, res)
}

func (s *Server) rollbackSkill(c *gin.Context) {
	var req rollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.engine.Rollback(c.Request.Context(), c.Param("id"), req.EntryID, req.Author)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) requestReview(c *gin.Context) {
	var req mutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.engine.RequestReview(c.Request.Context(), c.Param("id"), req.Draft, req.Author, req.Reason)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

func (s *Server) runTests(c *gin.Context) {
	sk, ok := s.engine.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "skill not found"})
		return
	}

	var req runTestsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, s.harness.Run(sk, req.Environment))
}

func (s *Server) testHistory(c *gin.Context) {
	if _, ok := s.engine.Get(c.Param("id")); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "skill not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": s.harness.History(c.Param("id"))})
}

func (s *Server) listChangeLog(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, gin.H{"entries": s.engine.ChangeLogs(c.Query("skill_id"), limit)})
}

func (s *Server) listWorkflows(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"workflows": s.engine.Workflows(governance.WorkflowStatus(c.Query("status")))})
}

func (s *Server) getWorkflow(c *gin.Context) {
	w, ok := s.engine.Workflow(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
		return
	}
	c.JSON(http.StatusOK, w)
}

func (s *Server) approveWorkflow(c *gin.Context) {
	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !governance.ValidRole(req.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown approver role"})
		return
	}

	w, err := s.engine.Approve(c.Request.Context(), c.Param("id"), req.Role, req.Approver)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (s *Server) rejectWorkflow(c *gin.Context) {
	var req rejectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !governance.ValidRole(req.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown approver role"})
		return
	}

	w, err := s.engine.Reject(c.Request.Context(), c.Param("id"), req.Role, req.Reason)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (s *Server) cancelWorkflow(c *gin.Context) {
	w, err := s.engine.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// writeError maps engine errors onto HTTP statuses. Every error body
// has an "error" string; structured payloads ride alongside it.
func (s *Server) writeError(c *gin.Context, err error) {
	var verr *skill.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Error(), "fields": verr.Errors})
		return
	}
	var depErr *governance.DependencyError
	if errors.As(err, &depErr) {
		c.JSON(http.StatusConflict, gin.H{"error": depErr.Error(), "dependency": depErr})
		return
	}

	switch {
	case errors.Is(err, governance.ErrSkillNotFound),
		errors.Is(err, governance.ErrEntryNotFound),
		errors.Is(err, governance.ErrWorkflowNotFound),
		errors.Is(err, governance.ErrTemplateNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, governance.ErrDuplicateID),
		errors.Is(err, governance.ErrNoop),
		errors.Is(err, governance.ErrWorkflowOpen),
		errors.Is(err, governance.ErrWorkflowClosed),
		errors.Is(err, governance.ErrEntryNotApplied),
		errors.Is(err, governance.ErrActiveImmutable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, governance.ErrRoleNotRequired),
		errors.Is(err, governance.ErrAlreadyApproved):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		s.logger.Error("unhandled admin api error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
