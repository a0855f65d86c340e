package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ethics-review/internal/application/workflow"
	domainwf "github.com/garyjia/ethics-review/internal/domain/workflow"
)

// AdvanceRequest is the body of POST /api/applications/:id/advance
type AdvanceRequest struct {
	Decision      string `json:"decision" binding:"required"`
	ExpectedStage string `json:"expected_stage"`
	Comment       string `json:"comment"`
}

// CreateTemplateRequest is the body of POST /api/templates
type CreateTemplateRequest struct {
	Name    string   `json:"name" binding:"required"`
	Stages  []string `json:"stages" binding:"required"`
	Promote bool     `json:"promote"`
}

// InitializeWorkflow handles POST /api/applications/:id/workflow
func (h *Handlers) InitializeWorkflow(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	state, err := h.services.Engine.Initialize(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, state)
}

// GetWorkflow handles GET /api/applications/:id/workflow
func (h *Handlers) GetWorkflow(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	state, err := h.services.Engine.GetState(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, state)
}

// GetHistory handles GET /api/applications/:id/workflow/history
func (h *Handlers) GetHistory(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	history, err := h.services.Engine.History(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, history)
}

// GetDecisions handles GET /api/applications/:id/workflow/decisions
func (h *Handlers) GetDecisions(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	set, err := h.services.Engine.Decisions(c.Request.Context(), id, c.GetString(actorKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, set)
}

// Advance handles POST /api/applications/:id/advance
func (h *Handlers) Advance(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	var req AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	decision, err := domainwf.ParseDecision(req.Decision)
	if err != nil {
		h.fail(c, err)
		return
	}

	var opts []workflow.AdvanceOption
	if req.ExpectedStage != "" {
		opts = append(opts, workflow.WithExpectedStage(req.ExpectedStage))
	}
	if req.Comment != "" {
		opts = append(opts, workflow.WithComment(req.Comment))
	}

	result, err := h.services.Engine.Advance(c.Request.Context(), id, c.GetString(actorKey), decision, opts...)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, result)
}

// Resubmit handles POST /api/applications/:id/resubmit
func (h *Handlers) Resubmit(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	state, err := h.services.Engine.Resubmit(c.Request.Context(), id, c.GetString(actorKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, state)
}

// ListTemplates handles GET /api/templates
func (h *Handlers) ListTemplates(c *gin.Context) {
	list, err := h.services.Templates.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, list)
}

// CurrentTemplate handles GET /api/templates/current
func (h *Handlers) CurrentTemplate(c *gin.Context) {
	tpl, err := h.services.Templates.Current(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, tpl)
}

// CreateTemplate handles POST /api/templates
func (h *Handlers) CreateTemplate(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	tpl, err := h.services.Templates.Create(c.Request.Context(), req.Name, req.Stages, req.Promote)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: tpl})
}

// PromoteTemplate handles POST /api/templates/:id/promote
func (h *Handlers) PromoteTemplate(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	tpl, err := h.services.Templates.Promote(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, tpl)
}

// ListNotifications handles GET /api/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	unread, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		badRequest(c, "invalid limit")
		return
	}

	list, err := h.services.Notifications.ListForUser(c.Request.Context(), c.GetString(actorKey), unread, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, list)
}

// MarkNotificationRead handles POST /api/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}

	if err := h.services.Notifications.MarkRead(c.Request.Context(), c.GetString(actorKey), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Sweep handles POST /api/admin/sweep
func (h *Handlers) Sweep(c *gin.Context) {
	threshold, valid := durationQuery(c, "threshold", h.sweepThreshold)
	if !valid {
		return
	}

	result, err := h.services.Escalation.Sweep(c.Request.Context(), threshold)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, result)
}

// StallReport handles GET /api/reports/stalled.xlsx
func (h *Handlers) StallReport(c *gin.Context) {
	threshold, valid := durationQuery(c, "threshold", h.sweepThreshold)
	if !valid {
		return
	}

	report, err := h.services.Reports.StallReport(c.Request.Context(), threshold)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="stalled.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", report.Content)
}
