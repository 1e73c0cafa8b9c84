package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/solefab/rndtrack/internal/rnd/service"
)

// CostingHandler 核价处理器
type CostingHandler struct {
	svc *service.CostingService
}

func NewCostingHandler(svc *service.CostingService) *CostingHandler {
	return &CostingHandler{svc: svc}
}

// Template 空白核价模板
// GET /api/v1/costing/template
func (h *CostingHandler) Template(c *gin.Context) {
	Success(c, h.svc.Template())
}

// Compute 试算并记录暂定成本
// POST /api/v1/projects/:id/costing/compute
func (h *CostingHandler) Compute(c *gin.Context) {
	var req service.CostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	report, err := h.svc.Compute(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, report)
}

// Approve 审批核价
// POST /api/v1/projects/:id/costing/approve
func (h *CostingHandler) Approve(c *gin.Context) {
	var req service.CostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	project, report, err := h.svc.Approve(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{
		"project": project,
		"report":  report,
	})
}

// ListApprovals 核价审批记录
// GET /api/v1/projects/:id/costing/approvals
func (h *CostingHandler) ListApprovals(c *gin.Context) {
	list, err := h.svc.ListApprovals(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": list})
}
