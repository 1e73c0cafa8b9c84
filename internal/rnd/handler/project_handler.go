package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/solefab/rndtrack/internal/rnd/service"
)

// ProjectHandler 项目处理器
type ProjectHandler struct {
	svc *service.ProjectService
}

// NewProjectHandler 创建项目处理器
func NewProjectHandler(svc *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

// List 获取项目列表
// GET /api/v1/projects
func (h *ProjectHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]interface{}{
		"keyword":  c.Query("keyword"),
		"stage":    c.Query("stage"),
		"priority": c.Query("priority"),
		"brand_id": c.Query("brand_id"),
	}

	projects, total, err := h.svc.ListProjects(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		HandleError(c, err)
		return
	}

	Success(c, ListResponse{
		Items:      h.svc.Views(projects),
		Pagination: NewPagination(page, pageSize, total),
	})
}

// Create 创建项目
// POST /api/v1/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req service.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	project, err := h.svc.CreateProject(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, h.svc.View(project))
}

// Get 获取项目详情
// GET /api/v1/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.svc.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, h.svc.View(project))
}

// Update 更新项目
// PUT /api/v1/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	var req service.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	project, err := h.svc.UpdateProject(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, h.svc.View(project))
}

// Delete 删除项目
// DELETE /api/v1/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteProject(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

// GetStage 获取阶段进度
// GET /api/v1/projects/:id/stage
func (h *ProjectHandler) GetStage(c *gin.Context) {
	info, err := h.svc.GetStageInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, info)
}

// AdvanceStage 推进阶段
// POST /api/v1/projects/:id/stage/advance
func (h *ProjectHandler) AdvanceStage(c *gin.Context) {
	project, err := h.svc.AdvanceStage(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, h.svc.View(project))
}

// PreviewCode 预览下一个项目编码
// GET /api/v1/codes/next
func (h *ProjectHandler) PreviewCode(c *gin.Context) {
	preview, err := h.svc.PreviewCode(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, preview)
}
