package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/solefab/rndtrack/internal/rnd/costing"
	"github.com/solefab/rndtrack/internal/rnd/repository"
	"github.com/solefab/rndtrack/internal/rnd/service"
	"github.com/solefab/rndtrack/internal/rnd/sse"
	"github.com/solefab/rndtrack/internal/rnd/stage"
)

// Handlers 处理器集合
type Handlers struct {
	Project   *ProjectHandler
	Costing   *CostingHandler
	Catalog   *CatalogHandler
	Dashboard *DashboardHandler
	SSE       *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, hub *sse.Hub) *Handlers {
	return &Handlers{
		Project:   NewProjectHandler(svc.Project),
		Costing:   NewCostingHandler(svc.Costing),
		Catalog:   NewCatalogHandler(svc.Catalog),
		Dashboard: NewDashboardHandler(svc.Dashboard),
		SSE:       NewSSEHandler(hub),
	}
}

// RegisterRoutes 注册 /api/v1 下的业务路由
func RegisterRoutes(api *gin.RouterGroup, h *Handlers) {
	projects := api.Group("/projects")
	{
		projects.GET("", h.Project.List)
		projects.POST("", h.Project.Create)
		projects.GET("/:id", h.Project.Get)
		projects.PUT("/:id", h.Project.Update)
		projects.DELETE("/:id", h.Project.Delete)

		projects.GET("/:id/stage", h.Project.GetStage)
		projects.POST("/:id/stage/advance", h.Project.AdvanceStage)

		projects.POST("/:id/costing/compute", h.Costing.Compute)
		projects.POST("/:id/costing/approve", h.Costing.Approve)
		projects.GET("/:id/costing/approvals", h.Costing.ListApprovals)
	}

	api.GET("/costing/template", h.Costing.Template)
	api.GET("/codes/next", h.Project.PreviewCode)

	api.GET("/catalog/:kind", h.Catalog.List)
	api.POST("/catalog/:kind", h.Catalog.Create)

	api.GET("/dashboard/stats", h.Dashboard.Stats)
	api.GET("/events", h.SSE.Stream)
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination 计算分页信息
func NewPagination(page, pageSize int, total int64) *Pagination {
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return &Pagination{Page: page, PageSize: pageSize, Total: int(total), TotalPages: pages}
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应，HTTP 状态码取业务码前三位
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 状态冲突响应
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// Unprocessable 请求合法但业务上无法处理
func Unprocessable(c *gin.Context, message string) {
	Error(c, 42200, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// 业务错误码
const (
	CodeStageTerminal   = 40901
	CodeGateUnsatisfied = 40902
	CodeNotAtGate       = 40903
	CodeProjectClosed   = 40904
	CodeDuplicate       = 40905
	CodeImmutableField  = 42201
	CodeInvalidApproval = 42202
)

// HandleError 将领域错误映射为响应
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, "project not found")
	case errors.Is(err, stage.ErrTerminal):
		Error(c, CodeStageTerminal, err.Error())
	case errors.Is(err, stage.ErrGateUnsatisfied):
		Error(c, CodeGateUnsatisfied, err.Error())
	case errors.Is(err, costing.ErrNotAtGate):
		Error(c, CodeNotAtGate, err.Error())
	case errors.Is(err, service.ErrProjectClosed):
		Error(c, CodeProjectClosed, err.Error())
	case errors.Is(err, service.ErrDuplicateCode):
		Error(c, CodeDuplicate, err.Error())
	case errors.Is(err, service.ErrImmutableField):
		Error(c, CodeImmutableField, err.Error())
	case errors.Is(err, costing.ErrInvalidApproval):
		Error(c, CodeInvalidApproval, err.Error())
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, stage.ErrUnknownStage),
		errors.Is(err, costing.ErrInvalidLineItem),
		errors.Is(err, costing.ErrUnknownCategory),
		errors.Is(err, costing.ErrLineNotFound),
		errors.Is(err, costing.ErrSeedLine),
		errors.Is(err, costing.ErrNegativeAmount),
		errors.Is(err, costing.ErrNegativeMargin),
		errors.Is(err, costing.ErrNegativeAddition):
		BadRequest(c, err.Error())
	default:
		InternalError(c, "internal error")
	}
}

// GetUserID 从上下文获取操作人
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}
