package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/solefab/rndtrack/internal/rnd/service"
)

type CatalogHandler struct {
	svc *service.CatalogService
}

func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// List GET /api/v1/catalog/:kind?all=true
func (h *CatalogHandler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), c.Param("kind"), c.Query("all") != "true")
	if err != nil {
		HandleError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// Create POST /api/v1/catalog/:kind
func (h *CatalogHandler) Create(c *gin.Context) {
	var req service.CreateCatalogItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	item, err := h.svc.Create(c.Request.Context(), c.Param("kind"), &req)
	if err != nil {
		HandleError(c, err)
		return
	}
	Created(c, item)
}
