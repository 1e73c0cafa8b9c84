package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solefab/rndtrack/internal/rnd/entity"
	"github.com/solefab/rndtrack/internal/rnd/repository"
)

// CatalogService 主数据服务
type CatalogService struct {
	repo *repository.CatalogRepository
}

func NewCatalogService(repo *repository.CatalogRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

// CreateCatalogItemRequest 新增主数据请求
type CreateCatalogItemRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
}

func (s *CatalogService) List(ctx context.Context, kind string, activeOnly bool) ([]entity.CatalogItem, error) {
	if !entity.ValidCatalogKind(kind) {
		return nil, fmt.Errorf("%w: catalog kind %q", ErrInvalidInput, kind)
	}
	return s.repo.ListByKind(ctx, kind, activeOnly)
}

func (s *CatalogService) Create(ctx context.Context, kind string, req *CreateCatalogItemRequest) (*entity.CatalogItem, error) {
	if !entity.ValidCatalogKind(kind) {
		return nil, fmt.Errorf("%w: catalog kind %q", ErrInvalidInput, kind)
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	name := strings.TrimSpace(req.Name)
	if code == "" || name == "" {
		return nil, fmt.Errorf("%w: code and name are required", ErrInvalidInput)
	}

	exists, err := s.repo.ExistsByCode(ctx, kind, code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s/%s", ErrDuplicateCode, kind, code)
	}

	now := time.Now()
	item := &entity.CatalogItem{
		ID:        uuid.New().String()[:32],
		Kind:      kind,
		Code:      code,
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}
