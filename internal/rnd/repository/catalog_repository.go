package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/solefab/rndtrack/internal/rnd/entity"
)

// CatalogRepository 主数据仓库
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) Create(ctx context.Context, item *entity.CatalogItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// ExistsByCode 同类别下编码是否已存在
func (r *CatalogRepository) ExistsByCode(ctx context.Context, kind, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.CatalogItem{}).
		Where("kind = ? AND code = ?", kind, code).
		Count(&count).Error
	return count > 0, err
}

// ListByKind 按类别列出，activeOnly 时仅返回启用项
func (r *CatalogRepository) ListByKind(ctx context.Context, kind string, activeOnly bool) ([]entity.CatalogItem, error) {
	var items []entity.CatalogItem
	query := r.db.WithContext(ctx).Where("kind = ?", kind)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	err := query.Order("name ASC").Find(&items).Error
	return items, err
}
