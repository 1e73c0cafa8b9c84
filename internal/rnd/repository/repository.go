package repository

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/solefab/rndtrack/internal/rnd/code"
	"github.com/solefab/rndtrack/internal/rnd/entity"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	Project      *ProjectRepository
	Catalog      *CatalogRepository
	CostApproval *CostApprovalRepository
	CodeSequence *CodeSequenceRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Project:      NewProjectRepository(db),
		Catalog:      NewCatalogRepository(db),
		CostApproval: NewCostApprovalRepository(db),
		CodeSequence: NewCodeSequenceRepository(db, logger),
	}
}

// SequenceStore 根据配置选择编码序列后端
func (r *Repositories) SequenceStore(backend string, rdb *redis.Client, logger *zap.Logger) code.SequenceStore {
	if backend == "redis" && rdb != nil {
		return NewRedisSequence(rdb, r.Project, logger)
	}
	return r.CodeSequence
}

// AutoMigrate 自动迁移所有表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.Project{},
		&entity.CatalogItem{},
		&entity.CostApproval{},
		&entity.CodeSequence{},
	)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
