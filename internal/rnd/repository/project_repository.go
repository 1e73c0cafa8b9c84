package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/solefab/rndtrack/internal/rnd/entity"
)

// ProjectRepository 项目仓库
type ProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository 创建项目仓库
func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) DB() *gorm.DB {
	return r.db
}

// FindByID 根据ID查找项目
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*entity.Project, error) {
	var project entity.Project
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&project).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &project, nil
}

// Create 创建项目
func (r *ProjectRepository) Create(ctx context.Context, project *entity.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

// Save 更新项目
func (r *ProjectRepository) Save(ctx context.Context, project *entity.Project) error {
	return r.db.WithContext(ctx).Save(project).Error
}

// UpdateWithLock 在事务中锁定项目行，由 fn 修改后保存
func (r *ProjectRepository) UpdateWithLock(ctx context.Context, id string, fn func(project *entity.Project) error) (*entity.Project, error) {
	var project entity.Project
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockProject(tx, id, &project); err != nil {
			return err
		}
		if err := fn(&project); err != nil {
			return err
		}
		return tx.Save(&project).Error
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func lockProject(tx *gorm.DB, id string, project *entity.Project) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND deleted_at IS NULL", id).
		First(project).Error
	return notFound(err)
}

// Delete 软删除项目，编码保留占用
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Model(&entity.Project{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List 获取项目列表
func (r *ProjectRepository) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.Project, int64, error) {
	var projects []entity.Project
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Project{}).Where("deleted_at IS NULL")

	if keyword, ok := filters["keyword"].(string); ok && keyword != "" {
		like := "%" + strings.ToLower(keyword) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", like, like)
	}
	if stage, ok := filters["stage"].(string); ok && stage != "" {
		query = query.Where("stage = ?", stage)
	}
	if priority, ok := filters["priority"].(string); ok && priority != "" {
		query = query.Where("priority = ?", priority)
	}
	if brandID, ok := filters["brand_id"].(string); ok && brandID != "" {
		query = query.Where("brand_id = ?", brandID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&projects).Error

	return projects, total, err
}

// ListCodes 返回全部已分配编码，含已删除项目
func (r *ProjectRepository) ListCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).
		Model(&entity.Project{}).
		Pluck("code", &codes).Error
	return codes, err
}

// ListCodesWithPrefix 返回指定前缀下的编码
func (r *ProjectRepository) ListCodesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).
		Model(&entity.Project{}).
		Where("code LIKE ?", prefix+"%").
		Pluck("code", &codes).Error
	return codes, err
}

// StageCount 按阶段统计
type StageCount struct {
	Stage entity.Stage `json:"stage"`
	Count int64        `json:"count"`
}

// CountByStage 获取各阶段项目数
func (r *ProjectRepository) CountByStage(ctx context.Context) ([]StageCount, error) {
	var rows []StageCount
	err := r.db.WithContext(ctx).
		Model(&entity.Project{}).
		Select("stage, COUNT(*) AS count").
		Where("deleted_at IS NULL").
		Group("stage").
		Scan(&rows).Error
	return rows, err
}

// CountOverTarget 暂定成本超出目标成本的项目数
func (r *ProjectRepository) CountOverTarget(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Project{}).
		Where("deleted_at IS NULL AND tentative_cost IS NOT NULL AND tentative_cost > target_cost").
		Count(&count).Error
	return count, err
}
