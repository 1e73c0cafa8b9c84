package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/solefab/rndtrack/internal/rnd/entity"
)

// CostApprovalRepository 核价审批记录仓库
type CostApprovalRepository struct {
	db *gorm.DB
}

func NewCostApprovalRepository(db *gorm.DB) *CostApprovalRepository {
	return &CostApprovalRepository{db: db}
}

// ListByProject 项目的审批记录，最新在前
func (r *CostApprovalRepository) ListByProject(ctx context.Context, projectID string) ([]entity.CostApproval, error) {
	var list []entity.CostApproval
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("approved_at DESC").
		Find(&list).Error
	return list, err
}

// Approve 锁定项目行后由 build 校验并生成审批记录，项目与记录在同一事务中保存。
// build 可修改 project，返回错误时整个事务回滚
func (r *CostApprovalRepository) Approve(ctx context.Context, projectID string, build func(project *entity.Project) (*entity.CostApproval, error)) (*entity.Project, *entity.CostApproval, error) {
	var project entity.Project
	var record *entity.CostApproval
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockProject(tx, projectID, &project); err != nil {
			return err
		}
		rec, err := build(&project)
		if err != nil {
			return err
		}
		if err := tx.Save(&project).Error; err != nil {
			return err
		}
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		record = rec
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &project, record, nil
}
