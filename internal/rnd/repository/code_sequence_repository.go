package repository

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/solefab/rndtrack/internal/rnd/code"
	"github.com/solefab/rndtrack/internal/rnd/entity"
)

// CodeSequenceRepository 基于 code_sequences 表的编码序列。
// 进程内用互斥锁串行，跨进程依赖 SELECT ... FOR UPDATE 行锁。
type CodeSequenceRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	mu     sync.Mutex
}

func NewCodeSequenceRepository(db *gorm.DB, logger *zap.Logger) *CodeSequenceRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodeSequenceRepository{db: db, logger: logger}
}

// Next 返回前缀下一个序号
func (r *CodeSequenceRepository) Next(ctx context.Context, prefix string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var next int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := r.lockRow(tx, prefix)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := r.seed(tx, prefix); err != nil {
				return err
			}
			seq, err = r.lockRow(tx, prefix)
		}
		if err != nil {
			return err
		}

		next = seq.LastValue + 1
		return tx.Model(&entity.CodeSequence{}).
			Where("prefix = ?", prefix).
			Update("last_value", next).Error
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Peek 返回前缀当前已分配的最大序号，不占用
func (r *CodeSequenceRepository) Peek(ctx context.Context, prefix string) (int, error) {
	var seq entity.CodeSequence
	err := r.db.WithContext(ctx).Where("prefix = ?", prefix).First(&seq).Error
	if err != nil {
		return 0, notFound(err)
	}
	return seq.LastValue, nil
}

func (r *CodeSequenceRepository) lockRow(tx *gorm.DB, prefix string) (entity.CodeSequence, error) {
	var seq entity.CodeSequence
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("prefix = ?", prefix).
		First(&seq).Error
	return seq, err
}

// seed 以已有项目编码的最大序号初始化计数，其他进程抢先插入时忽略冲突
func (r *CodeSequenceRepository) seed(tx *gorm.DB, prefix string) error {
	var codes []string
	err := tx.Model(&entity.Project{}).
		Where("code LIKE ?", prefix+"%").
		Pluck("code", &codes).Error
	if err != nil {
		return err
	}

	row := entity.CodeSequence{Prefix: prefix, LastValue: seedFloor(codes, prefix, r.logger)}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func seedFloor(codes []string, prefix string, logger *zap.Logger) int {
	for _, c := range codes {
		if _, err := code.ParseSequence(c); err != nil {
			logger.Warn("Unparseable project code counted as 0", zap.String("code", c), zap.Error(err))
		}
	}
	return code.MaxSequence(codes, prefix)
}
