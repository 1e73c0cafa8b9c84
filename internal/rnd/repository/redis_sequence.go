package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSequence 基于 Redis INCR 的编码序列，适合多实例部署
type RedisSequence struct {
	rdb      *redis.Client
	projects *ProjectRepository
	logger   *zap.Logger
}

func NewRedisSequence(rdb *redis.Client, projects *ProjectRepository, logger *zap.Logger) *RedisSequence {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSequence{rdb: rdb, projects: projects, logger: logger}
}

// FormatSequenceKey 前缀对应的计数 key
func FormatSequenceKey(prefix string) string {
	return fmt.Sprintf("rnd:code_seq:%s", prefix)
}

// Next 首次使用时以数据库中的最大序号初始化，之后原子自增
func (s *RedisSequence) Next(ctx context.Context, prefix string) (int, error) {
	key := FormatSequenceKey(prefix)

	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		codes, err := s.projects.ListCodesWithPrefix(ctx, prefix)
		if err != nil {
			return 0, err
		}
		// 并发初始化时只有一个 SETNX 生效
		if _, err := s.rdb.SetNX(ctx, key, seedFloor(codes, prefix, s.logger), 0).Result(); err != nil {
			return 0, err
		}
	}

	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Reset 删除前缀计数，下次分配时重新初始化
func (s *RedisSequence) Reset(ctx context.Context, prefix string) error {
	return s.rdb.Del(ctx, FormatSequenceKey(prefix)).Err()
}
