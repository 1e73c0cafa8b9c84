package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/solefab/rndtrack/internal/config"
	"github.com/solefab/rndtrack/internal/rnd/code"
	"github.com/solefab/rndtrack/internal/rnd/entity"
	"github.com/solefab/rndtrack/internal/rnd/repository"
	"github.com/solefab/rndtrack/internal/rnd/sse"
)

// 错误定义
var (
	ErrProjectClosed  = errors.New("project is closed")
	ErrImmutableField = errors.New("field cannot be edited")
	ErrInvalidInput   = errors.New("invalid input")
	ErrDuplicateCode  = errors.New("code already exists")
)

// ProjectStore 项目的加载、保存与编码查询
type ProjectStore interface {
	FindByID(ctx context.Context, id string) (*entity.Project, error)
	Create(ctx context.Context, project *entity.Project) error
	Save(ctx context.Context, project *entity.Project) error
	UpdateWithLock(ctx context.Context, id string, fn func(project *entity.Project) error) (*entity.Project, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.Project, int64, error)
	ListCodes(ctx context.Context) ([]string, error)
}

// Services 服务集合
type Services struct {
	Project   *ProjectService
	Costing   *CostingService
	Catalog   *CatalogService
	Dashboard *DashboardService
}

// Options 服务运行参数
type Options struct {
	SequenceBackend      string
	Location             *time.Location
	DefaultMarginPercent decimal.Decimal
	Now                  func() time.Time
}

// OptionsFromConfig 从配置构造服务参数
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	loc, err := cfg.Code.Location()
	if err != nil {
		return Options{}, err
	}
	return Options{
		SequenceBackend:      cfg.Code.SequenceBackend,
		Location:             loc,
		DefaultMarginPercent: decimal.NewFromFloat(cfg.Costing.DefaultMarginPercent),
	}, nil
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.SequenceBackend == "" {
		o.SequenceBackend = "db"
	}
	return o
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, seq code.SequenceStore, hub *sse.Hub, opts Options, logger *zap.Logger) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = sse.NewHub(logger)
	}
	opts = opts.withDefaults()

	return &Services{
		Project:   NewProjectService(repos.Project, seq, hub, opts, logger),
		Costing:   NewCostingService(repos.Project, repos.CostApproval, hub, opts, logger),
		Catalog:   NewCatalogService(repos.Catalog),
		Dashboard: NewDashboardService(repos.Project),
	}
}
