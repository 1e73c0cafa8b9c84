package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/solefab/rndtrack/internal/metrics"
	"github.com/solefab/rndtrack/internal/rnd/costing"
	"github.com/solefab/rndtrack/internal/rnd/entity"
	"github.com/solefab/rndtrack/internal/rnd/repository"
	"github.com/solefab/rndtrack/internal/rnd/sse"
	"github.com/solefab/rndtrack/internal/rnd/stage"
)

// CostingService 核价服务
type CostingService struct {
	store     ProjectStore
	approvals *repository.CostApprovalRepository
	hub       *sse.Hub
	opts      Options
	logger    *zap.Logger
}

// NewCostingService 创建核价服务
func NewCostingService(store ProjectStore, approvals *repository.CostApprovalRepository, hub *sse.Hub, opts Options, logger *zap.Logger) *CostingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = sse.NewHub(logger)
	}
	return &CostingService{
		store:     store,
		approvals: approvals,
		hub:       hub,
		opts:      opts.withDefaults(),
		logger:    logger.Named("costing"),
	}
}

// CostRequest 核价请求，margin_percent 为空时使用默认利润率
type CostRequest struct {
	Breakdown       entity.CostBreakdown `json:"breakdown"`
	MarginPercent   *decimal.Decimal     `json:"margin_percent"`
	AdditionalCosts decimal.Decimal      `json:"additional_costs"`
}

// CostReport 核价结果及与目标成本的偏差
type CostReport struct {
	Breakdown  entity.CostBreakdown `json:"breakdown"`
	Result     entity.CostResult    `json:"result"`
	TargetCost decimal.Decimal      `json:"target_cost"`
	Variance   decimal.Decimal      `json:"variance"`
	OverTarget bool                 `json:"over_target"`
}

// Template 返回空白核价模板
func (s *CostingService) Template() entity.CostBreakdown {
	return costing.NewBreakdown()
}

func (s *CostingService) evaluate(p *entity.Project, req *CostRequest) (*CostReport, error) {
	margin := s.opts.DefaultMarginPercent
	if req.MarginPercent != nil {
		margin = *req.MarginPercent
	}
	if err := costing.ValidateInputs(margin, req.AdditionalCosts); err != nil {
		return nil, err
	}
	breakdown, err := costing.Normalize(req.Breakdown)
	if err != nil {
		return nil, err
	}

	result := costing.Compute(breakdown, margin, req.AdditionalCosts)
	variance, over := costing.Variance(result.TentativeCost, p.TargetCost)
	return &CostReport{
		Breakdown:  breakdown,
		Result:     result,
		TargetCost: p.TargetCost,
		Variance:   variance,
		OverTarget: over,
	}, nil
}

// Compute 计算核价并记录暂定成本。已审批的项目只返回试算结果
func (s *CostingService) Compute(ctx context.Context, projectID string, req *CostRequest) (*CostReport, error) {
	project, err := s.store.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if stage.IsClosed(*project) {
		return nil, ErrProjectClosed
	}

	report, err := s.evaluate(project, req)
	if err != nil {
		return nil, err
	}

	if project.CostApprovedAt == nil {
		tentative := report.Result.TentativeCost
		project.TentativeCost = &tentative
		project.UpdatedAt = s.opts.Now()
		if err := s.store.Save(ctx, project); err != nil {
			return nil, fmt.Errorf("save tentative cost: %w", err)
		}
		s.hub.PublishProjectUpdate(sse.ProjectUpdate{
			ProjectID: project.ID,
			Code:      project.Code,
			Action:    sse.ActionCostComputed,
			Stage:     string(project.Stage),
		})
	}
	return report, nil
}

// Approve 审批核价，写入审计记录并推进到红封样。
// 关卡校验在项目行锁内进行，并发审批只有一个成功
func (s *CostingService) Approve(ctx context.Context, projectID, userID string, req *CostRequest) (*entity.Project, *CostReport, error) {
	now := s.opts.Now()
	var report *CostReport
	var rejected error

	approved, _, err := s.approvals.Approve(ctx, projectID, func(p *entity.Project) (*entity.CostApproval, error) {
		r, err := s.evaluate(p, req)
		if err != nil {
			return nil, err
		}
		report = r

		next, err := costing.Approve(*p, r.Result, now)
		if err != nil {
			rejected = err
			return nil, err
		}
		next.UpdatedAt = now

		record, err := s.approvalRecord(next, r, req, userID, now)
		if err != nil {
			return nil, err
		}
		*p = next
		return record, nil
	})
	if rejected != nil {
		metrics.IncCostApproval("rejected", report.OverTarget)
		s.logger.Warn("Cost approval rejected",
			zap.String("project_id", projectID),
			zap.String("tentative", report.Result.TentativeCost.StringFixed(2)),
			zap.Error(rejected))
		return nil, nil, rejected
	}
	if err != nil {
		return nil, nil, err
	}
	metrics.IncCostApproval("approved", report.OverTarget)

	s.logger.Info("Cost approved",
		zap.String("project_id", approved.ID),
		zap.String("final_cost", approved.FinalCost.StringFixed(2)),
		zap.Bool("over_target", report.OverTarget),
		zap.String("approved_by", userID))
	s.hub.PublishProjectUpdate(sse.ProjectUpdate{
		ProjectID: approved.ID,
		Code:      approved.Code,
		Action:    sse.ActionCostApproved,
		Stage:     string(approved.Stage),
	})
	return approved, report, nil
}

func (s *CostingService) approvalRecord(p entity.Project, report *CostReport, req *CostRequest, userID string, now time.Time) (*entity.CostApproval, error) {
	breakdownJSON, err := json.Marshal(report.Breakdown)
	if err != nil {
		return nil, fmt.Errorf("encode breakdown: %w", err)
	}
	resultJSON, err := json.Marshal(report.Result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}

	margin := s.opts.DefaultMarginPercent
	if req.MarginPercent != nil {
		margin = *req.MarginPercent
	}
	return &entity.CostApproval{
		ID:              uuid.New().String()[:32],
		ProjectID:       p.ID,
		GrandTotal:      report.Result.GrandTotal,
		ProfitAmount:    report.Result.ProfitAmount,
		ProfitPercent:   margin,
		AdditionalCosts: req.AdditionalCosts,
		TentativeCost:   report.Result.TentativeCost,
		TargetCost:      p.TargetCost,
		Variance:        report.Variance,
		BreakdownJSON:   datatypes.JSON(breakdownJSON),
		ResultJSON:      datatypes.JSON(resultJSON),
		Remark:          costing.Remark(report.Result),
		ApprovedBy:      userID,
		ApprovedAt:      now,
		CreatedAt:       now,
	}, nil
}

// ListApprovals 项目核价审批记录
func (s *CostingService) ListApprovals(ctx context.Context, projectID string) ([]entity.CostApproval, error) {
	if _, err := s.store.FindByID(ctx, projectID); err != nil {
		return nil, err
	}
	return s.approvals.ListByProject(ctx, projectID)
}
