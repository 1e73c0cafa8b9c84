package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/solefab/rndtrack/internal/metrics"
	"github.com/solefab/rndtrack/internal/rnd/code"
	"github.com/solefab/rndtrack/internal/rnd/entity"
	"github.com/solefab/rndtrack/internal/rnd/stage"
	"github.com/solefab/rndtrack/internal/rnd/sse"
)

// ProjectService 项目服务
type ProjectService struct {
	store  ProjectStore
	seq    code.SequenceStore
	hub    *sse.Hub
	opts   Options
	logger *zap.Logger
}

// NewProjectService 创建项目服务
func NewProjectService(store ProjectStore, seq code.SequenceStore, hub *sse.Hub, opts Options, logger *zap.Logger) *ProjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = sse.NewHub(logger)
	}
	return &ProjectService{
		store:  store,
		seq:    seq,
		hub:    hub,
		opts:   opts.withDefaults(),
		logger: logger.Named("project"),
	}
}

// CreateProjectRequest 创建项目请求
type CreateProjectRequest struct {
	Name         string          `json:"name" binding:"required"`
	Description  string          `json:"description"`
	CompanyID    string          `json:"company_id"`
	BrandID      string          `json:"brand_id"`
	CategoryID   string          `json:"category_id"`
	TypeID       string          `json:"type_id"`
	CountryID    string          `json:"country_id"`
	Priority     entity.Priority `json:"priority"`
	TargetCost   decimal.Decimal `json:"target_cost"`
	Remarks      string          `json:"remarks"`
	StartDate    *time.Time      `json:"start_date"`
	POTargetDate *time.Time      `json:"po_target_date"`
}

// UpdateProjectRequest 更新项目请求。编码、阶段、目标成本与核价结果不可直接修改
type UpdateProjectRequest struct {
	Name           *string                `json:"name"`
	Description    *string                `json:"description"`
	CompanyID      *string                `json:"company_id"`
	BrandID        *string                `json:"brand_id"`
	CategoryID     *string                `json:"category_id"`
	TypeID         *string                `json:"type_id"`
	CountryID      *string                `json:"country_id"`
	Priority       *entity.Priority       `json:"priority"`
	ClientFeedback *entity.ClientFeedback `json:"client_feedback"`
	Remarks        *string                `json:"remarks"`
	StartDate      *time.Time             `json:"start_date"`
	POTargetDate   *time.Time             `json:"po_target_date"`

	Code           *string          `json:"code"`
	Stage          *string          `json:"stage"`
	TargetCost     *decimal.Decimal `json:"target_cost"`
	FinalCost      *decimal.Decimal `json:"final_cost"`
	CostApprovedAt *time.Time       `json:"cost_approved_at"`
}

// immutable 返回请求中携带的不可修改字段
func (r *UpdateProjectRequest) immutable() string {
	switch {
	case r.Code != nil:
		return "code"
	case r.Stage != nil:
		return "stage"
	case r.TargetCost != nil:
		return "target_cost"
	case r.FinalCost != nil:
		return "final_cost"
	case r.CostApprovedAt != nil:
		return "cost_approved_at"
	}
	return ""
}

// touchesClosedFields 关闭后的项目只允许更新客户反馈和备注
func (r *UpdateProjectRequest) touchesClosedFields() bool {
	return r.Name != nil || r.Description != nil ||
		r.CompanyID != nil || r.BrandID != nil || r.CategoryID != nil || r.TypeID != nil || r.CountryID != nil ||
		r.Priority != nil || r.StartDate != nil || r.POTargetDate != nil
}

// ProjectView 项目展示信息
type ProjectView struct {
	*entity.Project
	Progress     int  `json:"progress"`
	DurationDays int  `json:"duration_days"`
	Closed       bool `json:"closed"`
}

// NewProjectView 构造展示信息
func NewProjectView(p *entity.Project, now time.Time) ProjectView {
	return ProjectView{
		Project:      p,
		Progress:     stage.Progress(stage.Current(*p)),
		DurationDays: p.DurationDays(now),
		Closed:       stage.IsClosed(*p),
	}
}

// View 以服务时钟构造展示信息
func (s *ProjectService) View(p *entity.Project) ProjectView {
	return NewProjectView(p, s.opts.Now())
}

// Views 批量构造展示信息
func (s *ProjectService) Views(list []entity.Project) []ProjectView {
	now := s.opts.Now()
	out := make([]ProjectView, len(list))
	for i := range list {
		out[i] = NewProjectView(&list[i], now)
	}
	return out
}

// StageInfo 阶段信息
type StageInfo struct {
	Current       entity.Stage  `json:"current"`
	Next          *entity.Stage `json:"next"`
	Progress      int           `json:"progress"`
	Closed        bool          `json:"closed"`
	Gated         bool          `json:"gated"`
	GateSatisfied bool          `json:"gate_satisfied"`
	Steps         []stage.Step  `json:"steps"`
}

// GetProject 获取项目
func (s *ProjectService) GetProject(ctx context.Context, id string) (*entity.Project, error) {
	return s.store.FindByID(ctx, id)
}

// ListProjects 获取项目列表
func (s *ProjectService) ListProjects(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.Project, int64, error) {
	if st, ok := filters["stage"].(string); ok && st != "" {
		if _, err := stage.Parse(st); err != nil {
			return nil, 0, err
		}
	}
	return s.store.List(ctx, page, pageSize, filters)
}

// CreateProject 创建项目，分配编码并置于初始阶段
func (s *ProjectService) CreateProject(ctx context.Context, userID string, req *CreateProjectRequest) (*entity.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	priority := req.Priority
	if priority == "" {
		priority = entity.PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: priority %q", ErrInvalidInput, priority)
	}
	if req.TargetCost.IsNegative() {
		return nil, fmt.Errorf("%w: target_cost must not be negative", ErrInvalidInput)
	}

	now := s.opts.Now()
	prefix := code.Prefix(now.In(s.opts.Location))
	seq, err := s.seq.Next(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("allocate code: %w", err)
	}
	metrics.IncCodeAllocated(s.opts.SequenceBackend)

	project := &entity.Project{
		ID:             uuid.New().String()[:32],
		Code:           code.Format(prefix, seq),
		Name:           name,
		Description:    req.Description,
		CompanyID:      req.CompanyID,
		BrandID:        req.BrandID,
		CategoryID:     req.CategoryID,
		TypeID:         req.TypeID,
		CountryID:      req.CountryID,
		Stage:          entity.StageIdeaSubmitted,
		Priority:       priority,
		ClientFeedback: entity.FeedbackPending,
		TargetCost:     req.TargetCost,
		Remarks:        req.Remarks,
		StartDate:      req.StartDate,
		POTargetDate:   req.POTargetDate,
		CreatedBy:      userID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	s.logger.Info("Project created",
		zap.String("project_id", project.ID),
		zap.String("code", project.Code),
		zap.String("created_by", userID))
	s.hub.PublishProjectUpdate(sse.ProjectUpdate{
		ProjectID: project.ID,
		Code:      project.Code,
		Action:    sse.ActionCreated,
		Stage:     string(project.Stage),
	})
	return project, nil
}

// UpdateProject 更新可编辑字段
func (s *ProjectService) UpdateProject(ctx context.Context, id string, req *UpdateProjectRequest) (*entity.Project, error) {
	if field := req.immutable(); field != "" {
		return nil, fmt.Errorf("%w: %s", ErrImmutableField, field)
	}

	project, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if stage.IsClosed(*project) && req.touchesClosedFields() {
		return nil, fmt.Errorf("%w: only client_feedback and remarks can change", ErrProjectClosed)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		project.Name = name
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return nil, fmt.Errorf("%w: priority %q", ErrInvalidInput, *req.Priority)
		}
		project.Priority = *req.Priority
	}
	if req.ClientFeedback != nil {
		if !req.ClientFeedback.Valid() {
			return nil, fmt.Errorf("%w: client_feedback %q", ErrInvalidInput, *req.ClientFeedback)
		}
		project.ClientFeedback = *req.ClientFeedback
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.CompanyID != nil {
		project.CompanyID = *req.CompanyID
	}
	if req.BrandID != nil {
		project.BrandID = *req.BrandID
	}
	if req.CategoryID != nil {
		project.CategoryID = *req.CategoryID
	}
	if req.TypeID != nil {
		project.TypeID = *req.TypeID
	}
	if req.CountryID != nil {
		project.CountryID = *req.CountryID
	}
	if req.Remarks != nil {
		project.Remarks = *req.Remarks
	}
	if req.StartDate != nil {
		project.StartDate = req.StartDate
	}
	if req.POTargetDate != nil {
		project.POTargetDate = req.POTargetDate
	}
	project.UpdatedAt = s.opts.Now()

	if err := s.store.Save(ctx, project); err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	s.hub.PublishProjectUpdate(sse.ProjectUpdate{
		ProjectID: project.ID,
		Code:      project.Code,
		Action:    sse.ActionUpdated,
		Stage:     string(project.Stage),
	})
	return project, nil
}

// DeleteProject 软删除项目
func (s *ProjectService) DeleteProject(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Project deleted", zap.String("project_id", id))
	s.hub.PublishProjectUpdate(sse.ProjectUpdate{ProjectID: id, Action: sse.ActionDeleted})
	return nil
}

// GetStageInfo 获取阶段进度
func (s *ProjectService) GetStageInfo(ctx context.Context, id string) (*StageInfo, error) {
	project, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return buildStageInfo(*project), nil
}

func buildStageInfo(p entity.Project) *StageInfo {
	cur := stage.Current(p)
	info := &StageInfo{
		Current:       cur,
		Progress:      stage.Progress(cur),
		Closed:        stage.IsClosed(p),
		Gated:         stage.IsGated(p),
		GateSatisfied: stage.GateSatisfied(p),
		Steps:         stage.Steps(cur),
	}
	if next, ok := stage.Next(p); ok {
		info.Next = &next
	}
	return info
}

// AdvanceStage 推进到下一阶段，读取、校验与保存在同一行锁内完成
func (s *ProjectService) AdvanceStage(ctx context.Context, id string) (*entity.Project, error) {
	var from, target entity.Stage
	var rejected error
	advanced, err := s.store.UpdateWithLock(ctx, id, func(p *entity.Project) error {
		from = stage.Current(*p)
		target, _ = stage.Next(*p)
		next, err := stage.Advance(*p)
		if err != nil {
			rejected = err
			return err
		}
		next.UpdatedAt = s.opts.Now()
		*p = next
		return nil
	})
	if rejected != nil {
		metrics.IncStageTransition(string(target), transitionResult(rejected))
		s.logger.Warn("Stage advance rejected",
			zap.String("project_id", id),
			zap.String("stage", string(from)),
			zap.Error(rejected))
		return nil, rejected
	}
	if err != nil {
		return nil, err
	}
	metrics.IncStageTransition(string(advanced.Stage), "ok")

	s.logger.Info("Stage advanced",
		zap.String("project_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(advanced.Stage)))
	s.hub.PublishProjectUpdate(sse.ProjectUpdate{
		ProjectID: advanced.ID,
		Code:      advanced.Code,
		Action:    sse.ActionStageAdvanced,
		Stage:     string(advanced.Stage),
	})
	return advanced, nil
}

func transitionResult(err error) string {
	switch {
	case errors.Is(err, stage.ErrTerminal):
		return "terminal"
	case errors.Is(err, stage.ErrGateUnsatisfied):
		return "gate_unsatisfied"
	}
	return "error"
}

// CodePreview 编码预览
type CodePreview struct {
	Prefix string `json:"prefix"`
	Code   string `json:"code"`
}

// PreviewCode 按现有编码推算下一个编码，不占用序号
func (s *ProjectService) PreviewCode(ctx context.Context) (*CodePreview, error) {
	codes, err := s.store.ListCodes(ctx)
	if err != nil {
		return nil, err
	}
	at := s.opts.Now().In(s.opts.Location)
	return &CodePreview{
		Prefix: code.Prefix(at),
		Code:   code.Allocate(codes, at),
	}, nil
}
