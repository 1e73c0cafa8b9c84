package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Project 研发项目实体
type Project struct {
	ID          string `json:"id" gorm:"primaryKey;size:32"`
	Code        string `json:"code" gorm:"size:32;not null;uniqueIndex"`
	Name        string `json:"name" gorm:"size:128;not null"`
	Description string `json:"description" gorm:"type:text"`

	// 主数据引用（对核心逻辑不透明）
	CompanyID  string `json:"company_id" gorm:"size:32"`
	BrandID    string `json:"brand_id" gorm:"size:32;index"`
	CategoryID string `json:"category_id" gorm:"size:32"`
	TypeID     string `json:"type_id" gorm:"size:32"`
	CountryID  string `json:"country_id" gorm:"size:32"`

	Stage          Stage          `json:"stage" gorm:"size:32;not null;default:Idea Submitted;index"`
	Priority       Priority       `json:"priority" gorm:"size:16;not null;default:Medium"`
	ClientFeedback ClientFeedback `json:"client_feedback" gorm:"size:16;not null;default:Pending"`

	TargetCost     decimal.Decimal  `json:"target_cost" gorm:"type:numeric(15,2);not null;default:0"`
	TentativeCost  *decimal.Decimal `json:"tentative_cost" gorm:"type:numeric(15,2)"`
	FinalCost      *decimal.Decimal `json:"final_cost" gorm:"type:numeric(15,2)"`
	CostApprovedAt *time.Time       `json:"cost_approved_at"`
	Remarks        string           `json:"remarks" gorm:"type:text"`

	StartDate    *time.Time `json:"start_date" gorm:"type:date"`
	POTargetDate *time.Time `json:"po_target_date" gorm:"column:po_target_date;type:date"`

	CreatedBy string     `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at" gorm:"index"`
}

func (Project) TableName() string {
	return "rnd_projects"
}

// DurationDays 展示用周期（天），未设置PO目标日期时以 now 为终点
func (p Project) DurationDays(now time.Time) int {
	if p.StartDate == nil {
		return 0
	}
	end := now
	if p.POTargetDate != nil {
		end = *p.POTargetDate
	}
	days := int(end.Sub(*p.StartDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Stage 开发阶段
type Stage string

const (
	StageIdeaSubmitted   Stage = "Idea Submitted"
	StageCostingPending  Stage = "Costing Pending"
	StageCostingReceived Stage = "Costing Received"
	StagePrototype       Stage = "Prototype"
	StageRedSeal         Stage = "Red Seal"
	StageGreenSeal       Stage = "Green Seal"
	StageFinalApproved   Stage = "Final Approved"
	StagePOIssued        Stage = "PO Issued"
)

// Priority 项目优先级
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Valid 是否为合法优先级
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ClientFeedback 客户反馈，与阶段相互独立
type ClientFeedback string

const (
	FeedbackPending  ClientFeedback = "Pending"
	FeedbackApproved ClientFeedback = "Approved"
	FeedbackRejected ClientFeedback = "Rejected"
	FeedbackRevision ClientFeedback = "Revision"
)

// Valid 是否为合法反馈
func (f ClientFeedback) Valid() bool {
	switch f {
	case FeedbackPending, FeedbackApproved, FeedbackRejected, FeedbackRevision:
		return true
	}
	return false
}
