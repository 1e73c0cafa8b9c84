package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CostCategory 成本大类
type CostCategory string

const (
	CostUpper          CostCategory = "upper"
	CostComponent      CostCategory = "component"
	CostMaterial       CostCategory = "material"
	CostPackaging      CostCategory = "packaging"
	CostLabourOverhead CostCategory = "labour_overhead"
	CostMiscellaneous  CostCategory = "miscellaneous"
)

// CostCategories 固定顺序的成本大类
var CostCategories = []CostCategory{
	CostUpper,
	CostComponent,
	CostMaterial,
	CostPackaging,
	CostLabourOverhead,
	CostMiscellaneous,
}

// CostLine 成本行项
type CostLine struct {
	ID     string          `json:"id"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
	Custom bool            `json:"custom"`
}

// CostSection 某一大类下的行项列表，顺序即展示顺序
type CostSection struct {
	Category CostCategory `json:"category"`
	Lines    []CostLine   `json:"lines"`
}

// CostBreakdown 核价明细，仅在核价阶段存在
type CostBreakdown struct {
	Sections []CostSection `json:"sections"`
	// LabourOverheadTotal 人工+制费直接录入的总额，汇总时以此为准
	LabourOverheadTotal decimal.Decimal `json:"labour_overhead_total"`
}

// CostResult 核价结果
type CostResult struct {
	CategorySubtotals map[CostCategory]decimal.Decimal `json:"category_subtotals"`
	GrandTotal        decimal.Decimal                  `json:"grand_total"`
	ProfitAmount      decimal.Decimal                  `json:"profit_amount"`
	MarginPercent     decimal.Decimal                  `json:"margin_percent"`
	TentativeCost     decimal.Decimal                  `json:"tentative_cost"`
}

// CostApproval 核价审批记录（审计用）
type CostApproval struct {
	ID              string          `json:"id" gorm:"primaryKey;size:32"`
	ProjectID       string          `json:"project_id" gorm:"size:32;not null;index"`
	GrandTotal      decimal.Decimal `json:"grand_total" gorm:"type:numeric(15,2);not null"`
	ProfitAmount    decimal.Decimal `json:"profit_amount" gorm:"type:numeric(15,2);not null"`
	ProfitPercent   decimal.Decimal `json:"profit_percent" gorm:"type:numeric(7,2);not null"`
	AdditionalCosts decimal.Decimal `json:"additional_costs" gorm:"type:numeric(15,2);not null"`
	TentativeCost   decimal.Decimal `json:"tentative_cost" gorm:"type:numeric(15,2);not null"`
	TargetCost      decimal.Decimal `json:"target_cost" gorm:"type:numeric(15,2);not null"`
	Variance        decimal.Decimal `json:"variance" gorm:"type:numeric(15,2);not null"`
	BreakdownJSON   datatypes.JSON  `json:"breakdown"`
	ResultJSON      datatypes.JSON  `json:"result"`
	Remark          string          `json:"remark" gorm:"type:text"`
	ApprovedBy      string          `json:"approved_by" gorm:"size:32"`
	ApprovedAt      time.Time       `json:"approved_at"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (CostApproval) TableName() string {
	return "cost_approvals"
}

// CodeSequence 项目编码序列，每个 RND/YY-YY/MM/ 前缀一行
type CodeSequence struct {
	Prefix    string    `json:"prefix" gorm:"primaryKey;size:32"`
	LastValue int       `json:"last_value" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CodeSequence) TableName() string {
	return "code_sequences"
}
