// Package costing rolls a categorised cost breakdown up into subtotals,
// profit and a tentative cost, and applies the resulting approval to a
// project.
package costing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solefab/rndtrack/internal/rnd/entity"
	"github.com/solefab/rndtrack/internal/rnd/stage"
)

var (
	ErrInvalidApproval  = errors.New("costing: tentative cost must be greater than zero")
	ErrNotAtGate        = errors.New("costing: project is not awaiting cost approval")
	ErrInvalidLineItem  = errors.New("costing: invalid line item")
	ErrUnknownCategory  = errors.New("costing: unknown cost category")
	ErrLineNotFound     = errors.New("costing: line item not found")
	ErrSeedLine         = errors.New("costing: seed line items cannot be removed")
	ErrNegativeAmount   = errors.New("costing: amount must not be negative")
	ErrNegativeMargin   = errors.New("costing: profit margin must not be negative")
	ErrNegativeAddition = errors.New("costing: additional costs must not be negative")
)

var hundred = decimal.NewFromInt(100)

// Compute rolls b up into a CostResult.
//
// Labour+Overhead contributes LabourOverheadTotal only; its itemised lines
// are informational and never summed.
func Compute(b entity.CostBreakdown, marginPercent, additional decimal.Decimal) entity.CostResult {
	subtotals := make(map[entity.CostCategory]decimal.Decimal, len(entity.CostCategories))
	for _, cat := range entity.CostCategories {
		subtotals[cat] = decimal.Zero
	}

	for _, sec := range b.Sections {
		if sec.Category == entity.CostLabourOverhead || !knownCategory(sec.Category) {
			continue
		}
		sum := subtotals[sec.Category]
		for _, l := range sec.Lines {
			sum = sum.Add(l.Amount)
		}
		subtotals[sec.Category] = sum
	}
	subtotals[entity.CostLabourOverhead] = b.LabourOverheadTotal

	grand := decimal.Zero
	for _, cat := range entity.CostCategories {
		grand = grand.Add(subtotals[cat])
	}

	profit := grand.Mul(marginPercent).Div(hundred).Round(0)
	tentative := grand.Add(profit).Add(additional)

	margin := decimal.Zero
	if grand.IsPositive() {
		margin = profit.Div(grand).Mul(hundred).Round(2)
	}

	return entity.CostResult{
		CategorySubtotals: subtotals,
		GrandTotal:        grand,
		ProfitAmount:      profit,
		MarginPercent:     margin,
		TentativeCost:     tentative,
	}
}

// ValidateInputs rejects negative margin or additional costs.
func ValidateInputs(marginPercent, additional decimal.Decimal) error {
	if marginPercent.IsNegative() {
		return ErrNegativeMargin
	}
	if additional.IsNegative() {
		return ErrNegativeAddition
	}
	return nil
}

// Variance returns tentative - target and whether tentative exceeds target.
// The signal is advisory and never blocks approval.
func Variance(tentative, target decimal.Decimal) (decimal.Decimal, bool) {
	v := tentative.Sub(target)
	return v, v.IsPositive()
}

// Remark summarises a result for the project's remark log.
func Remark(r entity.CostResult) string {
	return fmt.Sprintf("Cost approved: total=%s, profit=%s, margin=%s%%, tentative=%s",
		r.GrandTotal.StringFixed(2),
		r.ProfitAmount.StringFixed(2),
		r.MarginPercent.StringFixed(2),
		r.TentativeCost.StringFixed(2),
	)
}

// Approve records r as the project's final cost and moves it from
// Prototype to Red Seal. On error the project is returned unchanged.
func Approve(p entity.Project, r entity.CostResult, at time.Time) (entity.Project, error) {
	if !r.TentativeCost.IsPositive() {
		return p, ErrInvalidApproval
	}
	if !stage.IsGated(p) {
		return p, fmt.Errorf("%w: stage is %q", ErrNotAtGate, stage.Current(p))
	}

	next := p
	tentative := r.TentativeCost
	final := r.TentativeCost
	approvedAt := at
	next.TentativeCost = &tentative
	next.FinalCost = &final
	next.CostApprovedAt = &approvedAt

	remark := Remark(r)
	if next.Remarks != "" {
		next.Remarks += "\n"
	}
	next.Remarks += remark

	advanced, err := stage.Advance(next)
	if err != nil {
		return p, err
	}
	return advanced, nil
}
