package costing

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solefab/rndtrack/internal/rnd/entity"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func dp(v int64) *decimal.Decimal {
	x := decimal.NewFromInt(v)
	return &x
}

// scenarioBreakdown builds subtotals Upper=100 Component=50 Material=200
// Packaging=30 Misc=20 Labour=62.
func scenarioBreakdown(t *testing.T) entity.CostBreakdown {
	t.Helper()
	b := NewBreakdown()
	var err error
	b, err = SetAmount(b, entity.CostUpper, "upper_leather", d(70))
	require.NoError(t, err)
	b, err = SetAmount(b, entity.CostUpper, "lining", d(30))
	require.NoError(t, err)
	b, err = SetAmount(b, entity.CostComponent, "outsole", d(50))
	require.NoError(t, err)
	b, _, err = AddItem(b, entity.CostMaterial, "Microfibre", dp(200))
	require.NoError(t, err)
	b, err = SetAmount(b, entity.CostPackaging, "shoe_box", d(30))
	require.NoError(t, err)
	b, err = SetAmount(b, entity.CostMiscellaneous, "testing", d(20))
	require.NoError(t, err)
	b, err = SetLabourOverheadTotal(b, d(62))
	require.NoError(t, err)
	return b
}

func TestComputeScenario(t *testing.T) {
	b := scenarioBreakdown(t)
	r := Compute(b, d(25), decimal.Zero)

	assert.True(t, d(100).Equal(r.CategorySubtotals[entity.CostUpper]))
	assert.True(t, d(50).Equal(r.CategorySubtotals[entity.CostComponent]))
	assert.True(t, d(200).Equal(r.CategorySubtotals[entity.CostMaterial]))
	assert.True(t, d(30).Equal(r.CategorySubtotals[entity.CostPackaging]))
	assert.True(t, d(20).Equal(r.CategorySubtotals[entity.CostMiscellaneous]))
	assert.True(t, d(62).Equal(r.CategorySubtotals[entity.CostLabourOverhead]))

	assert.Equal(t, "462", r.GrandTotal.String())
	assert.Equal(t, "116", r.ProfitAmount.String())
	assert.Equal(t, "578", r.TentativeCost.String())
	assert.Equal(t, "25.11", r.MarginPercent.StringFixed(2))

	v, over := Variance(r.TentativeCost, d(10000))
	assert.Equal(t, "-9422", v.String())
	assert.False(t, over)
}

func TestComputeLabourLinesAreInformational(t *testing.T) {
	b := NewBreakdown()
	b, err := SetAmount(b, entity.CostLabourOverhead, "stitching", d(999))
	require.NoError(t, err)
	b, err = SetLabourOverheadTotal(b, d(40))
	require.NoError(t, err)

	r := Compute(b, decimal.Zero, decimal.Zero)
	assert.True(t, d(40).Equal(r.CategorySubtotals[entity.CostLabourOverhead]))
	assert.True(t, d(40).Equal(r.GrandTotal))
}

func TestComputeAdditivity(t *testing.T) {
	b := scenarioBreakdown(t)
	b, _, err := AddItem(b, entity.CostUpper, "Perforation", dp(15))
	require.NoError(t, err)
	b, _, err = AddItem(b, entity.CostMiscellaneous, "Courier", dp(7))
	require.NoError(t, err)

	r := Compute(b, decimal.Zero, decimal.Zero)

	want := decimal.Zero
	for _, sec := range b.Sections {
		if sec.Category == entity.CostLabourOverhead {
			continue
		}
		for _, l := range sec.Lines {
			want = want.Add(l.Amount)
		}
	}
	want = want.Add(b.LabourOverheadTotal)
	assert.True(t, want.Equal(r.GrandTotal), "want %s got %s", want, r.GrandTotal)
	assert.Equal(t, "484", r.GrandTotal.String())
}

func TestComputeProfitGrid(t *testing.T) {
	b := scenarioBreakdown(t)
	for _, margin := range []int64{0, 25, 100} {
		for _, extra := range []int64{0, 5000} {
			t.Run(fmt.Sprintf("margin=%d/extra=%d", margin, extra), func(t *testing.T) {
				r := Compute(b, d(margin), d(extra))
				wantProfit := r.GrandTotal.Mul(d(margin)).Div(d(100)).Round(0)
				assert.True(t, wantProfit.Equal(r.ProfitAmount))
				assert.True(t, r.GrandTotal.Add(wantProfit).Add(d(extra)).Equal(r.TentativeCost))
			})
		}
	}
}

func TestComputeZeroGrandTotal(t *testing.T) {
	r := Compute(NewBreakdown(), d(25), d(5000))
	assert.True(t, r.GrandTotal.IsZero())
	assert.True(t, r.ProfitAmount.IsZero())
	assert.True(t, r.MarginPercent.IsZero())
	assert.True(t, d(5000).Equal(r.TentativeCost))
}

func TestVarianceOverTarget(t *testing.T) {
	v, over := Variance(d(12000), d(10000))
	assert.Equal(t, "2000", v.String())
	assert.True(t, over)

	_, over = Variance(d(10000), d(10000))
	assert.False(t, over)
}

func TestApprove(t *testing.T) {
	p := entity.Project{Code: "RND/25-26/03/101", Stage: entity.StagePrototype, TargetCost: d(10000), Remarks: "first sample ok"}
	r := Compute(scenarioBreakdown(t), d(25), decimal.Zero)
	at := time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC)

	out, err := Approve(p, r, at)
	require.NoError(t, err)
	assert.Equal(t, entity.StageRedSeal, out.Stage)
	require.NotNil(t, out.FinalCost)
	assert.Equal(t, "578", out.FinalCost.String())
	require.NotNil(t, out.TentativeCost)
	assert.Equal(t, at, *out.CostApprovedAt)
	assert.True(t, strings.HasPrefix(out.Remarks, "first sample ok\n"))
	assert.Contains(t, out.Remarks, "Cost approved: total=462.00, profit=116.00, margin=25.11%, tentative=578.00")

	// the input value is untouched
	assert.Equal(t, entity.StagePrototype, p.Stage)
	assert.Nil(t, p.FinalCost)
}

func TestApproveZeroTentativeFails(t *testing.T) {
	p := entity.Project{Stage: entity.StagePrototype, TargetCost: d(10000)}
	out, err := Approve(p, entity.CostResult{TentativeCost: decimal.Zero}, time.Now())
	require.ErrorIs(t, err, ErrInvalidApproval)
	assert.Equal(t, p, out)
}

func TestApproveOutsideGateFails(t *testing.T) {
	p := entity.Project{Stage: entity.StageCostingReceived}
	r := Compute(scenarioBreakdown(t), d(25), decimal.Zero)
	out, err := Approve(p, r, time.Now())
	require.ErrorIs(t, err, ErrNotAtGate)
	assert.Equal(t, p, out)
}

func TestValidateInputs(t *testing.T) {
	assert.NoError(t, ValidateInputs(d(25), d(0)))
	assert.ErrorIs(t, ValidateInputs(d(-1), d(0)), ErrNegativeMargin)
	assert.ErrorIs(t, ValidateInputs(d(1), d(-5)), ErrNegativeAddition)
}
