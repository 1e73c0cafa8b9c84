package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solefab/rndtrack/internal/rnd/costing"
	"github.com/solefab/rndtrack/internal/rnd/entity"
	"github.com/solefab/rndtrack/internal/rnd/repository"
	"github.com/solefab/rndtrack/internal/rnd/stage"
	"github.com/solefab/rndtrack/internal/rnd/testutil"
)

type testEnv struct {
	svcs  *Services
	repos *repository.Repositories
	now   time.Time
}

func setupServices(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db, nil)
	env := &testEnv{repos: repos, now: time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)}
	opts := Options{
		Location:             time.UTC,
		DefaultMarginPercent: decimal.NewFromInt(25),
		Now:                  func() time.Time { return env.now },
	}
	env.svcs = NewServices(repos, repos.CodeSequence, nil, opts, nil)
	return env
}

func (e *testEnv) create(t *testing.T, name string) *entity.Project {
	t.Helper()
	p, err := e.svcs.Project.CreateProject(context.Background(), "tester", &CreateProjectRequest{
		Name:       name,
		TargetCost: decimal.NewFromInt(10000),
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) advanceTo(t *testing.T, id string, target entity.Stage) {
	t.Helper()
	ctx := context.Background()
	for {
		p, err := e.svcs.Project.GetProject(ctx, id)
		require.NoError(t, err)
		if p.Stage == target {
			return
		}
		_, err = e.svcs.Project.AdvanceStage(ctx, id)
		require.NoError(t, err)
	}
}

func scenarioBreakdown(t *testing.T) entity.CostBreakdown {
	t.Helper()
	b, err := costing.SetAmount(costing.NewBreakdown(), entity.CostUpper, "upper_leather", decimal.NewFromInt(300))
	require.NoError(t, err)
	b, err = costing.SetAmount(b, entity.CostComponent, "outsole", decimal.NewFromInt(162))
	require.NoError(t, err)
	return b
}

func TestCreateProjectAllocatesSequentialCodes(t *testing.T) {
	env := setupServices(t)

	a := env.create(t, "Court Classic")
	b := env.create(t, "Trail Runner")
	assert.Equal(t, "RND/25-26/03/101", a.Code)
	assert.Equal(t, "RND/25-26/03/102", b.Code)
	assert.Equal(t, entity.StageIdeaSubmitted, a.Stage)
	assert.Equal(t, entity.PriorityMedium, a.Priority)
	assert.Equal(t, entity.FeedbackPending, a.ClientFeedback)
	assert.Nil(t, a.FinalCost)

	env.now = time.Date(2025, time.April, 2, 9, 0, 0, 0, time.UTC)
	c := env.create(t, "Loafer")
	assert.Equal(t, "RND/25-26/04/101", c.Code)
}

func TestCreateProjectValidation(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	_, err := env.svcs.Project.CreateProject(ctx, "", &CreateProjectRequest{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.svcs.Project.CreateProject(ctx, "", &CreateProjectRequest{Name: "X", Priority: "Urgent"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.svcs.Project.CreateProject(ctx, "", &CreateProjectRequest{Name: "X", TargetCost: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPreviewCodeDoesNotReserve(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	env.create(t, "A")

	preview, err := env.svcs.Project.PreviewCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "RND/25-26/03/", preview.Prefix)
	assert.Equal(t, "RND/25-26/03/102", preview.Code)

	b := env.create(t, "B")
	assert.Equal(t, preview.Code, b.Code)
}

func TestUpdateProjectRules(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	p := env.create(t, "Court Classic")

	code := "RND/00-01/01/001"
	_, err := env.svcs.Project.UpdateProject(ctx, p.ID, &UpdateProjectRequest{Code: &code})
	assert.ErrorIs(t, err, ErrImmutableField)

	target := decimal.NewFromInt(1)
	_, err = env.svcs.Project.UpdateProject(ctx, p.ID, &UpdateProjectRequest{TargetCost: &target})
	assert.ErrorIs(t, err, ErrImmutableField)

	name := "Court Classic II"
	high := entity.PriorityHigh
	updated, err := env.svcs.Project.UpdateProject(ctx, p.ID, &UpdateProjectRequest{Name: &name, Priority: &high})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, entity.PriorityHigh, updated.Priority)
	assert.Equal(t, p.Code, updated.Code)

	bad := entity.ClientFeedback("Maybe")
	_, err = env.svcs.Project.UpdateProject(ctx, p.ID, &UpdateProjectRequest{ClientFeedback: &bad})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.svcs.Project.UpdateProject(ctx, "missing", &UpdateProjectRequest{Name: &name})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestClosedProjectOnlyAcceptsFeedback(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	db := env.repos.Project.DB()
	p := testutil.SeedProject(t, db, "RND/25-26/03/150", entity.StageFinalApproved)

	name := "Renamed"
	_, err := env.svcs.Project.UpdateProject(ctx, p.ID, &UpdateProjectRequest{Name: &name})
	assert.ErrorIs(t, err, ErrProjectClosed)

	approved := entity.FeedbackApproved
	updated, err := env.svcs.Project.UpdateProject(ctx, p.ID, &UpdateProjectRequest{ClientFeedback: &approved})
	require.NoError(t, err)
	assert.Equal(t, entity.FeedbackApproved, updated.ClientFeedback)

	_, err = env.svcs.Costing.Compute(ctx, p.ID, &CostRequest{Breakdown: scenarioBreakdown(t)})
	assert.ErrorIs(t, err, ErrProjectClosed)
}

func TestAdvanceStageStopsAtGate(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	p := env.create(t, "Court Classic")

	env.advanceTo(t, p.ID, entity.StagePrototype)

	info, err := env.svcs.Project.GetStageInfo(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StagePrototype, info.Current)
	require.NotNil(t, info.Next)
	assert.Equal(t, entity.StageRedSeal, *info.Next)
	assert.True(t, info.Gated)
	assert.False(t, info.GateSatisfied)
	assert.Equal(t, 50, info.Progress)

	_, err = env.svcs.Project.AdvanceStage(ctx, p.ID)
	assert.ErrorIs(t, err, stage.ErrGateUnsatisfied)

	got, err := env.svcs.Project.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StagePrototype, got.Stage)
}

func TestComputeStoresTentativeCost(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	p := env.create(t, "Court Classic")

	report, err := env.svcs.Costing.Compute(ctx, p.ID, &CostRequest{Breakdown: scenarioBreakdown(t)})
	require.NoError(t, err)
	assert.Equal(t, "462", report.Result.GrandTotal.String())
	assert.Equal(t, "116", report.Result.ProfitAmount.String())
	assert.Equal(t, "578", report.Result.TentativeCost.String())
	assert.Equal(t, "25.11", report.Result.MarginPercent.String())
	assert.Equal(t, "-9422", report.Variance.String())
	assert.False(t, report.OverTarget)

	got, err := env.svcs.Project.GetProject(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TentativeCost)
	assert.True(t, decimal.NewFromInt(578).Equal(*got.TentativeCost))
	assert.Nil(t, got.FinalCost)

	zero := decimal.Zero
	report, err = env.svcs.Costing.Compute(ctx, p.ID, &CostRequest{Breakdown: scenarioBreakdown(t), MarginPercent: &zero, AdditionalCosts: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	assert.Equal(t, "5462", report.Result.TentativeCost.String())

	neg := decimal.NewFromInt(-5)
	_, err = env.svcs.Costing.Compute(ctx, p.ID, &CostRequest{MarginPercent: &neg})
	assert.ErrorIs(t, err, costing.ErrNegativeMargin)
}

func TestApproveCostAdvancesToRedSeal(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	p := env.create(t, "Court Classic")
	env.advanceTo(t, p.ID, entity.StagePrototype)

	approved, report, err := env.svcs.Costing.Approve(ctx, p.ID, "approver", &CostRequest{Breakdown: scenarioBreakdown(t)})
	require.NoError(t, err)
	assert.Equal(t, entity.StageRedSeal, approved.Stage)
	require.NotNil(t, approved.FinalCost)
	assert.Equal(t, "578", approved.FinalCost.String())
	assert.Equal(t, "578", report.Result.TentativeCost.String())
	assert.Contains(t, approved.Remarks, "Cost approved: total=462.00, profit=116.00, margin=25.11%, tentative=578.00")

	got, err := env.svcs.Project.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StageRedSeal, got.Stage)
	require.NotNil(t, got.CostApprovedAt)
	require.NotNil(t, got.FinalCost)
	assert.True(t, decimal.NewFromInt(578).Equal(*got.FinalCost))

	list, err := env.svcs.Costing.ListApprovals(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "approver", list[0].ApprovedBy)
	assert.True(t, decimal.NewFromInt(-9422).Equal(list[0].Variance))
	assert.NotEmpty(t, list[0].BreakdownJSON)

	// 审批后可继续推进至终点
	env.advanceTo(t, p.ID, entity.StagePOIssued)
	_, err = env.svcs.Project.AdvanceStage(ctx, p.ID)
	assert.ErrorIs(t, err, stage.ErrTerminal)
}

func TestApproveZeroCostLeavesProjectUnchanged(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	p := env.create(t, "Court Classic")
	env.advanceTo(t, p.ID, entity.StagePrototype)

	_, _, err := env.svcs.Costing.Approve(ctx, p.ID, "approver", &CostRequest{Breakdown: costing.NewBreakdown()})
	assert.ErrorIs(t, err, costing.ErrInvalidApproval)

	got, err := env.svcs.Project.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StagePrototype, got.Stage)
	assert.Nil(t, got.FinalCost)
	assert.Nil(t, got.CostApprovedAt)

	list, err := env.svcs.Costing.ListApprovals(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestConcurrentApprovalsWriteOneRecord(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	p := env.create(t, "Court Classic")
	env.advanceTo(t, p.ID, entity.StagePrototype)

	breakdown := scenarioBreakdown(t)
	const n = 4
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = env.svcs.Costing.Approve(ctx, p.ID, "approver", &CostRequest{Breakdown: breakdown})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, costing.ErrNotAtGate)
	}
	assert.Equal(t, 1, ok)

	list, err := env.svcs.Costing.ListApprovals(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	got, err := env.svcs.Project.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StageRedSeal, got.Stage)
}

func TestApproveMissingProject(t *testing.T) {
	env := setupServices(t)
	_, _, err := env.svcs.Costing.Approve(context.Background(), "missing", "approver", &CostRequest{Breakdown: scenarioBreakdown(t)})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestApproveOutsidePrototype(t *testing.T) {
	env := setupServices(t)
	p := env.create(t, "Court Classic")

	_, _, err := env.svcs.Costing.Approve(context.Background(), p.ID, "approver", &CostRequest{Breakdown: scenarioBreakdown(t)})
	assert.ErrorIs(t, err, costing.ErrNotAtGate)
}

func TestDashboardStats(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	db := env.repos.Project.DB()

	env.create(t, "A")
	env.create(t, "B")
	testutil.SeedProject(t, db, "RND/25-26/02/101", entity.StagePOIssued)
	over := testutil.SeedProject(t, db, "RND/25-26/02/102", entity.StagePrototype)
	big := decimal.NewFromInt(20000)
	over.TentativeCost = &big
	require.NoError(t, env.repos.Project.Save(ctx, over))

	stats, err := env.svcs.Dashboard.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(1), stats.Closed)
	assert.Equal(t, int64(3), stats.Active)
	assert.Equal(t, int64(1), stats.OverTarget)
	require.Len(t, stats.ByStage, 8)
	assert.Equal(t, entity.StageIdeaSubmitted, stats.ByStage[0].Stage)
	assert.Equal(t, int64(2), stats.ByStage[0].Count)
	assert.Equal(t, int64(0), stats.ByStage[1].Count)
}

func TestCatalogService(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	item, err := env.svcs.Catalog.Create(ctx, entity.CatalogKindBrand, &CreateCatalogItemRequest{Code: "sf", Name: "SoleFab"})
	require.NoError(t, err)
	assert.Equal(t, "SF", item.Code)

	_, err = env.svcs.Catalog.Create(ctx, entity.CatalogKindBrand, &CreateCatalogItemRequest{Code: "SF", Name: "Dup"})
	assert.ErrorIs(t, err, ErrDuplicateCode)

	_, err = env.svcs.Catalog.Create(ctx, "colour", &CreateCatalogItemRequest{Code: "R", Name: "Red"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	list, err := env.svcs.Catalog.List(ctx, entity.CatalogKindBrand, true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "SoleFab", list[0].Name)

	list, err = env.svcs.Catalog.List(ctx, entity.CatalogKindCountry, false)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestProjectViewDuration(t *testing.T) {
	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	po := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)
	p := &entity.Project{Stage: entity.StageRedSeal, StartDate: &start, POTargetDate: &po}

	v := NewProjectView(p, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 30, v.DurationDays)
	assert.Equal(t, 65, v.Progress)
	assert.False(t, v.Closed)
}
