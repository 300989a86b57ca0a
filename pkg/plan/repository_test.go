package plan

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/courtly/courtly/internal/test_utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepositoryTest(t *testing.T) (*RepositoryImpl, context.Context) {
	t.Helper()
	db := test_utils.SetupTestDB(t)
	seedCourt(t, db)
	return NewRepository(db), context.Background()
}

func seedCourt(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO court (org_id, name, surface, base_price) VALUES ($1, $2, $3, $4)`,
		test_utils.TestOrgId, "Court 1", "clay", "20")
	require.NoError(t, err)
}

func testPlan() RecurringPlan {
	return RecurringPlan{
		OrgId:      test_utils.TestOrgId,
		CourtId:    1,
		DayOfWeek:  time.Monday,
		StartTime:  "18:00",
		StartDate:  time.Date(2024, time.January, 1, 0, 0, 0, 0, time.Local),
		EndDate:    time.Date(2024, time.January, 22, 0, 0, 0, 0, time.Local),
		TotalPrice: decimal.NewFromInt(80),
		Active:     true,
	}
}

func TestRepositoryImpl_CreateAndGetPlan(t *testing.T) {
	repo, ctx := setupRepositoryTest(t)

	userId := int64(42)
	p := testPlan()
	p.UserId = &userId

	id, err := repo.CreatePlan(ctx, p)
	require.NoError(t, err)
	require.NotZero(t, id)

	fetched, err := repo.GetPlan(ctx, test_utils.TestOrgId, id)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, fetched.DayOfWeek)
	assert.Equal(t, "18:00", fetched.StartTime)
	assert.Equal(t, "2024-01-01", fetched.StartDate.Format("2006-01-02"))
	assert.Equal(t, "2024-01-22", fetched.EndDate.Format("2006-01-02"))
	assert.True(t, fetched.TotalPrice.Equal(decimal.NewFromInt(80)))
	assert.True(t, fetched.Active)
	assert.False(t, fetched.PaymentAdvance)
	require.NotNil(t, fetched.UserId)
	assert.Equal(t, userId, *fetched.UserId)
	assert.Nil(t, fetched.MemberId)
}

func TestRepositoryImpl_GetPlan_NotFound(t *testing.T) {
	repo, ctx := setupRepositoryTest(t)

	_, err := repo.GetPlan(ctx, test_utils.TestOrgId, 999)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestRepositoryImpl_ListPlans_OrgScoped(t *testing.T) {
	repo, ctx := setupRepositoryTest(t)

	_, err := repo.CreatePlan(ctx, testPlan())
	require.NoError(t, err)
	foreign := testPlan()
	foreign.OrgId = test_utils.TestOrgId + 1
	_, err = repo.CreatePlan(ctx, foreign)
	require.NoError(t, err)

	plans, err := repo.ListPlans(ctx, test_utils.TestOrgId)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, test_utils.TestOrgId, plans[0].OrgId)
}

func TestRepositoryImpl_UpdatePlan(t *testing.T) {
	repo, ctx := setupRepositoryTest(t)

	id, err := repo.CreatePlan(ctx, testPlan())
	require.NoError(t, err)

	p, err := repo.GetPlan(ctx, test_utils.TestOrgId, id)
	require.NoError(t, err)
	p.DayOfWeek = time.Wednesday
	p.StartTime = "19:00"
	p.TotalPrice = decimal.NewFromInt(100)
	p.PaymentAdvance = true
	require.NoError(t, repo.UpdatePlan(ctx, test_utils.TestOrgId, p))

	fetched, err := repo.GetPlan(ctx, test_utils.TestOrgId, id)
	require.NoError(t, err)
	assert.Equal(t, time.Wednesday, fetched.DayOfWeek)
	assert.Equal(t, "19:00", fetched.StartTime)
	assert.True(t, fetched.TotalPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, fetched.PaymentAdvance)

	missing := testPlan()
	missing.Id = 999
	assert.ErrorIs(t, repo.UpdatePlan(ctx, test_utils.TestOrgId, missing), ErrPlanNotFound)
}

func TestRepositoryImpl_UpdateEndDate(t *testing.T) {
	repo, ctx := setupRepositoryTest(t)

	id, err := repo.CreatePlan(ctx, testPlan())
	require.NoError(t, err)

	newEnd := time.Date(2024, time.January, 29, 0, 0, 0, 0, time.Local)
	require.NoError(t, repo.UpdateEndDate(ctx, test_utils.TestOrgId, id, newEnd))

	fetched, err := repo.GetPlan(ctx, test_utils.TestOrgId, id)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-29", fetched.EndDate.Format("2006-01-02"))

	assert.ErrorIs(t, repo.UpdateEndDate(ctx, test_utils.TestOrgId, 999, newEnd), ErrPlanNotFound)
}

func TestRepositoryImpl_SetActive(t *testing.T) {
	repo, ctx := setupRepositoryTest(t)

	id, err := repo.CreatePlan(ctx, testPlan())
	require.NoError(t, err)

	require.NoError(t, repo.SetActive(ctx, test_utils.TestOrgId, id, false))

	fetched, err := repo.GetPlan(ctx, test_utils.TestOrgId, id)
	require.NoError(t, err)
	assert.False(t, fetched.Active)
}

func TestRepositoryImpl_DeactivateExpired(t *testing.T) {
	repo, ctx := setupRepositoryTest(t)

	expiredId, err := repo.CreatePlan(ctx, testPlan())
	require.NoError(t, err)

	running := testPlan()
	running.EndDate = time.Date(2024, time.March, 25, 0, 0, 0, 0, time.Local)
	runningId, err := repo.CreatePlan(ctx, running)
	require.NoError(t, err)

	affected, err := repo.DeactivateExpired(ctx, test_utils.TestOrgId, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	expired, err := repo.GetPlan(ctx, test_utils.TestOrgId, expiredId)
	require.NoError(t, err)
	assert.False(t, expired.Active)

	stillRunning, err := repo.GetPlan(ctx, test_utils.TestOrgId, runningId)
	require.NoError(t, err)
	assert.True(t, stillRunning.Active)

	// Idempotent: a second sweep finds nothing to do.
	affected, err = repo.DeactivateExpired(ctx, test_utils.TestOrgId, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.Local))
	require.NoError(t, err)
	assert.Zero(t, affected)
}
