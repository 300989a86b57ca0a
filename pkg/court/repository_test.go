package court

import (
	"context"
	"database/sql"
	"testing"

	"github.com/courtly/courtly/internal/test_utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepositoryTest(t *testing.T) (*RepositoryImpl, *sql.DB, context.Context) {
	t.Helper()
	db := test_utils.SetupTestDB(t)
	return NewRepository(db), db, context.Background()
}

func seedCourt(t *testing.T, db *sql.DB, orgId int64, name, surface, basePrice string) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO court (org_id, name, surface, base_price) VALUES ($1, $2, $3, $4)`,
		orgId, name, surface, basePrice)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestRepositoryImpl_GetCourt(t *testing.T) {
	repo, db, ctx := setupRepositoryTest(t)

	id := seedCourt(t, db, test_utils.TestOrgId, "Center Court", "clay", "42.50")

	fetched, err := repo.GetCourt(ctx, test_utils.TestOrgId, id)
	require.NoError(t, err)
	assert.Equal(t, "Center Court", fetched.Name)
	assert.Equal(t, "clay", fetched.Surface)
	assert.True(t, fetched.BasePrice.Equal(decimal.RequireFromString("42.50")))
}

func TestRepositoryImpl_GetCourt_NotFound(t *testing.T) {
	repo, _, ctx := setupRepositoryTest(t)

	_, err := repo.GetCourt(ctx, test_utils.TestOrgId, 999)
	assert.ErrorIs(t, err, ErrCourtNotFound)
}

func TestRepositoryImpl_GetCourt_OrgIsolation(t *testing.T) {
	repo, db, ctx := setupRepositoryTest(t)

	id := seedCourt(t, db, test_utils.TestOrgId, "Center Court", "clay", "20")

	_, err := repo.GetCourt(ctx, test_utils.TestOrgId+1, id)
	assert.ErrorIs(t, err, ErrCourtNotFound)
}

func TestRepositoryImpl_ListCourts(t *testing.T) {
	repo, db, ctx := setupRepositoryTest(t)

	seedCourt(t, db, test_utils.TestOrgId, "Court 1", "clay", "20")
	seedCourt(t, db, test_utils.TestOrgId, "Court 2", "hard", "25")
	seedCourt(t, db, test_utils.TestOrgId+1, "Foreign", "grass", "30")

	courts, err := repo.ListCourts(ctx, test_utils.TestOrgId)
	require.NoError(t, err)
	require.Len(t, courts, 2)
}
