package member

import (
	"errors"
	"testing"
	"time"

	"github.com/courtly/courtly/internal/test_utils"
	"github.com/courtly/courtly/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupResolverTest() (*ResolverImpl, *RepositoryStub, *utils.MockClock) {
	repo := NewRepositoryStub()
	clock := &utils.MockClock{FixedNow: time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)}
	return NewResolver(repo, clock), repo, clock
}

func int64Ptr(v int64) *int64 {
	return &v
}

func TestResolver_NoIdentity(t *testing.T) {
	resolver, _, _ := setupResolverTest()

	_, err := resolver.Resolve(test_utils.OrgContext(), ResolveInput{Email: "only@example.com"})

	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestResolver_CreatesNewMember(t *testing.T) {
	resolver, _, clock := setupResolverTest()

	resolution, err := resolver.Resolve(test_utils.OrgContext(), ResolveInput{
		Phone: "+4712345678",
		Name:  "Anna Berg",
	})

	require.NoError(t, err)
	assert.True(t, resolution.Created)
	assert.Equal(t, "Anna Berg", resolution.Member.FullName)
	assert.Equal(t, "+4712345678", resolution.Member.Phone)
	assert.Equal(t, StatusActive, resolution.Member.Status)
	assert.Equal(t, clock.FixedNow, resolution.Member.LastInteractionAt)
	assert.Empty(t, resolution.Annotations)
}

func TestResolver_NameFallsBackToPhone(t *testing.T) {
	resolver, _, _ := setupResolverTest()

	resolution, err := resolver.Resolve(test_utils.OrgContext(), ResolveInput{Phone: "+4712345678"})

	require.NoError(t, err)
	assert.True(t, resolution.Created)
	assert.Equal(t, "+4712345678", resolution.Member.FullName)
}

func TestResolver_Idempotent(t *testing.T) {
	resolver, _, _ := setupResolverTest()
	ctx := test_utils.OrgContext()
	input := ResolveInput{Phone: "+4712345678", Name: "Anna Berg"}

	first, err := resolver.Resolve(ctx, input)
	require.NoError(t, err)
	second, err := resolver.Resolve(ctx, input)
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, first.Member.Id, second.Member.Id)
}

func TestResolver_CascadePriority(t *testing.T) {
	resolver, repo, _ := setupResolverTest()
	ctx := test_utils.OrgContext()

	byUser, err := repo.CreateMember(ctx, Member{
		OrgId: test_utils.TestOrgId, UserId: int64Ptr(42), FullName: "App User", Phone: "+4700000001", Status: StatusActive,
	})
	require.NoError(t, err)
	byPhone, err := repo.CreateMember(ctx, Member{
		OrgId: test_utils.TestOrgId, FullName: "Phone Person", Phone: "+4700000002", Status: StatusActive,
	})
	require.NoError(t, err)

	// User id wins even when the phone matches a different member.
	resolution, err := resolver.Resolve(ctx, ResolveInput{UserId: int64Ptr(42), Phone: "+4700000002"})
	require.NoError(t, err)
	assert.Equal(t, byUser, resolution.Member.Id)

	// Phone tier matches when no user id is given.
	resolution, err = resolver.Resolve(ctx, ResolveInput{Phone: "+4700000002"})
	require.NoError(t, err)
	assert.Equal(t, byPhone, resolution.Member.Id)
}

func TestResolver_NameTierSkippedForAppUsers(t *testing.T) {
	resolver, repo, _ := setupResolverTest()
	ctx := test_utils.OrgContext()

	_, err := repo.CreateMember(ctx, Member{
		OrgId: test_utils.TestOrgId, FullName: "Jonas Vik", Status: StatusActive,
	})
	require.NoError(t, err)

	// An unknown app user with a name matching an existing manual profile
	// must not be merged into it; a fresh member is created instead.
	resolution, err := resolver.Resolve(ctx, ResolveInput{UserId: int64Ptr(99), Name: "Jonas Vik"})
	require.NoError(t, err)
	assert.True(t, resolution.Created)
	require.NotNil(t, resolution.Member.UserId)
	assert.Equal(t, int64(99), *resolution.Member.UserId)
}

func TestResolver_NameMatchIsCaseInsensitive(t *testing.T) {
	resolver, repo, _ := setupResolverTest()
	ctx := test_utils.OrgContext()

	id, err := repo.CreateMember(ctx, Member{
		OrgId: test_utils.TestOrgId, FullName: "Jonas Vik", Status: StatusActive,
	})
	require.NoError(t, err)

	resolution, err := resolver.Resolve(ctx, ResolveInput{Name: "jonas vik"})
	require.NoError(t, err)
	assert.False(t, resolution.Created)
	assert.Equal(t, id, resolution.Member.Id)
}

func TestResolver_AppLinkedContactProtected(t *testing.T) {
	resolver, repo, _ := setupResolverTest()
	ctx := test_utils.OrgContext()

	id, err := repo.CreateMember(ctx, Member{
		OrgId:    test_utils.TestOrgId,
		UserId:   int64Ptr(42),
		FullName: "App User",
		Phone:    "+4700000001",
		Email:    "app@example.com",
		Status:   StatusActive,
	})
	require.NoError(t, err)

	resolution, err := resolver.Resolve(ctx, ResolveInput{
		UserId: int64Ptr(42),
		Phone:  "+4799999999",
		Email:  "other@example.com",
	})
	require.NoError(t, err)

	// The profile's own contact data is untouched.
	stored, err := repo.GetMember(ctx, test_utils.TestOrgId, id)
	require.NoError(t, err)
	assert.Equal(t, "+4700000001", stored.Phone)
	assert.Equal(t, "app@example.com", stored.Email)

	// The divergence surfaces as annotations.
	assert.Equal(t, "+4799999999", resolution.Annotations[AnnotationAltContact])
	assert.Equal(t, "true", resolution.Annotations[AnnotationContactMismatch])
	assert.Equal(t, "other@example.com", resolution.Annotations[AnnotationAltEmail])
	assert.Equal(t, "true", resolution.Annotations[AnnotationEmailMismatch])
}

func TestResolver_ManualProfileEnriched(t *testing.T) {
	resolver, repo, _ := setupResolverTest()
	ctx := test_utils.OrgContext()

	id, err := repo.CreateMember(ctx, Member{
		OrgId: test_utils.TestOrgId, FullName: "Manual Member", Phone: "+4700000003", Status: StatusActive,
	})
	require.NoError(t, err)

	resolution, err := resolver.Resolve(ctx, ResolveInput{
		Phone: "+4700000003",
		Email: "new@example.com",
	})
	require.NoError(t, err)
	assert.Empty(t, resolution.Annotations)

	stored, err := repo.GetMember(ctx, test_utils.TestOrgId, id)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", stored.Email)
}

func TestResolver_TouchUpdatesLastInteraction(t *testing.T) {
	resolver, repo, clock := setupResolverTest()
	ctx := test_utils.OrgContext()

	earlier := clock.FixedNow.Add(-48 * time.Hour)
	id, err := repo.CreateMember(ctx, Member{
		OrgId: test_utils.TestOrgId, FullName: "Old Timer", Phone: "+4700000004",
		Status: StatusActive, LastInteractionAt: earlier,
	})
	require.NoError(t, err)

	_, err = resolver.Resolve(ctx, ResolveInput{Phone: "+4700000004"})
	require.NoError(t, err)

	stored, err := repo.GetMember(ctx, test_utils.TestOrgId, id)
	require.NoError(t, err)
	assert.Equal(t, clock.FixedNow, stored.LastInteractionAt)
}

func TestResolver_LookupErrorTreatedAsNoMatch(t *testing.T) {
	resolver, repo, _ := setupResolverTest()
	ctx := test_utils.OrgContext()

	repo.LookupErr = errors.New("connection reset")
	repo.CreateErr = nil

	// Lookups fail, so the resolver proceeds to creation.
	resolution, err := resolver.Resolve(ctx, ResolveInput{Phone: "+4712345678", Name: "Anna Berg"})
	require.NoError(t, err)
	assert.True(t, resolution.Created)
}

func TestResolver_CreateConflictRetriesLookup(t *testing.T) {
	resolver, repo, _ := setupResolverTest()
	ctx := test_utils.OrgContext()

	// Simulated race: the member appears between lookup and insert.
	existing, err := repo.CreateMember(ctx, Member{
		OrgId: test_utils.TestOrgId, FullName: "Anna Berg", Phone: "+4712345678", Status: StatusActive,
	})
	require.NoError(t, err)
	repo.FailNextLookups = 1

	// The initial phone lookup misses, the duplicate phone insert is
	// rejected, and the resolver must fall back to the existing row.
	resolution, err := resolver.Resolve(ctx, ResolveInput{Phone: "+4712345678", Name: "Anna B"})
	require.NoError(t, err)
	assert.False(t, resolution.Created)
	assert.Equal(t, existing, resolution.Member.Id)
}

func TestResolver_CreateFailureIsFatal(t *testing.T) {
	resolver, repo, _ := setupResolverTest()
	ctx := test_utils.OrgContext()

	repo.CreateErr = errors.New("disk full")

	_, err := resolver.Resolve(ctx, ResolveInput{Name: "Nobody Home"})
	assert.Error(t, err)
}
