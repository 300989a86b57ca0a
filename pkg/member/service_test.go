package member

import (
	"context"
	"testing"

	"github.com/courtly/courtly/internal/test_utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_UpdateMember(t *testing.T) {
	repo := NewRepositoryStub()
	service := NewService(repo)
	ctx := test_utils.OrgContext()

	id, err := repo.CreateMember(ctx, Member{
		OrgId: test_utils.TestOrgId, FullName: "Anna Berg", Phone: "+4712345678", Status: StatusActive,
	})
	require.NoError(t, err)

	updated, err := service.UpdateMember(ctx, Member{
		Id: id, FullName: "Anna Berg-Olsen", Phone: "+4712345678", Status: StatusInactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Anna Berg-Olsen", updated.FullName)
	assert.Equal(t, StatusInactive, updated.Status)
}

func TestService_UpdateMember_AppLinkedContactProtected(t *testing.T) {
	repo := NewRepositoryStub()
	service := NewService(repo)
	ctx := test_utils.OrgContext()

	userId := int64(42)
	id, err := repo.CreateMember(ctx, Member{
		OrgId: test_utils.TestOrgId, UserId: &userId, FullName: "App User",
		Phone: "+4700000001", Email: "app@example.com", Status: StatusActive,
	})
	require.NoError(t, err)

	// Contact fields of an app-linked profile may not be rewritten.
	_, err = service.UpdateMember(ctx, Member{
		Id: id, FullName: "App User", Phone: "+4799999999", Email: "app@example.com",
	})
	assert.ErrorIs(t, err, ErrProtectedProfile)

	// Renaming without touching contact data is allowed.
	updated, err := service.UpdateMember(ctx, Member{
		Id: id, FullName: "App User Renamed", Phone: "+4700000001", Email: "app@example.com", Status: StatusActive,
	})
	require.NoError(t, err)
	assert.Equal(t, "App User Renamed", updated.FullName)
	require.NotNil(t, updated.UserId, "app link is preserved")
	assert.Equal(t, userId, *updated.UserId)
}

func TestService_GetMember_RequiresOrg(t *testing.T) {
	service := NewService(NewRepositoryStub())

	_, err := service.GetMember(context.Background(), 1)
	assert.Error(t, err)
}
