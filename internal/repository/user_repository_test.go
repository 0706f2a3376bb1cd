package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-planner/internal/model"
	"task-planner/internal/repository"
)

func TestUserRepository_UpsertKeepsStoredRole(t *testing.T) {
	repo := repository.NewUserRepository(newTestDB(t))
	ctx := context.Background()

	u, err := repo.UpsertFromTelegram(ctx, 42, "Ada", "", "ada", model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Role)

	require.NoError(t, repo.SetRole(ctx, u.ID, model.RoleManager))

	again, err := repo.UpsertFromTelegram(ctx, 42, "Ada", "Lovelace", "ada_l", model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, model.RoleManager, again.Role)

	byName, err := repo.FindByUsername(ctx, "ada_l")
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", byName.LastName)

	byTG, err := repo.FindByTelegramID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byTG.ID)
}

func TestUserRepository_DefaultsAndMissing(t *testing.T) {
	repo := repository.NewUserRepository(newTestDB(t))
	ctx := context.Background()

	u, err := repo.UpsertFromTelegram(ctx, 7, "Bob", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, model.RoleMember, u.Role)

	_, err = repo.FindByID(ctx, u.ID+1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, repo.SetRole(ctx, u.ID+1, model.RoleAdmin), repository.ErrNotFound)

	users, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
