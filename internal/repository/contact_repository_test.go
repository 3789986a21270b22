package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/whatsapp-inbox/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewContactRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Contact{
		PhoneNumber: "+5511999998888",
		Name:        "Ana",
		Email:       "ana@example.com",
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.False(t, created.IsPinned)
	assert.Nil(t, created.LastReadAt)

	got, err := repo.GetByPhone(ctx, "+5511999998888")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)

	_, err = repo.GetByPhone(ctx, "+000")
	assert.ErrorIs(t, err, ErrContactNotFound)
}

func TestContactRepository_GetByPhones(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewContactRepository(db)
	ctx := context.Background()

	for _, p := range []string{"+1", "+2"} {
		_, err := repo.Create(ctx, &model.Contact{PhoneNumber: p})
		require.NoError(t, err)
	}

	m, err := repo.GetByPhones(ctx, []string{"+1", "+2", "+3"})
	require.NoError(t, err)
	assert.Len(t, m, 2)
	assert.Contains(t, m, "+1")
	assert.NotContains(t, m, "+3")

	m, err = repo.GetByPhones(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestContactRepository_SetPinned(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewContactRepository(db)
	ctx := context.Background()

	t.Run("creates the row when absent", func(t *testing.T) {
		c, err := repo.SetPinned(ctx, "+5511999990001", true)
		require.NoError(t, err)
		assert.True(t, c.IsPinned)
	})

	t.Run("updates the row when present", func(t *testing.T) {
		_, err := repo.Create(ctx, &model.Contact{PhoneNumber: "+5511999990002", Name: "Bo"})
		require.NoError(t, err)

		c, err := repo.SetPinned(ctx, "+5511999990002", true)
		require.NoError(t, err)
		assert.True(t, c.IsPinned)
		assert.Equal(t, "Bo", c.Name)

		c, err = repo.SetPinned(ctx, "+5511999990002", false)
		require.NoError(t, err)
		assert.False(t, c.IsPinned)
	})
}

func TestContactRepository_MarkRead(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewContactRepository(db)
	ctx := context.Background()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c, err := repo.MarkRead(ctx, "+5511999990003", at)
	require.NoError(t, err)
	require.NotNil(t, c.LastReadAt)
	assert.True(t, c.LastReadAt.Equal(at))

	later := at.Add(time.Hour)
	c, err = repo.MarkRead(ctx, "+5511999990003", later)
	require.NoError(t, err)
	require.NotNil(t, c.LastReadAt)
	assert.True(t, c.LastReadAt.Equal(later))
}

func TestContactRepository_Update(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewContactRepository(db)
	ctx := context.Background()

	_, err := repo.Update(ctx, &model.Contact{PhoneNumber: "+404"})
	assert.ErrorIs(t, err, ErrContactNotFound)

	_, err = repo.Create(ctx, &model.Contact{PhoneNumber: "+5511999990004", Name: "Old"})
	require.NoError(t, err)

	got, err := repo.Update(ctx, &model.Contact{
		PhoneNumber: "+5511999990004",
		Name:        "New",
		Notes:       "vip",
	})
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.Equal(t, "vip", got.Notes)
}

func TestContactRepository_Delete(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewContactRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, &model.Contact{PhoneNumber: "+5511999990005"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "+5511999990005"))
	assert.ErrorIs(t, repo.Delete(ctx, "+5511999990005"), ErrContactNotFound)
}
