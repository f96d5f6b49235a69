package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/asakaida/permcondition/internal/entities"
	"github.com/asakaida/permcondition/internal/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionRepository(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewPostgresConditionRepository(db)
	ctx := context.Background()

	cfg := &entities.ConditionConfig{
		ID:       uuid.NewString(),
		PluginID: "user_permission",
		Configuration: map[string]interface{}{
			"permission": "access content",
			"negate":     false,
		},
	}

	t.Run("正常系: 作成と取得", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, cfg))

		got, err := repo.Get(ctx, cfg.ID)
		require.NoError(t, err)
		assert.Equal(t, "user_permission", got.PluginID)
		assert.Equal(t, "access content", got.Configuration["permission"])
		assert.Equal(t, false, got.Configuration["negate"])
	})

	t.Run("正常系: 更新", func(t *testing.T) {
		cfg.Configuration["negate"] = true
		require.NoError(t, repo.Update(ctx, cfg))

		got, err := repo.Get(ctx, cfg.ID)
		require.NoError(t, err)
		assert.Equal(t, true, got.Configuration["negate"])
	})

	t.Run("正常系: 複数取得は指定順", func(t *testing.T) {
		other := &entities.ConditionConfig{ID: uuid.NewString(), PluginID: "request_expression"}
		require.NoError(t, repo.Create(ctx, other))

		got, err := repo.GetMany(ctx, []string{other.ID, cfg.ID})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, other.ID, got[0].ID)
		assert.Equal(t, cfg.ID, got[1].ID)

		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("正常系: 大文字のIDでも複数取得できる", func(t *testing.T) {
		got, err := repo.GetMany(ctx, []string{strings.ToUpper(cfg.ID)})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, cfg.ID, got[0].ID)
	})

	t.Run("異常系: 存在しないID", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.NewString())
		assert.True(t, errors.Is(err, repositories.ErrNotFound))

		_, err = repo.GetMany(ctx, []string{cfg.ID, uuid.NewString()})
		assert.True(t, errors.Is(err, repositories.ErrNotFound))
	})

	t.Run("正常系: 削除", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, cfg.ID))

		err := repo.Delete(ctx, cfg.ID)
		assert.True(t, errors.Is(err, repositories.ErrNotFound))
	})
}
