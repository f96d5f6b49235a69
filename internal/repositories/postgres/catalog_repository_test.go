package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/asakaida/permcondition/internal/entities"
	"github.com/asakaida/permcondition/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionRepository_GetPermissions(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	ctx := context.Background()
	modules := NewPostgresModuleRepository(db)
	perms := NewPostgresPermissionRepository(db)

	require.NoError(t, modules.Write(ctx, &entities.Module{ID: "node", Name: "Node"}))
	require.NoError(t, modules.Write(ctx, &entities.Module{ID: "block", Name: "Block"}))

	for _, p := range []*entities.Permission{
		{ID: "access content", Title: "View published content", Provider: "node"},
		{ID: "administer blocks", Title: "Administer <em>blocks</em>", Provider: "block", RestrictAccess: true},
		{ID: "create article content", Title: "Article: Create new content", Provider: "node"},
	} {
		require.NoError(t, perms.Write(ctx, p))
	}

	t.Run("正常系: モジュール名順、宣言順で取得", func(t *testing.T) {
		got, err := perms.GetPermissions(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "administer blocks", got[0].ID)
		assert.True(t, got[0].RestrictAccess)
		assert.Equal(t, "access content", got[1].ID)
		assert.Equal(t, "create article content", got[2].ID)
	})

	t.Run("正常系: 更新しても宣言順は維持される", func(t *testing.T) {
		require.NoError(t, perms.Write(ctx, &entities.Permission{ID: "access content", Title: "View content", Provider: "node"}))

		got, err := perms.GetPermissions(ctx)
		require.NoError(t, err)
		assert.Equal(t, "access content", got[1].ID)
		assert.Equal(t, "View content", got[1].Title)
	})

	t.Run("正常系: 未登録モジュールはIDを返す", func(t *testing.T) {
		name, err := modules.GetName(ctx, "unknown_module")
		require.NoError(t, err)
		assert.Equal(t, "unknown_module", name)

		name, err = modules.GetName(ctx, "node")
		require.NoError(t, err)
		assert.Equal(t, "Node", name)
	})

	t.Run("異常系: 存在しない権限の削除", func(t *testing.T) {
		err := perms.Delete(ctx, "nope")
		assert.True(t, errors.Is(err, repositories.ErrNotFound))
	})

	t.Run("異常系: プロバイダなし", func(t *testing.T) {
		err := perms.Write(ctx, &entities.Permission{ID: "x", Title: "X"})
		assert.Error(t, err)
	})
}

func TestUserRepository_Get(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	ctx := context.Background()
	roles := NewPostgresRoleRepository(db)
	users := NewPostgresUserRepository(db)

	require.NoError(t, roles.Write(ctx, &entities.Role{ID: "anonymous", Label: "Anonymous user", Permissions: []string{"access content"}}))
	require.NoError(t, roles.Write(ctx, &entities.Role{ID: "authenticated", Label: "Authenticated user", Permissions: []string{"access content", "post comments"}}))
	require.NoError(t, roles.Write(ctx, &entities.Role{ID: "editor", Label: "Editor", Permissions: []string{"administer nodes"}}))
	require.NoError(t, roles.Write(ctx, &entities.Role{ID: "administrator", Label: "Administrator", Admin: true}))

	t.Run("正常系: 匿名ユーザー", func(t *testing.T) {
		u, err := users.Get(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"anonymous"}, u.Roles)
		assert.True(t, u.HasPermission("access content"))
		assert.False(t, u.HasPermission("post comments"))
	})

	t.Run("正常系: ロールの割り当て", func(t *testing.T) {
		require.NoError(t, users.AssignRoles(ctx, "42", []string{"editor"}))

		u, err := users.Get(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, []string{"authenticated", "editor"}, u.Roles)
		assert.True(t, u.HasPermission("administer nodes"))
		assert.True(t, u.HasPermission("post comments"))
		assert.False(t, u.HasPermission(""))
	})

	t.Run("正常系: 管理者ロールはすべての権限を持つ", func(t *testing.T) {
		require.NoError(t, users.AssignRoles(ctx, "1", []string{"administrator"}))

		u, err := users.Get(ctx, "1")
		require.NoError(t, err)
		assert.True(t, u.Admin)
		assert.True(t, u.HasPermission("anything at all"))
	})

	t.Run("正常系: ロール削除で割り当ても消える", func(t *testing.T) {
		require.NoError(t, roles.Delete(ctx, "editor"))

		u, err := users.Get(ctx, "42")
		require.NoError(t, err)
		assert.False(t, u.HasPermission("administer nodes"))
	})

	t.Run("異常系: 組み込みロールは削除できない", func(t *testing.T) {
		assert.Error(t, roles.Delete(ctx, "anonymous"))
	})
}
