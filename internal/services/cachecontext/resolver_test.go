package cachecontext

import (
	"testing"

	"github.com/asakaida/permcondition/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Keys(t *testing.T) {
	editor := &entities.Role{ID: "editor", Label: "Editor", Permissions: []string{"edit any article"}}
	alice := entities.NewUser("alice", []string{"editor"}, []*entities.Role{editor})
	bob := entities.NewUser("bob", []string{"editor"}, []*entities.Role{editor})
	req := &entities.Request{Route: "entity.node.canonical", URL: "/node/1?page=2"}

	r := NewResolver()

	t.Run("正常系: 各トークン", func(t *testing.T) {
		keys, err := r.Keys([]string{"user", "user.roles", "route", "url"}, alice, req)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"user=alice",
			"user.roles=authenticated,editor",
			"route=entity.node.canonical",
			"url=/node/1?page=2",
		}, keys)
	})

	t.Run("正常系: 同じ権限セットは同じキー", func(t *testing.T) {
		a, err := r.Keys([]string{"user.permissions"}, alice, nil)
		require.NoError(t, err)
		b, err := r.Keys([]string{"user.permissions"}, bob, nil)
		require.NoError(t, err)
		assert.Equal(t, a, b)

		byUser, err := r.Keys([]string{"user"}, bob, nil)
		require.NoError(t, err)
		assert.NotEqual(t, []string{"user=alice"}, byUser)
	})

	t.Run("正常系: nilユーザーは匿名", func(t *testing.T) {
		keys, err := r.Keys([]string{"user", "user.roles", "route"}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"user=", "user.roles=anonymous", "route="}, keys)
	})

	t.Run("正常系: メソッドと属性", func(t *testing.T) {
		post := &entities.Request{
			Method:     "POST",
			Attributes: map[string]interface{}{"node_type": "article", "bundle": "node"},
		}
		keys, err := r.Keys([]string{"request.method", "request.attributes"}, nil, post)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"request.method=POST",
			`request.attributes={"bundle":"node","node_type":"article"}`,
		}, keys)

		other := &entities.Request{
			Method:     "POST",
			Attributes: map[string]interface{}{"node_type": "page", "bundle": "node"},
		}
		otherKeys, err := r.Keys([]string{"request.method", "request.attributes"}, nil, other)
		require.NoError(t, err)
		assert.NotEqual(t, keys, otherKeys)

		empty, err := r.Keys([]string{"request.method", "request.attributes"}, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"request.method=", "request.attributes="}, empty)
	})

	t.Run("異常系: 未知のトークン", func(t *testing.T) {
		_, err := r.Keys([]string{"route", "languages"}, alice, req)
		assert.ErrorIs(t, err, ErrUnknownCacheContext)
	})
}
