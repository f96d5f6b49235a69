package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionConfig_Configuration(t *testing.T) {
	t.Run("正常系: nilは空オブジェクト", func(t *testing.T) {
		c := &ConditionConfig{}
		data, err := c.MarshalConfiguration()
		require.NoError(t, err)
		assert.Equal(t, "{}", data)
	})

	t.Run("正常系: 保存形式から復元", func(t *testing.T) {
		c := &ConditionConfig{}
		require.NoError(t, c.UnmarshalConfiguration(`{"permission":"access content","negate":true}`))
		assert.Equal(t, map[string]interface{}{"permission": "access content", "negate": true}, c.Configuration)

		data, err := c.MarshalConfiguration()
		require.NoError(t, err)
		assert.JSONEq(t, `{"permission":"access content","negate":true}`, data)
	})

	t.Run("異常系: 不正なJSON", func(t *testing.T) {
		c := &ConditionConfig{}
		assert.Error(t, c.UnmarshalConfiguration(`{"permission":`))
	})
}
