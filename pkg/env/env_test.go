package env

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	t.Setenv("MULTILAB_TEST_VALUE", "  console ")
	require.Equal(t, "console", Get("MULTILAB_TEST_VALUE", "json"))

	t.Setenv("MULTILAB_TEST_VALUE", "   ")
	require.Equal(t, "json", Get("MULTILAB_TEST_VALUE", "json"))
}

func TestBool(t *testing.T) {
	t.Setenv("MULTILAB_TEST_FLAG", "true")
	require.True(t, Bool("MULTILAB_TEST_FLAG", false))

	t.Setenv("MULTILAB_TEST_FLAG", "nope")
	require.True(t, Bool("MULTILAB_TEST_FLAG", true))

	t.Setenv("MULTILAB_TEST_FLAG", "0")
	require.False(t, Bool("MULTILAB_TEST_FLAG", true))
}
