package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relaygrid/pointsx/pkg/utils"
)

func TestEnv(t *testing.T) {
	t.Setenv("POINTSX_TEST_STR", "value")
	assert.Equal(t, "value", utils.Env("POINTSX_TEST_STR", "def"))
	assert.Equal(t, "def", utils.Env("POINTSX_TEST_MISSING", "def"))
}

func TestEnvInt64(t *testing.T) {
	t.Setenv("POINTSX_TEST_INT", "5000")
	assert.Equal(t, int64(5000), utils.EnvInt64("POINTSX_TEST_INT", 1))

	t.Setenv("POINTSX_TEST_INT", "not-a-number")
	assert.Equal(t, int64(1), utils.EnvInt64("POINTSX_TEST_INT", 1))

	// non-positive values fall back to the default
	t.Setenv("POINTSX_TEST_INT", "-3")
	assert.Equal(t, int64(1), utils.EnvInt64("POINTSX_TEST_INT", 1))
}

func TestEnvBool(t *testing.T) {
	t.Setenv("POINTSX_TEST_BOOL", "false")
	assert.False(t, utils.EnvBool("POINTSX_TEST_BOOL", true))

	t.Setenv("POINTSX_TEST_BOOL", "maybe")
	assert.True(t, utils.EnvBool("POINTSX_TEST_BOOL", true))
}
