package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoolEnv(t *testing.T) {

	assert.False(t, BoolEnv("CPE_TEST_FLAG"))

	t.Setenv("CPE_TEST_FLAG", "true")
	assert.True(t, BoolEnv("CPE_TEST_FLAG"))

	t.Setenv("CPE_TEST_FLAG", "0")
	assert.False(t, BoolEnv("CPE_TEST_FLAG"))

	t.Setenv("CPE_TEST_FLAG", "not-a-bool")
	assert.False(t, BoolEnv("CPE_TEST_FLAG"))
}

func TestDebugEnabled(t *testing.T) {

	assert.False(t, DebugEnabled())

	t.Setenv("CPE_DEBUG", "true")
	assert.True(t, DebugEnabled())
}

func TestHTTPTraceEnabled(t *testing.T) {

	assert.False(t, HTTPTraceEnabled())

	t.Setenv("CPE_HTTP_TRACE", "1")
	assert.True(t, HTTPTraceEnabled())
}

func TestEnvOr(t *testing.T) {

	assert.Equal(t, "fallback", EnvOr("CPE_TEST_KEY", "fallback"))

	t.Setenv("CPE_TEST_KEY", "value")
	assert.Equal(t, "value", EnvOr("CPE_TEST_KEY", "fallback"))
}

func TestMustEnv(t *testing.T) {

	t.Setenv("CPE_TEST_KEY", "value")
	assert.Equal(t, "value", MustEnv("CPE_TEST_KEY"))
}
