package configs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadABTestDefault(t *testing.T) {
	cfg := loadABTestDefault()
	assert.Equal(t, "home_ui_test", cfg.TestName)
	require.Len(t, cfg.Groups, 2)
	assert.Equal(t, "variant_a", cfg.Groups[0].Name)
	assert.Equal(t, "variant_b", cfg.Groups[1].Name)
}

func TestLoadABTestDefault_EnvOverride(t *testing.T) {
	t.Setenv("ABTEST_DEFAULT_TEST_NAME", "onboarding_test")
	t.Setenv("ABTEST_DEFAULT_GROUPS", "control, treatment ,holdout")

	cfg := loadABTestDefault()
	assert.Equal(t, "onboarding_test", cfg.TestName)
	require.Len(t, cfg.Groups, 3)
	assert.Equal(t, "control", cfg.Groups[0].Name)
	assert.Equal(t, "treatment", cfg.Groups[1].Name)
	assert.Equal(t, "holdout", cfg.Groups[2].Name)
}
