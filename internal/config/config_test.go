package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-desktop/trading-backend/internal/config"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func TestDefault_PassesValidate(t *testing.T) {
	assert.NoError(t, config.Default().Validate())
}

func TestValidate_RejectsSplitPercentageOutOfRange(t *testing.T) {
	cfg := config.Default()
	cfg.SplitPercentage = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnrecognizedExecutionMode(t *testing.T) {
	cfg := config.Default()
	cfg.ExecutionMode = types.ExecutionMode("not-a-mode")
	assert.Error(t, cfg.Validate())
}

func TestValidate_RequiresHMACSecretWhenEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.HMACEnabled = true
	cfg.HMACSecret = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnrecognizedMarketDataProvider(t *testing.T) {
	cfg := config.Default()
	cfg.MarketDataProviderPriority = []string{"not-a-provider"}
	assert.Error(t, cfg.Validate())
}

func TestLoad_NoConfigFileReturnsDefaultsPlusHMACSecretFromEnv(t *testing.T) {
	t.Setenv("SIGNALPIPE_HMACSECRET", "super-secret")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "super-secret", cfg.HMACSecret)
	assert.Equal(t, config.Default().SplitPercentage, cfg.SplitPercentage)
	assert.Equal(t, config.Default().MacroDriftThreshold, cfg.MacroDriftThreshold)
}

func TestLoad_EnvOverridesNumericDefault(t *testing.T) {
	t.Setenv("SIGNALPIPE_HMACSECRET", "super-secret")
	t.Setenv("SIGNALPIPE_SPLITPERCENTAGE", "0.25")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.SplitPercentage)
}

func TestLoad_PropagatesValidationFailure(t *testing.T) {
	t.Setenv("SIGNALPIPE_HMACSECRET", "super-secret")
	t.Setenv("SIGNALPIPE_SPLITPERCENTAGE", "4")

	_, err := config.Load("")
	assert.Error(t, err)
}
