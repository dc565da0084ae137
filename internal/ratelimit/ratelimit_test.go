package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUse_ProviderLimit(t *testing.T) {
	rl := NewAIRateLimiter(map[string]int{"gemini": 2}, 0)

	require.NoError(t, rl.Use("gemini"))
	require.NoError(t, rl.Use("gemini"))
	assert.Error(t, rl.Use("gemini"))

	// Other providers are only bound by the total.
	assert.NoError(t, rl.Use("openai"))

	stats := rl.GetStats()
	assert.Equal(t, 3, stats["total_used"])
	assert.Equal(t, 1, stats["denied"])
}

func TestUse_TotalLimit(t *testing.T) {
	rl := NewAIRateLimiter(nil, 1)

	require.NoError(t, rl.Use("gemini"))
	assert.Error(t, rl.Use("openai"))
}

func TestUse_ZeroMeansUnlimited(t *testing.T) {
	rl := NewAIRateLimiter(map[string]int{"gemini": 0}, 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, rl.Use("gemini"))
	}
}
