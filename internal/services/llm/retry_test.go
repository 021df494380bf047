package llm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"429 status", errors.New("Error 429, rate limited"), true},
		{"resource exhausted", errors.New("Status: RESOURCE_EXHAUSTED"), true},
		{"quota message", errors.New("quota exceeded for model"), true},
		{"auth failure", errors.New("Error 401, unauthorized"), false},
		{"generic error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRateLimitError(tt.err))
		})
	}
}

func TestExtractRetryDelay(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected time.Duration
	}{
		{
			name:     "please retry format",
			err:      errors.New("Error 429, Message: ... Please retry in 45.387061394s., Status: RESOURCE_EXHAUSTED"),
			expected: time.Duration(45.387061394 * float64(time.Second)),
		},
		{
			name:     "retryDelay format",
			err:      errors.New("retryDelay: 30s"),
			expected: 30 * time.Second,
		},
		{
			name:     "no delay in message",
			err:      errors.New("Error 429"),
			expected: 0,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractRetryDelay(tt.err))
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	config := NewDefaultRetryConfig()

	// First attempt uses initial backoff
	assert.Equal(t, DefaultInitialBackoff, config.CalculateBackoff(0, 0))

	// API-provided delay wins over initial backoff
	backoff := config.CalculateBackoff(0, 20*time.Second)
	assert.Equal(t, 25*time.Second, backoff)

	// Backoff grows with attempts but is capped
	assert.Equal(t, DefaultMaxBackoff, config.CalculateBackoff(10, 0))
}
