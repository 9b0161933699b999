package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolResultConstructors(t *testing.T) {
	t.Run("success carries data, no error", func(t *testing.T) {
		r := NewToolSuccess(map[string]any{"current_time": "14:05"}, ToolMeta{Source: "time_now"})
		assert.True(t, r.Ok)
		assert.Nil(t, r.Error)
		assert.Equal(t, "14:05", r.Data["current_time"])
	})

	t.Run("success with nil data gets empty map", func(t *testing.T) {
		r := NewToolSuccess(nil, ToolMeta{})
		require.NotNil(t, r.Data)
		assert.Empty(t, r.Data)
	})

	t.Run("failure carries error, no data", func(t *testing.T) {
		r := NewToolFailure(ErrorCodeNotFound, "no such file", ToolMeta{Source: "file_read"})
		assert.False(t, r.Ok)
		assert.Nil(t, r.Data)
		require.NotNil(t, r.Error)
		assert.Equal(t, ErrorCodeNotFound, r.Error.Code)
		assert.Equal(t, "no such file", r.ErrorMessage())
	})
}

func TestErrorCodeRetryable(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		retryable bool
	}{
		{ErrorCodeNetwork, true},
		{ErrorCodeRateLimit, true},
		{ErrorCodeInternal, true},
		{ErrorCodeNotFound, false},
		{ErrorCodeInvalidInput, false},
		{ErrorCodePermissionDenied, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.code.DefaultRetryable())
			r := NewToolFailure(tt.code, "x", ToolMeta{})
			assert.Equal(t, tt.retryable, r.Retryable())
		})
	}
}

func TestToolResultRetryableOnSuccess(t *testing.T) {
	r := NewToolSuccess(map[string]any{}, ToolMeta{})
	assert.False(t, r.Retryable())
	assert.Empty(t, r.ErrorMessage())
}
