package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAsStandardError(t *testing.T) {
	assert.Nil(t, AsStandardError(nil))

	orig := NewPredictionTimeoutError("covid")
	wrapped := fmt.Errorf("call: %w", orig)
	assert.Same(t, orig, AsStandardError(wrapped))

	internal := AsStandardError(errors.New("boom"))
	assert.Equal(t, ErrCodeInternal, internal.Code)
	assert.Equal(t, "boom", internal.Details)
}

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeCompletionFailed, 3},
		{ErrCodePredictionServiceFailed, 3},
		{ErrCodeSynthesisFailed, 3},
		{ErrCodeCompletionTimeout, 2},
		{ErrCodePredictionTimeout, 2},
		{ErrCodeInvalidQuery, 0},
		{ErrCodeExtractionParseFailed, 0},
		{ErrCodeInternal, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetRetryCount(tt.code))
			assert.Equal(t, tt.want > 0, IsRetryableErrorCode(tt.code))
		})
	}
}

func TestConvertToBPMNError(t *testing.T) {
	stdErr := NewCompletionTimeoutError(45 * time.Second)
	bpmn := ConvertToBPMNError(stdErr)

	assert.Equal(t, "COMPLETION_TIMEOUT", bpmn.Code)
	assert.Equal(t, 2, bpmn.Retries)
	assert.True(t, bpmn.Retryable)
	assert.Contains(t, bpmn.Details, "45s")

	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "COMPLETION_TIMEOUT", vars["errorCode"])
	assert.Equal(t, "COMPLETION_TIMEOUT", vars["originalErrorCode"])
	assert.Contains(t, vars, "timestamp")
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeCompletionFailed))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeExtractionParseFailed))
	assert.Equal(t, "PREDICTION", GetErrorCategory(ErrCodePredictionTimeout))
	assert.Equal(t, "CACHE", GetErrorCategory(ErrCodeCacheUnavailable))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidQuery))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}
