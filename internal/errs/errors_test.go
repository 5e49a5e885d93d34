package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_SurvivesWrapping(t *testing.T) {
	base := New(KindRateLimit, "throttled")
	wrapped := fmt.Errorf("embed: %w", base)

	assert.Equal(t, KindRateLimit, KindOf(wrapped))
	assert.True(t, IsRateLimit(wrapped))
}

func TestKindOf_UnclassifiedIsZero(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.False(t, IsRateLimit(errors.New("plain")))
}

func TestUnwrap_KeepsCauseReachable(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindStorage, "failed to store chunk", cause)
	assert.ErrorIs(t, err, cause)
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindExtraction, http.StatusUnprocessableEntity},
		{KindRateLimit, http.StatusTooManyRequests},
		{KindConfig, http.StatusInternalServerError},
		{KindStorage, http.StatusInternalServerError},
		{KindProvider, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(New(tc.kind, "x")), tc.kind.String())
	}
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "rate_limit", KindRateLimit.String())
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "unknown", Kind(0).String())
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "prompt is required", Message(New(KindValidation, "prompt is required")))
	assert.Equal(t, "plain", Message(errors.New("plain")))
}
