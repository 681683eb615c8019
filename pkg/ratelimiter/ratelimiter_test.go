package ratelimiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"anoa.com/schoolportal/pkg/apperror"
	"github.com/stretchr/testify/assert"
)

func TestAllow_WithoutRedisAlwaysPasses(t *testing.T) {
	ctx := context.Background()
	for _, l := range []*Limiter{nil, New(nil)} {
		assert.NoError(t, l.Allow(ctx, "contact", "127.0.0.1", time.Minute))
		assert.NoError(t, l.Allow(ctx, "contact", "127.0.0.1", time.Minute))
		assert.NoError(t, l.Release(ctx, "contact", "127.0.0.1"))
	}
}

func TestRateLimitError_UnwrapsToSentinel(t *testing.T) {
	var err error = &RateLimitError{Message: "too many requests", RetryAfter: 3 * time.Second}
	assert.True(t, errors.Is(err, apperror.ErrRateLimitExceeded))
	assert.Equal(t, "too many requests", err.Error())
	assert.Equal(t, "rate_limit:guardian:abc", key("guardian", "abc"))
}
