package logctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vechnost/storefront/internal/observability"
)

func TestFromOr_FallsBackWithoutLogger(t *testing.T) {
	fallback := observability.NopLogger()
	assert.Equal(t, fallback, FromOr(context.Background(), fallback))
}

func TestWith_RoundTrip(t *testing.T) {
	logger := observability.NopLogger().With(observability.F("k", "v"))
	ctx := With(context.Background(), logger)
	assert.Equal(t, logger, From(ctx))
}

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))
	assert.Equal(t, ctx, WithRequestID(ctx, ""))

	ctx = WithRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
}
