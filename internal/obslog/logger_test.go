package obslog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := New(cfg)
	require.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	logger, err := New(nil)
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestContextFieldsRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithBlockID(ctx, "KB-20260101-001")

	require.Equal(t, "req-1", RequestIDFromContext(ctx))
	require.Equal(t, "KB-20260101-001", BlockIDFromContext(ctx))

	fields := ContextFields(ctx)
	require.Len(t, fields, 2)
}

func TestFromContextDefaultsToNop(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)
	logger.Info(context.Background(), "noop")
}

func TestWithLoggerRoundTrip(t *testing.T) {
	logger := NewNop()
	ctx := WithLogger(context.Background(), logger)
	require.Same(t, logger, FromContext(ctx))
}
