package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetLogFields(ctx))

	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithMessageID(ctx, "msg-1")
	ctx = WithEntityID(ctx, "10.123/abc")

	assert.Equal(t, []interface{}{
		"trace_id", "trace-1",
		"message_id", "msg-1",
		"entity_id", "10.123/abc",
	}, GetLogFields(ctx))
	assert.Equal(t, "trace-1", GetTraceID(ctx))
	assert.Equal(t, "10.123/abc", GetEntityID(ctx))
	assert.Equal(t, "", GetServiceName(ctx))
}
