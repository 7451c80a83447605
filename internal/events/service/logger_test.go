package service

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusHold/courier/internal/events/domain"
)

func TestLogger_PublishWritesStructuredEvent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(zerolog.New(&buf))
	tenant := uuid.New()
	err := l.Publish(context.Background(), domain.Event{
		Type:     "dispatch.unit.success",
		TenantID: tenant,
		Meta:     map[string]string{"channel": "email"},
		Time:     time.Now(),
	})
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "dispatch.unit.success", line["type"])
	assert.Equal(t, tenant.String(), line["tenant_id"])
	assert.Equal(t, "events", line["component"])
	assert.Equal(t, "info", line["level"])
}

func TestRecorder_Types(t *testing.T) {
	r := &Recorder{}
	_ = r.Publish(context.Background(), domain.Event{Type: "a"})
	_ = r.Publish(context.Background(), domain.Event{Type: "b"})
	assert.Equal(t, []string{"a", "b"}, r.Types())
}
