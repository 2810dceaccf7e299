package logsender

import (
	"context"
	"testing"

	"pet-custody/internal/platform/logger"
	"pet-custody/internal/ports/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSend_LogsNotification(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := New(logger.FromZap(zap.New(core)))

	err := s.Send(context.Background(), notifications.Notification{
		RecipientUserID: "owner-1",
		Type:            "handover.completed",
		Data:            map[string]string{"pet_id": "p1"},
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("notification").All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "owner-1", ctx["recipient"])
	assert.Equal(t, "p1", ctx["data.pet_id"])
}
