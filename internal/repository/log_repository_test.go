package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botevents-api/internal/model"
)

func TestMemoryEventLogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEventLogRepository(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.InsertEventLog(ctx, &model.EventLog{EventID: fmt.Sprintf("evt_%d", i)}))
	}

	logs, total, err := repo.GetEventLogs(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, logs, 3)
	assert.Equal(t, "evt_4", logs[0].EventID)
	assert.Equal(t, "evt_2", logs[2].EventID)
	assert.False(t, logs[0].CreatedAt.IsZero())

	page, _, err := repo.GetEventLogs(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "evt_3", page[0].EventID)

	empty, _, err := repo.GetEventLogs(ctx, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
