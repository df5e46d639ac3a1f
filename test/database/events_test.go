// Integration tests for the persisted event stream: one transaction
// per event covering the INSERT and the pg_notify broadcast, catch-up
// queries by event id, and retention cleanup. Requires Docker (or
// CI_DATABASE_URL) and is skipped in -short mode.
package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minuteman-ai/minuteman/pkg/database"
	"github.com/minuteman-ai/minuteman/pkg/events"
	"github.com/minuteman-ai/minuteman/pkg/models"
	"github.com/minuteman-ai/minuteman/test/util"
)

func setup(t *testing.T) (*database.Client, *database.EventService, *events.EventPublisher, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	client, connStr := util.SetupTestDatabase(t)
	return client, database.NewEventService(client), events.NewEventPublisher(client.DB()), connStr
}

func TestEventStream_PersistAndCatchup(t *testing.T) {
	_, svc, pub, _ := setup(t)
	ctx := context.Background()

	jobID := "catchup-job"
	require.NoError(t, pub.PublishJobQueued(ctx, jobID))
	require.NoError(t, pub.PublishAnalyzerStarted(ctx, jobID, models.StageA, "say_means"))
	require.NoError(t, pub.PublishAnalyzerCompleted(ctx, jobID, models.StageA, "say_means",
		1200, models.TokenUsage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120}, 0.004))

	channel := events.JobChannel(jobID)
	evts, err := svc.GetEventsSince(ctx, channel, 0, 10)
	require.NoError(t, err)
	require.Len(t, evts, 3)

	assert.Equal(t, "job.queued", evts[0].Payload["type"])
	assert.Equal(t, "analyzer.started", evts[1].Payload["type"])
	assert.Equal(t, "analyzer.completed", evts[2].Payload["type"])
	assert.Equal(t, jobID, evts[0].Payload["jobId"])
	assert.Less(t, evts[0].ID, evts[1].ID)
	assert.Less(t, evts[1].ID, evts[2].ID)

	// Catch-up resumes after the last seen id.
	tail, err := svc.GetEventsSince(ctx, channel, evts[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, "analyzer.started", tail[0].Payload["type"])

	// Limit bounds the batch.
	limited, err := svc.GetEventsSince(ctx, channel, 0, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestEventStream_NotifyDelivery(t *testing.T) {
	_, _, pub, connStr := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	jobID := "notify-job"
	channel := events.JobChannel(jobID)

	conn, err := pgx.Connect(ctx, connStr)
	require.NoError(t, err)
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, fmt.Sprintf("LISTEN %q", channel))
	require.NoError(t, err)

	require.NoError(t, pub.PublishJobQueued(ctx, jobID))

	notification, err := conn.WaitForNotification(ctx)
	require.NoError(t, err)
	assert.Equal(t, channel, notification.Channel)
	assert.Contains(t, notification.Payload, `"type":"job.queued"`)
	// The broadcast carries the persisted row's id for catch-up.
	assert.Contains(t, notification.Payload, `"db_event_id"`)
}

func TestEventStream_Cleanup(t *testing.T) {
	_, svc, pub, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, pub.PublishJobQueued(ctx, "job-a"))
	require.NoError(t, pub.PublishStageCompleted(ctx, "job-a", models.StageA))
	require.NoError(t, pub.PublishJobQueued(ctx, "job-b"))

	removed, err := svc.CleanupJobEvents(ctx, "job-a")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	remaining, err := svc.GetEventsSince(ctx, events.JobChannel("job-b"), 0, 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	// A zero TTL expires everything already written.
	removed, err = svc.CleanupExpiredEvents(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	remaining, err = svc.GetEventsSince(ctx, events.JobChannel("job-b"), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
