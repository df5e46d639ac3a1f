package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/minuteman-ai/minuteman/pkg/models"
)

// EventPublisher publishes job progress events for WebSocket delivery.
// Every event is stored in the events table and then broadcast via
// NOTIFY inside the same transaction, so subscribers can replay missed
// events from the table using the id carried in each NOTIFY payload.
type EventPublisher struct {
	db *sql.DB
}

// NewEventPublisher creates an EventPublisher over database.Client.DB().
func NewEventPublisher(db *sql.DB) *EventPublisher {
	return &EventPublisher{db: db}
}

// PublishJobQueued emits job.queued to the job channel and, transiently,
// to the global jobs channel.
func (p *EventPublisher) PublishJobQueued(ctx context.Context, jobID string) error {
	payload := JobQueuedPayload{Meta: newMeta(EventTypeJobQueued), JobID: jobID}
	return p.publishWithGlobal(ctx, jobID, payload)
}

// PublishAnalyzerStarted emits analyzer.started.
func (p *EventPublisher) PublishAnalyzerStarted(ctx context.Context, jobID string, stage models.StageKey, analyzer string) error {
	payload := AnalyzerStartedPayload{
		Meta:     newMeta(EventTypeAnalyzerStarted),
		JobID:    jobID,
		Stage:    string(stage),
		Analyzer: analyzer,
	}
	return p.publish(ctx, jobID, payload)
}

// PublishAnalyzerCompleted emits analyzer.completed with timing, token,
// and cost accounting.
func (p *EventPublisher) PublishAnalyzerCompleted(ctx context.Context, jobID string, stage models.StageKey, analyzer string, processingTimeMs int64, usage models.TokenUsage, costUSD float64) error {
	payload := AnalyzerCompletedPayload{
		Meta:             newMeta(EventTypeAnalyzerCompleted),
		JobID:            jobID,
		Stage:            string(stage),
		Analyzer:         analyzer,
		ProcessingTimeMs: processingTimeMs,
		TokenUsage:       usage,
		CostUSD:          costUSD,
	}
	return p.publish(ctx, jobID, payload)
}

// PublishAnalyzerError emits analyzer.error.
func (p *EventPublisher) PublishAnalyzerError(ctx context.Context, jobID string, stage models.StageKey, analyzer, errorMessage string, processingTimeMs int64) error {
	payload := AnalyzerErrorPayload{
		Meta:             newMeta(EventTypeAnalyzerError),
		JobID:            jobID,
		Stage:            string(stage),
		Analyzer:         analyzer,
		ErrorMessage:     errorMessage,
		ProcessingTimeMs: processingTimeMs,
	}
	return p.publish(ctx, jobID, payload)
}

// PublishStageCompleted emits stage.completed after a barrier.
func (p *EventPublisher) PublishStageCompleted(ctx context.Context, jobID string, stage models.StageKey) error {
	payload := StageCompletedPayload{
		Meta:  newMeta(EventTypeStageCompleted),
		JobID: jobID,
		Stage: string(stage),
	}
	return p.publish(ctx, jobID, payload)
}

// PublishInsightsUpdated emits insights.updated after aggregation.
func (p *EventPublisher) PublishInsightsUpdated(ctx context.Context, jobID string, counts map[string]int, items int) error {
	payload := InsightsUpdatedPayload{
		Meta:   newMeta(EventTypeInsightsUpdated),
		JobID:  jobID,
		Counts: counts,
		Items:  items,
	}
	return p.publish(ctx, jobID, payload)
}

// PublishJobCompleted emits the terminal job.completed event.
func (p *EventPublisher) PublishJobCompleted(ctx context.Context, jobID string, totalMs int64, usage models.TokenUsage, costUSD float64) error {
	payload := JobCompletedPayload{
		Meta:                  newMeta(EventTypeJobCompleted),
		JobID:                 jobID,
		TotalProcessingTimeMs: totalMs,
		TotalTokenUsage:       usage,
		TotalCostUSD:          costUSD,
	}
	return p.publishWithGlobal(ctx, jobID, payload)
}

// PublishJobError emits the terminal job.error event.
func (p *EventPublisher) PublishJobError(ctx context.Context, jobID, errorCode, message string) error {
	payload := JobErrorPayload{
		Meta:      newMeta(EventTypeJobError),
		JobID:     jobID,
		ErrorCode: errorCode,
		Message:   message,
	}
	return p.publishWithGlobal(ctx, jobID, payload)
}

// --- Internal core ---

func (p *EventPublisher) publish(ctx context.Context, jobID string, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return p.persistAndNotify(ctx, jobID, JobChannel(jobID), payloadJSON)
}

// publishWithGlobal persists to the job channel and additionally sends
// a transient copy to the global jobs channel for list views. The
// global copy is best-effort.
func (p *EventPublisher) publishWithGlobal(ctx context.Context, jobID string, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	var firstErr error
	if err := p.persistAndNotify(ctx, jobID, JobChannel(jobID), payloadJSON); err != nil {
		slog.Warn("Failed to publish event to job channel", "job_id", jobID, "error", err)
		firstErr = err
	}
	if err := p.notifyOnly(ctx, GlobalJobsChannel, payloadJSON); err != nil {
		slog.Warn("Failed to publish event to global channel", "job_id", jobID, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// persistAndNotify stores the event and broadcasts it via NOTIFY in one
// transaction. pg_notify is transactional, so the broadcast fires only
// when the row is durably committed.
func (p *EventPublisher) persistAndNotify(ctx context.Context, jobID, channel string, payloadJSON []byte) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var eventID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO events (job_id, channel, payload, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		jobID, channel, payloadJSON, time.Now(),
	).Scan(&eventID)
	if err != nil {
		return fmt.Errorf("failed to persist event: %w", err)
	}

	notifyPayload, err := injectDBEventIDAndTruncate(payloadJSON, eventID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload); err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event transaction: %w", err)
	}
	return nil
}

// notifyOnly broadcasts without persisting.
func (p *EventPublisher) notifyOnly(ctx context.Context, channel string, payloadJSON []byte) error {
	notifyPayload, err := truncateIfNeeded(string(payloadJSON))
	if err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload); err != nil {
		return fmt.Errorf("pg_notify failed: %w", err)
	}
	return nil
}

// injectDBEventIDAndTruncate adds db_event_id so clients can track
// their catch-up position, then enforces the NOTIFY size limit.
func injectDBEventIDAndTruncate(payloadJSON []byte, dbEventID int64) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(payloadJSON, &m); err != nil {
		return "", fmt.Errorf("failed to unmarshal payload for db_event_id injection: %w", err)
	}
	m["db_event_id"] = dbEventID

	enriched, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal enriched NOTIFY payload: %w", err)
	}
	return truncateIfNeeded(string(enriched))
}

// truncateIfNeeded keeps the payload if it fits PostgreSQL's 8000-byte
// NOTIFY limit, otherwise replaces it with a minimal envelope the
// client can use to fetch the full event from the events table.
func truncateIfNeeded(payloadStr string) (string, error) {
	if len(payloadStr) <= 7900 {
		return payloadStr, nil
	}
	return buildTruncatedPayload([]byte(payloadStr))
}

func buildTruncatedPayload(payloadBytes []byte) (string, error) {
	var routing struct {
		Type      string `json:"type"`
		JobID     string `json:"jobId"`
		DBEventID *int64 `json:"db_event_id,omitempty"`
	}
	if err := json.Unmarshal(payloadBytes, &routing); err != nil {
		return "", fmt.Errorf("failed to extract routing fields for truncation: %w", err)
	}

	truncated := map[string]any{
		"type":      routing.Type,
		"jobId":     routing.JobID,
		"truncated": true,
	}
	if routing.DBEventID != nil {
		truncated["db_event_id"] = *routing.DBEventID
	}

	truncBytes, err := json.Marshal(truncated)
	if err != nil {
		return "", fmt.Errorf("failed to marshal truncated payload: %w", err)
	}
	return string(truncBytes), nil
}
