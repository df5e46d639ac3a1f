package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event is one persisted progress event.
type Event struct {
	ID      int
	Payload map[string]any
}

// EventService queries and prunes the persisted event stream.
type EventService struct {
	db *sql.DB
}

func NewEventService(client *Client) *EventService {
	return &EventService{db: client.DB()}
}

// GetEventsSince returns up to limit events on a channel with ID
// greater than sinceID, oldest first. Backs the WebSocket catch-up
// protocol.
func (s *EventService) GetEventsSince(ctx context.Context, channel string, sinceID, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload FROM events WHERE channel = $1 AND id > $2 ORDER BY id ASC LIMIT $3`,
		channel, sinceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			evt Event
			raw []byte
		)
		if err := rows.Scan(&evt.ID, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal(raw, &evt.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode event %d payload: %w", evt.ID, err)
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// CleanupJobEvents removes all events for one job.
func (s *EventService) CleanupJobEvents(ctx context.Context, jobID string) (int, error) {
	writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(writeCtx, `DELETE FROM events WHERE job_id = $1`, jobID)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup job events: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CleanupExpiredEvents removes events older than the retention window.
// Run periodically so the table tracks the job store's sliding TTL.
func (s *EventService) CleanupExpiredEvents(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl)

	writeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(writeCtx, `DELETE FROM events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired events: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
