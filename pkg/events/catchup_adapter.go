package events

import (
	"context"

	"github.com/minuteman-ai/minuteman/pkg/database"
)

// EventServiceAdapter wraps database.EventService to implement CatchupQuerier.
type EventServiceAdapter struct {
	eventService *database.EventService
}

func NewEventServiceAdapter(es *database.EventService) *EventServiceAdapter {
	return &EventServiceAdapter{eventService: es}
}

// GetCatchupEvents queries events since sinceID up to limit.
func (a *EventServiceAdapter) GetCatchupEvents(ctx context.Context, channel string, sinceID, limit int) ([]CatchupEvent, error) {
	events, err := a.eventService.GetEventsSince(ctx, channel, sinceID, limit)
	if err != nil {
		return nil, err
	}

	result := make([]CatchupEvent, len(events))
	for i, evt := range events {
		result[i] = CatchupEvent{
			ID:      evt.ID,
			Payload: evt.Payload,
		}
	}
	return result, nil
}
