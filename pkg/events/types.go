// Package events provides real-time job progress delivery via WebSocket
// and PostgreSQL NOTIFY/LISTEN for cross-pod distribution.
//
// Every pipeline event is persisted to the events table and broadcast
// via NOTIFY in one transaction. Subscribers that connect late (or
// reconnect) receive missed events through the catch-up protocol and
// must reconcile with the job status endpoint.
package events

// Persistent event types (stored in DB + NOTIFY).
const (
	EventTypeJobQueued    = "job.queued"
	EventTypeJobCompleted = "job.completed"
	EventTypeJobError     = "job.error"

	EventTypeAnalyzerStarted   = "analyzer.started"
	EventTypeAnalyzerCompleted = "analyzer.completed"
	EventTypeAnalyzerError     = "analyzer.error"

	EventTypeStageCompleted = "stage.completed"

	EventTypeInsightsUpdated = "insights.updated"
)

// GlobalJobsChannel carries job lifecycle events for dashboards that
// watch all jobs rather than a single one.
const GlobalJobsChannel = "jobs"

// JobChannel returns the progress channel for one job.
// Format: "job:{job_id}"
func JobChannel(jobID string) string {
	return "job:" + jobID
}

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action      string `json:"action"`                  // "subscribe", "unsubscribe", "catchup", "ping"
	Channel     string `json:"channel,omitempty"`       // Channel name (e.g. "job:abc-123")
	LastEventID *int   `json:"last_event_id,omitempty"` // For catchup
}
