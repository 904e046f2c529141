package stream

import (
	"github.com/steventanyang/deployable/internal/types"
)

// EventType tags one analysis event on the wire.
type EventType string

const (
	EventProgress       EventType = "progress"
	EventRecommendation EventType = "recommendation"
	EventComplete       EventType = "complete"
	EventHeartbeat      EventType = "heartbeat"
	EventError          EventType = "error"
)

// knownEventTypes guards the generator loop: events with an unrecognized
// tag are dropped with a warning instead of being forwarded.
var knownEventTypes = map[EventType]bool{
	EventProgress:       true,
	EventRecommendation: true,
	EventComplete:       true,
	EventHeartbeat:      true,
	EventError:          true,
}

// ProgressPayload reports one finished chunk.
type ProgressPayload struct {
	ChunkIndex           int      `json:"chunk_index"`
	Files                []string `json:"files"`
	RecommendationsCount int      `json:"recommendations_count"`
}

// CompletePayload carries the full merged result set.
type CompletePayload struct {
	Recommendations   []types.Recommendation `json:"recommendations"`
	AnalysisTimestamp string                 `json:"analysis_timestamp"`
}

// ErrorPayload terminates a stream whose analysis failed, so connected
// consumers are not left waiting on a complete event that never comes.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Event is the tagged union delivered over one analysis stream. Exactly
// one payload field matches the Type; the rest are nil.
type Event struct {
	Type           EventType              `json:"type"`
	Progress       *ProgressPayload       `json:"progress,omitempty"`
	Recommendation *types.Recommendation  `json:"recommendation,omitempty"`
	Complete       *CompletePayload       `json:"complete,omitempty"`
	Error          *ErrorPayload          `json:"error,omitempty"`
}

// IsTerminal reports whether this event ends the stream.
func (e Event) IsTerminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// NewProgressEvent builds a progress event for one finished chunk.
func NewProgressEvent(chunkIndex int, files []string, count int) Event {
	return Event{
		Type: EventProgress,
		Progress: &ProgressPayload{
			ChunkIndex:           chunkIndex,
			Files:                files,
			RecommendationsCount: count,
		},
	}
}

// NewRecommendationEvent wraps one individual finding.
func NewRecommendationEvent(rec types.Recommendation) Event {
	return Event{Type: EventRecommendation, Recommendation: &rec}
}

// NewCompleteEvent carries the merged recommendation list and completion
// timestamp.
func NewCompleteEvent(recs []types.Recommendation, timestamp string) Event {
	return Event{
		Type: EventComplete,
		Complete: &CompletePayload{
			Recommendations:   recs,
			AnalysisTimestamp: timestamp,
		},
	}
}

// NewErrorEvent terminates a failed stream.
func NewErrorEvent(message string) Event {
	return Event{Type: EventError, Error: &ErrorPayload{Message: message}}
}

// NewHeartbeatEvent is the keep-alive emitted when no real event arrives
// within the wait timeout.
func NewHeartbeatEvent() Event {
	return Event{Type: EventHeartbeat}
}
