// Package comms provides the in-process event bus that fans out planner
// activity to live subscribers such as the /events stream.
package comms

import (
	"context"
	"encoding/json"
	"time"
)

// Topic identifies the kind of event.
type Topic string

const (
	TopicTaskCreated            Topic = "task.created"             // a task was estimated and stored
	TopicTaskUpdated            Topic = "task.updated"             // mutable fields or status changed
	TopicTaskDeleted            Topic = "task.deleted"             // a task was removed
	TopicTaskCompleted          Topic = "task.completed"           // a completion was recorded
	TopicRecommendationComputed Topic = "recommendation.generated" // a daily recommendation was produced
	TopicCalendarChanged        Topic = "calendar.changed"         // fixed commitments were added or removed

	// TopicAll subscribes to every topic.
	TopicAll Topic = "*"
)

// Event is a single notification on the bus.
type Event struct {
	ID        string          `json:"id"`
	Topic     Topic           `json:"topic"`
	Subject   string          `json:"subject,omitempty"` // task or commitment ID
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Handler processes a delivered event.
type Handler func(ctx context.Context, ev *Event) error

// Bus delivers events to subscribers and keeps a short history.
type Bus interface {
	// Publish records the event and delivers it to subscribers of its topic
	// and of TopicAll.
	Publish(ctx context.Context, ev *Event) error

	// Subscribe registers a handler for topic. Returns an unsubscribe function.
	Subscribe(topic Topic, handler Handler) (unsubscribe func())

	// History returns up to limit recent events for topic, oldest first.
	History(topic Topic, limit int) ([]*Event, error)
}
