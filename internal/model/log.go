package model

import "time"

// EventType names an inbound bot event.
type EventType string

const (
	EventQuery    EventType = "query"
	EventCollect  EventType = "collect"
	EventDispatch EventType = "dispatch"
	EventCancel   EventType = "cancel"
)

// EventLog represents a record in the event audit log.
type EventLog struct {
	EventID      string    `json:"event_id" bson:"event_id"`
	RequestID    string    `json:"request_id,omitempty" bson:"request_id,omitempty"`
	Type         EventType `json:"type" bson:"type"`
	IPAddress    string    `json:"ip_address" bson:"ip_address"`
	BotID        int64     `json:"bot_id,omitempty" bson:"bot_id,omitempty"`
	Username     string    `json:"username,omitempty" bson:"username,omitempty"`
	Status       string    `json:"status" bson:"status"` // 'success' or 'failed'
	StatusCode   int       `json:"status_code" bson:"status_code"`
	ItemCount    int       `json:"item_count" bson:"item_count"`
	ErrorMessage string    `json:"error_message,omitempty" bson:"error_message,omitempty"`
	DurationMs   int64     `json:"duration_ms" bson:"duration_ms"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}
