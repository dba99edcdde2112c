package models

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"ms-timeline/internal/utils"
)

type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Title     string    `bun:"title,notnull"`
	EventType string    `bun:"event_type,notnull"`
	StartDate time.Time `bun:"start_date,notnull"`
	EndDate   time.Time `bun:"end_date,notnull"`
	Order     int       `bun:"order,notnull,default:0"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// EventResponse is the wire shape of an Event.
type EventResponse struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	EventType string `json:"event_type"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Order     int    `json:"order"`
	CreatedAt string `json:"created_at"`
}

func (e Event) Response() EventResponse {
	return EventResponse{
		ID:        e.ID,
		Title:     e.Title,
		EventType: e.EventType,
		StartDate: utils.FormatTimestamp(e.StartDate),
		EndDate:   utils.FormatTimestamp(e.EndDate),
		Order:     e.Order,
		CreatedAt: utils.FormatTimestamp(e.CreatedAt),
	}
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Response())
}

// ReorderItem is one (id, order) pair of a reorder batch. Both fields are
// pointers so a missing key can be told apart from a zero value.
type ReorderItem struct {
	ID    *int64 `json:"id" validate:"required"`
	Order *int   `json:"order" validate:"required"`
}

// ChangeNotification is published after a committed mutation.
type ChangeNotification struct {
	Action     string          `json:"action"`
	EventID    int64           `json:"event_id,omitempty"`
	Event      *EventResponse  `json:"event,omitempty"`
	Reordered  []ReorderedPair `json:"reordered,omitempty"`
	OccurredAt string          `json:"occurred_at"`
}

type ReorderedPair struct {
	ID    int64 `json:"id"`
	Order int   `json:"order"`
}

const (
	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionDeleted   = "deleted"
	ActionReordered = "reordered"
)
