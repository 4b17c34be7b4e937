package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// OutboxEvent is a message written in the same transaction as the change it
// announces and published later by the worker.
type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
}

// OfficeEventMessage is the payload published for every recorded office event.
type OfficeEventMessage struct {
	ID        uuid.UUID       `json:"id"`
	Date      time.Time       `json:"date"`
	Clazz     string          `json:"clazz"`
	Type      OfficeEventType `json:"type"`
	Comment   string          `json:"comment,omitempty"`
	Reference *int64          `json:"reference,omitempty"`
	EntityID  *uuid.UUID      `json:"entity_id,omitempty"`
	UserID    uuid.UUID       `json:"user"`
}

// NewOfficeEventMessage builds the outbox payload of a cleaned event.
func NewOfficeEventMessage(e *OfficeEvent) OfficeEventMessage {
	msg := OfficeEventMessage{
		ID:        e.ID,
		Clazz:     e.Clazz,
		Type:      e.Type,
		Comment:   e.Comment,
		Reference: e.Reference,
		EntityID:  e.EntityID,
		UserID:    e.UserID,
	}
	if e.Date != nil {
		msg.Date = *e.Date
	}
	return msg
}
