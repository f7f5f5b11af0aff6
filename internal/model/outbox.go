package model

import (
	"encoding/json"
	"time"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Patient change event types
const (
	EventPatientCreated = "PATIENT_CREATED"
	EventPatientUpdated = "PATIENT_UPDATED"
	EventPatientDeleted = "PATIENT_DELETED"
)

type OutboxEvent struct {
	ID           string          `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// PatientEvent is the payload published for patient changes. It never
// carries the document payload.
type PatientEvent struct {
	ID     int64    `json:"id"`
	PID    string   `json:"pid,omitempty"`
	Fields []string `json:"fields,omitempty"`
}
