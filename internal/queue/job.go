// Package queue defines the job envelope shared by every queue backend and
// the routing of jobs to their handlers.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindScanScheme       Kind = "scan-scheme"
	KindSendNotification Kind = "send-notification"
)

// Job is the single envelope carried by the queue. Attempt counts failed
// deliveries so far; a freshly published job has Attempt 0.
type Job struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

type ScanSchemePayload struct {
	SchemeID string `json:"schemeId"`
}

type SendNotificationPayload struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// NewJob marshals payload into a fresh envelope.
func NewJob(kind Kind, payload any, now time.Time) (Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    raw,
		EnqueuedAt: now.UTC(),
	}, nil
}

// Decode unmarshals the payload into v.
func (j Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Kind, err)
	}
	return nil
}

// Encode returns the wire form of the envelope.
func (j Job) Encode() ([]byte, error) {
	return json.Marshal(j)
}

// DecodeJob parses a wire envelope.
func DecodeJob(raw []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(raw, &j); err != nil {
		return Job{}, fmt.Errorf("decode job envelope: %w", err)
	}
	if j.Kind == "" {
		return Job{}, fmt.Errorf("decode job envelope: missing kind")
	}
	return j, nil
}
