package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is the wire body stored in Redis streams and SQS. Only the job id
// travels through the queue; the job record lives in the result store.
type Message struct {
	JobID      string    `json:"job_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewMessage creates a Message for the given job id stamped with the
// current time.
func NewMessage(jobID string) *Message {
	return &Message{
		JobID:      jobID,
		EnqueuedAt: time.Now().UTC(),
	}
}

func (m *Message) encode() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	return string(data), nil
}

func decodeMessage(data string) (*Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	if m.JobID == "" {
		return nil, fmt.Errorf("message has no job id")
	}
	return &m, nil
}
