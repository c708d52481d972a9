package models

import (
	"fmt"
	"time"
)

// RawMessage is one decoded broker delivery.
type RawMessage struct {
	Topic     string                 `json:"topic"`
	Partition int                    `json:"partition"`
	Offset    int64                  `json:"offset"`
	Key       string                 `json:"key,omitempty"`
	Time      time.Time              `json:"time"`
	Headers   map[string]string      `json:"headers,omitempty"`
	Fields    map[string]interface{} `json:"fields"` // JSON object decoded with UseNumber
}

func (m RawMessage) Field(name string) (interface{}, bool) {
	if m.Fields == nil {
		return nil, false
	}

	value, ok := m.Fields[name]
	return value, ok
}

// IdempotencyKey identifies the delivery position, stable across redeliveries.
func (m RawMessage) IdempotencyKey() string {
	return fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset)
}

func (m RawMessage) Header(name string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[name]
}
