package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"backoffice/internal/core"
)

// OccurrenceCreatedMessage announces a newly persisted occurrence.
// Consumers fetch the full record from the store by OccurrenceID.
type OccurrenceCreatedMessage struct {
	OccurrenceID   string    `json:"occurrence_id"`
	SourceID       string    `json:"source_id"`
	OwnerID        string    `json:"owner_id,omitempty"`
	OccurrenceDate string    `json:"occurrence_date"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewOccurrenceCreatedMessage(o core.Occurrence) *OccurrenceCreatedMessage {
	return &OccurrenceCreatedMessage{
		OccurrenceID:   o.ID,
		SourceID:       o.SourceID,
		OwnerID:        o.OwnerID,
		OccurrenceDate: o.OccurrenceDate.String(),
		Timestamp:      time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *OccurrenceCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// OccurrenceCreatedMessageFromJSON decodes a message and checks it names an occurrence.
func OccurrenceCreatedMessageFromJSON(data []byte) (*OccurrenceCreatedMessage, error) {
	var msg OccurrenceCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OccurrenceID == "" {
		return nil, errors.New("occurrence message without occurrence_id")
	}
	return &msg, nil
}
