package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ImportedMessage announces that a batch of transactions landed for a user.
// It carries only identifiers and counts; consumers fetch the rows from the
// database so the queue never holds financial data.
type ImportedMessage struct {
	BatchID   string    `json:"batchId"`
	UserID    int64     `json:"userId"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// NewImportedMessage creates an import notification with a fresh batch ID
func NewImportedMessage(userID int64, count int) *ImportedMessage {
	return &ImportedMessage{
		BatchID:   uuid.NewString(),
		UserID:    userID,
		Count:     count,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ImportedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ImportedMessageFromJSON creates a message from JSON bytes
func ImportedMessageFromJSON(data []byte) (*ImportedMessage, error) {
	var msg ImportedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
