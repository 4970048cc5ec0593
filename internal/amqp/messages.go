package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// ChangeEvent announces that a user's ledger changed. It carries identifiers
// only; consumers re-read the ledger instead of applying the event.
type ChangeEvent struct {
	Type          ChangeType `json:"type"`
	TransactionID string     `json:"transaction_id"`
	UserID        string     `json:"user_id"`
	Email         string     `json:"email"`
	Timestamp     time.Time  `json:"timestamp"`
}

func NewChangeEvent(t ChangeType, transactionID, userID, email string) *ChangeEvent {
	return &ChangeEvent{
		Type:          t,
		TransactionID: transactionID,
		UserID:        userID,
		Email:         email,
		Timestamp:     time.Now(),
	}
}

func (m *ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeEventFromJSON decodes an event and rejects unknown change types.
func ChangeEventFromJSON(data []byte) (*ChangeEvent, error) {
	var msg ChangeEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case ChangeCreated, ChangeUpdated, ChangeDeleted:
	default:
		return nil, fmt.Errorf("unknown change type %q", msg.Type)
	}
	return &msg, nil
}
