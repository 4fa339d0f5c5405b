package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Change actions carried by RecordChangeMessage.
const (
	ActionSaved   = "saved"
	ActionDeleted = "deleted"
)

// RecordChangeMessage announces a store mutation. It carries identifiers only;
// consumers re-read the records they need.
type RecordChangeMessage struct {
	Action    string    `json:"action"`
	RecordID  string    `json:"recordId"`
	Month     string    `json:"month,omitempty"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordChangeMessage(action, recordID, month string, version uint64) *RecordChangeMessage {
	return &RecordChangeMessage{
		Action:    action,
		RecordID:  recordID,
		Month:     month,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

func (m *RecordChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordChangeMessageFromJSON decodes and checks a message body.
func RecordChangeMessageFromJSON(data []byte) (*RecordChangeMessage, error) {
	var msg RecordChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Action != ActionSaved && msg.Action != ActionDeleted {
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
	if msg.RecordID == "" {
		return nil, fmt.Errorf("missing record id")
	}
	return &msg, nil
}
