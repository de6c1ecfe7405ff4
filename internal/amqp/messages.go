package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// WorksheetSyncMessage announces a committed write to a worksheet. It carries
// no row data: the consumer reads the current worksheet from the database.
type WorksheetSyncMessage struct {
	WriteID   string    `json:"write_id"`
	Worksheet string    `json:"worksheet"`
	Kind      string    `json:"kind"`
	RowCount  int       `json:"row_count"`
	Timestamp time.Time `json:"timestamp"`
}

// NewWorksheetSyncMessage creates a sync message for one journaled write.
func NewWorksheetSyncMessage(writeID, worksheet, kind string, rowCount int) *WorksheetSyncMessage {
	return &WorksheetSyncMessage{
		WriteID:   writeID,
		Worksheet: worksheet,
		Kind:      kind,
		RowCount:  rowCount,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *WorksheetSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// WorksheetSyncMessageFromJSON decodes and checks a message body.
func WorksheetSyncMessageFromJSON(data []byte) (*WorksheetSyncMessage, error) {
	var msg WorksheetSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.WriteID == "" || msg.Worksheet == "" {
		return nil, errors.New("sync message without write id or worksheet")
	}
	return &msg, nil
}
