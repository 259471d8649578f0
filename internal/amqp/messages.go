package amqp

import (
	"encoding/json"
	"time"

	"rapport/internal/report"
)

// LedgerSyncMessage asks the worker to copy one locally stored ledger row
// to the remote spreadsheet. The worker loads the row itself.
type LedgerSyncMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerSyncMessage creates a new sync message for a stored row id
func NewLedgerSyncMessage(id int64) *LedgerSyncMessage {
	return &LedgerSyncMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerSyncMessageFromJSON creates a message from JSON bytes
func LedgerSyncMessageFromJSON(data []byte) (*LedgerSyncMessage, error) {
	var msg LedgerSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReportFinalizedMessage announces a report that reached the ledger, for
// consumers rendering or mailing it.
type ReportFinalizedMessage struct {
	Report    report.Event `json:"report"`
	Timestamp time.Time    `json:"timestamp"`
}

func (m *ReportFinalizedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReportFinalizedMessageFromJSON(data []byte) (*ReportFinalizedMessage, error) {
	var msg ReportFinalizedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
