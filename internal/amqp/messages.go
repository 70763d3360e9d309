package amqp

import (
	"encoding/json"
	"time"
)

// BudgetAlertMessage notifies the alert worker that a user's spend
// crossed their budget alert threshold. It carries the usage snapshot at
// publish time; the worker does not re-query the ledger.
type BudgetAlertMessage struct {
	UserID      int64     `json:"user_id"`
	Month       int       `json:"month"`
	Year        int       `json:"year"`
	LimitAmount string    `json:"limit_amount"`
	SpentAmount string    `json:"spent_amount"`
	UsedPercent float64   `json:"used_percent"`
	Threshold   int       `json:"threshold"`
	OverLimit   bool      `json:"over_limit"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewBudgetAlertMessage creates an alert message stamped with the current time
func NewBudgetAlertMessage(userID int64, month, year int, limit, spent string, usedPercent float64, threshold int, overLimit bool) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		UserID:      userID,
		Month:       month,
		Year:        year,
		LimitAmount: limit,
		SpentAmount: spent,
		UsedPercent: usedPercent,
		Threshold:   threshold,
		OverLimit:   overLimit,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BudgetAlertMessageFromJSON creates a message from JSON bytes
func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
