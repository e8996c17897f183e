package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event is a single structured audit record, emitted as one JSON line.
type Event struct {
	EventID       string    `json:"event_id"`
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	TransactionID int64     `json:"transaction_id"`
	AccountID     int64     `json:"account_id,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	Status        string    `json:"status"`
	Details       any       `json:"details,omitempty"`
}

type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogApproval(transactionID, accountID int64, amount decimal.Decimal, actor string) {
	a.log(Event{
		EventID:       uuid.NewString(),
		Timestamp:     time.Now(),
		EventType:     "APPROVE",
		TransactionID: transactionID,
		AccountID:     accountID,
		Amount:        amount.StringFixed(2),
		Actor:         actor,
		Status:        "SUCCESS",
	})
}

func (a *Logger) LogRejection(transactionID int64, actor string) {
	a.log(Event{
		EventID:       uuid.NewString(),
		Timestamp:     time.Now(),
		EventType:     "REJECT",
		TransactionID: transactionID,
		Actor:         actor,
		Status:        "SUCCESS",
	})
}

func (a *Logger) LogError(transactionID int64, actor string, err error) {
	a.log(Event{
		EventID:       uuid.NewString(),
		Timestamp:     time.Now(),
		EventType:     "ERROR",
		TransactionID: transactionID,
		Actor:         actor,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
