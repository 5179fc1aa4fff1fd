package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventExpenseAdded   EventType = "expense_added"
	EventExpenseDeleted EventType = "expense_deleted"
)

// LedgerEvent announces a committed ledger change. It carries identifiers
// only; consumers read the current ledger from the database.
type LedgerEvent struct {
	Type       EventType `json:"type"`
	UserID     int64     `json:"user_id"`
	ExpenseID  int64     `json:"expense_id"`
	Recomputed int       `json:"recomputed,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewExpenseAddedEvent(userID, expenseID int64) *LedgerEvent {
	return &LedgerEvent{
		Type:      EventExpenseAdded,
		UserID:    userID,
		ExpenseID: expenseID,
		Timestamp: time.Now(),
	}
}

// NewExpenseDeletedEvent records a delete and how many running totals it rewrote.
func NewExpenseDeletedEvent(userID, expenseID int64, recomputed int) *LedgerEvent {
	return &LedgerEvent{
		Type:       EventExpenseDeleted,
		UserID:     userID,
		ExpenseID:  expenseID,
		Recomputed: recomputed,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and rejects unknown types.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	switch ev.Type {
	case EventExpenseAdded, EventExpenseDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return &ev, nil
}
