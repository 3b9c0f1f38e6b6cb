package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"spendsmart/internal/core"
)

type EventKind string

const (
	TransactionCreated EventKind = "transaction.created"
	TransactionUpdated EventKind = "transaction.updated"
	TransactionDeleted EventKind = "transaction.deleted"
	BudgetSet          EventKind = "budget.set"
)

// LedgerEvent describes one ledger mutation. Transaction is set for the
// transaction kinds (only its ID for deletions), Budget for BudgetSet.
type LedgerEvent struct {
	Kind        EventKind         `json:"kind"`
	Owner       int64             `json:"owner"`
	Transaction *core.Transaction `json:"transaction,omitempty"`
	Budget      *core.Budget      `json:"budget,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

func NewTransactionEvent(kind EventKind, tx core.Transaction) *LedgerEvent {
	return &LedgerEvent{
		Kind:        kind,
		Owner:       tx.OwnerID,
		Transaction: &tx,
		Timestamp:   time.Now(),
	}
}

func NewBudgetEvent(b core.Budget) *LedgerEvent {
	return &LedgerEvent{
		Kind:      BudgetSet,
		Owner:     b.OwnerID,
		Budget:    &b,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and checks an event. Owner ids are copied
// into the embedded records, which do not serialise them.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Kind {
	case TransactionCreated, TransactionUpdated, TransactionDeleted:
		if e.Transaction == nil || e.Transaction.ID <= 0 {
			return nil, fmt.Errorf("%s event without transaction id", e.Kind)
		}
		e.Transaction.OwnerID = e.Owner
	case BudgetSet:
		if e.Budget == nil {
			return nil, fmt.Errorf("%s event without budget", e.Kind)
		}
		e.Budget.OwnerID = e.Owner
	default:
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return &e, nil
}
