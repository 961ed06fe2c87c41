// Package audit owns the immutable audit trail. Entries are written once
// and never updated; the only destructive operation is an administrative
// bulk purge, which is never part of the mutation protocol.
package audit

import "time"

// Action enumerates audit entry kinds.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"

	// Domain-specific creation kinds for financial records.
	ActionPayment          Action = "PAYMENT"
	ActionPlacementPayment Action = "PLACEMENT_PAYMENT"
	ActionPlacementCost    Action = "PLACEMENT_COST"
	ActionExpense          Action = "EXPENSE"
)

// Entry represents one recorded state change.
type Entry struct {
	ID       int64          `json:"id"`
	Action   Action         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID int64          `json:"entity_id"`
	Label    string         `json:"label"`
	BatchID  *int64         `json:"batch_id,omitempty"`
	Amount   *float64       `json:"amount,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
	TxnDate  time.Time      `json:"txn_date"`
	ActorID  int64          `json:"actor_id"`
	At       time.Time      `json:"at"`
}

// ListFilters narrows audit listings.
type ListFilters struct {
	Entity string
	Action string
	From   time.Time
	To     time.Time
	Page   int
	Per    int
}
