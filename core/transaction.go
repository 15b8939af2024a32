package core

import (
	"context"
	"time"
)

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

const (
	// TransactionPending indicates the transaction is open and accepting
	// operations.
	TransactionPending TransactionStatus = "pending"
	// TransactionCommitted indicates every operation executed successfully.
	TransactionCommitted TransactionStatus = "committed"
	// TransactionRolledBack indicates an operation failed and previously
	// executed operations were undone in reverse order.
	TransactionRolledBack TransactionStatus = "rolled_back"
)

// OperationFunc is one side (execute or undo) of a transactional operation.
type OperationFunc func(ctx context.Context) error

// Operation is a single undoable step inside a transaction. Operations are
// appended without executing; Commit runs Execute in append order and, on
// failure, Undo in reverse order for every already-executed operation.
type Operation struct {
	Type    string         `json:"type"`
	Target  string         `json:"target"`
	Params  map[string]any `json:"params,omitempty"`
	Execute OperationFunc  `json:"-"`
	Undo    OperationFunc  `json:"-"`
}

// Transaction groups operations into an atomically committed or rolled-back
// unit on behalf of one or more workstreams.
type Transaction struct {
	ID          string            `json:"id"`
	Workstreams []string          `json:"workstreams"`
	Operations  []Operation       `json:"operations"`
	Status      TransactionStatus `json:"status"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     *time.Time        `json:"end_time,omitempty"`
}

// Clone returns a copy safe for the caller to retain. Operation funcs are
// shared; the descriptor slices are not.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	nt := *t
	nt.Workstreams = append([]string(nil), t.Workstreams...)
	nt.Operations = append([]Operation(nil), t.Operations...)
	if t.EndTime != nil {
		et := *t.EndTime
		nt.EndTime = &et
	}
	return &nt
}
