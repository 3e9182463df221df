package eventbus

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SubjectTransactionCommitted is the subject for a committed Transaction.
	// cmd/server subscribes to it; neither Builder.Build nor any workflow in
	// this repository publishes on it.
	SubjectTransactionCommitted = "ledger.transaction.committed"
	// SubjectTransactionUndone is the subject for a replayed UndoFunc.
	// cmd/server subscribes to it; UndoFunc does not publish on it.
	SubjectTransactionUndone = "ledger.transaction.undone"
)

// TransactionCommittedData is the payload of SubjectTransactionCommitted.
type TransactionCommittedData struct {
	TransactionID uuid.UUID `json:"transactionId"`
	Type          string    `json:"type"`
	CompanyID     uuid.UUID `json:"companyId,omitempty"`
	CommittedAt   time.Time `json:"committedAt"`
}

// TransactionUndoneData is the payload of SubjectTransactionUndone.
type TransactionUndoneData struct {
	TransactionID uuid.UUID `json:"transactionId"`
	UndoneAt      time.Time `json:"undoneAt"`
}
