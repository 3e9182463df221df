package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/richxcame/bus-ledger/pkg/models"
)

// AssertZeroSum asserts that a transaction's debits and credits balance
// within the engine's zero-sum tolerance.
func AssertZeroSum(t *testing.T, tx *models.Transaction) {
	assert.InDelta(t, 0, tx.ZeroSum(), 1e-6, "transaction %s is not balanced", tx.ID)
}

// AssertTicketStatus asserts a ticket carries the expected status.
func AssertTicketStatus(t *testing.T, ticket *models.Ticket, status models.TicketStatus) {
	assert.Equal(t, status, ticket.Status)
}

// AssertRoutePassStatus asserts a route pass carries the expected status.
func AssertRoutePassStatus(t *testing.T, pass *models.RoutePass, status models.RoutePassStatus) {
	assert.Equal(t, status, pass.Status)
}

// AssertChargeBalance asserts a charge's remaining unrefunded balance, in cents.
func AssertChargeBalance(t *testing.T, charge *models.Charge, wantCents int64) {
	assert.Equal(t, wantCents, charge.BalanceCents())
}
