package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/richxcame/bus-ledger/pkg/models"
)

func TestAllocateProportional(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	outstanding := map[uuid.UUID]float64{a: 5.00, b: 10.00}

	allocations := AllocateProportional([]uuid.UUID{a, b}, outstanding, 3.00)

	assert.Equal(t, 1.00, allocations[a])
	assert.Equal(t, 2.00, allocations[b])
	assert.InDelta(t, 3.00, allocations[a]+allocations[b], 1e-9)
}

func TestAllocateProportionalLastItemAbsorbsRounding(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	outstanding := map[uuid.UUID]float64{a: 1.00, b: 1.00, c: 1.00}

	allocations := AllocateProportional([]uuid.UUID{a, b, c}, outstanding, 1.00)

	var sum float64
	for _, v := range allocations {
		sum += v
	}
	assert.InDelta(t, 1.00, sum, 1e-9)
}

func newTestBuilder() *Builder {
	return NewBuilder(nil, models.Creator{Scope: models.CreatorScopeUser, ID: uuid.New()}, false, true)
}

func TestBuilderZeroSumAfterFinalize(t *testing.T) {
	b := newTestBuilder()
	companyID := uuid.New()

	ticketA, ticketB := uuid.New(), uuid.New()
	b.push(models.TransactionItem{ID: uuid.New(), ItemType: models.ItemTicketSale, ItemID: &ticketA, Credit: 5.00})
	b.push(models.TransactionItem{ID: uuid.New(), ItemType: models.ItemTicketSale, ItemID: &ticketB, Credit: 10.00})

	err := b.FinalizeForPayment(companyID)
	assert.NoError(t, err)

	assert.InDelta(t, 0, b.ExcessCredit(), ZeroSumTolerance)
	payment := b.ItemsOfType(models.ItemPayment)
	assert.Len(t, payment, 1)
	assert.Equal(t, 15.00, payment[0].Debit)

	transfer := b.ItemsOfType(models.ItemTransfer)
	assert.Len(t, transfer, 1)
	assert.Equal(t, companyID, *transfer[0].CompanyID)
}

func TestBuilderFinalizeRejectsSecondCompany(t *testing.T) {
	b := newTestBuilder()
	assert.NoError(t, b.bindCompany(uuid.New()))
	err := b.FinalizeForPayment(uuid.New())
	assert.Error(t, err)
}

func TestValidateNoDuplicateTicket(t *testing.T) {
	b := newTestBuilder()
	ticket := uuid.New()
	b.push(models.TransactionItem{ID: uuid.New(), ItemType: models.ItemTicketSale, ItemID: &ticket, Credit: 5.00})
	b.push(models.TransactionItem{ID: uuid.New(), ItemType: models.ItemTicketSale, ItemID: &ticket, Credit: 5.00})

	assert.Error(t, b.validateNoDuplicateTicket())
}

func TestValidateZeroSumRejectsImbalance(t *testing.T) {
	b := newTestBuilder()
	ticket := uuid.New()
	b.push(models.TransactionItem{ID: uuid.New(), ItemType: models.ItemTicketSale, ItemID: &ticket, Credit: 5.00})
	b.push(models.TransactionItem{ID: uuid.New(), ItemType: models.ItemPayment, Debit: 4.99})

	assert.Error(t, b.validateZeroSum(ZeroSumTolerance))
}
