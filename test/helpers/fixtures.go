package helpers

import (
	"time"

	"github.com/google/uuid"

	"github.com/richxcame/bus-ledger/pkg/models"
)

// CreateTestCompany creates a transport company with default values.
func CreateTestCompany() *models.TransportCompany {
	return &models.TransportCompany{
		ID:              uuid.New(),
		Name:            "Metro Transit Co",
		SmsOpCode:       "METRO",
		StripeClientID:  "acct_test_live",
		StripeSandboxID: "acct_test_sandbox",
	}
}

// CreateTestRoute creates a route belonging to companyID.
func CreateTestRoute(companyID uuid.UUID) *models.Route {
	return &models.Route{
		ID:                 uuid.New(),
		TransportCompanyID: companyID,
		Tags:               []string{"downtown-express"},
	}
}

// CreateTestTrip creates a two-stop trip on routeID departing in one hour,
// with a 24-hour stop-based booking window, so it is bookable right now.
func CreateTestTrip(routeID uuid.UUID) *models.Trip {
	now := time.Now()
	boardStop := models.TripStop{ID: uuid.New(), Time: now.Add(time.Hour)}
	alightStop := models.TripStop{ID: uuid.New(), Time: now.Add(2 * time.Hour)}
	return &models.Trip{
		ID:             uuid.New(),
		RouteID:        routeID,
		IsRunning:      true,
		SeatsAvailable: 40,
		Price:          12.50,
		BookingInfo: models.BookingInfo{
			WindowType: models.BookingWindowStop,
			WindowSize: int64(24 * time.Hour / time.Millisecond),
		},
		TripStops: []models.TripStop{boardStop, alightStop},
	}
}

// CreateTestTicket creates a valid, undiscounted ticket for userID on tripID.
func CreateTestTicket(userID, tripID, boardStopID, alightStopID uuid.UUID) *models.Ticket {
	return &models.Ticket{
		ID:           uuid.New(),
		UserID:       userID,
		TripID:       tripID,
		BoardStopID:  boardStopID,
		AlightStopID: alightStopID,
		Status:       models.TicketValid,
	}
}

// CreateTestRoutePass creates a valid, undiscounted route pass for userID
// scoped to companyID and tag.
func CreateTestRoutePass(userID, companyID uuid.UUID, tag string, price float64) *models.RoutePass {
	return &models.RoutePass{
		ID:        uuid.New(),
		UserID:    userID,
		CompanyID: companyID,
		Tag:       tag,
		Status:    models.RoutePassValid,
		Price:     price,
	}
}

// CreateTestTransaction creates a committed transaction with the given items,
// attributed to a user creator.
func CreateTestTransaction(txType models.TransactionType, createdBy uuid.UUID, items []models.TransactionItem) *models.Transaction {
	return &models.Transaction{
		ID:          uuid.New(),
		Type:        txType,
		Committed:   true,
		Description: string(txType),
		CreatedBy:   models.Creator{Scope: models.CreatorScopeUser, ID: createdBy},
		CreatedAt:   time.Now(),
		Items:       items,
	}
}

// CreateTestTicketSaleItem creates a ticketSale debit item for a ticket
// priced at amount, attributed to ticketID; CreateTestPaymentItem creates
// the credit that balances it.
func CreateTestTicketSaleItem(ticketID uuid.UUID, amount float64) models.TransactionItem {
	return models.TransactionItem{
		ID:       uuid.New(),
		ItemType: models.ItemTicketSale,
		ItemID:   &ticketID,
		Debit:    amount,
	}
}

// CreateTestPaymentItem creates the offsetting payment credit item for amount.
func CreateTestPaymentItem(amount float64) models.TransactionItem {
	return models.TransactionItem{
		ID:       uuid.New(),
		ItemType: models.ItemPayment,
		Credit:   amount,
	}
}

// CreateTestCharge creates a gateway charge record for amountCents, fully unrefunded.
func CreateTestCharge(amountCents int64) *models.Charge {
	return &models.Charge{
		ID:          "ch_test_" + uuid.NewString(),
		AmountCents: amountCents,
		Source:      "tok_visa",
	}
}
