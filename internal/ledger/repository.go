package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/richxcame/bus-ledger/pkg/models"
)

// Repository is the persistence boundary every ledger workflow builds on. All
// methods accept an explicit pgx.Tx so callers control the isolation level
// and commit/rollback boundary; Repository never opens its own transaction.
type Repository interface {
	// GetTripForUpdate locks and returns a Trip by id, re-reading SeatsAvailable
	// so the caller observes the latest committed value under the surrounding
	// transaction's isolation guarantees.
	GetTripForUpdate(ctx context.Context, tx pgx.Tx, tripID uuid.UUID) (*models.Trip, error)
	GetRoute(ctx context.Context, tx pgx.Tx, routeID uuid.UUID) (*models.Route, error)
	GetCompany(ctx context.Context, tx pgx.Tx, companyID uuid.UUID) (*models.TransportCompany, error)
	// NextUpcomingTripForTag returns the running trip, on any of companyID's
	// routes carrying tag, whose first stop is the earliest one still in the
	// future; a route pass's price is taken from it.
	NextUpcomingTripForTag(ctx context.Context, tx pgx.Tx, companyID uuid.UUID, tag string) (*models.Trip, error)

	InsertTicket(ctx context.Context, tx pgx.Tx, ticket *models.Ticket) error
	UpdateTicketStatus(ctx context.Context, tx pgx.Tx, ticketID uuid.UUID, status models.TicketStatus) error
	AddTicketDiscount(ctx context.Context, tx pgx.Tx, ticketID uuid.UUID, delta float64) error
	GetTicket(ctx context.Context, tx pgx.Tx, ticketID uuid.UUID) (*models.Ticket, error)
	// CountUserTicketsForTrip counts the caller's tickets on tripID whose
	// status is one of statuses, used by the no-duplicates check.
	CountUserTicketsForTrip(ctx context.Context, tx pgx.Tx, userID, tripID uuid.UUID, statuses []models.TicketStatus) (int, error)
	DecrementTripSeats(ctx context.Context, tx pgx.Tx, tripID uuid.UUID, n int) error

	GetValidRoutePasses(ctx context.Context, tx pgx.Tx, userID, companyID uuid.UUID, tag string) ([]*models.RoutePass, error)
	InsertRoutePass(ctx context.Context, tx pgx.Tx, pass *models.RoutePass) error
	UpdateRoutePassStatus(ctx context.Context, tx pgx.Tx, passID uuid.UUID, status models.RoutePassStatus) error
	AddRoutePassDiscount(ctx context.Context, tx pgx.Tx, passID uuid.UUID, delta float64) error
	GetRoutePass(ctx context.Context, tx pgx.Tx, passID uuid.UUID) (*models.RoutePass, error)

	InsertTransaction(ctx context.Context, tx pgx.Tx, txn *models.Transaction) error
	GetTransaction(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Transaction, error)
	SetTransactionCommitted(ctx context.Context, tx pgx.Tx, id uuid.UUID, committed bool) error

	InsertPayment(ctx context.Context, tx pgx.Tx, payment *models.Payment) error
	SetPaymentResult(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID, paymentResource string, data map[string]interface{}) error
}
