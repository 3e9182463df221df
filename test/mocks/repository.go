package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"github.com/richxcame/bus-ledger/pkg/models"
)

// MockRepository is a testify mock of internal/ledger.Repository, used to
// unit test workflows without a live Postgres connection. Tests stub only
// the calls their scenario exercises; anything unstubbed panics via
// testify's "mock: I don't know what to return" message.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetTripForUpdate(ctx context.Context, tx pgx.Tx, tripID uuid.UUID) (*models.Trip, error) {
	args := m.Called(ctx, tx, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Trip), args.Error(1)
}

func (m *MockRepository) GetRoute(ctx context.Context, tx pgx.Tx, routeID uuid.UUID) (*models.Route, error) {
	args := m.Called(ctx, tx, routeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Route), args.Error(1)
}

func (m *MockRepository) GetCompany(ctx context.Context, tx pgx.Tx, companyID uuid.UUID) (*models.TransportCompany, error) {
	args := m.Called(ctx, tx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransportCompany), args.Error(1)
}

func (m *MockRepository) NextUpcomingTripForTag(ctx context.Context, tx pgx.Tx, companyID uuid.UUID, tag string) (*models.Trip, error) {
	args := m.Called(ctx, tx, companyID, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Trip), args.Error(1)
}

func (m *MockRepository) InsertTicket(ctx context.Context, tx pgx.Tx, ticket *models.Ticket) error {
	args := m.Called(ctx, tx, ticket)
	return args.Error(0)
}

func (m *MockRepository) UpdateTicketStatus(ctx context.Context, tx pgx.Tx, ticketID uuid.UUID, status models.TicketStatus) error {
	args := m.Called(ctx, tx, ticketID, status)
	return args.Error(0)
}

func (m *MockRepository) AddTicketDiscount(ctx context.Context, tx pgx.Tx, ticketID uuid.UUID, delta float64) error {
	args := m.Called(ctx, tx, ticketID, delta)
	return args.Error(0)
}

func (m *MockRepository) GetTicket(ctx context.Context, tx pgx.Tx, ticketID uuid.UUID) (*models.Ticket, error) {
	args := m.Called(ctx, tx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockRepository) CountUserTicketsForTrip(ctx context.Context, tx pgx.Tx, userID, tripID uuid.UUID, statuses []models.TicketStatus) (int, error) {
	args := m.Called(ctx, tx, userID, tripID, statuses)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) DecrementTripSeats(ctx context.Context, tx pgx.Tx, tripID uuid.UUID, n int) error {
	args := m.Called(ctx, tx, tripID, n)
	return args.Error(0)
}

func (m *MockRepository) GetValidRoutePasses(ctx context.Context, tx pgx.Tx, userID, companyID uuid.UUID, tag string) ([]*models.RoutePass, error) {
	args := m.Called(ctx, tx, userID, companyID, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RoutePass), args.Error(1)
}

func (m *MockRepository) InsertRoutePass(ctx context.Context, tx pgx.Tx, pass *models.RoutePass) error {
	args := m.Called(ctx, tx, pass)
	return args.Error(0)
}

func (m *MockRepository) UpdateRoutePassStatus(ctx context.Context, tx pgx.Tx, passID uuid.UUID, status models.RoutePassStatus) error {
	args := m.Called(ctx, tx, passID, status)
	return args.Error(0)
}

func (m *MockRepository) AddRoutePassDiscount(ctx context.Context, tx pgx.Tx, passID uuid.UUID, delta float64) error {
	args := m.Called(ctx, tx, passID, delta)
	return args.Error(0)
}

func (m *MockRepository) GetRoutePass(ctx context.Context, tx pgx.Tx, passID uuid.UUID) (*models.RoutePass, error) {
	args := m.Called(ctx, tx, passID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RoutePass), args.Error(1)
}

func (m *MockRepository) InsertTransaction(ctx context.Context, tx pgx.Tx, txn *models.Transaction) error {
	args := m.Called(ctx, tx, txn)
	return args.Error(0)
}

func (m *MockRepository) GetTransaction(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockRepository) SetTransactionCommitted(ctx context.Context, tx pgx.Tx, id uuid.UUID, committed bool) error {
	args := m.Called(ctx, tx, id, committed)
	return args.Error(0)
}

func (m *MockRepository) InsertPayment(ctx context.Context, tx pgx.Tx, payment *models.Payment) error {
	args := m.Called(ctx, tx, payment)
	return args.Error(0)
}

func (m *MockRepository) SetPaymentResult(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID, paymentResource string, data map[string]interface{}) error {
	args := m.Called(ctx, tx, paymentID, paymentResource, data)
	return args.Error(0)
}
