//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/bus-ledger/internal/booking"
	"github.com/richxcame/bus-ledger/internal/gateway"
	"github.com/richxcame/bus-ledger/internal/ledger"
	"github.com/richxcame/bus-ledger/internal/promotions"
	"github.com/richxcame/bus-ledger/internal/routepasses"
	"github.com/richxcame/bus-ledger/pkg/models"
)

func seedCompanyRouteTrip(t *testing.T, price float64, seats int) (companyID, routeID, tripID, boardStopID, alightStopID uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	companyID = uuid.New()
	_, err := dbPool.Exec(ctx, `
		INSERT INTO transport_companies (id, name, sms_op_code, stripe_client_id, stripe_sandbox_id)
		VALUES ($1, $2, $3, $4, $5)
	`, companyID, "Metro Transit", "METRO", "acct_live", "acct_test")
	require.NoError(t, err)

	routeID = uuid.New()
	_, err = dbPool.Exec(ctx, `
		INSERT INTO routes (id, transport_company_id, tags) VALUES ($1, $2, $3)
	`, routeID, companyID, []string{"downtown-express"})
	require.NoError(t, err)

	tripID = uuid.New()
	_, err = dbPool.Exec(ctx, `
		INSERT INTO trips (id, route_id, is_running, seats_available, price, booking_window_type, booking_window_size_ms)
		VALUES ($1, $2, true, $3, $4, 'stop', 3600000)
	`, tripID, routeID, seats, price)
	require.NoError(t, err)

	now := time.Now()
	boardStopID = uuid.New()
	alightStopID = uuid.New()
	_, err = dbPool.Exec(ctx, `
		INSERT INTO trip_stops (id, trip_id, stop_time) VALUES ($1, $2, $3), ($4, $2, $5)
	`, boardStopID, tripID, now.Add(time.Hour), alightStopID, now.Add(2*time.Hour))
	require.NoError(t, err)

	return
}

func TestPrepareTicketSaleCommitsBalancedTransaction(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()

	_, _, tripID, boardStopID, alightStopID := seedCompanyRouteTrip(t, 15.00, 40)
	userID := uuid.New()

	repo := ledger.NewPostgresRepository()
	promo := promotions.NewApplier(promotions.NewPostgresRuleLookup(dbPool))
	routePasses := routepasses.NewApplier(repo)
	gw := gateway.NewMockGateway()
	workflow := booking.NewSaleWorkflow(dbPool, repo, promo, routePasses, gw, "test", false)

	txn, _, err := workflow.Prepare(ctx, booking.SaleRequest{
		Trips: []ledger.TicketSaleRequest{
			{TripID: tripID, BoardStopID: boardStopID, AlightStopID: alightStopID, UserID: userID},
		},
		Checks:     booking.DefaultChecks(),
		Creator:    models.Creator{Scope: models.CreatorScopeUser, ID: userID},
		Committed:  true,
		Type:       models.TransactionTicketPurchase,
		SessionIat: "169000",
	})
	require.NoError(t, err)
	require.NotNil(t, txn)
	require.InDelta(t, 0, txn.ZeroSum(), 1e-6)

	var seatsAvailable int
	err = dbPool.QueryRow(ctx, `SELECT seats_available FROM trips WHERE id = $1`, tripID).Scan(&seatsAvailable)
	require.NoError(t, err)
	require.Equal(t, 39, seatsAvailable)

	var paymentResource string
	err = dbPool.QueryRow(ctx, `SELECT payment_resource FROM payments WHERE transaction_id = $1`, txn.ID).Scan(&paymentResource)
	require.NoError(t, err)
	require.NotEmpty(t, paymentResource)
}

func TestPrepareTicketSaleRejectsDuplicateBooking(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()

	_, _, tripID, boardStopID, alightStopID := seedCompanyRouteTrip(t, 10.00, 40)
	userID := uuid.New()

	repo := ledger.NewPostgresRepository()
	promo := promotions.NewApplier(promotions.NewPostgresRuleLookup(dbPool))
	routePasses := routepasses.NewApplier(repo)
	workflow := booking.NewSaleWorkflow(dbPool, repo, promo, routePasses, gateway.NewMockGateway(), "test", false)

	req := booking.SaleRequest{
		Trips: []ledger.TicketSaleRequest{
			{TripID: tripID, BoardStopID: boardStopID, AlightStopID: alightStopID, UserID: userID},
		},
		Checks:    booking.DefaultChecks(),
		Creator:   models.Creator{Scope: models.CreatorScopeUser, ID: userID},
		Committed: true,
		Type:      models.TransactionTicketPurchase,
	}

	_, _, err := workflow.Prepare(ctx, req)
	require.NoError(t, err)

	_, _, err = workflow.Prepare(ctx, req)
	require.Error(t, err)
}
