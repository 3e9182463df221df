//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/bus-ledger/internal/auth"
	"github.com/richxcame/bus-ledger/internal/booking"
	"github.com/richxcame/bus-ledger/internal/gateway"
	"github.com/richxcame/bus-ledger/internal/ledger"
	"github.com/richxcame/bus-ledger/internal/promotions"
	"github.com/richxcame/bus-ledger/internal/refunds"
	"github.com/richxcame/bus-ledger/internal/routepasses"
	"github.com/richxcame/bus-ledger/pkg/models"
)

func TestRefundTicketIssuesGatewayRefund(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()

	_, _, tripID, boardStopID, alightStopID := seedCompanyRouteTrip(t, 15.00, 40)
	userID := uuid.New()

	repo := ledger.NewPostgresRepository()
	promo := promotions.NewApplier(promotions.NewPostgresRuleLookup(dbPool))
	routePasses := routepasses.NewApplier(repo)
	gw := gateway.NewMockGateway()
	saleWorkflow := booking.NewSaleWorkflow(dbPool, repo, promo, routePasses, gw, "test", false)

	saleTxn, _, err := saleWorkflow.Prepare(ctx, booking.SaleRequest{
		Trips: []ledger.TicketSaleRequest{
			{TripID: tripID, BoardStopID: boardStopID, AlightStopID: alightStopID, UserID: userID},
		},
		Checks:     booking.DefaultChecks(),
		Creator:    models.Creator{Scope: models.CreatorScopeUser, ID: userID},
		Committed:  true,
		Type:       models.TransactionTicketPurchase,
		SessionIat: "169002",
	})
	require.NoError(t, err)

	var ticketID uuid.UUID
	for _, item := range saleTxn.ItemsOfType(models.ItemTicketSale) {
		require.NotNil(t, item.ItemID)
		ticketID = *item.ItemID
	}
	require.NotEqual(t, uuid.Nil, ticketID)

	_, err = dbPool.Exec(ctx, `UPDATE tickets SET status = 'valid' WHERE id = $1`, ticketID)
	require.NoError(t, err)

	var paymentResource string
	var isMicro bool
	err = dbPool.QueryRow(ctx, `SELECT payment_resource, is_micro FROM payments WHERE transaction_id = $1`, saleTxn.ID).Scan(&paymentResource, &isMicro)
	require.NoError(t, err)

	admins := auth.NewCompanyScopedAuthorizer(nil)
	refundWorkflow := refunds.NewWorkflow(dbPool, repo, admins, gw, "test")

	refundTxn, refundInfo, _, err := refundWorkflow.RefundTicket(ctx, refunds.RefundTicketRequest{
		TicketID:      ticketID,
		OriginalTxnID: saleTxn.ID,
		Creator:       models.Creator{Scope: models.CreatorScopeSuperadmin, ID: userID},
		Credentials:   models.Credentials{Scope: models.ScopeSuperadmin},
		TargetAmount:  15.00,
		Payment:       &models.Payment{PaymentResource: paymentResource, IsMicro: isMicro},
	})
	require.NoError(t, err)
	require.NotNil(t, refundTxn)
	require.InDelta(t, 0, refundTxn.ZeroSum(), 1e-6)
	require.NotNil(t, refundInfo.Charge)

	charge, err := gw.RetrieveCharge(ctx, paymentResource)
	require.NoError(t, err)
	require.Equal(t, int64(1500), charge.AmountRefunded)
}
