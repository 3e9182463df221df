//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/bus-ledger/internal/gateway"
	"github.com/richxcame/bus-ledger/internal/ledger"
	"github.com/richxcame/bus-ledger/internal/promotions"
	"github.com/richxcame/bus-ledger/internal/routepasses"
	"github.com/richxcame/bus-ledger/pkg/models"
)

func TestPurchaseRoutePassChargesCardAndPersistsPayment(t *testing.T) {
	truncateTables(t)
	ctx := context.Background()

	companyID, _, _, _, _ := seedCompanyRouteTrip(t, 8.00, 10)
	userID := uuid.New()

	repo := ledger.NewPostgresRepository()
	promo := promotions.NewApplier(promotions.NewPostgresRuleLookup(dbPool))
	gw := gateway.NewMockGateway()
	workflow := routepasses.NewPurchaseWorkflow(dbPool, repo, promo, gw, "test", false)

	quantity := 3
	txn, _, err := workflow.Purchase(ctx, routepasses.PurchaseRequest{
		UserID:          userID,
		Tag:             "downtown-express",
		Quantity:        &quantity,
		CompanyID:       companyID,
		TransactionType: models.TransactionRoutePassPurchase,
		Creator:         models.Creator{Scope: models.CreatorScopeUser, ID: userID},
		Committed:       true,
		SessionIat:      "169001",
	})
	require.NoError(t, err)
	require.NotNil(t, txn)
	require.InDelta(t, 0, txn.ZeroSum(), 1e-6)

	var paymentResource string
	err = dbPool.QueryRow(ctx, `SELECT payment_resource FROM payments WHERE transaction_id = $1`, txn.ID).Scan(&paymentResource)
	require.NoError(t, err)
	require.NotEmpty(t, paymentResource)

	charge, err := gw.RetrieveCharge(ctx, paymentResource)
	require.NoError(t, err)
	require.Equal(t, int64(2400), charge.AmountCents) // 3 passes * $8.00
}
