package booking

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/richxcame/bus-ledger/internal/gateway"
	"github.com/richxcame/bus-ledger/internal/ledger"
	"github.com/richxcame/bus-ledger/internal/promotions"
	"github.com/richxcame/bus-ledger/internal/routepasses"
	"github.com/richxcame/bus-ledger/pkg/common"
	"github.com/richxcame/bus-ledger/pkg/models"
)

// SaleRequest is the validated input to SaleWorkflow.Prepare.
type SaleRequest struct {
	Trips          []ledger.TicketSaleRequest
	PromoCode      string
	DryRun         bool
	ApplyRoutePass bool
	Checks         Checks
	ExpectedPrice  *float64
	Creator        models.Creator
	Committed      bool
	Type           models.TransactionType

	// Card reference passed through to the gateway's charge call uninspected.
	// Exactly one of CardToken/CustomerID should be set; CustomerSourceID
	// selects a specific card on file when CustomerID is an on-file customer.
	CardToken        string
	CustomerID       string
	CustomerSourceID string
	// SessionIat disambiguates otherwise-identical idempotency keys across
	// separate checkout sessions for the same booking attempt.
	SessionIat string
}

// SaleWorkflow orchestrates prepareTicketSale at REPEATABLE READ.
type SaleWorkflow struct {
	pool        *pgxpool.Pool
	repo        ledger.Repository
	promo       *promotions.Applier
	routePasses *routepasses.Applier
	gateway     gateway.Gateway
	instanceID  string
	live        bool
}

func NewSaleWorkflow(pool *pgxpool.Pool, repo ledger.Repository, promo *promotions.Applier, routePasses *routepasses.Applier, gw gateway.Gateway, instanceID string, live bool) *SaleWorkflow {
	return &SaleWorkflow{pool: pool, repo: repo, promo: promo, routePasses: routePasses, gateway: gw, instanceID: instanceID, live: live}
}

// Prepare runs the full sale pipeline: builder init, BookingChecks,
// route-pass redemption, promo application, small-residual absorption,
// payment finalization, and the expected-price check, then builds and
// commits the Transaction.
func (w *SaleWorkflow) Prepare(ctx context.Context, req SaleRequest) (*models.Transaction, ledger.UndoFunc, error) {
	if len(req.Trips) == 0 {
		return nil, nil, common.NewBadRequestError("at least one trip is required", nil)
	}

	tx, err := w.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, nil, common.NewInternalError("begin ticket sale transaction", err)
	}
	defer tx.Rollback(ctx)

	gate := NewGate(w.repo, req.Checks)
	b := ledger.NewBuilder(w.repo, req.Creator, req.DryRun, req.Committed)

	// Step 1: builder init with pending Ticket rows.
	if err := b.InitForTicketSale(ctx, tx, req.Trips); err != nil {
		return nil, nil, err
	}

	// Step 2: BookingChecks, plus single-company and per-leg validation.
	var routes []*models.Route
	var tripIDs []uuid.UUID
	tripSeatDemand := make(map[uuid.UUID]int)
	seenUsers := make(map[uuid.UUID]bool)
	for _, leg := range req.Trips {
		trip, err := w.repo.GetTripForUpdate(ctx, tx, leg.TripID)
		if err != nil {
			return nil, nil, common.NewNotFoundError("trip not found", err)
		}
		if err := gate.CheckLeg(trip, leg.BoardStopID, leg.AlightStopID); err != nil {
			return nil, nil, err
		}
		if err := gate.CheckNoDuplicate(ctx, tx, leg.UserID, leg.TripID); err != nil {
			return nil, nil, err
		}

		route, err := w.repo.GetRoute(ctx, tx, trip.RouteID)
		if err != nil {
			return nil, nil, common.NewNotFoundError("route not found", err)
		}
		routes = append(routes, route)
		tripIDs = append(tripIDs, leg.TripID)
		tripSeatDemand[leg.TripID]++
		seenUsers[leg.UserID] = true
	}
	if err := CheckSingleCompany(routes); err != nil {
		return nil, nil, err
	}

	// Seats are decremented before the re-read below so CheckSeatAvailability's
	// "went negative" check actually observes this sale's own demand.
	if !req.DryRun {
		for tripID, n := range tripSeatDemand {
			if err := w.repo.DecrementTripSeats(ctx, tx, tripID, n); err != nil {
				return nil, nil, common.NewInternalError(fmt.Sprintf("decrement seats for trip %s", tripID), err)
			}
		}
	}
	if err := gate.CheckSeatAvailability(ctx, tx, tripIDs); err != nil {
		return nil, nil, err
	}

	companyID := routes[0].TransportCompanyID

	// Step 3: route-pass redemption, tags taken from the trips' routes.
	if req.ApplyRoutePass {
		tagSet := make(map[string]bool)
		for _, r := range routes {
			for _, t := range r.Tags {
				tagSet[t] = true
			}
		}
		var tags []string
		for t := range tagSet {
			tags = append(tags, t)
		}
		for userID := range seenUsers {
			if err := w.routePasses.ApplyTags(ctx, tx, b, userID, companyID, tags); err != nil {
				return nil, nil, err
			}
		}
	}

	// Step 4: promotion.
	if req.PromoCode != "" {
		if err := w.promo.Apply(ctx, tx, b, req.PromoCode, promotions.ScopePromotion, nil); err != nil {
			return nil, nil, err
		}
	}

	// Step 5: absorb small residuals.
	if err := b.AbsorbSmallResidual(ctx, tx, w.gateway.MinChargeCents()); err != nil {
		return nil, nil, err
	}

	// Step 6: finalize payment against the unique company.
	if err := b.FinalizeForPayment(companyID); err != nil {
		return nil, nil, err
	}

	// Step 7: expected-price check.
	if req.ExpectedPrice != nil {
		payment := b.ItemsOfType(models.ItemPayment)
		var actual float64
		if len(payment) == 1 {
			actual = payment[0].Debit
		}
		if math.Abs(*req.ExpectedPrice-actual) >= 1e-3 {
			return nil, nil, common.NewBadRequestError("priceChanged", nil)
		}
	}

	// Step 8: build the journal entry.
	txn, undoFn, err := b.Build(ctx, tx, req.Type, func(ctx context.Context) (pgx.Tx, error) {
		return w.pool.Begin(ctx)
	})
	if err != nil {
		return nil, nil, err
	}

	// Step 9: charge the card for the finalized payment amount (spec §4.1,
	// §4.9), persisting the Payment row in the same transaction as the
	// journal entry it backs.
	if !req.DryRun {
		if err := w.chargeSale(ctx, tx, b, txn, companyID, req); err != nil {
			return nil, nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, nil, common.NewInternalError("commit ticket sale", err)
		}
	}
	return txn, undoFn, nil
}

// chargeSale captures the builder's single payment item against the
// gateway, recording a pending Payment row before the call and the
// resulting gateway resource id/data after it, all inside tx so a charge
// failure rolls back the whole sale.
func (w *SaleWorkflow) chargeSale(ctx context.Context, tx pgx.Tx, b *ledger.Builder, txn *models.Transaction, companyID uuid.UUID, req SaleRequest) error {
	paymentItems := b.ItemsOfType(models.ItemPayment)
	if len(paymentItems) == 0 {
		return nil
	}
	amount := paymentItems[0].Debit
	amountCents := int64(math.Round(amount * 100))

	company, err := w.repo.GetCompany(ctx, tx, companyID)
	if err != nil {
		return common.NewNotFoundError("company not found", err)
	}

	payment := &models.Payment{
		ID:            uuid.New(),
		TransactionID: txn.ID,
		IsMicro:       w.gateway.IsMicro(amountCents),
	}
	if err := w.repo.InsertPayment(ctx, tx, payment); err != nil {
		return common.NewInternalError("insert pending payment", err)
	}

	idempotencyKey := gateway.SaleIdempotencyKey(w.instanceID, txn.ID.String(), req.SessionIat)
	charge, err := w.gateway.Charge(ctx, gateway.ChargeRequest{
		ValueCents:          amountCents,
		Description:         fmt.Sprintf("ticket sale %s", txn.ID),
		StatementDescriptor: gateway.StatementDescriptor(company.Descriptor(), txn.ID.String()),
		Destination:         company.MerchantID(w.live),
		IdempotencyKey:      idempotencyKey,
		Source:              req.CardToken,
		CustomerID:          req.CustomerID,
		SourceID:            req.CustomerSourceID,
	})
	if err != nil {
		return common.NewChargeError("charge sale", err)
	}

	data := map[string]interface{}{"amountCents": charge.AmountCents, "source": charge.Source}
	if err := w.repo.SetPaymentResult(ctx, tx, payment.ID, charge.ID, data); err != nil {
		return common.NewInternalError("persist charge result", err)
	}
	return nil
}
