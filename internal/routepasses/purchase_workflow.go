package routepasses

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
	"github.com/richxcame/bus-ledger/pkg/common"
	"github.com/richxcame/bus-ledger/pkg/models"
)

// PurchaseRequest is the validated input to PurchaseWorkflow.Purchase. Exactly one
// of Quantity/Value must be supplied.
type PurchaseRequest struct {
	UserID          uuid.UUID
	Tag             string
	Quantity        *int
	Value           *float64
	PromoCode       string
	CompanyID       uuid.UUID
	DryRun          bool
	TransactionType models.TransactionType
	ExpectedPrice   *float64
	Creator         models.Creator
	Committed       bool
	// PostTransactionHook runs before commit, inside the same DB transaction.
	PostTransactionHook func(ctx context.Context, tx pgx.Tx) error

	// Card reference passed through to the gateway's charge call uninspected.
	CardToken        string
	CustomerID       string
	CustomerSourceID string
	SessionIat       string
}

// PurchaseWorkflow orchestrates purchaseRoutePass at SERIALIZABLE isolation.
type PurchaseWorkflow struct {
	pool       *pgxpool.Pool
	repo       ledger.Repository
	promo      *promotions.Applier
	gateway    gateway.Gateway
	instanceID string
	live       bool
}

func NewPurchaseWorkflow(pool *pgxpool.Pool, repo ledger.Repository, promo *promotions.Applier, gw gateway.Gateway, instanceID string, live bool) *PurchaseWorkflow {
	return &PurchaseWorkflow{pool: pool, repo: repo, promo: promo, gateway: gw, instanceID: instanceID, live: live}
}

// Purchase derives price from the next upcoming Trip of any Route carrying
// req.Tag, resolves quantity/value against each other, creates req.Quantity
// RoutePass rows, applies a promo if given, finalizes payment, and runs the
// caller's PostTransactionHook before commit.
func (w *PurchaseWorkflow) Purchase(ctx context.Context, req PurchaseRequest) (*models.Transaction, ledger.UndoFunc, error) {
	if (req.Quantity == nil) == (req.Value == nil) {
		return nil, nil, common.NewBadRequestError("exactly one of quantity or value must be supplied", nil)
	}

	tx, err := w.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, nil, common.NewInternalError("begin route pass purchase transaction", err)
	}
	defer tx.Rollback(ctx)

	trip, err := w.repo.NextUpcomingTripForTag(ctx, tx, req.CompanyID, req.Tag)
	if err != nil {
		return nil, nil, common.NewNotFoundError(fmt.Sprintf("no upcoming trip carries tag %q", req.Tag), err)
	}
	price := trip.Price

	var quantity int
	var value float64
	switch {
	case req.Quantity != nil:
		quantity = *req.Quantity
		value = roundToCent(price * float64(quantity))
	default:
		value = *req.Value
		quantity = int(math.Round(value / price))
	}
	if quantity <= 0 {
		return nil, nil, common.NewBadRequestError("route pass purchase resolves to zero quantity", nil)
	}

	b := ledger.NewBuilder(w.repo, req.Creator, req.DryRun, req.Committed)

	for i := 0; i < quantity; i++ {
		pass := &models.RoutePass{
			ID:        uuid.New(),
			UserID:    req.UserID,
			CompanyID: req.CompanyID,
			Tag:       req.Tag,
			Status:    models.RoutePassValid,
			Price:     price,
		}
		if !req.DryRun {
			if err := w.repo.InsertRoutePass(ctx, tx, pass); err != nil {
				return nil, nil, common.NewInternalError("insert route pass", err)
			}
		}
		b.RegisterUndo(ledger.RestoreRoutePassStatus{PassID: pass.ID, PriorStatus: models.RoutePassVoid})

		// A route-pass purchase item is a credit equal to the pass's price,
		// mirroring InitForTicketSale's ticketSale credit shape.
		b.PushRoutePassPurchase(pass.ID, price, req.CompanyID)
	}

	if req.PromoCode != "" {
		if err := w.promo.Apply(ctx, tx, b, req.PromoCode, promotions.ScopeRoutePass, nil); err != nil {
			return nil, nil, err
		}
	}

	if err := b.FinalizeForPayment(req.CompanyID); err != nil {
		return nil, nil, err
	}

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

	if req.PostTransactionHook != nil {
		b.AddPostTransactionHook(req.PostTransactionHook)
	}

	txn, undoFn, err := b.Build(ctx, tx, req.TransactionType, func(ctx context.Context) (pgx.Tx, error) {
		return w.pool.Begin(ctx)
	})
	if err != nil {
		return nil, nil, err
	}

	if !req.DryRun {
		if err := w.chargeSale(ctx, tx, b, txn, req); err != nil {
			return nil, nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, nil, common.NewInternalError("commit route pass purchase", err)
		}
	}
	return txn, undoFn, nil
}

// chargeSale captures the builder's single payment item against the
// gateway, mirroring booking.SaleWorkflow.chargeSale for route-pass
// purchases (spec §4.1, §4.9).
func (w *PurchaseWorkflow) chargeSale(ctx context.Context, tx pgx.Tx, b *ledger.Builder, txn *models.Transaction, req PurchaseRequest) error {
	paymentItems := b.ItemsOfType(models.ItemPayment)
	if len(paymentItems) == 0 {
		return nil
	}
	amount := paymentItems[0].Debit
	amountCents := int64(math.Round(amount * 100))

	company, err := w.repo.GetCompany(ctx, tx, req.CompanyID)
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
		Description:         fmt.Sprintf("route pass purchase %s", txn.ID),
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

func roundToCent(v float64) float64 {
	return math.Round(v*100) / 100
}
