// Package refunds implements RefundWorkflow (ticket and route-pass refund)
// and cancelSale.
package refunds

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/richxcame/bus-ledger/internal/gateway"
	"github.com/richxcame/bus-ledger/internal/ledger"
	"github.com/richxcame/bus-ledger/pkg/common"
	"github.com/richxcame/bus-ledger/pkg/models"
)

// refundTolerance bounds the all-or-nothing ticket refund equality check
// (spec §4.7, §8).
const refundTolerance = 1e-4

// AdminAuthorizer is the external auth collaborator: assertAdminRole (spec §6).
type AdminAuthorizer interface {
	AssertAdminRole(ctx context.Context, creds models.Credentials, action string, companyID uuid.UUID) error
}

// GatewayInfo is the subset of the PaymentGatewayAdapter a refund workflow
// needs to size its gateway-side refund request; its full shape lives in
// internal/gateway and is consumed here as a narrow interface.
type GatewayInfo interface {
	RetrieveCharge(ctx context.Context, resourceID string) (*models.Charge, error)
	RefundCharge(ctx context.Context, resourceID string, amountCents int64, reason string, idempotencyKey string) (*models.Charge, error)
	IsMicro(amountCents int64) bool
	IsLocalAndNonAmex(source string) bool
	CalculateAdminFeeInCents(cents int64, isMicro, isLocalAndNonAmex bool) int64
}

// RefundInfo is what generateRefundInfo returns after it has issued the
// gateway refund.
type RefundInfo struct {
	ProcessingFee   float64
	Charge          *models.Charge
	IsMicro         bool
	BalanceAmtCents int64
	Amount          float64
	IdempotencyKey  string
}

// Workflow orchestrates ticket and route-pass refunds at READ COMMITTED.
type Workflow struct {
	pool       *pgxpool.Pool
	repo       ledger.Repository
	auth       AdminAuthorizer
	gateway    GatewayInfo
	instanceID string
}

func NewWorkflow(pool *pgxpool.Pool, repo ledger.Repository, auth AdminAuthorizer, gw GatewayInfo, instanceID string) *Workflow {
	return &Workflow{pool: pool, repo: repo, auth: auth, gateway: gw, instanceID: instanceID}
}

// RefundTicketRequest is the validated input to RefundTicket.
type RefundTicketRequest struct {
	TicketID           uuid.UUID
	OriginalTxnID      uuid.UUID
	Creator            models.Creator
	Credentials        models.Credentials
	CompanyID          uuid.UUID
	PreviouslyRefunded float64
	TargetAmount       float64
	Payment            *models.Payment
}

// RefundTicket produces a refundPayment Transaction for one ticket.
// targetAmt must equal the ticket's sale credit minus its accumulated
// discount within refundTolerance (all-or-nothing policy); the workflow
// rejects anything else, including partial refunds.
func (w *Workflow) RefundTicket(ctx context.Context, req RefundTicketRequest) (*models.Transaction, *RefundInfo, ledger.UndoFunc, error) {
	if err := w.auth.AssertAdminRole(ctx, req.Credentials, "refundTicket", req.CompanyID); err != nil {
		return nil, nil, nil, common.NewBadRequestError("not authorized to refund this ticket", err)
	}

	tx, err := w.pool.Begin(ctx) // default READ COMMITTED
	if err != nil {
		return nil, nil, nil, common.NewInternalError("begin ticket refund transaction", err)
	}
	defer tx.Rollback(ctx)

	ticket, err := w.repo.GetTicket(ctx, tx, req.TicketID)
	if err != nil {
		return nil, nil, nil, common.NewNotFoundError("ticket not found", err)
	}
	if ticket.Status != models.TicketValid && ticket.Status != models.TicketVoid {
		return nil, nil, nil, common.NewBadRequestError(fmt.Sprintf("ticket %s is %s, not refundable", ticket.ID, ticket.Status), nil)
	}

	originalTxn, err := w.repo.GetTransaction(ctx, tx, req.OriginalTxnID)
	if err != nil {
		return nil, nil, nil, common.NewNotFoundError("original transaction not found", err)
	}
	var saleCredit float64
	for _, item := range originalTxn.ItemsOfType(models.ItemTicketSale) {
		if item.ItemID != nil && *item.ItemID == ticket.ID {
			saleCredit = item.Credit
		}
	}
	priceAfterDiscount := saleCredit - ticket.DiscountValue

	if math.Abs(req.TargetAmount-priceAfterDiscount) >= refundTolerance {
		return nil, nil, nil, common.NewBadRequestError("requires requested refund to equal ticket value after discounts", nil)
	}
	if req.PreviouslyRefunded+req.TargetAmount > priceAfterDiscount+refundTolerance {
		return nil, nil, nil, common.NewBadRequestError("refund exceeds remaining ticket value", nil)
	}

	priorStatus := ticket.Status
	if err := w.repo.UpdateTicketStatus(ctx, tx, ticket.ID, models.TicketRefunded); err != nil {
		return nil, nil, nil, common.NewInternalError("mark ticket refunded", err)
	}

	b := ledger.NewBuilder(w.repo, req.Creator, false, true)
	b.RegisterUndo(ledger.RestoreTicketStatus{TicketID: ticket.ID, PriorStatus: priorStatus})
	b.RecordRefund(models.ItemTicketRefund, ticket.ID, req.TargetAmount)

	idempotencyKey := gateway.RefundIdempotencyKey(w.instanceID, "ticketId", ticket.ID.String())
	refundInfo, err := w.generateRefundInfo(ctx, req.Payment, req.TargetAmount, req.Payment != nil && req.Payment.IsMicro, "requested_by_customer", idempotencyKey)
	if err != nil {
		return nil, nil, nil, err
	}
	b.RecordGatewayRefundEffect(req.CompanyID, req.TargetAmount, refundInfo.ProcessingFee)

	txn, undoFn, err := b.Build(ctx, tx, models.TransactionRefundPayment, func(ctx context.Context) (pgx.Tx, error) {
		return w.pool.Begin(ctx)
	})
	if err != nil {
		return nil, nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, nil, common.NewInternalError("commit ticket refund", err)
	}
	return txn, refundInfo, undoFn, nil
}

// RefundRoutePassRequest is the validated input to RefundRoutePass.
type RefundRoutePassRequest struct {
	RoutePassID uuid.UUID
	Creator     models.Creator
	Credentials models.Credentials
	CompanyID   uuid.UUID
	Payment     *models.Payment
}

// RefundRoutePass refunds a pass currently valid, void, or expired.
func (w *Workflow) RefundRoutePass(ctx context.Context, req RefundRoutePassRequest) (*models.Transaction, *RefundInfo, ledger.UndoFunc, error) {
	if err := w.auth.AssertAdminRole(ctx, req.Credentials, "refundRoutePass", req.CompanyID); err != nil {
		return nil, nil, nil, common.NewBadRequestError("not authorized to refund this route pass", err)
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return nil, nil, nil, common.NewInternalError("begin route pass refund transaction", err)
	}
	defer tx.Rollback(ctx)

	pass, err := w.repo.GetRoutePass(ctx, tx, req.RoutePassID)
	if err != nil {
		return nil, nil, nil, common.NewNotFoundError("route pass not found", err)
	}
	switch pass.Status {
	case models.RoutePassValid, models.RoutePassVoid, models.RoutePassExpired:
	default:
		return nil, nil, nil, common.NewBadRequestError(fmt.Sprintf("route pass %s is %s, not refundable", pass.ID, pass.Status), nil)
	}

	priorStatus := pass.Status
	if err := w.repo.UpdateRoutePassStatus(ctx, tx, pass.ID, models.RoutePassRefunded); err != nil {
		return nil, nil, nil, common.NewInternalError("mark route pass refunded", err)
	}

	amount := pass.Price - pass.DiscountValue

	b := ledger.NewBuilder(w.repo, req.Creator, false, true)
	b.RegisterUndo(ledger.RestoreRoutePassStatus{PassID: pass.ID, PriorStatus: priorStatus})
	b.RecordRefund(models.ItemRoutePass, pass.ID, amount)

	idempotencyKey := gateway.RefundIdempotencyKey(w.instanceID, "routePassId", pass.ID.String())
	refundInfo, err := w.generateRefundInfo(ctx, req.Payment, amount, req.Payment != nil && req.Payment.IsMicro, "requested_by_customer", idempotencyKey)
	if err != nil {
		return nil, nil, nil, err
	}
	b.RecordGatewayRefundEffect(req.CompanyID, amount, refundInfo.ProcessingFee)

	txn, undoFn, err := b.Build(ctx, tx, models.TransactionRefundPayment, func(ctx context.Context) (pgx.Tx, error) {
		return w.pool.Begin(ctx)
	})
	if err != nil {
		return nil, nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, nil, common.NewInternalError("commit route pass refund", err)
	}
	return txn, refundInfo, undoFn, nil
}

// generateRefundInfo fetches the Charge behind payment, verifies its
// remaining balance covers amount, computes the processing-fee delta the
// gateway will absorb, issues the actual refund request against the
// processor, and packages the result for the caller's ledger bookkeeping.
func (w *Workflow) generateRefundInfo(ctx context.Context, payment *models.Payment, amount float64, isMicro bool, reason, idempotencyKey string) (*RefundInfo, error) {
	if payment == nil {
		return nil, common.NewInternalError("refund requested with no payment record", nil)
	}

	charge, err := w.gateway.RetrieveCharge(ctx, payment.PaymentResource)
	if err != nil {
		return nil, common.NewInternalError("retrieve charge for refund", err)
	}

	amountCents := int64(math.Round(amount * 100))
	balanceBefore := charge.BalanceCents()
	if float64(balanceBefore) < float64(amountCents)-0.1 {
		return nil, common.NewBadRequestError("refund exceeds the charge's remaining balance", nil)
	}
	balanceAfter := balanceBefore - amountCents

	isLocalNonAmex := w.gateway.IsLocalAndNonAmex(charge.Source)
	feeBefore := w.gateway.CalculateAdminFeeInCents(balanceBefore, isMicro, isLocalNonAmex)
	feeAfter := w.gateway.CalculateAdminFeeInCents(balanceAfter, isMicro, isLocalNonAmex)
	processingFee := float64(feeBefore-feeAfter) / 100

	refunded, err := w.gateway.RefundCharge(ctx, payment.PaymentResource, amountCents, reason, idempotencyKey)
	if err != nil {
		return nil, common.NewInternalError("refund charge", err)
	}

	return &RefundInfo{
		ProcessingFee:   processingFee,
		Charge:          refunded,
		IsMicro:         isMicro,
		BalanceAmtCents: balanceBefore,
		Amount:          amount,
		IdempotencyKey:  idempotencyKey,
	}, nil
}

// CancelSale flips a committed Transaction back to uncommitted and every one
// of its ticketSale tickets from valid to failed, at SERIALIZABLE. Intended
// for gateway-decline recovery.
func (w *Workflow) CancelSale(ctx context.Context, transactionID uuid.UUID) error {
	tx, err := w.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return common.NewInternalError("begin cancel sale transaction", err)
	}
	defer tx.Rollback(ctx)

	txn, err := w.repo.GetTransaction(ctx, tx, transactionID)
	if err != nil {
		return common.NewNotFoundError("transaction not found", err)
	}
	if !txn.Committed {
		return common.NewBadRequestError(fmt.Sprintf("transaction %s is not committed", transactionID), nil)
	}

	var tickets []*models.Ticket
	for _, item := range txn.ItemsOfType(models.ItemTicketSale) {
		if item.ItemID == nil {
			continue
		}
		ticket, err := w.repo.GetTicket(ctx, tx, *item.ItemID)
		if err != nil {
			return common.NewNotFoundError(fmt.Sprintf("ticket %s not found", *item.ItemID), err)
		}
		if ticket.Status != models.TicketValid {
			return common.NewBadRequestError(fmt.Sprintf("ticket %s is %s, not valid", ticket.ID, ticket.Status), nil)
		}
		tickets = append(tickets, ticket)
	}

	if err := w.repo.SetTransactionCommitted(ctx, tx, transactionID, false); err != nil {
		return common.NewInternalError("flip transaction uncommitted", err)
	}
	for _, ticket := range tickets {
		if err := w.repo.UpdateTicketStatus(ctx, tx, ticket.ID, models.TicketFailed); err != nil {
			return common.NewInternalError(fmt.Sprintf("fail ticket %s", ticket.ID), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return common.NewInternalError("commit cancel sale", err)
	}
	return nil
}
