// Package ledger implements the double-entry TransactionBuilder: an
// in-memory accumulation of typed line items that finalizes into a
// zero-sum, balanced journal entry and persists atomically with the
// operational state (ticket and route-pass status) it affects.
package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/richxcame/bus-ledger/pkg/common"
	"github.com/richxcame/bus-ledger/pkg/models"
)

// ZeroSumTolerance is the tolerance Build checks the zero-sum invariant
// against; pkg/config.LedgerConfig's ZeroSumTolerance is not consulted.
const ZeroSumTolerance = 1e-6

// TicketSaleRequest is one leg of a ticket sale: a single passenger on a
// single trip, boarding and alighting at named stops.
type TicketSaleRequest struct {
	TripID       uuid.UUID
	BoardStopID  uuid.UUID
	AlightStopID uuid.UUID
	UserID       uuid.UUID
}

// DiscountAllocation is one item's share of a discount being applied.
type DiscountAllocation struct {
	ItemType models.ItemType // ItemTicketSale or ItemRoutePass
	ItemID   uuid.UUID
	Amount   float64
}

// Builder accumulates typed line items for a single Transaction. It is not
// safe for concurrent use; each workflow constructs one Builder per attempt.
type Builder struct {
	repo Repository

	creator     models.Creator
	description string
	dryRun      bool
	committed   bool

	items        []models.TransactionItem
	itemsByType  map[models.ItemType][]models.TransactionItem
	undoOps      []UndoOp
	postTxHooks  []func(ctx context.Context, tx pgx.Tx) error

	// outstanding tracks each ticket/route-pass item's current remaining
	// payable amount, decremented as discounts are applied against it.
	outstanding map[uuid.UUID]float64

	companyID *uuid.UUID
}

// NewBuilder starts a fresh accumulation for the given creator identity.
// dryRun builders compute the same items but never touch the database.
func NewBuilder(repo Repository, creator models.Creator, dryRun, committed bool) *Builder {
	return &Builder{
		repo:        repo,
		creator:     creator,
		dryRun:      dryRun,
		committed:   committed,
		itemsByType: make(map[models.ItemType][]models.TransactionItem),
		outstanding: make(map[uuid.UUID]float64),
	}
}

// Items returns all line items accumulated so far, in insertion order.
func (b *Builder) Items() []models.TransactionItem {
	return append([]models.TransactionItem(nil), b.items...)
}

// ItemsOfType returns the accumulated items of the given type.
func (b *Builder) ItemsOfType(itemType models.ItemType) []models.TransactionItem {
	return append([]models.TransactionItem(nil), b.itemsByType[itemType]...)
}

// CompanyID returns the single counterparty company recorded so far, if any.
func (b *Builder) CompanyID() *uuid.UUID {
	return b.companyID
}

func (b *Builder) push(item models.TransactionItem) {
	b.items = append(b.items, item)
	b.itemsByType[item.ItemType] = append(b.itemsByType[item.ItemType], item)
}

// bindCompany enforces the single-counterparty invariant (invariant 2):
// every trip/route-pass in a Transaction must share one transportCompanyId.
func (b *Builder) bindCompany(companyID uuid.UUID) error {
	if b.companyID == nil {
		b.companyID = &companyID
		return nil
	}
	if *b.companyID != companyID {
		return common.NewBadRequestError("transaction spans more than one transport company", nil)
	}
	return nil
}

// InitForTicketSale creates a pending Ticket for each requested leg (unless
// dryRun) and pushes a ticketSale credit equal to the trip's price. Each
// created ticket gets a compensating RestoreTicketStatus(failed) undo.
func (b *Builder) InitForTicketSale(ctx context.Context, tx pgx.Tx, requests []TicketSaleRequest) error {
	for _, req := range requests {
		trip, err := b.repo.GetTripForUpdate(ctx, tx, req.TripID)
		if err != nil {
			return common.NewNotFoundError(fmt.Sprintf("trip %s not found", req.TripID), err)
		}
		route, err := b.repo.GetRoute(ctx, tx, trip.RouteID)
		if err != nil {
			return common.NewNotFoundError(fmt.Sprintf("route for trip %s not found", req.TripID), err)
		}
		if err := b.bindCompany(route.TransportCompanyID); err != nil {
			return err
		}

		ticket := &models.Ticket{
			ID:           uuid.New(),
			UserID:       req.UserID,
			TripID:       req.TripID,
			BoardStopID:  req.BoardStopID,
			AlightStopID: req.AlightStopID,
			Status:       models.TicketPending,
		}

		if !b.dryRun {
			if err := b.repo.InsertTicket(ctx, tx, ticket); err != nil {
				return common.NewInternalError("insert pending ticket", err)
			}
		}
		b.undoOps = append(b.undoOps, RestoreTicketStatus{TicketID: ticket.ID, PriorStatus: models.TicketFailed})

		itemID := ticket.ID
		item := models.TransactionItem{
			ID:        uuid.New(),
			ItemType:  models.ItemTicketSale,
			ItemID:    &itemID,
			Credit:    trip.Price,
			Notes:     map[string]interface{}{"tripId": req.TripID},
			CompanyID: &route.TransportCompanyID,
		}
		b.push(item)
		b.outstanding[ticket.ID] = trip.Price
	}
	return nil
}

// PushRoutePassPurchase records a routePass credit item for a newly created
// pass, bound to companyID for the single-counterparty invariant, and seeds
// its outstanding amount so RoutePass-scoped promo discounts can target it
// (AbsorbSmallResidual targets ticketSale items only).
func (b *Builder) PushRoutePassPurchase(passID uuid.UUID, price float64, companyID uuid.UUID) {
	itemID := passID
	b.push(models.TransactionItem{
		ID:        uuid.New(),
		ItemType:  models.ItemRoutePass,
		ItemID:    &itemID,
		Credit:    price,
		CompanyID: &companyID,
	})
	b.outstanding[passID] = price
}

// AllocateProportional distributes total over targets in proportion to each
// target's current outstanding amount, rounded to the nearest cent, with the
// last target (in the given order) absorbing any residual rounding so the
// allocations sum exactly to total.
func AllocateProportional(targets []uuid.UUID, outstanding map[uuid.UUID]float64, total float64) map[uuid.UUID]float64 {
	allocations := make(map[uuid.UUID]float64, len(targets))
	if len(targets) == 0 || total <= 0 {
		return allocations
	}

	var sumOutstanding float64
	for _, id := range targets {
		sumOutstanding += outstanding[id]
	}
	if sumOutstanding <= 0 {
		return allocations
	}

	var allocated float64
	for _, id := range targets[:len(targets)-1] {
		share := roundToCent(total * outstanding[id] / sumOutstanding)
		allocations[id] = share
		allocated += share
	}
	last := targets[len(targets)-1]
	allocations[last] = roundToCent(total - allocated)
	return allocations
}

func roundToCent(v float64) float64 {
	return math.Round(v*100) / 100
}

// ApplyDiscount subtracts each allocation from its target's outstanding
// amount, cumulatively updates the target's notes.discountValue, and pushes
// a single discount debit line equal to the sum of allocations, tagged with
// kind (e.g. "promo:<code>", "route-pass:<tag>", "absorb-small-payments").
func (b *Builder) ApplyDiscount(ctx context.Context, tx pgx.Tx, allocations []DiscountAllocation, kind string) error {
	var total float64
	for _, a := range allocations {
		if a.Amount <= 0 {
			continue
		}
		total += a.Amount
		b.outstanding[a.ItemID] -= a.Amount

		if !b.dryRun {
			var err error
			switch a.ItemType {
			case models.ItemTicketSale:
				err = b.repo.AddTicketDiscount(ctx, tx, a.ItemID, a.Amount)
			case models.ItemRoutePass:
				err = b.repo.AddRoutePassDiscount(ctx, tx, a.ItemID, a.Amount)
			default:
				err = fmt.Errorf("discount target has unsupported item type %q", a.ItemType)
			}
			if err != nil {
				return common.NewInternalError("record discount allocation", err)
			}
		}
	}
	if total <= 0 {
		return nil
	}

	b.push(models.TransactionItem{
		ID:       uuid.New(),
		ItemType: models.ItemDiscount,
		Debit:    total,
		Notes:    map[string]interface{}{"kind": kind},
	})
	return nil
}

// ExcessCredit returns Σ credit − Σ debit across all accumulated items.
func (b *Builder) ExcessCredit() float64 {
	var credit, debit float64
	for _, item := range b.items {
		credit += item.Credit
		debit += item.Debit
	}
	return credit - debit
}

// FinalizeForPayment closes the outstanding balance against companyID: if
// excessCredit > 0, it appends a payment debit, a transfer credit bound to
// companyID, and a mirroring account (COGS) debit, guaranteeing zero-sum.
// extra items (e.g. gateway fee adjustments) are appended before the
// guarantee is computed.
func (b *Builder) FinalizeForPayment(companyID uuid.UUID, extra ...models.TransactionItem) error {
	if err := b.bindCompany(companyID); err != nil {
		return err
	}
	for _, item := range extra {
		b.push(item)
	}

	excess := b.ExcessCredit()
	if excess <= 0 {
		return nil
	}
	excess = roundToCent(excess)

	b.push(models.TransactionItem{ID: uuid.New(), ItemType: models.ItemPayment, Debit: excess})
	b.push(models.TransactionItem{ID: uuid.New(), ItemType: models.ItemTransfer, Credit: excess, CompanyID: &companyID})
	b.push(models.TransactionItem{ID: uuid.New(), ItemType: models.ItemAccount, Debit: excess})
	return nil
}

// AbsorbSmallResidual converts an excess credit too small for the gateway to
// charge into a [absorb-small-payments] discount, allocated proportionally
// across ticketSale items by their current outstanding amount.
func (b *Builder) AbsorbSmallResidual(ctx context.Context, tx pgx.Tx, minChargeCents int64) error {
	excess := b.ExcessCredit()
	if excess <= 0 || int64(math.Round(excess*100)) > minChargeCents {
		return nil
	}

	var targets []uuid.UUID
	for _, item := range b.itemsByType[models.ItemTicketSale] {
		if item.ItemID != nil && b.outstanding[*item.ItemID] > 0 {
			targets = append(targets, *item.ItemID)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	allocations := AllocateProportional(targets, b.outstanding, excess)
	var discounts []DiscountAllocation
	for _, id := range targets {
		discounts = append(discounts, DiscountAllocation{ItemType: models.ItemTicketSale, ItemID: id, Amount: allocations[id]})
	}
	return b.ApplyDiscount(ctx, tx, discounts, "absorb-small-payments")
}

// RecordRefund pushes the pair of balanced items a refund Transaction needs:
// a debit against itemType (ticketSale's reversal, referenced by itemID)
// and a matching payment credit, keeping the Transaction zero-sum without
// any further finalization step.
func (b *Builder) RecordRefund(itemType models.ItemType, itemID uuid.UUID, amount float64) {
	refundItemID := itemID
	b.push(models.TransactionItem{ID: uuid.New(), ItemType: itemType, ItemID: &refundItemID, Debit: amount})
	b.push(models.TransactionItem{ID: uuid.New(), ItemType: models.ItemPayment, Credit: amount})
}

// RecordGatewayRefundEffect appends the gateway-side ledger effect of a
// refund: a transfer debit pulling amount back from companyID, and a
// mirroring account (COGS) credit, keeping the refund Transaction
// zero-sum alongside RecordRefund's ticketRefund/payment pair. The
// processing-fee delta itself is carried in the item's notes for operator
// visibility; it does not need its own balancing entry since the gateway,
// not the ledger, absorbs it.
func (b *Builder) RecordGatewayRefundEffect(companyID uuid.UUID, amount, processingFee float64) {
	b.push(models.TransactionItem{
		ID:        uuid.New(),
		ItemType:  models.ItemTransfer,
		Debit:     amount,
		CompanyID: &companyID,
		Notes:     map[string]interface{}{"processingFee": processingFee},
	})
	b.push(models.TransactionItem{ID: uuid.New(), ItemType: models.ItemAccount, Credit: amount})
}

// AddPostTransactionHook registers a function to run after the Transaction
// row is persisted but before commit (e.g. persisting status changes).
func (b *Builder) AddPostTransactionHook(hook func(ctx context.Context, tx pgx.Tx) error) {
	b.postTxHooks = append(b.postTxHooks, hook)
}

// RegisterUndo records a compensating action taken outside this build call
// (e.g. by a RoutePassApplier or PromotionApplier mutating builder state).
func (b *Builder) RegisterUndo(op UndoOp) {
	b.undoOps = append(b.undoOps, op)
}

// Outstanding returns the current outstanding amount for itemID.
func (b *Builder) Outstanding(itemID uuid.UUID) float64 {
	return b.outstanding[itemID]
}

// validateZeroSum enforces invariant 1.
func (b *Builder) validateZeroSum(tolerance float64) error {
	var sum float64
	for _, item := range b.items {
		sum += item.Signed()
	}
	if math.Abs(sum) >= tolerance {
		return common.NewInternalError(fmt.Sprintf("transaction is not zero-sum: signed total %.6f", sum), nil)
	}
	return nil
}

// validateNoDuplicateTicket enforces invariant 4: a ticket appears at most
// once per Transaction (as a ticketSale item).
func (b *Builder) validateNoDuplicateTicket() error {
	seen := make(map[uuid.UUID]bool)
	for _, item := range b.itemsByType[models.ItemTicketSale] {
		if item.ItemID == nil {
			continue
		}
		if seen[*item.ItemID] {
			return common.NewBadRequestError(fmt.Sprintf("ticket %s appears more than once in this transaction", *item.ItemID), nil)
		}
		seen[*item.ItemID] = true
	}
	return nil
}

// Build validates the accumulated items and, unless dryRun, persists the
// Transaction, runs registered post-transaction hooks, and returns the
// persisted record alongside an UndoFunc that replays recorded UndoOps in
// reverse under a fresh transaction.
func (b *Builder) Build(ctx context.Context, tx pgx.Tx, txType models.TransactionType, beginFresh func(ctx context.Context) (pgx.Tx, error)) (*models.Transaction, UndoFunc, error) {
	if err := b.validateNoDuplicateTicket(); err != nil {
		return nil, nil, err
	}
	if err := b.validateZeroSum(ZeroSumTolerance); err != nil {
		return nil, nil, err
	}

	// Stable item ordering is for debugging only (spec §5); sorting by
	// itemType groups related postings when a human reads the journal.
	sort.SliceStable(b.items, func(i, j int) bool { return b.items[i].ItemType < b.items[j].ItemType })

	txn := &models.Transaction{
		ID:          uuid.New(),
		Type:        txType,
		Committed:   b.committed,
		Description: b.description,
		CreatedBy:   b.creator,
		CreatedAt:   time.Now(),
		Items:       b.items,
	}

	if b.dryRun {
		return txn, func(context.Context) error { return nil }, nil
	}

	for i := range txn.Items {
		txn.Items[i].TransactionID = txn.ID
	}
	if err := b.repo.InsertTransaction(ctx, tx, txn); err != nil {
		return nil, nil, common.NewInternalError("persist transaction", err)
	}

	for _, hook := range b.postTxHooks {
		if err := hook(ctx, tx); err != nil {
			return nil, nil, common.NewInternalError("post-transaction hook", err)
		}
	}

	undoFn := newUndoFunc(b.undoOps, b.repo, beginFresh)
	return txn, undoFn, nil
}
