// Package promotions implements PromotionApplier: consuming a promo code
// against a ledger.Builder's current items and pushing discount lines.
package promotions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/richxcame/bus-ledger/internal/ledger"
	"github.com/richxcame/bus-ledger/pkg/common"
	"github.com/richxcame/bus-ledger/pkg/models"
)

// Scope selects which accumulated items a promo code may discount.
type Scope string

const (
	ScopePromotion Scope = "Promotion" // ticketSale items
	ScopeRoutePass Scope = "RoutePass" // routePass items
)

// Rule is one promo code's evaluated effect: a percentage or flat discount
// against a scope's outstanding total. The rule engine itself is treated as
// an external collaborator (spec §6); RuleLookup is the narrow interface this
// package consumes from it.
type Rule struct {
	Code            string
	PercentOff      float64 // 0..1, mutually exclusive with FlatOff
	FlatOff         float64 // dollars, mutually exclusive with PercentOff
	Scope           Scope
}

// RuleLookup resolves a promo code to its Rule, or an error when the code
// is unknown, expired, exhausted, or inapplicable to opts.
type RuleLookup interface {
	Resolve(ctx context.Context, code string, scope Scope, opts map[string]interface{}) (Rule, error)
}

// PromoError reports a rule-evaluation failure: unknown, expired,
// exhausted, or inapplicable code.
type PromoError struct {
	Code   string
	Reason string
}

func (e *PromoError) Error() string {
	return fmt.Sprintf("promo %q: %s", e.Code, e.Reason)
}

// Applier evaluates promo codes against a Builder.
type Applier struct {
	rules RuleLookup
}

func NewApplier(rules RuleLookup) *Applier {
	return &Applier{rules: rules}
}

// targetsForScope returns the ids of the items a discount of the given
// scope may be allocated across.
func targetsForScope(b *ledger.Builder, scope Scope) []uuid.UUID {
	var itemType models.ItemType
	switch scope {
	case ScopeRoutePass:
		itemType = models.ItemRoutePass
	default:
		itemType = models.ItemTicketSale
	}

	var targets []uuid.UUID
	for _, item := range b.ItemsOfType(itemType) {
		if item.ItemID != nil && b.Outstanding(*item.ItemID) > 0 {
			targets = append(targets, *item.ItemID)
		}
	}
	return targets
}

func itemTypeForScope(scope Scope) models.ItemType {
	if scope == ScopeRoutePass {
		return models.ItemRoutePass
	}
	return models.ItemTicketSale
}

// Apply resolves promoCode against the builder's current items scoped to
// scope, and pushes zero or more discount debit lines. It returns a
// *PromoError when the code can't be evaluated at all; per-item allocation
// failures never occur since the applier only ever discounts up to each
// item's outstanding amount.
func (a *Applier) Apply(ctx context.Context, tx pgx.Tx, b *ledger.Builder, promoCode string, scope Scope, opts map[string]interface{}) error {
	rule, err := a.rules.Resolve(ctx, promoCode, scope, opts)
	if err != nil {
		if perr, ok := err.(*PromoError); ok {
			return perr
		}
		return &PromoError{Code: promoCode, Reason: err.Error()}
	}

	targets := targetsForScope(b, scope)
	if len(targets) == 0 {
		return nil
	}

	outstandingTotal := 0.0
	outstanding := make(map[uuid.UUID]float64, len(targets))
	for _, id := range targets {
		amt := b.Outstanding(id)
		outstanding[id] = amt
		outstandingTotal += amt
	}
	if outstandingTotal <= 0 {
		return nil
	}

	var discountTotal float64
	switch {
	case rule.PercentOff > 0:
		discountTotal = outstandingTotal * rule.PercentOff
	case rule.FlatOff > 0:
		discountTotal = rule.FlatOff
		if discountTotal > outstandingTotal {
			discountTotal = outstandingTotal
		}
	default:
		return &PromoError{Code: promoCode, Reason: "resolved rule carries no discount"}
	}
	if discountTotal <= 0 {
		return nil
	}

	allocations := ledger.AllocateProportional(targets, outstanding, discountTotal)
	itemType := itemTypeForScope(scope)

	var discounts []ledger.DiscountAllocation
	for _, id := range targets {
		discounts = append(discounts, ledger.DiscountAllocation{ItemType: itemType, ItemID: id, Amount: allocations[id]})
	}

	if err := b.ApplyDiscount(ctx, tx, discounts, "promo:"+promoCode); err != nil {
		return common.NewInternalError("apply promotion discount", err)
	}
	return nil
}
