// Package routepasses implements RoutePassApplier (redeeming valid passes
// as discount lines against matching trip items) and the route-pass
// purchase workflow.
package routepasses

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/richxcame/bus-ledger/internal/ledger"
	"github.com/richxcame/bus-ledger/pkg/common"
	"github.com/richxcame/bus-ledger/pkg/models"
)

// Applier redeems valid RoutePasses against a Builder's ticketSale items.
type Applier struct {
	repo ledger.Repository
}

func NewApplier(repo ledger.Repository) *Applier {
	return &Applier{repo: repo}
}

// ApplyTags, for each requested tag, consumes one valid pass per ticketSale
// item that still has an outstanding amount, until that tag's passes run
// out, processing tags in alphabetical order (the documented tie-break when
// several tags could apply), and emits one discount line per consumed pass
// capped by its ticket's outstanding amount. Redeemed passes transition valid -> void;
// the transition is recorded for undo as void -> valid.
func (a *Applier) ApplyTags(ctx context.Context, tx pgx.Tx, b *ledger.Builder, userID, companyID uuid.UUID, tags []string) error {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)

	for _, tag := range sorted {
		if err := a.applyOneTag(ctx, tx, b, userID, companyID, tag); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) applyOneTag(ctx context.Context, tx pgx.Tx, b *ledger.Builder, userID, companyID uuid.UUID, tag string) error {
	passes, err := a.repo.GetValidRoutePasses(ctx, tx, userID, companyID, tag)
	if err != nil {
		return common.NewInternalError("look up route passes", err)
	}
	if len(passes) == 0 {
		return nil
	}

	tickets := b.ItemsOfType(models.ItemTicketSale)
	for _, ticket := range tickets {
		if ticket.ItemID == nil || b.Outstanding(*ticket.ItemID) <= 0 {
			continue
		}
		if len(passes) == 0 {
			break
		}
		pass := passes[0]
		passes = passes[1:]

		allocation := pass.Price
		if outstanding := b.Outstanding(*ticket.ItemID); allocation > outstanding {
			allocation = outstanding
		}
		if allocation <= 0 {
			continue
		}

		if err := b.ApplyDiscount(ctx, tx, []ledger.DiscountAllocation{
			{ItemType: models.ItemTicketSale, ItemID: *ticket.ItemID, Amount: allocation},
		}, "route-pass:"+tag); err != nil {
			return err
		}

		if err := a.repo.UpdateRoutePassStatus(ctx, tx, pass.ID, models.RoutePassVoid); err != nil {
			return common.NewInternalError("void redeemed route pass", err)
		}
		b.RegisterUndo(ledger.RestoreRoutePassStatus{PassID: pass.ID, PriorStatus: models.RoutePassValid})
	}
	return nil
}
