// Package app wires the ledger engine's storage, gateway, and workflow
// layer into a single object graph. cmd/server builds one at process
// startup; the integration test suite builds one directly against a test
// database and a mock gateway, so the exact wiring this package produces is
// what actually drives a sale, purchase, or refund end to end.
package app

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/richxcame/bus-ledger/internal/booking"
	"github.com/richxcame/bus-ledger/internal/gateway"
	"github.com/richxcame/bus-ledger/internal/ledger"
	"github.com/richxcame/bus-ledger/internal/promotions"
	"github.com/richxcame/bus-ledger/internal/refunds"
	"github.com/richxcame/bus-ledger/internal/routepasses"
	"github.com/richxcame/bus-ledger/pkg/config"
)

// Workflows bundles the three entry points a caller drives against this
// engine: ticket sales, route-pass purchases, and refunds.
type Workflows struct {
	Sale     *booking.SaleWorkflow
	Purchase *routepasses.PurchaseWorkflow
	Refund   *refunds.Workflow
}

// Build wires a Workflows against pool and gw, using cfg.Gateway for
// idempotency instance id and merchant-account mode. admins authorizes
// refund requests.
func Build(cfg *config.Config, pool *pgxpool.Pool, gw gateway.Gateway, admins refunds.AdminAuthorizer) *Workflows {
	repo := ledger.NewPostgresRepository()
	promoApplier := promotions.NewApplier(promotions.NewPostgresRuleLookup(pool))
	routePassApplier := routepasses.NewApplier(repo)

	return &Workflows{
		Sale:     booking.NewSaleWorkflow(pool, repo, promoApplier, routePassApplier, gw, cfg.Gateway.InstanceID, cfg.Gateway.Live),
		Purchase: routepasses.NewPurchaseWorkflow(pool, repo, promoApplier, gw, cfg.Gateway.InstanceID, cfg.Gateway.Live),
		Refund:   refunds.NewWorkflow(pool, repo, admins, gw, cfg.Gateway.InstanceID),
	}
}
