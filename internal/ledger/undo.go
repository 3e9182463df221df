package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/richxcame/bus-ledger/pkg/models"
)

// UndoOp is a recorded compensating action. Every write a Builder makes
// outside the zero-sum journal itself (ticket/route-pass status flips) gets
// one, so a failed build or a later gateway decline can be unwound
// deterministically.
type UndoOp interface {
	apply(ctx context.Context, tx pgx.Tx, repo Repository) error
}

// RestoreTicketStatus resets a Ticket to priorStatus.
type RestoreTicketStatus struct {
	TicketID    uuid.UUID
	PriorStatus models.TicketStatus
}

func (u RestoreTicketStatus) apply(ctx context.Context, tx pgx.Tx, repo Repository) error {
	return repo.UpdateTicketStatus(ctx, tx, u.TicketID, u.PriorStatus)
}

// RestoreRoutePassStatus resets a RoutePass to priorStatus.
type RestoreRoutePassStatus struct {
	PassID      uuid.UUID
	PriorStatus models.RoutePassStatus
}

func (u RestoreRoutePassStatus) apply(ctx context.Context, tx pgx.Tx, repo Repository) error {
	return repo.UpdateRoutePassStatus(ctx, tx, u.PassID, u.PriorStatus)
}

// UndoFunc replays a Builder's recorded UndoOps in reverse order, each under
// the same fresh transaction, so a partially-applied compensation never
// leaves the store in a half-undone state.
type UndoFunc func(ctx context.Context) error

// newUndoFunc closes over ops and the means to open a fresh transaction.
func newUndoFunc(ops []UndoOp, repo Repository, beginFresh func(ctx context.Context) (pgx.Tx, error)) UndoFunc {
	return func(ctx context.Context) error {
		if len(ops) == 0 {
			return nil
		}
		tx, err := beginFresh(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		for i := len(ops) - 1; i >= 0; i-- {
			if err := ops[i].apply(ctx, tx, repo); err != nil {
				return err
			}
		}
		return tx.Commit(ctx)
	}
}
