// Package booking implements BookingChecks (the validity and
// duplicate-prevention gate run before every ticket sale finalizes) and the
// SaleWorkflow orchestrator.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/richxcame/bus-ledger/internal/ledger"
	"github.com/richxcame/bus-ledger/pkg/common"
	"github.com/richxcame/bus-ledger/pkg/models"
)

// Checks enables/disables individual BookingChecks gates; all default on.
type Checks struct {
	EnsureAvailability bool
	NoDuplicates       bool
	BookingWindow      bool
}

// DefaultChecks returns every gate enabled.
func DefaultChecks() Checks {
	return Checks{EnsureAvailability: true, NoDuplicates: true, BookingWindow: true}
}

// defaultBookingInfo is substituted when a trip's BookingInfo fails
// validation (spec §4.4).
var defaultBookingInfo = models.BookingInfo{WindowType: models.BookingWindowStop, WindowSize: 0}

func bookingInfoOrDefault(info models.BookingInfo) models.BookingInfo {
	if info.WindowType != models.BookingWindowStop && info.WindowType != models.BookingWindowFirstStop {
		return defaultBookingInfo
	}
	return info
}

// Gate runs the enabled checks against one requested leg. Single-company
// validation across a whole sale is CheckSingleCompany's job; seat
// availability is checked by the caller through CheckSeatAvailability after
// pending tickets are inserted (spec §4.4's "after pending tickets are
// inserted" ordering), not by CheckLeg.
type Gate struct {
	repo  ledger.Repository
	now   func() time.Time
	cfg   Checks
}

func NewGate(repo ledger.Repository, cfg Checks) *Gate {
	return &Gate{repo: repo, cfg: cfg, now: time.Now}
}

// CheckLeg validates a single requested leg against its already-loaded trip:
// isRunning, validStops, and bookingWindow.
func (g *Gate) CheckLeg(trip *models.Trip, boardStopID, alightStopID uuid.UUID) error {
	if !trip.IsRunning {
		return common.NewBadRequestError(fmt.Sprintf("trip %s is not running", trip.ID), nil)
	}

	boardStop, boardOK := trip.StopByID(boardStopID)
	alightStop, alightOK := trip.StopByID(alightStopID)
	if !boardOK || !alightOK {
		return common.NewBadRequestError(fmt.Sprintf("trip %s does not serve the requested stops", trip.ID), nil)
	}

	if !g.cfg.BookingWindow {
		return nil
	}

	info := bookingInfoOrDefault(trip.BookingInfo)
	window := time.Duration(info.WindowSize) * time.Millisecond

	var cutoff time.Time
	switch info.WindowType {
	case models.BookingWindowFirstStop:
		cutoff = earliestStopTime(trip.TripStops).Add(window)
	default:
		cutoff = earlier(boardStop.Time, alightStop.Time).Add(window)
	}

	if g.now().After(cutoff) {
		return common.NewBadRequestError(fmt.Sprintf("booking window for trip %s has closed", trip.ID), nil)
	}
	return nil
}

func earliestStopTime(stops []models.TripStop) time.Time {
	if len(stops) == 0 {
		return time.Time{}
	}
	earliest := stops[0].Time
	for _, s := range stops[1:] {
		if s.Time.Before(earliest) {
			earliest = s.Time
		}
	}
	return earliest
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// CheckNoDuplicate rejects the leg if the user already holds a valid or
// pending ticket for tripID.
func (g *Gate) CheckNoDuplicate(ctx context.Context, tx pgx.Tx, userID, tripID uuid.UUID) error {
	if !g.cfg.NoDuplicates {
		return nil
	}
	count, err := g.repo.CountUserTicketsForTrip(ctx, tx, userID, tripID, []models.TicketStatus{models.TicketValid, models.TicketPending})
	if err != nil {
		return common.NewInternalError("check duplicate ticket", err)
	}
	if count > 0 {
		return common.NewBadRequestError(fmt.Sprintf("user already holds a ticket for trip %s", tripID), nil)
	}
	return nil
}

// CheckSeatAvailability re-reads each trip's seats after pending tickets are
// inserted and rejects if any has gone negative. Correctness depends on the
// caller running this under REPEATABLE READ or stronger with row locks
// (spec §4.4, §5).
func (g *Gate) CheckSeatAvailability(ctx context.Context, tx pgx.Tx, tripIDs []uuid.UUID) error {
	if !g.cfg.EnsureAvailability {
		return nil
	}
	for _, tripID := range tripIDs {
		trip, err := g.repo.GetTripForUpdate(ctx, tx, tripID)
		if err != nil {
			return common.NewInternalError("re-read trip seat availability", err)
		}
		if trip.SeatsAvailable < 0 {
			return common.NewBadRequestError(fmt.Sprintf("trip %s has no seats remaining", tripID), nil)
		}
	}
	return nil
}

// CheckSingleCompany enforces exactly one distinct transportCompanyId
// across the given routes.
func CheckSingleCompany(routes []*models.Route) error {
	if len(routes) == 0 {
		return nil
	}
	company := routes[0].TransportCompanyID
	for _, r := range routes[1:] {
		if r.TransportCompanyID != company {
			return common.NewBadRequestError("trips in this sale span more than one transport company", nil)
		}
	}
	return nil
}
