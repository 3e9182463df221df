package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/richxcame/bus-ledger/pkg/models"
)

// PostgresRepository is the pgx-backed Repository. Every method accepts the
// caller's transaction directly: it never begins or commits one itself, so
// the isolation level and commit boundary stay owned by the workflow.
type PostgresRepository struct{}

func NewPostgresRepository() *PostgresRepository {
	return &PostgresRepository{}
}

func (r *PostgresRepository) GetTripForUpdate(ctx context.Context, tx pgx.Tx, tripID uuid.UUID) (*models.Trip, error) {
	trip := &models.Trip{ID: tripID}
	var windowType string
	err := tx.QueryRow(ctx, `
		SELECT route_id, is_running, seats_available, price,
		       booking_window_type, booking_window_size_ms
		FROM trips
		WHERE id = $1
		FOR UPDATE
	`, tripID).Scan(&trip.RouteID, &trip.IsRunning, &trip.SeatsAvailable, &trip.Price,
		&windowType, &trip.BookingInfo.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("ledger: lock trip %s: %w", tripID, err)
	}
	trip.BookingInfo.WindowType = models.BookingWindowType(windowType)

	rows, err := tx.Query(ctx, `
		SELECT id, stop_time FROM trip_stops WHERE trip_id = $1 ORDER BY stop_time ASC
	`, tripID)
	if err != nil {
		return nil, fmt.Errorf("ledger: load trip stops for %s: %w", tripID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var stop models.TripStop
		if err := rows.Scan(&stop.ID, &stop.Time); err != nil {
			return nil, fmt.Errorf("ledger: scan trip stop for %s: %w", tripID, err)
		}
		trip.TripStops = append(trip.TripStops, stop)
	}
	return trip, rows.Err()
}

func (r *PostgresRepository) GetRoute(ctx context.Context, tx pgx.Tx, routeID uuid.UUID) (*models.Route, error) {
	route := &models.Route{ID: routeID}
	err := tx.QueryRow(ctx, `
		SELECT transport_company_id, tags FROM routes WHERE id = $1
	`, routeID).Scan(&route.TransportCompanyID, &route.Tags)
	if err != nil {
		return nil, fmt.Errorf("ledger: get route %s: %w", routeID, err)
	}
	return route, nil
}

func (r *PostgresRepository) GetCompany(ctx context.Context, tx pgx.Tx, companyID uuid.UUID) (*models.TransportCompany, error) {
	company := &models.TransportCompany{ID: companyID}
	err := tx.QueryRow(ctx, `
		SELECT name, sms_op_code, stripe_client_id, stripe_sandbox_id
		FROM transport_companies WHERE id = $1
	`, companyID).Scan(&company.Name, &company.SmsOpCode, &company.StripeClientID, &company.StripeSandboxID)
	if err != nil {
		return nil, fmt.Errorf("ledger: get company %s: %w", companyID, err)
	}
	return company, nil
}

func (r *PostgresRepository) NextUpcomingTripForTag(ctx context.Context, tx pgx.Tx, companyID uuid.UUID, tag string) (*models.Trip, error) {
	var tripID uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT t.id
		FROM trips t
		JOIN routes r ON r.id = t.route_id
		WHERE r.transport_company_id = $1
		  AND $2 = ANY(r.tags)
		  AND t.is_running = true
		  AND (SELECT MIN(stop_time) FROM trip_stops WHERE trip_id = t.id) > now()
		ORDER BY (SELECT MIN(stop_time) FROM trip_stops WHERE trip_id = t.id) ASC
		LIMIT 1
	`, companyID, tag).Scan(&tripID)
	if err != nil {
		return nil, fmt.Errorf("ledger: no upcoming trip for company %s tag %q: %w", companyID, tag, err)
	}
	return r.GetTripForUpdate(ctx, tx, tripID)
}

func (r *PostgresRepository) InsertTicket(ctx context.Context, tx pgx.Tx, ticket *models.Ticket) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO tickets (id, user_id, trip_id, board_stop_id, alight_stop_id, status, discount_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ticket.ID, ticket.UserID, ticket.TripID, ticket.BoardStopID, ticket.AlightStopID, ticket.Status, ticket.DiscountValue)
	if err != nil {
		return fmt.Errorf("ledger: insert ticket %s: %w", ticket.ID, err)
	}
	return nil
}

func (r *PostgresRepository) UpdateTicketStatus(ctx context.Context, tx pgx.Tx, ticketID uuid.UUID, status models.TicketStatus) error {
	_, err := tx.Exec(ctx, `UPDATE tickets SET status = $2 WHERE id = $1`, ticketID, status)
	if err != nil {
		return fmt.Errorf("ledger: update ticket %s status: %w", ticketID, err)
	}
	return nil
}

func (r *PostgresRepository) AddTicketDiscount(ctx context.Context, tx pgx.Tx, ticketID uuid.UUID, delta float64) error {
	_, err := tx.Exec(ctx, `UPDATE tickets SET discount_value = discount_value + $2 WHERE id = $1`, ticketID, delta)
	if err != nil {
		return fmt.Errorf("ledger: add ticket %s discount: %w", ticketID, err)
	}
	return nil
}

func (r *PostgresRepository) GetTicket(ctx context.Context, tx pgx.Tx, ticketID uuid.UUID) (*models.Ticket, error) {
	ticket := &models.Ticket{ID: ticketID}
	err := tx.QueryRow(ctx, `
		SELECT user_id, trip_id, board_stop_id, alight_stop_id, status, discount_value
		FROM tickets WHERE id = $1
	`, ticketID).Scan(&ticket.UserID, &ticket.TripID, &ticket.BoardStopID, &ticket.AlightStopID, &ticket.Status, &ticket.DiscountValue)
	if err != nil {
		return nil, fmt.Errorf("ledger: get ticket %s: %w", ticketID, err)
	}
	return ticket, nil
}

func (r *PostgresRepository) CountUserTicketsForTrip(ctx context.Context, tx pgx.Tx, userID, tripID uuid.UUID, statuses []models.TicketStatus) (int, error) {
	var count int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM tickets WHERE user_id = $1 AND trip_id = $2 AND status = ANY($3)
	`, userID, tripID, statuses).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ledger: count tickets for user %s trip %s: %w", userID, tripID, err)
	}
	return count, nil
}

func (r *PostgresRepository) DecrementTripSeats(ctx context.Context, tx pgx.Tx, tripID uuid.UUID, n int) error {
	_, err := tx.Exec(ctx, `UPDATE trips SET seats_available = seats_available - $2 WHERE id = $1`, tripID, n)
	if err != nil {
		return fmt.Errorf("ledger: decrement trip %s seats: %w", tripID, err)
	}
	return nil
}

func (r *PostgresRepository) GetValidRoutePasses(ctx context.Context, tx pgx.Tx, userID, companyID uuid.UUID, tag string) ([]*models.RoutePass, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, price, discount_value
		FROM route_passes
		WHERE user_id = $1 AND company_id = $2 AND tag = $3 AND status = $4
		FOR UPDATE
	`, userID, companyID, tag, models.RoutePassValid)
	if err != nil {
		return nil, fmt.Errorf("ledger: load route passes for user %s tag %q: %w", userID, tag, err)
	}
	defer rows.Close()

	var passes []*models.RoutePass
	for rows.Next() {
		pass := &models.RoutePass{UserID: userID, CompanyID: companyID, Tag: tag, Status: models.RoutePassValid}
		if err := rows.Scan(&pass.ID, &pass.Price, &pass.DiscountValue); err != nil {
			return nil, fmt.Errorf("ledger: scan route pass for user %s: %w", userID, err)
		}
		passes = append(passes, pass)
	}
	return passes, rows.Err()
}

func (r *PostgresRepository) InsertRoutePass(ctx context.Context, tx pgx.Tx, pass *models.RoutePass) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO route_passes (id, user_id, company_id, tag, status, price, discount_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, pass.ID, pass.UserID, pass.CompanyID, pass.Tag, pass.Status, pass.Price, pass.DiscountValue)
	if err != nil {
		return fmt.Errorf("ledger: insert route pass %s: %w", pass.ID, err)
	}
	return nil
}

func (r *PostgresRepository) UpdateRoutePassStatus(ctx context.Context, tx pgx.Tx, passID uuid.UUID, status models.RoutePassStatus) error {
	_, err := tx.Exec(ctx, `UPDATE route_passes SET status = $2 WHERE id = $1`, passID, status)
	if err != nil {
		return fmt.Errorf("ledger: update route pass %s status: %w", passID, err)
	}
	return nil
}

func (r *PostgresRepository) AddRoutePassDiscount(ctx context.Context, tx pgx.Tx, passID uuid.UUID, delta float64) error {
	_, err := tx.Exec(ctx, `UPDATE route_passes SET discount_value = discount_value + $2 WHERE id = $1`, passID, delta)
	if err != nil {
		return fmt.Errorf("ledger: add route pass %s discount: %w", passID, err)
	}
	return nil
}

func (r *PostgresRepository) GetRoutePass(ctx context.Context, tx pgx.Tx, passID uuid.UUID) (*models.RoutePass, error) {
	pass := &models.RoutePass{ID: passID}
	err := tx.QueryRow(ctx, `
		SELECT user_id, company_id, tag, status, price, discount_value
		FROM route_passes WHERE id = $1
	`, passID).Scan(&pass.UserID, &pass.CompanyID, &pass.Tag, &pass.Status, &pass.Price, &pass.DiscountValue)
	if err != nil {
		return nil, fmt.Errorf("ledger: get route pass %s: %w", passID, err)
	}
	return pass, nil
}

func (r *PostgresRepository) InsertTransaction(ctx context.Context, tx pgx.Tx, txn *models.Transaction) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (id, type, committed, description, created_by_scope, created_by_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, txn.ID, txn.Type, txn.Committed, txn.Description, txn.CreatedBy.Scope, txn.CreatedBy.ID, txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("ledger: insert transaction %s: %w", txn.ID, err)
	}

	for _, item := range txn.Items {
		notes, err := json.Marshal(item.Notes)
		if err != nil {
			return fmt.Errorf("ledger: marshal item notes for transaction %s: %w", txn.ID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO transaction_items (id, transaction_id, item_type, item_id, debit, credit, notes, company_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, item.ID, txn.ID, item.ItemType, item.ItemID, item.Debit, item.Credit, notes, item.CompanyID)
		if err != nil {
			return fmt.Errorf("ledger: insert transaction item %s: %w", item.ID, err)
		}
	}
	return nil
}

func (r *PostgresRepository) GetTransaction(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Transaction, error) {
	txn := &models.Transaction{ID: id}
	err := tx.QueryRow(ctx, `
		SELECT type, committed, description, created_by_scope, created_by_id, created_at
		FROM transactions WHERE id = $1
	`, id).Scan(&txn.Type, &txn.Committed, &txn.Description, &txn.CreatedBy.Scope, &txn.CreatedBy.ID, &txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ledger: get transaction %s: %w", id, err)
	}

	rows, err := tx.Query(ctx, `
		SELECT id, item_type, item_id, debit, credit, notes, company_id
		FROM transaction_items WHERE transaction_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("ledger: load items for transaction %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var item models.TransactionItem
		var notes []byte
		item.TransactionID = id
		if err := rows.Scan(&item.ID, &item.ItemType, &item.ItemID, &item.Debit, &item.Credit, &notes, &item.CompanyID); err != nil {
			return nil, fmt.Errorf("ledger: scan transaction item for %s: %w", id, err)
		}
		if len(notes) > 0 {
			if err := json.Unmarshal(notes, &item.Notes); err != nil {
				return nil, fmt.Errorf("ledger: unmarshal item notes for %s: %w", id, err)
			}
		}
		txn.Items = append(txn.Items, item)
	}
	return txn, rows.Err()
}

func (r *PostgresRepository) SetTransactionCommitted(ctx context.Context, tx pgx.Tx, id uuid.UUID, committed bool) error {
	_, err := tx.Exec(ctx, `UPDATE transactions SET committed = $2 WHERE id = $1`, id, committed)
	if err != nil {
		return fmt.Errorf("ledger: set transaction %s committed=%v: %w", id, committed, err)
	}
	return nil
}

func (r *PostgresRepository) InsertPayment(ctx context.Context, tx pgx.Tx, payment *models.Payment) error {
	data, err := json.Marshal(payment.Data)
	if err != nil {
		return fmt.Errorf("ledger: marshal payment %s data: %w", payment.ID, err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO payments (id, transaction_id, payment_resource, data, is_micro)
		VALUES ($1, $2, $3, $4, $5)
	`, payment.ID, payment.TransactionID, payment.PaymentResource, data, payment.IsMicro)
	if err != nil {
		return fmt.Errorf("ledger: insert payment %s: %w", payment.ID, err)
	}
	return nil
}

func (r *PostgresRepository) SetPaymentResult(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID, paymentResource string, data map[string]interface{}) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("ledger: marshal payment %s result: %w", paymentID, err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE payments SET payment_resource = $2, data = $3 WHERE id = $1
	`, paymentID, paymentResource, encoded)
	if err != nil {
		return fmt.Errorf("ledger: set payment %s result: %w", paymentID, err)
	}
	return nil
}
