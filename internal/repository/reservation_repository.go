package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/charge-slot-reservation/internal/model"
)

// ReservationRepo persists reservations in MySQL.  Admission and state
// transitions run inside transactions that lock the connector row (for
// admission) or the reservation row (for transitions) with SELECT ... FOR
// UPDATE, so concurrent requests on the same connector are serialized by
// InnoDB while unrelated connectors proceed in parallel.  All timestamps
// are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying sql.DB.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationCols = `id, station_id, connector_id, user_id, start_time, end_time, amount,
       reservation_state, payment_state, payment_deadline, payment_token, created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (model.Reservation, error) {
	var res model.Reservation
	var state, payState string
	err := row.Scan(
		&res.ID, &res.StationID, &res.ConnectorID, &res.UserID, &res.StartTime, &res.EndTime, &res.Amount,
		&state, &payState, &res.PaymentDeadline, &res.PaymentToken, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return model.Reservation{}, err
	}
	res.State = model.ReservationState(state)
	res.PaymentState = model.PaymentState(payState)
	return res, nil
}

func collectReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FindOverlapping returns the active reservations on a connector whose
// interval intersects [start, end).  excludeID, when non-empty, is left
// out of the result.  This is a plain read; admission decisions must go
// through InsertIfNoOverlap.
func (r *ReservationRepo) FindOverlapping(ctx context.Context, connectorID string, start, end time.Time, excludeID string) ([]model.Reservation, error) {
	q := `SELECT ` + reservationCols + `
          FROM reservations
          WHERE connector_id = ? AND reservation_state IN ('pending','booked')
            AND start_time < ? AND end_time > ?`
	args := []any{connectorID, end.UTC(), start.UTC()}
	if excludeID != "" {
		q += ` AND id <> ?`
		args = append(args, excludeID)
	}
	q += ` ORDER BY start_time`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("find overlapping: %w", err)
	}
	return collectReservations(rows)
}

// InsertIfNoOverlap admits res atomically.  Within one transaction it
// locks the connector row, expires pending reservations on the same
// interval whose payment deadline passed before now, counts the remaining
// active overlaps and inserts res only when there are none.  A rejected
// admission returns *ConflictError and writes nothing.
func (r *ReservationRepo) InsertIfNoOverlap(ctx context.Context, res *model.Reservation, now time.Time) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var locked string
		err := tx.QueryRowContext(ctx, `SELECT id FROM connectors WHERE id = ? FOR UPDATE`, res.ConnectorID).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock connector: %w", err)
		}

		const expire = `UPDATE reservations
                        SET reservation_state = 'cancelled', payment_state = 'expired', updated_at = ?
                        WHERE connector_id = ? AND reservation_state = 'pending' AND payment_deadline < ?
                          AND start_time < ? AND end_time > ?`
		if _, err := tx.ExecContext(ctx, expire, now.UTC(), res.ConnectorID, now.UTC(), res.EndTime.UTC(), res.StartTime.UTC()); err != nil {
			return fmt.Errorf("expire stale pending: %w", err)
		}

		const count = `SELECT COUNT(*) FROM reservations
                       WHERE connector_id = ? AND reservation_state IN ('pending','booked')
                         AND start_time < ? AND end_time > ?
                       FOR UPDATE`
		var n int
		if err := tx.QueryRowContext(ctx, count, res.ConnectorID, res.EndTime.UTC(), res.StartTime.UTC()).Scan(&n); err != nil {
			return fmt.Errorf("count overlapping: %w", err)
		}
		if n > 0 {
			return &ConflictError{Count: n}
		}

		const ins = `INSERT INTO reservations (id, station_id, connector_id, user_id, start_time, end_time, amount,
                         reservation_state, payment_state, payment_deadline, payment_token, created_at, updated_at)
                     VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err = tx.ExecContext(ctx, ins,
			res.ID, res.StationID, res.ConnectorID, res.UserID, res.StartTime.UTC(), res.EndTime.UTC(), res.Amount,
			string(res.State), string(res.PaymentState), res.PaymentDeadline.UTC(), res.PaymentToken,
			res.CreatedAt.UTC(), res.UpdatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
		return nil
	})
}

// Get returns a reservation by id or ErrNotFound.
func (r *ReservationRepo) Get(ctx context.Context, id string) (model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx, `SELECT `+reservationCols+` FROM reservations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrNotFound
	}
	if err != nil {
		return model.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// Update locks the reservation row, hands a copy to mutate and persists
// the state columns when mutate returns nil.  Only the reservation state,
// payment state and updated_at are writable; every other field set by
// mutate is ignored.  When mutate returns an error nothing is written and
// the error is returned unchanged.
func (r *ReservationRepo) Update(ctx context.Context, id string, mutate func(*model.Reservation) error) (model.Reservation, error) {
	var out model.Reservation
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		cur, err := scanReservation(tx.QueryRowContext(ctx, `SELECT `+reservationCols+` FROM reservations WHERE id = ? FOR UPDATE`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock reservation: %w", err)
		}
		next := cur
		if err := mutate(&next); err != nil {
			return err
		}
		cur.State = next.State
		cur.PaymentState = next.PaymentState
		cur.UpdatedAt = next.UpdatedAt
		const upd = `UPDATE reservations SET reservation_state = ?, payment_state = ?, updated_at = ? WHERE id = ?`
		if _, err := tx.ExecContext(ctx, upd, string(cur.State), string(cur.PaymentState), cur.UpdatedAt.UTC(), id); err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}
		out = cur
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	return out, nil
}

// ListByUser returns all reservations of a user, newest first.  When the
// user has none an empty slice is returned.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list by user: %w", err)
	}
	return collectReservations(rows)
}

// ListByStation returns the reservations of a station matching f ordered
// by start time.
func (r *ReservationRepo) ListByStation(ctx context.Context, stationID string, f ReservationFilter) ([]model.Reservation, error) {
	q := `SELECT ` + reservationCols + ` FROM reservations WHERE station_id = ?`
	args := []any{stationID}
	if len(f.States) > 0 {
		placeholders := make([]string, 0, len(f.States))
		for _, s := range f.States {
			placeholders = append(placeholders, "?")
			args = append(args, string(s))
		}
		q += ` AND reservation_state IN (` + strings.Join(placeholders, ",") + `)`
	}
	if !f.StartFrom.IsZero() {
		q += ` AND start_time >= ?`
		args = append(args, f.StartFrom.UTC())
	}
	if !f.StartTo.IsZero() {
		q += ` AND start_time <= ?`
		args = append(args, f.StartTo.UTC())
	}
	q += ` ORDER BY start_time, id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list by station: %w", err)
	}
	return collectReservations(rows)
}

// ExpirePending moves every pending reservation whose deadline is before
// now to cancelled/expired and returns how many rows changed.
func (r *ReservationRepo) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	const q = `UPDATE reservations
               SET reservation_state = 'cancelled', payment_state = 'expired', updated_at = ?
               WHERE reservation_state = 'pending' AND payment_deadline < ?`
	result, err := r.db.ExecContext(ctx, q, now.UTC(), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("expire pending: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
