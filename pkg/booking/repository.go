package booking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrBookingNotFound = errors.New("booking not found")

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error
	StoreBooking(ctx context.Context, b Booking) (Booking, error)
	StoreBookings(ctx context.Context, bookings []Booking) error
	GetBooking(ctx context.Context, orgId int64, bookingId int64) (Booking, error)
	ListForCourtBetween(ctx context.Context, courtId int64, from, to time.Time, excludePlanId *int64) ([]Booking, error)
	ListForPlan(ctx context.Context, planId int64, from *time.Time) ([]Booking, error)
	UpdateBooking(ctx context.Context, orgId int64, b Booking) error
	UpdatePriceForPlanFrom(ctx context.Context, planId int64, from time.Time, price decimal.Decimal) (int64, error)
	MarkPaid(ctx context.Context, orgId int64, bookingIds []int64) error
	MarkCanceled(ctx context.Context, orgId int64, bookingId int64, annotation string) error
	CancelPendingForPlanFrom(ctx context.Context, planId int64, from time.Time) error
	DeleteBooking(ctx context.Context, orgId int64, bookingId int64) error
}

type RepositoryImpl struct {
	db *sql.DB
	tx *sql.Tx
}

func NewRepository(db *sql.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db, tx: nil}
}

// getQueryer returns the appropriate database interface for queries (either tx or db)
func (r *RepositoryImpl) getQueryer() interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *RepositoryImpl) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// The Rollback will be a no-op if the transaction was already committed
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	txRepo := &RepositoryImpl{db: r.db, tx: tx}

	if err := fn(txRepo); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

const bookingColumns = `id, uid, org_id, court_id, user_id, member_id, start_time, end_time,
				title, description, payment_status, price, recurring_plan_id, metadata`

func (r *RepositoryImpl) StoreBooking(ctx context.Context, b Booking) (Booking, error) {
	query := `INSERT INTO booking (
					uid,
					org_id,
					court_id,
					user_id,
					member_id,
					start_time,
					end_time,
					title,
					description,
					payment_status,
					price,
					recurring_plan_id,
					metadata
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
				RETURNING id`

	if b.Uid == uuid.Nil {
		b.Uid = uuid.New()
	}
	metadata, err := marshalMetadata(b.Metadata)
	if err != nil {
		log.Error(err)
		return Booking{}, err
	}

	err = r.getQueryer().QueryRowContext(ctx, query,
		b.Uid.String(),
		b.OrgId,
		b.CourtId,
		nullableInt64(b.UserId),
		nullableInt64(b.MemberId),
		b.StartTime.UnixMilli(),
		b.EndTime.UnixMilli(),
		b.Title,
		b.Description,
		b.PaymentStatus,
		b.Price,
		nullableInt64(b.RecurringPlanId),
		metadata,
	).Scan(&b.Id)
	if err != nil {
		err := fmt.Errorf("could not store booking: %w", err)
		log.Error(err)
		return Booking{}, err
	}
	return b, nil
}

// StoreBookings inserts a batch of bookings. It fails on the first insert
// error; callers decide whether the partial batch is acceptable.
func (r *RepositoryImpl) StoreBookings(ctx context.Context, bookings []Booking) error {
	for _, b := range bookings {
		if _, err := r.StoreBooking(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func (r *RepositoryImpl) GetBooking(ctx context.Context, orgId int64, bookingId int64) (Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM booking WHERE org_id = $1 AND id = $2`

	row := r.getQueryer().QueryRowContext(ctx, query, orgId, bookingId)
	b, err := scanBookingRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Booking{}, ErrBookingNotFound
	} else if err != nil {
		err := fmt.Errorf("could not query booking: %w", err)
		log.Error(err)
		return Booking{}, err
	}
	return b, nil
}

// ListForCourtBetween returns non-canceled bookings on the court that
// intersect [from, to), ordered by start time. excludePlanId filters out the
// given plan's own bookings.
func (r *RepositoryImpl) ListForCourtBetween(ctx context.Context, courtId int64, from, to time.Time, excludePlanId *int64) ([]Booking, error) {
	query := `SELECT ` + bookingColumns + `
				FROM booking
				WHERE court_id = $1
				  AND payment_status != 'canceled'
				  AND start_time < $2
				  AND end_time > $3`
	args := []interface{}{courtId, to.UnixMilli(), from.UnixMilli()}

	if excludePlanId != nil {
		query += ` AND (recurring_plan_id IS NULL OR recurring_plan_id != $4)`
		args = append(args, *excludePlanId)
	}
	query += ` ORDER BY start_time`

	return r.queryBookings(ctx, query, args...)
}

// ListForPlan returns the plan's non-canceled bookings, optionally limited to
// those starting at or after from.
func (r *RepositoryImpl) ListForPlan(ctx context.Context, planId int64, from *time.Time) ([]Booking, error) {
	query := `SELECT ` + bookingColumns + `
				FROM booking
				WHERE recurring_plan_id = $1
				  AND payment_status != 'canceled'`
	args := []interface{}{planId}

	if from != nil {
		query += ` AND start_time >= $2`
		args = append(args, from.UnixMilli())
	}
	query += ` ORDER BY start_time`

	return r.queryBookings(ctx, query, args...)
}

func (r *RepositoryImpl) UpdateBooking(ctx context.Context, orgId int64, b Booking) error {
	query := `UPDATE booking SET
					court_id = $1,
					start_time = $2,
					end_time = $3,
					title = $4,
					description = $5,
					payment_status = $6,
					price = $7,
					metadata = $8
				WHERE org_id = $9 AND id = $10`

	metadata, err := marshalMetadata(b.Metadata)
	if err != nil {
		log.Error(err)
		return err
	}

	res, err := r.getQueryer().ExecContext(ctx, query,
		b.CourtId,
		b.StartTime.UnixMilli(),
		b.EndTime.UnixMilli(),
		b.Title,
		b.Description,
		b.PaymentStatus,
		b.Price,
		metadata,
		orgId,
		b.Id,
	)
	if err != nil {
		err := fmt.Errorf("could not update booking: %w", err)
		log.Error(err)
		return err
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// UpdatePriceForPlanFrom re-prices the plan's future pending bookings. Paid
// bookings are immutable and are not touched.
func (r *RepositoryImpl) UpdatePriceForPlanFrom(ctx context.Context, planId int64, from time.Time, price decimal.Decimal) (int64, error) {
	query := `UPDATE booking SET price = $1
				WHERE recurring_plan_id = $2
				  AND payment_status = 'pending'
				  AND start_time >= $3`

	res, err := r.getQueryer().ExecContext(ctx, query, price, planId, from.UnixMilli())
	if err != nil {
		err := fmt.Errorf("could not update plan booking prices: %w", err)
		log.Error(err)
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		err := fmt.Errorf("could not read affected rows: %w", err)
		log.Error(err)
		return 0, err
	}
	return affected, nil
}

func (r *RepositoryImpl) MarkPaid(ctx context.Context, orgId int64, bookingIds []int64) error {
	if len(bookingIds) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(bookingIds))
	for i := range bookingIds {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
	}
	query := `UPDATE booking SET payment_status = 'paid'
				WHERE org_id = $1 AND payment_status = 'pending' AND id IN (` + strings.Join(placeholders, ", ") + `)`

	args := make([]interface{}, 0, len(bookingIds)+1)
	args = append(args, orgId)
	for _, id := range bookingIds {
		args = append(args, id)
	}

	_, err := r.getQueryer().ExecContext(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not mark bookings paid: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

// MarkCanceled soft-deletes a booking. A non-empty annotation is appended to
// the booking description for downstream display.
func (r *RepositoryImpl) MarkCanceled(ctx context.Context, orgId int64, bookingId int64, annotation string) error {
	query := `UPDATE booking SET
					payment_status = 'canceled',
					description = TRIM(description || ' ' || $1)
				WHERE org_id = $2 AND id = $3`

	res, err := r.getQueryer().ExecContext(ctx, query, annotation, orgId, bookingId)
	if err != nil {
		err := fmt.Errorf("could not cancel booking: %w", err)
		log.Error(err)
		return err
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// CancelPendingForPlanFrom soft-deletes the plan's future unpaid bookings,
// used by structural plan reschedules before regeneration.
func (r *RepositoryImpl) CancelPendingForPlanFrom(ctx context.Context, planId int64, from time.Time) error {
	query := `UPDATE booking SET payment_status = 'canceled'
				WHERE recurring_plan_id = $1
				  AND payment_status = 'pending'
				  AND start_time >= $2`

	_, err := r.getQueryer().ExecContext(ctx, query, planId, from.UnixMilli())
	if err != nil {
		err := fmt.Errorf("could not cancel plan bookings: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

// DeleteBooking removes a booking row entirely. Only the compensating
// rollback of a failed incident extension uses it; everything else cancels.
func (r *RepositoryImpl) DeleteBooking(ctx context.Context, orgId int64, bookingId int64) error {
	query := `DELETE FROM booking WHERE org_id = $1 AND id = $2`

	_, err := r.getQueryer().ExecContext(ctx, query, orgId, bookingId)
	if err != nil {
		err := fmt.Errorf("could not delete booking: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) queryBookings(ctx context.Context, query string, args ...interface{}) ([]Booking, error) {
	rows, err := r.getQueryer().QueryContext(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query bookings: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	bookings := make([]Booking, 0, 10)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			err := fmt.Errorf("could not scan row: %w", err)
			log.Error(err)
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return bookings, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (Booking, error) {
	var b Booking
	var uid string
	var userId, memberId, planId sql.NullInt64
	var startMillis, endMillis int64
	var metadata sql.NullString

	err := row.Scan(
		&b.Id,
		&uid,
		&b.OrgId,
		&b.CourtId,
		&userId,
		&memberId,
		&startMillis,
		&endMillis,
		&b.Title,
		&b.Description,
		&b.PaymentStatus,
		&b.Price,
		&planId,
		&metadata,
	)
	if err != nil {
		return Booking{}, err
	}

	parsedUid, err := uuid.Parse(uid)
	if err != nil {
		return Booking{}, fmt.Errorf("invalid booking uid %q: %w", uid, err)
	}
	b.Uid = parsedUid
	if userId.Valid {
		b.UserId = &userId.Int64
	}
	if memberId.Valid {
		b.MemberId = &memberId.Int64
	}
	if planId.Valid {
		b.RecurringPlanId = &planId.Int64
	}
	b.StartTime = time.UnixMilli(startMillis)
	b.EndTime = time.UnixMilli(endMillis)
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &b.Metadata); err != nil {
			return Booking{}, fmt.Errorf("invalid booking metadata: %w", err)
		}
	}
	return b, nil
}

func scanBookingRow(row *sql.Row) (Booking, error) {
	return scanBooking(row)
}

func marshalMetadata(metadata map[string]string) (interface{}, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("could not marshal booking metadata: %w", err)
	}
	return string(raw), nil
}

func nullableInt64(i *int64) interface{} {
	if i == nil {
		return nil
	}
	return *i
}
