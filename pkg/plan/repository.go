package plan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

var ErrPlanNotFound = errors.New("plan not found")

const dateLayout = "2006-01-02"

type Repository interface {
	CreatePlan(ctx context.Context, p RecurringPlan) (int64, error)
	GetPlan(ctx context.Context, orgId int64, planId int64) (RecurringPlan, error)
	ListPlans(ctx context.Context, orgId int64) ([]RecurringPlan, error)
	UpdatePlan(ctx context.Context, orgId int64, p RecurringPlan) error
	UpdateEndDate(ctx context.Context, orgId int64, planId int64, endDate time.Time) error
	SetActive(ctx context.Context, orgId int64, planId int64, active bool) error
	DeactivateExpired(ctx context.Context, orgId int64, before time.Time) (int64, error)
}

type RepositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const planColumns = `id, org_id, user_id, member_id, court_id, day_of_week, start_time,
				start_date, end_date, total_price, active, payment_advance`

func (r *RepositoryImpl) CreatePlan(ctx context.Context, p RecurringPlan) (int64, error) {
	query := `INSERT INTO recurring_plan (
					org_id,
					user_id,
					member_id,
					court_id,
					day_of_week,
					start_time,
					start_date,
					end_date,
					total_price,
					active,
					payment_advance
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		p.OrgId,
		nullableInt64(p.UserId),
		nullableInt64(p.MemberId),
		p.CourtId,
		int(p.DayOfWeek),
		p.StartTime,
		p.StartDate.Format(dateLayout),
		p.EndDate.Format(dateLayout),
		p.TotalPrice,
		p.Active,
		p.PaymentAdvance,
	).Scan(&id)
	if err != nil {
		err := fmt.Errorf("could not create plan: %w", err)
		log.Error(err)
		return 0, err
	}
	return id, nil
}

func (r *RepositoryImpl) GetPlan(ctx context.Context, orgId int64, planId int64) (RecurringPlan, error) {
	query := `SELECT ` + planColumns + ` FROM recurring_plan WHERE org_id = $1 AND id = $2`

	p, err := scanPlan(r.db.QueryRowContext(ctx, query, orgId, planId))
	if errors.Is(err, sql.ErrNoRows) {
		return RecurringPlan{}, ErrPlanNotFound
	} else if err != nil {
		err := fmt.Errorf("could not query plan: %w", err)
		log.Error(err)
		return RecurringPlan{}, err
	}
	return p, nil
}

func (r *RepositoryImpl) ListPlans(ctx context.Context, orgId int64) ([]RecurringPlan, error) {
	query := `SELECT ` + planColumns + ` FROM recurring_plan WHERE org_id = $1 ORDER BY start_date, id`

	rows, err := r.db.QueryContext(ctx, query, orgId)
	if err != nil {
		err := fmt.Errorf("could not query plans: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	plans := make([]RecurringPlan, 0, 10)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			err := fmt.Errorf("could not scan row: %w", err)
			log.Error(err)
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return plans, nil
}

func (r *RepositoryImpl) UpdatePlan(ctx context.Context, orgId int64, p RecurringPlan) error {
	query := `UPDATE recurring_plan SET
					court_id = $1,
					day_of_week = $2,
					start_time = $3,
					start_date = $4,
					end_date = $5,
					total_price = $6,
					active = $7,
					payment_advance = $8
				WHERE org_id = $9 AND id = $10`

	res, err := r.db.ExecContext(ctx, query,
		p.CourtId,
		int(p.DayOfWeek),
		p.StartTime,
		p.StartDate.Format(dateLayout),
		p.EndDate.Format(dateLayout),
		p.TotalPrice,
		p.Active,
		p.PaymentAdvance,
		orgId,
		p.Id,
	)
	if err != nil {
		err := fmt.Errorf("could not update plan: %w", err)
		log.Error(err)
		return err
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrPlanNotFound
	}
	return nil
}

func (r *RepositoryImpl) UpdateEndDate(ctx context.Context, orgId int64, planId int64, endDate time.Time) error {
	query := `UPDATE recurring_plan SET end_date = $1 WHERE org_id = $2 AND id = $3`

	res, err := r.db.ExecContext(ctx, query, endDate.Format(dateLayout), orgId, planId)
	if err != nil {
		err := fmt.Errorf("could not update plan end date: %w", err)
		log.Error(err)
		return err
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrPlanNotFound
	}
	return nil
}

func (r *RepositoryImpl) SetActive(ctx context.Context, orgId int64, planId int64, active bool) error {
	query := `UPDATE recurring_plan SET active = $1 WHERE org_id = $2 AND id = $3`

	res, err := r.db.ExecContext(ctx, query, active, orgId, planId)
	if err != nil {
		err := fmt.Errorf("could not update plan active flag: %w", err)
		log.Error(err)
		return err
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrPlanNotFound
	}
	return nil
}

// DeactivateExpired flips active off for every plan whose end date lies
// before the given day. Called lazily before plan listings.
func (r *RepositoryImpl) DeactivateExpired(ctx context.Context, orgId int64, before time.Time) (int64, error) {
	query := `UPDATE recurring_plan SET active = $1 WHERE org_id = $2 AND active = $3 AND end_date < $4`

	res, err := r.db.ExecContext(ctx, query, false, orgId, true, before.Format(dateLayout))
	if err != nil {
		err := fmt.Errorf("could not deactivate expired plans: %w", err)
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

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPlan(row rowScanner) (RecurringPlan, error) {
	var p RecurringPlan
	var userId, memberId sql.NullInt64
	var dayOfWeek int
	var startDate, endDate string

	err := row.Scan(
		&p.Id,
		&p.OrgId,
		&userId,
		&memberId,
		&p.CourtId,
		&dayOfWeek,
		&p.StartTime,
		&startDate,
		&endDate,
		&p.TotalPrice,
		&p.Active,
		&p.PaymentAdvance,
	)
	if err != nil {
		return RecurringPlan{}, err
	}

	if userId.Valid {
		p.UserId = &userId.Int64
	}
	if memberId.Valid {
		p.MemberId = &memberId.Int64
	}
	p.DayOfWeek = time.Weekday(dayOfWeek)
	if p.StartDate, err = time.ParseInLocation(dateLayout, startDate, time.Local); err != nil {
		return RecurringPlan{}, fmt.Errorf("invalid plan start date %q: %w", startDate, err)
	}
	if p.EndDate, err = time.ParseInLocation(dateLayout, endDate, time.Local); err != nil {
		return RecurringPlan{}, fmt.Errorf("invalid plan end date %q: %w", endDate, err)
	}
	return p, nil
}

func nullableInt64(i *int64) interface{} {
	if i == nil {
		return nil
	}
	return *i
}
