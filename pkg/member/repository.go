package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

var ErrMemberNotFound = errors.New("member not found")

type Repository interface {
	FindByUserId(ctx context.Context, orgId int64, userId int64) (Member, error)
	FindByPhone(ctx context.Context, orgId int64, phone string) (Member, error)
	FindByName(ctx context.Context, orgId int64, name string) (Member, error)
	GetMember(ctx context.Context, orgId int64, memberId int64) (Member, error)
	ListMembers(ctx context.Context, orgId int64) ([]Member, error)
	CreateMember(ctx context.Context, m Member) (int64, error)
	UpdateContact(ctx context.Context, orgId int64, memberId int64, phone, email string, userId *int64) error
	UpdateMember(ctx context.Context, orgId int64, m Member) error
	Touch(ctx context.Context, orgId int64, memberId int64, at time.Time) error
}

type RepositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const memberColumns = `id, org_id, user_id, full_name, phone, email, status, last_interaction_at`

func (r *RepositoryImpl) FindByUserId(ctx context.Context, orgId int64, userId int64) (Member, error) {
	query := `SELECT ` + memberColumns + ` FROM member WHERE org_id = $1 AND user_id = $2`
	return r.queryOne(ctx, query, orgId, userId)
}

func (r *RepositoryImpl) FindByPhone(ctx context.Context, orgId int64, phone string) (Member, error) {
	query := `SELECT ` + memberColumns + ` FROM member WHERE org_id = $1 AND phone = $2`
	return r.queryOne(ctx, query, orgId, phone)
}

// FindByName matches on case-insensitive full-name equality. This is the
// weakest tier of the resolution cascade and is only consulted when no app
// user id was supplied.
func (r *RepositoryImpl) FindByName(ctx context.Context, orgId int64, name string) (Member, error) {
	query := `SELECT ` + memberColumns + ` FROM member WHERE org_id = $1 AND LOWER(full_name) = LOWER($2)`
	return r.queryOne(ctx, query, orgId, name)
}

func (r *RepositoryImpl) GetMember(ctx context.Context, orgId int64, memberId int64) (Member, error) {
	query := `SELECT ` + memberColumns + ` FROM member WHERE org_id = $1 AND id = $2`
	return r.queryOne(ctx, query, orgId, memberId)
}

func (r *RepositoryImpl) queryOne(ctx context.Context, query string, args ...interface{}) (Member, error) {
	var m Member
	var userId sql.NullInt64
	var phone, email sql.NullString
	var lastInteractionMillis int64

	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&m.Id, &m.OrgId, &userId, &m.FullName, &phone, &email, &m.Status, &lastInteractionMillis)
	if errors.Is(err, sql.ErrNoRows) {
		return Member{}, ErrMemberNotFound
	} else if err != nil {
		err := fmt.Errorf("could not query member: %w", err)
		log.Error(err)
		return Member{}, err
	}

	if userId.Valid {
		m.UserId = &userId.Int64
	}
	m.Phone = phone.String
	m.Email = email.String
	m.LastInteractionAt = time.UnixMilli(lastInteractionMillis)
	return m, nil
}

func (r *RepositoryImpl) ListMembers(ctx context.Context, orgId int64) ([]Member, error) {
	query := `SELECT ` + memberColumns + ` FROM member WHERE org_id = $1 ORDER BY full_name`

	rows, err := r.db.QueryContext(ctx, query, orgId)
	if err != nil {
		err := fmt.Errorf("could not query members: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	members := make([]Member, 0, 20)
	for rows.Next() {
		var m Member
		var userId sql.NullInt64
		var phone, email sql.NullString
		var lastInteractionMillis int64
		if err := rows.Scan(&m.Id, &m.OrgId, &userId, &m.FullName, &phone, &email, &m.Status, &lastInteractionMillis); err != nil {
			err := fmt.Errorf("could not scan row: %w", err)
			log.Error(err)
			return nil, err
		}
		if userId.Valid {
			m.UserId = &userId.Int64
		}
		m.Phone = phone.String
		m.Email = email.String
		m.LastInteractionAt = time.UnixMilli(lastInteractionMillis)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return members, nil
}

func (r *RepositoryImpl) CreateMember(ctx context.Context, m Member) (int64, error) {
	query := `INSERT INTO member (org_id, user_id, full_name, phone, email, status, last_interaction_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		m.OrgId,
		nullableInt64(m.UserId),
		m.FullName,
		nullableString(m.Phone),
		nullableString(m.Email),
		m.Status,
		m.LastInteractionAt.UnixMilli(),
	).Scan(&id)
	if err != nil {
		err := fmt.Errorf("could not create member: %w", err)
		log.Error(err)
		return 0, err
	}
	return id, nil
}

// UpdateContact enriches a manual (not app-linked) member profile in place.
func (r *RepositoryImpl) UpdateContact(ctx context.Context, orgId int64, memberId int64, phone, email string, userId *int64) error {
	query := `UPDATE member SET phone = $1, email = $2, user_id = $3 WHERE org_id = $4 AND id = $5`

	_, err := r.db.ExecContext(ctx, query,
		nullableString(phone),
		nullableString(email),
		nullableInt64(userId),
		orgId,
		memberId,
	)
	if err != nil {
		err := fmt.Errorf("could not update member contact: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) UpdateMember(ctx context.Context, orgId int64, m Member) error {
	query := `UPDATE member SET full_name = $1, phone = $2, email = $3, status = $4 WHERE org_id = $5 AND id = $6`

	res, err := r.db.ExecContext(ctx, query,
		m.FullName,
		nullableString(m.Phone),
		nullableString(m.Email),
		m.Status,
		orgId,
		m.Id,
	)
	if err != nil {
		err := fmt.Errorf("could not update member: %w", err)
		log.Error(err)
		return err
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func (r *RepositoryImpl) Touch(ctx context.Context, orgId int64, memberId int64, at time.Time) error {
	query := `UPDATE member SET last_interaction_at = $1 WHERE org_id = $2 AND id = $3`

	_, err := r.db.ExecContext(ctx, query, at.UnixMilli(), orgId, memberId)
	if err != nil {
		err := fmt.Errorf("could not touch member: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt64(i *int64) interface{} {
	if i == nil {
		return nil
	}
	return *i
}
