package court

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

var ErrCourtNotFound = errors.New("court not found")

type Repository interface {
	GetCourt(ctx context.Context, orgId int64, courtId int64) (Court, error)
	ListCourts(ctx context.Context, orgId int64) ([]Court, error)
}

type RepositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) GetCourt(ctx context.Context, orgId int64, courtId int64) (Court, error) {
	query := `SELECT id, org_id, name, surface, base_price FROM court WHERE org_id = $1 AND id = $2`

	var c Court
	err := r.db.QueryRowContext(ctx, query, orgId, courtId).
		Scan(&c.Id, &c.OrgId, &c.Name, &c.Surface, &c.BasePrice)
	if errors.Is(err, sql.ErrNoRows) {
		return Court{}, ErrCourtNotFound
	} else if err != nil {
		err := fmt.Errorf("could not query court: %w", err)
		log.Error(err)
		return Court{}, err
	}
	return c, nil
}

func (r *RepositoryImpl) ListCourts(ctx context.Context, orgId int64) ([]Court, error) {
	query := `SELECT id, org_id, name, surface, base_price FROM court WHERE org_id = $1 ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, orgId)
	if err != nil {
		err := fmt.Errorf("could not query courts: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	courts := make([]Court, 0, 10)
	for rows.Next() {
		var c Court
		if err := rows.Scan(&c.Id, &c.OrgId, &c.Name, &c.Surface, &c.BasePrice); err != nil {
			err := fmt.Errorf("could not scan row: %w", err)
			log.Error(err)
			return nil, err
		}
		courts = append(courts, c)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return courts, nil
}
