// repository/unit/repo.go
package unit

import (
	"context"
	"database/sql"

	"github.com/Zazh/foxapp/model"
)

type ListFilter struct {
	ServiceID  int64
	LocationID int64
	OnlyActive bool
	Available  *bool
}

type Repo interface {
	// AllocateOne reserves the lowest-ordered free unit for the
	// (service, location) pool and flips is_available in the same
	// statement. SKIP LOCKED keeps concurrent callers off the same row,
	// so at most one caller wins a given unit. sql.ErrNoRows means the
	// pool is exhausted.
	AllocateOne(ctx context.Context, tx *sql.Tx, serviceID, locationID int64) (int64, error)

	// Release frees a unit. Idempotent: releasing an already-available
	// unit is a no-op.
	Release(ctx context.Context, unitID int64) error
	ReleaseTx(ctx context.Context, tx *sql.Tx, unitID int64) error

	FullCode(ctx context.Context, unitID int64) (string, error)
	List(ctx context.Context, f ListFilter) ([]model.StorageUnit, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

func (r *repo) AllocateOne(ctx context.Context, tx *sql.Tx, serviceID, locationID int64) (int64, error) {
	const q = `
		UPDATE storage_units
		SET is_available = FALSE
		WHERE id = (
			SELECT u.id
			FROM storage_units u
			JOIN sections s ON s.id = u.section_id
			WHERE s.service_id = $1
			  AND s.location_id = $2
			  AND s.is_active
			  AND u.is_active
			  AND u.is_available
			ORDER BY s.sort_order, u.unit_number
			FOR UPDATE OF u SKIP LOCKED
			LIMIT 1
		)
		RETURNING id`
	var unitID int64
	err := tx.QueryRowContext(ctx, q, serviceID, locationID).Scan(&unitID)
	return unitID, err
}

const releaseQ = `
	UPDATE storage_units
	SET is_available = TRUE
	WHERE id = $1`

func (r *repo) Release(ctx context.Context, unitID int64) error {
	_, err := r.db.ExecContext(ctx, releaseQ, unitID)
	return err
}

func (r *repo) ReleaseTx(ctx context.Context, tx *sql.Tx, unitID int64) error {
	_, err := tx.ExecContext(ctx, releaseQ, unitID)
	return err
}

func (r *repo) FullCode(ctx context.Context, unitID int64) (string, error) {
	const q = `
		SELECT upper(left(l.name, 3)) || '-' || s.name || '-' || u.unit_number
		FROM storage_units u
		JOIN sections s ON s.id = u.section_id
		JOIN locations l ON l.id = s.location_id
		WHERE u.id = $1`
	var code string
	err := r.db.QueryRowContext(ctx, q, unitID).Scan(&code)
	return code, err
}

func (r *repo) List(ctx context.Context, f ListFilter) ([]model.StorageUnit, error) {
	q := `
		SELECT u.id, u.section_id, u.unit_number, u.is_available, u.is_active,
		       upper(left(l.name, 3)) || '-' || s.name || '-' || u.unit_number
		FROM storage_units u
		JOIN sections s ON s.id = u.section_id
		JOIN locations l ON l.id = s.location_id
		WHERE ($1 = 0 OR s.service_id = $1)
		  AND ($2 = 0 OR s.location_id = $2)
		  AND (NOT $3 OR (s.is_active AND u.is_active))
		  AND ($4::boolean IS NULL OR u.is_available = $4)
		ORDER BY s.sort_order, u.unit_number`
	rows, err := r.db.QueryContext(ctx, q, f.ServiceID, f.LocationID, f.OnlyActive, f.Available)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StorageUnit
	for rows.Next() {
		var u model.StorageUnit
		if err := rows.Scan(&u.ID, &u.SectionID, &u.UnitNumber, &u.IsAvailable, &u.IsActive, &u.FullCode); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
