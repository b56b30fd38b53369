// repository/visit/repo.go
package visit

import (
	"context"
	"database/sql"
	"time"

	"github.com/Zazh/foxapp/model"
)

type Repo interface {
	InsertToken(ctx context.Context, t *model.AccessToken) error
	TokenByValue(ctx context.Context, value string) (*model.AccessToken, error)

	// ReusableToken finds an unexpired token of the given type for the
	// booking; guest tokens must also be unused. Issue flows reuse it
	// instead of minting a fresh one on every request.
	ReusableToken(ctx context.Context, bookingID int64, typ model.TokenType, now time.Time) (*model.AccessToken, error)

	SetGuestName(ctx context.Context, tokenID int64, name string) error

	// ConsumeAndRecord burns a guest token and appends the visit in one
	// transaction. The consume is guarded on is_used so two concurrent
	// scans cannot both win; false means another scan already consumed
	// the token and nothing was written.
	ConsumeAndRecord(ctx context.Context, tokenID int64, usedAt time.Time, v *model.Visit) (bool, error)

	InsertVisit(ctx context.Context, v *model.Visit) error
	ListByUser(ctx context.Context, userID, bookingID int64, limit int) ([]model.Visit, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

func (r *repo) InsertToken(ctx context.Context, t *model.AccessToken) error {
	const q = `
		INSERT INTO access_tokens (booking_id, token, token_type, expires_at)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, q, t.BookingID, t.Token, t.TokenType, t.ExpiresAt).
		Scan(&t.ID, &t.CreatedAt)
}

const tokenCols = `
	id, booking_id, token, token_type, COALESCE(guest_name, ''),
	expires_at, is_used, used_at, created_at`

func scanToken(row *sql.Row) (*model.AccessToken, error) {
	t := &model.AccessToken{}
	err := row.Scan(
		&t.ID, &t.BookingID, &t.Token, &t.TokenType, &t.GuestName,
		&t.ExpiresAt, &t.IsUsed, &t.UsedAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *repo) TokenByValue(ctx context.Context, value string) (*model.AccessToken, error) {
	return scanToken(r.db.QueryRowContext(ctx, `
		SELECT `+tokenCols+`
		FROM access_tokens
		WHERE token = $1`, value))
}

func (r *repo) ReusableToken(ctx context.Context, bookingID int64, typ model.TokenType, now time.Time) (*model.AccessToken, error) {
	return scanToken(r.db.QueryRowContext(ctx, `
		SELECT `+tokenCols+`
		FROM access_tokens
		WHERE booking_id = $1
		  AND token_type = $2
		  AND expires_at > $3
		  AND (token_type = 'owner' OR NOT is_used)
		ORDER BY expires_at DESC
		LIMIT 1`, bookingID, typ, now))
}

func (r *repo) SetGuestName(ctx context.Context, tokenID int64, name string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE access_tokens
		SET guest_name = $2
		WHERE id = $1`, tokenID, name)
	return err
}

const insertVisitQ = `
	INSERT INTO visits (booking_id, access_token_id, visitor_type, visitor_name, scanned_by_id, visited_at)
	VALUES ($1,$2,$3,$4,$5,$6)
	RETURNING id`

func (r *repo) ConsumeAndRecord(ctx context.Context, tokenID int64, usedAt time.Time, v *model.Visit) (ok bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE access_tokens
		SET is_used = TRUE, used_at = $2
		WHERE id = $1
		  AND NOT is_used`, tokenID, usedAt)
	if err != nil {
		return false, err
	}
	if aff, _ := res.RowsAffected(); aff != 1 {
		_ = tx.Rollback()
		return false, nil
	}

	if err = tx.QueryRowContext(ctx, insertVisitQ,
		v.BookingID, v.AccessTokenID, v.VisitorType, v.VisitorName, v.ScannedByID, v.VisitedAt,
	).Scan(&v.ID); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *repo) InsertVisit(ctx context.Context, v *model.Visit) error {
	return r.db.QueryRowContext(ctx, insertVisitQ,
		v.BookingID, v.AccessTokenID, v.VisitorType, v.VisitorName, v.ScannedByID, v.VisitedAt,
	).Scan(&v.ID)
}

func (r *repo) ListByUser(ctx context.Context, userID, bookingID int64, limit int) ([]model.Visit, error) {
	const q = `
		SELECT v.id, v.booking_id, v.access_token_id, v.visitor_type, v.visitor_name,
		       v.scanned_by_id, v.visited_at,
		       COALESCE(upper(left(l.name, 3)) || '-' || s.name || '-' || u.unit_number, '')
		FROM visits v
		JOIN bookings b ON b.id = v.booking_id
		LEFT JOIN storage_units u ON u.id = b.storage_unit_id
		LEFT JOIN sections s ON s.id = u.section_id
		LEFT JOIN locations l ON l.id = s.location_id
		WHERE b.user_id = $1
		  AND ($2 = 0 OR v.booking_id = $2)
		ORDER BY v.visited_at DESC
		LIMIT $3`
	rows, err := r.db.QueryContext(ctx, q, userID, bookingID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Visit
	for rows.Next() {
		var v model.Visit
		if err := rows.Scan(
			&v.ID, &v.BookingID, &v.AccessTokenID, &v.VisitorType, &v.VisitorName,
			&v.ScannedByID, &v.VisitedAt, &v.UnitCode,
		); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
