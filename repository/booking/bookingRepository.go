// repository/booking/repo.go
package booking

import (
	"context"
	"database/sql"
	"time"

	"github.com/Zazh/foxapp/model"
)

// HistoryRow is the per-user booking listing shape.
type HistoryRow struct {
	BookingID  int64      `json:"booking_id"`
	TariffName string     `json:"tariff_name"`
	PeriodName string     `json:"period_name"`
	UnitCode   *string    `json:"unit_code,omitempty"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    time.Time  `json:"end_date"`
	Status     string     `json:"status"`
	TotalAed   float64    `json:"total_aed"`
	ParentID   *int64     `json:"parent_id,omitempty"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Detail carries the booking plus the owner and unit context needed by
// access control and notifications.
type Detail struct {
	Booking    model.Booking
	OwnerName  string
	OwnerEmail string
	UnitCode   string
}

// OverdueRow is an active root booking whose effective end date (its
// own, or the latest among its extensions) is in the past.
type OverdueRow struct {
	BookingID    int64
	UserID       int64
	UnitID       *int64
	EffectiveEnd time.Time
}

// ReminderRow feeds the expiring-soon notification batch.
type ReminderRow struct {
	BookingID int64
	UserID    int64
	UnitID    *int64
	EndDate   time.Time
}

type Repo interface {
	Insert(ctx context.Context, tx *sql.Tx, b *model.Booking) error
	InsertAddon(ctx context.Context, tx *sql.Tx, a *model.BookingAddon) error

	ByID(ctx context.Context, id int64) (*model.Booking, error)
	ByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Booking, error)
	Detail(ctx context.Context, id int64) (*Detail, error)
	ListByUser(ctx context.Context, userID int64) ([]HistoryRow, error)

	SetStripeSession(ctx context.Context, id int64, sessionID string) error

	// MarkPaid is the guarded PENDING→PAID transition; false means the
	// booking was no longer pending and nothing changed.
	MarkPaid(ctx context.Context, tx *sql.Tx, id int64, paymentID string, paidAt time.Time) (bool, error)

	// Transition flips status only when the current status matches,
	// reporting whether the update won. All lifecycle moves funnel
	// through this single conditional update.
	Transition(ctx context.Context, tx *sql.Tx, id int64, from, to model.BookingStatus) (bool, error)

	SetUnit(ctx context.Context, tx *sql.Tx, id, unitID int64) error

	// PushParentEndDate advances the parent booking's end date when an
	// extension is paid. GREATEST keeps a stale webhook from moving the
	// date backwards.
	PushParentEndDate(ctx context.Context, tx *sql.Tx, parentID int64, end time.Time) error

	ListExpiredPending(ctx context.Context, now time.Time) ([]model.Booking, error)
	ListDueActivation(ctx context.Context, today time.Time) ([]int64, error)
	ListOverdueActive(ctx context.Context, today time.Time) ([]OverdueRow, error)
	ListExpiringOn(ctx context.Context, endDate time.Time) ([]ReminderRow, error)

	// LogNotification claims the (booking, kind) slot; false means it
	// was already sent by a previous sweep.
	LogNotification(ctx context.Context, bookingID int64, kind string) (bool, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

func (r *repo) Insert(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `
		INSERT INTO bookings
			(user_id, tariff_id, period_id, storage_unit_id, parent_id,
			 start_date, end_date, status,
			 price_aed, addons_aed, deposit_aed, total_aed,
			 expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id, created_at`
	return tx.QueryRowContext(ctx, q,
		b.UserID, b.TariffID, b.PeriodID, b.StorageUnitID, b.ParentID,
		b.StartDate, b.EndDate, b.Status,
		b.PriceAed, b.AddonsAed, b.DepositAed, b.TotalAed,
		b.ExpiresAt,
	).Scan(&b.ID, &b.CreatedAt)
}

func (r *repo) InsertAddon(ctx context.Context, tx *sql.Tx, a *model.BookingAddon) error {
	const q = `
		INSERT INTO booking_addons (booking_id, addon_id, price_aed)
		VALUES ($1,$2,$3)
		RETURNING id`
	return tx.QueryRowContext(ctx, q, a.BookingID, a.AddonID, a.PriceAed).Scan(&a.ID)
}

const bookingCols = `
	id, user_id, tariff_id, period_id, storage_unit_id, parent_id,
	start_date, end_date, status,
	price_aed, addons_aed, deposit_aed, total_aed,
	COALESCE(stripe_session_id, ''), COALESCE(stripe_payment_id, ''),
	expires_at, paid_at, created_at`

func scanBooking(row *sql.Row) (*model.Booking, error) {
	b := &model.Booking{}
	err := row.Scan(
		&b.ID, &b.UserID, &b.TariffID, &b.PeriodID, &b.StorageUnitID, &b.ParentID,
		&b.StartDate, &b.EndDate, &b.Status,
		&b.PriceAed, &b.AddonsAed, &b.DepositAed, &b.TotalAed,
		&b.StripeSessionID, &b.StripePaymentID,
		&b.ExpiresAt, &b.PaidAt, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.Booking, error) {
	return scanBooking(r.db.QueryRowContext(ctx, `
		SELECT `+bookingCols+` FROM bookings WHERE id = $1`, id))
}

func (r *repo) ByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Booking, error) {
	return scanBooking(tx.QueryRowContext(ctx, `
		SELECT `+bookingCols+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
}

func (r *repo) Detail(ctx context.Context, id int64) (*Detail, error) {
	const q = `
		SELECT b.id, b.user_id, b.tariff_id, b.period_id, b.storage_unit_id, b.parent_id,
		       b.start_date, b.end_date, b.status,
		       b.price_aed, b.addons_aed, b.deposit_aed, b.total_aed,
		       COALESCE(b.stripe_session_id, ''), COALESCE(b.stripe_payment_id, ''),
		       b.expires_at, b.paid_at, b.created_at,
		       trim(usr.first_name || ' ' || usr.last_name), usr.email,
		       COALESCE(upper(left(l.name, 3)) || '-' || s.name || '-' || u.unit_number, '')
		FROM bookings b
		JOIN users usr ON usr.id = b.user_id
		LEFT JOIN storage_units u ON u.id = b.storage_unit_id
		LEFT JOIN sections s ON s.id = u.section_id
		LEFT JOIN locations l ON l.id = s.location_id
		WHERE b.id = $1`
	d := &Detail{}
	b := &d.Booking
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&b.ID, &b.UserID, &b.TariffID, &b.PeriodID, &b.StorageUnitID, &b.ParentID,
		&b.StartDate, &b.EndDate, &b.Status,
		&b.PriceAed, &b.AddonsAed, &b.DepositAed, &b.TotalAed,
		&b.StripeSessionID, &b.StripePaymentID,
		&b.ExpiresAt, &b.PaidAt, &b.CreatedAt,
		&d.OwnerName, &d.OwnerEmail, &d.UnitCode,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *repo) ListByUser(ctx context.Context, userID int64) ([]HistoryRow, error) {
	const q = `
		SELECT b.id, t.name, p.name,
		       upper(left(l.name, 3)) || '-' || s.name || '-' || u.unit_number,
		       b.start_date, b.end_date, b.status, b.total_aed,
		       b.parent_id, b.paid_at, b.created_at
		FROM bookings b
		JOIN tariffs t ON t.id = b.tariff_id
		JOIN tariff_periods p ON p.id = b.period_id
		LEFT JOIN storage_units u ON u.id = b.storage_unit_id
		LEFT JOIN sections s ON s.id = u.section_id
		LEFT JOIN locations l ON l.id = s.location_id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC, b.id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var h HistoryRow
		if err := rows.Scan(
			&h.BookingID, &h.TariffName, &h.PeriodName, &h.UnitCode,
			&h.StartDate, &h.EndDate, &h.Status, &h.TotalAed,
			&h.ParentID, &h.PaidAt, &h.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *repo) SetStripeSession(ctx context.Context, id int64, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE bookings
		SET stripe_session_id = $2, updated_at = now()
		WHERE id = $1`, id, sessionID)
	return err
}

func (r *repo) MarkPaid(ctx context.Context, tx *sql.Tx, id int64, paymentID string, paidAt time.Time) (bool, error) {
	const q = `
		UPDATE bookings
		SET status = 'paid',
		    paid_at = $2,
		    stripe_payment_id = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'`
	res, err := tx.ExecContext(ctx, q, id, paidAt, paymentID)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff == 1, nil
}

func (r *repo) Transition(ctx context.Context, tx *sql.Tx, id int64, from, to model.BookingStatus) (bool, error) {
	const q = `
		UPDATE bookings
		SET status = $3, updated_at = now()
		WHERE id = $1
		  AND status = $2`
	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, q, id, from, to)
	} else {
		res, err = r.db.ExecContext(ctx, q, id, from, to)
	}
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff == 1, nil
}

func (r *repo) SetUnit(ctx context.Context, tx *sql.Tx, id, unitID int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET storage_unit_id = $2, updated_at = now()
		WHERE id = $1`, id, unitID)
	return err
}

func (r *repo) PushParentEndDate(ctx context.Context, tx *sql.Tx, parentID int64, end time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET end_date = GREATEST(end_date, $2), updated_at = now()
		WHERE id = $1`, parentID, end)
	return err
}

func (r *repo) ListExpiredPending(ctx context.Context, now time.Time) ([]model.Booking, error) {
	const q = `
		SELECT ` + bookingCols + `
		FROM bookings
		WHERE status = 'pending'
		  AND expires_at < $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.TariffID, &b.PeriodID, &b.StorageUnitID, &b.ParentID,
			&b.StartDate, &b.EndDate, &b.Status,
			&b.PriceAed, &b.AddonsAed, &b.DepositAed, &b.TotalAed,
			&b.StripeSessionID, &b.StripePaymentID,
			&b.ExpiresAt, &b.PaidAt, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repo) ListDueActivation(ctx context.Context, today time.Time) ([]int64, error) {
	const q = `
		SELECT id
		FROM bookings
		WHERE status = 'paid'
		  AND start_date <= $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *repo) ListOverdueActive(ctx context.Context, today time.Time) ([]OverdueRow, error) {
	// Root bookings only. The effective end date is the latest among the
	// booking and its settled extensions; a pending extension defers
	// expiry until the next sweep.
	const q = `
		SELECT b.id, b.user_id, b.storage_unit_id,
		       GREATEST(b.end_date, COALESCE(max(c.end_date) FILTER (
		           WHERE c.status IN ('paid','active','expired','completed')), b.end_date))
		FROM bookings b
		LEFT JOIN bookings c ON c.parent_id = b.id
		WHERE b.status = 'active'
		  AND b.parent_id IS NULL
		GROUP BY b.id
		HAVING GREATEST(b.end_date, COALESCE(max(c.end_date) FILTER (
		           WHERE c.status IN ('paid','active','expired','completed')), b.end_date)) < $1
		   AND count(c.id) FILTER (WHERE c.status = 'pending') = 0
		ORDER BY b.id`
	rows, err := r.db.QueryContext(ctx, q, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OverdueRow
	for rows.Next() {
		var o OverdueRow
		if err := rows.Scan(&o.BookingID, &o.UserID, &o.UnitID, &o.EffectiveEnd); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *repo) ListExpiringOn(ctx context.Context, endDate time.Time) ([]ReminderRow, error) {
	const q = `
		SELECT b.id, b.user_id, b.storage_unit_id, b.end_date
		FROM bookings b
		WHERE b.end_date = $1
		  AND b.status IN ('paid','active')
		  AND b.parent_id IS NULL
		ORDER BY b.id`
	rows, err := r.db.QueryContext(ctx, q, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReminderRow
	for rows.Next() {
		var rr ReminderRow
		if err := rows.Scan(&rr.BookingID, &rr.UserID, &rr.UnitID, &rr.EndDate); err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

func (r *repo) LogNotification(ctx context.Context, bookingID int64, kind string) (bool, error) {
	const q = `
		INSERT INTO notification_log (booking_id, kind)
		VALUES ($1, $2)
		ON CONFLICT (booking_id, kind) DO NOTHING`
	res, err := r.db.ExecContext(ctx, q, bookingID, kind)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff == 1, nil
}
