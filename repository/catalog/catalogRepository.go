// repository/catalog/repo.go
package catalog

import (
	"context"
	"database/sql"

	"github.com/Zazh/foxapp/model"
)

type Repo interface {
	TariffByID(ctx context.Context, id int64) (*model.Tariff, error)
	TariffBySlug(ctx context.Context, serviceType model.ServiceType, locationID int64, slug string) (*model.Tariff, error)
	ListTariffs(ctx context.Context, serviceType model.ServiceType, locationID int64) ([]model.Tariff, error)

	PeriodByID(ctx context.Context, periodID, tariffID int64) (*model.TariffPeriod, error)
	ListPeriods(ctx context.Context, tariffID int64) ([]model.TariffPeriod, error)

	// AddonsByIDs returns only active addons belonging to the tariff's
	// service; unknown ids are silently dropped, matching the booking
	// form behaviour.
	AddonsByIDs(ctx context.Context, serviceID int64, ids []int64) ([]model.AddonService, error)

	// UnitCounts backs the availability badge: total and free active
	// units for the tariff's (service, location) pool.
	UnitCounts(ctx context.Context, serviceID, locationID int64) (total, available int, err error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

const tariffCols = `id, service_id, location_id, slug, name, deposit_aed, is_active, sort_order`

func scanTariff(row *sql.Row) (*model.Tariff, error) {
	t := &model.Tariff{}
	err := row.Scan(&t.ID, &t.ServiceID, &t.LocationID, &t.Slug, &t.Name, &t.DepositAed, &t.IsActive, &t.SortOrder)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *repo) TariffByID(ctx context.Context, id int64) (*model.Tariff, error) {
	return scanTariff(r.db.QueryRowContext(ctx, `
		SELECT `+tariffCols+`
		FROM tariffs
		WHERE id = $1`, id))
}

func (r *repo) TariffBySlug(ctx context.Context, serviceType model.ServiceType, locationID int64, slug string) (*model.Tariff, error) {
	return scanTariff(r.db.QueryRowContext(ctx, `
		SELECT t.id, t.service_id, t.location_id, t.slug, t.name, t.deposit_aed, t.is_active, t.sort_order
		FROM tariffs t
		JOIN services s ON s.id = t.service_id
		WHERE s.service_type = $1 AND t.location_id = $2 AND t.slug = $3
		  AND s.is_active AND t.is_active`,
		serviceType, locationID, slug))
}

func (r *repo) ListTariffs(ctx context.Context, serviceType model.ServiceType, locationID int64) ([]model.Tariff, error) {
	q := `
		SELECT t.id, t.service_id, t.location_id, t.slug, t.name, t.deposit_aed, t.is_active, t.sort_order
		FROM tariffs t
		JOIN services s ON s.id = t.service_id
		WHERE s.is_active AND t.is_active
		  AND ($1 = '' OR s.service_type = $1)
		  AND ($2 = 0 OR t.location_id = $2)
		ORDER BY t.sort_order, t.name`
	rows, err := r.db.QueryContext(ctx, q, string(serviceType), locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Tariff
	for rows.Next() {
		var t model.Tariff
		if err := rows.Scan(&t.ID, &t.ServiceID, &t.LocationID, &t.Slug, &t.Name, &t.DepositAed, &t.IsActive, &t.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repo) PeriodByID(ctx context.Context, periodID, tariffID int64) (*model.TariffPeriod, error) {
	p := &model.TariffPeriod{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tariff_id, name, duration_type, duration_value, price_aed, is_active
		FROM tariff_periods
		WHERE id = $1 AND tariff_id = $2 AND is_active`,
		periodID, tariffID,
	).Scan(&p.ID, &p.TariffID, &p.Name, &p.DurationType, &p.DurationValue, &p.PriceAed, &p.IsActive)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repo) ListPeriods(ctx context.Context, tariffID int64) ([]model.TariffPeriod, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tariff_id, name, duration_type, duration_value, price_aed, is_active
		FROM tariff_periods
		WHERE tariff_id = $1 AND is_active
		ORDER BY sort_order, duration_value`, tariffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TariffPeriod
	for rows.Next() {
		var p model.TariffPeriod
		if err := rows.Scan(&p.ID, &p.TariffID, &p.Name, &p.DurationType, &p.DurationValue, &p.PriceAed, &p.IsActive); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repo) AddonsByIDs(ctx context.Context, serviceID int64, ids []int64) ([]model.AddonService, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, service_id, name, price_aed, is_active
		FROM addon_services
		WHERE service_id = $1 AND id = ANY($2) AND is_active`,
		serviceID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AddonService
	for rows.Next() {
		var a model.AddonService
		if err := rows.Scan(&a.ID, &a.ServiceID, &a.Name, &a.PriceAed, &a.IsActive); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repo) UnitCounts(ctx context.Context, serviceID, locationID int64) (int, int, error) {
	var total, available int
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*), count(*) FILTER (WHERE u.is_available)
		FROM storage_units u
		JOIN sections s ON s.id = u.section_id
		WHERE s.service_id = $1 AND s.location_id = $2
		  AND s.is_active AND u.is_active`,
		serviceID, locationID,
	).Scan(&total, &available)
	return total, available, err
}
