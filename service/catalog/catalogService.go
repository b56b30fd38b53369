package catalogsvc

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Zazh/foxapp/model"
	catalogrepo "github.com/Zazh/foxapp/repository/catalog"
	unitrepo "github.com/Zazh/foxapp/repository/unit"
)

var ErrTariffNotFound = errors.New("tariff not found")

// TariffView is a tariff with its purchasable periods and live
// availability badge.
type TariffView struct {
	model.Tariff
	Periods      []model.TariffPeriod     `json:"periods"`
	Availability model.TariffAvailability `json:"availability"`
}

type Service interface {
	ListTariffs(ctx context.Context, serviceType model.ServiceType, locationID int64) ([]TariffView, error)
	TariffBySlug(ctx context.Context, serviceType model.ServiceType, locationID int64, slug string) (*TariffView, error)

	// ListUnits is the staff inventory view.
	ListUnits(ctx context.Context, f unitrepo.ListFilter) ([]model.StorageUnit, error)
}

type service struct {
	cr catalogrepo.Repo
	ur unitrepo.Repo
}

func New(cr catalogrepo.Repo, ur unitrepo.Repo) Service {
	return &service{cr: cr, ur: ur}
}

func (s *service) ListTariffs(ctx context.Context, serviceType model.ServiceType, locationID int64) ([]TariffView, error) {
	tariffs, err := s.cr.ListTariffs(ctx, serviceType, locationID)
	if err != nil {
		return nil, err
	}

	out := make([]TariffView, 0, len(tariffs))
	for _, t := range tariffs {
		v, err := s.expand(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func (s *service) TariffBySlug(ctx context.Context, serviceType model.ServiceType, locationID int64, slug string) (*TariffView, error) {
	t, err := s.cr.TariffBySlug(ctx, serviceType, locationID, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTariffNotFound
		}
		return nil, err
	}
	return s.expand(ctx, *t)
}

func (s *service) expand(ctx context.Context, t model.Tariff) (*TariffView, error) {
	periods, err := s.cr.ListPeriods(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	total, available, err := s.cr.UnitCounts(ctx, t.ServiceID, t.LocationID)
	if err != nil {
		return nil, err
	}
	return &TariffView{
		Tariff:       t,
		Periods:      periods,
		Availability: model.Availability(total, available),
	}, nil
}

func (s *service) ListUnits(ctx context.Context, f unitrepo.ListFilter) ([]model.StorageUnit, error) {
	return s.ur.List(ctx, f)
}
