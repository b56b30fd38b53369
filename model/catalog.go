// model/catalog.go
package model

import "time"

type ServiceType string

const (
	ServiceAuto    ServiceType = "auto"
	ServiceStorage ServiceType = "storage"
)

type Service struct {
	ID          int64       `json:"id"`
	ServiceType ServiceType `json:"service_type"`
	Name        string      `json:"name"`
	IsActive    bool        `json:"is_active"`
	SortOrder   int         `json:"sort_order"`
}

type Tariff struct {
	ID         int64   `json:"id"`
	ServiceID  int64   `json:"service_id"`
	LocationID int64   `json:"location_id"`
	Slug       string  `json:"slug"`
	Name       string  `json:"name"`
	DepositAed float64 `json:"deposit_aed"`
	IsActive   bool    `json:"is_active"`
	SortOrder  int     `json:"sort_order"`
}

type DurationType string

const (
	DurationDays   DurationType = "days"
	DurationMonths DurationType = "months"
)

type TariffPeriod struct {
	ID            int64        `json:"id"`
	TariffID      int64        `json:"tariff_id"`
	Name          string       `json:"name"`
	DurationType  DurationType `json:"duration_type"`
	DurationValue int          `json:"duration_value"`
	PriceAed      float64      `json:"price_aed"`
	IsActive      bool         `json:"is_active"`
}

// EndDate derives the rental end from its start. Day periods add
// calendar days; month periods keep the day-of-month, clamped to the
// target month's last day (Jan 31 + 1 month = Feb 29 in a leap year,
// never an overflow into March).
func (p *TariffPeriod) EndDate(start time.Time) time.Time {
	if p.DurationType == DurationDays {
		return start.AddDate(0, 0, p.DurationValue)
	}
	y, m, d := start.Date()
	first := time.Date(y, m+time.Month(p.DurationValue), 1, 0, 0, 0, 0, start.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, start.Location())
}

type AddonService struct {
	ID        int64   `json:"id"`
	ServiceID int64   `json:"service_id"`
	Name      string  `json:"name"`
	PriceAed  float64 `json:"price_aed"`
	IsActive  bool    `json:"is_active"`
}

type Section struct {
	ID         int64  `json:"id"`
	LocationID int64  `json:"location_id"`
	ServiceID  int64  `json:"service_id"`
	Name       string `json:"name"`
	IsActive   bool   `json:"is_active"`
	SortOrder  int    `json:"sort_order"`
}

type StorageUnit struct {
	ID          int64  `json:"id"`
	SectionID   int64  `json:"section_id"`
	UnitNumber  string `json:"unit_number"`
	IsAvailable bool   `json:"is_available"`
	IsActive    bool   `json:"is_active"`

	// Denormalized for listings: LOC-SECTION-NUMBER.
	FullCode string `json:"full_code,omitempty"`
}

// TariffAvailability is the inventory summary shown next to a tariff.
type TariffAvailability struct {
	TotalUnits     int    `json:"total_units"`
	AvailableUnits int    `json:"available_units"`
	Percent        int    `json:"percent"`
	Status         string `json:"status"` // fully_booked | few_left | available
}

func Availability(total, available int) TariffAvailability {
	a := TariffAvailability{TotalUnits: total, AvailableUnits: available}
	if total > 0 {
		a.Percent = available * 100 / total
	}
	switch {
	case available == 0:
		a.Status = "fully_booked"
	case a.Percent <= 20:
		a.Status = "few_left"
	default:
		a.Status = "available"
	}
	return a
}
