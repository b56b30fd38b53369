package booking

import "time"

type CreateBookingReq struct {
	TariffID  int64      `json:"tariff_id" validate:"required,gt=0"`
	PeriodID  int64      `json:"period_id" validate:"required,gt=0"`
	AddonIDs  []int64    `json:"addon_ids" validate:"omitempty,dive,gt=0"`
	StartDate *time.Time `json:"start_date"`
}

type ExtendBookingReq struct {
	PeriodID int64   `json:"period_id" validate:"required,gt=0"`
	AddonIDs []int64 `json:"addon_ids" validate:"omitempty,dive,gt=0"`
}
