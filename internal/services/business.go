package services

import (
	"time"

	"github.com/alphazee/agencyhub/backend/internal/config"
	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/internal/utils"
)

// BusinessRules resolves billing and scheduling policy from the server config
// and the admin-tunable system settings.
type BusinessRules struct {
	cfg      config.BusinessConfig
	settings *SystemConfigService
	holidays *HolidayService
}

func NewBusinessRules(cfg config.BusinessConfig, settings *SystemConfigService, holidays *HolidayService) *BusinessRules {
	return &BusinessRules{cfg: cfg, settings: settings, holidays: holidays}
}

func (r *BusinessRules) Currency() string {
	if r.cfg.Currency == "" {
		return "OMR"
	}
	return r.cfg.Currency
}

func (r *BusinessRules) TaxRate() float64 {
	return r.settings.Float(models.ConfigTaxRate, r.cfg.TaxRate)
}

func (r *BusinessRules) RetentionDays() int {
	return r.settings.Int(models.ConfigNotificationRetentionDays, 30)
}

func (r *BusinessRules) Settings() Settings {
	return r.settings.Effective(r.cfg)
}

// dueIn returns the date days after now, rolled to the next workday when
// business-day mode is on.
func (r *BusinessRules) dueIn(now time.Time, days int) time.Time {
	due := utils.DateOf(now).AddDate(0, 0, days)
	if r.settings.Bool(models.ConfigBusinessDayDueDates, r.cfg.BusinessDayDueDates) {
		country := r.settings.GetWithDefault(models.ConfigHolidayCountry, r.cfg.HolidayCountry)
		due = r.holidays.NextWorkday(due, country)
	}
	return due
}

func (r *BusinessRules) PaymentDueDate(now time.Time) time.Time {
	return r.dueIn(now, r.cfg.PaymentDueDays)
}

func (r *BusinessRules) ContractExpiryDate(now time.Time) time.Time {
	return r.dueIn(now, r.cfg.ContractExpiryDays)
}
