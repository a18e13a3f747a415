package services

import (
	"strconv"
	"strings"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/config"
	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SystemConfigService struct {
	db *gorm.DB
}

func NewSystemConfigService(db *gorm.DB) *SystemConfigService {
	return &SystemConfigService{db: db}
}

func (s *SystemConfigService) Get(key string) (string, error) {
	var cfg models.SystemConfig
	if err := s.db.Where(&models.SystemConfig{Key: key}).First(&cfg).Error; err != nil {
		return "", err
	}
	return cfg.Value, nil
}

// GetWithDefault returns defaultValue when the key is missing or empty.
func (s *SystemConfigService) GetWithDefault(key, defaultValue string) string {
	value, err := s.Get(key)
	if err != nil || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

func (s *SystemConfigService) Float(key string, def float64) float64 {
	v, err := strconv.ParseFloat(s.GetWithDefault(key, ""), 64)
	if err != nil {
		return def
	}
	return v
}

func (s *SystemConfigService) Int(key string, def int) int {
	v, err := strconv.Atoi(s.GetWithDefault(key, ""))
	if err != nil {
		return def
	}
	return v
}

func (s *SystemConfigService) Bool(key string, def bool) bool {
	v, err := strconv.ParseBool(s.GetWithDefault(key, ""))
	if err != nil {
		return def
	}
	return v
}

// Set upserts key. New rows take their type, group and label from the seeded
// defaults when the key is a known setting.
func (s *SystemConfigService) Set(key, value string) error {
	row := models.SystemConfig{Key: key, Type: "string"}
	for _, d := range models.DefaultSystemConfigs() {
		if d.Key == key {
			row = d
			break
		}
	}
	row.Value = value
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": value, "updated_at": time.Now()}),
	}).Create(&row).Error
}

func (s *SystemConfigService) GetByGroup(group string) ([]models.SystemConfig, error) {
	var configs []models.SystemConfig
	if err := s.db.Where(&models.SystemConfig{Group: group}).Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

func (s *SystemConfigService) All() ([]models.SystemConfig, error) {
	var configs []models.SystemConfig
	err := s.db.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: "group"}},
		{Column: clause.Column{Name: "key"}},
	}}).Find(&configs).Error
	return configs, err
}

// Settings is the effective view of the runtime-tunable values.
type Settings struct {
	TaxRate                   float64 `json:"tax_rate"`
	NotificationRetentionDays int     `json:"notification_retention_days"`
	BusinessDayDueDates       bool    `json:"business_day_due_dates"`
	HolidayCountry            string  `json:"holiday_country"`
	Currency                  string  `json:"currency"`
}

type UpdateSettingsRequest struct {
	TaxRate                   *float64 `json:"tax_rate" binding:"omitempty,gte=0,lte=1"`
	NotificationRetentionDays *int     `json:"notification_retention_days" binding:"omitempty,min=1,max=3650"`
	BusinessDayDueDates       *bool    `json:"business_day_due_dates"`
	HolidayCountry            *string  `json:"holiday_country"`
}

// Effective merges stored overrides onto the server defaults.
func (s *SystemConfigService) Effective(defaults config.BusinessConfig) Settings {
	return Settings{
		TaxRate:                   s.Float(models.ConfigTaxRate, defaults.TaxRate),
		NotificationRetentionDays: s.Int(models.ConfigNotificationRetentionDays, 30),
		BusinessDayDueDates:       s.Bool(models.ConfigBusinessDayDueDates, defaults.BusinessDayDueDates),
		HolidayCountry:            s.GetWithDefault(models.ConfigHolidayCountry, defaults.HolidayCountry),
		Currency:                  defaults.Currency,
	}
}

func (s *SystemConfigService) UpdateSettings(req *UpdateSettingsRequest, holidays *HolidayService) error {
	if req.HolidayCountry != nil && !holidays.IsSupported(*req.HolidayCountry) {
		return response.NewBadRequest("Unsupported holiday country")
	}
	var changes [][2]string
	if req.TaxRate != nil {
		changes = append(changes, [2]string{models.ConfigTaxRate, strconv.FormatFloat(*req.TaxRate, 'f', -1, 64)})
	}
	if req.NotificationRetentionDays != nil {
		changes = append(changes, [2]string{models.ConfigNotificationRetentionDays, strconv.Itoa(*req.NotificationRetentionDays)})
	}
	if req.BusinessDayDueDates != nil {
		changes = append(changes, [2]string{models.ConfigBusinessDayDueDates, strconv.FormatBool(*req.BusinessDayDueDates)})
	}
	if req.HolidayCountry != nil {
		changes = append(changes, [2]string{models.ConfigHolidayCountry, *req.HolidayCountry})
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		txSvc := NewSystemConfigService(tx)
		for _, kv := range changes {
			if err := txSvc.Set(kv[0], kv[1]); err != nil {
				return err
			}
		}
		return nil
	})
}
