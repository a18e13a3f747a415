package models

import "time"

// Runtime settings stored in system_configs.
const (
	ConfigTaxRate                   = "tax_rate"
	ConfigNotificationRetentionDays = "notification_retention_days"
	ConfigBusinessDayDueDates       = "business_day_due_dates"
	ConfigHolidayCountry            = "holiday_country"
)

// SystemConfig is a runtime-tunable setting edited by admins.
type SystemConfig struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:key;uniqueIndex;size:100;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:20;default:string" json:"type"`      // string, int, float, bool
	Group     string    `gorm:"column:group;size:50;index" json:"group"` // billing, notification, business
	Label     string    `gorm:"size:200" json:"label"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SystemConfig) TableName() string { return "system_configs" }

// DefaultSystemConfigs are inserted by Seed when missing. An empty value
// falls back to the business section of the server config.
func DefaultSystemConfigs() []SystemConfig {
	return []SystemConfig{
		{Key: ConfigTaxRate, Value: "", Type: "float", Group: "billing", Label: "Invoice Tax Rate"},
		{Key: ConfigNotificationRetentionDays, Value: "30", Type: "int", Group: "notification", Label: "Read Notification Retention Days"},
		{Key: ConfigBusinessDayDueDates, Value: "", Type: "bool", Group: "business", Label: "Roll Due Dates To Business Days"},
		{Key: ConfigHolidayCountry, Value: "", Type: "string", Group: "business", Label: "Holiday Calendar Country"},
	}
}
