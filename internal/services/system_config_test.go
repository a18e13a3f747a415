package services

import (
	"testing"

	"github.com/alphazee/agencyhub/backend/internal/config"
	"github.com/alphazee/agencyhub/backend/internal/models"
)

func TestSystemConfig_SetUpserts(t *testing.T) {
	svc := NewSystemConfigService(newTestDB(t))

	if err := svc.Set(models.ConfigTaxRate, "0.08"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := svc.Set(models.ConfigTaxRate, "0.09"); err != nil {
		t.Fatalf("Set() second call error = %v", err)
	}
	rows, err := svc.GetByGroup("billing")
	if err != nil {
		t.Fatalf("GetByGroup() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("billing rows = %d, expected 1", len(rows))
	}
	if rows[0].Value != "0.09" || rows[0].Type != "float" || rows[0].Label != "Invoice Tax Rate" {
		t.Errorf("row = %+v", rows[0])
	}

	if err := svc.Set("custom_banner", "hello"); err != nil {
		t.Fatalf("Set() custom error = %v", err)
	}
	if got := svc.GetWithDefault("custom_banner", ""); got != "hello" {
		t.Errorf("custom_banner = %q, expected hello", got)
	}
}

func TestSystemConfig_Effective(t *testing.T) {
	svc := NewSystemConfigService(newTestDB(t))
	defaults := config.DefaultConfig().Business

	got := svc.Effective(defaults)
	if got.TaxRate != 0.05 || got.NotificationRetentionDays != 30 || got.HolidayCountry != "NONE" {
		t.Errorf("Effective() on empty table = %+v", got)
	}

	svc.Set(models.ConfigTaxRate, "")
	svc.Set(models.ConfigNotificationRetentionDays, "not-a-number")
	svc.Set(models.ConfigBusinessDayDueDates, "true")
	got = svc.Effective(defaults)
	if got.TaxRate != 0.05 {
		t.Errorf("empty tax rate should fall back, got %v", got.TaxRate)
	}
	if got.NotificationRetentionDays != 30 {
		t.Errorf("unparseable retention should fall back, got %d", got.NotificationRetentionDays)
	}
	if !got.BusinessDayDueDates {
		t.Error("BusinessDayDueDates should be true")
	}
}
