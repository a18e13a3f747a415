package services

import (
	"net/http"
	"testing"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		part, total int64
		expected    float64
	}{
		{0, 0, 0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{5, 5, 100},
	}
	for _, tt := range tests {
		if got := percent(tt.part, tt.total); got != tt.expected {
			t.Errorf("percent(%d, %d) = %v, expected %v", tt.part, tt.total, got, tt.expected)
		}
	}
}

func TestAdminDashboard(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "admin@example.com", models.RoleAdmin)
	alice := env.createUser(t, "alice@example.com", models.RoleClient)
	env.createUser(t, "bob@example.com", models.RoleClient)
	env.db.Model(alice).Update("is_verified", true)

	project := env.createProject(t, alice, models.ProjectCompleted)
	env.createProject(t, alice, models.ProjectInProgress)

	now := time.Now()
	overdue := now.AddDate(0, 0, -3)
	payments := []models.Payment{
		{ProjectID: project.ID, ClientID: alice.ID, Amount: 200, Status: models.PaymentCompleted, PaidDate: &now},
		{ProjectID: project.ID, ClientID: alice.ID, Amount: 50.5, Status: models.PaymentPending, DueDate: &overdue},
	}
	if err := env.db.Create(&payments).Error; err != nil {
		t.Fatalf("create payments: %v", err)
	}

	d, err := env.admin.Dashboard()
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if d.Users.TotalClients != 2 {
		t.Errorf("TotalClients = %d, expected 2", d.Users.TotalClients)
	}
	if d.Users.VerificationRate != 50 {
		t.Errorf("VerificationRate = %v, expected 50", d.Users.VerificationRate)
	}
	if d.Projects.Total != 2 || d.Projects.Active != 1 || d.Projects.CompletionRate != 50 {
		t.Errorf("Projects = %+v", d.Projects)
	}
	if d.Revenue.Total != 200 || d.Revenue.Monthly != 200 || d.Revenue.Pending != 50.5 {
		t.Errorf("Revenue = %+v", d.Revenue)
	}
	if d.Revenue.Currency != "OMR" {
		t.Errorf("Currency = %q, expected OMR", d.Revenue.Currency)
	}
	if d.Alerts.OverduePayments != 1 {
		t.Errorf("OverduePayments = %d, expected 1", d.Alerts.OverduePayments)
	}
	if len(d.RecentActivity.Users) != 3 {
		t.Errorf("recent users = %d, expected 3", len(d.RecentActivity.Users))
	}
}

func TestAdminUsers_Annotated(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com", models.RoleClient)
	bob := env.createUser(t, "bob@example.com", models.RoleClient)
	env.createProject(t, alice, models.ProjectSubmitted)
	env.createProject(t, alice, models.ProjectSubmitted)
	env.verifyIdentity(t, alice)

	rows, meta, err := env.admin.Users(&UserListRequest{Role: models.RoleClient}, pagination.NewParams(1, 20))
	if err != nil {
		t.Fatalf("Users() error = %v", err)
	}
	if meta.Total != 2 {
		t.Fatalf("Total = %d, expected 2", meta.Total)
	}
	for _, row := range rows {
		switch row.ID {
		case alice.ID:
			if row.ProjectCount != 2 || row.VerificationStatus != models.VerificationVerified {
				t.Errorf("alice = %d/%s", row.ProjectCount, row.VerificationStatus)
			}
		case bob.ID:
			if row.ProjectCount != 0 || row.VerificationStatus != "not_submitted" {
				t.Errorf("bob = %d/%s", row.ProjectCount, row.VerificationStatus)
			}
		}
	}

	detail, err := env.admin.User(alice.ID)
	if err != nil {
		t.Fatalf("User() error = %v", err)
	}
	if detail.Profile == nil || detail.Verification == nil || len(detail.Projects) != 2 {
		t.Errorf("detail = %+v", detail)
	}
}

func TestAdminUpdateUserStatus(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", models.RoleAdmin)
	client := env.createUser(t, "client@example.com", models.RoleClient)

	_, err := env.admin.UpdateUserStatus(actorFor(admin), client.ID, &AdminUserStatusRequest{})
	assertStatus(t, err, http.StatusBadRequest)

	off := false
	user, err := env.admin.UpdateUserStatus(actorFor(admin), client.ID, &AdminUserStatusRequest{IsActive: &off, Reason: "fraud"})
	if err != nil {
		t.Fatalf("UpdateUserStatus() error = %v", err)
	}
	if user.IsActive {
		t.Error("user should be inactive")
	}
	var n models.Notification
	if err := env.db.Where("user_id = ? AND type = ?", client.ID, "account_status").First(&n).Error; err != nil {
		t.Fatalf("account_status notification missing: %v", err)
	}
	if n.Message != "Your account has been deactivated: fraud" {
		t.Errorf("Message = %q", n.Message)
	}
	if countActivity(t, env.db, "user.status_update") != 1 {
		t.Error("status update should be logged")
	}
}

func TestAdminUpdateVerification(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", models.RoleAdmin)
	client := env.createUser(t, "client@example.com", models.RoleClient)

	_, err := env.admin.UpdateVerification(actorFor(admin), client.ID, &VerificationDecisionRequest{Status: models.VerificationVerified})
	assertStatus(t, err, http.StatusNotFound)

	kyc := models.IdentityVerification{
		UserID:            client.ID,
		FrontIDImageURL:   "/uploads/identity/front.png",
		BackIDImageURL:    "/uploads/identity/back.png",
		SignatureImageURL: "/uploads/identity/sig.png",
	}
	if err := env.db.Create(&kyc).Error; err != nil {
		t.Fatalf("create identity: %v", err)
	}

	got, err := env.admin.UpdateVerification(actorFor(admin), client.ID, &VerificationDecisionRequest{Status: models.VerificationVerified})
	if err != nil {
		t.Fatalf("UpdateVerification() error = %v", err)
	}
	if !got.IsVerified() || got.VerifiedAt == nil || got.VerifiedBy == nil || *got.VerifiedBy != admin.ID {
		t.Errorf("verification = %+v", got)
	}

	got, err = env.admin.UpdateVerification(actorFor(admin), client.ID, &VerificationDecisionRequest{
		Status:          models.VerificationRejected,
		RejectionReason: "blurry",
	})
	if err != nil {
		t.Fatalf("UpdateVerification() error = %v", err)
	}
	if got.VerifiedAt != nil || got.RejectionReason != "blurry" {
		t.Errorf("rejected verification = %+v", got)
	}

	var types []string
	env.db.Model(&models.Notification{}).Where("user_id = ?", client.ID).Order("created_at").Pluck("type", &types)
	if len(types) != 2 || types[0] != "verification_approved" || types[1] != "verification_rejected" {
		t.Errorf("notification types = %v", types)
	}
}

func TestAdminProjectTypes(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", models.RoleAdmin)

	_, err := env.admin.CreateProjectType(actorFor(admin), &ProjectTypeRequest{})
	assertStatus(t, err, http.StatusBadRequest)

	pt, err := env.admin.CreateProjectType(actorFor(admin), &ProjectTypeRequest{Name: strPtr("Mobile App"), Color: strPtr("#112233")})
	if err != nil {
		t.Fatalf("CreateProjectType() error = %v", err)
	}
	if !pt.IsActive || pt.Color != "#112233" {
		t.Errorf("project type = %+v", pt)
	}

	_, err = env.admin.UpdateProjectType(actorFor(admin), pt.ID, &ProjectTypeRequest{Name: strPtr("")})
	assertStatus(t, err, http.StatusBadRequest)

	inactive := false
	pt, err = env.admin.UpdateProjectType(actorFor(admin), pt.ID, &ProjectTypeRequest{IsActive: &inactive})
	if err != nil {
		t.Fatalf("UpdateProjectType() error = %v", err)
	}
	if pt.IsActive || pt.Name != "Mobile App" {
		t.Errorf("updated project type = %+v", pt)
	}

	types, err := env.admin.ProjectTypes()
	if err != nil || len(types) != 1 {
		t.Errorf("ProjectTypes() = %d, %v", len(types), err)
	}
}

func TestAdminCleanup(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", models.RoleAdmin)

	_, err := env.admin.Cleanup(actorFor(admin), &CleanupRequest{Type: "files"})
	assertStatus(t, err, http.StatusBadRequest)

	old := time.Now().AddDate(0, 0, -10)
	rows := []models.Notification{
		{UserID: admin.ID, Title: "a", Message: "a", Type: "system", IsRead: true, CreatedAt: old},
		{UserID: admin.ID, Title: "b", Message: "b", Type: "system", IsRead: false, CreatedAt: old},
		{UserID: admin.ID, Title: "c", Message: "c", Type: "system", IsRead: true},
	}
	if err := env.db.Create(&rows).Error; err != nil {
		t.Fatalf("create notifications: %v", err)
	}

	deleted, err := env.admin.Cleanup(actorFor(admin), &CleanupRequest{Days: intPtr(7)})
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, expected 1", deleted)
	}
	if countActivity(t, env.db, "system.cleanup") != 1 {
		t.Error("cleanup should be logged")
	}
}

func TestAdminUpdateSettings(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", models.RoleAdmin)

	if got := env.admin.Settings(); got.TaxRate != 0.05 || got.NotificationRetentionDays != 30 || got.HolidayCountry != "NONE" {
		t.Errorf("default settings = %+v", got)
	}

	_, err := env.admin.UpdateSettings(actorFor(admin), &UpdateSettingsRequest{HolidayCountry: strPtr("XX")})
	assertStatus(t, err, http.StatusBadRequest)

	rate := 0.1
	on := true
	got, err := env.admin.UpdateSettings(actorFor(admin), &UpdateSettingsRequest{
		TaxRate:                   &rate,
		NotificationRetentionDays: intPtr(90),
		BusinessDayDueDates:       &on,
		HolidayCountry:            strPtr("GB"),
	})
	if err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}
	if got.TaxRate != 0.1 || got.NotificationRetentionDays != 90 || !got.BusinessDayDueDates || got.HolidayCountry != "GB" {
		t.Errorf("settings = %+v", got)
	}
	if env.rules.TaxRate() != 0.1 {
		t.Errorf("TaxRate() = %v, expected 0.1", env.rules.TaxRate())
	}
	if env.rules.RetentionDays() != 90 {
		t.Errorf("RetentionDays() = %d, expected 90", env.rules.RetentionDays())
	}
	if countActivity(t, env.db, "system.settings_update") != 1 {
		t.Error("settings update should be logged")
	}
	if len(env.admin.HolidayCountries()) < 2 {
		t.Error("expected supported holiday countries")
	}
}
