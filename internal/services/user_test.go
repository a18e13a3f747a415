package services

import (
	"context"
	"testing"

	"github.com/alphazee/agencyhub/backend/internal/models"
)

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "p@example.com", models.RoleClient)

	_, _, err := env.users.UpdateProfile(actorFor(user), &UpdateProfileRequest{FirstName: strPtr("  ")})
	assertStatus(t, err, 400)
	_, _, err = env.users.UpdateProfile(actorFor(user), &UpdateProfileRequest{Timezone: strPtr("Mars/Olympus")})
	assertStatus(t, err, 400)

	updated, profile, err := env.users.UpdateProfile(actorFor(user), &UpdateProfileRequest{
		FirstName:               strPtr("Maya"),
		Bio:                     strPtr("Founder"),
		Timezone:                strPtr("Asia/Muscat"),
		NotificationPreferences: map[string]interface{}{"sms": true},
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.FirstName != "Maya" || profile.Bio != "Founder" || profile.Timezone != "Asia/Muscat" {
		t.Errorf("unexpected profile: %+v / %+v", updated, profile)
	}
	if profile.NotificationPreferences["sms"] != true || profile.NotificationPreferences["email"] != true {
		t.Errorf("preferences should merge over defaults, got %v", profile.NotificationPreferences)
	}
}

func TestUploadAvatar_ReplacesPrevious(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "a@example.com", models.RoleClient)
	ctx := context.Background()

	_, err := env.users.UploadAvatar(ctx, actorFor(user), fileHeader(t, "me.pdf", []byte("%PDF")))
	assertStatus(t, err, 400)

	first, err := env.users.UploadAvatar(ctx, actorFor(user), fileHeader(t, "me.png", pngBytes))
	if err != nil {
		t.Fatalf("UploadAvatar() error = %v", err)
	}
	firstURL := first.AvatarURL
	if _, err := env.users.UploadAvatar(ctx, actorFor(user), fileHeader(t, "me2.png", pngBytes)); err != nil {
		t.Fatalf("second UploadAvatar() error = %v", err)
	}
	key, _ := env.files.Store().KeyFromURL(firstURL)
	if _, err := env.files.Store().Stat(ctx, key); err != ErrObjectNotFound {
		t.Errorf("previous avatar should be removed, Stat() error = %v", err)
	}
}

func identityDocs(t *testing.T) *IdentityDocuments {
	return &IdentityDocuments{
		FrontID:   fileHeader(t, "front.png", pngBytes),
		BackID:    fileHeader(t, "back.jpg", pngBytes),
		Signature: fileHeader(t, "sig.png", pngBytes),
	}
}

func TestSubmitIdentity(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", models.RoleAdmin)
	user := env.createUser(t, "kyc@example.com", models.RoleClient)
	ctx := context.Background()

	_, err := env.users.SubmitIdentity(ctx, actorFor(user), &IdentityDocuments{FrontID: fileHeader(t, "f.png", pngBytes)})
	assertStatus(t, err, 400)

	none, err := env.users.Identity(actorFor(user))
	if err != nil || none != nil {
		t.Fatalf("Identity() before submission = %v, %v", none, err)
	}

	kyc, err := env.users.SubmitIdentity(ctx, actorFor(user), identityDocs(t))
	if err != nil {
		t.Fatalf("SubmitIdentity() error = %v", err)
	}
	if kyc.VerificationStatus != models.VerificationPending {
		t.Errorf("status = %q, expected pending", kyc.VerificationStatus)
	}

	// Rejection then resubmission resets the review.
	if _, err := env.admin.UpdateVerification(actorFor(admin), user.ID, &VerificationDecisionRequest{
		Status: models.VerificationRejected, RejectionReason: "Blurry",
	}); err != nil {
		t.Fatalf("UpdateVerification() error = %v", err)
	}
	again, err := env.users.SubmitIdentity(ctx, actorFor(user), identityDocs(t))
	if err != nil {
		t.Fatalf("resubmission error = %v", err)
	}
	if again.ID != kyc.ID || again.VerificationStatus != models.VerificationPending || again.RejectionReason != "" {
		t.Errorf("resubmission should reset the same record, got %+v", again)
	}
	oldKey, _ := env.files.Store().KeyFromURL(kyc.FrontIDImageURL)
	if _, err := env.files.Store().Stat(ctx, oldKey); err != ErrObjectNotFound {
		t.Errorf("replaced images should be removed, Stat() error = %v", err)
	}

	if _, err := env.admin.UpdateVerification(actorFor(admin), user.ID, &VerificationDecisionRequest{Status: models.VerificationVerified}); err != nil {
		t.Fatalf("approve error = %v", err)
	}
	_, err = env.users.SubmitIdentity(ctx, actorFor(user), identityDocs(t))
	assertStatus(t, err, 400)
}

func TestUserUpdateStatus_DeactivationEndsSessions(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", models.RoleAdmin)
	user := env.createUser(t, "s@example.com", models.RoleClient)
	login, err := env.auth.Login(Actor{}, &LoginRequest{Email: "s@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	inactive := false
	updated, err := env.users.UpdateStatus(actorFor(admin), user.ID, &UpdateUserStatusRequest{IsActive: &inactive, Role: strPtr("superuser")})
	if err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if updated.IsActive || updated.Role != models.RoleClient {
		t.Errorf("unexpected user: active=%v role=%s", updated.IsActive, updated.Role)
	}
	_, err = env.auth.Refresh(Actor{}, login.Tokens.RefreshToken)
	assertStatus(t, err, 401)
}
