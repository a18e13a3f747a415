package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/models"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake-image")

type contractFixture struct {
	env      *testEnv
	admin    *models.User
	client   *models.User
	project  *models.Project
	contract *models.Contract
}

func newContractFixture(t *testing.T) *contractFixture {
	t.Helper()
	env := newTestEnv(t)
	f := &contractFixture{
		env:    env,
		admin:  env.createUser(t, "admin@example.com", models.RoleAdmin),
		client: env.createUser(t, "client@example.com", models.RoleClient),
	}
	f.project = env.createProject(t, f.client, models.ProjectApproved)
	contract, err := env.contracts.Create(actorFor(f.admin), &CreateContractRequest{
		ProjectID: f.project.ID,
		Title:     "Development Agreement",
		Content:   "Terms of work",
		Amount:    1500.456,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	f.contract = contract
	return f
}

func (f *contractFixture) send(t *testing.T) {
	t.Helper()
	if _, err := f.env.contracts.Send(actorFor(f.admin), f.contract.ID); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
}

func (f *contractFixture) sign(t *testing.T) (*models.Contract, error) {
	t.Helper()
	return f.env.contracts.Sign(context.Background(), actorFor(f.client), f.contract.ID,
		&SignRequest{Signature: fileHeader(t, "signature.png", pngBytes)})
}

func TestContractCreate_Defaults(t *testing.T) {
	f := newContractFixture(t)
	c := f.contract

	if c.Status != models.ContractDraft {
		t.Errorf("Status = %q, expected draft", c.Status)
	}
	if c.ClientID != f.client.ID {
		t.Error("contract client should be the project client")
	}
	if c.Amount != 1500.46 {
		t.Errorf("Amount = %v, expected 1500.46", c.Amount)
	}
	if c.Currency != "OMR" {
		t.Errorf("Currency = %q, expected OMR", c.Currency)
	}
	if !strings.HasPrefix(c.ContractNumber, "CON-") {
		t.Errorf("ContractNumber = %q, expected CON- prefix", c.ContractNumber)
	}
	if c.ExpiryDate == nil || c.ExpiryDate.Before(time.Now().AddDate(0, 0, 179)) {
		t.Errorf("ExpiryDate = %v, expected about 180 days out", c.ExpiryDate)
	}
	if countActivity(t, f.env.db, "contract.create") != 1 {
		t.Error("expected a contract.create activity entry")
	}
}

func TestContractSend_OnlyFromDraft(t *testing.T) {
	f := newContractFixture(t)
	f.send(t)

	_, err := f.env.contracts.Send(actorFor(f.admin), f.contract.ID)
	assertStatus(t, err, 400)

	var n int64
	f.env.db.Model(&models.Notification{}).Where("user_id = ? AND type = ?", f.client.ID, "contract").Count(&n)
	if n != 1 {
		t.Errorf("client notifications = %d, expected 1", n)
	}
	found := false
	for _, kind := range f.env.queue.kinds() {
		if kind == "contract_sent" {
			found = true
		}
	}
	if !found {
		t.Error("expected a contract_sent email")
	}
}

// assertUnsigned checks that a rejected signing left the contract untouched.
func (f *contractFixture) assertUnsigned(t *testing.T, status string) {
	t.Helper()
	var c models.Contract
	if err := f.env.db.First(&c, "id = ?", f.contract.ID).Error; err != nil {
		t.Fatalf("reload contract: %v", err)
	}
	if c.Status != status {
		t.Errorf("status = %s, expected %s", c.Status, status)
	}
	if c.SignedDate != nil {
		t.Errorf("signed_date = %v, expected nil", c.SignedDate)
	}
	var sigs int64
	f.env.db.Model(&models.ContractSignature{}).Where("contract_id = ?", f.contract.ID).Count(&sigs)
	if sigs != 0 {
		t.Errorf("signatures = %d, expected 0", sigs)
	}
}

func TestContractSign_Guards(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		f := newContractFixture(t)
		id := f.contract.ID
		f.contract.ID[0] ^= 0xff
		_, err := f.sign(t)
		assertStatus(t, err, 404)
		f.contract.ID = id
		f.assertUnsigned(t, models.ContractDraft)
	})
	t.Run("not the client", func(t *testing.T) {
		f := newContractFixture(t)
		f.send(t)
		other := f.env.createUser(t, "other@example.com", models.RoleClient)
		_, err := f.env.contracts.Sign(context.Background(), actorFor(other), f.contract.ID,
			&SignRequest{Signature: fileHeader(t, "s.png", pngBytes)})
		assertStatus(t, err, 403)
		f.assertUnsigned(t, models.ContractSent)
	})
	t.Run("still draft", func(t *testing.T) {
		f := newContractFixture(t)
		f.env.verifyIdentity(t, f.client)
		_, err := f.sign(t)
		assertStatus(t, err, 400)
		f.assertUnsigned(t, models.ContractDraft)
	})
	t.Run("expired", func(t *testing.T) {
		f := newContractFixture(t)
		f.send(t)
		f.env.verifyIdentity(t, f.client)
		f.env.db.Model(&models.Contract{}).Where("id = ?", f.contract.ID).
			Update("expiry_date", time.Now().AddDate(0, 0, -2))
		_, err := f.sign(t)
		assertStatus(t, err, 400)
		f.assertUnsigned(t, models.ContractSent)
	})
	t.Run("identity not verified", func(t *testing.T) {
		f := newContractFixture(t)
		f.send(t)
		_, err := f.sign(t)
		assertStatus(t, err, 400)
		f.assertUnsigned(t, models.ContractSent)
	})
	t.Run("missing image", func(t *testing.T) {
		f := newContractFixture(t)
		f.send(t)
		f.env.verifyIdentity(t, f.client)
		_, err := f.env.contracts.Sign(context.Background(), actorFor(f.client), f.contract.ID, &SignRequest{})
		assertStatus(t, err, 400)
		f.assertUnsigned(t, models.ContractSent)
	})
	t.Run("non image upload", func(t *testing.T) {
		f := newContractFixture(t)
		f.send(t)
		f.env.verifyIdentity(t, f.client)
		_, err := f.env.contracts.Sign(context.Background(), actorFor(f.client), f.contract.ID,
			&SignRequest{Signature: fileHeader(t, "sig.pdf", []byte("%PDF"))})
		assertStatus(t, err, 400)
		f.assertUnsigned(t, models.ContractSent)
	})
}

func TestContractSign_SignsOnce(t *testing.T) {
	f := newContractFixture(t)
	f.send(t)
	f.env.verifyIdentity(t, f.client)

	signed, err := f.sign(t)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if signed.Status != models.ContractSigned || signed.SignedDate == nil {
		t.Errorf("unexpected contract after signing: status=%s signed=%v", signed.Status, signed.SignedDate)
	}
	if len(signed.Signatures) != 1 || signed.Signatures[0].IPAddress != "127.0.0.1" {
		t.Fatalf("expected one signature with the signer's address, got %+v", signed.Signatures)
	}

	// A second attempt fails on status before the duplicate check.
	_, err = f.sign(t)
	assertStatus(t, err, 400)

	var sigs int64
	f.env.db.Model(&models.ContractSignature{}).Where("contract_id = ?", f.contract.ID).Count(&sigs)
	if sigs != 1 {
		t.Errorf("signatures = %d, expected 1", sigs)
	}
}

func TestContractLifecycle_DrivesProject(t *testing.T) {
	f := newContractFixture(t)
	f.send(t)
	f.env.verifyIdentity(t, f.client)
	if _, err := f.sign(t); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	_, err := f.env.contracts.Complete(actorFor(f.admin), f.contract.ID)
	assertStatus(t, err, 400)

	if _, err := f.env.contracts.Activate(actorFor(f.admin), f.contract.ID); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	var project models.Project
	f.env.db.First(&project, "id = ?", f.project.ID)
	if project.Status != models.ProjectInProgress {
		t.Errorf("project status = %q, expected in-progress", project.Status)
	}

	completed, err := f.env.contracts.Complete(actorFor(f.admin), f.contract.ID)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if completed.Status != models.ContractCompleted || completed.CompletionDate == nil {
		t.Errorf("unexpected completed contract: %+v", completed)
	}
	f.env.db.First(&project, "id = ?", f.project.ID)
	if project.Status != models.ProjectCompleted || project.Progress != 100 {
		t.Errorf("project = %s/%d, expected completed/100", project.Status, project.Progress)
	}

	_, err = f.env.contracts.Cancel(actorFor(f.admin), f.contract.ID, &CancelContractRequest{Reason: "late"})
	assertStatus(t, err, 400)

	for _, action := range []string{"contract.send", "contract.sign", "contract.activate", "contract.complete"} {
		if countActivity(t, f.env.db, action) != 1 {
			t.Errorf("expected one %s activity entry", action)
		}
	}
}

func TestContractCancel_AppendsReason(t *testing.T) {
	f := newContractFixture(t)
	f.env.db.Model(&models.Contract{}).Where("id = ?", f.contract.ID).Update("terms_and_conditions", "Net 30")

	cancelled, err := f.env.contracts.Cancel(actorFor(f.admin), f.contract.ID, &CancelContractRequest{Reason: "Client withdrew"})
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if cancelled.Status != models.ContractCancelled {
		t.Errorf("Status = %q, expected cancelled", cancelled.Status)
	}
	if cancelled.TermsAndConditions != "Net 30\n\nCancellation Reason: Client withdrew" {
		t.Errorf("TermsAndConditions = %q", cancelled.TermsAndConditions)
	}

	_, err = f.env.contracts.Cancel(actorFor(f.admin), f.contract.ID, nil)
	assertStatus(t, err, 400)
}

func TestContractCancel_DefaultReason(t *testing.T) {
	f := newContractFixture(t)
	cancelled, err := f.env.contracts.Cancel(actorFor(f.admin), f.contract.ID, &CancelContractRequest{})
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if cancelled.TermsAndConditions != "Cancellation Reason: No reason provided" {
		t.Errorf("TermsAndConditions = %q", cancelled.TermsAndConditions)
	}
}

func TestContractGet_ClientIsolation(t *testing.T) {
	f := newContractFixture(t)
	other := f.env.createUser(t, "other@example.com", models.RoleClient)

	_, err := f.env.contracts.Get(actorFor(other), f.contract.ID)
	assertStatus(t, err, 403)

	if _, err := f.env.contracts.Get(actorFor(f.client), f.contract.ID); err != nil {
		t.Errorf("owner Get() error = %v", err)
	}
}

func TestContractStats(t *testing.T) {
	f := newContractFixture(t)
	f.send(t)
	f.env.verifyIdentity(t, f.client)
	if _, err := f.sign(t); err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	stats, err := f.env.contracts.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 1 || stats.ByStatus[models.ContractSigned] != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.TotalValue != 1500.46 {
		t.Errorf("TotalValue = %v, expected 1500.46", stats.TotalValue)
	}
}
