package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alphazee/agencyhub/backend/internal/config"
	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/internal/utils"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := models.Open(&config.DatabaseConfig{Driver: "sqlite", DSN: dsn}, "test")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// recordingQueue captures email tasks instead of delivering them.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []*EmailTask
}

func (q *recordingQueue) Enqueue(task *EmailTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) IsAsync() bool { return false }
func (q *recordingQueue) Close() error  { return nil }

func (q *recordingQueue) kinds() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.tasks))
	for _, task := range q.tasks {
		out = append(out, task.Kind)
	}
	return out
}

// fakeGateway is a scripted payment processor.
type fakeGateway struct {
	chargeErr  error
	intents    map[string]*IntentResult
	refunds    []int64
	event      *WebhookEvent
	webhookErr error
	// onRefund runs after the gateway accepts a refund.
	onRefund func()
}

func (g *fakeGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	return &ChargeResult{TransactionID: "ch_test_1", Status: "succeeded", Raw: json.RawMessage(`{"id":"ch_test_1"}`)}, nil
}

func (g *fakeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*IntentResult, error) {
	intent := &IntentResult{
		ID:           "pi_test_1",
		ClientSecret: "pi_test_1_secret",
		Status:       "requires_payment_method",
		AmountCents:  req.AmountCents,
		Metadata:     req.Metadata,
	}
	if g.intents == nil {
		g.intents = map[string]*IntentResult{}
	}
	g.intents[intent.ID] = intent
	return intent, nil
}

func (g *fakeGateway) GetIntent(ctx context.Context, id string) (*IntentResult, error) {
	intent, ok := g.intents[id]
	if !ok {
		return nil, &GatewayError{Message: "No such payment_intent: " + id}
	}
	return intent, nil
}

func (g *fakeGateway) Refund(ctx context.Context, transactionID string, amountCents int64) (*RefundResult, error) {
	g.refunds = append(g.refunds, amountCents)
	if g.onRefund != nil {
		g.onRefund()
	}
	return &RefundResult{ID: "re_test", Status: "succeeded", AmountCents: amountCents}, nil
}

func (g *fakeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if g.webhookErr != nil {
		return nil, g.webhookErr
	}
	return g.event, nil
}

// testEnv wires the services against a fresh database, a local file store
// and a recording mail queue.
type testEnv struct {
	db        *gorm.DB
	hub       *SSEHub
	queue     *recordingQueue
	mailer    *Mailer
	notify    *NotificationService
	settings  *SystemConfigService
	holidays  *HolidayService
	rules     *BusinessRules
	files     *FileService
	gateway   *fakeGateway
	auth      *AuthService
	users     *UserService
	projects  *ProjectService
	contracts *ContractService
	payments  *PaymentService
	messages  *MessageService
	admin     *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	cfg := config.DefaultConfig()

	env := &testEnv{db: db, hub: NewSSEHub(), queue: &recordingQueue{}, gateway: &fakeGateway{}}
	env.mailer = NewMailer(env.queue, cfg.App.FrontendURL, cfg.Business.Currency)
	env.notify = NewNotificationService(db, env.hub)
	env.settings = NewSystemConfigService(db)
	env.holidays = NewHolidayService()
	env.rules = NewBusinessRules(cfg.Business, env.settings, env.holidays)
	env.files = NewFileService(db, store, cfg.Storage.MaxUploadMB)
	env.auth = NewAuthService(db, &cfg.JWT, NewLDAPService(&cfg.LDAP), env.mailer)
	env.users = NewUserService(db, env.files, env.notify)
	env.projects = NewProjectService(db, env.files, env.notify, env.mailer)
	env.contracts = NewContractService(db, env.files, env.rules, env.notify, env.mailer)
	env.payments = NewPaymentService(db, env.gateway, env.rules, env.notify)
	env.messages = NewMessageService(db, env.notify)
	env.admin = NewAdminService(db, env.rules, env.settings, env.holidays, env.notify)
	return env
}

func (e *testEnv) createUser(t *testing.T, email, role string) *models.User {
	t.Helper()
	hash, err := utils.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     role,
		Role:         role,
		AuthType:     models.AuthTypeLocal,
		IsActive:     true,
	}
	if err := e.db.Transaction(func(tx *gorm.DB) error { return createAccount(tx, &user, "") }); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &user
}

func (e *testEnv) createProject(t *testing.T, client *models.User, status string) *models.Project {
	t.Helper()
	project := models.Project{
		ClientID:    client.ID,
		Name:        "Storefront",
		Description: "An online shop",
		Status:      status,
		Priority:    "medium",
	}
	if err := e.db.Create(&project).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	return &project
}

func (e *testEnv) verifyIdentity(t *testing.T, user *models.User) {
	t.Helper()
	kyc := models.IdentityVerification{
		UserID:             user.ID,
		FrontIDImageURL:    "/uploads/identity/front.png",
		BackIDImageURL:     "/uploads/identity/back.png",
		SignatureImageURL:  "/uploads/identity/sig.png",
		VerificationStatus: models.VerificationVerified,
	}
	if err := e.db.Create(&kyc).Error; err != nil {
		t.Fatalf("create identity: %v", err)
	}
}

func actorFor(user *models.User) Actor {
	return Actor{UserID: user.ID, Role: user.Role, IP: "127.0.0.1", UserAgent: "go-test"}
}

// fileHeader builds a multipart upload as a request parser would.
func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write(content)
	w.Close()

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["file"][0]
}

func assertStatus(t *testing.T, err error, status int) {
	t.Helper()
	var appErr *response.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError with status %d, got %v", status, err)
	}
	if appErr.HTTPStatus != status {
		t.Fatalf("status = %d (%s), expected %d", appErr.HTTPStatus, appErr.Message, status)
	}
}

func countActivity(t *testing.T, db *gorm.DB, action string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.ActivityLog{}).Where("action = ?", action).Count(&n).Error; err != nil {
		t.Fatalf("count activity: %v", err)
	}
	return n
}
