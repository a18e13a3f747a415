package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/internal/utils"
	"github.com/alphazee/agencyhub/backend/pkg/logger"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MethodStripe       = "stripe"
	MethodStripeIntent = "stripe_intent"
)

// PaymentService owns payments and invoices. Gateway calls happen outside
// any transaction; their outcome is recorded with a conditional update.
type PaymentService struct {
	db      *gorm.DB
	gateway Gateway
	rules   *BusinessRules
	notify  *NotificationService
}

func NewPaymentService(db *gorm.DB, gateway Gateway, rules *BusinessRules, notify *NotificationService) *PaymentService {
	return &PaymentService{db: db, gateway: gateway, rules: rules, notify: notify}
}

func (s *PaymentService) requireGateway() error {
	if s.gateway == nil {
		return response.NewServiceUnavailable("payment gateway not configured")
	}
	return nil
}

// newInvoice computes tax and total for amount at rate.
func newInvoice(number string, project *models.Project, amount, rate float64, currency string, due time.Time, description string) models.Invoice {
	tax := utils.CalculateTax(amount, rate)
	return models.Invoice{
		ProjectID:     project.ID,
		ClientID:      project.ClientID,
		InvoiceNumber: number,
		Amount:        utils.Round2(amount),
		TaxAmount:     tax,
		TotalAmount:   utils.Round2(amount + tax),
		Currency:      currency,
		DueDate:       utils.DateOf(due),
		Description:   description,
		LineItems: datatypes.NewJSONSlice([]models.LineItem{{
			Description: description,
			Quantity:    1,
			UnitPrice:   utils.Round2(amount),
			Total:       utils.Round2(amount),
		}}),
	}
}

type CreatePaymentRequest struct {
	ProjectID   uuid.UUID `json:"project_id" binding:"required"`
	Amount      float64   `json:"amount" binding:"required,gt=0"`
	Description string    `json:"description" binding:"required"`
	MilestoneID *string   `json:"milestone_id"`
	ContractID  *string   `json:"contract_id"`
}

// Create records a pending payment and its sent invoice in one transaction.
func (s *PaymentService) Create(actor Actor, req *CreatePaymentRequest) (*models.Payment, *models.Invoice, error) {
	var project models.Project
	if err := s.db.First(&project, "id = ?", req.ProjectID).Error; err != nil {
		return nil, nil, notFound(err, "Project not found")
	}

	milestoneID, err := parseUUIDRef(req.MilestoneID)
	if err != nil {
		return nil, nil, response.NewBadRequest("Invalid milestone_id")
	}
	if milestoneID != nil {
		var n int64
		if err := s.db.Model(&models.ProjectMilestone{}).Where("id = ? AND project_id = ?", *milestoneID, project.ID).Count(&n).Error; err != nil {
			return nil, nil, err
		}
		if n == 0 {
			return nil, nil, response.NewBadRequest("Milestone does not belong to this project")
		}
	}
	contractID, err := parseUUIDRef(req.ContractID)
	if err != nil {
		return nil, nil, response.NewBadRequest("Invalid contract_id")
	}
	if contractID != nil {
		var n int64
		if err := s.db.Model(&models.Contract{}).Where("id = ? AND project_id = ?", *contractID, project.ID).Count(&n).Error; err != nil {
			return nil, nil, err
		}
		if n == 0 {
			return nil, nil, response.NewBadRequest("Contract does not belong to this project")
		}
	}

	now := time.Now()
	due := s.rules.PaymentDueDate(now)
	currency := s.rules.Currency()
	rate := s.rules.TaxRate()

	var payment models.Payment
	var invoice models.Invoice
	err = retryOnDuplicate(3, func() error {
		number := utils.InvoiceNumber(now)
		payment = models.Payment{
			ProjectID:     project.ID,
			MilestoneID:   milestoneID,
			ContractID:    contractID,
			ClientID:      project.ClientID,
			Amount:        utils.Round2(req.Amount),
			Currency:      currency,
			Status:        models.PaymentPending,
			DueDate:       &due,
			Description:   req.Description,
			InvoiceNumber: number,
		}
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&payment).Error; err != nil {
				return err
			}
			invoice = newInvoice(number, &project, req.Amount, rate, currency, due, req.Description)
			invoice.PaymentID = &payment.ID
			invoice.Status = models.InvoiceSent
			if err := tx.Create(&invoice).Error; err != nil {
				return err
			}
			return logActivity(tx, actor, "payment.create", "payment", &payment.ID, nil, map[string]interface{}{
				"amount":         payment.Amount,
				"invoice_number": number,
			})
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create payment: %w", err)
	}

	s.notify.Notify(project.ClientID, NotificationInput{
		Title:      "New Payment Request",
		Message:    fmt.Sprintf("A payment of %.2f %s is due for %s", payment.Amount, currency, project.Name),
		Type:       "payment",
		EntityType: "payment",
		EntityID:   &payment.ID,
		ActionURL:  "/dashboard/payments/" + payment.ID.String(),
	})
	return &payment, &invoice, nil
}

type PaymentListRequest struct {
	Status    string `form:"status"`
	ProjectID string `form:"project_id"`
}

func (s *PaymentService) List(actor Actor, req *PaymentListRequest, p pagination.Params) ([]models.Payment, pagination.Meta, error) {
	query := s.db.Model(&models.Payment{})
	if !actor.IsAdmin() {
		query = query.Where("client_id = ?", actor.UserID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.ProjectID != "" {
		if id, err := uuid.Parse(req.ProjectID); err == nil {
			query = query.Where("project_id = ?", id)
		}
	}
	return pagination.Paginate[models.Payment](query, p,
		pagination.OrderBy("created_at DESC"), pagination.Preload("Project"))
}

// loadOwned returns the payment when actor is an admin or its client.
func (s *PaymentService) loadOwned(actor Actor, id uuid.UUID, clientOnly bool) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.First(&payment, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Payment not found")
	}
	if payment.ClientID != actor.UserID && (clientOnly || !actor.IsAdmin()) {
		return nil, response.NewForbidden("Access denied")
	}
	return &payment, nil
}

func (s *PaymentService) Get(actor Actor, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.loadOwned(actor, id, false)
	if err != nil {
		return nil, err
	}
	if err := s.db.Preload("Project").Preload("Milestone").First(payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

type ProcessPaymentRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required"`
	StripeToken   string `json:"stripe_token"`
}

// Process charges the client's card for a pending payment.
func (s *PaymentService) Process(ctx context.Context, actor Actor, id uuid.UUID, req *ProcessPaymentRequest) (*models.Payment, error) {
	payment, err := s.loadOwned(actor, id, true)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentPending {
		return nil, response.NewBadRequest("Payment is not pending")
	}
	if req.PaymentMethod != MethodStripe {
		return nil, response.NewBadRequest("Unsupported payment method")
	}
	if req.StripeToken == "" {
		return nil, response.NewBadRequest("Stripe token is required")
	}
	if err := s.requireGateway(); err != nil {
		return nil, err
	}

	charge, err := s.gateway.Charge(ctx, ChargeRequest{
		AmountCents: utils.ToMinorUnits(payment.Amount, payment.Currency),
		Currency:    payment.Currency,
		Token:       req.StripeToken,
		Description: payment.Description,
		Metadata: map[string]string{
			"payment_id": payment.ID.String(),
			"project_id": payment.ProjectID.String(),
		},
	})
	if err != nil {
		return nil, s.recordFailure(actor, payment, err)
	}
	return s.complete(actor, payment, MethodStripe, charge.TransactionID, charge.Raw)
}

// recordFailure logs a declined charge and returns it as a 400. The payment row is untouched.
func (s *PaymentService) recordFailure(actor Actor, payment *models.Payment, err error) error {
	if logErr := logActivity(s.db, actor, "payment.failed", "payment", &payment.ID, nil, map[string]interface{}{
		"error": err.Error(),
	}); logErr != nil {
		logger.Warnf("[Payments] record failure for %s: %v", payment.ID, logErr)
	}
	var ge *GatewayError
	if errors.As(err, &ge) {
		return response.NewBadRequest(ge.Message)
	}
	return err
}

// complete moves a pending payment to completed. Losing the race to another
// completion yields a conflict.
func (s *PaymentService) complete(actor Actor, payment *models.Payment, method, transactionID string, raw []byte) (*models.Payment, error) {
	today := utils.Today()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentPending).
			Updates(map[string]interface{}{
				"status":           models.PaymentCompleted,
				"paid_date":        today,
				"payment_method":   method,
				"payment_gateway":  MethodStripe,
				"transaction_id":   transactionID,
				"gateway_response": datatypes.JSON(raw),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return response.NewConflict("Payment has already been processed")
		}
		if err := tx.Model(&models.Invoice{}).
			Where("payment_id = ?", payment.ID).
			Updates(map[string]interface{}{"status": models.InvoicePaid, "paid_date": today}).Error; err != nil {
			return err
		}
		return logActivity(tx, actor, "payment.completed", "payment", &payment.ID,
			map[string]interface{}{"status": models.PaymentPending},
			map[string]interface{}{"status": models.PaymentCompleted, "transaction_id": transactionID, "payment_method": method})
	})
	if err != nil {
		return nil, err
	}
	if err := s.db.First(payment, "id = ?", payment.ID).Error; err != nil {
		return nil, err
	}

	s.notify.NotifyAdmins(NotificationInput{
		Title:      "Payment Received",
		Message:    fmt.Sprintf("Payment %s of %.2f %s was completed", payment.InvoiceNumber, payment.Amount, payment.Currency),
		Type:       "payment_received",
		EntityType: "payment",
		EntityID:   &payment.ID,
		ActionURL:  "/admin/payments/" + payment.ID.String(),
	})
	return payment, nil
}

// CreateIntent starts a client side card flow for a pending payment.
func (s *PaymentService) CreateIntent(ctx context.Context, actor Actor, id uuid.UUID) (*IntentResult, error) {
	payment, err := s.loadOwned(actor, id, true)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentPending {
		return nil, response.NewBadRequest("Payment is not pending")
	}
	if err := s.requireGateway(); err != nil {
		return nil, err
	}
	intent, err := s.gateway.CreateIntent(ctx, IntentRequest{
		AmountCents: utils.ToMinorUnits(payment.Amount, payment.Currency),
		Currency:    payment.Currency,
		Description: payment.Description,
		Metadata:    map[string]string{"payment_id": payment.ID.String()},
	})
	if err != nil {
		var ge *GatewayError
		if errors.As(err, &ge) {
			return nil, response.NewBadRequest(ge.Message)
		}
		return nil, err
	}
	return intent, nil
}

type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
}

// Confirm completes a payment only after the gateway reports the intent as
// succeeded for this payment and amount.
func (s *PaymentService) Confirm(ctx context.Context, actor Actor, id uuid.UUID, req *ConfirmPaymentRequest) (*models.Payment, error) {
	payment, err := s.loadOwned(actor, id, true)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentPending {
		return nil, response.NewBadRequest("Payment is not pending")
	}
	if err := s.requireGateway(); err != nil {
		return nil, err
	}
	intent, err := s.gateway.GetIntent(ctx, req.PaymentIntentID)
	if err != nil {
		var ge *GatewayError
		if errors.As(err, &ge) {
			return nil, response.NewBadRequest(ge.Message)
		}
		return nil, err
	}
	if err := verifyIntent(intent, payment); err != nil {
		return nil, err
	}
	return s.complete(actor, payment, MethodStripeIntent, intent.ID, intent.Raw)
}

func verifyIntent(intent *IntentResult, payment *models.Payment) error {
	if !intent.Succeeded() {
		return response.NewBadRequest("Payment has not succeeded")
	}
	if intent.Metadata["payment_id"] != payment.ID.String() {
		return response.NewBadRequest("Payment intent does not match this payment")
	}
	if intent.AmountCents != utils.ToMinorUnits(payment.Amount, payment.Currency) {
		return response.NewBadRequest("Payment amount mismatch")
	}
	return nil
}

type RefundPaymentRequest struct {
	Amount *float64 `json:"amount" binding:"omitempty,gt=0"`
	Reason string   `json:"reason"`
}

// Refund returns all or part of a completed payment.
func (s *PaymentService) Refund(ctx context.Context, actor Actor, id uuid.UUID, req *RefundPaymentRequest) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.First(&payment, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Payment not found")
	}
	if payment.Status != models.PaymentCompleted || payment.TransactionID == "" {
		return nil, response.NewBadRequest("Only completed payments can be refunded")
	}
	remaining := utils.Round2(payment.Amount - payment.RefundedAmount)
	amount := remaining
	if req.Amount != nil {
		amount = utils.Round2(*req.Amount)
	}
	if amount <= 0 || amount > remaining {
		return nil, response.NewBadRequest("Refund amount exceeds remaining balance")
	}
	if err := s.requireGateway(); err != nil {
		return nil, err
	}

	refund, err := s.gateway.Refund(ctx, payment.TransactionID, utils.ToMinorUnits(amount, payment.Currency))
	if err != nil {
		var ge *GatewayError
		if errors.As(err, &ge) {
			return nil, response.NewBadRequest(ge.Message)
		}
		return nil, err
	}

	refunded := utils.Round2(payment.RefundedAmount + amount)
	status := models.PaymentCompleted
	if refunded >= payment.Amount {
		status = models.PaymentRefunded
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ? AND refunded_amount = ?", payment.ID, models.PaymentCompleted, payment.RefundedAmount).
			Updates(map[string]interface{}{
				"refunded_amount": refunded,
				"status":          status,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return response.NewConflict("Payment was refunded concurrently")
		}
		return logActivity(tx, actor, "payment.refunded", "payment", &payment.ID,
			map[string]interface{}{"status": models.PaymentCompleted, "refunded_amount": payment.RefundedAmount},
			map[string]interface{}{"status": status, "refunded_amount": refunded, "refund_id": refund.ID, "reason": req.Reason})
	})
	if err != nil {
		return nil, err
	}
	payment.RefundedAmount = refunded
	payment.Status = status

	s.notify.Notify(payment.ClientID, NotificationInput{
		Title:      "Payment Refunded",
		Message:    fmt.Sprintf("%.2f %s of payment %s has been refunded", amount, payment.Currency, payment.InvoiceNumber),
		Type:       "payment_refunded",
		EntityType: "payment",
		EntityID:   &payment.ID,
		ActionURL:  "/dashboard/payments/" + payment.ID.String(),
	})
	return &payment, nil
}

// HandleWebhook applies a verified gateway event. Replayed events are no-ops.
func (s *PaymentService) HandleWebhook(payload []byte, signature string) error {
	if s.gateway == nil {
		return response.NewServiceUnavailable("webhook not configured")
	}
	event, err := s.gateway.ParseWebhook(payload, signature)
	if errors.Is(err, ErrWebhookNotConfigured) {
		return response.NewServiceUnavailable("webhook not configured")
	}
	if err != nil {
		var ge *GatewayError
		if errors.As(err, &ge) {
			return response.NewBadRequest(ge.Message)
		}
		return err
	}

	switch event.Type {
	case EventIntentSucceeded:
		payment, err := s.paymentForIntent(event.Intent)
		if err != nil || payment == nil {
			return err
		}
		if payment.Status != models.PaymentPending {
			return nil
		}
		if err := verifyIntent(event.Intent, payment); err != nil {
			logger.Warnf("[Payments] webhook intent %s rejected: %v", event.Intent.ID, err)
			return nil
		}
		_, err = s.complete(SystemActor, payment, MethodStripeIntent, event.Intent.ID, event.Intent.Raw)
		var appErr *response.AppError
		if errors.As(err, &appErr) && appErr.HTTPStatus == 409 {
			return nil
		}
		return err

	case EventIntentFailed:
		payment, err := s.paymentForIntent(event.Intent)
		if err != nil || payment == nil {
			return err
		}
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(payment).Update("gateway_response", datatypes.JSON(event.Intent.Raw)).Error; err != nil {
				return err
			}
			return logActivity(tx, SystemActor, "payment.failed", "payment", &payment.ID, nil,
				map[string]interface{}{"payment_intent_id": event.Intent.ID})
		})

	case EventChargeRefunded:
		ids := []string{event.ChargeID}
		if event.PaymentIntentID != "" {
			ids = append(ids, event.PaymentIntentID)
		}
		var payment models.Payment
		if err := s.db.Where("transaction_id IN ?", ids).First(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				logger.Warnf("[Payments] refund webhook for unknown charge %s", event.ChargeID)
				return nil
			}
			return err
		}
		updates := map[string]interface{}{"refunded_amount": utils.FromMinorUnits(event.RefundedCents, payment.Currency)}
		if event.FullyRefunded {
			updates["status"] = models.PaymentRefunded
		}
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&payment).Updates(updates).Error; err != nil {
				return err
			}
			return logActivity(tx, SystemActor, "payment.refunded", "payment", &payment.ID,
				map[string]interface{}{"status": payment.Status}, updates)
		})
	}
	logger.Debug().Str("type", event.Type).Msg("[Payments] ignoring webhook event")
	return nil
}

func (s *PaymentService) paymentForIntent(intent *IntentResult) (*models.Payment, error) {
	if intent == nil {
		return nil, nil
	}
	id, err := uuid.Parse(intent.Metadata["payment_id"])
	if err != nil {
		logger.Warnf("[Payments] webhook intent %s has no payment_id", intent.ID)
		return nil, nil
	}
	var payment models.Payment
	if err := s.db.First(&payment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

type InvoiceListRequest struct {
	Status    string `form:"status"`
	ProjectID string `form:"project_id"`
}

func (s *PaymentService) ListInvoices(actor Actor, req *InvoiceListRequest, p pagination.Params) ([]models.Invoice, pagination.Meta, error) {
	query := s.db.Model(&models.Invoice{})
	if !actor.IsAdmin() {
		query = query.Where("client_id = ?", actor.UserID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.ProjectID != "" {
		if id, err := uuid.Parse(req.ProjectID); err == nil {
			query = query.Where("project_id = ?", id)
		}
	}
	return pagination.Paginate[models.Invoice](query, p,
		pagination.OrderBy("created_at DESC"), pagination.Preload("Project"))
}

type CreateInvoiceRequest struct {
	ProjectID   uuid.UUID         `json:"project_id" binding:"required"`
	Amount      float64           `json:"amount" binding:"required,gt=0"`
	DueDate     string            `json:"due_date" binding:"required"`
	Description string            `json:"description"`
	Status      string            `json:"status" binding:"omitempty,oneof=draft sent paid overdue cancelled"`
	LineItems   []models.LineItem `json:"line_items"`
}

func (s *PaymentService) CreateInvoice(actor Actor, req *CreateInvoiceRequest) (*models.Invoice, error) {
	var project models.Project
	if err := s.db.First(&project, "id = ?", req.ProjectID).Error; err != nil {
		return nil, notFound(err, "Project not found")
	}
	due, err := utils.ParseDate(req.DueDate)
	if err != nil {
		return nil, response.NewBadRequest("Invalid due_date, expected YYYY-MM-DD")
	}

	var invoice models.Invoice
	err = retryOnDuplicate(3, func() error {
		invoice = newInvoice(utils.InvoiceNumber(time.Now()), &project, req.Amount, s.rules.TaxRate(), s.rules.Currency(), due, req.Description)
		invoice.Status = models.InvoiceDraft
		if req.Status != "" {
			invoice.Status = req.Status
		}
		if len(req.LineItems) > 0 {
			invoice.LineItems = datatypes.NewJSONSlice(req.LineItems)
		}
		return s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&invoice).Error; err != nil {
				return err
			}
			return logActivity(tx, actor, "invoice.create", "invoice", &invoice.ID, nil, map[string]interface{}{
				"invoice_number": invoice.InvoiceNumber,
				"total_amount":   invoice.TotalAmount,
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return &invoice, nil
}

// MarkOverdueInvoices flips sent invoices past their due date to overdue.
func (s *PaymentService) MarkOverdueInvoices() (int64, error) {
	res := s.db.Model(&models.Invoice{}).
		Where("status = ? AND due_date < ?", models.InvoiceSent, utils.Today()).
		Update("status", models.InvoiceOverdue)
	return res.RowsAffected, res.Error
}

type PaymentStats struct {
	TotalPayments   int64   `json:"total_payments"`
	Pending         int64   `json:"pending"`
	Completed       int64   `json:"completed"`
	Failed          int64   `json:"failed"`
	TotalRevenue    float64 `json:"total_revenue"`
	PendingRevenue  float64 `json:"pending_revenue"`
	OverduePayments int64   `json:"overdue_payments"`
	TotalInvoices   int64   `json:"total_invoices"`
	PaidInvoices    int64   `json:"paid_invoices"`
	OverdueInvoices int64   `json:"overdue_invoices"`
}

func (s *PaymentService) Stats() (*PaymentStats, error) {
	var st PaymentStats
	today := utils.Today()
	payments := func() *gorm.DB { return s.db.Model(&models.Payment{}) }
	invoices := func() *gorm.DB { return s.db.Model(&models.Invoice{}) }

	steps := []*gorm.DB{
		payments().Count(&st.TotalPayments),
		payments().Where("status = ?", models.PaymentPending).Count(&st.Pending),
		payments().Where("status = ?", models.PaymentCompleted).Count(&st.Completed),
		payments().Where("status = ?", models.PaymentFailed).Count(&st.Failed),
		payments().Where("status = ?", models.PaymentCompleted).Select("COALESCE(SUM(amount), 0)").Scan(&st.TotalRevenue),
		payments().Where("status = ?", models.PaymentPending).Select("COALESCE(SUM(amount), 0)").Scan(&st.PendingRevenue),
		payments().Where("status = ? AND due_date < ?", models.PaymentPending, today).Count(&st.OverduePayments),
		invoices().Count(&st.TotalInvoices),
		invoices().Where("status = ?", models.InvoicePaid).Count(&st.PaidInvoices),
		invoices().Where("status = ? OR (status = ? AND due_date < ?)", models.InvoiceOverdue, models.InvoiceSent, today).Count(&st.OverdueInvoices),
	}
	for _, step := range steps {
		if step.Error != nil {
			return nil, step.Error
		}
	}
	st.TotalRevenue = utils.Round2(st.TotalRevenue)
	st.PendingRevenue = utils.Round2(st.PendingRevenue)
	return &st, nil
}
