package handlers

import (
	"io"

	"github.com/alphazee/agencyhub/backend/internal/services"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 64 << 10

type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// List returns paginated payments; clients see their own
// GET /api/payments
func (h *PaymentHandler) List(c *gin.Context) {
	var req services.PaymentListRequest
	if !bindQuery(c, &req) {
		return
	}

	payments, meta, err := h.paymentService.List(actorFrom(c), &req, pagination.FromQuery(c, pagination.DefaultPerPage))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, payments, meta)
}

// GetByID
// GET /api/payments/:id
func (h *PaymentHandler) GetByID(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	payment, err := h.paymentService.Get(actorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"payment": payment})
}

// Create a payment request and its invoice (admin)
// POST /api/payments
func (h *PaymentHandler) Create(c *gin.Context) {
	var req services.CreatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	payment, invoice, err := h.paymentService.Create(actorFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"message": "Payment request created successfully", "payment": payment, "invoice": invoice})
}

// Process charges a card token (client)
// POST /api/payments/:id/process
func (h *PaymentHandler) Process(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.ProcessPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.paymentService.Process(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Payment processed successfully", "payment": payment})
}

// CreateIntent starts a client-side confirmation flow (client)
// POST /api/payments/:id/intent
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	intent, err := h.paymentService.CreateIntent(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"client_secret": intent.ClientSecret, "payment_intent_id": intent.ID})
}

// Confirm re-checks the intent with the gateway before completing (client)
// POST /api/payments/:id/confirm
func (h *PaymentHandler) Confirm(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.ConfirmPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.paymentService.Confirm(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Payment confirmed successfully", "payment": payment})
}

// Refund (admin)
// POST /api/payments/:id/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.RefundPaymentRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	payment, err := h.paymentService.Refund(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Payment refunded successfully", "payment": payment})
}

// Webhook receives signed gateway events
// POST /api/payments/webhook
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(c, "Invalid payload")
		return
	}

	if err := h.paymentService.HandleWebhook(payload, c.GetHeader("Stripe-Signature")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"received": true})
}

// ListInvoices
// GET /api/payments/invoices
func (h *PaymentHandler) ListInvoices(c *gin.Context) {
	var req services.InvoiceListRequest
	if !bindQuery(c, &req) {
		return
	}

	invoices, meta, err := h.paymentService.ListInvoices(actorFrom(c), &req, pagination.FromQuery(c, pagination.DefaultPerPage))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, invoices, meta)
}

// CreateInvoice (admin)
// POST /api/payments/invoices
func (h *PaymentHandler) CreateInvoice(c *gin.Context) {
	var req services.CreateInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}

	invoice, err := h.paymentService.CreateInvoice(actorFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"message": "Invoice created successfully", "invoice": invoice})
}

// Stats (admin)
// GET /api/payments/stats
func (h *PaymentHandler) Stats(c *gin.Context) {
	stats, err := h.paymentService.Stats()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"stats": stats})
}
