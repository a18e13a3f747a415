package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/alphazee/agencyhub/backend/internal/config"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

var ErrWebhookNotConfigured = errors.New("webhook not configured")

// GatewayError carries the processor's message for a declined or rejected call.
type GatewayError struct {
	Message string
}

func (e *GatewayError) Error() string { return e.Message }

type ChargeRequest struct {
	AmountCents int64
	Currency    string
	Token       string
	Description string
	Metadata    map[string]string
}

type ChargeResult struct {
	TransactionID string
	Status        string
	Raw           json.RawMessage
}

type IntentRequest struct {
	AmountCents int64
	Currency    string
	Description string
	Metadata    map[string]string
}

type IntentResult struct {
	ID           string
	ClientSecret string
	Status       string
	AmountCents  int64
	Metadata     map[string]string
	ChargeID     string
	Raw          json.RawMessage
}

func (r *IntentResult) Succeeded() bool {
	return r.Status == string(stripe.PaymentIntentStatusSucceeded)
}

type RefundResult struct {
	ID          string
	Status      string
	AmountCents int64
	Raw         json.RawMessage
}

const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded  = "charge.refunded"
)

// WebhookEvent is a verified gateway callback. Intent is set for payment
// intent events; ChargeID and RefundedCents for charge events.
type WebhookEvent struct {
	ID              string
	Type            string
	Intent          *IntentResult
	ChargeID        string
	PaymentIntentID string
	RefundedCents   int64
	FullyRefunded   bool
	Raw             json.RawMessage
}

// Gateway is the card processor used for payments.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	CreateIntent(ctx context.Context, req IntentRequest) (*IntentResult, error)
	GetIntent(ctx context.Context, id string) (*IntentResult, error)
	// Refund refunds amountCents of a charge (ch_) or payment intent (pi_) id.
	Refund(ctx context.Context, transactionID string, amountCents int64) (*RefundResult, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// StripeGateway implements Gateway with stripe-go.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

func NewStripeGateway(cfg *config.PaymentConfig) *StripeGateway {
	api := &client.API{}
	api.Init(cfg.StripeSecretKey, nil)
	return &StripeGateway{api: api, webhookSecret: cfg.WebhookSecret}
}

// gatewayErr keeps stripe's user facing message and hides transport details.
func gatewayErr(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		return &GatewayError{Message: se.Msg}
	}
	return &GatewayError{Message: fmt.Sprintf("payment gateway error: %v", err)}
}

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	params := &stripe.ChargeParams{
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Description),
	}
	params.Context = ctx
	params.AddExtra("source", req.Token)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	ch, err := g.api.Charges.New(params)
	if err != nil {
		return nil, gatewayErr(err)
	}
	raw, _ := json.Marshal(ch)
	return &ChargeResult{TransactionID: ch.ID, Status: string(ch.Status), Raw: raw}, nil
}

func intentResult(pi *stripe.PaymentIntent) *IntentResult {
	raw, _ := json.Marshal(pi)
	res := &IntentResult{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountCents:  pi.Amount,
		Metadata:     pi.Metadata,
		Raw:          raw,
	}
	if pi.LatestCharge != nil {
		res.ChargeID = pi.LatestCharge.ID
	}
	return res
}

func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*IntentResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, gatewayErr(err)
	}
	return intentResult(pi), nil
}

func (g *StripeGateway) GetIntent(ctx context.Context, id string) (*IntentResult, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, gatewayErr(err)
	}
	return intentResult(pi), nil
}

func (g *StripeGateway) Refund(ctx context.Context, transactionID string, amountCents int64) (*RefundResult, error) {
	params := &stripe.RefundParams{Amount: stripe.Int64(amountCents)}
	params.Context = ctx
	if strings.HasPrefix(transactionID, "pi_") {
		params.PaymentIntent = stripe.String(transactionID)
	} else {
		params.Charge = stripe.String(transactionID)
	}
	r, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, gatewayErr(err)
	}
	raw, _ := json.Marshal(r)
	return &RefundResult{ID: r.ID, Status: string(r.Status), AmountCents: r.Amount, Raw: raw}, nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if g.webhookSecret == "" {
		return nil, ErrWebhookNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, &GatewayError{Message: "invalid webhook signature"}
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type), Raw: event.Data.Raw}
	switch out.Type {
	case EventIntentSucceeded, EventIntentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, &GatewayError{Message: "invalid webhook payload"}
		}
		out.Intent = intentResult(&pi)
		out.Intent.Raw = event.Data.Raw
	case EventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, &GatewayError{Message: "invalid webhook payload"}
		}
		out.ChargeID = ch.ID
		out.RefundedCents = ch.AmountRefunded
		out.FullyRefunded = ch.Refunded
		if ch.PaymentIntent != nil {
			out.PaymentIntentID = ch.PaymentIntent.ID
		}
	}
	return out, nil
}
