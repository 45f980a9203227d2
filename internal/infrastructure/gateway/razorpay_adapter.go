package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rentledger/backend/internal/domain/billing"
)

// RazorpayAdapter implements the PaymentGateway port against the
// Razorpay REST API using plain HTTP basic auth.
type RazorpayAdapter struct {
	config     *RazorpayConfig
	httpClient *http.Client
}

var _ billing.PaymentGateway = (*RazorpayAdapter)(nil)

// NewRazorpayAdapter creates a new Razorpay adapter
func NewRazorpayAdapter(config *RazorpayConfig) (*RazorpayAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &RazorpayAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// CreateOrder opens a new order on the gateway
func (a *RazorpayAdapter) CreateOrder(ctx context.Context, req billing.CreateOrderRequest) (*billing.GatewayOrder, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body := razorpayOrderRequest{
		Amount:   req.AmountPaise,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	}

	var order razorpayOrder
	if err := a.doRequest(ctx, http.MethodPost, "/v1/orders", body, &order); err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, billing.ErrGatewayInvalidResponse
	}

	return toGatewayOrder(&order), nil
}

// FetchOrder retrieves the current state of an order
func (a *RazorpayAdapter) FetchOrder(ctx context.Context, orderID string) (*billing.GatewayOrder, error) {
	if orderID == "" {
		return nil, billing.ErrGatewayOrderNotFound
	}

	var order razorpayOrder
	if err := a.doRequest(ctx, http.MethodGet, "/v1/orders/"+orderID, nil, &order); err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, billing.ErrGatewayInvalidResponse
	}

	return toGatewayOrder(&order), nil
}

// FetchOrderPayments retrieves all payments made against an order
func (a *RazorpayAdapter) FetchOrderPayments(ctx context.Context, orderID string) ([]billing.GatewayPayment, error) {
	if orderID == "" {
		return nil, billing.ErrGatewayOrderNotFound
	}

	var collection razorpayPaymentCollection
	if err := a.doRequest(ctx, http.MethodGet, "/v1/orders/"+orderID+"/payments", nil, &collection); err != nil {
		return nil, err
	}

	payments := make([]billing.GatewayPayment, 0, len(collection.Items))
	for i := range collection.Items {
		payments = append(payments, toGatewayPayment(&collection.Items[i]))
	}
	return payments, nil
}

// VerifyWebhookSignature checks the X-Razorpay-Signature of a raw
// webhook body: HMAC-SHA256 over the exact bytes received, hex
// encoded, compared in constant time. Fails closed when no webhook
// secret is configured.
func (a *RazorpayAdapter) VerifyWebhookSignature(body []byte, signature string) error {
	if a.config.WebhookSecret == "" {
		return billing.ErrMissingSecret
	}
	return verifyHMAC([]byte(a.config.WebhookSecret), body, signature)
}

// VerifyCheckoutSignature checks the client-submitted checkout proof:
// the gateway signs "orderID|paymentID" with the key secret.
func (a *RazorpayAdapter) VerifyCheckoutSignature(orderID, paymentID, signature string) error {
	payload := orderID + "|" + paymentID
	return verifyHMAC([]byte(a.config.KeySecret), []byte(payload), signature)
}

func verifyHMAC(secret, payload []byte, signature string) error {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return billing.ErrSignatureMismatch
	}
	return nil
}

// doRequest performs an HTTP request against the Razorpay API
func (a *RazorpayAdapter) doRequest(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: %v", billing.ErrGatewayRequestFailed, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", billing.ErrGatewayRequestFailed, err)
	}
	req.SetBasicAuth(a.config.KeyID, a.config.KeySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", billing.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", billing.ErrGatewayInvalidResponse, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return billing.ErrGatewayOrderNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", billing.ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		var errBody razorpayErrorBody
		if json.Unmarshal(respBody, &errBody) == nil && errBody.Error.Description != "" {
			return fmt.Errorf("%w: %s", billing.ErrGatewayRequestFailed, errBody.Error.Description)
		}
		return fmt.Errorf("%w: status %d", billing.ErrGatewayRequestFailed, resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %v", billing.ErrGatewayInvalidResponse, err)
	}
	return nil
}

func toGatewayOrder(o *razorpayOrder) *billing.GatewayOrder {
	return &billing.GatewayOrder{
		OrderID:     o.ID,
		AmountPaise: o.Amount,
		AmountPaid:  o.AmountPaid,
		Currency:    o.Currency,
		Receipt:     o.Receipt,
		Status:      billing.GatewayOrderStatus(o.Status),
		CreatedAt:   time.Unix(o.CreatedAt, 0),
	}
}

func toGatewayPayment(p *razorpayPayment) billing.GatewayPayment {
	payment := billing.GatewayPayment{
		PaymentID:   p.ID,
		OrderID:     p.OrderID,
		AmountPaise: p.Amount,
		Status:      billing.GatewayPaymentStatus(p.Status),
		Method:      p.Method,
		ErrorReason: p.ErrorDescription,
	}
	if p.CapturedAt > 0 {
		capturedAt := time.Unix(p.CapturedAt, 0)
		payment.CapturedAt = &capturedAt
	}
	return payment
}
