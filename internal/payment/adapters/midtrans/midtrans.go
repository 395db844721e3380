package midtrans

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/fotoyou/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/fotoyou/internal/payment/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	providerName = "midtrans"

	sandboxSnapURL    = "https://app.sandbox.midtrans.com"
	sandboxAPIURL     = "https://api.sandbox.midtrans.com"
	productionSnapURL = "https://app.midtrans.com"
	productionAPIURL  = "https://api.midtrans.com"

	maxItemNameLength  = 50
	maxErrorBodyBytes  = 4 << 10
	defaultHTTPTimeout = 15 * time.Second
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

// NewAdapter reads server_key (required), production, confirm_status and the
// optional snap_base_url / api_base_url overrides from cfg.Config.
func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.Gateway, error) {
	serverKey, ok := readString(cfg.Config, "server_key")
	if !ok {
		return nil, paymentdomain.ErrInvalidConfig
	}
	serverKey = strings.TrimSpace(serverKey)
	if serverKey == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}

	production := readBool(cfg.Config, "production")
	snapURL, apiURL := sandboxSnapURL, sandboxAPIURL
	if production {
		snapURL, apiURL = productionSnapURL, productionAPIURL
	}
	if override, ok := readString(cfg.Config, "snap_base_url"); ok && strings.TrimSpace(override) != "" {
		snapURL = override
	}
	if override, ok := readString(cfg.Config, "api_base_url"); ok && strings.TrimSpace(override) != "" {
		apiURL = override
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &Adapter{
		serverKey:     serverKey,
		snapURL:       strings.TrimRight(strings.TrimSpace(snapURL), "/"),
		apiURL:        strings.TrimRight(strings.TrimSpace(apiURL), "/"),
		confirmStatus: readBool(cfg.Config, "confirm_status"),
		client:        client,
		tracer:        otel.Tracer("fotoyou/payment/midtrans"),
	}, nil
}

type Adapter struct {
	serverKey     string
	snapURL       string
	apiURL        string
	confirmStatus bool
	client        *http.Client
	tracer        trace.Tracer
}

func (a *Adapter) Provider() string {
	return providerName
}

func (a *Adapter) CreateTransactionToken(ctx context.Context, order paymentdomain.Order) (*paymentdomain.Transaction, error) {
	if strings.TrimSpace(order.OrderID) == "" || order.Amount <= 0 {
		return nil, paymentdomain.ErrInvalidOrder
	}

	ctx, span := a.tracer.Start(ctx, "midtrans.create_transaction", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("payment.provider", providerName),
		attribute.String("payment.order_id", order.OrderID),
	)...)

	body, err := json.Marshal(newSnapRequest(order))
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", paymentdomain.ErrInvalidOrder, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.snapURL+"/snap/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrGatewayUnavailable, err)
	}
	a.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	if notifyURL := strings.TrimSpace(order.NotificationURL); notifyURL != "" {
		req.Header.Set("X-Override-Notification", notifyURL)
	}

	var out snapResponse
	status, err := a.do(req, &out)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", status))
	if status >= 300 || strings.TrimSpace(out.Token) == "" {
		err := gatewayStatusError(status, out.ErrorMessages)
		recordSpanError(span, err)
		return nil, err
	}

	return &paymentdomain.Transaction{Token: out.Token, RedirectURL: out.RedirectURL}, nil
}

func (a *Adapter) DecodeNotification(ctx context.Context, payload []byte, headers http.Header) (*paymentdomain.Notification, error) {
	var body notificationBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(body.OrderID) == "" || strings.TrimSpace(body.TransactionStatus) == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(body.SignatureKey) == "" {
		return nil, paymentdomain.ErrInvalidSignature
	}

	expected := a.signature(body.OrderID, body.StatusCode, body.GrossAmount)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(body.SignatureKey)))) != 1 {
		return nil, paymentdomain.ErrInvalidSignature
	}

	notification := body.toNotification(payload)
	if !a.confirmStatus {
		return notification, nil
	}

	// The status API is the source of truth; the pushed body only names the order.
	confirmed, err := a.TransactionStatus(ctx, notification.OrderID)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrTransactionNotFound) {
			return nil, fmt.Errorf("%w: transaction unknown to gateway", paymentdomain.ErrInvalidPayload)
		}
		return nil, err
	}
	confirmed.Raw = payload
	return confirmed, nil
}

func (a *Adapter) TransactionStatus(ctx context.Context, orderID string) (*paymentdomain.Notification, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, paymentdomain.ErrInvalidOrder
	}

	ctx, span := a.tracer.Start(ctx, "midtrans.transaction_status", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("payment.provider", providerName),
		attribute.String("payment.order_id", orderID),
	)...)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL+"/v2/"+url.PathEscape(orderID)+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrGatewayUnavailable, err)
	}
	a.authorize(req)

	var body notificationBody
	status, err := a.do(req, &body)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", status))

	// Core API answers 200 with status_code "404" for unknown orders.
	if status == http.StatusNotFound || strings.TrimSpace(body.StatusCode) == "404" {
		return nil, paymentdomain.ErrTransactionNotFound
	}
	if status >= 300 || strings.TrimSpace(body.TransactionStatus) == "" {
		err := gatewayStatusError(status, []string{body.StatusMessage})
		recordSpanError(span, err)
		return nil, err
	}

	return body.toNotification(nil), nil
}

func (a *Adapter) authorize(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(a.serverKey+":")))
}

// do sends req and decodes a JSON body into out whatever the status code.
func (a *Adapter) do(req *http.Request, out any) (int, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", paymentdomain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: read response: %v", paymentdomain.ErrGatewayUnavailable, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		if resp.StatusCode >= 300 {
			return resp.StatusCode, nil
		}
		return resp.StatusCode, fmt.Errorf("%w: decode response: %v", paymentdomain.ErrGatewayUnavailable, err)
	}
	return resp.StatusCode, nil
}

func (a *Adapter) signature(orderID, statusCode, grossAmount string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + a.serverKey))
	return hex.EncodeToString(sum[:])
}

func gatewayStatusError(status int, messages []string) error {
	detail := strings.TrimSpace(strings.Join(messages, "; "))
	if len(detail) > maxErrorBodyBytes {
		detail = detail[:maxErrorBodyBytes]
	}
	if status >= 400 && status < 500 {
		return fmt.Errorf("%w: status %d: %s", paymentdomain.ErrGatewayRejected, status, detail)
	}
	return fmt.Errorf("%w: status %d: %s", paymentdomain.ErrGatewayUnavailable, status, detail)
}

func recordSpanError(span trace.Span, err error) {
	safe := tracing.SafeError(err)
	span.RecordError(safe)
	span.SetStatus(codes.Error, safe.Error())
}

type snapRequest struct {
	TransactionDetails transactionDetails `json:"transaction_details"`
	ItemDetails        []itemDetail       `json:"item_details"`
	CustomerDetails    customerDetails    `json:"customer_details"`
}

type transactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type itemDetail struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

type customerDetails struct {
	FirstName string `json:"first_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

type snapResponse struct {
	Token         string   `json:"token"`
	RedirectURL   string   `json:"redirect_url"`
	ErrorMessages []string `json:"error_messages"`
}

type notificationBody struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
	StatusMessage     string `json:"status_message"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
}

func (b notificationBody) toNotification(raw []byte) *paymentdomain.Notification {
	return &paymentdomain.Notification{
		Provider:          providerName,
		OrderID:           strings.TrimSpace(b.OrderID),
		TransactionID:     strings.TrimSpace(b.TransactionID),
		TransactionStatus: strings.ToLower(strings.TrimSpace(b.TransactionStatus)),
		FraudStatus:       strings.ToLower(strings.TrimSpace(b.FraudStatus)),
		StatusCode:        strings.TrimSpace(b.StatusCode),
		GrossAmount:       strings.TrimSpace(b.GrossAmount),
		Raw:               raw,
	}
}

func newSnapRequest(order paymentdomain.Order) snapRequest {
	return snapRequest{
		TransactionDetails: transactionDetails{
			OrderID:     order.OrderID,
			GrossAmount: order.Amount,
		},
		ItemDetails: []itemDetail{{
			ID:       order.ItemID,
			Price:    order.Amount,
			Quantity: 1,
			Name:     truncate(order.ItemName, maxItemNameLength),
		}},
		CustomerDetails: customerDetails{
			FirstName: order.BuyerName,
			Email:     order.BuyerEmail,
		},
	}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func readString(config map[string]any, key string) (string, bool) {
	value, ok := config[key]
	if !ok {
		return "", false
	}
	switch cast := value.(type) {
	case string:
		return cast, true
	default:
		return "", false
	}
}

func readBool(config map[string]any, key string) bool {
	value, ok := config[key]
	if !ok {
		return false
	}
	switch cast := value.(type) {
	case bool:
		return cast
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(cast))
		return err == nil && parsed
	default:
		return false
	}
}
