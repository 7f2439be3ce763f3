package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/config"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/logger"
	"github.com/Jeffmuturi45/EVENTIFY/pkg/telemetry"
)

const (
	tokenPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	transactionType = "CustomerPayBillOnline"

	// errorCode returned by the status query while the customer has not answered yet
	errCodeStillProcessing = "500.001.1001"

	maxResponseBody = 1 << 20
)

// MPesaConfig holds the STK push client settings
type MPesaConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PassKey        string
	CallbackURL    string
	BaseURL        string
	Timeout        time.Duration
	TokenTTL       time.Duration
	Location       *time.Location
}

// MPesaConfigFrom maps application settings onto the client config
func MPesaConfigFrom(cfg *config.MPesaConfig, loc *time.Location) *MPesaConfig {
	return &MPesaConfig{
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
		ShortCode:      cfg.ShortCode,
		PassKey:        cfg.PassKey,
		CallbackURL:    cfg.CallbackURL,
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout,
		TokenTTL:       cfg.TokenTTL,
		Location:       loc,
	}
}

// Option customizes an MPesaGateway
type Option func(*MPesaGateway)

// WithHTTPClient replaces the instrumented default client
func WithHTTPClient(client *http.Client) Option {
	return func(g *MPesaGateway) { g.httpClient = client }
}

// WithClock replaces time.Now for timestamps
func WithClock(now func() time.Time) Option {
	return func(g *MPesaGateway) { g.now = now }
}

// MPesaGateway implements PaymentGateway against the Daraja STK push API
type MPesaGateway struct {
	cfg        *MPesaConfig
	baseURL    string
	httpClient *http.Client
	tokens     *TokenCache
	now        func() time.Time
	duration   *telemetry.Histogram
	log        *logger.Logger
}

// NewMPesaGateway creates the gateway. store may be nil to keep the token in memory.
func NewMPesaGateway(cfg *MPesaConfig, store TokenStore, opts ...Option) *MPesaGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	g := &MPesaGateway{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now: time.Now,
		log: logger.Get().Component("mpesa"),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.tokens = NewTokenCache(store, g.fetchToken, cfg.TokenTTL)
	g.tokens.fetchTimeout = timeout

	duration, err := telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "gateway_request_duration_seconds",
		Description: "Duration of payment gateway calls",
		Unit:        "s",
	})
	if err != nil {
		g.log.Warn("failed to create gateway duration histogram", zap.Error(err))
	}
	g.duration = duration
	return g
}

// Name returns the gateway name
func (g *MPesaGateway) Name() string {
	return "mpesa"
}

// Tokens exposes the credential cache
func (g *MPesaGateway) Tokens() *TokenCache {
	return g.tokens
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// providerResponse covers both the push and the query answers, including error bodies
type providerResponse struct {
	MerchantRequestID   string     `json:"MerchantRequestID"`
	CheckoutRequestID   string     `json:"CheckoutRequestID"`
	ResponseCode        string     `json:"ResponseCode"`
	ResponseDescription string     `json:"ResponseDescription"`
	CustomerMessage     string     `json:"CustomerMessage"`
	ResultCode          ResultCode `json:"ResultCode"`
	ResultDesc          string     `json:"ResultDesc"`
	ErrorCode           string     `json:"errorCode"`
	ErrorMessage        string     `json:"errorMessage"`
}

func (r *providerResponse) reason() string {
	switch {
	case r.ErrorMessage != "":
		return r.ErrorMessage
	case r.ResponseDescription != "":
		return r.ResponseDescription
	default:
		return r.ResultDesc
	}
}

// InitiatePayment sends an STK push to the customer's phone
func (g *MPesaGateway) InitiatePayment(ctx context.Context, req *InitiateRequest) (*InitiateResponse, error) {
	phone, err := domain.NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Truncate(0)) {
		return nil, rejected(fmt.Sprintf("amount %s must be a positive whole number", req.Amount), 0)
	}

	timestamp, password := g.credentials()
	body := &stkPushRequest{
		BusinessShortCode: g.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   transactionType,
		Amount:            req.Amount.IntPart(),
		PartyA:            phone,
		PartyB:            g.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       g.cfg.CallbackURL,
		AccountReference:  req.AccountReference,
		TransactionDesc:   req.TransactionDesc,
	}

	status, raw, err := g.post(ctx, "initiate", stkPushPath, body)
	if err != nil {
		return nil, err
	}

	var resp providerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		if status >= http.StatusInternalServerError {
			return nil, unavailable(http.StatusText(status), status)
		}
		return nil, unavailable("unreadable provider response", status)
	}

	switch {
	case status >= http.StatusInternalServerError:
		return nil, unavailable(resp.reason(), status)
	case status >= http.StatusBadRequest:
		return nil, rejected(resp.reason(), status)
	case resp.ResponseCode != "0":
		return nil, rejected(resp.reason(), status)
	}

	g.log.InfoContext(ctx, "stk push accepted",
		zap.String("checkout_request_id", resp.CheckoutRequestID),
		zap.String("account_reference", req.AccountReference),
	)
	return &InitiateResponse{
		MerchantRequestID:   resp.MerchantRequestID,
		CheckoutRequestID:   resp.CheckoutRequestID,
		ResponseDescription: resp.ResponseDescription,
		CustomerMessage:     resp.CustomerMessage,
	}, nil
}

// QueryStatus asks for the result of an STK push. A missing ResultCode and the
// provider's "still processing" error both mean pending.
func (g *MPesaGateway) QueryStatus(ctx context.Context, checkoutRequestID string) (*StatusResult, error) {
	timestamp, password := g.credentials()
	body := &stkQueryRequest{
		BusinessShortCode: g.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	status, raw, err := g.post(ctx, "query", stkQueryPath, body)
	if err != nil {
		return nil, err
	}

	var resp providerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		if status >= http.StatusInternalServerError {
			return nil, unavailable(http.StatusText(status), status)
		}
		return nil, unavailable("unreadable provider response", status)
	}

	if resp.ErrorCode == errCodeStillProcessing {
		return &StatusResult{Status: domain.PaymentStatusPending, ResultDesc: resp.ErrorMessage, Raw: raw}, nil
	}
	switch {
	case status >= http.StatusInternalServerError:
		return nil, unavailable(resp.reason(), status)
	case status >= http.StatusBadRequest:
		return nil, rejected(resp.reason(), status)
	}

	result := &StatusResult{
		Status:     domain.PaymentStatusPending,
		ResultCode: resp.ResultCode.Ptr(),
		ResultDesc: resp.ResultDesc,
		Raw:        raw,
	}
	if resp.ResultCode.Set {
		if resp.ResultCode.Value == 0 {
			result.Status = domain.PaymentStatusSuccessful
		} else {
			result.Status = domain.PaymentStatusFailed
		}
	}
	return result, nil
}

// credentials returns the request timestamp and password = base64(shortcode + passkey + timestamp)
func (g *MPesaGateway) credentials() (string, string) {
	timestamp := g.now().In(g.cfg.Location).Format(timestampLayout)
	password := base64.StdEncoding.EncodeToString([]byte(g.cfg.ShortCode + g.cfg.PassKey + timestamp))
	return timestamp, password
}

// post sends an authorized JSON request. A 401 drops the cached token and retries once.
func (g *MPesaGateway) post(ctx context.Context, op, path string, body any) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode %s request: %w", op, err)
	}

	start := time.Now()
	defer func() {
		g.duration.Record(ctx, time.Since(start).Seconds(),
			telemetry.GatewayAttr(g.Name()), telemetry.OperationAttr(op))
	}()

	for attempt := 0; ; attempt++ {
		token, err := g.tokens.AccessToken(ctx)
		if err != nil {
			return 0, nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return 0, nil, fmt.Errorf("failed to create %s request: %w", op, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			g.log.WarnContext(ctx, "gateway request failed", zap.String("operation", op), zap.Error(err))
			return 0, nil, unavailable(err.Error(), 0)
		}
		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		resp.Body.Close()
		if err != nil {
			return 0, nil, unavailable(err.Error(), resp.StatusCode)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			g.tokens.Invalidate(ctx)
			continue
		}
		return resp.StatusCode, raw, nil
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

func (g *MPesaGateway) fetchToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+tokenPath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(g.cfg.ConsumerKey, g.cfg.ConsumerSecret)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", unavailable("access token request failed: "+err.Error(), 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", unavailable("access token request refused", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&tr); err != nil {
		return "", unavailable("unreadable access token response", resp.StatusCode)
	}
	if tr.AccessToken == "" {
		return "", unavailable("empty access token", resp.StatusCode)
	}
	return tr.AccessToken, nil
}

var _ PaymentGateway = (*MPesaGateway)(nil)
