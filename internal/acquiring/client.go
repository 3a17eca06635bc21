package acquiring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/paybook/internal/signature"
	"go.uber.org/zap"
)

const defaultTimeout = 15 * time.Second

// Config параметры терминала
type Config struct {
	BaseURL     string
	TerminalKey string
	Password    string
	Timeout     time.Duration
}

// Client HTTP-клиент эквайринга с подписью запросов
type Client struct {
	baseURL     string
	terminalKey string
	password    string
	timeout     time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient создаёт клиент шлюза
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		terminalKey: cfg.TerminalKey,
		password:    cfg.Password,
		timeout:     timeout,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// GatewayError отказ шлюза (Success=false)
type GatewayError struct {
	Code    string
	Message string
	Details string
}

func (e *GatewayError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("gateway error %s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("gateway error %s: %s", e.Code, e.Message)
}

// InitRequest параметры открытия платёжной сессии
type InitRequest struct {
	OrderID     string
	Amount      int64
	Description string
	SuccessURL  string
	FailURL     string
	DueDate     time.Time
	Email       string
}

// InitResult ответ шлюза на открытие сессии
type InitResult struct {
	PaymentID  string
	PaymentURL string
	Amount     int64
	Status     Status
}

type initPayload struct {
	TerminalKey     string            `json:"TerminalKey"`
	Amount          int64             `json:"Amount"`
	OrderID         string            `json:"OrderId"`
	Description     string            `json:"Description,omitempty"`
	SuccessURL      string            `json:"SuccessURL,omitempty"`
	FailURL         string            `json:"FailURL,omitempty"`
	RedirectDueDate string            `json:"RedirectDueDate,omitempty"`
	Data            map[string]string `json:"DATA,omitempty"`
	Token           string            `json:"Token"`
}

type getStatePayload struct {
	TerminalKey string `json:"TerminalKey"`
	PaymentID   string `json:"PaymentId"`
	Token       string `json:"Token"`
}

type gatewayResponse struct {
	Success    bool       `json:"Success"`
	ErrorCode  string     `json:"ErrorCode"`
	Message    string     `json:"Message"`
	Details    string     `json:"Details"`
	Status     string     `json:"Status"`
	PaymentID  flexString `json:"PaymentId"`
	OrderID    string     `json:"OrderId"`
	Amount     int64      `json:"Amount"`
	PaymentURL string     `json:"PaymentURL"`
}

// flexString принимает и строку, и число: шлюз отдаёт PaymentId по-разному
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(b)
	return nil
}

// Init открывает платёжную сессию
func (c *Client) Init(ctx context.Context, req InitRequest) (*InitResult, error) {
	payload := initPayload{
		TerminalKey: c.terminalKey,
		Amount:      req.Amount,
		OrderID:     req.OrderID,
		Description: req.Description,
		SuccessURL:  req.SuccessURL,
		FailURL:     req.FailURL,
	}
	if !req.DueDate.IsZero() {
		payload.RedirectDueDate = req.DueDate.Format(time.RFC3339)
	}
	if req.Email != "" {
		payload.Data = map[string]string{"Email": req.Email}
	}

	fields := signature.Fields{
		"TerminalKey": payload.TerminalKey,
		"Amount":      strconv.FormatInt(payload.Amount, 10),
		"OrderId":     payload.OrderID,
	}
	for k, v := range map[string]string{
		"Description":     payload.Description,
		"SuccessURL":      payload.SuccessURL,
		"FailURL":         payload.FailURL,
		"RedirectDueDate": payload.RedirectDueDate,
	} {
		if v != "" {
			fields[k] = v
		}
	}
	payload.Token = signature.Sign(fields, c.password)

	var resp gatewayResponse
	if err := c.post(ctx, "/Init", payload, &resp); err != nil {
		return nil, fmt.Errorf("init payment: %w", err)
	}

	if !resp.Success {
		return nil, &GatewayError{Code: resp.ErrorCode, Message: resp.Message, Details: resp.Details}
	}

	if resp.PaymentID == "" || resp.PaymentURL == "" {
		return nil, fmt.Errorf("init payment: gateway response lacks PaymentId or PaymentURL")
	}

	amount := resp.Amount
	if amount == 0 {
		amount = req.Amount
	}

	c.logger.Debug("Gateway session opened",
		zap.String("order_id", req.OrderID),
		zap.String("status", resp.Status),
	)

	return &InitResult{
		PaymentID:  string(resp.PaymentID),
		PaymentURL: resp.PaymentURL,
		Amount:     amount,
		Status:     Status(resp.Status),
	}, nil
}

// GetState запрашивает текущий статус платежа
func (c *Client) GetState(ctx context.Context, paymentID string) (Status, error) {
	payload := getStatePayload{
		TerminalKey: c.terminalKey,
		PaymentID:   paymentID,
	}
	payload.Token = signature.Sign(signature.Fields{
		"TerminalKey": payload.TerminalKey,
		"PaymentId":   payload.PaymentID,
	}, c.password)

	var resp gatewayResponse
	if err := c.post(ctx, "/GetState", payload, &resp); err != nil {
		return "", fmt.Errorf("get payment state: %w", err)
	}

	if !resp.Success {
		return "", &GatewayError{Code: resp.ErrorCode, Message: resp.Message, Details: resp.Details}
	}

	return Status(resp.Status), nil
}

// VerifyNotification проверяет токен входящего уведомления
func (c *Client) VerifyNotification(n *Notification) bool {
	if n.Fields["TerminalKey"] != "" && n.Fields["TerminalKey"] != c.terminalKey {
		return false
	}
	return signature.Verify(n.Fields, n.Token, c.password)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", res.StatusCode, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
