package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/souldream/billing-service/pkg/logger"
)

const (
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"
)

// Client представляет клиент для работы с REST API PayPal.
// Токен доступа получается по client credentials и кешируется
// токен-сорсом oauth2 до истечения срока действия.
type Client struct {
	baseURL    string
	webhookID  string
	brandName  string
	httpClient *http.Client
	log        *logger.Logger
}

// Config конфигурация для клиента PayPal
type Config struct {
	ClientID     string
	ClientSecret string
	WebhookID    string
	BrandName    string
	Live         bool

	// HTTPClient базовый транспорт без авторизации.
	// Если nil, используется клиент с таймаутом по умолчанию.
	HTTPClient *http.Client
}

// NewClient создает новый клиент PayPal
func NewClient(cfg Config, log *logger.Logger) *Client {
	baseURL := sandboxBaseURL
	if cfg.Live {
		baseURL = liveBaseURL
	}

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	// Транспорт oauth2 сам запрашивает и обновляет токен,
	// повторно используя его до истечения срока действия.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	return &Client{
		baseURL:    baseURL,
		webhookID:  cfg.WebhookID,
		brandName:  cfg.BrandName,
		httpClient: creds.Client(ctx),
		log:        log,
	}
}

// GetBaseURL возвращает базовый URL API PayPal
func (c *Client) GetBaseURL() string {
	return c.baseURL
}

// GetWebhookID возвращает идентификатор вебхука PayPal
func (c *Client) GetWebhookID() string {
	return c.webhookID
}

// doJSON выполняет JSON-запрос к API PayPal.
// requestID, если не пуст, отправляется в заголовке PayPal-Request-Id
// и делает запрос идемпотентным на стороне провайдера.
func (c *Client) doJSON(ctx context.Context, method, path, requestID string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call PayPal API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read PayPal response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		var errResp errorResponse
		if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr == nil {
			apiErr.Code = errResp.Name
			apiErr.Message = errResp.Message
		}
		c.log.Warn("PayPal API error: %s %s -> %d %s", method, path, resp.StatusCode, apiErr.Code)
		return apiErr
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode PayPal response: %w", err)
		}
	}

	return nil
}
