package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/souldream/billing-service/internal/domain"
)

const verificationSuccess = "SUCCESS"

// verifyRequest запрос проверки подписи вебхука
type verifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

// verifyResponse ответ проверки подписи вебхука
type verifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// VerifyWebhookSignature проверяет подпись вебхука через API PayPal.
// Проверка закрыта по умолчанию: событие считается подлинным только
// при явном вердикте SUCCESS. Отсутствие любого обязательного
// заголовка означает отказ без обращения к сети. Временные сбои
// (сетевые ошибки и 5xx) повторяются ограниченное число раз.
func (c *Client) VerifyWebhookSignature(ctx context.Context, headers domain.WebhookHeaders, body []byte) (bool, error) {
	if !headers.Complete() {
		c.log.Warn("Webhook verification rejected: missing transmission headers")
		return false, nil
	}

	req := verifyRequest{
		AuthAlgo:         headers.AuthAlgo,
		CertURL:          headers.CertURL,
		TransmissionID:   headers.TransmissionID,
		TransmissionSig:  headers.TransmissionSig,
		TransmissionTime: headers.TransmissionTime,
		WebhookID:        c.webhookID,
		WebhookEvent:     json.RawMessage(body),
	}

	var resp verifyResponse
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp = verifyResponse{}
		err := c.doJSON(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", "", req, &resp)
		if err == nil {
			return nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			// Ошибки 4xx не временные, повторять бессмысленно
			return err
		}

		return retry.RetryableError(err)
	})

	if err != nil {
		c.log.Error("Webhook verification call failed: %v", err)
		return false, err
	}

	if resp.VerificationStatus != verificationSuccess {
		c.log.Warn("Webhook verification rejected: status %s, transmission %s",
			resp.VerificationStatus, headers.TransmissionID)
		return false, nil
	}

	return true, nil
}
