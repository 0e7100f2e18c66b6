package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"
)

// WebhookDelivery 透過 HTTP POST 將通知送往外部遞送服務，
// 使用 OAuth2 client credentials 向遞送服務取得存取憑證。
type WebhookDelivery struct {
	endpoint string
	client   *http.Client
}

func NewWebhookDelivery(ctx context.Context, endpoint, tokenURL, clientID, clientSecret string) *WebhookDelivery {
	config := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	return &WebhookDelivery{
		endpoint: endpoint,
		client:   config.Client(ctx),
	}
}

func (w *WebhookDelivery) Deliver(ctx context.Context, notification Notification) error {
	const op = "WebhookDelivery.Deliver"
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("[%s] Fail to marshal notification, err=%w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("[%s] Fail to build request, err=%w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("[%s] Fail to send request, err=%w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("[%s] Request failed with status code=%d", op, resp.StatusCode)
	}
	return nil
}
