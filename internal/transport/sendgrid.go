package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/newsletter-engine/internal/pkg/logger"
)

const sendgridDefaultBaseURL = "https://api.sendgrid.com/v3"

// SendGridTransport sends mail through the SendGrid v3 API. Each message
// carries its own personalized HTML, so a batch is delivered as a
// sequence of individual /mail/send requests.
type SendGridTransport struct {
	apiKey  string
	baseURL string
	client  *http.Client

	trackOpens  bool
	trackClicks bool
}

// NewSendGridTransport creates a SendGrid transport. baseURL overrides the
// production API endpoint when non-empty (used in tests).
func NewSendGridTransport(apiKey, baseURL string, trackOpens, trackClicks bool) *SendGridTransport {
	if baseURL == "" {
		baseURL = sendgridDefaultBaseURL
	}
	return &SendGridTransport{
		apiKey:      apiKey,
		baseURL:     baseURL,
		client:      &http.Client{Timeout: 30 * time.Second},
		trackOpens:  trackOpens,
		trackClicks: trackClicks,
	}
}

func (s *SendGridTransport) Name() string { return "sendgrid" }

// SendBatch delivers each message in order. The first provider error
// aborts the batch and is returned to the caller.
func (s *SendGridTransport) SendBatch(ctx context.Context, messages []Message) error {
	if s.apiKey == "" {
		return fmt.Errorf("sendgrid: API key not configured")
	}
	for i := range messages {
		if err := s.send(ctx, &messages[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *SendGridTransport) send(ctx context.Context, msg *Message) error {
	to := map[string]string{"email": msg.To}
	if msg.ToName != "" {
		to["name"] = msg.ToName
	}

	payload := map[string]interface{}{
		"personalizations": []map[string]interface{}{{
			"to": []map[string]string{to},
			"custom_args": map[string]string{
				"newsletter_id": msg.NewsletterID,
				"subscriber_id": msg.SubscriberID,
				"batch_id":      msg.BatchID,
			},
		}},
		"from":    map[string]string{"email": msg.FromEmail, "name": msg.FromName},
		"subject": msg.Subject,
		"content": []map[string]string{{"type": "text/html", "value": msg.HTML}},
		"tracking_settings": map[string]interface{}{
			"click_tracking": map[string]bool{"enable": s.trackClicks},
			"open_tracking":  map[string]bool{"enable": s.trackOpens},
		},
	}
	if msg.ReplyTo != "" {
		payload["reply_to"] = map[string]string{"email": msg.ReplyTo}
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sendgrid: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/mail/send", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("sendgrid: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid: send to %s: %w", logger.RedactEmail(msg.To), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sendgrid: API error %d: %s", resp.StatusCode, string(body))
	}

	messageID := resp.Header.Get("X-Message-Id")
	if messageID == "" {
		messageID = uuid.New().String()
	}
	logger.Debug("sendgrid delivered",
		"to", msg.To, "batch_id", msg.BatchID, "message_id", messageID)
	return nil
}
