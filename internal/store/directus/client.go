// Package directus implements the content store contract against the
// Directus items REST API. Relations are expanded server-side through the
// fields parameter so each read is a single round trip.
package directus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/store"
)

// Client implements store.Repository against a Directus instance.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a Directus client. token is a static access token with read
// access to the newsletter collections and write access to the compiled
// fields.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) GetNewsletterWithBlocks(ctx context.Context, id string) (*domain.Newsletter, error) {
	var resp struct {
		Data newsletterDTO `json:"data"`
	}
	fields := "*,blocks.*,blocks.block_type.*"
	if err := c.get(ctx, "/items/newsletters/"+url.PathEscape(id), fields, &resp); err != nil {
		return nil, err
	}
	return resp.Data.toDomain(), nil
}

func (c *Client) GetSendRecordWithAudience(ctx context.Context, id string) (*domain.SendRecord, *domain.MailingList, error) {
	var resp struct {
		Data sendRecordDTO `json:"data"`
	}
	fields := "*,mailing_list.*,mailing_list.subscribers.subscribers_id.*"
	if err := c.get(ctx, "/items/newsletter_sends/"+url.PathEscape(id), fields, &resp); err != nil {
		return nil, nil, err
	}
	rec, list := resp.Data.toDomain()
	return rec, list, nil
}

func (c *Client) UpdateBlock(ctx context.Context, id string, u store.BlockUpdate) error {
	body := map[string]any{}
	if u.MJMLOutput != nil {
		body["mjml_output"] = *u.MJMLOutput
	}
	return c.patch(ctx, "/items/newsletter_blocks/"+url.PathEscape(id), body)
}

func (c *Client) UpdateNewsletter(ctx context.Context, id string, u store.NewsletterUpdate) error {
	body := map[string]any{}
	if u.CompiledMJML != nil {
		body["compiled_mjml"] = *u.CompiledMJML
	}
	if u.CompiledHTML != nil {
		body["compiled_html"] = *u.CompiledHTML
	}
	if u.Status != nil {
		body["status"] = string(*u.Status)
	}
	return c.patch(ctx, "/items/newsletters/"+url.PathEscape(id), body)
}

func (c *Client) UpdateSendRecord(ctx context.Context, id string, u store.SendRecordUpdate) error {
	body := map[string]any{}
	if u.Status != nil {
		body["status"] = string(*u.Status)
	}
	if u.SentCount != nil {
		body["sent_count"] = *u.SentCount
	}
	if u.FailedCount != nil {
		body["failed_count"] = *u.FailedCount
	}
	if u.TotalRecipients != nil {
		body["total_recipients"] = *u.TotalRecipients
	}
	if u.DeliveryRate != nil {
		body["delivery_rate"] = *u.DeliveryRate
	}
	if u.BatchID != nil {
		body["batch_id"] = *u.BatchID
	}
	if u.ErrorLog != nil {
		body["error_log"] = *u.ErrorLog
	}
	if u.SentAt != nil {
		body["sent_at"] = u.SentAt.UTC().Format(time.RFC3339)
	}
	return c.patch(ctx, "/items/newsletter_sends/"+url.PathEscape(id), body)
}

func (c *Client) get(ctx context.Context, path, fields string, out any) error {
	u := c.baseURL + path
	if fields != "" {
		u += "?fields=" + url.QueryEscape(fields)
	}
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("directus: create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) patch(ctx context.Context, path string, body map[string]any) error {
	if len(body) == 0 {
		return nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("directus: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "PATCH", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("directus: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("directus: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return store.ErrNotFound
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("directus: %s %s: status %d: %s",
			req.Method, req.URL.Path, resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("directus: decode %s: %w", req.URL.Path, err)
	}
	return nil
}
