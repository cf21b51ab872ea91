package directus

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/store"
)

func TestGetNewsletterWithBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/items/newsletters/nl-1", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "*,blocks.*,blocks.block_type.*", r.URL.Query().Get("fields"))

		_, _ = w.Write([]byte(`{"data":{
			"id":"nl-1",
			"title":"Weekly",
			"subject_line":"This Week",
			"priority":"urgent",
			"status":"draft",
			"date_created":"2025-05-01T10:00:00Z",
			"blocks":[
				{"id":"b-1","sort":1,"title":"Intro",
				 "block_type":{"id":"bt-1","name":"text","mjml_template":"<mj-text>{{ title }}</mj-text>"}},
				{"id":"b-2","sort":2,"content":{"legacy":"v"},"block_type":null}
			]
		}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	n, err := c.GetNewsletterWithBlocks(context.Background(), "nl-1")
	require.NoError(t, err)

	assert.Equal(t, "Weekly", n.Title)
	assert.Equal(t, domain.PriorityUrgent, n.Priority)
	assert.Equal(t, 2025, n.CreatedAt.Year())
	require.Len(t, n.Blocks, 2)
	require.NotNil(t, n.Blocks[0].BlockType)
	assert.Equal(t, "<mj-text>{{ title }}</mj-text>", n.Blocks[0].BlockType.MJMLTemplate)
	assert.Nil(t, n.Blocks[1].BlockType)
	assert.Equal(t, map[string]any{"legacy": "v"}, n.Blocks[1].Content)
}

func TestGetNewsletterNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	_, err := c.GetNewsletterWithBlocks(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetSendRecordWithAudience(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/items/newsletter_sends/send-1", r.URL.Path)
		assert.Equal(t, "*,mailing_list.*,mailing_list.subscribers.subscribers_id.*",
			r.URL.Query().Get("fields"))

		_, _ = w.Write([]byte(`{"data":{
			"id":"send-1",
			"newsletter":"nl-1",
			"status":"draft",
			"send_type":"ab_variant",
			"sent_at":null,
			"mailing_list":{
				"id":"list-1","name":"All Readers",
				"subscribers":[
					{"subscribers_id":{"id":"sub-1","email":"a@example.com","status":"active","custom_fields":{"plan":"pro"}}},
					{"subscribers_id":null}
				]
			}
		}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	rec, list, err := c.GetSendRecordWithAudience(context.Background(), "send-1")
	require.NoError(t, err)

	assert.Equal(t, "nl-1", rec.NewsletterID)
	assert.Equal(t, "list-1", rec.MailingListID)
	assert.Equal(t, domain.SendABVariant, rec.SendType)
	assert.Nil(t, rec.SentAt)

	require.Len(t, list.Subscribers, 1)
	assert.Equal(t, "a@example.com", list.Subscribers[0].Email)
	assert.Equal(t, map[string]any{"plan": "pro"}, list.Subscribers[0].CustomFields)
}

func TestUpdateSendRecordPatch(t *testing.T) {
	var patched map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PATCH", r.Method)
		assert.Equal(t, "/items/newsletter_sends/send-1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &patched))
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	status := domain.SendSent
	sent := 42
	rate := 100.0
	err := c.UpdateSendRecord(context.Background(), "send-1", store.SendRecordUpdate{
		Status:       &status,
		SentCount:    &sent,
		DeliveryRate: &rate,
	})
	require.NoError(t, err)

	assert.Equal(t, "sent", patched["status"])
	assert.Equal(t, float64(42), patched["sent_count"])
	assert.Equal(t, 100.0, patched["delivery_rate"])
	// fields left nil in the update are not part of the patch
	_, hasErrorLog := patched["error_log"]
	assert.False(t, hasErrorLog)
}

func TestUpdateNewsletterEmptyUpdateSkipsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected for an empty update")
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	err := c.UpdateNewsletter(context.Background(), "nl-1", store.NewsletterUpdate{})
	require.NoError(t, err)
}

func TestServerErrorIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errors":[{"message":"permission denied"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	_, err := c.GetNewsletterWithBlocks(context.Background(), "nl-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "permission denied")
}
