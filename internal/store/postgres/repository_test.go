package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/store"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func TestGetNewsletterWithBlocks(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(`FROM newsletters\s+WHERE id = \$1`).
		WithArgs("nl-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "slug", "category", "subject_line", "ab_variant_subject",
			"preview_text", "from_name", "from_email", "reply_to",
			"priority", "status", "compiled_mjml", "compiled_html",
			"created_at", "updated_at",
		}).AddRow(
			"nl-1", "Weekly", "weekly", "news", "This Week", "",
			"peek", "Editors", "editors@example.com", "",
			"normal", "draft", "", "",
			now, now,
		))

	mock.ExpectQuery(`FROM newsletter_blocks b\s+LEFT JOIN block_types t`).
		WithArgs("nl-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "newsletter_id", "sort", "title", "subtitle",
			"text_content", "image_url", "button_text", "button_url",
			"background_color", "text_align", "content", "mjml_output",
			"bt_id", "bt_name", "bt_slug", "bt_description", "bt_template", "bt_status",
		}).AddRow(
			"b-1", "nl-1", 1, "Intro", "",
			"", "", "", "",
			"", "", []byte(`{"legacy_key":"v"}`), "",
			"bt-1", "text", "text", "", "<mj-text>{{ title }}</mj-text>", "published",
		).AddRow(
			"b-2", "nl-1", 2, "", "",
			"read on", "", "", "",
			"", "", nil, "",
			nil, nil, nil, nil, nil, nil,
		))

	n, err := repo.GetNewsletterWithBlocks(context.Background(), "nl-1")
	require.NoError(t, err)

	assert.Equal(t, "Weekly", n.Title)
	assert.Equal(t, domain.NewsletterDraft, n.Status)
	require.Len(t, n.Blocks, 2)

	b1 := n.Blocks[0]
	assert.Equal(t, "Intro", b1.Title)
	assert.Equal(t, map[string]any{"legacy_key": "v"}, b1.Content)
	require.NotNil(t, b1.BlockType)
	assert.Equal(t, "<mj-text>{{ title }}</mj-text>", b1.BlockType.MJMLTemplate)

	// second block has no block type row
	assert.Nil(t, n.Blocks[1].BlockType)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNewsletterNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`FROM newsletters`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetNewsletterWithBlocks(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetSendRecordWithAudience(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(`FROM newsletter_sends s\s+JOIN mailing_lists l`).
		WithArgs("send-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "newsletter_id", "mailing_list_id", "status", "send_type",
			"sent_count", "failed_count", "total_recipients",
			"delivery_rate", "batch_id", "error_log",
			"sent_at", "created_at",
			"l_id", "l_name", "l_description",
		}).AddRow(
			"send-1", "nl-1", "list-1", "draft", "regular",
			0, 0, 0,
			0.0, "", "",
			nil, now,
			"list-1", "All Readers", "",
		))

	mock.ExpectQuery(`FROM subscribers sub\s+JOIN mailing_lists_subscribers mls`).
		WithArgs("list-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "email", "name", "first_name", "status",
			"custom_fields", "engagement_score", "subscribed_at",
		}).AddRow(
			"sub-1", "a@example.com", "Ada", "", "active",
			[]byte(`{"plan":"pro"}`), 7, now,
		).AddRow(
			"sub-2", "b@example.com", "", "Bo", "unsubscribed",
			nil, 0, now,
		))

	rec, list, err := repo.GetSendRecordWithAudience(context.Background(), "send-1")
	require.NoError(t, err)

	assert.Equal(t, domain.SendDraft, rec.Status)
	assert.Nil(t, rec.SentAt)
	assert.Equal(t, "All Readers", list.Name)
	require.Len(t, list.Subscribers, 2)
	assert.Equal(t, map[string]any{"plan": "pro"}, list.Subscribers[0].CustomFields)
	assert.Equal(t, domain.SubscriberUnsubscribed, list.Subscribers[1].Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

// Count and rate columns on a fresh record may be NULL when the schema
// leaves them nullable; the query must coalesce them to zero so a draft
// record reads cleanly before its first dispatch.
func TestGetSendRecordCoalescesNullableColumns(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(`COALESCE\(s.sent_count,0\), COALESCE\(s.failed_count,0\),\s+`+
		`COALESCE\(s.total_recipients,0\), COALESCE\(s.delivery_rate,0\)`).
		WithArgs("send-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "newsletter_id", "mailing_list_id", "status", "send_type",
			"sent_count", "failed_count", "total_recipients",
			"delivery_rate", "batch_id", "error_log",
			"sent_at", "created_at",
			"l_id", "l_name", "l_description",
		}).AddRow(
			"send-1", "nl-1", "list-1", "draft", "regular",
			0, 0, 0,
			0.0, "", "",
			nil, now,
			"list-1", "All Readers", "",
		))

	mock.ExpectQuery(`FROM subscribers sub`).
		WithArgs("list-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "email", "name", "first_name", "status",
			"custom_fields", "engagement_score", "subscribed_at",
		}))

	rec, _, err := repo.GetSendRecordWithAudience(context.Background(), "send-1")
	require.NoError(t, err)
	assert.Zero(t, rec.SentCount)
	assert.Zero(t, rec.TotalRecipients)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateNewsletterPartial(t *testing.T) {
	repo, mock := newMockRepo(t)

	mjml := "<mjml></mjml>"
	html := "<html></html>"
	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE newsletters SET compiled_mjml = $1, compiled_html = $2, updated_at = NOW() WHERE id = $3`,
	)).
		WithArgs(mjml, html, "nl-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateNewsletter(context.Background(), "nl-1", store.NewsletterUpdate{
		CompiledMJML: &mjml,
		CompiledHTML: &html,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSendRecordTerminal(t *testing.T) {
	repo, mock := newMockRepo(t)

	status := domain.SendSent
	sent, failed, total := 95, 5, 100
	rate := 95.0
	batchID := "newsletter_nl-1_1700000000000"
	errLog := "batch 2/2 failed: timeout"
	sentAt := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE newsletter_sends SET status = $1, sent_count = $2, failed_count = $3, `+
			`total_recipients = $4, delivery_rate = $5, batch_id = $6, error_log = $7, `+
			`sent_at = $8 WHERE id = $9`,
	)).
		WithArgs("sent", sent, failed, total, rate, batchID, errLog, sentAt, "send-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateSendRecord(context.Background(), "send-1", store.SendRecordUpdate{
		Status:          &status,
		SentCount:       &sent,
		FailedCount:     &failed,
		TotalRecipients: &total,
		DeliveryRate:    &rate,
		BatchID:         &batchID,
		ErrorLog:        &errLog,
		SentAt:          &sentAt,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBlockNoFieldsIsNoOp(t *testing.T) {
	repo, mock := newMockRepo(t)
	err := repo.UpdateBlock(context.Background(), "b-1", store.BlockUpdate{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingRecord(t *testing.T) {
	repo, mock := newMockRepo(t)

	out := "<mj-text>x</mj-text>"
	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE newsletter_blocks SET mjml_output = $1 WHERE id = $2`,
	)).
		WithArgs(out, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateBlock(context.Background(), "missing", store.BlockUpdate{MJMLOutput: &out})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
