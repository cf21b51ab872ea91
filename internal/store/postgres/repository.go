// Package postgres implements the content store contract against a
// PostgreSQL database that mirrors the CMS collections.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/store"
)

// Repository implements store.Repository against PostgreSQL.
type Repository struct{ db *sql.DB }

// NewRepository creates a Postgres-backed repository.
func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func (r *Repository) GetNewsletterWithBlocks(ctx context.Context, id string) (*domain.Newsletter, error) {
	n := &domain.Newsletter{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, COALESCE(slug,''), COALESCE(category,''),
		       COALESCE(subject_line,''), COALESCE(ab_variant_subject,''),
		       COALESCE(preview_text,''), COALESCE(from_name,''),
		       COALESCE(from_email,''), COALESCE(reply_to,''),
		       COALESCE(priority,'normal'), status,
		       COALESCE(compiled_mjml,''), COALESCE(compiled_html,''),
		       created_at, updated_at
		FROM newsletters
		WHERE id = $1
	`, id).Scan(
		&n.ID, &n.Title, &n.Slug, &n.Category,
		&n.SubjectLine, &n.ABVariantSubject,
		&n.PreviewText, &n.FromName, &n.FromEmail, &n.ReplyTo,
		&n.Priority, &n.Status,
		&n.CompiledMJML, &n.CompiledHTML,
		&n.CreatedAt, &n.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get newsletter: %w", err)
	}

	blocks, err := r.getBlocks(ctx, id)
	if err != nil {
		return nil, err
	}
	n.Blocks = blocks
	return n, nil
}

func (r *Repository) getBlocks(ctx context.Context, newsletterID string) ([]domain.Block, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.newsletter_id, b.sort,
		       COALESCE(b.title,''), COALESCE(b.subtitle,''),
		       COALESCE(b.text_content,''), COALESCE(b.image_url,''),
		       COALESCE(b.button_text,''), COALESCE(b.button_url,''),
		       COALESCE(b.background_color,''), COALESCE(b.text_align,''),
		       b.content, COALESCE(b.mjml_output,''),
		       t.id, t.name, COALESCE(t.slug,''), COALESCE(t.description,''),
		       COALESCE(t.mjml_template,''), COALESCE(t.status,'')
		FROM newsletter_blocks b
		LEFT JOIN block_types t ON t.id = b.block_type_id
		WHERE b.newsletter_id = $1
		ORDER BY b.sort ASC
	`, newsletterID)
	if err != nil {
		return nil, fmt.Errorf("get blocks: %w", err)
	}
	defer rows.Close()

	var blocks []domain.Block
	for rows.Next() {
		var b domain.Block
		var content []byte
		var btID, btName, btSlug, btDesc, btTemplate, btStatus sql.NullString
		if err := rows.Scan(
			&b.ID, &b.NewsletterID, &b.Sort,
			&b.Title, &b.Subtitle,
			&b.TextContent, &b.ImageURL,
			&b.ButtonText, &b.ButtonURL,
			&b.BackgroundColor, &b.TextAlign,
			&content, &b.MJMLOutput,
			&btID, &btName, &btSlug, &btDesc, &btTemplate, &btStatus,
		); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		if len(content) > 0 {
			if err := json.Unmarshal(content, &b.Content); err != nil {
				return nil, fmt.Errorf("decode block %s content: %w", b.ID, err)
			}
		}
		if btID.Valid {
			b.BlockType = &domain.BlockType{
				ID:           btID.String,
				Name:         btName.String,
				Slug:         btSlug.String,
				Description:  btDesc.String,
				MJMLTemplate: btTemplate.String,
				Status:       btStatus.String,
			}
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

func (r *Repository) GetSendRecordWithAudience(ctx context.Context, id string) (*domain.SendRecord, *domain.MailingList, error) {
	rec := &domain.SendRecord{}
	list := &domain.MailingList{}
	err := r.db.QueryRowContext(ctx, `
		SELECT s.id, s.newsletter_id, s.mailing_list_id, s.status,
		       COALESCE(s.send_type,'regular'),
		       COALESCE(s.sent_count,0), COALESCE(s.failed_count,0),
		       COALESCE(s.total_recipients,0), COALESCE(s.delivery_rate,0),
		       COALESCE(s.batch_id,''), COALESCE(s.error_log,''),
		       s.sent_at, s.created_at,
		       l.id, l.name, COALESCE(l.description,'')
		FROM newsletter_sends s
		JOIN mailing_lists l ON l.id = s.mailing_list_id
		WHERE s.id = $1
	`, id).Scan(
		&rec.ID, &rec.NewsletterID, &rec.MailingListID, &rec.Status,
		&rec.SendType,
		&rec.SentCount, &rec.FailedCount, &rec.TotalRecipients,
		&rec.DeliveryRate, &rec.BatchID, &rec.ErrorLog,
		&rec.SentAt, &rec.CreatedAt,
		&list.ID, &list.Name, &list.Description,
	)
	if err == sql.ErrNoRows {
		return nil, nil, store.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get send record: %w", err)
	}

	subs, err := r.getListSubscribers(ctx, list.ID)
	if err != nil {
		return nil, nil, err
	}
	list.Subscribers = subs
	return rec, list, nil
}

func (r *Repository) getListSubscribers(ctx context.Context, listID string) ([]domain.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sub.id, sub.email, COALESCE(sub.name,''), COALESCE(sub.first_name,''),
		       sub.status, sub.custom_fields, COALESCE(sub.engagement_score,0),
		       sub.subscribed_at
		FROM subscribers sub
		JOIN mailing_lists_subscribers mls ON mls.subscriber_id = sub.id
		WHERE mls.mailing_list_id = $1
		ORDER BY sub.subscribed_at ASC
	`, listID)
	if err != nil {
		return nil, fmt.Errorf("get subscribers: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscriber
	for rows.Next() {
		var s domain.Subscriber
		var custom []byte
		if err := rows.Scan(
			&s.ID, &s.Email, &s.Name, &s.FirstName,
			&s.Status, &custom, &s.EngagementScore,
			&s.SubscribedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		if len(custom) > 0 {
			if err := json.Unmarshal(custom, &s.CustomFields); err != nil {
				return nil, fmt.Errorf("decode subscriber %s custom fields: %w", s.ID, err)
			}
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *Repository) UpdateBlock(ctx context.Context, id string, u store.BlockUpdate) error {
	set, args := buildSet(field{"mjml_output", ptrArg(u.MJMLOutput)})
	if set == "" {
		return nil
	}
	return r.exec(ctx, "update block", `UPDATE newsletter_blocks SET `+set, id, args)
}

func (r *Repository) UpdateNewsletter(ctx context.Context, id string, u store.NewsletterUpdate) error {
	var status any
	if u.Status != nil {
		status = string(*u.Status)
	}
	set, args := buildSet(
		field{"compiled_mjml", ptrArg(u.CompiledMJML)},
		field{"compiled_html", ptrArg(u.CompiledHTML)},
		field{"status", status},
	)
	if set == "" {
		return nil
	}
	return r.exec(ctx, "update newsletter", `UPDATE newsletters SET `+set+`, updated_at = NOW()`, id, args)
}

func (r *Repository) UpdateSendRecord(ctx context.Context, id string, u store.SendRecordUpdate) error {
	var status any
	if u.Status != nil {
		status = string(*u.Status)
	}
	set, args := buildSet(
		field{"status", status},
		field{"sent_count", ptrArg(u.SentCount)},
		field{"failed_count", ptrArg(u.FailedCount)},
		field{"total_recipients", ptrArg(u.TotalRecipients)},
		field{"delivery_rate", ptrArg(u.DeliveryRate)},
		field{"batch_id", ptrArg(u.BatchID)},
		field{"error_log", ptrArg(u.ErrorLog)},
		field{"sent_at", ptrArg(u.SentAt)},
	)
	if set == "" {
		return nil
	}
	return r.exec(ctx, "update send record", `UPDATE newsletter_sends SET `+set, id, args)
}

func (r *Repository) exec(ctx context.Context, op, query string, id string, args []any) error {
	args = append(args, id)
	res, err := r.db.ExecContext(ctx, fmt.Sprintf("%s WHERE id = $%d", query, len(args)), args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type field struct {
	column string
	value  any
}

// ptrArg converts a typed pointer to a nil-or-value any. A nil any means
// the field is not part of the update.
func ptrArg[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// buildSet assembles "col = $n" clauses for the non-nil fields.
func buildSet(fields ...field) (string, []any) {
	var set string
	var args []any
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		if set != "" {
			set += ", "
		}
		args = append(args, f.value)
		set += fmt.Sprintf("%s = $%d", f.column, len(args))
	}
	return set, args
}
