// Package dispatch sends a compiled newsletter to a mailing list in paced
// batches and settles the send record with final delivery analytics.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/personalize"
	"github.com/ignite/newsletter-engine/internal/pkg/logger"
	"github.com/ignite/newsletter-engine/internal/store"
	"github.com/ignite/newsletter-engine/internal/transport"
)

// FatalError marks a failure that prevented dispatch from starting at all,
// as opposed to batch failures, which are absorbed into the send record.
type FatalError struct {
	Stage string
	Err   error
}

func (e *FatalError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

// Result summarizes a completed dispatch.
type Result struct {
	Status          domain.SendStatus `json:"status"`
	SentCount       int               `json:"sent_count"`
	FailedCount     int               `json:"failed_count"`
	TotalRecipients int               `json:"total_recipients"`
	DeliveryRate    float64           `json:"delivery_rate"`
	BatchID         string            `json:"batch_id"`
	Batches         int               `json:"batches"`
	Errors          []string          `json:"errors,omitempty"`
}

// Dispatcher runs the send pipeline: resolve the audience, personalize the
// compiled document per recipient, deliver in paced batches, and write the
// terminal state back in a single update.
type Dispatcher struct {
	repo         store.Repository
	transport    transport.Transport
	personalizer *personalize.Personalizer
	policies     PolicySet

	// Injection points for tests.
	pause func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewDispatcher creates a dispatcher. Policies are validated by the
// caller at configuration time.
func NewDispatcher(repo store.Repository, tr transport.Transport, p *personalize.Personalizer, policies PolicySet) *Dispatcher {
	return &Dispatcher{
		repo:         repo,
		transport:    tr,
		personalizer: p,
		policies:     policies,
		pause:        sleepContext,
		now:          time.Now,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Dispatch executes the send identified by sendRecordID.
//
// The record is moved to sending before any delivery is attempted. A
// newsletter without compiled HTML is a fatal setup error: the record is
// marked failed and no batch is sent. Once batching starts, a failing
// batch only adds its size to failed_count and a line to the error log;
// later batches still run. The final counts, delivery rate, and terminal
// status land in one repository update.
func (d *Dispatcher) Dispatch(ctx context.Context, sendRecordID string) (*Result, error) {
	rec, list, err := d.repo.GetSendRecordWithAudience(ctx, sendRecordID)
	if err != nil {
		return nil, err
	}

	// Re-dispatch of a settled record is allowed; the terminal outcome
	// below overwrites the earlier one. Worth a log line either way.
	if rec.IsTerminal() {
		logger.Warn("re-dispatching settled send record",
			"send_record_id", rec.ID, "previous_status", string(rec.Status))
	}

	sending := domain.SendSending
	if err := d.repo.UpdateSendRecord(ctx, rec.ID, store.SendRecordUpdate{Status: &sending}); err != nil {
		return nil, &FatalError{Stage: "mark sending", Err: err}
	}

	newsletter, err := d.repo.GetNewsletterWithBlocks(ctx, rec.NewsletterID)
	if err != nil {
		return nil, d.failSetup(ctx, rec.ID, &FatalError{Stage: "load newsletter", Err: err})
	}
	if newsletter.CompiledHTML == "" {
		return nil, d.failSetup(ctx, rec.ID, &FatalError{
			Stage: "load newsletter",
			Err:   fmt.Errorf("newsletter %s has no compiled HTML; compile it first", newsletter.ID),
		})
	}

	audience := EligibleSubscribers(list)
	batchID := fmt.Sprintf("newsletter_%s_%d", newsletter.ID, d.now().UnixMilli())

	subject := newsletter.SubjectLine
	if rec.EffectiveSendType() == domain.SendABVariant && newsletter.ABVariantSubject != "" {
		subject = newsletter.ABVariantSubject
	}

	result := &Result{
		Status:          domain.SendSent,
		TotalRecipients: len(audience),
		BatchID:         batchID,
	}

	if len(audience) == 0 {
		logger.Info("dispatch has no eligible recipients",
			"send_record_id", rec.ID, "mailing_list_id", rec.MailingListID)
		return result, d.settle(ctx, rec, newsletter, result)
	}

	policy := d.policies.For(newsletter.EffectivePriority())
	batches := Partition(audience, policy.BatchSize)
	result.Batches = len(batches)

	logger.Info("dispatch started",
		"send_record_id", rec.ID,
		"newsletter_id", newsletter.ID,
		"recipients", len(audience),
		"batches", len(batches),
		"transport", d.transport.Name())

	for _, batch := range batches {
		messages := d.buildMessages(newsletter, subject, batchID, batch.Subscribers)
		if err := d.transport.SendBatch(ctx, messages); err != nil {
			line := fmt.Sprintf("batch %d/%d failed: %v", batch.Index, batch.Total, err)
			result.FailedCount += len(batch.Subscribers)
			result.Errors = append(result.Errors, line)
			logger.Error("dispatch batch failed",
				"send_record_id", rec.ID, "batch", batch.Index, "error", err.Error())
		} else {
			result.SentCount += len(batch.Subscribers)
		}

		if batch.Index < batch.Total {
			if err := d.pause(ctx, policy.BatchDelay); err != nil {
				remaining := result.TotalRecipients - result.SentCount - result.FailedCount
				result.FailedCount += remaining
				result.Errors = append(result.Errors,
					fmt.Sprintf("dispatch canceled after batch %d/%d: %v", batch.Index, batch.Total, err))
				break
			}
		}
	}

	if result.SentCount > 0 {
		result.Status = domain.SendSent
	} else {
		result.Status = domain.SendFailed
	}
	result.DeliveryRate = float64(result.SentCount) / float64(result.TotalRecipients) * 100

	return result, d.settle(ctx, rec, newsletter, result)
}

func (d *Dispatcher) buildMessages(n *domain.Newsletter, subject, batchID string, subs []domain.Subscriber) []transport.Message {
	messages := make([]transport.Message, len(subs))
	for i, sub := range subs {
		messages[i] = transport.Message{
			NewsletterID: n.ID,
			SubscriberID: sub.ID,
			BatchID:      batchID,
			To:           sub.Email,
			ToName:       sub.DisplayName(),
			Subject:      subject,
			FromName:     n.EffectiveFromName(),
			FromEmail:    n.EffectiveFromEmail(),
			ReplyTo:      n.EffectiveReplyTo(),
			HTML:         d.personalizer.Render(n.CompiledHTML, &sub),
		}
	}
	return messages
}

// settle writes the terminal record state in one update and, on success,
// marks the newsletter itself as sent. The newsletter status write is best
// effort; the send record is the source of truth for the dispatch.
func (d *Dispatcher) settle(ctx context.Context, rec *domain.SendRecord, n *domain.Newsletter, result *Result) error {
	sentAt := d.now().UTC()
	errorLog := strings.Join(result.Errors, "\n")
	update := store.SendRecordUpdate{
		Status:          &result.Status,
		SentCount:       &result.SentCount,
		FailedCount:     &result.FailedCount,
		TotalRecipients: &result.TotalRecipients,
		DeliveryRate:    &result.DeliveryRate,
		BatchID:         &result.BatchID,
		ErrorLog:        &errorLog,
		SentAt:          &sentAt,
	}
	if err := d.repo.UpdateSendRecord(ctx, rec.ID, update); err != nil {
		return &FatalError{Stage: "record results", Err: err}
	}

	if result.Status == domain.SendSent {
		status := domain.NewsletterSent
		if err := d.repo.UpdateNewsletter(ctx, n.ID, store.NewsletterUpdate{Status: &status}); err != nil {
			logger.Warn("newsletter status update failed",
				"newsletter_id", n.ID, "error", err.Error())
		}
	}

	logger.Info("dispatch finished",
		"send_record_id", rec.ID,
		"status", string(result.Status),
		"sent", result.SentCount,
		"failed", result.FailedCount)
	return nil
}

// failSetup marks the record failed after a fatal setup error. The
// original error is returned even if the status write also fails.
func (d *Dispatcher) failSetup(ctx context.Context, recordID string, ferr *FatalError) error {
	failed := domain.SendFailed
	errLog := ferr.Error()
	update := store.SendRecordUpdate{Status: &failed, ErrorLog: &errLog}
	if err := d.repo.UpdateSendRecord(ctx, recordID, update); err != nil {
		logger.Error("failed to mark send record failed",
			"send_record_id", recordID, "error", err.Error())
	}
	return ferr
}
