// Package store defines the data access contract against the backing
// content store. The rest of the engine depends only on this interface;
// the Directus REST client and the direct-SQL implementation live in
// subpackages and are selected by configuration.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/newsletter-engine/internal/domain"
)

// Sentinel errors shared by all repository implementations.
var (
	ErrNotFound = errors.New("record not found")
)

// Repository abstracts the content store. Implementations must be safe for
// concurrent use. Each update call must be applied atomically: a reader
// never observes a partially applied update for a single record.
type Repository interface {
	// GetNewsletterWithBlocks returns the newsletter with its blocks and
	// their block types loaded. Returns ErrNotFound if it doesn't exist.
	GetNewsletterWithBlocks(ctx context.Context, id string) (*domain.Newsletter, error)

	// GetSendRecordWithAudience returns the send record together with its
	// mailing list and the list's subscribers (all statuses; eligibility
	// filtering is the dispatcher's concern).
	GetSendRecordWithAudience(ctx context.Context, id string) (*domain.SendRecord, *domain.MailingList, error)

	// UpdateBlock applies a partial update to a block.
	UpdateBlock(ctx context.Context, id string, u BlockUpdate) error

	// UpdateNewsletter applies a partial update to a newsletter.
	UpdateNewsletter(ctx context.Context, id string, u NewsletterUpdate) error

	// UpdateSendRecord applies a partial update to a send record.
	UpdateSendRecord(ctx context.Context, id string, u SendRecordUpdate) error
}

// BlockUpdate holds the mutable block fields. Nil fields are not applied.
type BlockUpdate struct {
	MJMLOutput *string
}

// NewsletterUpdate holds the mutable newsletter fields. Nil fields are not
// applied. Compiled markup fields always travel together so the cache is
// replaced as a unit, never merged.
type NewsletterUpdate struct {
	CompiledMJML *string
	CompiledHTML *string
	Status       *domain.NewsletterStatus
}

// SendRecordUpdate holds the mutable send record fields. Nil fields are not
// applied. The dispatcher writes terminal counts, rate, and status in a
// single update.
type SendRecordUpdate struct {
	Status          *domain.SendStatus
	SentCount       *int
	FailedCount     *int
	TotalRecipients *int
	DeliveryRate    *float64
	BatchID         *string
	ErrorLog        *string
	SentAt          *time.Time
}
