package domain

import "time"

// SendStatus enumerates the lifecycle of one send attempt.
// Transitions: draft → sending → (sent | failed).
type SendStatus string

const (
	SendDraft   SendStatus = "draft"
	SendSending SendStatus = "sending"
	SendSent    SendStatus = "sent"
	SendFailed  SendStatus = "failed"
)

// SendType tags whether a dispatch used the regular subject line or the
// A/B variant.
type SendType string

const (
	SendRegular   SendType = "regular"
	SendABVariant SendType = "ab_variant"
)

// SendRecord tracks one dispatch attempt of a newsletter to a mailing list,
// including its lifecycle status and delivery analytics.
//
// Invariant: SentCount + FailedCount never exceeds TotalRecipients.
type SendRecord struct {
	ID            string     `json:"id"`
	NewsletterID  string     `json:"newsletter_id"`
	MailingListID string     `json:"mailing_list_id"`
	Status        SendStatus `json:"status"`
	SendType      SendType   `json:"send_type"`

	SentCount       int     `json:"sent_count"`
	FailedCount     int     `json:"failed_count"`
	TotalRecipients int     `json:"total_recipients"`
	DeliveryRate    float64 `json:"delivery_rate"`

	// BatchID correlates the dispatch with the transport's own analytics.
	BatchID string `json:"batch_id,omitempty"`

	// ErrorLog holds newline-joined batch error messages.
	ErrorLog string `json:"error_log,omitempty"`

	SentAt    *time.Time `json:"sent_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsTerminal reports whether the record reached a final state.
func (r *SendRecord) IsTerminal() bool {
	return r.Status == SendSent || r.Status == SendFailed
}

// EffectiveSendType normalizes an unset send type to regular.
func (r *SendRecord) EffectiveSendType() SendType {
	if r.SendType == SendABVariant {
		return SendABVariant
	}
	return SendRegular
}
