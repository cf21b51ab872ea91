package domain

import "time"

// SubscriberStatus enumerates the states a subscriber can be in.
type SubscriberStatus string

const (
	SubscriberActive       SubscriberStatus = "active"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
	SubscriberBounced      SubscriberStatus = "bounced"
)

// Subscriber is a single email recipient. Only active subscribers
// participate in a send.
type Subscriber struct {
	ID              string           `json:"id"`
	Email           string           `json:"email"`
	Name            string           `json:"name"`
	FirstName       string           `json:"first_name"`
	Status          SubscriberStatus `json:"status"`
	CustomFields    map[string]any   `json:"custom_fields,omitempty"`
	EngagementScore int              `json:"engagement_score"`
	SubscribedAt    time.Time        `json:"subscribed_at"`
}

// IsActive reports whether the subscriber is eligible for a send.
func (s *Subscriber) IsActive() bool {
	return s.Status == SubscriberActive
}

// DisplayName returns the best available name for personalization.
// It never returns the empty string; the generic recipient label is the
// final fallback so a name token always resolves to something readable.
func (s *Subscriber) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.FirstName != "" {
		return s.FirstName
	}
	return "Subscriber"
}

// MailingList is a named group of subscribers (many-to-many through a
// junction in the content store).
type MailingList struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Subscribers []Subscriber `json:"subscribers,omitempty"`
}
