package dispatch

import (
	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/pkg/logger"
)

// EligibleSubscribers filters a mailing list down to the recipients a
// send may address: active subscribers with a usable email address.
// Unsubscribed and bounced members are silently skipped; a missing email
// on an active member is logged since it indicates bad data upstream.
func EligibleSubscribers(list *domain.MailingList) []domain.Subscriber {
	if list == nil {
		return nil
	}
	eligible := make([]domain.Subscriber, 0, len(list.Subscribers))
	for _, sub := range list.Subscribers {
		if !sub.IsActive() {
			continue
		}
		if sub.Email == "" {
			logger.Warn("active subscriber without email skipped",
				"subscriber_id", sub.ID, "mailing_list_id", list.ID)
			continue
		}
		eligible = append(eligible, sub)
	}
	return eligible
}
