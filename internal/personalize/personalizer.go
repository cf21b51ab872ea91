package personalize

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ignite/newsletter-engine/internal/domain"
)

// Personalizer substitutes recipient tokens into rendered documents.
// Substitution is purely textual and replaces every occurrence of each
// token, so a placeholder may appear any number of times.
type Personalizer struct {
	siteURL string
	secret  string
}

// New creates a personalizer. siteURL is the public base for unsubscribe
// and preferences links; secret keys the recipient token derivation.
func New(siteURL, secret string) *Personalizer {
	return &Personalizer{siteURL: strings.TrimRight(siteURL, "/"), secret: secret}
}

// UnsubscribeURL builds the stable unsubscribe link for a subscriber.
func (p *Personalizer) UnsubscribeURL(email string) string {
	return fmt.Sprintf("%s/unsubscribe?email=%s&token=%s",
		p.siteURL, url.QueryEscape(email), Token(email, p.secret))
}

// PreferencesURL builds the stable preferences link for a subscriber.
func (p *Personalizer) PreferencesURL(email string) string {
	return fmt.Sprintf("%s/email-preferences?email=%s&token=%s",
		p.siteURL, url.QueryEscape(email), Token(email, p.secret))
}

// Render resolves all recipient tokens in the document for one subscriber:
// the unsubscribe/preferences links, the display name (never empty; a
// generic recipient label is the fallback), the email address, and one
// custom_<key> token per subscriber custom field.
func (p *Personalizer) Render(document string, sub *domain.Subscriber) string {
	pairs := []string{
		"{{unsubscribe_url}}", p.UnsubscribeURL(sub.Email),
		"{{preferences_url}}", p.PreferencesURL(sub.Email),
		"{{subscriber_name}}", sub.DisplayName(),
		"{{subscriber_email}}", sub.Email,
	}
	for k, v := range sub.CustomFields {
		pairs = append(pairs, "{{custom_"+k+"}}", fmt.Sprintf("%v", v))
	}
	return strings.NewReplacer(pairs...).Replace(document)
}
