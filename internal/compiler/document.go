package compiler

import (
	"fmt"
	"strings"
	"time"

	"github.com/ignite/newsletter-engine/internal/domain"
)

func currentYear() int { return time.Now().Year() }

// headerSection is the fixed brand header. The logo is served from the
// configured site/asset base URL.
func headerSection(assetBaseURL string) string {
	return fmt.Sprintf(`
    <mj-section background-color="#ffffff" padding="20px 0">
      <mj-column>
        <mj-image src="%s/assets/logo.png" alt="Newsletter" width="200px" align="center"></mj-image>
      </mj-column>
    </mj-section>`, strings.TrimRight(assetBaseURL, "/"))
}

// footerSection is the fixed footer. The unsubscribe and preferences tokens
// stay unresolved here; they are substituted per recipient at dispatch time
// so the cached document is identical for every subscriber.
func footerSection(year int) string {
	return fmt.Sprintf(`
    <mj-section background-color="#f8f9fa" padding="40px 20px">
      <mj-column>
        <mj-text align="center" font-size="12px" color="#666666">
          <p>You received this email because you subscribed to our newsletter.</p>
          <p>
            <a href="{{unsubscribe_url}}" style="color: #666666; text-decoration: underline;">Unsubscribe</a> |
            <a href="{{preferences_url}}" style="color: #666666; text-decoration: underline;">Update Preferences</a>
          </p>
          <p>&#169; %d Newsletter. All rights reserved.</p>
        </mj-text>
      </mj-column>
    </mj-section>`, year)
}

// assembleDocument wraps the compiled fragments in the complete document:
// brand header, block fragments in order, fixed footer. Document-level
// metadata lives at the root: title from the subject line, preview text,
// and shared typographic attributes.
func assembleDocument(n *domain.Newsletter, fragments []string, assetBaseURL string, year int) string {
	var b strings.Builder

	b.WriteString("<mjml>\n  <mj-head>\n")
	fmt.Fprintf(&b, "    <mj-title>%s</mj-title>\n", n.SubjectLine)
	fmt.Fprintf(&b, "    <mj-preview>%s</mj-preview>\n", n.PreviewText)
	b.WriteString(`    <mj-attributes>
      <mj-all font-family="Arial, sans-serif"></mj-all>
      <mj-text font-size="14px" color="#333333" line-height="1.6"></mj-text>
      <mj-section background-color="#ffffff"></mj-section>
    </mj-attributes>
`)
	b.WriteString("  </mj-head>\n  <mj-body>")
	b.WriteString(headerSection(assetBaseURL))
	for _, f := range fragments {
		b.WriteString("\n")
		b.WriteString(f)
	}
	b.WriteString(footerSection(year))
	b.WriteString("\n  </mj-body>\n</mjml>")

	return b.String()
}
