package compiler

import (
	"regexp"

	"github.com/ignite/newsletter-engine/internal/domain"
)

// Built-in defaults applied when neither the typed field nor the legacy
// content map provides a value.
const (
	defaultBackgroundColor = "#ffffff"
	defaultTextAlign       = "center"
)

// personalizationTokens are resolved per recipient at dispatch time, not at
// compile time. The compiler re-emits them literally so the cached document
// still carries them for the personalization engine.
var personalizationTokens = []string{
	"subscriber_name",
	"subscriber_email",
	"unsubscribe_url",
	"preferences_url",
}

// customTokenPattern matches recipient custom-field placeholders written in
// block templates. Their values live on the subscriber, not the block, so
// they are unknown at compile time.
var customTokenPattern = regexp.MustCompile(`\{\{\s*(custom_[A-Za-z0-9_]+)\s*\}\}`)

// resolveFields builds the template context for one block.
//
// Precedence per field: typed field → legacy content map → built-in default.
// Every known field is present in the result, empty string at worst, so a
// placeholder never renders a nil marker. Extra keys in the legacy map are
// carried through for templates that still reference them.
func resolveFields(b *domain.Block, templateStr string) map[string]any {
	fields := make(map[string]any, len(b.Content)+12)

	// Legacy map first so typed fields override key collisions.
	for k, v := range b.Content {
		fields[k] = v
	}

	setResolved(fields, "title", b.Title, "")
	setResolved(fields, "subtitle", b.Subtitle, "")
	setResolved(fields, "text_content", b.TextContent, "")
	setResolved(fields, "image_url", b.ImageURL, "")
	setResolved(fields, "button_text", b.ButtonText, "")
	setResolved(fields, "button_url", b.ButtonURL, "")
	setResolved(fields, "background_color", b.BackgroundColor, defaultBackgroundColor)
	setResolved(fields, "text_align", b.TextAlign, defaultTextAlign)

	// Recipient tokens pass through untouched unless the block explicitly
	// provides a value for one of them. Custom-field tokens referenced by
	// the template get the same treatment.
	for _, tok := range personalizationTokens {
		if _, ok := fields[tok]; !ok {
			fields[tok] = "{{" + tok + "}}"
		}
	}
	for _, m := range customTokenPattern.FindAllStringSubmatch(templateStr, -1) {
		if _, ok := fields[m[1]]; !ok {
			fields[m[1]] = "{{" + m[1] + "}}"
		}
	}

	return fields
}

// setResolved applies the precedence rule for one typed field.
func setResolved(fields map[string]any, key, typed, fallback string) {
	if typed != "" {
		fields[key] = typed
		return
	}
	if legacy, ok := fields[key]; ok && legacy != nil && legacy != "" {
		return // keep the legacy value
	}
	fields[key] = fallback
}
