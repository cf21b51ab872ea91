package domain

import "time"

// NewsletterStatus enumerates the lifecycle states of a newsletter.
type NewsletterStatus string

const (
	NewsletterDraft NewsletterStatus = "draft"
	NewsletterReady NewsletterStatus = "ready"
	NewsletterSent  NewsletterStatus = "sent"
)

// Priority selects the pacing policy applied when a newsletter is dispatched.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// Newsletter is one composable email document built from ordered content
// blocks. The compiled markup pair is a cache shared by every recipient of a
// send; recompiling always overwrites it.
type Newsletter struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Slug             string           `json:"slug"`
	Category         string           `json:"category"`
	SubjectLine      string           `json:"subject_line"`
	ABVariantSubject string           `json:"ab_variant_subject,omitempty"`
	PreviewText      string           `json:"preview_text"`
	FromName         string           `json:"from_name"`
	FromEmail        string           `json:"from_email"`
	ReplyTo          string           `json:"reply_to"`
	Priority         Priority         `json:"priority"`
	Status           NewsletterStatus `json:"status"`
	CompiledMJML     string           `json:"compiled_mjml"`
	CompiledHTML     string           `json:"compiled_html"`
	Blocks           []Block          `json:"blocks,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// EffectiveFromEmail returns the sender address, falling back to the
// platform default when the newsletter leaves it unset.
func (n *Newsletter) EffectiveFromEmail() string {
	if n.FromEmail != "" {
		return n.FromEmail
	}
	return "newsletter@example.com"
}

// EffectiveFromName returns the sender display name with its default.
func (n *Newsletter) EffectiveFromName() string {
	if n.FromName != "" {
		return n.FromName
	}
	return "Newsletter"
}

// EffectiveReplyTo returns the reply-to address, falling back to the
// effective from address.
func (n *Newsletter) EffectiveReplyTo() string {
	if n.ReplyTo != "" {
		return n.ReplyTo
	}
	return n.EffectiveFromEmail()
}

// EffectivePriority normalizes an unset priority to normal.
func (n *Newsletter) EffectivePriority() Priority {
	if n.Priority == PriorityUrgent {
		return PriorityUrgent
	}
	return PriorityNormal
}

// BlockType is a named, reusable markup template plus display metadata.
// The template contains liquid placeholders and conditional sections that
// are resolved against a block's content fields at compile time.
type BlockType struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Description  string `json:"description"`
	MJMLTemplate string `json:"mjml_template"`
	Status       string `json:"status"`
}

// Block is one ordered content unit within a newsletter. Typed fields are
// the primary content source; the legacy Content map is consulted only when
// a typed field is empty.
type Block struct {
	ID           string     `json:"id"`
	NewsletterID string     `json:"newsletter_id"`
	Sort         int        `json:"sort"`
	BlockType    *BlockType `json:"block_type,omitempty"`

	Title           string `json:"title"`
	Subtitle        string `json:"subtitle"`
	TextContent     string `json:"text_content"`
	ImageURL        string `json:"image_url"`
	ButtonText      string `json:"button_text"`
	ButtonURL       string `json:"button_url"`
	BackgroundColor string `json:"background_color"`
	TextAlign       string `json:"text_align"`

	// Content is the legacy free-form map kept for blocks created before
	// typed fields existed. Fallback source only.
	Content map[string]any `json:"content,omitempty"`

	// MJMLOutput is the compiled fragment persisted after the last compile.
	MJMLOutput string `json:"mjml_output,omitempty"`
}

// HasTemplate reports whether the block references a usable template.
func (b *Block) HasTemplate() bool {
	return b.BlockType != nil && b.BlockType.MJMLTemplate != ""
}
