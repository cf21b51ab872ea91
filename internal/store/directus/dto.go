package directus

import (
	"time"

	"github.com/ignite/newsletter-engine/internal/domain"
)

// Directus serializes timestamps as RFC 3339; missing values arrive as null.
type dtoTime struct {
	time.Time
}

func (t *dtoTime) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		t.Time = time.Time{}
		return nil
	}
	return t.Time.UnmarshalJSON(data)
}

type newsletterDTO struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Slug             string     `json:"slug"`
	Category         string     `json:"category"`
	SubjectLine      string     `json:"subject_line"`
	ABVariantSubject string     `json:"ab_variant_subject"`
	PreviewText      string     `json:"preview_text"`
	FromName         string     `json:"from_name"`
	FromEmail        string     `json:"from_email"`
	ReplyTo          string     `json:"reply_to"`
	Priority         string     `json:"priority"`
	Status           string     `json:"status"`
	CompiledMJML     string     `json:"compiled_mjml"`
	CompiledHTML     string     `json:"compiled_html"`
	Blocks           []blockDTO `json:"blocks"`
	DateCreated      dtoTime    `json:"date_created"`
	DateUpdated      dtoTime    `json:"date_updated"`
}

func (d *newsletterDTO) toDomain() *domain.Newsletter {
	n := &domain.Newsletter{
		ID:               d.ID,
		Title:            d.Title,
		Slug:             d.Slug,
		Category:         d.Category,
		SubjectLine:      d.SubjectLine,
		ABVariantSubject: d.ABVariantSubject,
		PreviewText:      d.PreviewText,
		FromName:         d.FromName,
		FromEmail:        d.FromEmail,
		ReplyTo:          d.ReplyTo,
		Priority:         domain.Priority(d.Priority),
		Status:           domain.NewsletterStatus(d.Status),
		CompiledMJML:     d.CompiledMJML,
		CompiledHTML:     d.CompiledHTML,
		CreatedAt:        d.DateCreated.Time,
		UpdatedAt:        d.DateUpdated.Time,
	}
	for i := range d.Blocks {
		n.Blocks = append(n.Blocks, d.Blocks[i].toDomain())
	}
	return n
}

type blockDTO struct {
	ID              string         `json:"id"`
	Newsletter      string         `json:"newsletter"`
	Sort            int            `json:"sort"`
	BlockType       *blockTypeDTO  `json:"block_type"`
	Title           string         `json:"title"`
	Subtitle        string         `json:"subtitle"`
	TextContent     string         `json:"text_content"`
	ImageURL        string         `json:"image_url"`
	ButtonText      string         `json:"button_text"`
	ButtonURL       string         `json:"button_url"`
	BackgroundColor string         `json:"background_color"`
	TextAlign       string         `json:"text_align"`
	Content         map[string]any `json:"content"`
	MJMLOutput      string         `json:"mjml_output"`
}

func (d *blockDTO) toDomain() domain.Block {
	b := domain.Block{
		ID:              d.ID,
		NewsletterID:    d.Newsletter,
		Sort:            d.Sort,
		Title:           d.Title,
		Subtitle:        d.Subtitle,
		TextContent:     d.TextContent,
		ImageURL:        d.ImageURL,
		ButtonText:      d.ButtonText,
		ButtonURL:       d.ButtonURL,
		BackgroundColor: d.BackgroundColor,
		TextAlign:       d.TextAlign,
		Content:         d.Content,
		MJMLOutput:      d.MJMLOutput,
	}
	if d.BlockType != nil {
		b.BlockType = &domain.BlockType{
			ID:           d.BlockType.ID,
			Name:         d.BlockType.Name,
			Slug:         d.BlockType.Slug,
			Description:  d.BlockType.Description,
			MJMLTemplate: d.BlockType.MJMLTemplate,
			Status:       d.BlockType.Status,
		}
	}
	return b
}

type blockTypeDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Description  string `json:"description"`
	MJMLTemplate string `json:"mjml_template"`
	Status       string `json:"status"`
}

type sendRecordDTO struct {
	ID              string          `json:"id"`
	Newsletter      string          `json:"newsletter"`
	MailingList     *mailingListDTO `json:"mailing_list"`
	Status          string          `json:"status"`
	SendType        string          `json:"send_type"`
	SentCount       int             `json:"sent_count"`
	FailedCount     int             `json:"failed_count"`
	TotalRecipients int             `json:"total_recipients"`
	DeliveryRate    float64         `json:"delivery_rate"`
	BatchID         string          `json:"batch_id"`
	ErrorLog        string          `json:"error_log"`
	SentAt          dtoTime         `json:"sent_at"`
	DateCreated     dtoTime         `json:"date_created"`
}

func (d *sendRecordDTO) toDomain() (*domain.SendRecord, *domain.MailingList) {
	rec := &domain.SendRecord{
		ID:              d.ID,
		NewsletterID:    d.Newsletter,
		Status:          domain.SendStatus(d.Status),
		SendType:        domain.SendType(d.SendType),
		SentCount:       d.SentCount,
		FailedCount:     d.FailedCount,
		TotalRecipients: d.TotalRecipients,
		DeliveryRate:    d.DeliveryRate,
		BatchID:         d.BatchID,
		ErrorLog:        d.ErrorLog,
		CreatedAt:       d.DateCreated.Time,
	}
	if !d.SentAt.IsZero() {
		t := d.SentAt.Time
		rec.SentAt = &t
	}

	var list *domain.MailingList
	if d.MailingList != nil {
		rec.MailingListID = d.MailingList.ID
		list = d.MailingList.toDomain()
	}
	return rec, list
}

type mailingListDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// Subscribers is a many-to-many relation; each entry is a junction row
	// with the expanded subscriber under subscribers_id.
	Subscribers []struct {
		Subscriber *subscriberDTO `json:"subscribers_id"`
	} `json:"subscribers"`
}

func (d *mailingListDTO) toDomain() *domain.MailingList {
	list := &domain.MailingList{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
	}
	for _, row := range d.Subscribers {
		if row.Subscriber == nil {
			continue
		}
		list.Subscribers = append(list.Subscribers, row.Subscriber.toDomain())
	}
	return list
}

type subscriberDTO struct {
	ID              string         `json:"id"`
	Email           string         `json:"email"`
	Name            string         `json:"name"`
	FirstName       string         `json:"first_name"`
	Status          string         `json:"status"`
	CustomFields    map[string]any `json:"custom_fields"`
	EngagementScore int            `json:"engagement_score"`
	SubscribedAt    dtoTime        `json:"subscribed_at"`
}

func (d *subscriberDTO) toDomain() domain.Subscriber {
	return domain.Subscriber{
		ID:              d.ID,
		Email:           d.Email,
		Name:            d.Name,
		FirstName:       d.FirstName,
		Status:          domain.SubscriberStatus(d.Status),
		CustomFields:    d.CustomFields,
		EngagementScore: d.EngagementScore,
		SubscribedAt:    d.SubscribedAt.Time,
	}
}
