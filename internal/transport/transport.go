// Package transport delivers fully personalized messages to an email
// service provider. Implementations treat a batch as a unit: a returned
// error means no message in the batch should be counted as delivered.
package transport

import "context"

// Message is a single ready-to-send email. HTML is already personalized
// for the recipient.
type Message struct {
	NewsletterID string
	SubscriberID string
	BatchID      string

	To        string
	ToName    string
	Subject   string
	FromName  string
	FromEmail string
	ReplyTo   string

	HTML string
}

// Transport sends batches of messages through a provider.
type Transport interface {
	// Name identifies the provider in logs and error messages.
	Name() string

	// SendBatch delivers all messages in the batch. An error indicates
	// the batch as a whole failed.
	SendBatch(ctx context.Context, messages []Message) error
}
