package mail

import "context"

// Message is a single outbound email.
type Message struct {
	ToName    string
	ToEmail   string
	Subject   string
	TextBody  string
	HTMLBody  string
	Reference string
}

// Mailer delivers messages to an external provider.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
