package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

// EmailSink sends notifications through SendGrid.
type EmailSink struct {
	apiKey   string
	from     *mail.Email
	to       *mail.Email
	endpoint string
}

// NewEmailSink builds a SendGrid sink delivering from -> to.
func NewEmailSink(apiKey, from, to string) *EmailSink {
	return &EmailSink{
		apiKey: apiKey,
		from:   mail.NewEmail("Helpdesk", from),
		to:     mail.NewEmail("", to),
	}
}

// Send mails n. A client is built per call because the SendGrid client
// carries the request body.
func (s *EmailSink) Send(ctx context.Context, n Notification) error {
	subject := n.Title
	if n.TicketNumber != "" {
		subject = fmt.Sprintf("[%s] %s", n.TicketNumber, n.Title)
	}
	message := mail.NewSingleEmail(s.from, subject, s.to, n.Message, "")

	client := sendgrid.NewSendClient(s.apiKey)
	if s.endpoint != "" {
		client.BaseURL = s.endpoint
	}
	resp, err := client.SendWithContext(ctx, message)
	if err != nil {
		return apperrors.NewNotificationDeliveryError("email", err)
	}
	if resp.StatusCode >= 300 {
		return apperrors.NewNotificationDeliveryError("email",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, resp.Body))
	}
	return nil
}
