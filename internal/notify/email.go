// Package notify delivers end-of-processing notifications to the user
// who submitted a restaurant. Delivery is best effort; the job lifecycle
// never depends on a notification succeeding.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/menupix/menupix-backend/internal/config"
	"github.com/menupix/menupix-backend/internal/domain"
)

// EmailNotifier sends a summary email through SendGrid once every job of a
// request has reached a terminal status. With no API key configured it
// degrades to a no-op so local and test runs need no external account.
type EmailNotifier struct {
	apiKey    string
	fromName  string
	fromEmail string
}

func NewEmailNotifier(cfg config.NotifyConfig) *EmailNotifier {
	return &EmailNotifier{
		apiKey:    cfg.SendGridAPIKey,
		fromName:  cfg.FromName,
		fromEmail: cfg.FromEmail,
	}
}

// RequestFinished emails the requester with the final completed/failed
// breakdown. Delivery failures are logged, never surfaced: the job
// transition that triggered the notification has already committed.
func (n *EmailNotifier) RequestFinished(ctx context.Context, req *domain.ProcessingRequest, completed, failed int) {
	if n.apiKey == "" {
		log.Ctx(ctx).Debug().Str("request_id", req.ID).Msg("email notifications disabled, skipping")
		return
	}
	if req.UserEmail == "" {
		return
	}

	subject := "Your menu images are ready"
	if completed == 0 {
		subject = "Your menu image processing finished with errors"
	}

	text := fmt.Sprintf(
		"Processing for your restaurant has finished.\n\nImages processed: %d\nImages failed: %d\n\nRequest reference: %s\n",
		completed, failed, req.ID,
	)
	html := fmt.Sprintf(
		"<p>Processing for your restaurant has finished.</p><ul><li>Images processed: %d</li><li>Images failed: %d</li></ul><p>Request reference: <code>%s</code></p>",
		completed, failed, req.ID,
	)

	from := mail.NewEmail(n.fromName, n.fromEmail)
	to := mail.NewEmail("", req.UserEmail)
	msg := mail.NewSingleEmail(from, subject, to, text, html)

	client := sendgrid.NewSendClient(n.apiKey)
	resp, err := client.Send(msg)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("request_id", req.ID).Msg("completion email send failed")
		return
	}
	if resp.StatusCode >= 400 {
		log.Ctx(ctx).Error().
			Str("request_id", req.ID).
			Int("status", resp.StatusCode).
			Msg("completion email rejected by provider")
		return
	}

	log.Ctx(ctx).Info().
		Str("request_id", req.ID).
		Str("to", req.UserEmail).
		Int("status", resp.StatusCode).
		Msg("completion email sent")
}
