package notification

import (
	"fmt"
	"net/smtp"
	"strings"

	"visaflow/internal/application/models"
	"visaflow/internal/platform/config"
	"visaflow/pkg/email"
)

// Message is a rendered notification email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Render builds the email for a status change. The tracking link points the
// applicant back at their application.
func Render(payload StatusChangedPayload, baseURL string) Message {
	first, _ := email.DeriveNameFromEmail(payload.Email)
	link := fmt.Sprintf("%s/applications/%s", strings.TrimRight(baseURL, "/"), payload.ApplicationID)

	var subject, action string
	switch models.Status(payload.Status) {
	case models.StatusResubmission, models.StatusAdditionalInfo:
		subject = fmt.Sprintf("Action required on visa application %s", payload.Number)
		action = "Some of your answers need correction. Please review the requested fields and resubmit."
	case models.StatusProcessing:
		subject = fmt.Sprintf("Visa application %s is being processed", payload.Number)
		action = "We received your corrections and your application is back in processing."
	case models.StatusApproved:
		subject = fmt.Sprintf("Visa application %s approved", payload.Number)
		action = "Your application has been approved."
	case models.StatusRejected:
		subject = fmt.Sprintf("Visa application %s rejected", payload.Number)
		action = "Unfortunately your application has been rejected."
	case models.StatusCompleted:
		subject = fmt.Sprintf("Visa application %s completed", payload.Number)
		action = "Your application is complete. No further action is needed."
	default:
		subject = fmt.Sprintf("Visa application %s updated", payload.Number)
		action = fmt.Sprintf("Your application status changed to %s.", payload.Status)
	}

	body := fmt.Sprintf("Hello %s,\n\n%s\n\nTrack your application: %s\n", first, action, link)
	return Message{To: payload.Email, Subject: subject, Body: body}
}

// Mailer sends rendered messages.
type Mailer interface {
	Send(msg Message) error
}

// SMTPMailer sends over plain SMTP.
type SMTPMailer struct {
	addr string
	from string
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		from: cfg.From,
	}
}

func (m *SMTPMailer) Send(msg Message) error {
	data := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.from, msg.To, msg.Subject, msg.Body)
	if err := smtp.SendMail(m.addr, nil, m.from, []string{msg.To}, []byte(data)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
