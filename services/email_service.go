// services/email_service.go
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"safegate/models"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
)

const alertEmailTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background: #f5f5f5; padding: 20px;">
  <div style="max-width: 600px; margin: 0 auto; background: #ffffff; border-radius: 8px; overflow: hidden;">
    <div style="background: #e74c3c; color: #ffffff; padding: 20px;">
      <h2 style="margin: 0;">🚨 {{.TypeName}}</h2>
      <p style="margin: 4px 0 0;">Priority: {{.Priority}}</p>
    </div>
    <div style="padding: 20px;">
      <p><strong>Location:</strong> <a href="{{.MapLink}}">View on map</a></p>
      {{if .Address}}<p><strong>Address:</strong> {{.Address}}</p>{{end}}
      <p><strong>Description:</strong> {{.Description}}</p>
      <p><strong>Reported by:</strong> {{.Reporter.Name}} ({{.Reporter.Email}})</p>
      <p><strong>Time:</strong> {{.Timestamp}}</p>
      <p style="color: #7f8c8d; font-size: 12px;">Report ID: {{.ReportID}}</p>
    </div>
  </div>
</body>
</html>`

const welcomeEmailTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background: #f5f5f5; padding: 20px;">
  <div style="max-width: 600px; margin: 0 auto; background: #ffffff; border-radius: 8px; overflow: hidden;">
    <div style="background: #4361ee; color: #ffffff; padding: 20px; text-align: center;">
      <h2 style="margin: 0;">Welcome to SafeGate</h2>
    </div>
    <div style="padding: 20px;">
      <p>Dear {{.Name}},</p>
      <p>You can now report emergencies in one tap, share your live location with responders and send a discreet Women Safety SOS.</p>
      <p>Stay safe,<br>The SafeGate Team</p>
    </div>
  </div>
</body>
</html>`

var (
	alertEmail   = template.Must(template.New("alert").Parse(alertEmailTemplate))
	welcomeEmail = template.Must(template.New("welcome").Parse(welcomeEmailTemplate))
)

// WelcomeMailer greets a user the first time they sign in.
type WelcomeMailer interface {
	SendWelcome(ctx context.Context, reporter models.Reporter) error
}

const welcomeEmailSubject = "Welcome to SafeGate - Campus Emergency Response"

// RenderWelcomeEmail returns the HTML and plain text bodies of the
// first sign-in greeting.
func RenderWelcomeEmail(reporter models.Reporter) (string, string, error) {
	name := reporter.Name
	if name == "" {
		name = "there"
	}
	var html bytes.Buffer
	if err := welcomeEmail.Execute(&html, struct{ Name string }{name}); err != nil {
		return "", "", err
	}
	text := fmt.Sprintf("Dear %s,\n\nWelcome to SafeGate. You can now report emergencies in one tap, "+
		"share your live location with responders and send a discreet Women Safety SOS.\n", name)
	return html.String(), text, nil
}

// RenderAlertEmail returns subject, HTML body and plain text body.
func RenderAlertEmail(payload models.NotificationPayload) (string, string, string, error) {
	subject := fmt.Sprintf("🚨 %s - SafeGate Emergency Alert", payload.TypeName)

	var html bytes.Buffer
	if err := alertEmail.Execute(&html, payload); err != nil {
		return "", "", "", err
	}

	var text strings.Builder
	fmt.Fprintf(&text, "%s\n\n", subject)
	fmt.Fprintf(&text, "Location: %s\n", payload.MapLink)
	if payload.Address != "" {
		fmt.Fprintf(&text, "Address: %s\n", payload.Address)
	}
	fmt.Fprintf(&text, "Description: %s\n", payload.Description)
	fmt.Fprintf(&text, "Reported by: %s (%s)\n", payload.Reporter.Name, payload.Reporter.Email)
	fmt.Fprintf(&text, "Time: %s\n", payload.Timestamp)

	return subject, html.String(), text.String(), nil
}

type SMTPEmailSender struct {
	host       string
	port       string
	username   string
	password   string
	from       string
	recipients []string
}

func NewSMTPEmailSender(host, port, username, password, from string, recipients []string) *SMTPEmailSender {
	return &SMTPEmailSender{
		host:       host,
		port:       port,
		username:   username,
		password:   password,
		from:       from,
		recipients: recipients,
	}
}

func (es *SMTPEmailSender) Send(ctx context.Context, payload models.NotificationPayload) error {
	subject, htmlBody, _, err := RenderAlertEmail(payload)
	if err != nil {
		return err
	}

	auth := smtp.PlainAuth("", es.username, es.password, es.host)
	addr := fmt.Sprintf("%s:%s", es.host, es.port)

	return sendToAll(es.recipients, func(to string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		message := es.buildMessage(to, subject, htmlBody)
		if err := smtp.SendMail(addr, auth, es.from, []string{to}, []byte(message)); err != nil {
			return err
		}
		logrus.Infof("Alert email sent to %s", to)
		return nil
	})
}

func (es *SMTPEmailSender) SendWelcome(ctx context.Context, reporter models.Reporter) error {
	if reporter.Email == "" {
		return errors.New("user has no email address")
	}
	htmlBody, _, err := RenderWelcomeEmail(reporter)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	auth := smtp.PlainAuth("", es.username, es.password, es.host)
	addr := fmt.Sprintf("%s:%s", es.host, es.port)
	message := es.buildMessage(reporter.Email, welcomeEmailSubject, htmlBody)
	return smtp.SendMail(addr, auth, es.from, []string{reporter.Email}, []byte(message))
}

func (es *SMTPEmailSender) buildMessage(to, subject, htmlBody string) string {
	headers := map[string]string{
		"From":         es.from,
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
	}

	var message strings.Builder
	for _, key := range []string{"From", "To", "Subject", "MIME-Version", "Content-Type"} {
		fmt.Fprintf(&message, "%s: %s\r\n", key, headers[key])
	}
	message.WriteString("\r\n")
	message.WriteString(htmlBody)
	return message.String()
}

type SendGridEmailSender struct {
	client     *sendgrid.Client
	fromName   string
	fromEmail  string
	recipients []string
}

func NewSendGridEmailSender(apiKey, fromName, fromEmail string, recipients []string) *SendGridEmailSender {
	return &SendGridEmailSender{
		client:     sendgrid.NewSendClient(apiKey),
		fromName:   fromName,
		fromEmail:  fromEmail,
		recipients: recipients,
	}
}

func (es *SendGridEmailSender) Send(ctx context.Context, payload models.NotificationPayload) error {
	subject, htmlBody, textBody, err := RenderAlertEmail(payload)
	if err != nil {
		return err
	}

	from := mail.NewEmail(es.fromName, es.fromEmail)
	return sendToAll(es.recipients, func(to string) error {
		message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), textBody, htmlBody)
		response, err := es.client.SendWithContext(ctx, message)
		if err != nil {
			return err
		}
		if response.StatusCode >= 400 {
			return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
		}
		return nil
	})
}

func (es *SendGridEmailSender) SendWelcome(ctx context.Context, reporter models.Reporter) error {
	if reporter.Email == "" {
		return errors.New("user has no email address")
	}
	htmlBody, textBody, err := RenderWelcomeEmail(reporter)
	if err != nil {
		return err
	}

	from := mail.NewEmail(es.fromName, es.fromEmail)
	message := mail.NewSingleEmail(from, welcomeEmailSubject, mail.NewEmail(reporter.Name, reporter.Email), textBody, htmlBody)
	response, err := es.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}
	return nil
}
