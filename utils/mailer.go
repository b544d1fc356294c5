package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"gopkg.in/gomail.v2"
)

// ErrMailerNotConfigured is returned by Send when no SMTP host is set.
var ErrMailerNotConfigured = errors.New("email configuration not initialized")

// Message is one outgoing email.
type Message struct {
	To      []string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers messages through the transactional email provider.
type Mailer interface {
	Configured() bool
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds SMTP configuration
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

type SMTPMailer struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	m := &SMTPMailer{cfg: cfg}
	if cfg.Host != "" {
		m.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return m
}

func (m *SMTPMailer) Configured() bool {
	return m.dialer != nil && m.cfg.FromEmail != ""
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if !m.Configured() {
		return ErrMailerNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	if m.cfg.FromName != "" {
		gm.SetAddressHeader("From", m.cfg.FromEmail, m.cfg.FromName)
	} else {
		gm.SetHeader("From", m.cfg.FromEmail)
	}
	gm.SetHeader("To", msg.To...)
	if msg.ReplyTo != "" {
		gm.SetHeader("Reply-To", msg.ReplyTo)
	}
	gm.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		gm.SetBody("text/plain", msg.Text)
		if msg.HTML != "" {
			gm.AddAlternative("text/html", msg.HTML)
		}
	} else {
		gm.SetBody("text/html", msg.HTML)
	}

	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	return nil
}

// TextToHTML escapes plain text and turns newlines into <br>.
func TextToHTML(text string) string {
	escaped := template.HTMLEscapeString(text)
	return strings.ReplaceAll(escaped, "\n", "<br>")
}

// Embedded notification templates
var emailTemplates = map[string]string{
	"quote_request": `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>New shipping quote request</title></head>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
    <h2>New shipping quote request</h2>
    <h3>Contact</h3>
    <p>{{.FirstName}} {{.LastName}}<br>{{.Email}}<br>{{.Phone}}</p>
    <h3>Vehicle</h3>
    <p>{{.Year}} {{.Make}} {{.Model}}{{if .VIN}}<br>VIN: {{.VIN}}{{end}}{{if .TransportType}}<br>Transport: {{.TransportType}}{{end}}</p>
    <h3>Pickup</h3>
    <p>{{.PickupDate}}<br>{{.PickupAddress}}, {{.PickupCity}}, {{.PickupState}} {{.PickupZip}}</p>
    {{if .DropoffAddress}}<h3>Drop-off</h3>
    <p>{{.DropoffDate}}<br>{{.DropoffAddress}}, {{.DropoffCity}}, {{.DropoffState}} {{.DropoffZip}}</p>{{end}}
</body>
</html>`,

	"contact_message": `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>New contact message</title></head>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
    <h2>New contact message</h2>
    <p>{{.Name}}<br>Prefers: {{.ContactType}}{{if .Email}}<br>{{.Email}}{{end}}{{if .Phone}}<br>{{.Phone}}{{end}}</p>
    <p>{{.Message}}</p>
</body>
</html>`,
}

// RenderEmailTemplate executes one of the embedded notification templates.
func RenderEmailTemplate(name string, data interface{}) (string, error) {
	tmplContent, ok := emailTemplates[name]
	if !ok {
		return "", fmt.Errorf("template '%s' not found", name)
	}

	tmpl, err := template.New(name).Parse(tmplContent)
	if err != nil {
		return "", fmt.Errorf("error parsing template: %w", err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("error executing template: %w", err)
	}
	return body.String(), nil
}
