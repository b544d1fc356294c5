package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"kglogistics/events"
	"kglogistics/models"
	"kglogistics/utils"
)

// Outcome reports what happened to a composed email.
type Outcome string

const (
	OutcomeSent            Outcome = "sent"
	OutcomeComposedNotSent Outcome = "composed_not_sent"
	OutcomeConfigMissing   Outcome = "config_missing"
)

func (o Outcome) Message() string {
	switch o {
	case OutcomeSent:
		return "Email sent successfully"
	case OutcomeConfigMissing:
		return "Email saved to history - configure SMTP to send emails"
	default:
		return "Email saved to history but sending failed - check logs"
	}
}

// SendRequest composes an email to a lead from a template or from a custom
// subject and body.
type SendRequest struct {
	LeadID     string  `json:"leadId"`
	TemplateID *string `json:"templateId"`
	Subject    string  `json:"subject"`
	Body       string  `json:"body"`
	SentBy     string  `json:"-"`
}

// SendResult always carries the recorded history row.
type SendResult struct {
	Outcome      Outcome              `json:"outcome"`
	Delivered    bool                 `json:"delivered"`
	Recorded     bool                 `json:"recorded"`
	Message      string               `json:"message"`
	EmailHistory *models.EmailHistory `json:"emailHistory"`
}

type EmailService struct {
	DB     *gorm.DB
	Mailer utils.Mailer
	Events events.Publisher
	Now    func() time.Time
	log    *logrus.Entry
}

func NewEmailService(db *gorm.DB, mailer utils.Mailer, pub events.Publisher) *EmailService {
	if pub == nil {
		pub = events.Nop()
	}
	return &EmailService{
		DB:     db,
		Mailer: mailer,
		Events: pub,
		Now:    time.Now,
		log:    utils.Logger("email"),
	}
}

// ComposeAndSend substitutes lead tokens, attempts delivery, and records the
// result. A delivery failure does not fail the call; the history row is
// written either way and a NEW lead becomes CONTACTED.
func (s *EmailService) ComposeAndSend(ctx context.Context, req SendRequest) (*SendResult, error) {
	if strings.TrimSpace(req.LeadID) == "" {
		return nil, NewError(KindValidation, "leadId is required")
	}
	if err := checkID(req.LeadID, "lead"); err != nil {
		return nil, err
	}

	var lead models.Lead
	if err := s.DB.WithContext(ctx).First(&lead, "id = ?", req.LeadID).Error; err != nil {
		return nil, translateDBError(err, "lead")
	}
	if utils.IsBlank(lead.Email) {
		return nil, NewError(KindValidation, "Lead has no email address")
	}

	subject, body := req.Subject, req.Body
	var templateID *string
	if req.TemplateID != nil && *req.TemplateID != "" {
		if err := checkID(*req.TemplateID, "template"); err != nil {
			return nil, err
		}
		var tmpl models.EmailTemplate
		if err := s.DB.WithContext(ctx).First(&tmpl, "id = ?", *req.TemplateID).Error; err != nil {
			return nil, translateDBError(err, "template")
		}
		subject, body = tmpl.Subject, tmpl.Body
		templateID = &tmpl.ID
	} else if strings.TrimSpace(subject) == "" || strings.TrimSpace(body) == "" {
		return nil, NewError(KindValidation, "Either templateId or both subject and body are required")
	}

	subject = Substitute(subject, &lead)
	body = Substitute(body, &lead)
	to := strings.TrimSpace(*lead.Email)

	outcome := s.deliver(ctx, utils.Message{
		To:      []string{to},
		Subject: subject,
		Text:    body,
		HTML:    utils.TextToHTML(body),
	}, lead.ID)

	now := s.Now()
	history := &models.EmailHistory{
		LeadID:     lead.ID,
		TemplateID: templateID,
		SentTo:     to,
		Subject:    subject,
		Body:       body,
		SentBy:     req.SentBy,
		SentAt:     now,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(history).Error; err != nil {
			return translateDBError(err, "email history")
		}
		updates := map[string]interface{}{"last_contacted_at": now}
		if lead.Status == models.LeadStatusNew {
			updates["status"] = models.LeadStatusContacted
		}
		if err := tx.Model(&lead).Updates(updates).Error; err != nil {
			return translateDBError(err, "lead")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	emailsDispatched.WithLabelValues(string(outcome)).Inc()
	s.Events.Publish(ctx, events.New(events.EmailSent, lead.ID, leadKeys(&lead)...))

	return &SendResult{
		Outcome:      outcome,
		Delivered:    outcome == OutcomeSent,
		Recorded:     true,
		Message:      outcome.Message(),
		EmailHistory: history,
	}, nil
}

func (s *EmailService) deliver(ctx context.Context, msg utils.Message, leadID string) Outcome {
	if s.Mailer == nil || !s.Mailer.Configured() {
		s.log.WithField("lead_id", leadID).Warn("SMTP not configured, email recorded without sending")
		return OutcomeConfigMissing
	}
	if err := s.Mailer.Send(ctx, msg); err != nil {
		if errors.Is(err, utils.ErrMailerNotConfigured) {
			return OutcomeConfigMissing
		}
		utils.LogError("email", "email_send_failed", err, logrus.Fields{
			"lead_id": leadID,
		})
		return OutcomeComposedNotSent
	}
	utils.LogEvent("email", "email_sent", logrus.Fields{"lead_id": leadID})
	return OutcomeSent
}
