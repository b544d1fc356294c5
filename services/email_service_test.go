package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kglogistics/events"
	"kglogistics/models"
	"kglogistics/utils"
)

func TestComposeAndSendOutcomes(t *testing.T) {
	cases := []struct {
		name      string
		mailer    *fakeMailer
		outcome   Outcome
		delivered bool
	}{
		{"sent", &fakeMailer{configured: true}, OutcomeSent, true},
		{"send failure", &fakeMailer{configured: true, err: errors.New("connection refused")}, OutcomeComposedNotSent, false},
		{"not configured", &fakeMailer{}, OutcomeConfigMissing, false},
		{"not configured at send", &fakeMailer{configured: true, err: utils.ErrMailerNotConfigured}, OutcomeConfigMissing, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := newTestDB(t)
			rec := &events.Recorder{}
			svc := NewEmailService(db, tc.mailer, rec)
			now := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
			svc.Now = fixedClock(now)
			lead := seedLead(t, db, miataLead())

			res, err := svc.ComposeAndSend(context.Background(), SendRequest{
				LeadID:  lead.ID,
				Subject: "Quote for {{lead.vehicle}}",
				Body:    "Hi {{lead.firstName}}, open carrier is ${{lead.openQuote}}.",
				SentBy:  "staff-1",
			})
			require.NoError(t, err)

			assert.Equal(t, tc.outcome, res.Outcome)
			assert.Equal(t, tc.delivered, res.Delivered)
			assert.True(t, res.Recorded)
			assert.Equal(t, tc.outcome.Message(), res.Message)
			require.NotNil(t, res.EmailHistory)
			assert.Equal(t, "Quote for 2019 Mazda Miata", res.EmailHistory.Subject)
			assert.Equal(t, "Hi Jane, open carrier is $1200.", res.EmailHistory.Body)
			assert.Equal(t, "jane@example.com", res.EmailHistory.SentTo)
			assert.Equal(t, "staff-1", res.EmailHistory.SentBy)

			var stored models.Lead
			require.NoError(t, db.First(&stored, "id = ?", lead.ID).Error)
			assert.Equal(t, models.LeadStatusContacted, stored.Status)
			require.NotNil(t, stored.LastContactedAt)
			assert.True(t, now.Equal(*stored.LastContactedAt))

			var n int64
			require.NoError(t, db.Model(&models.EmailHistory{}).Where("lead_id = ?", lead.ID).Count(&n).Error)
			assert.EqualValues(t, 1, n)
			assert.Equal(t, []string{events.EmailSent}, rec.Types())

			if tc.delivered {
				require.Len(t, tc.mailer.sent, 1)
				assert.Equal(t, []string{"jane@example.com"}, tc.mailer.sent[0].To)
				assert.Contains(t, tc.mailer.sent[0].HTML, "Hi Jane")
			}
		})
	}
}

func TestComposeAndSendWithTemplate(t *testing.T) {
	db := newTestDB(t)
	svc := NewEmailService(db, &fakeMailer{configured: true}, nil)
	lead := seedLead(t, db, models.Lead{
		Status:        models.LeadStatusQuoted,
		Email:         utils.Pointer("a@b.com"),
		EnclosedQuote: utils.Pointer("$1,800"),
	})
	tmpl := &models.EmailTemplate{
		Name:    "enclosed",
		Subject: "Your quote",
		Body:    "Hi {{lead.name}}, your enclosed quote is ${{lead.enclosedQuote}}",
	}
	require.NoError(t, db.Create(tmpl).Error)

	res, err := svc.ComposeAndSend(context.Background(), SendRequest{
		LeadID:     lead.ID,
		TemplateID: &tmpl.ID,
		Subject:    "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi Valued Customer, your enclosed quote is $1800", res.EmailHistory.Body)
	assert.Equal(t, tmpl.ID, utils.Deref(res.EmailHistory.TemplateID))

	var stored models.Lead
	require.NoError(t, db.First(&stored, "id = ?", lead.ID).Error)
	assert.Equal(t, models.LeadStatusQuoted, stored.Status)
}

func TestComposeAndSendErrors(t *testing.T) {
	db := newTestDB(t)
	mailer := &fakeMailer{configured: true}
	svc := NewEmailService(db, mailer, nil)
	ctx := context.Background()

	noEmail := seedLead(t, db, models.Lead{FirstName: utils.Pointer("Quiet")})
	lead := seedLead(t, db, miataLead())

	_, err := svc.ComposeAndSend(ctx, SendRequest{LeadID: noEmail.ID, Subject: "s", Body: "b"})
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "Lead has no email address", MessageOf(err))

	_, err = svc.ComposeAndSend(ctx, SendRequest{LeadID: uuid.NewString(), Subject: "s", Body: "b"})
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = svc.ComposeAndSend(ctx, SendRequest{LeadID: lead.ID, Subject: "only subject"})
	assert.Equal(t, KindValidation, KindOf(err))

	missing := uuid.NewString()
	_, err = svc.ComposeAndSend(ctx, SendRequest{LeadID: lead.ID, TemplateID: &missing})
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = svc.ComposeAndSend(ctx, SendRequest{Subject: "s", Body: "b"})
	assert.Equal(t, KindValidation, KindOf(err))

	assert.Empty(t, mailer.sent)
	var n int64
	require.NoError(t, db.Model(&models.EmailHistory{}).Count(&n).Error)
	assert.Zero(t, n)
}
