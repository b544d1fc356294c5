package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kglogistics/events"
	"kglogistics/models"
	"kglogistics/utils"
)

func TestTemplateLifecycle(t *testing.T) {
	db := newTestDB(t)
	rec := &events.Recorder{}
	svc := NewTemplateService(db, rec)
	ctx := context.Background()

	_, err := svc.CreateTemplate(ctx, TemplateInput{Name: "welcome", Subject: "Hi"})
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "Name, subject, and body are required", MessageOf(err))

	welcome, err := svc.CreateTemplate(ctx, TemplateInput{Name: " welcome ", Subject: "Hi", Body: "Hello {{lead.name}}"})
	require.NoError(t, err)
	assert.Equal(t, "welcome", welcome.Name)

	_, err = svc.CreateTemplate(ctx, TemplateInput{Name: "welcome", Subject: "x", Body: "y"})
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, "A template with this name already exists", MessageOf(err))

	followUp, err := svc.CreateTemplate(ctx, TemplateInput{Name: "follow-up", Subject: "Checking in", Body: "..."})
	require.NoError(t, err)

	_, err = svc.UpdateTemplate(ctx, followUp.ID, TemplatePatch{Name: utils.Pointer("welcome")})
	assert.Equal(t, KindConflict, KindOf(err))

	updated, err := svc.UpdateTemplate(ctx, followUp.ID, TemplatePatch{Subject: utils.Pointer("Still interested?")})
	require.NoError(t, err)
	assert.Equal(t, "Still interested?", updated.Subject)
	assert.Equal(t, "follow-up", updated.Name)

	_, err = svc.UpdateTemplate(ctx, followUp.ID, TemplatePatch{Body: utils.Pointer("  ")})
	assert.Equal(t, KindValidation, KindOf(err))

	list, err := svc.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	assert.Equal(t, []string{events.TemplateChanged, events.TemplateChanged, events.TemplateChanged}, rec.Types())
}

func TestDeleteTemplateKeepsHistory(t *testing.T) {
	db := newTestDB(t)
	svc := NewTemplateService(db, nil)
	ctx := context.Background()

	tmpl, err := svc.CreateTemplate(ctx, TemplateInput{Name: "welcome", Subject: "Hi", Body: "Hello"})
	require.NoError(t, err)
	lead := seedLead(t, db, miataLead())
	history := &models.EmailHistory{LeadID: lead.ID, TemplateID: &tmpl.ID, SentTo: "jane@example.com", Subject: "Hi", Body: "Hello", SentBy: "staff"}
	require.NoError(t, db.Create(history).Error)

	require.NoError(t, svc.DeleteTemplate(ctx, tmpl.ID))
	assert.Equal(t, KindNotFound, KindOf(svc.DeleteTemplate(ctx, tmpl.ID)))

	var stored models.EmailHistory
	require.NoError(t, db.First(&stored, "id = ?", history.ID).Error)
	assert.Nil(t, stored.TemplateID)
	assert.Equal(t, "Hello", stored.Body)

	_, err = svc.GetTemplate(ctx, tmpl.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestUpsertTemplate(t *testing.T) {
	db := newTestDB(t)
	svc := NewTemplateService(db, nil)
	ctx := context.Background()

	first, created, err := svc.UpsertTemplate(ctx, TemplateInput{Name: "welcome", Subject: "Hi", Body: "v1"})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := svc.UpsertTemplate(ctx, TemplateInput{Name: "welcome", Subject: "Hello", Body: "v2"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "v2", second.Body)
}
