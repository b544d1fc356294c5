package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"kglogistics/events"
	"kglogistics/models"
	"kglogistics/utils"
)

type TemplateInput struct {
	Name    string `json:"name" validate:"required,max=200"`
	Subject string `json:"subject" validate:"required,max=500"`
	Body    string `json:"body" validate:"required"`
}

// TemplatePatch updates whichever fields are non-nil.
type TemplatePatch struct {
	Name    *string `json:"name"`
	Subject *string `json:"subject"`
	Body    *string `json:"body"`
}

type TemplateService struct {
	DB     *gorm.DB
	Events events.Publisher
	log    *logrus.Entry
}

func NewTemplateService(db *gorm.DB, pub events.Publisher) *TemplateService {
	if pub == nil {
		pub = events.Nop()
	}
	return &TemplateService{DB: db, Events: pub, log: utils.Logger("template")}
}

func (s *TemplateService) ListTemplates(ctx context.Context) ([]models.EmailTemplate, error) {
	var templates []models.EmailTemplate
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&templates).Error; err != nil {
		return nil, translateDBError(err, "templates")
	}
	return templates, nil
}

func (s *TemplateService) GetTemplate(ctx context.Context, id string) (*models.EmailTemplate, error) {
	if err := checkID(id, "template"); err != nil {
		return nil, err
	}
	var t models.EmailTemplate
	if err := s.DB.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, translateDBError(err, "template")
	}
	return &t, nil
}

func (s *TemplateService) CreateTemplate(ctx context.Context, in TemplateInput) (*models.EmailTemplate, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Subject = strings.TrimSpace(in.Subject)
	if err := utils.ValidateStruct(in); err != nil {
		return nil, NewError(KindValidation, "Name, subject, and body are required")
	}
	if err := s.checkNameFree(s.DB.WithContext(ctx), in.Name, ""); err != nil {
		return nil, err
	}

	t := &models.EmailTemplate{Name: in.Name, Subject: in.Subject, Body: in.Body}
	if err := s.DB.WithContext(ctx).Create(t).Error; err != nil {
		return nil, templateWriteError(err)
	}
	s.log.WithField("template_id", t.ID).Info("Template created")
	s.Events.Publish(ctx, events.New(events.TemplateChanged, t.ID, events.KeyTemplates))
	return t, nil
}

// UpsertTemplate creates or replaces the template with in.Name.
func (s *TemplateService) UpsertTemplate(ctx context.Context, in TemplateInput) (*models.EmailTemplate, bool, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := utils.ValidateStruct(in); err != nil {
		return nil, false, NewError(KindValidation, err.Error())
	}
	var existing models.EmailTemplate
	err := s.DB.WithContext(ctx).Where("name = ?", in.Name).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		t, err := s.CreateTemplate(ctx, in)
		return t, true, err
	}
	if err != nil {
		return nil, false, translateDBError(err, "template")
	}
	t, err := s.UpdateTemplate(ctx, existing.ID, TemplatePatch{Subject: &in.Subject, Body: &in.Body})
	return t, false, err
}

func (s *TemplateService) UpdateTemplate(ctx context.Context, id string, p TemplatePatch) (*models.EmailTemplate, error) {
	if err := checkID(id, "template"); err != nil {
		return nil, err
	}
	var t models.EmailTemplate
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&t, "id = ?", id).Error; err != nil {
			return translateDBError(err, "template")
		}
		updates := map[string]interface{}{}
		if p.Name != nil {
			name := strings.TrimSpace(*p.Name)
			if name == "" {
				return NewError(KindValidation, "name cannot be empty")
			}
			if err := s.checkNameFree(tx, name, id); err != nil {
				return err
			}
			updates["name"] = name
		}
		if p.Subject != nil {
			if strings.TrimSpace(*p.Subject) == "" {
				return NewError(KindValidation, "subject cannot be empty")
			}
			updates["subject"] = strings.TrimSpace(*p.Subject)
		}
		if p.Body != nil {
			if strings.TrimSpace(*p.Body) == "" {
				return NewError(KindValidation, "body cannot be empty")
			}
			updates["body"] = *p.Body
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&t).Updates(updates).Error; err != nil {
			return templateWriteError(err)
		}
		return tx.First(&t, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	s.Events.Publish(ctx, events.New(events.TemplateChanged, t.ID, events.KeyTemplates))
	return &t, nil
}

// DeleteTemplate removes a template. History rows keep their subject and body
// and lose only the template reference.
func (s *TemplateService) DeleteTemplate(ctx context.Context, id string) error {
	if err := checkID(id, "template"); err != nil {
		return err
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.EmailHistory{}).Where("template_id = ?", id).
			Update("template_id", nil).Error; err != nil {
			return translateDBError(err, "email history")
		}
		res := tx.Where("id = ?", id).Delete(&models.EmailTemplate{})
		if res.Error != nil {
			return translateDBError(res.Error, "template")
		}
		if res.RowsAffected == 0 {
			return NewError(KindNotFound, "template not found")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithField("template_id", id).Info("Template deleted")
	s.Events.Publish(ctx, events.New(events.TemplateChanged, id, events.KeyTemplates))
	return nil
}

func (s *TemplateService) checkNameFree(db *gorm.DB, name, exceptID string) error {
	q := db.Model(&models.EmailTemplate{}).Where("name = ?", name)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return translateDBError(err, "template")
	}
	if n > 0 {
		return NewError(KindConflict, "A template with this name already exists")
	}
	return nil
}

func templateWriteError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return NewError(KindConflict, "A template with this name already exists")
	}
	return translateDBError(err, "template")
}
