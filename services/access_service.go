package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kglogistics/models"
	"kglogistics/utils"
)

// AccessService answers whether an authenticated identity may use the
// operations API. Identity itself comes from the auth provider's token.
type AccessService struct {
	DB  *gorm.DB
	log *logrus.Entry
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{DB: db, log: utils.Logger("access")}
}

// IsAuthorized reports profile.hasAccess. A missing profile or a lookup error
// both deny access.
func (s *AccessService) IsAuthorized(ctx context.Context, userID string) bool {
	if userID == "" {
		return false
	}
	var profile models.Profile
	err := s.DB.WithContext(ctx).Select("has_access").First(&profile, "id = ?", userID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.WithError(err).WithField("user_id", userID).Error("Error checking user authorization")
		}
		return false
	}
	return profile.HasAccess
}

// ProfileName returns the display name for userID, or nil.
func (s *AccessService) ProfileName(ctx context.Context, userID string) (*string, error) {
	var profile models.Profile
	err := s.DB.WithContext(ctx).Select("name").First(&profile, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateDBError(err, "profile")
	}
	if utils.IsBlank(profile.Name) {
		return nil, nil
	}
	return profile.Name, nil
}

func (s *AccessService) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	var profiles []models.Profile
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&profiles).Error; err != nil {
		return nil, translateDBError(err, "profiles")
	}
	return profiles, nil
}

// UpsertProfile creates the profile if needed and applies whichever fields
// are given.
func (s *AccessService) UpsertProfile(ctx context.Context, userID string, hasAccess *bool, name *string) (*models.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, NewError(KindValidation, "userId is required")
	}

	profile := models.Profile{ID: userID}
	if hasAccess != nil {
		profile.HasAccess = *hasAccess
	}
	if name != nil {
		profile.Name = utils.NullIfBlank(*name)
	}

	var updateCols []string
	if hasAccess != nil {
		updateCols = append(updateCols, "has_access")
	}
	if name != nil {
		updateCols = append(updateCols, "name")
	}
	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}
	if len(updateCols) > 0 {
		onConflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(append(updateCols, "updated_at")),
		}
	}

	db := s.DB.WithContext(ctx)
	if err := db.Clauses(onConflict).Create(&profile).Error; err != nil {
		return nil, translateDBError(err, "profile")
	}
	if err := db.First(&profile, "id = ?", userID).Error; err != nil {
		return nil, translateDBError(err, "profile")
	}

	utils.LogEvent("access", "profile_updated", logrus.Fields{
		"user_id":    userID,
		"has_access": profile.HasAccess,
	})
	return &profile, nil
}

func (s *AccessService) GrantAccess(ctx context.Context, userID string, name *string) (*models.Profile, error) {
	granted := true
	return s.UpsertProfile(ctx, userID, &granted, name)
}

// RevokeAccess clears hasAccess on an existing profile.
func (s *AccessService) RevokeAccess(ctx context.Context, userID string) (*models.Profile, error) {
	res := s.DB.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", userID).Update("has_access", false)
	if res.Error != nil {
		return nil, translateDBError(res.Error, "profile")
	}
	if res.RowsAffected == 0 {
		return nil, NewError(KindNotFound, "profile not found")
	}
	var profile models.Profile
	if err := s.DB.WithContext(ctx).First(&profile, "id = ?", userID).Error; err != nil {
		return nil, translateDBError(err, "profile")
	}
	utils.LogEvent("access", "profile_updated", logrus.Fields{
		"user_id":    userID,
		"has_access": false,
	})
	return &profile, nil
}
