package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"kglogistics/models"
	"kglogistics/utils"
)

// newTestDB opens a private in-memory SQLite database with the full schema.
// One open connection keeps every query on the same in-memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type fakeMailer struct {
	mu         sync.Mutex
	configured bool
	err        error
	sent       []utils.Message
}

func (m *fakeMailer) Configured() bool { return m.configured }

func (m *fakeMailer) Send(_ context.Context, msg utils.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakeDecoder struct {
	vehicle *DecodedVehicle
	err     error
	calls   int
}

func (d *fakeDecoder) Decode(_ context.Context, vin string) (*DecodedVehicle, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	v := *d.vehicle
	v.VIN = vin
	return &v, nil
}

func seedLead(t *testing.T, db *gorm.DB, lead models.Lead) *models.Lead {
	t.Helper()
	if lead.FormType == "" {
		lead.FormType = models.FormTypeShippingQuote
	}
	require.NoError(t, db.Create(&lead).Error)
	return &lead
}

func miataLead() models.Lead {
	return models.Lead{
		FormType:       models.FormTypeShippingQuote,
		FirstName:      utils.Pointer("Jane"),
		LastName:       utils.Pointer("Doe"),
		Email:          utils.Pointer("jane@example.com"),
		Phone:          utils.Pointer("5551234567"),
		Year:           utils.Pointer("2019"),
		Make:           utils.Pointer("Mazda"),
		Model:          utils.Pointer("Miata"),
		PickupAddress:  utils.Pointer("1 Main St"),
		PickupCity:     utils.Pointer("Austin"),
		PickupState:    utils.Pointer("TX"),
		PickupZip:      utils.Pointer("78701"),
		DropoffAddress: utils.Pointer("9 Elm St"),
		DropoffCity:    utils.Pointer("Denver"),
		DropoffState:   utils.Pointer("CO"),
		DropoffZip:     utils.Pointer("80202"),
		OpenQuote:      utils.Pointer("1200"),
		EnclosedQuote:  utils.Pointer("1800"),
	}
}
