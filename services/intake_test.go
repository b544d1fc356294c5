package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kglogistics/models"
	"kglogistics/store"
	"kglogistics/utils"
)

var intakeNow = time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

func newIntake(t *testing.T, mailer *fakeMailer, decoder VINDecoder) (*IntakeService, *store.MemoryStorage) {
	t.Helper()
	db := newTestDB(t)
	storage := store.NewMemoryStorage()
	svc := NewIntakeService(NewDraftStore(storage, time.Hour), NewLeadService(db, nil), mailer, decoder, "dispatch@example.com")
	svc.Now = fixedClock(intakeNow)
	return svc, storage
}

func validContact() ContactStep {
	return ContactStep{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Phone: "555-123-4567"}
}

func validAddress() AddressStep {
	return AddressStep{
		PickupDate:      "2025-06-11",
		PickupFormatted: "1 Main St, Austin, TX 78701, USA",
	}
}

func TestSaveContactValidation(t *testing.T) {
	svc, _ := newIntake(t, &fakeMailer{configured: true}, nil)
	ctx := context.Background()
	draft, err := svc.CreateDraft(ctx)
	require.NoError(t, err)

	_, err = svc.SaveContact(ctx, draft.ID, ContactStep{FirstName: "Jane", Email: "nope", Phone: "123"})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	fields := FieldsOf(err)
	assert.Contains(t, fields, "lastName")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "phone")
	assert.NotContains(t, fields, "firstName")

	stored, err := svc.GetDraft(ctx, draft.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Contact)

	saved, err := svc.SaveContact(ctx, draft.ID, validContact())
	require.NoError(t, err)
	require.NotNil(t, saved.Contact)
	assert.Equal(t, "Jane", saved.Contact.FirstName)
}

func TestSaveVehicleDecodesVIN(t *testing.T) {
	decoder := &fakeDecoder{vehicle: &DecodedVehicle{Year: "2019", Make: "MAZDA", Model: "MX-5 Miata"}}
	svc, _ := newIntake(t, &fakeMailer{configured: true}, decoder)
	ctx := context.Background()
	draft, err := svc.CreateDraft(ctx)
	require.NoError(t, err)

	saved, err := svc.SaveVehicle(ctx, draft.ID, VehicleStep{VIN: "jm1ndaa75k0300001", Year: "2001", Make: "Ford"})
	require.NoError(t, err)
	assert.Equal(t, VehicleStep{
		VIN:           "JM1NDAA75K0300001",
		Year:          "2019",
		Make:          "MAZDA",
		Model:         "MX-5 Miata",
		TransportType: "both",
		VINDecoded:    true,
	}, *saved.Vehicle)
}

func TestSaveVehicleFallsBackToManualEntry(t *testing.T) {
	decoder := &fakeDecoder{err: NewError(KindUpstream, "lookup failed")}
	svc, _ := newIntake(t, &fakeMailer{configured: true}, decoder)
	ctx := context.Background()
	draft, err := svc.CreateDraft(ctx)
	require.NoError(t, err)

	_, err = svc.SaveVehicle(ctx, draft.ID, VehicleStep{VIN: "JM1NDAA75K0300001"})
	require.Error(t, err)
	assert.Contains(t, FieldsOf(err), "make")

	saved, err := svc.SaveVehicle(ctx, draft.ID, VehicleStep{
		VIN: "JM1NDAA75K0300001", Year: "2019", Make: "Mazda", Model: "Miata", TransportType: "Enclosed",
	})
	require.NoError(t, err)
	assert.False(t, saved.Vehicle.VINDecoded)
	assert.Equal(t, "enclosed", saved.Vehicle.TransportType)
	assert.Equal(t, 2, decoder.calls)
}

func TestSaveVehicleRejectsBadVIN(t *testing.T) {
	decoder := &fakeDecoder{vehicle: &DecodedVehicle{}}
	svc, _ := newIntake(t, &fakeMailer{configured: true}, decoder)
	ctx := context.Background()
	draft, err := svc.CreateDraft(ctx)
	require.NoError(t, err)

	_, err = svc.SaveVehicle(ctx, draft.ID, VehicleStep{VIN: "SHORT", Year: "2019", Make: "Mazda", Model: "Miata"})
	assert.Equal(t, map[string]string{"vin": "VIN must be exactly 17 characters"}, FieldsOf(err))

	_, err = svc.SaveVehicle(ctx, draft.ID, VehicleStep{VIN: "JM1NDAA75K030000O", Year: "2019", Make: "Mazda", Model: "Miata"})
	assert.Contains(t, FieldsOf(err), "vin")

	_, err = svc.SaveVehicle(ctx, draft.ID, VehicleStep{Year: "2019", Make: "Mazda", Model: "Miata", TransportType: "flatbed"})
	assert.Contains(t, FieldsOf(err), "transportType")
	assert.Zero(t, decoder.calls)
}

func TestSaveAddressDates(t *testing.T) {
	svc, _ := newIntake(t, &fakeMailer{configured: true}, nil)
	ctx := context.Background()
	draft, err := svc.CreateDraft(ctx)
	require.NoError(t, err)

	saved, err := svc.SaveAddress(ctx, draft.ID, validAddress())
	require.NoError(t, err)
	assert.Equal(t, "1 Main St", saved.Address.PickupAddress)
	assert.Equal(t, "Austin", saved.Address.PickupCity)
	assert.Equal(t, "TX", saved.Address.PickupState)
	assert.Equal(t, "78701", saved.Address.PickupZip)

	today := validAddress()
	today.PickupDate = "2025-06-10"
	_, err = svc.SaveAddress(ctx, draft.ID, today)
	assert.Equal(t, "Pickup date must be at least 1 day from today", FieldsOf(err)["pickupDate"])

	early := validAddress()
	early.DropoffDate = "2025-06-11"
	_, err = svc.SaveAddress(ctx, draft.ID, early)
	fields := FieldsOf(err)
	assert.Equal(t, "Dropoff date must be at least 2 days from today", fields["dropoffDate"])
	assert.Contains(t, fields, "dropoffAddress")

	full := validAddress()
	full.DropoffDate = "2025-06-12"
	full.DropoffFormatted = "9 Elm St, Denver, CO 80202"
	saved, err = svc.SaveAddress(ctx, draft.ID, full)
	require.NoError(t, err)
	assert.Equal(t, "Denver", saved.Address.DropoffCity)

	partial := validAddress()
	partial.DropoffCity = "Denver"
	saved, err = svc.SaveAddress(ctx, draft.ID, partial)
	require.NoError(t, err)
	assert.Equal(t, "Denver", saved.Address.DropoffCity)
	assert.Empty(t, saved.Address.DropoffAddress)

	_, err = svc.SaveAddress(ctx, draft.ID, AddressStep{PickupDate: "2025-06-20"})
	fields = FieldsOf(err)
	assert.Contains(t, fields, "pickupAddress")
	assert.Contains(t, fields, "pickupZip")
}

func TestGetDraftMissing(t *testing.T) {
	svc, storage := newIntake(t, &fakeMailer{configured: true}, nil)
	ctx := context.Background()

	_, err := svc.GetDraft(ctx, "not-a-uuid")
	assert.Equal(t, KindNotFound, KindOf(err))

	draft, err := svc.CreateDraft(ctx)
	require.NoError(t, err)
	require.NoError(t, storage.Reset())
	_, err = svc.GetDraft(ctx, draft.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "draft not found or expired", MessageOf(err))
}

func fillDraft(t *testing.T, svc *IntakeService) string {
	t.Helper()
	ctx := context.Background()
	draft, err := svc.CreateDraft(ctx)
	require.NoError(t, err)
	_, err = svc.SaveContact(ctx, draft.ID, validContact())
	require.NoError(t, err)
	_, err = svc.SaveVehicle(ctx, draft.ID, VehicleStep{Year: "2019", Make: "Mazda", Model: "Miata", TransportType: "open"})
	require.NoError(t, err)
	_, err = svc.SaveAddress(ctx, draft.ID, validAddress())
	require.NoError(t, err)
	return draft.ID
}

func TestSubmitDraft(t *testing.T) {
	mailer := &fakeMailer{configured: true}
	svc, storage := newIntake(t, mailer, nil)
	ctx := context.Background()
	id := fillDraft(t, svc)

	res, err := svc.SubmitDraft(ctx, id)
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.True(t, res.Recorded)
	require.NotNil(t, res.LeadID)

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, []string{"dispatch@example.com"}, msg.To)
	assert.Equal(t, "jane@example.com", msg.ReplyTo)
	assert.Contains(t, msg.HTML, "2019 Mazda Miata")

	var lead models.Lead
	require.NoError(t, svc.Leads.DB.First(&lead, "id = ?", *res.LeadID).Error)
	assert.Equal(t, models.FormTypeShippingQuote, lead.FormType)
	assert.Equal(t, models.LeadStatusNew, lead.Status)
	assert.Equal(t, "Austin", utils.Deref(lead.PickupCity))
	assert.Equal(t, "open", utils.Deref(lead.TransportType))

	assert.Zero(t, storage.Len())
	_, err = svc.SubmitDraft(ctx, id)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestSubmitDraftNotificationFailureRecordsNothing(t *testing.T) {
	cases := map[string]*fakeMailer{
		"unconfigured": {},
		"send error":   {configured: true, err: errors.New("smtp down")},
	}
	for name, mailer := range cases {
		t.Run(name, func(t *testing.T) {
			svc, storage := newIntake(t, mailer, nil)
			id := fillDraft(t, svc)

			_, err := svc.SubmitDraft(context.Background(), id)
			require.Error(t, err)
			assert.Equal(t, KindUpstream, KindOf(err))

			var n int64
			require.NoError(t, svc.Leads.DB.Model(&models.Lead{}).Count(&n).Error)
			assert.Zero(t, n)
			assert.Equal(t, 1, storage.Len())
		})
	}
}

func TestSubmitDraftIncomplete(t *testing.T) {
	svc, _ := newIntake(t, &fakeMailer{configured: true}, nil)
	ctx := context.Background()
	draft, err := svc.CreateDraft(ctx)
	require.NoError(t, err)
	_, err = svc.SaveContact(ctx, draft.ID, validContact())
	require.NoError(t, err)

	_, err = svc.SubmitDraft(ctx, draft.ID)
	assert.Equal(t, KindValidation, KindOf(err))
	fields := FieldsOf(err)
	assert.Contains(t, fields, "vehicle")
	assert.Contains(t, fields, "address")
	assert.NotContains(t, fields, "contact")
}

func TestSubmitContact(t *testing.T) {
	mailer := &fakeMailer{configured: true}
	svc, _ := newIntake(t, mailer, nil)
	ctx := context.Background()

	_, err := svc.SubmitContact(ctx, ContactForm{Name: "Jane", ContactType: "text", Phone: "123"})
	fields := FieldsOf(err)
	assert.Contains(t, fields, "contactTel")
	assert.Contains(t, fields, "contactMessage")

	_, err = svc.SubmitContact(ctx, ContactForm{Name: "Jane", ContactType: "email", Message: "hi"})
	assert.Contains(t, FieldsOf(err), "contactEmail")

	_, err = svc.SubmitContact(ctx, ContactForm{Name: "Jane", ContactType: "fax", Message: "hi"})
	assert.Contains(t, FieldsOf(err), "contactType")
	assert.Empty(t, mailer.sent)

	res, err := svc.SubmitContact(ctx, ContactForm{
		Name:        "Mary Ann Smith",
		ContactType: "email",
		Email:       "mary@example.com",
		Message:     "Do you ship to Hawaii?",
	})
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.True(t, res.Recorded)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "mary@example.com", mailer.sent[0].ReplyTo)

	var lead models.Lead
	require.NoError(t, svc.Leads.DB.First(&lead, "id = ?", *res.LeadID).Error)
	assert.Equal(t, models.FormTypeContact, lead.FormType)
	assert.Equal(t, "Mary", utils.Deref(lead.FirstName))
	assert.Equal(t, "Ann Smith", utils.Deref(lead.LastName))
	assert.Equal(t, "Do you ship to Hawaii?", utils.Deref(lead.Message))
}

func TestSubmitContactRecordFailureStillDelivers(t *testing.T) {
	mailer := &fakeMailer{configured: true}
	svc, _ := newIntake(t, mailer, nil)
	sqlDB, err := svc.Leads.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	res, err := svc.SubmitContact(context.Background(), ContactForm{
		Name: "Jane", ContactType: "text", Phone: "5551234567", Message: "Call me",
	})
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.False(t, res.Recorded)
	assert.Nil(t, res.LeadID)
	assert.Len(t, mailer.sent, 1)
}

func TestDecodeVINUnavailable(t *testing.T) {
	svc, _ := newIntake(t, &fakeMailer{configured: true}, nil)
	_, err := svc.DecodeVIN(context.Background(), "JM1NDAA75K0300001")
	assert.Equal(t, KindUpstream, KindOf(err))
}
