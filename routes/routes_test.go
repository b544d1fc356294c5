package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"kglogistics/events"
	"kglogistics/middleware"
	"kglogistics/models"
	"kglogistics/services"
	"kglogistics/store"
	"kglogistics/utils"
)

const testSecret = "routes-secret"

type captureMailer struct {
	mu   sync.Mutex
	sent []utils.Message
}

func (m *captureMailer) Configured() bool { return true }

func (m *captureMailer) Send(_ context.Context, msg utils.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type testServer struct {
	app    *fiber.App
	db     *gorm.DB
	mailer *captureMailer
	staff  string
}

func newTestServer(t *testing.T, rateLimit int) *testServer {
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

	_, err = services.NewAccessService(db).GrantAccess(context.Background(), "staff-1", utils.Pointer("Dana"))
	require.NoError(t, err)

	mailer := &captureMailer{}
	app := NewApp(middleware.DefaultCORSConfig())
	SetupRoutes(app, Dependencies{
		DB:                    db,
		Events:                &events.Recorder{},
		Hub:                   events.NewHub(),
		Mailer:                mailer,
		Storage:               store.NewMemoryStorage(),
		JWTSecret:             testSecret,
		NotificationEmail:     "dispatch@kglogistics.example",
		RateLimitPublicIntake: rateLimit,
		DraftTTL:              time.Hour,
	})

	staff, err := utils.SignJWTToken("staff-1", testSecret, utils.Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	require.NoError(t, err)
	return &testServer{app: app, db: db, mailer: mailer, staff: staff}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode(t *testing.T, raw []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func TestHealthAndNotFound(t *testing.T) {
	s := newTestServer(t, 10)

	status, body := s.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", decode(t, body)["status"])

	status, body = s.do(t, http.MethodGet, "/nowhere", nil, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, false, decode(t, body)["success"])
}

func TestAdminRoutesRequireAccess(t *testing.T) {
	s := newTestServer(t, 10)
	visitor, err := utils.SignJWTToken("visitor-1", testSecret, utils.Claims{})
	require.NoError(t, err)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/leads"},
		{http.MethodGet, "/api/loads"},
		{http.MethodGet, "/api/loads/stats"},
		{http.MethodGet, "/api/templates"},
		{http.MethodPost, "/api/email/send"},
		{http.MethodGet, "/api/dashboard/stats"},
		{http.MethodGet, "/ws/events"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			status, _ := s.do(t, p.method, p.path, nil, "")
			assert.Equal(t, fiber.StatusUnauthorized, status)

			status, _ = s.do(t, p.method, p.path, nil, visitor)
			assert.Equal(t, fiber.StatusForbidden, status)
		})
	}

	status, _ := s.do(t, http.MethodGet, "/ws/events", nil, s.staff)
	assert.Equal(t, fiber.StatusUpgradeRequired, status)
}

func TestAuthCheckAndProfile(t *testing.T) {
	s := newTestServer(t, 10)

	status, body := s.do(t, http.MethodPost, "/api/auth/check", nil, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]interface{}{"authorized": false}, decode(t, body))

	status, body = s.do(t, http.MethodPost, "/api/auth/check", nil, s.staff)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]interface{}{"authorized": true}, decode(t, body))

	status, _ = s.do(t, http.MethodGet, "/api/user/profile", nil, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body = s.do(t, http.MethodGet, "/api/user/profile", nil, s.staff)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Dana", decode(t, body)["name"])
}

func TestLeadRoundTrip(t *testing.T) {
	s := newTestServer(t, 10)

	status, body := s.do(t, http.MethodPost, "/api/leads", map[string]interface{}{
		"formType":   "SHIPPING_QUOTE",
		"firstName":  "Jane",
		"lastName":   "Doe",
		"email":      "jane@example.com",
		"vin":        "1hgcm82633a004352",
		"year":       "2019",
		"make":       "Mazda",
		"model":      "Miata",
		"pickupCity": "Austin",
		"pickupDate": "2025-07-04",
		"openQuote":  "1,200.00",
		"assignedTo": "someone",
	}, "")
	require.Equal(t, fiber.StatusCreated, status, string(body))
	id, _ := decode(t, body)["data"].(map[string]interface{})["id"].(string)
	require.NotEmpty(t, id)

	status, body = s.do(t, http.MethodPatch, "/api/leads/"+id+"/notes", map[string]string{"notes": "Call after 5pm"}, s.staff)
	require.Equal(t, fiber.StatusOK, status, string(body))

	status, body = s.do(t, http.MethodGet, "/api/leads/"+id, nil, s.staff)
	require.Equal(t, fiber.StatusOK, status, string(body))
	var got struct {
		Success bool        `json:"success"`
		Data    models.Lead `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.True(t, got.Success)

	pickup := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)
	want := models.Lead{
		ID:         id,
		FormType:   models.FormTypeShippingQuote,
		Status:     models.LeadStatusNew,
		FirstName:  utils.Pointer("Jane"),
		LastName:   utils.Pointer("Doe"),
		Email:      utils.Pointer("jane@example.com"),
		VIN:        utils.Pointer("1HGCM82633A004352"),
		Year:       utils.Pointer("2019"),
		Make:       utils.Pointer("Mazda"),
		Model:      utils.Pointer("Miata"),
		PickupCity: utils.Pointer("Austin"),
		PickupDate: &pickup,
		OpenQuote:  utils.Pointer("120000"),
		Notes:      utils.Pointer("Call after 5pm"),
	}
	opts := cmpopts.IgnoreFields(models.Lead{}, "CreatedAt", "UpdatedAt", "Emails")
	if diff := cmp.Diff(want, got.Data, opts); diff != "" {
		t.Errorf("lead mismatch (-want +got):\n%s", diff)
	}

	status, body = s.do(t, http.MethodGet, "/api/leads?search=jane", nil, s.staff)
	require.Equal(t, fiber.StatusOK, status, string(body))
	assert.Len(t, decode(t, body)["data"], 1)

	status, _ = s.do(t, http.MethodDelete, "/api/leads/"+id, nil, s.staff)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = s.do(t, http.MethodGet, "/api/leads/"+id, nil, s.staff)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestCreateLeadRejectsBadInput(t *testing.T) {
	s := newTestServer(t, 10)

	status, body := s.do(t, http.MethodPost, "/api/leads", map[string]string{"formType": "OTHER"}, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, false, decode(t, body)["success"])
}

func TestTemplateNameConflict(t *testing.T) {
	s := newTestServer(t, 10)
	tmpl := map[string]string{"name": "welcome", "subject": "Hi", "body": "Hello {{lead.firstName}}"}

	status, body := s.do(t, http.MethodPost, "/api/templates", tmpl, s.staff)
	require.Equal(t, fiber.StatusCreated, status, string(body))

	status, body = s.do(t, http.MethodPost, "/api/templates", tmpl, s.staff)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "A template with this name already exists", decode(t, body)["error"])
}

func TestQuoteWizardEndpoints(t *testing.T) {
	s := newTestServer(t, 10)

	status, body := s.do(t, http.MethodPost, "/api/quote/drafts", nil, "")
	require.Equal(t, fiber.StatusCreated, status, string(body))
	id, _ := decode(t, body)["data"].(map[string]interface{})["id"].(string)
	require.NotEmpty(t, id)

	status, body = s.do(t, http.MethodPut, "/api/quote/drafts/"+id+"/contact", map[string]string{
		"firstName": "Jane",
		"email":     "not-an-email",
	}, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	fields, _ := decode(t, body)["fields"].(map[string]interface{})
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "lastName")

	status, body = s.do(t, http.MethodPost, "/api/quote/drafts/"+id+"/submit", nil, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	fields, _ = decode(t, body)["fields"].(map[string]interface{})
	assert.Contains(t, fields, "contact")

	status, _ = s.do(t, http.MethodGet, "/api/quote/drafts/"+uuid.NewString(), nil, "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = s.do(t, http.MethodGet, "/api/vin/1HGCM82633A004352", nil, "")
	assert.Equal(t, fiber.StatusBadGateway, status)
}

func TestContactFormEndpoint(t *testing.T) {
	s := newTestServer(t, 10)

	status, body := s.do(t, http.MethodPost, "/api/contact", map[string]string{
		"contactName":    "Mary Ann Smith",
		"contactType":    "email",
		"contactEmail":   "mary@example.com",
		"contactMessage": "Do you ship to Hawaii?",
	}, "")
	require.Equal(t, fiber.StatusCreated, status, string(body))
	data, _ := decode(t, body)["data"].(map[string]interface{})
	assert.Equal(t, true, data["delivered"])
	assert.Equal(t, true, data["recorded"])

	require.Len(t, s.mailer.sent, 1)
	assert.Equal(t, []string{"dispatch@kglogistics.example"}, s.mailer.sent[0].To)

	var lead models.Lead
	require.NoError(t, s.db.First(&lead).Error)
	assert.Equal(t, models.FormTypeContact, lead.FormType)
	assert.Equal(t, "Mary", utils.Deref(lead.FirstName))
}

func TestPublicIntakeIsRateLimited(t *testing.T) {
	s := newTestServer(t, 2)
	for i := 0; i < 2; i++ {
		status, _ := s.do(t, http.MethodPost, "/api/quote/drafts", nil, "")
		require.Equal(t, fiber.StatusCreated, status)
	}
	status, _ := s.do(t, http.MethodPost, "/api/contact", map[string]string{}, "")
	assert.Equal(t, fiber.StatusTooManyRequests, status)
}
