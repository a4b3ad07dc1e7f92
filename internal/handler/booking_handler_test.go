package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/eygar/service-booking/internal/application"
	bookingDomain "github.com/eygar/service-booking/internal/domain/booking"
	"github.com/eygar/service-booking/internal/identity"
	"github.com/eygar/service-booking/internal/qrcode"
	"github.com/eygar/service-booking/internal/repository"
	"github.com/eygar/service-booking/pkg/auth"
)

var handlerNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type stubRenderer struct{}

func (stubRenderer) Render(_ context.Context, id uuid.UUID, token string) (qrcode.Artifact, error) {
	return qrcode.Artifact{URL: qrcode.PublicPath + "/" + qrcode.FileName(id, token)}, nil
}

func (stubRenderer) Discard(context.Context, qrcode.Artifact) error { return nil }

type staticVerifier map[string]*identity.Identity

func (v staticVerifier) Verify(_ context.Context, token string) (*identity.Identity, error) {
	id, ok := v[token]
	if !ok {
		return nil, identity.ErrInvalidToken
	}
	return id, nil
}

type testServer struct {
	router       *gin.Engine
	serviceToken string
	clock        *time.Time
}

func setupRouter(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:booking_handler_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&repository.BookingModel{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	now := handlerNow
	svc := application.NewBookingService(
		repository.NewGormBookingRepository(db),
		bookingDomain.NewRandomTokenGenerator(),
		stubRenderer{},
		nil,
		zap.NewNop(),
	).WithClock(func() time.Time { return now })

	verifier := staticVerifier{
		"owner-token":    {ID: "user-1", Email: "owner@example.com"},
		"stranger-token": {ID: "user-2"},
		"host-token":     {ID: "user-9", HostID: "host-1"},
	}
	tokens := auth.NewServiceTokenManager("test-secret", time.Minute)
	serviceToken, err := tokens.Issue("payment")
	require.NoError(t, err)

	r := gin.New()
	root := r.Group("")
	NewBookingHandler(svc).RegisterRoutes(root, verifier, tokens)
	NewHostBookingHandler(svc).RegisterRoutes(root, verifier)

	return &testServer{router: r, serviceToken: serviceToken, clock: &now}
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func createBody() map[string]any {
	return map[string]any{
		"property_id":       "property-0001",
		"property_snapshot": map[string]any{"host_id": "host-1", "title": "Sea view"},
		"check_in_date":     "2026-06-10T15:00:00Z",
		"check_out_date":    "2026-06-12T11:00:00Z",
		"guests_count":      2,
		"currency":          "USD",
		"nights_stay":       2,
		"price_per_night":   12000,
		"subtotal_amount":   24000,
		"service_fee":       2000,
		"cleaning_fee":      1000,
		"total_amount":      27000,
	}
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (s *testServer) create(t *testing.T) application.BookingDTO {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/v1/bookings", "owner-token", createBody())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[application.BookingDTO](t, rr)
}

func TestCreateBookingHandler(t *testing.T) {
	s := setupRouter(t)

	dto := s.create(t)
	assert.Equal(t, "pending_payment", dto.BookingStatus)
	assert.Equal(t, "user-1", dto.UserID)
	assert.Equal(t, "owner@example.com", dto.UserSnapshot.Email)
	assert.NotEmpty(t, dto.QRCodeToken)

	rr := s.do(t, http.MethodPost, "/api/v1/bookings", "", createBody())
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(t, http.MethodPost, "/api/v1/bookings", "bogus", createBody())
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateBookingHandler_Validation(t *testing.T) {
	s := setupRouter(t)

	body := createBody()
	body["currency"] = "US"
	rr := s.do(t, http.MethodPost, "/api/v1/bookings", "owner-token", body)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	errBody := decode[map[string]any](t, rr)
	assert.Equal(t, "currency3", errBody["details"].(map[string]any)["currency"])

	body = createBody()
	body["total_amount"] = 1
	rr = s.do(t, http.MethodPost, "/api/v1/bookings", "owner-token", body)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "AMOUNT_MISMATCH", decode[map[string]any](t, rr)["code"])

	body = createBody()
	body["guests_count"] = 0
	rr = s.do(t, http.MethodPost, "/api/v1/bookings", "owner-token", body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateBookingHandler_IdempotencyHeader(t *testing.T) {
	s := setupRouter(t)

	rr := s.do(t, http.MethodPost, "/api/v1/bookings", "owner-token", createBody(), IdempotencyKeyHeader, "abc-1")
	require.Equal(t, http.StatusCreated, rr.Code)
	dto := decode[application.BookingDTO](t, rr)
	require.NotNil(t, dto.IdempotencyKey)
	assert.Equal(t, "abc-1", *dto.IdempotencyKey)

	rr = s.do(t, http.MethodPost, "/api/v1/bookings", "owner-token", createBody(), IdempotencyKeyHeader, "abc-1")
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestOwnerRoutes(t *testing.T) {
	s := setupRouter(t)
	dto := s.create(t)
	path := "/api/v1/bookings/" + dto.ID.String()

	rr := s.do(t, http.MethodGet, path, "owner-token", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, http.MethodGet, path, "stranger-token", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(t, http.MethodPatch, path, "stranger-token", map[string]any{"booking_status": "bogus"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(t, http.MethodGet, "/api/v1/bookings/not-a-uuid", "owner-token", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodGet, "/api/v1/bookings/"+uuid.NewString(), "owner-token", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(t, http.MethodGet, "/api/v1/bookings/mine?limit=500", "owner-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[map[string]any](t, rr)
	assert.EqualValues(t, 1, page["total"])
	assert.EqualValues(t, 100, page["limit"])

	rr = s.do(t, http.MethodPatch, path, "owner-token", map[string]any{"check_out_date": "2026-06-14"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[application.BookingDTO](t, rr)
	assert.True(t, time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC).Equal(updated.CheckOutDate))

	rr = s.do(t, http.MethodPatch, path, "owner-token", map[string]any{"check_out_date": "next week"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodPatch, path, "owner-token", map[string]any{"booking_status": "host_approved"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodPost, path+"/cancel", "owner-token", map[string]any{"reason": "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodPost, path+"/cancel", "owner-token", map[string]any{"reason": "plans changed"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "cancelled", decode[application.BookingDTO](t, rr).BookingStatus)

	rr = s.do(t, http.MethodDelete, path, "owner-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, dto.ID.String(), decode[map[string]any](t, rr)["id"])
}

func TestPaymentSuccessHandler(t *testing.T) {
	s := setupRouter(t)
	dto := s.create(t)
	path := "/api/v1/bookings/" + dto.ID.String() + "/payment-success"
	body := map[string]any{"payment_details": map[string]any{"ref": "pi_1"}}

	rr := s.do(t, http.MethodPost, path, "", body)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(t, http.MethodPost, path, "owner-token", body)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "user tokens are not service tokens")

	rr = s.do(t, http.MethodPost, path, "", body, "X-Service-Token", s.serviceToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[struct {
		Success bool                   `json:"success"`
		Booking application.BookingDTO `json:"booking"`
	}](t, rr)
	assert.True(t, resp.Success)
	assert.Equal(t, "payment_confirmed", resp.Booking.BookingStatus)

	rr = s.do(t, http.MethodDelete, "/api/v1/bookings/"+dto.ID.String(), "owner-token", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCheckInHandlers(t *testing.T) {
	s := setupRouter(t)
	dto := s.create(t)

	rr := s.do(t, http.MethodPost, "/api/v1/bookings/checkin", s.serviceToken, map[string]any{"qrcode_token": dto.QRCodeToken})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "before check-in date")

	*s.clock = time.Date(2026, 6, 10, 16, 0, 0, 0, time.UTC)
	rr = s.do(t, http.MethodPost, "/api/v1/bookings/checkin", s.serviceToken, map[string]any{"qrcode_token": dto.QRCodeToken})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "checked_in", decode[application.BookingDTO](t, rr).CheckoutStatus)

	rr = s.do(t, http.MethodPost, "/api/v1/bookings/checkin", s.serviceToken, map[string]any{"qrcode_token": "missing"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	other := s.create(t)
	path := "/api/v1/bookings/" + other.ID.String() + "/checkin"
	rr = s.do(t, http.MethodPost, path, "stranger-token", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = s.do(t, http.MethodPost, path, "host-token", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHostRoutes(t *testing.T) {
	s := setupRouter(t)
	dto := s.create(t)
	base := "/api/v1/bookings/" + dto.ID.String()

	rr := s.do(t, http.MethodGet, "/api/v1/bookings/host/upcoming", "host-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rr)["total"])

	rr = s.do(t, http.MethodGet, "/api/v1/bookings/host/upcoming", "owner-token", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(t, http.MethodPost, base+"/host-approve", "host-token", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "payment not confirmed yet")

	rr = s.do(t, http.MethodPost, base+"/payment-success", s.serviceToken, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(t, http.MethodPost, base+"/host-approve", "owner-token", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "FORBIDDEN", decode[map[string]any](t, rr)["code"])

	rr = s.do(t, http.MethodPost, base+"/host-approve", "host-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decode[map[string]any](t, rr)["success"])

	*s.clock = time.Date(2026, 6, 10, 15, 0, 0, 0, time.UTC)
	rr = s.do(t, http.MethodPost, base+"/checkin", "owner-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, http.MethodPost, base+"/checkout", "host-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = s.do(t, http.MethodPost, base+"/complete", "host-token", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	done := decode[application.BookingDTO](t, rr)
	assert.Equal(t, "completed", done.BookingStatus)
	assert.Equal(t, "completed", done.CheckoutStatus)
}
