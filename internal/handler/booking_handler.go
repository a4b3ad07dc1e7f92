package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eygar/service-booking/internal/application"
	"github.com/eygar/service-booking/internal/identity"
	"github.com/eygar/service-booking/pkg/auth"
	"github.com/eygar/service-booking/pkg/middleware"
	"github.com/eygar/service-booking/pkg/response"
)

// IdempotencyKeyHeader may carry the idempotency key instead of the request body.
const IdempotencyKeyHeader = "Idempotency-Key"

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	service *application.BookingService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService) *BookingHandler {
	RegisterValidators()
	return &BookingHandler{service: service}
}

// RegisterRoutes registers all booking routes on the given router group. Owner routes
// require a verified user token; payment callbacks and the kiosk require a service token.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, verifier identity.Verifier, serviceTokens *auth.ServiceTokenManager) {
	bookings := r.Group("/api/v1/bookings")

	user := bookings.Group("", identity.Middleware(verifier))
	{
		user.POST("", h.CreateBooking)
		user.GET("/mine", h.ListMyBookings)
		user.GET("/:id", h.GetBooking)
		user.PATCH("/:id", h.UpdateBooking)
		user.POST("/:id/cancel", h.CancelBooking)
		user.DELETE("/:id", h.DeleteBooking)
		user.POST("/:id/checkin", h.CheckInByID)
	}

	system := bookings.Group("", middleware.ServiceAuthMiddleware(serviceTokens))
	{
		system.POST("/:id/payment-success", h.PaymentSuccess)
		system.POST("/checkin", h.KioskCheckIn)
	}
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	caller, ok := identity.FromContext(c)
	if !ok {
		response.Unauthorized(c, "")
		return
	}

	var req application.CreateBookingRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)
	}

	result, err := h.service.CreateBooking(c.Request.Context(), caller.Snapshot(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListMyBookings handles GET /api/v1/bookings/mine.
func (h *BookingHandler) ListMyBookings(c *gin.Context) {
	caller, ok := identity.FromContext(c)
	if !ok {
		response.Unauthorized(c, "")
		return
	}

	limit, offset := parsePagination(c)
	result, err := h.service.ListOwnedBookings(c.Request.Context(), caller.ID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, *result)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	caller, bookingID, ok := callerAndBookingID(c)
	if !ok {
		return
	}

	result, err := h.service.GetOwnedBooking(c.Request.Context(), caller.ID, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

type updateBookingBody struct {
	CheckInDate    *string        `json:"check_in_date"`
	CheckOutDate   *string        `json:"check_out_date"`
	GuestsCount    *int           `json:"guests_count" binding:"omitempty,min=1,max=50"`
	PaymentDetails map[string]any `json:"payment_details"`
	BookingStatus  *string        `json:"booking_status"`
}

// UpdateBooking handles PATCH /api/v1/bookings/:id.
func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	caller, bookingID, ok := callerAndBookingID(c)
	if !ok {
		return
	}

	var body updateBookingBody
	if !bindJSON(c, &body) {
		return
	}
	req := application.UpdateBookingRequest{
		GuestsCount:    body.GuestsCount,
		PaymentDetails: body.PaymentDetails,
		BookingStatus:  body.BookingStatus,
	}
	if body.CheckInDate != nil {
		t, err := parseDate(*body.CheckInDate)
		if err != nil {
			response.ValidationFailed(c, map[string]any{"check_in_date": "date"})
			return
		}
		req.CheckInDate = &t
	}
	if body.CheckOutDate != nil {
		t, err := parseDate(*body.CheckOutDate)
		if err != nil {
			response.ValidationFailed(c, map[string]any{"check_out_date": "date"})
			return
		}
		req.CheckOutDate = &t
	}

	result, err := h.service.UpdateOwnedBooking(c.Request.Context(), caller.ID, bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	caller, bookingID, ok := callerAndBookingID(c)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason" binding:"required,min=2,max=500"`
	}
	if !bindJSON(c, &body) {
		return
	}

	result, err := h.service.CancelOwnedBooking(c.Request.Context(), caller.ID, bookingID, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DeleteBooking handles DELETE /api/v1/bookings/:id.
func (h *BookingHandler) DeleteBooking(c *gin.Context) {
	caller, bookingID, ok := callerAndBookingID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteOwnedBooking(c.Request.Context(), caller.ID, bookingID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"id": bookingID})
}

// CheckInByID handles POST /api/v1/bookings/:id/checkin for the owner or the host.
func (h *BookingHandler) CheckInByID(c *gin.Context) {
	caller, bookingID, ok := callerAndBookingID(c)
	if !ok {
		return
	}

	result, err := h.service.CheckIn(c.Request.Context(), application.CheckInRequest{
		BookingID: bookingID,
		ActorID:   caller.ID,
		HostID:    caller.HostID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// PaymentSuccess handles POST /api/v1/bookings/:id/payment-success.
func (h *BookingHandler) PaymentSuccess(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	var body struct {
		PaymentDetails map[string]any `json:"payment_details"`
	}
	if c.Request.ContentLength != 0 && !bindJSON(c, &body) {
		return
	}

	result, err := h.service.ConfirmPayment(c.Request.Context(), bookingID, body.PaymentDetails)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"success": true, "booking": result})
}

// KioskCheckIn handles POST /api/v1/bookings/checkin with a scanned QR token.
func (h *BookingHandler) KioskCheckIn(c *gin.Context) {
	var body struct {
		Token string `json:"qrcode_token" binding:"required,max=128"`
	}
	if !bindJSON(c, &body) {
		return
	}

	result, err := h.service.CheckIn(c.Request.Context(), application.CheckInRequest{Token: body.Token})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

func callerAndBookingID(c *gin.Context) (*identity.Identity, uuid.UUID, bool) {
	caller, ok := identity.FromContext(c)
	if !ok {
		response.Unauthorized(c, "")
		return nil, uuid.Nil, false
	}
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return nil, uuid.Nil, false
	}
	return caller, bookingID, true
}
