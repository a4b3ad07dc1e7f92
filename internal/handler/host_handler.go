package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/eygar/service-booking/internal/application"
	"github.com/eygar/service-booking/internal/identity"
	"github.com/eygar/service-booking/pkg/response"
)

// HostBookingHandler handles HTTP requests from hosts about bookings on their properties.
type HostBookingHandler struct {
	service *application.BookingService
}

// NewHostBookingHandler creates a new HostBookingHandler.
func NewHostBookingHandler(service *application.BookingService) *HostBookingHandler {
	return &HostBookingHandler{service: service}
}

// RegisterRoutes registers host booking routes.
func (h *HostBookingHandler) RegisterRoutes(r *gin.RouterGroup, verifier identity.Verifier) {
	host := r.Group("/api/v1/bookings")
	host.Use(identity.Middleware(verifier), requireHost())
	{
		host.GET("/host/upcoming", h.ListUpcoming)
		host.POST("/:id/host-approve", h.Approve)
		host.POST("/:id/checkout", h.CheckOut)
		host.POST("/:id/complete", h.Complete)
	}
}

// requireHost rejects callers without a host account before any booking is loaded.
func requireHost() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := identity.FromContext(c)
		if !ok {
			response.Unauthorized(c, "")
			return
		}
		if !caller.IsHost() {
			response.Forbidden(c, "host account required")
			return
		}
		c.Next()
	}
}

// ListUpcoming handles GET /api/v1/bookings/host/upcoming.
func (h *HostBookingHandler) ListUpcoming(c *gin.Context) {
	caller, ok := identity.FromContext(c)
	if !ok {
		response.Unauthorized(c, "")
		return
	}

	limit, offset := parsePagination(c)
	result, err := h.service.ListHostUpcoming(c.Request.Context(), caller.HostID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, *result)
}

// Approve handles POST /api/v1/bookings/:id/host-approve.
func (h *HostBookingHandler) Approve(c *gin.Context) {
	caller, bookingID, ok := callerAndBookingID(c)
	if !ok {
		return
	}

	result, err := h.service.HostApproveBooking(c.Request.Context(), caller.HostID, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"success": true, "booking": result})
}

// CheckOut handles POST /api/v1/bookings/:id/checkout.
func (h *HostBookingHandler) CheckOut(c *gin.Context) {
	caller, bookingID, ok := callerAndBookingID(c)
	if !ok {
		return
	}

	result, err := h.service.CheckOutBooking(c.Request.Context(), caller.HostID, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Complete handles POST /api/v1/bookings/:id/complete.
func (h *HostBookingHandler) Complete(c *gin.Context) {
	caller, bookingID, ok := callerAndBookingID(c)
	if !ok {
		return
	}

	result, err := h.service.CompleteBooking(c.Request.Context(), caller.HostID, bookingID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
