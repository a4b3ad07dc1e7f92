package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/eygar/service-booking/internal/domain/booking"
	"github.com/eygar/service-booking/internal/qrcode"
	"github.com/eygar/service-booking/pkg/domain"
	"github.com/eygar/service-booking/pkg/events"
	"github.com/eygar/service-booking/pkg/kafka"
)

const (
	eventSource = "service-booking"

	// MaxListLimit bounds a single page of bookings.
	MaxListLimit = 100

	maxConflictRetries = 3
)

// EventPublisher publishes CloudEvents. *kafka.Producer satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, evt kafka.CloudEvent) error
}

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	PropertyID       string         `json:"property_id" binding:"required,min=8,max=64"`
	PropertySnapshot map[string]any `json:"property_snapshot" binding:"required"`
	CheckInDate      time.Time      `json:"check_in_date" binding:"required"`
	CheckOutDate     time.Time      `json:"check_out_date" binding:"required"`
	GuestsCount      int            `json:"guests_count" binding:"required,min=1,max=50"`
	Currency         string         `json:"currency" binding:"required,currency3"`
	NightsStay       int64          `json:"nights_stay" binding:"min=0"`
	PricePerNight    int64          `json:"price_per_night" binding:"min=0"`
	SubtotalAmount   int64          `json:"subtotal_amount" binding:"min=0"`
	ServiceFee       int64          `json:"service_fee" binding:"min=0"`
	CleaningFee      int64          `json:"cleaning_fee" binding:"min=0"`
	TotalAmount      int64          `json:"total_amount" binding:"min=0"`
	PaymentDetails   map[string]any `json:"payment_details"`
	IdempotencyKey   string         `json:"idempotency_key" binding:"omitempty,max=128"`
}

// UpdateBookingRequest is an owner patch. Nil fields are left untouched.
type UpdateBookingRequest struct {
	CheckInDate    *time.Time     `json:"check_in_date"`
	CheckOutDate   *time.Time     `json:"check_out_date"`
	GuestsCount    *int           `json:"guests_count" binding:"omitempty,min=1,max=50"`
	PaymentDetails map[string]any `json:"payment_details"`
	BookingStatus  *string        `json:"booking_status"`
}

// CheckInRequest identifies the booking to check in: by QR token (kiosk), or by id on
// behalf of the owner or the property's host.
type CheckInRequest struct {
	Token     string
	BookingID uuid.UUID
	ActorID   string
	HostID    string
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID                 uuid.UUID                      `json:"id"`
	UserID             string                         `json:"user_id"`
	UserSnapshot       bookingDomain.UserSnapshot     `json:"user_snapshot"`
	PropertyID         string                         `json:"property_id"`
	PropertySnapshot   bookingDomain.PropertySnapshot `json:"property_snapshot"`
	CheckInDate        time.Time                      `json:"check_in_date"`
	CheckOutDate       time.Time                      `json:"check_out_date"`
	GuestsCount        int                            `json:"guests_count"`
	Currency           string                         `json:"currency"`
	NightsStay         int64                          `json:"nights_stay"`
	PricePerNight      int64                          `json:"price_per_night"`
	SubtotalAmount     int64                          `json:"subtotal_amount"`
	ServiceFee         int64                          `json:"service_fee"`
	CleaningFee        int64                          `json:"cleaning_fee"`
	TotalAmount        int64                          `json:"total_amount"`
	PaymentDetails     bookingDomain.PaymentDetails   `json:"payment_details"`
	BookingStatus      string                         `json:"booking_status"`
	CheckoutStatus     string                         `json:"checkout_status"`
	QRCodeToken        string                         `json:"qrcode_token"`
	QRCodeImageURL     string                         `json:"qrcode_image_url"`
	QRCodeCreatedAt    time.Time                      `json:"qrcode_created_at"`
	QRCodeExpiresAt    time.Time                      `json:"qrcode_expires_at"`
	IdempotencyKey     *string                        `json:"idempotency_key,omitempty"`
	CancelledAt        *time.Time                     `json:"cancelled_at,omitempty"`
	CancellationReason string                         `json:"cancellation_reason,omitempty"`
	Version            int64                          `json:"version"`
	CreatedAt          time.Time                      `json:"created_at"`
	UpdatedAt          time.Time                      `json:"updated_at"`
}

// BookingService is the application service orchestrating booking use cases.
type BookingService struct {
	repo      bookingDomain.BookingRepository
	tokens    bookingDomain.TokenGenerator
	renderer  qrcode.Renderer
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewBookingService creates a new BookingService. publisher may be nil.
func NewBookingService(
	repo bookingDomain.BookingRepository,
	tokens bookingDomain.TokenGenerator,
	renderer qrcode.Renderer,
	publisher EventPublisher,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		repo:      repo,
		tokens:    tokens,
		renderer:  renderer,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests and the expiry job.
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

// CreateBooking validates the request, issues a unique QR token and persists the booking
// in pending_payment / not_checked_in. The id is generated up front so the QR payload can
// reference it. A token collision regenerates the token, at most MaxTokenAttempts times.
func (s *BookingService) CreateBooking(ctx context.Context, user bookingDomain.UserSnapshot, req CreateBookingRequest) (*BookingDTO, error) {
	if user.ID == "" {
		return nil, domain.NewUnauthorizedError("Unauthorized")
	}

	now := s.now().UTC()
	params := bookingDomain.NewBookingParams{
		ID:               uuid.New(),
		User:             user,
		PropertyID:       req.PropertyID,
		PropertySnapshot: req.PropertySnapshot,
		CheckInDate:      req.CheckInDate,
		CheckOutDate:     req.CheckOutDate,
		GuestsCount:      req.GuestsCount,
		Currency:         req.Currency,
		NightsStay:       req.NightsStay,
		PricePerNight:    req.PricePerNight,
		SubtotalAmount:   req.SubtotalAmount,
		ServiceFee:       req.ServiceFee,
		CleaningFee:      req.CleaningFee,
		TotalAmount:      req.TotalAmount,
		PaymentDetails:   req.PaymentDetails,
		IdempotencyKey:   req.IdempotencyKey,
		Now:              now,
	}

	for attempt := 1; attempt <= bookingDomain.MaxTokenAttempts; attempt++ {
		token, err := s.tokens.Generate()
		if err != nil {
			return nil, err
		}
		params.QRCode = bookingDomain.QRCode{
			Token:     token,
			CreatedAt: now,
			ExpiresAt: req.CheckOutDate.UTC(),
		}

		bk, err := bookingDomain.NewBooking(params)
		if err != nil {
			return nil, err
		}

		artifact, err := s.renderer.Render(ctx, bk.ID(), token)
		if err != nil {
			return nil, fmt.Errorf("failed to render qrcode: %w", err)
		}
		bk.AttachQRCodeImage(artifact.URL)

		err = s.repo.Create(ctx, bk)
		if err == nil {
			s.logger.Info("booking created",
				zap.String("booking_id", bk.ID().String()),
				zap.String("user_id", bk.UserID()),
				zap.String("property_id", bk.PropertyID()),
				zap.Int("token_attempts", attempt),
			)
			s.publishLifecycle(ctx, events.BookingCreated, bk, "")
			result := toBookingDTO(bk)
			return &result, nil
		}

		s.discardArtifact(ctx, artifact)
		if !errors.Is(err, bookingDomain.ErrDuplicateToken) {
			return nil, err
		}
		s.logger.Warn("qrcode token collision, regenerating",
			zap.String("booking_id", bk.ID().String()),
			zap.Int("attempt", attempt),
		)
	}

	return nil, bookingDomain.ErrTokenExhausted
}

// GetOwnedBooking returns a booking owned by userID.
func (s *BookingService) GetOwnedBooking(ctx context.Context, userID string, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.loadOwned(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// ListOwnedBookings returns a page of the user's bookings, newest first.
func (s *BookingService) ListOwnedBookings(ctx context.Context, userID string, limit, offset int) (*domain.PaginatedResult[BookingDTO], error) {
	if err := validatePage(limit, offset); err != nil {
		return nil, err
	}
	bookings, total, err := s.repo.ListByOwner(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, limit, offset)
	return &result, nil
}

// UpdateOwnedBooking applies an owner patch. The patch is validated as a whole against
// the merged state; nothing is written unless every check passes.
func (s *BookingService) UpdateOwnedBooking(ctx context.Context, userID string, bookingID uuid.UUID, req UpdateBookingRequest) (*BookingDTO, error) {
	patch := bookingDomain.OwnerPatch{
		CheckInDate:    req.CheckInDate,
		CheckOutDate:   req.CheckOutDate,
		GuestsCount:    req.GuestsCount,
		PaymentDetails: req.PaymentDetails,
	}
	if req.BookingStatus != nil {
		// Validated by ApplyOwnerUpdate, after ownership has been checked.
		status := bookingDomain.BookingStatus(*req.BookingStatus)
		patch.BookingStatus = &status
	}

	bk, changed, err := s.mutate(ctx, s.ownedLoader(userID, bookingID), func(bk *bookingDomain.Booking) (bool, error) {
		if patch.IsEmpty() {
			return false, nil
		}
		return true, bk.ApplyOwnerUpdate(patch, s.now())
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.publishLifecycle(ctx, events.BookingUpdated, bk, "")
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// CancelOwnedBooking cancels the user's booking. Cancelling a cancelled booking returns
// it unchanged.
func (s *BookingService) CancelOwnedBooking(ctx context.Context, userID string, bookingID uuid.UUID, reason string) (*BookingDTO, error) {
	bk, changed, err := s.mutate(ctx, s.ownedLoader(userID, bookingID), func(bk *bookingDomain.Booking) (bool, error) {
		return bk.Cancel(reason, s.now())
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info("booking cancelled",
			zap.String("booking_id", bk.ID().String()),
			zap.String("user_id", userID),
		)
		s.publishLifecycle(ctx, events.BookingCancelled, bk, reason)
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// DeleteOwnedBooking hard-deletes the user's booking while it is not yet owner-confirmed.
func (s *BookingService) DeleteOwnedBooking(ctx context.Context, userID string, bookingID uuid.UUID) error {
	bk, err := s.loadOwned(ctx, userID, bookingID)
	if err != nil {
		return err
	}
	if err := bk.EnsureDeletable(); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, bookingID); err != nil {
		return err
	}
	s.logger.Info("booking deleted", zap.String("booking_id", bookingID.String()), zap.String("user_id", userID))
	s.publishLifecycle(ctx, events.BookingDeleted, bk, "")
	return nil
}

// ConfirmPayment records a successful payment. It performs no ownership check and is a
// no-op for bookings that are closed or already past payment.
func (s *BookingService) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, details map[string]any) (*BookingDTO, error) {
	bk, changed, err := s.mutate(ctx, s.idLoader(bookingID), func(bk *bookingDomain.Booking) (bool, error) {
		return bk.ConfirmPayment(details, s.now()), nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info("booking payment confirmed", zap.String("booking_id", bookingID.String()))
		s.publishLifecycle(ctx, events.BookingPaymentConfirmed, bk, "")
	} else {
		s.logger.Debug("payment confirmation ignored",
			zap.String("booking_id", bookingID.String()),
			zap.String("booking_status", string(bk.BookingStatus())),
		)
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// CheckIn marks the guest as arrived, gated on checkout_status and the check-in date.
func (s *BookingService) CheckIn(ctx context.Context, req CheckInRequest) (*BookingDTO, error) {
	var load loader
	switch {
	case req.Token != "":
		load = func(ctx context.Context) (*bookingDomain.Booking, error) {
			return s.repo.FindByToken(ctx, req.Token)
		}
	case req.BookingID != uuid.Nil:
		load = func(ctx context.Context) (*bookingDomain.Booking, error) {
			bk, err := s.repo.FindByID(ctx, req.BookingID)
			if err != nil {
				return nil, err
			}
			if !bk.IsOwnedBy(req.ActorID) && !bk.IsHostedBy(req.HostID) {
				return nil, bookingDomain.ErrNotOwner
			}
			return bk, nil
		}
	default:
		return nil, bookingDomain.ErrMissingField.WithMessage("qrcode_token or booking id is required")
	}

	bk, _, err := s.mutate(ctx, load, func(bk *bookingDomain.Booking) (bool, error) {
		return true, bk.CheckIn(s.now())
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("guest checked in", zap.String("booking_id", bk.ID().String()))
	s.publishLifecycle(ctx, events.BookingCheckedIn, bk, "")
	result := toBookingDTO(bk)
	return &result, nil
}

// HostApproveBooking approves a payment_confirmed booking on one of the host's properties.
func (s *BookingService) HostApproveBooking(ctx context.Context, hostID string, bookingID uuid.UUID) (*BookingDTO, error) {
	return s.hostTransition(ctx, hostID, bookingID, events.BookingHostApproved, func(bk *bookingDomain.Booking) error {
		return bk.ApproveByHost(hostID, s.now())
	})
}

// CheckOutBooking marks the guest as departed.
func (s *BookingService) CheckOutBooking(ctx context.Context, hostID string, bookingID uuid.UUID) (*BookingDTO, error) {
	return s.hostTransition(ctx, hostID, bookingID, events.BookingCheckedOut, func(bk *bookingDomain.Booking) error {
		return bk.CheckOut(s.now())
	})
}

// CompleteBooking closes a checked-out stay.
func (s *BookingService) CompleteBooking(ctx context.Context, hostID string, bookingID uuid.UUID) (*BookingDTO, error) {
	return s.hostTransition(ctx, hostID, bookingID, events.BookingCompleted, func(bk *bookingDomain.Booking) error {
		return bk.Complete(s.now())
	})
}

// ExpireBooking moves a booking to expired. The time-based trigger lives outside the service.
func (s *BookingService) ExpireBooking(ctx context.Context, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, changed, err := s.mutate(ctx, s.idLoader(bookingID), func(bk *bookingDomain.Booking) (bool, error) {
		return bk.Expire(s.now())
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info("booking expired", zap.String("booking_id", bookingID.String()))
		s.publishLifecycle(ctx, events.BookingExpired, bk, "")
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// ListHostUpcoming returns open bookings on the host's properties, soonest check-in first.
func (s *BookingService) ListHostUpcoming(ctx context.Context, hostID string, limit, offset int) (*domain.PaginatedResult[BookingDTO], error) {
	if hostID == "" {
		return nil, bookingDomain.ErrNotHost.WithMessage("caller has no host account")
	}
	if err := validatePage(limit, offset); err != nil {
		return nil, err
	}
	bookings, total, err := s.repo.ListByHostUpcoming(ctx, hostID, limit, offset)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, limit, offset)
	return &result, nil
}

// --- Helpers ---

type loader func(ctx context.Context) (*bookingDomain.Booking, error)

func (s *BookingService) idLoader(id uuid.UUID) loader {
	return func(ctx context.Context) (*bookingDomain.Booking, error) {
		return s.repo.FindByID(ctx, id)
	}
}

func (s *BookingService) ownedLoader(userID string, id uuid.UUID) loader {
	return func(ctx context.Context) (*bookingDomain.Booking, error) {
		return s.loadOwned(ctx, userID, id)
	}
}

func (s *BookingService) loadOwned(ctx context.Context, userID string, id uuid.UUID) (*bookingDomain.Booking, error) {
	bk, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !bk.IsOwnedBy(userID) {
		return nil, bookingDomain.ErrNotOwner
	}
	return bk, nil
}

// mutate loads a booking, applies fn and persists the result with optimistic locking.
// A lost race reloads and re-applies fn, so every check runs against the stored state.
func (s *BookingService) mutate(ctx context.Context, load loader, fn func(*bookingDomain.Booking) (bool, error)) (*bookingDomain.Booking, bool, error) {
	for attempt := 1; ; attempt++ {
		bk, err := load(ctx)
		if err != nil {
			return nil, false, err
		}
		changed, err := fn(bk)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return bk, false, nil
		}

		bk.IncrementVersion()
		err = s.repo.Update(ctx, bk)
		if err == nil {
			return bk, true, nil
		}
		if !errors.Is(err, bookingDomain.ErrConcurrentModification) || attempt >= maxConflictRetries {
			return nil, false, err
		}
		s.logger.Debug("booking modified concurrently, retrying",
			zap.String("booking_id", bk.ID().String()),
			zap.Int("attempt", attempt),
		)
	}
}

func (s *BookingService) hostTransition(ctx context.Context, hostID string, bookingID uuid.UUID, eventType string, fn func(*bookingDomain.Booking) error) (*BookingDTO, error) {
	if hostID == "" {
		return nil, bookingDomain.ErrNotHost.WithMessage("caller has no host account")
	}
	bk, _, err := s.mutate(ctx, s.idLoader(bookingID), func(bk *bookingDomain.Booking) (bool, error) {
		if !bk.IsHostedBy(hostID) {
			return false, bookingDomain.ErrNotHost
		}
		return true, fn(bk)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("host transition applied",
		zap.String("booking_id", bookingID.String()),
		zap.String("host_id", hostID),
		zap.String("event_type", eventType),
	)
	s.publishLifecycle(ctx, eventType, bk, "")
	result := toBookingDTO(bk)
	return &result, nil
}

func validatePage(limit, offset int) error {
	if limit < 1 || limit > MaxListLimit {
		return domain.NewValidationError(fmt.Sprintf("limit must be between 1 and %d", MaxListLimit))
	}
	if offset < 0 {
		return domain.NewValidationError("offset must be non-negative")
	}
	return nil
}

func (s *BookingService) discardArtifact(ctx context.Context, artifact qrcode.Artifact) {
	if err := s.renderer.Discard(ctx, artifact); err != nil {
		s.logger.Warn("failed to discard qrcode artifact", zap.String("path", artifact.Path), zap.Error(err))
	}
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	qr := bk.QRCode()
	return BookingDTO{
		ID:                 bk.ID(),
		UserID:             bk.UserID(),
		UserSnapshot:       bk.UserSnapshot(),
		PropertyID:         bk.PropertyID(),
		PropertySnapshot:   bk.PropertySnapshot(),
		CheckInDate:        bk.CheckInDate(),
		CheckOutDate:       bk.CheckOutDate(),
		GuestsCount:        bk.GuestsCount(),
		Currency:           bk.Currency(),
		NightsStay:         bk.NightsStay(),
		PricePerNight:      bk.PricePerNight(),
		SubtotalAmount:     bk.SubtotalAmount(),
		ServiceFee:         bk.ServiceFee(),
		CleaningFee:        bk.CleaningFee(),
		TotalAmount:        bk.TotalAmount(),
		PaymentDetails:     bk.PaymentDetails(),
		BookingStatus:      string(bk.BookingStatus()),
		CheckoutStatus:     string(bk.CheckoutStatus()),
		QRCodeToken:        qr.Token,
		QRCodeImageURL:     qr.ImageURL,
		QRCodeCreatedAt:    qr.CreatedAt,
		QRCodeExpiresAt:    qr.ExpiresAt,
		IdempotencyKey:     bk.IdempotencyKey(),
		CancelledAt:        bk.CancelledAt(),
		CancellationReason: bk.CancellationReason(),
		Version:            bk.Version(),
		CreatedAt:          bk.CreatedAt(),
		UpdatedAt:          bk.UpdatedAt(),
	}
}

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos
}

func (s *BookingService) publishLifecycle(ctx context.Context, eventType string, bk *bookingDomain.Booking, reason string) {
	evt := events.BookingLifecycleEvent{
		BookingID:      bk.ID(),
		UserID:         bk.UserID(),
		PropertyID:     bk.PropertyID(),
		HostID:         bk.HostID(),
		BookingStatus:  string(bk.BookingStatus()),
		CheckoutStatus: string(bk.CheckoutStatus()),
		CheckInDate:    bk.CheckInDate(),
		CheckOutDate:   bk.CheckOutDate(),
		TotalAmount:    bk.TotalAmount(),
		Currency:       bk.Currency(),
		Reason:         reason,
		OccurredAt:     s.now().UTC(),
	}
	s.publishEvent(ctx, events.TopicBookingEvents, eventType, bk.ID().String(), evt)
}

func (s *BookingService) publishEvent(ctx context.Context, topic, eventType, subject string, data interface{}) {
	if s.publisher == nil {
		return
	}
	cloudEvent, err := kafka.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	cloudEvent.Subject = subject

	if err := s.publisher.PublishEvent(ctx, topic, cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
