package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	bookingDomain "github.com/eygar/service-booking/internal/domain/booking"
	"github.com/eygar/service-booking/pkg/domain"
)

const (
	pgUniqueViolation  = "23505"
	tokenIndexName     = "idx_bookings_qrcode_token"
	idempotencyIdxName = "idx_bookings_user_idempotency"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserID             string         `gorm:"not null;size:64;index;uniqueIndex:idx_bookings_user_idempotency,priority:1"`
	UserSnapshot       datatypes.JSON `gorm:"not null"`
	PropertyID         string         `gorm:"not null;size:64;index"`
	PropertySnapshot   datatypes.JSON `gorm:"not null"`
	HostID             string         `gorm:"size:64;index"`
	CheckInDate        time.Time      `gorm:"not null;index"`
	CheckOutDate       time.Time      `gorm:"not null"`
	GuestsCount        int            `gorm:"not null"`
	Currency           string         `gorm:"not null;size:3"`
	NightsStay         int64          `gorm:"not null"`
	PricePerNight      int64          `gorm:"not null"`
	SubtotalAmount     int64          `gorm:"not null"`
	ServiceFee         int64          `gorm:"not null"`
	CleaningFee        int64          `gorm:"not null"`
	TotalAmount        int64          `gorm:"not null"`
	PaymentDetails     datatypes.JSON `gorm:"not null"`
	BookingStatus      string         `gorm:"not null;size:30;index"`
	CheckoutStatus     string         `gorm:"not null;size:30;index"`
	QRCodeToken        string         `gorm:"column:qrcode_token;not null;size:64;uniqueIndex:idx_bookings_qrcode_token"`
	QRCodeImageURL     string         `gorm:"column:qrcode_image_url;size:500"`
	QRCodeCreatedAt    time.Time      `gorm:"column:qrcode_created_at;not null"`
	QRCodeExpiresAt    time.Time      `gorm:"column:qrcode_expires_at;not null"`
	IdempotencyKey     *string        `gorm:"size:128;uniqueIndex:idx_bookings_user_idempotency,priority:2"`
	CancelledAt        *time.Time     `gorm:""`
	CancellationReason string         `gorm:"size:500"`
	Version            int64          `gorm:"not null;default:1"`
	CreatedAt          time.Time      `gorm:"not null"`
	UpdatedAt          time.Time      `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// Create persists a new booking.
func (r *GormBookingRepository) Create(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return classifyError(err, "create booking")
	}
	return nil
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(id.String())
		}
		return nil, classifyError(err, "find booking by ID")
	}
	return toDomainBooking(&model)
}

// FindByToken retrieves a booking by its QR check-in token.
func (r *GormBookingRepository) FindByToken(ctx context.Context, token string) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("qrcode_token = ?", token).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bookingDomain.ErrBookingNotFound
		}
		return nil, classifyError(err, "find booking by token")
	}
	return toDomainBooking(&model)
}

// ListByOwner retrieves bookings for a specific user, newest first.
func (r *GormBookingRepository) ListByOwner(ctx context.Context, userID string, limit, offset int) ([]*bookingDomain.Booking, int64, error) {
	query := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&BookingModel{}).Where("user_id = ?", userID)
	}
	return r.list(query, "created_at DESC", limit, offset, "owner bookings")
}

// ListByHostUpcoming retrieves bookings on a host's properties where the guest has not
// left yet and the booking is still open, soonest check-in first.
func (r *GormBookingRepository) ListByHostUpcoming(ctx context.Context, hostID string, limit, offset int) ([]*bookingDomain.Booking, int64, error) {
	var upcoming []string
	for _, s := range bookingDomain.UpcomingCheckoutStatuses() {
		upcoming = append(upcoming, string(s))
	}
	closed := []string{
		string(bookingDomain.StatusCancelled),
		string(bookingDomain.StatusExpired),
	}
	query := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&BookingModel{}).
			Where("host_id = ?", hostID).
			Where("checkout_status IN ?", upcoming).
			Where("booking_status NOT IN ?", closed)
	}
	return r.list(query, "check_in_date ASC, created_at DESC", limit, offset, "host upcoming bookings")
}

func (r *GormBookingRepository) list(query func() *gorm.DB, order string, limit, offset int, what string) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, classifyError(err, "count "+what)
	}

	var models []BookingModel
	if err := query().
		Order(order).
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, classifyError(err, "find "+what)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i])
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = bk
	}

	return bookings, total, nil
}

// Update persists changes to an existing booking with optimistic locking. The entity is
// re-validated first so no invalid state reaches the table.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	if err := bk.Validate(); err != nil {
		return err
	}

	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	// IncrementVersion was called before Update, so the stored row holds version - 1.
	expectedVersion := bk.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"check_in_date":       model.CheckInDate,
			"check_out_date":      model.CheckOutDate,
			"guests_count":        model.GuestsCount,
			"payment_details":     model.PaymentDetails,
			"booking_status":      model.BookingStatus,
			"checkout_status":     model.CheckoutStatus,
			"qrcode_image_url":    model.QRCodeImageURL,
			"qrcode_expires_at":   model.QRCodeExpiresAt,
			"cancelled_at":        model.CancelledAt,
			"cancellation_reason": model.CancellationReason,
			"version":             model.Version,
			"updated_at":          model.UpdatedAt,
		})

	if result.Error != nil {
		return classifyError(result.Error, "update booking")
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&BookingModel{}).Where("id = ?", model.ID).Count(&count).Error; err != nil {
			return classifyError(err, "check booking existence")
		}
		if count == 0 {
			return notFound(model.ID.String())
		}
		return bookingDomain.ErrConcurrentModification
	}

	return nil
}

// Delete hard-deletes a booking.
func (r *GormBookingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&BookingModel{})
	if result.Error != nil {
		return classifyError(result.Error, "delete booking")
	}
	if result.RowsAffected == 0 {
		return notFound(id.String())
	}
	return nil
}

// --- Error classification ---

func notFound(id string) error {
	return bookingDomain.ErrBookingNotFound.WithDetails(map[string]any{"id": id})
}

func classifyError(err error, op string) error {
	if dup := uniqueViolation(err); dup != nil {
		return dup
	}
	if isConnectivityError(err) {
		return domain.NewStoreUnavailableError(err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// uniqueViolation maps a unique index rejection to the matching domain conflict, or nil.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return nil
		}
		if pgErr.ConstraintName == tokenIndexName || strings.Contains(pgErr.Detail, "qrcode_token") {
			return bookingDomain.ErrDuplicateToken.Wrap(err)
		}
		return bookingDomain.ErrDuplicateIdempotencyKey.Wrap(err)
	}

	// SQLite reports "UNIQUE constraint failed: bookings.<column>, ...".
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return nil
	}
	if strings.Contains(msg, "qrcode_token") {
		return bookingDomain.ErrDuplicateToken.Wrap(err)
	}
	return bookingDomain.ErrDuplicateIdempotencyKey.Wrap(err)
}

func isConnectivityError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) (*BookingModel, error) {
	userJSON, err := json.Marshal(bk.UserSnapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user snapshot: %w", err)
	}

	propertyJSON, err := json.Marshal(bk.PropertySnapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal property snapshot: %w", err)
	}

	details := bk.PaymentDetails()
	if details == nil {
		details = bookingDomain.PaymentDetails{}
	}
	paymentJSON, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment details: %w", err)
	}

	qr := bk.QRCode()
	return &BookingModel{
		ID:                 bk.ID(),
		UserID:             bk.UserID(),
		UserSnapshot:       datatypes.JSON(userJSON),
		PropertyID:         bk.PropertyID(),
		PropertySnapshot:   datatypes.JSON(propertyJSON),
		HostID:             bk.HostID(),
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
		PaymentDetails:     datatypes.JSON(paymentJSON),
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
	}, nil
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	var user bookingDomain.UserSnapshot
	if err := json.Unmarshal(m.UserSnapshot, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user snapshot: %w", err)
	}

	var property bookingDomain.PropertySnapshot
	if err := json.Unmarshal(m.PropertySnapshot, &property); err != nil {
		return nil, fmt.Errorf("failed to unmarshal property snapshot: %w", err)
	}

	payment := bookingDomain.PaymentDetails{}
	if len(m.PaymentDetails) > 0 {
		if err := json.Unmarshal(m.PaymentDetails, &payment); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payment details: %w", err)
		}
	}

	status, err := bookingDomain.ParseBookingStatus(m.BookingStatus)
	if err != nil {
		return nil, err
	}
	checkout, err := bookingDomain.ParseCheckoutStatus(m.CheckoutStatus)
	if err != nil {
		return nil, err
	}

	return bookingDomain.ReconstructBooking(bookingDomain.State{
		ID:               m.ID,
		UserID:           m.UserID,
		UserSnapshot:     user,
		PropertyID:       m.PropertyID,
		PropertySnapshot: property,
		CheckInDate:      m.CheckInDate.UTC(),
		CheckOutDate:     m.CheckOutDate.UTC(),
		GuestsCount:      m.GuestsCount,
		Currency:         m.Currency,
		NightsStay:       m.NightsStay,
		PricePerNight:    m.PricePerNight,
		SubtotalAmount:   m.SubtotalAmount,
		ServiceFee:       m.ServiceFee,
		CleaningFee:      m.CleaningFee,
		TotalAmount:      m.TotalAmount,
		PaymentDetails:   payment,
		BookingStatus:    status,
		CheckoutStatus:   checkout,
		QRCode: bookingDomain.QRCode{
			Token:     m.QRCodeToken,
			ImageURL:  m.QRCodeImageURL,
			CreatedAt: m.QRCodeCreatedAt.UTC(),
			ExpiresAt: m.QRCodeExpiresAt.UTC(),
		},
		IdempotencyKey:     m.IdempotencyKey,
		CancelledAt:        m.CancelledAt,
		CancellationReason: m.CancellationReason,
		Version:            m.Version,
		CreatedAt:          m.CreatedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
	}), nil
}
