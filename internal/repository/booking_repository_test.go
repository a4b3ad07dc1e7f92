package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	bookingDomain "github.com/eygar/service-booking/internal/domain/booking"
)

var repoNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:booking_repo_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&BookingModel{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type bookingOpts struct {
	userID  string
	hostID  string
	token   string
	idemKey string
	checkIn time.Time
	created time.Time
}

func makeBooking(t *testing.T, o bookingOpts) *bookingDomain.Booking {
	t.Helper()
	if o.userID == "" {
		o.userID = "user-1"
	}
	if o.hostID == "" {
		o.hostID = "host-1"
	}
	if o.token == "" {
		o.token = uuid.NewString()
	}
	if o.checkIn.IsZero() {
		o.checkIn = repoNow.Add(72 * time.Hour)
	}
	if o.created.IsZero() {
		o.created = repoNow
	}
	bk, err := bookingDomain.NewBooking(bookingDomain.NewBookingParams{
		ID:               uuid.New(),
		User:             bookingDomain.UserSnapshot{ID: o.userID, Email: o.userID + "@example.com"},
		PropertyID:       "prop-1",
		PropertySnapshot: bookingDomain.PropertySnapshot{"host_id": o.hostID, "title": "Cabin"},
		CheckInDate:      o.checkIn,
		CheckOutDate:     o.checkIn.Add(48 * time.Hour),
		GuestsCount:      2,
		Currency:         "EUR",
		NightsStay:       2,
		PricePerNight:    5000,
		SubtotalAmount:   10000,
		ServiceFee:       1000,
		CleaningFee:      500,
		TotalAmount:      11500,
		IdempotencyKey:   o.idemKey,
		QRCode: bookingDomain.QRCode{
			Token:     o.token,
			ImageURL:  "/static/qrcodes/" + o.token + ".png",
			CreatedAt: o.created,
			ExpiresAt: o.checkIn.Add(48 * time.Hour),
		},
		Now: o.created,
	})
	require.NoError(t, err)
	return bk
}

func TestCreateAndFind(t *testing.T) {
	repo := NewGormBookingRepository(setupTestDB(t))
	ctx := context.Background()
	bk := makeBooking(t, bookingOpts{idemKey: "k-1"})

	require.NoError(t, repo.Create(ctx, bk))

	got, err := repo.FindByID(ctx, bk.ID())
	require.NoError(t, err)
	assert.Equal(t, bk.ID(), got.ID())
	assert.Equal(t, "user-1", got.UserID())
	assert.Equal(t, "host-1", got.HostID())
	assert.Equal(t, bookingDomain.StatusPendingPayment, got.BookingStatus())
	assert.Equal(t, bookingDomain.CheckoutNotCheckedIn, got.CheckoutStatus())
	assert.Equal(t, int64(11500), got.TotalAmount())
	assert.True(t, bk.CheckInDate().Equal(got.CheckInDate()))
	require.NotNil(t, got.IdempotencyKey())
	assert.Equal(t, "k-1", *got.IdempotencyKey())

	byToken, err := repo.FindByToken(ctx, bk.QRCode().Token)
	require.NoError(t, err)
	assert.Equal(t, bk.ID(), byToken.ID())
}

func TestFind_NotFound(t *testing.T) {
	repo := NewGormBookingRepository(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, bookingDomain.ErrBookingNotFound)

	_, err = repo.FindByToken(ctx, "missing")
	assert.ErrorIs(t, err, bookingDomain.ErrBookingNotFound)
}

func TestCreate_DuplicateToken(t *testing.T) {
	repo := NewGormBookingRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, makeBooking(t, bookingOpts{token: "same"})))
	err := repo.Create(ctx, makeBooking(t, bookingOpts{token: "same", userID: "user-2"}))
	assert.ErrorIs(t, err, bookingDomain.ErrDuplicateToken)
}

func TestCreate_DuplicateIdempotencyKey(t *testing.T) {
	repo := NewGormBookingRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, makeBooking(t, bookingOpts{idemKey: "k"})))
	err := repo.Create(ctx, makeBooking(t, bookingOpts{idemKey: "k"}))
	assert.ErrorIs(t, err, bookingDomain.ErrDuplicateIdempotencyKey)

	// Keys are scoped per user, and bookings without a key never collide.
	assert.NoError(t, repo.Create(ctx, makeBooking(t, bookingOpts{idemKey: "k", userID: "user-2"})))
	assert.NoError(t, repo.Create(ctx, makeBooking(t, bookingOpts{})))
	assert.NoError(t, repo.Create(ctx, makeBooking(t, bookingOpts{})))
}

func TestListByOwner(t *testing.T) {
	repo := NewGormBookingRepository(setupTestDB(t))
	ctx := context.Background()

	older := makeBooking(t, bookingOpts{created: repoNow})
	newer := makeBooking(t, bookingOpts{created: repoNow.Add(time.Hour)})
	other := makeBooking(t, bookingOpts{userID: "user-2"})
	for _, bk := range []*bookingDomain.Booking{older, newer, other} {
		require.NoError(t, repo.Create(ctx, bk))
	}

	items, total, err := repo.ListByOwner(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	assert.Equal(t, newer.ID(), items[0].ID())
	assert.Equal(t, older.ID(), items[1].ID())

	items, total, err = repo.ListByOwner(ctx, "user-1", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 1)
	assert.Equal(t, older.ID(), items[0].ID())
}

func TestListByHostUpcoming(t *testing.T) {
	repo := NewGormBookingRepository(setupTestDB(t))
	ctx := context.Background()

	late := makeBooking(t, bookingOpts{checkIn: repoNow.Add(96 * time.Hour)})
	soon := makeBooking(t, bookingOpts{checkIn: repoNow.Add(24 * time.Hour)})
	cancelled := makeBooking(t, bookingOpts{checkIn: repoNow.Add(48 * time.Hour)})
	_, err := cancelled.Cancel("", repoNow)
	require.NoError(t, err)
	otherHost := makeBooking(t, bookingOpts{hostID: "host-2"})

	for _, bk := range []*bookingDomain.Booking{late, soon, cancelled, otherHost} {
		require.NoError(t, repo.Create(ctx, bk))
	}

	items, total, err := repo.ListByHostUpcoming(ctx, "host-1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	assert.Equal(t, soon.ID(), items[0].ID())
	assert.Equal(t, late.ID(), items[1].ID())
}

func TestUpdate_OptimisticLocking(t *testing.T) {
	repo := NewGormBookingRepository(setupTestDB(t))
	ctx := context.Background()
	bk := makeBooking(t, bookingOpts{})
	require.NoError(t, repo.Create(ctx, bk))

	first, err := repo.FindByID(ctx, bk.ID())
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, bk.ID())
	require.NoError(t, err)

	require.True(t, first.ConfirmPayment(bookingDomain.PaymentDetails{"ref": "a"}, repoNow))
	first.IncrementVersion()
	require.NoError(t, repo.Update(ctx, first))

	_, err = second.Cancel("late", repoNow)
	require.NoError(t, err)
	second.IncrementVersion()
	assert.ErrorIs(t, repo.Update(ctx, second), bookingDomain.ErrConcurrentModification)

	stored, err := repo.FindByID(ctx, bk.ID())
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusPaymentConfirmed, stored.BookingStatus())
	assert.Equal(t, "a", stored.PaymentDetails()["ref"])
	assert.Equal(t, int64(2), stored.Version())
}

func TestUpdate_NotFound(t *testing.T) {
	repo := NewGormBookingRepository(setupTestDB(t))
	bk := makeBooking(t, bookingOpts{})
	bk.IncrementVersion()

	assert.ErrorIs(t, repo.Update(context.Background(), bk), bookingDomain.ErrBookingNotFound)
}

func TestDelete(t *testing.T) {
	repo := NewGormBookingRepository(setupTestDB(t))
	ctx := context.Background()
	bk := makeBooking(t, bookingOpts{})
	require.NoError(t, repo.Create(ctx, bk))

	require.NoError(t, repo.Delete(ctx, bk.ID()))
	_, err := repo.FindByID(ctx, bk.ID())
	assert.ErrorIs(t, err, bookingDomain.ErrBookingNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, bk.ID()), bookingDomain.ErrBookingNotFound)
}
