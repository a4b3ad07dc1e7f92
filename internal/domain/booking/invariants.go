package booking

import (
	"fmt"
	"strings"
	"time"
)

// ValidateDateOrder requires checkOut to be strictly after checkIn.
func ValidateDateOrder(checkIn, checkOut time.Time) error {
	if checkIn.IsZero() || checkOut.IsZero() {
		return ErrMissingField.WithMessage("check_in_date and check_out_date are required")
	}
	if !checkOut.After(checkIn) {
		return ErrInvalidDateRange.WithDetails(map[string]any{
			"check_in_date":  checkIn.UTC().Format(time.RFC3339),
			"check_out_date": checkOut.UTC().Format(time.RFC3339),
		})
	}
	return nil
}

// ValidateAmounts requires subtotal + serviceFee + cleaningFee == total exactly, in minor units.
func ValidateAmounts(subtotal, serviceFee, cleaningFee, total int64) error {
	if subtotal < 0 || serviceFee < 0 || cleaningFee < 0 || total < 0 {
		return ErrInvalidAmount
	}
	expected := subtotal + serviceFee + cleaningFee
	if expected != total {
		return ErrAmountMismatch.WithDetails(map[string]any{
			"subtotal_amount": subtotal,
			"service_fee":     serviceFee,
			"cleaning_fee":    cleaningFee,
			"total_amount":    total,
			"expected_total":  expected,
		})
	}
	return nil
}

// ValidateCheckInEligibility requires now to be at or after checkInDate.
func ValidateCheckInEligibility(checkInDate, now time.Time) error {
	if now.Before(checkInDate) {
		return ErrTooEarlyForCheckIn.WithDetails(map[string]any{
			"check_in_date": checkInDate.UTC().Format(time.RFC3339),
			"now":           now.UTC().Format(time.RFC3339),
		})
	}
	return nil
}

// ValidateGuests requires at least one guest.
func ValidateGuests(guests int) error {
	if guests < 1 {
		return ErrInvalidGuests
	}
	return nil
}

// NormalizeCurrency upper-cases a 3-letter ASCII currency code.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", ErrInvalidCurrency.WithMessage(fmt.Sprintf("currency must be a 3-letter code, got %q", code))
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency.WithMessage(fmt.Sprintf("currency must be a 3-letter code, got %q", code))
		}
	}
	return code, nil
}
