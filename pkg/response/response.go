package response

import (
	"errors"
	"net/http"

	"github.com/eygar/service-booking/pkg/domain"
	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON shape of every non-2xx response.
type ErrorBody struct {
	Message string         `json:"message"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// Success writes a 200 response with the given payload.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created writes a 201 response with the given payload.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// Paginated writes a 200 response with a paginated payload.
func Paginated[T any](c *gin.Context, page domain.PaginatedResult[T]) {
	c.JSON(http.StatusOK, page)
}

// BadRequest writes a 400 response.
func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorBody{Message: msg, Code: "BAD_REQUEST"})
}

// ValidationFailed writes a 400 response carrying binding details.
func ValidationFailed(c *gin.Context, details map[string]any) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorBody{
		Message: "Validation error",
		Code:    "BAD_REQUEST",
		Details: details,
	})
}

// Unauthorized writes a 401 response.
func Unauthorized(c *gin.Context, msg string) {
	if msg == "" {
		msg = "Unauthorized"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorBody{Message: msg, Code: "UNAUTHORIZED"})
}

// Forbidden writes a 403 response.
func Forbidden(c *gin.Context, msg string) {
	if msg == "" {
		msg = "Forbidden"
	}
	c.AbortWithStatusJSON(http.StatusForbidden, ErrorBody{Message: msg, Code: "FORBIDDEN"})
}

// Error maps err to a status code and writes the error body.
// Errors that are not domain errors are reported as 500 without leaking their text.
func Error(c *gin.Context, err error) {
	de, ok := asDomainError(err)
	if !ok {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorBody{
			Message: "Internal server error",
			Code:    string(domain.KindInternal),
		})
		return
	}
	if de.Kind == domain.KindStoreUnavailable || de.Kind == domain.KindInternal {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(StatusFor(de.Kind), ErrorBody{
		Message: de.Message,
		Code:    de.Code,
		Details: de.Details,
	})
}

// StatusFor returns the HTTP status code for an error kind.
func StatusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidInput, domain.KindInvalidState:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func asDomainError(err error) (*domain.Error, bool) {
	var de *domain.Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
