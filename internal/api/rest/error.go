package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/maincard-gg/card-arena/internal/domain"
	"github.com/maincard-gg/card-arena/internal/logger"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	errCodeBadRequest       ErrorCode = "bad_request"
	errCodeNotFound         ErrorCode = "not_found"
	errCodeValidationFailed ErrorCode = "validation_failed"
	errCodeInternalError    ErrorCode = "internal_error"
)

// errorResponse represents a standardized error response
type errorResponse struct {
	Error errorDetail `json:"error"`
}

// errorDetail contains error information
type errorDetail struct {
	Code    ErrorCode         `json:"code"`
	Class   domain.ErrorClass `json:"class,omitempty"`
	Message string            `json:"message"`
	Details string            `json:"details,omitempty"`
}

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, statusCode int, code ErrorCode, message string, details ...string) {
	response := errorResponse{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	}

	if len(details) > 0 {
		response.Error.Details = details[0]
	}

	c.JSON(statusCode, response)
}

// respondBadRequest sends a 400 Bad Request response
func respondBadRequest(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusBadRequest, errCodeBadRequest, message, details...)
}

// respondValidationError sends a 400 Bad Request with validation error
func respondValidationError(c *gin.Context, details string) {
	respondWithError(c, http.StatusBadRequest, errCodeValidationFailed, "Validation failed", details)
}

// respondInternalError sends a 500 Internal Server Error response and logs the error
func respondInternalError(c *gin.Context, err error, message string, fields ...zap.Field) {
	logger.Error(err, fields...)
	respondWithError(c, http.StatusInternalServerError, errCodeInternalError, message)
}

// statusByClass maps each domain error class to one HTTP status
var statusByClass = map[domain.ErrorClass]int{
	domain.ClassAuthorization: http.StatusForbidden,
	domain.ClassState:         http.StatusConflict,
	domain.ClassPolicy:        http.StatusUnprocessableEntity,
	domain.ClassEconomic:      http.StatusPaymentRequired,
	domain.ClassTiming:        http.StatusTooEarly,
}

// respondOperationError translates an operation failure. Domain errors keep
// their stable code and class; not-found lookups become 404; everything
// else is a 500.
func respondOperationError(c *gin.Context, err error) {
	de, ok := domain.AsDomainError(err)
	if !ok {
		respondInternalError(c, err, "Operation failed")
		return
	}

	switch de {
	case domain.ErrAssetNotFound, domain.ErrEventNotFound, domain.ErrWagerNotFound,
		domain.ErrCallNotFound, domain.ErrAccountNotFound:
		respondWithError(c, http.StatusNotFound, errCodeNotFound, de.Message)
		return
	}

	status, ok := statusByClass[de.Class]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, errorResponse{
		Error: errorDetail{
			Code:    ErrorCode(de.Code),
			Class:   de.Class,
			Message: de.Message,
		},
	})
}
