package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"workbench/internal/domain"
	"workbench/internal/history"
	"workbench/internal/middleware"
)

// Error codes with HTTP status mapping
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeValidationFailed = "VALIDATION_ERROR"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeInternalError    = "INTERNAL_ERROR"

	ErrCodeDatabaseError    = "DATABASE_ERROR"
	ErrCodeConnectionFailed = "CONNECTION_FAILED"
	ErrCodeQueryFailed      = "QUERY_FAILED"
)

// HTTPStatus maps error codes to HTTP status codes
var HTTPStatus = map[string]int{
	ErrCodeInvalidRequest:   http.StatusBadRequest,
	ErrCodeValidationFailed: http.StatusUnprocessableEntity,
	ErrCodeForbidden:        http.StatusForbidden,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeInternalError:    http.StatusInternalServerError,

	ErrCodeDatabaseError:    http.StatusInternalServerError,
	ErrCodeConnectionFailed: http.StatusServiceUnavailable,
	ErrCodeQueryFailed:      http.StatusInternalServerError,
}

type Response struct {
	Success       bool       `json:"success"`
	Data          any        `json:"data,omitempty"`
	Error         *ErrorInfo `json:"error,omitempty"`
	CorrelationID string     `json:"correlationId"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorCode classifies err into one of the error codes above.
func ErrorCode(err error) string {
	var (
		validationErr  *domain.ValidationError
		notFoundErr    *domain.NotFoundError
		connectionErr  *domain.ConnectionError
		executionErr   *domain.ExecutionError
		persistenceErr *domain.PersistenceError
	)
	switch {
	case errors.As(err, &validationErr):
		return ErrCodeValidationFailed
	case errors.As(err, &notFoundErr):
		return ErrCodeNotFound
	case errors.As(err, &connectionErr):
		return ErrCodeConnectionFailed
	case errors.As(err, &executionErr):
		return ErrCodeQueryFailed
	case errors.As(err, &persistenceErr):
		return ErrCodeDatabaseError
	case errors.Is(err, history.ErrClearDisabled):
		return ErrCodeForbidden
	default:
		return ErrCodeInternalError
	}
}

func sendOK(c *gin.Context, status int, data any) {
	c.JSON(status, Response{
		Success:       true,
		Data:          data,
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

func sendError(c *gin.Context, code, message string) {
	status, ok := HTTPStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// handleError maps a domain error to its status and code.
func handleError(c *gin.Context, err error) {
	sendError(c, ErrorCode(err), err.Error())
}

// idParam parses a positive integer path parameter. It writes the 400 itself
// and reports false when the parameter is malformed.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		sendError(c, ErrCodeInvalidRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// intQuery parses an optional integer query parameter; absent means 0.
func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		sendError(c, ErrCodeInvalidRequest, "Invalid "+name)
		return 0, false
	}
	return v, true
}
