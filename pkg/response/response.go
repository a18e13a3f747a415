package response

import (
	"errors"
	"net/http"

	"github.com/alphazee/agencyhub/backend/pkg/logger"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// ListBody is the shape of every paginated list response.
type ListBody struct {
	Items      interface{}     `json:"items"`
	Pagination pagination.Meta `json:"pagination"`
}

// AppError is an expected failure carrying the HTTP status it maps to.
// Services return it; handlers pass it to Error unchanged.
type AppError struct {
	HTTPStatus int
	Message    string
}

func (e *AppError) Error() string {
	return e.Message
}

func newAppError(status int, msg string) *AppError {
	return &AppError{HTTPStatus: status, Message: msg}
}

func NewBadRequest(msg string) *AppError { return newAppError(http.StatusBadRequest, msg) }

func NewUnauthorized(msg string) *AppError { return newAppError(http.StatusUnauthorized, msg) }

func NewForbidden(msg string) *AppError { return newAppError(http.StatusForbidden, msg) }

func NewNotFound(msg string) *AppError { return newAppError(http.StatusNotFound, msg) }

func NewConflict(msg string) *AppError { return newAppError(http.StatusConflict, msg) }

func NewServiceUnavailable(msg string) *AppError {
	return newAppError(http.StatusServiceUnavailable, msg)
}

func NewServerError(msg string) *AppError { return newAppError(http.StatusInternalServerError, msg) }

// StatusOf returns the status Error would write for err.
func StatusOf(err error) int {
	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		return appErr.HTTPStatus
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// --- Gin response helpers ---

// OK sends a 200 response with named keys.
func OK(c *gin.Context, body gin.H) {
	c.JSON(http.StatusOK, body)
}

// Created sends a 201 response with named keys.
func Created(c *gin.Context, body gin.H) {
	c.JSON(http.StatusCreated, body)
}

// Message sends a 200 response carrying only a message.
func Message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// List sends a paginated envelope.
func List(c *gin.Context, items interface{}, meta pagination.Meta) {
	c.JSON(http.StatusOK, ListBody{Items: items, Pagination: meta})
}

// Error sends an error response. *AppError keeps its status, missing rows map
// to 404 and unique violations to 409; anything else is logged and hidden
// behind a generic 500.
func Error(c *gin.Context, err error) {
	status := StatusOf(err)
	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		abort(c, status, appErr.Message)
	case status == http.StatusNotFound:
		abort(c, status, "resource not found")
	case status == http.StatusConflict:
		abort(c, status, "resource already exists")
	default:
		logger.FromContext(c).Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("unhandled error")
		abort(c, status, "internal server error")
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.JSON(status, ErrorBody{Error: msg})
}

func BadRequest(c *gin.Context, msg string)   { abort(c, http.StatusBadRequest, msg) }
func Unauthorized(c *gin.Context, msg string) { abort(c, http.StatusUnauthorized, msg) }
func Forbidden(c *gin.Context, msg string)    { abort(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)     { abort(c, http.StatusNotFound, msg) }
func ServerError(c *gin.Context, msg string)  { abort(c, http.StatusInternalServerError, msg) }
