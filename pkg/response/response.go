package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the error body format. Successful responses carry the resource itself.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// AppError represents a structured application error with HTTP status and error code.
// Err, when set, is the underlying cause; it is never written to the client.
type AppError struct {
	HTTPStatus int
	Code       int
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap returns a copy of e carrying err as its cause.
func (e *AppError) Wrap(err error) *AppError {
	clone := *e
	clone.Err = err
	return &clone
}

func newAppError(status int, msg string) *AppError {
	return &AppError{HTTPStatus: status, Code: status, Message: msg}
}

func NewBadRequest(msg string) *AppError {
	return newAppError(http.StatusBadRequest, msg)
}

func NewNotFound(msg string) *AppError {
	return newAppError(http.StatusNotFound, msg)
}

func NewTooManyRequests(msg string) *AppError {
	return newAppError(http.StatusTooManyRequests, msg)
}

func NewServerError(msg string) *AppError {
	return newAppError(http.StatusInternalServerError, msg)
}

func NewServiceUnavailable(msg string) *AppError {
	return newAppError(http.StatusServiceUnavailable, msg)
}

// Error sends an error response. If err is (or wraps) an *AppError, its code and status
// are used; otherwise a generic 500 is returned without leaking err's text.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		Abort(c, appErr)
		return
	}
	c.JSON(http.StatusInternalServerError, Response{
		Code:    http.StatusInternalServerError,
		Message: "internal server error",
	})
}

// Abort writes appErr and stops the handler chain. Middleware uses it.
func Abort(c *gin.Context, appErr *AppError) {
	c.AbortWithStatusJSON(appErr.HTTPStatus, Response{
		Code:    appErr.Code,
		Message: appErr.Message,
	})
}

func BadRequest(c *gin.Context, msg string) {
	Abort(c, NewBadRequest(msg))
}

func NotFound(c *gin.Context, msg string) {
	Abort(c, NewNotFound(msg))
}

func ServerError(c *gin.Context, msg string) {
	Abort(c, NewServerError(msg))
}
