package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a failure kind that callers can branch on.
type Code string

const (
	CodeInvalidRequest          Code = "INVALID_REQUEST"
	CodeUserNotFound            Code = "USER_NOT_FOUND"
	CodeConversationNotFound    Code = "CONVERSATION_NOT_FOUND"
	CodeMessageNotFound         Code = "MESSAGE_NOT_FOUND"
	CodeNotAParticipant         Code = "NOT_A_PARTICIPANT"
	CodeInvalidParticipantList  Code = "INVALID_PARTICIPANT_LIST"
	CodeInvalidConversationType Code = "INVALID_CONVERSATION_TYPE"
	CodeEmptyContent            Code = "EMPTY_CONTENT"
	CodeInvalidContent          Code = "INVALID_CONTENT"
	CodeInvalidMediaType        Code = "INVALID_MEDIA_TYPE"
	CodeRateLimited             Code = "RATE_LIMITED"
	CodePublishFailed           Code = "PUBLISH_FAILED"
	CodeConsumeFailed           Code = "CONSUME_FAILED"
)

var httpStatus = map[Code]int{
	CodeInvalidRequest:          http.StatusBadRequest,
	CodeUserNotFound:            http.StatusNotFound,
	CodeConversationNotFound:    http.StatusNotFound,
	CodeMessageNotFound:         http.StatusNotFound,
	CodeNotAParticipant:         http.StatusForbidden,
	CodeInvalidParticipantList:  http.StatusBadRequest,
	CodeInvalidConversationType: http.StatusBadRequest,
	CodeEmptyContent:            http.StatusBadRequest,
	CodeInvalidContent:          http.StatusBadRequest,
	CodeInvalidMediaType:        http.StatusBadRequest,
	CodeRateLimited:             http.StatusTooManyRequests,
	CodePublishFailed:           http.StatusInternalServerError,
	CodeConsumeFailed:           http.StatusInternalServerError,
}

// Error is a typed failure result propagated to callers instead of using
// panics or bare sentinel strings.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error for the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches an underlying cause to a coded error.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// IsCode reports whether err carries the given failure code.
func IsCode(err error, code Code) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// HTTPStatus maps an error to a response status. Unknown errors are 500.
func HTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		if status, ok := httpStatus[appErr.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}
