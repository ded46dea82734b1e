package domain

import (
	"errors"
	"fmt"
	"time"
)

// Status is the canonical category of a failed operation.
type Status string

const (
	StatusInvalidArgument    Status = "INVALID_ARGUMENT"
	StatusUnauthenticated    Status = "UNAUTHENTICATED"
	StatusPermissionDenied   Status = "PERMISSION_DENIED"
	StatusNotFound           Status = "NOT_FOUND"
	StatusAlreadyExists      Status = "ALREADY_EXISTS"
	StatusFailedPrecondition Status = "FAILED_PRECONDITION"
	StatusResourceExhausted  Status = "RESOURCE_EXHAUSTED"
	StatusInternal           Status = "INTERNAL"
)

// Machine-readable reason codes the client maps to UI state.
const (
	CodeRateLimited       = "RATE_LIMITED"
	CodeCaptchaRequired   = "CAPTCHA_REQUIRED"
	CodeCaptchaInvalid    = "CAPTCHA_INVALID"
	CodeTempBlock         = "TEMP_BLOCK"
	CodeSessionExpired    = "SESSION_EXPIRED"
	CodeSessionInvalid    = "SESSION_INVALID"
	CodeScoreOutOfBounds  = "SCORE_OUT_OF_BOUNDS"
	CodeSchoolNotFound    = "SCHOOL_NOT_FOUND"
	CodeSchoolExists      = "SCHOOL_EXISTS"
	CodeInvalidDelta      = "INVALID_DELTA"
	CodeInvalidSchool     = "INVALID_SCHOOL"
	CodeInvalidSchoolName = "INVALID_SCHOOL_NAME"
)

// Error is a failed operation carrying enough structure for the client to
// decide whether to back off, show a challenge, or retry.
type Error struct {
	Status       Status
	Code         string
	Message      string
	BlockedUntil *time.Time
	Err          error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusOf extracts the Status of err, defaulting to StatusInternal.
func StatusOf(err error) Status {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return StatusInternal
}

// CodeOf extracts the reason code of err, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func NewError(status Status, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func InvalidArgument(code, message string) *Error {
	return NewError(StatusInvalidArgument, code, message)
}

func Unauthenticated(code, message string) *Error {
	return NewError(StatusUnauthenticated, code, message)
}

func NotFound(code, message string) *Error {
	return NewError(StatusNotFound, code, message)
}

func RateLimited(message string) *Error {
	return NewError(StatusResourceExhausted, CodeRateLimited, message)
}

func CaptchaRequired(status Status, message string) *Error {
	return NewError(status, CodeCaptchaRequired, message)
}

func CaptchaInvalid() *Error {
	return NewError(StatusPermissionDenied, CodeCaptchaInvalid, "captcha verification failed")
}

func TempBlock(until time.Time) *Error {
	return &Error{
		Status:       StatusResourceExhausted,
		Code:         CodeTempBlock,
		Message:      "too many requests, session temporarily blocked",
		BlockedUntil: &until,
	}
}

func Internal(message string, err error) *Error {
	return &Error{Status: StatusInternal, Message: message, Err: err}
}
