package errors

import (
	"errors"
	"fmt"
)

// AppError carries a business error code alongside the underlying cause.
// The code decides the HTTP status and the client-facing message; Details
// carries operator-facing context that is safe to surface.
type AppError struct {
	Code    int
	Message string
	Err     error
	Details string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError for code, with optional details
func New(code int, details ...string) *AppError {
	return &AppError{
		Code:    code,
		Message: GetMessage(code),
		Details: firstDetail(details),
	}
}

// Wrap attaches a code to an existing error. An error that already carries
// a code keeps it; only the details are refreshed.
func Wrap(err error, code int, details ...string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		if d := firstDetail(details); d != "" {
			appErr.Details = d
		}
		return appErr
	}

	return &AppError{
		Code:    code,
		Message: GetMessage(code),
		Err:     err,
		Details: firstDetail(details),
	}
}

// ExtractCode returns the business code of err, or ErrInternalServer when
// err was never coded.
func ExtractCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternalServer
}

// GetDetails returns the most specific human-readable context available
func GetDetails(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Details != "" {
			return appErr.Details
		}
		if appErr.Err != nil {
			return appErr.Err.Error()
		}
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

func firstDetail(details []string) string {
	if len(details) > 0 {
		return details[0]
	}
	return ""
}
