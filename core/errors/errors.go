package errors

import "fmt"

type ErrorCode string

const (
	ErrInternalServer             ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrInvalidInput               ErrorCode = "INVALID_INPUT"
	ErrInvalidRequestData         ErrorCode = "INVALID_REQUEST_DATA"
	ErrUnauthorized               ErrorCode = "UNAUTHORIZED"
	ErrForbidden                  ErrorCode = "FORBIDDEN"
	ErrNotFound                   ErrorCode = "NOT_FOUND"
	ErrAlreadyExists              ErrorCode = "ALREADY_EXISTS"
	ErrTokenExpired               ErrorCode = "TOKEN_EXPIRED"
	ErrInvalidTokenFormat         ErrorCode = "INVALID_TOKEN_FORMAT"
	ErrMissingAuthorizationHeader ErrorCode = "MISSING_AUTHORIZATION_HEADER"

	// Calendar engine codes. AccountMismatch is deliberately distinct from
	// Unauthorized: the fix is switching Google accounts, not logging in again.
	ErrCalendarNotConnected ErrorCode = "CALENDAR_NOT_CONNECTED"
	ErrAccountMismatch      ErrorCode = "CALENDAR_ACCOUNT_MISMATCH"
	ErrCredentialExpired    ErrorCode = "CALENDAR_CREDENTIAL_EXPIRED"
	ErrNoEventID            ErrorCode = "CALENDAR_NO_EVENT_ID"
	ErrRateLimited          ErrorCode = "CALENDAR_RATE_LIMITED"
	ErrRetryExhausted       ErrorCode = "CALENDAR_RETRY_EXHAUSTED"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
	Details any       `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func NewAppErrorWithDetails(code ErrorCode, message string, err error, details any) *AppError {
	return &AppError{Code: code, Message: message, Err: err, Details: details}
}

// IsCode reports whether err is an *AppError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	ae, ok := err.(*AppError)
	return ok && ae != nil && ae.Code == code
}
