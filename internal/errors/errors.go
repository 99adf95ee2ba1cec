package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the type of error
type ErrorType uint

const (
	// Error types
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeValidation
	ErrorTypeAuthentication
	ErrorTypeAuthorization
	ErrorTypeNotFound
	ErrorTypeConflict
	ErrorTypeInternal
	ErrorTypeRateLimit
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeAuthentication:
		return "authentication"
	case ErrorTypeAuthorization:
		return "authorization"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeConflict:
		return "conflict"
	case ErrorTypeInternal:
		return "internal"
	case ErrorTypeRateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// Codes for the domain failures callers branch on.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeDuplicateEmail     = "DUPLICATE_EMAIL"
	CodeDuplicateRequest   = "DUPLICATE_REQUEST"
	CodeAuthInProgress     = "AUTH_IN_PROGRESS"
	CodeSessionInUse       = "SESSION_IN_USE"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidState       = "INVALID_STATE"
	CodeStorage            = "STORAGE_ERROR"
)

// Error represents a custom error with additional context
type Error struct {
	Type       ErrorType
	Message    string
	Details    map[string]interface{}
	Err        error
	StatusCode int
	ErrorCode  string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new custom error
func NewError(errType ErrorType, message string, err error) *Error {
	return &Error{
		Type:       errType,
		Message:    message,
		Err:        err,
		StatusCode: errorTypeToStatusCode(errType),
		ErrorCode:  errorTypeToCode(errType),
		Details:    make(map[string]interface{}),
	}
}

// WithDetails merges context details into the error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

func (e *Error) withCode(code string) *Error {
	e.ErrorCode = code
	return e
}

// Is matches on type and error code, so a duplicate email never
// satisfies a check for a duplicate access request.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.ErrorCode == t.ErrorCode
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidCredentials = NewInvalidCredentialsError()
	ErrDuplicateEmail     = NewDuplicateEmailError("")
	ErrDuplicateRequest   = NewDuplicateRequestError("", "")
	ErrAuthInProgress     = NewAuthInProgressError()
	ErrSessionInUse       = NewSessionInUseError()
	ErrForbidden          = NewForbiddenError("")
	ErrNotFound           = NewNotFoundError("", nil)
	ErrInvalidState       = NewInvalidStateError("")
	ErrValidation         = NewValidationError("", nil)
)

// Common error constructors
func NewValidationError(message string, err error) *Error {
	return NewError(ErrorTypeValidation, message, err)
}

func NewAuthenticationError(message string, err error) *Error {
	return NewError(ErrorTypeAuthentication, message, err)
}

func NewAuthorizationError(message string, err error) *Error {
	return NewError(ErrorTypeAuthorization, message, err)
}

func NewNotFoundError(message string, err error) *Error {
	return NewError(ErrorTypeNotFound, message, err)
}

func NewConflictError(message string, err error) *Error {
	return NewError(ErrorTypeConflict, message, err)
}

func NewInternalError(message string, err error) *Error {
	return NewError(ErrorTypeInternal, message, err)
}

func NewRateLimitError(message string, err error) *Error {
	return NewError(ErrorTypeRateLimit, message, err)
}

// FromError returns err as an *Error, wrapping anything untyped as internal.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return NewInternalError("Internal server error", err)
}

// Helper functions
func errorTypeToStatusCode(errType ErrorType) int {
	switch errType {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeAuthorization:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeInternal:
		return http.StatusInternalServerError
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func errorTypeToCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeAuthentication:
		return "AUTHENTICATION_ERROR"
	case ErrorTypeAuthorization:
		return CodeForbidden
	case ErrorTypeNotFound:
		return CodeNotFound
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeInternal:
		return "INTERNAL_ERROR"
	case ErrorTypeRateLimit:
		return "RATE_LIMIT_EXCEEDED"
	default:
		return "UNKNOWN_ERROR"
	}
}

// Domain-specific error constructors
func NewInvalidCredentialsError() *Error {
	return NewAuthenticationError("Invalid email or password", nil).
		withCode(CodeInvalidCredentials)
}

func NewTokenExpiredError() *Error {
	return NewAuthenticationError("Token has expired", nil)
}

func NewInvalidTokenError() *Error {
	return NewAuthenticationError("Invalid token", nil)
}

func NewSessionClosedError() *Error {
	return NewAuthenticationError("Session is not logged in", nil)
}

func NewAuthInProgressError() *Error {
	return NewConflictError("Authentication already in progress for this session", nil).
		withCode(CodeAuthInProgress)
}

func NewSessionInUseError() *Error {
	return NewConflictError("Session is logged in as another user", nil).
		withCode(CodeSessionInUse)
}

func NewDuplicateEmailError(email string) *Error {
	e := NewConflictError("Email already registered", nil).withCode(CodeDuplicateEmail)
	if email != "" {
		e.WithDetails(map[string]interface{}{"email": email})
	}
	return e
}

func NewDuplicateRequestError(requesterID, clientID string) *Error {
	e := NewConflictError("A pending access request already exists for this client", nil).
		withCode(CodeDuplicateRequest)
	if clientID != "" {
		e.WithDetails(map[string]interface{}{
			"requester_id": requesterID,
			"client_id":    clientID,
		})
	}
	return e
}

func NewInvalidStateError(message string) *Error {
	return NewConflictError(message, nil).withCode(CodeInvalidState)
}

func NewForbiddenError(message string) *Error {
	if message == "" {
		message = "Forbidden"
	}
	return NewAuthorizationError(message, nil)
}

func NewResourceNotFoundError(resource, id string) *Error {
	return NewNotFoundError(
		fmt.Sprintf("%s not found: %s", resource, id),
		nil,
	).WithDetails(map[string]interface{}{
		"resource": resource,
		"id":       id,
	})
}

func NewInvalidRequestError(message string, validationErrors map[string]string) *Error {
	return NewValidationError(
		message,
		nil,
	).WithDetails(map[string]interface{}{
		"validation_errors": validationErrors,
	})
}

func NewStorageError(collection, operation string, err error) *Error {
	return NewInternalError(
		fmt.Sprintf("Storage operation failed: %s %s", operation, collection),
		err,
	).withCode(CodeStorage).WithDetails(map[string]interface{}{
		"collection": collection,
		"operation":  operation,
	})
}

func NewRateLimitExceededError(limit int, windowSeconds int) *Error {
	return NewRateLimitError(
		fmt.Sprintf("Rate limit exceeded: %d requests per %d seconds", limit, windowSeconds),
		nil,
	).WithDetails(map[string]interface{}{
		"limit":       limit,
		"window_secs": windowSeconds,
		"retry_after": windowSeconds,
	})
}

// Error Response structure for API responses
type ErrorResponse struct {
	Status    string                 `json:"status"`
	ErrorCode string                 `json:"error_code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// NewErrorResponse creates an error response from an Error. Internal
// causes are never echoed to the caller.
func NewErrorResponse(err *Error, requestID string) *ErrorResponse {
	details := err.Details
	if len(details) == 0 {
		details = nil
	}
	return &ErrorResponse{
		Status:    "error",
		ErrorCode: err.ErrorCode,
		Message:   err.Message,
		Details:   details,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
