package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "Error interno del servidor"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// RetrievalErrorMessage is returned when the similarity search cannot be served.
	RetrievalErrorMessage = "Error en la búsqueda de documentos"
	// CompletionErrorMessage describes a failed language model call.
	CompletionErrorMessage = "language model call failed"
	// MalformedErrorMessage describes unparseable structured data from a downstream service.
	MalformedErrorMessage = "malformed downstream payload"
	// InvalidRequestMessage prefixes request validation failures.
	InvalidRequestMessage = "solicitud inválida"
)

// Kind classifies an AppError so callers can branch on failure type.
type Kind int

const (
	KindInternal Kind = iota
	KindRetrieval
	KindCompletion
	KindMalformed
	KindInvalidRequest
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindRetrieval:
		return "retrieval_failure"
	case KindCompletion:
		return "completion_failure"
	case KindMalformed:
		return "malformed_downstream_payload"
	case KindInvalidRequest:
		return "invalid_request"
	case KindStorage:
		return "storage_failure"
	default:
		return "internal"
	}
}

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Kind    Kind
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new internal AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Kind:    KindInternal,
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Retrieval wraps a similarity oracle failure.
func Retrieval(err error) *AppError {
	return &AppError{Kind: KindRetrieval, Err: err, Status: http.StatusBadGateway, Message: RetrievalErrorMessage}
}

// Completion wraps a language model failure.
func Completion(err error) *AppError {
	return &AppError{Kind: KindCompletion, Err: err, Status: http.StatusBadGateway, Message: CompletionErrorMessage}
}

// Malformed wraps a decoding failure of data embedded in a downstream response.
func Malformed(err error) *AppError {
	return &AppError{Kind: KindMalformed, Err: err, Status: http.StatusBadGateway, Message: MalformedErrorMessage}
}

// InvalidRequest reports a request that is missing or has an unusable field.
func InvalidRequest(detail string) *AppError {
	msg := InvalidRequestMessage
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", InvalidRequestMessage, detail)
	}
	return &AppError{Kind: KindInvalidRequest, Status: http.StatusBadRequest, Message: msg}
}

// KindOf returns the Kind of the first AppError in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// StatusOf returns the HTTP status for err, defaulting to 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the safe, user-facing message for err.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return SystemErrorMessage
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return errors.As(e.Err, target)
}
