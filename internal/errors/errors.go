package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/token-pulse/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryExtraction represents messages where no token could be extracted
	CategoryExtraction ErrorCategory = "extraction"
	// CategoryDuplicate represents idempotent replays of already-recorded mentions
	CategoryDuplicate ErrorCategory = "duplicate"
	// CategoryMissingIdentity represents signals lacking a contract address
	CategoryMissingIdentity ErrorCategory = "missing_identity"
	// CategoryTransientFetch represents retryable network or rate-limit failures
	CategoryTransientFetch ErrorCategory = "transient_fetch"
	// CategoryNotFoundUpstream represents tokens absent from all market sources
	CategoryNotFoundUpstream ErrorCategory = "not_found_upstream"
	// CategoryStorageContention represents retryable storage conflicts
	CategoryStorageContention ErrorCategory = "storage_contention"
	// CategoryFatalConfig represents configuration errors that abort a run
	CategoryFatalConfig ErrorCategory = "fatal_config"
	// CategoryUserInput represents user input errors (4xx)
	CategoryUserInput ErrorCategory = "user_input"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// Pipeline errors

// NewExtractionAmbiguousError creates an error for messages where no token
// symbol or contract could be extracted. Not logged as an error downstream.
func NewExtractionAmbiguousError() *CategorizedError {
	return &CategorizedError{
		Category:   CategoryExtraction,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       "EXTRACTION_AMBIGUOUS",
		Message:    "no token signal found in message",
	}
}

// NewDuplicateMentionError creates an error for a mention that already exists.
// Callers treat this as an idempotent no-op, not a failure.
func NewDuplicateMentionError(chain types.Chain, contract string, messageID int64) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDuplicate,
		StatusCode: http.StatusConflict,
		Code:       "DUPLICATE_MENTION",
		Message:    fmt.Sprintf("mention already recorded for %s/%s message %d", chain, contract, messageID),
		Details: map[string]interface{}{
			"chain":     string(chain),
			"contract":  contract,
			"messageId": messageID,
		},
	}
}

// NewMissingIdentityError creates an error for a signal without a contract address
func NewMissingIdentityError(symbol string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryMissingIdentity,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       "MISSING_IDENTITY",
		Message:    fmt.Sprintf("signal for %q has no contract address", symbol),
		Details: map[string]interface{}{
			"symbol": symbol,
		},
	}
}

// NewTransientFetchError creates a retryable fetch error for a market data source
func NewTransientFetchError(source string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryTransientFetch,
		StatusCode: http.StatusBadGateway,
		Code:       "TRANSIENT_FETCH_ERROR",
		Message:    fmt.Sprintf("transient failure fetching from %s", source),
		Cause:      cause,
		Details: map[string]interface{}{
			"source": source,
		},
	}
}

// NewRateLimitedError creates a transient error carrying an explicit
// rate-limit marker so schedulers can widen their delay window
func NewRateLimitedError(source string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryTransientFetch,
		StatusCode: http.StatusTooManyRequests,
		Code:       "SOURCE_RATE_LIMITED",
		Message:    fmt.Sprintf("rate limited by %s", source),
		Details: map[string]interface{}{
			"source": source,
		},
	}
}

// NewNotFoundUpstreamError creates an error for a token absent from all
// configured market sources
func NewNotFoundUpstreamError(chain types.Chain, contract string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFoundUpstream,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND_UPSTREAM",
		Message:    fmt.Sprintf("token %s/%s not listed on any market source", chain, contract),
		Details: map[string]interface{}{
			"chain":    string(chain),
			"contract": contract,
		},
	}
}

// NewStorageContentionError creates a retryable storage conflict error
func NewStorageContentionError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryStorageContention,
		StatusCode: http.StatusServiceUnavailable,
		Code:       "STORAGE_CONTENTION",
		Message:    fmt.Sprintf("storage contention during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewFatalConfigError creates a configuration error that aborts the run
func NewFatalConfigError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryFatalConfig,
		StatusCode: http.StatusInternalServerError,
		Code:       "FATAL_CONFIG_ERROR",
		Message:    message,
	}
}

// Supporting errors

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewNotFoundError creates a not found error for an API resource
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr
	}

	return NewInternalError("unexpected error", err)
}

// CategoryOf returns the category of an error, or CategorySystem for
// uncategorized errors
func CategoryOf(err error) ErrorCategory {
	if catErr := Categorize(err); catErr != nil {
		return catErr.Category
	}
	return CategorySystem
}

// IsCategory reports whether err belongs to the given category
func IsCategory(err error, category ErrorCategory) bool {
	if err == nil {
		return false
	}
	return CategoryOf(err) == category
}

// IsDuplicateMention reports whether err is an idempotent duplicate replay
func IsDuplicateMention(err error) bool {
	return IsCategory(err, CategoryDuplicate)
}

// IsMissingIdentity reports whether err is a signal without a contract
func IsMissingIdentity(err error) bool {
	return IsCategory(err, CategoryMissingIdentity)
}

// IsNotFoundUpstream reports whether err marks a token as delisted upstream
func IsNotFoundUpstream(err error) bool {
	return IsCategory(err, CategoryNotFoundUpstream)
}

// IsRateLimited reports whether err carries an explicit rate-limit marker
func IsRateLimited(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Code == "SOURCE_RATE_LIMITED"
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryTransientFetch, CategoryStorageContention, CategoryDatabase:
		return true
	case CategorySystem:
		return catErr.StatusCode == http.StatusServiceUnavailable ||
			catErr.StatusCode == http.StatusGatewayTimeout
	default:
		return false
	}
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}
