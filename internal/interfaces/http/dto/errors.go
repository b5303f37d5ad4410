package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation and input error codes
const (
	// ErrCodeValidation is used when an order is incomplete or unpriced
	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Resource error codes
const (
	ErrCodeNotFound             = "ERR_NOT_FOUND"
	ErrCodeSubmissionInProgress = "ERR_SUBMISSION_IN_PROGRESS"
	// ErrCodeNotSupported is used when the configured gateway or printer
	// cannot perform the operation
	ErrCodeNotSupported = "ERR_NOT_SUPPORTED"
)

// Persistence and rendering error codes
const (
	// ErrCodeUpstreamUnavailable is used for remote transport failures
	ErrCodeUpstreamUnavailable = "ERR_UPSTREAM_UNAVAILABLE"
	// ErrCodeStorageFailed is used when local storage rejected a write
	ErrCodeStorageFailed  = "ERR_STORAGE_FAILED"
	ErrCodeRenderTimeout  = "ERR_RENDER_TIMEOUT"
	ErrCodeRenderFailed   = "ERR_RENDER_FAILED"
	ErrCodePDFUnavailable = "ERR_PDF_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeNotFound:             http.StatusNotFound,
	ErrCodeSubmissionInProgress: http.StatusConflict,
	ErrCodeNotSupported:         http.StatusNotImplemented,

	ErrCodeUpstreamUnavailable: http.StatusBadGateway,
	ErrCodeStorageFailed:       http.StatusServiceUnavailable,
	ErrCodeRenderTimeout:       http.StatusGatewayTimeout,
	ErrCodeRenderFailed:        http.StatusInternalServerError,
	ErrCodePDFUnavailable:      http.StatusNotImplemented,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain and renderer error codes to API codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":              ErrCodeNotFound,
	"INVALID_INPUT":          ErrCodeInvalidInput,
	"SUBMISSION_IN_PROGRESS": ErrCodeSubmissionInProgress,
	"NOT_SUPPORTED":          ErrCodeNotSupported,
	"RENDER_TIMEOUT":         ErrCodeRenderTimeout,
	"RENDER_FAILED":          ErrCodeRenderFailed,
	"INVALID_HTML":           ErrCodeRenderFailed,
	"INVALID_PAPER_SIZE":     ErrCodeRenderFailed,
	"STORAGE_FAILED":         ErrCodeStorageFailed,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format, and unknown codes, are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
