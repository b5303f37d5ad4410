package printing

import (
	"context"
	"errors"
	"time"

	"github.com/erp/orderdesk/internal/domain/printing"
)

// Failure codes carried by RenderError. The HTTP layer maps them to statuses.
const (
	ErrCodeRenderTimeout    = "RENDER_TIMEOUT"
	ErrCodeRenderFailed     = "RENDER_FAILED"
	ErrCodeInvalidHTML      = "INVALID_HTML"
	ErrCodeInvalidPaperSize = "INVALID_PAPER_SIZE"
	ErrCodeStorageFailed    = "STORAGE_FAILED"
	ErrCodeNotFound         = "NOT_FOUND"
)

// RenderRequest is one invoice page to turn into a PDF
type RenderRequest struct {
	// DocumentNumber identifies the order in logs
	DocumentNumber string
	// Title becomes the PDF document title
	Title       string
	HTML        string
	PaperSize   printing.PaperSize
	Orientation printing.Orientation
	Margins     printing.Margins
	// Timeout overrides the renderer default when positive
	Timeout time.Duration
}

// RenderResult is a rendered invoice PDF
type RenderResult struct {
	PDF     []byte
	Pages   int
	Elapsed time.Duration
}

// PDFRenderer turns invoice HTML into PDF bytes
type PDFRenderer interface {
	Render(ctx context.Context, req *RenderRequest) (*RenderResult, error)
	Close() error
}

// RenderError reports a failed render or a failed PDF storage operation
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

// NewRenderError creates a RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{Code: code, Message: message, Cause: cause}
}

func (e *RenderError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// RenderErrorCode returns the code of the RenderError in err's chain, or ""
func RenderErrorCode(err error) string {
	var re *RenderError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
