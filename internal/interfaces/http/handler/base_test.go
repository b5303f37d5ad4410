package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/orderdesk/internal/domain/shared"
	infraprinting "github.com/erp/orderdesk/internal/infrastructure/printing"
	"github.com/erp/orderdesk/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseHandler_HandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", shared.NewValidationError(shared.FieldError{Field: "partyId", Rule: "required"}), http.StatusBadRequest, dto.ErrCodeValidation},
		{"transport", shared.NewTransportError("submit", 500, errors.New("boom")), http.StatusBadGateway, dto.ErrCodeUpstreamUnavailable},
		{"storage", fmt.Errorf("wrapped: %w", shared.NewStorageError("submit", errors.New("quota"))), http.StatusServiceUnavailable, dto.ErrCodeStorageFailed},
		{"in progress", shared.ErrSubmissionInProgress, http.StatusConflict, dto.ErrCodeSubmissionInProgress},
		{"not supported", shared.ErrNotSupported, http.StatusNotImplemented, dto.ErrCodeNotSupported},
		{"not found", shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"pdf unavailable", infraprinting.ErrPDFUnavailable, http.StatusNotImplemented, dto.ErrCodePDFUnavailable},
		{"render failed", infraprinting.NewRenderError(infraprinting.ErrCodeRenderFailed, "PDF generation failed", nil), http.StatusInternalServerError, dto.ErrCodeRenderFailed},
		{"deadline", fmt.Errorf("rendering: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, dto.ErrCodeRenderTimeout},
		{"unknown", errors.New("surprise"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/api/sales", nil)
			c.Set("request_id", "req-1")

			h := &BaseHandler{}
			h.HandleError(c, tt.err)

			require.Equal(t, tt.wantStatus, w.Code)
			env := decode[any](t, w)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			assert.Equal(t, "req-1", env.Error.RequestID)
			assert.Len(t, c.Errors, 1)
		})
	}
}

func TestBaseHandler_HandleError_Nil(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	(&BaseHandler{}).HandleError(c, nil)

	assert.False(t, c.Writer.Written())
}
