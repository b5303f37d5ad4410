package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/orderdesk/internal/domain/printing"
	"github.com/erp/orderdesk/internal/domain/trade"
	"github.com/erp/orderdesk/internal/infrastructure/gateway"
	"github.com/erp/orderdesk/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var testToday = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// envelope mirrors dto.Response with a typed data field
type envelope[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *dto.ErrorInfo `json:"error"`
	Meta    *dto.Meta      `json:"meta"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func sequentialNumbers() trade.DocumentNumberGenerator {
	var n atomic.Int64
	return trade.DocumentNumberFunc(func(d trade.Direction, at time.Time) string {
		return fmt.Sprintf("%s-%s-%d", d.DocumentPrefix(), at.Format("20060102"), n.Add(1))
	})
}

func newLocalGateway(t *testing.T, direction trade.Direction, store trade.KeyValueStore) *gateway.Instrumented {
	t.Helper()
	gw, err := gateway.NewLocalGateway(direction, store, nil, gateway.LocalConfig{}, nil)
	require.NoError(t, err)
	return gateway.Instrument(gw, nil)
}

func newRouter(registrars ...interface{ RegisterRoutes(*gin.RouterGroup) }) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api")
	for _, reg := range registrars {
		reg.RegisterRoutes(api)
	}
	return r
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// failingStore rejects every operation
type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk unavailable")
}

func (failingStore) Set(context.Context, string, string) error {
	return errors.New("disk unavailable")
}

func (failingStore) Remove(context.Context, string) error {
	return errors.New("disk unavailable")
}

// fakePrinter records what it prints
type fakePrinter struct {
	printed  []string
	printErr error
	pdfErr   error
}

func (p *fakePrinter) Print(_ context.Context, record trade.SubmissionRecord) error {
	if p.printErr != nil {
		return p.printErr
	}
	p.printed = append(p.printed, record.DocumentNumber)
	return nil
}

func (p *fakePrinter) Document(_ context.Context, record trade.SubmissionRecord) printing.InvoiceDocument {
	return printing.InvoiceDocument{Title: "INVOICE", DocumentNumber: record.DocumentNumber}
}

func (p *fakePrinter) HTML(_ context.Context, record trade.SubmissionRecord) (string, error) {
	return "<html>" + record.DocumentNumber + "</html>", nil
}

func (p *fakePrinter) PDF(_ context.Context, record trade.SubmissionRecord) ([]byte, string, error) {
	if p.pdfErr != nil {
		return nil, "", p.pdfErr
	}
	return []byte("%PDF-1.4"), record.DocumentNumber + ".pdf", nil
}

