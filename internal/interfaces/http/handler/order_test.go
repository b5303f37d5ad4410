package handler

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/orderdesk/internal/domain/trade"
	"github.com/erp/orderdesk/internal/infrastructure/export"
	"github.com/erp/orderdesk/internal/infrastructure/gateway"
	"github.com/erp/orderdesk/internal/infrastructure/kvstore"
	"github.com/erp/orderdesk/internal/infrastructure/reference"
	infraprinting "github.com/erp/orderdesk/internal/infrastructure/printing"
	"github.com/erp/orderdesk/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func salesBody() map[string]any {
	return map[string]any{
		"invoiceNumber": "INV-20240301-7",
		"date":          "2024-03-01",
		"customerId":    "c-1",
		"status":        "Pending",
		"shipping":      50,
		"discount":      100,
		"taxRate":       5,
		"items": []map[string]any{
			{"productId": 1, "price": 150, "qty": 2},
			{"productId": "p-2", "price": "910", "qty": 1},
		},
	}
}

func newSalesRouter(t *testing.T, opts ...OrderHandlerOption) (*gin.Engine, *gateway.Instrumented) {
	t.Helper()
	gw := newLocalGateway(t, trade.DirectionSales, kvstore.NewMemoryStore(0))
	opts = append([]OrderHandlerOption{WithClock(func() time.Time { return testToday })}, opts...)
	return newRouter(NewOrderHandler(gw, sequentialNumbers(), opts...)), gw
}

func TestOrderHandler_Submit(t *testing.T) {
	t.Run("persists a priced order", func(t *testing.T) {
		r, gw := newSalesRouter(t)

		w := doJSON(r, http.MethodPost, "/api/sales", salesBody())
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		env := decode[dto.SubmitResponse](t, w)
		assert.True(t, env.Success)
		assert.True(t, env.Data.OK)
		assert.Equal(t, trade.SourceLocalStorage, env.Data.Source)
		require.NotNil(t, env.Data.Record)
		rec := env.Data.Record
		assert.Equal(t, "INV-20240301-7", rec.DocumentNumber)
		assert.Equal(t, trade.ReferenceID("c-1"), rec.PartyID)
		assert.True(t, decimal.NewFromInt(1210).Equal(rec.Totals.Subtotal))
		assert.True(t, decimal.NewFromInt(58).Equal(rec.Totals.TaxAmount))
		assert.True(t, decimal.NewFromInt(1218).Equal(rec.Totals.GrandTotal))
		require.Len(t, rec.Items, 2)
		assert.Equal(t, trade.ReferenceID("1"), rec.Items[0].ProductID)

		stored, err := gw.List(t.Context(), trade.ListQuery{})
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.True(t, stored[0].Equal(*rec))
	})

	t.Run("ignores totals sent by the client", func(t *testing.T) {
		r, _ := newSalesRouter(t)
		body := salesBody()
		body["grandTotal"] = 1
		body["subtotal"] = 1

		w := doJSON(r, http.MethodPost, "/api/sales", body)
		require.Equal(t, http.StatusCreated, w.Code)
		rec := decode[dto.SubmitResponse](t, w).Data.Record
		assert.True(t, decimal.NewFromInt(1218).Equal(rec.Totals.GrandTotal))
	})

	t.Run("generates number and date when absent", func(t *testing.T) {
		r, _ := newSalesRouter(t)
		body := salesBody()
		delete(body, "invoiceNumber")
		delete(body, "date")
		delete(body, "status")

		w := doJSON(r, http.MethodPost, "/api/sales", body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		rec := decode[dto.SubmitResponse](t, w).Data.Record
		assert.Regexp(t, `^INV-20240301-\d+$`, rec.DocumentNumber)
		assert.Equal(t, "2024-03-01", rec.OrderDate.Format(trade.DateLayout))
		assert.Equal(t, trade.OrderStatusPending, rec.Status)
	})

	t.Run("rejects an incomplete order", func(t *testing.T) {
		r, gw := newSalesRouter(t)

		w := doJSON(r, http.MethodPost, "/api/sales", map[string]any{"items": []any{}})
		require.Equal(t, http.StatusBadRequest, w.Code)

		env := decode[any](t, w)
		require.NotNil(t, env.Error)
		assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
		fields := map[string]string{}
		for _, f := range env.Error.Fields {
			fields[f.Field] = f.Rule
		}
		assert.Equal(t, "required", fields["partyId"])
		assert.Equal(t, "subtotal_positive", fields["items"])

		stored, err := gw.List(t.Context(), trade.ListQuery{})
		require.NoError(t, err)
		assert.Empty(t, stored)
	})

	t.Run("rejects a status of the other direction", func(t *testing.T) {
		r, _ := newSalesRouter(t)
		body := salesBody()
		body["status"] = "Received"

		w := doJSON(r, http.MethodPost, "/api/sales", body)
		require.Equal(t, http.StatusBadRequest, w.Code)
		env := decode[any](t, w)
		require.Len(t, env.Error.Fields, 1)
		assert.Equal(t, "status", env.Error.Fields[0].Field)
		assert.Equal(t, "order_status", env.Error.Fields[0].Rule)
	})

	t.Run("rejects a malformed date", func(t *testing.T) {
		r, _ := newSalesRouter(t)
		body := salesBody()
		body["date"] = "first of march"

		w := doJSON(r, http.MethodPost, "/api/sales", body)
		require.Equal(t, http.StatusBadRequest, w.Code)
		env := decode[any](t, w)
		require.Len(t, env.Error.Fields, 1)
		assert.Equal(t, "orderDate", env.Error.Fields[0].Field)
	})

	t.Run("rejects purchase fields", func(t *testing.T) {
		r, _ := newSalesRouter(t)
		body := salesBody()
		delete(body, "customerId")
		body["supplierId"] = "s-1"

		w := doJSON(r, http.MethodPost, "/api/sales", body)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeBadRequest, decode[any](t, w).Error.Code)
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		r, _ := newSalesRouter(t)

		w := doJSON(r, http.MethodPost, "/api/sales", `{"items": [`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, decode[any](t, w).Error.Code)
	})

	t.Run("storage failure is 503", func(t *testing.T) {
		gw := newLocalGateway(t, trade.DirectionSales, failingStore{})
		r := newRouter(NewOrderHandler(gw, sequentialNumbers()))

		w := doJSON(r, http.MethodPost, "/api/sales", salesBody())
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, dto.ErrCodeStorageFailed, decode[any](t, w).Error.Code)
	})

	t.Run("remote failure is 502", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(upstream.Close)
		remote, err := gateway.NewRemoteGateway(trade.DirectionSales, gateway.RemoteConfig{BaseURL: upstream.URL, Timeout: 2 * time.Second}, nil)
		require.NoError(t, err)
		r := newRouter(NewOrderHandler(gateway.Instrument(remote, nil), sequentialNumbers()))

		w := doJSON(r, http.MethodPost, "/api/sales", salesBody())
		require.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, dto.ErrCodeUpstreamUnavailable, decode[any](t, w).Error.Code)

		w = doJSON(r, http.MethodDelete, "/api/sales", nil)
		require.Equal(t, http.StatusNotImplemented, w.Code)
		assert.Equal(t, dto.ErrCodeNotSupported, decode[any](t, w).Error.Code)
	})

	t.Run("prints after persisting", func(t *testing.T) {
		printer := &fakePrinter{}
		r, _ := newSalesRouter(t, WithPrinter(printer), WithPrintOnSubmit(true))

		w := doJSON(r, http.MethodPost, "/api/sales", salesBody())
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, []string{"INV-20240301-7"}, printer.printed)
		assert.Empty(t, decode[dto.SubmitResponse](t, w).Data.PrintError)
	})

	t.Run("print failure keeps the order", func(t *testing.T) {
		printer := &fakePrinter{printErr: errors.New("chrome crashed")}
		r, gw := newSalesRouter(t, WithPrinter(printer), WithPrintOnSubmit(true))

		w := doJSON(r, http.MethodPost, "/api/sales", salesBody())
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "chrome crashed", decode[dto.SubmitResponse](t, w).Data.PrintError)

		stored, err := gw.List(t.Context(), trade.ListQuery{})
		require.NoError(t, err)
		assert.Len(t, stored, 1)
	})

	t.Run("unpriced rows take the product default cost", func(t *testing.T) {
		cost := decimal.NewFromInt(910)
		catalog := reference.NewCatalog([]trade.Product{{ID: "p-2", Name: "Oven", DefaultCost: &cost}}, nil, nil)
		r, _ := newSalesRouter(t, WithReference(catalog))
		body := salesBody()
		body["items"] = []map[string]any{
			{"productId": 1, "price": 150, "qty": 2},
			{"productId": "p-2", "qty": 1},
		}

		w := doJSON(r, http.MethodPost, "/api/sales", body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		rec := decode[dto.SubmitResponse](t, w).Data.Record
		assert.True(t, cost.Equal(rec.Items[1].UnitCost))
		assert.True(t, decimal.NewFromInt(1218).Equal(rec.Totals.GrandTotal))
	})
}

func TestOrderHandler_Purchases(t *testing.T) {
	gw := newLocalGateway(t, trade.DirectionPurchase, kvstore.NewMemoryStore(0))
	r := newRouter(NewOrderHandler(gw, sequentialNumbers(), WithClock(func() time.Time { return testToday })))

	w := doJSON(r, http.MethodPost, "/api/purchases", map[string]any{
		"supplierId":   7,
		"expectedDate": "2024-03-15",
		"status":       "Approved",
		"items":        []map[string]any{{"productId": 3, "cost": 12.5, "qty": 4}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	rec := decode[dto.SubmitResponse](t, w).Data.Record
	assert.Equal(t, trade.DirectionPurchase, rec.Direction)
	assert.Regexp(t, `^PO-20240301-\d+$`, rec.DocumentNumber)
	assert.Equal(t, trade.ReferenceID("7"), rec.PartyID)
	assert.Equal(t, "2024-03-15", rec.ExpectedDate.Format(trade.DateLayout))
	assert.True(t, decimal.NewFromInt(50).Equal(rec.Totals.GrandTotal))

	w = doJSON(r, http.MethodGet, "/api/purchases/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, rec.DocumentNumber, decode[trade.SubmissionRecord](t, w).Data.DocumentNumber)
}

func TestOrderHandler_ListGetClear(t *testing.T) {
	r, _ := newSalesRouter(t)
	for _, number := range []string{"INV-A", "INV-B", "INV-C"} {
		body := salesBody()
		body["invoiceNumber"] = number
		require.Equal(t, http.StatusCreated, doJSON(r, http.MethodPost, "/api/sales", body).Code)
	}

	t.Run("list all", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/sales", nil)
		require.Equal(t, http.StatusOK, w.Code)
		env := decode[[]trade.SubmissionRecord](t, w)
		assert.Len(t, env.Data, 3)
		assert.Nil(t, env.Meta)
	})

	t.Run("paged", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/sales?page=2&size=2", nil)
		require.Equal(t, http.StatusOK, w.Code)
		env := decode[[]trade.SubmissionRecord](t, w)
		require.Len(t, env.Data, 1)
		assert.Equal(t, "INV-C", env.Data[0].DocumentNumber)
		require.NotNil(t, env.Meta)
		assert.Equal(t, 2, env.Meta.Page)
		assert.Equal(t, 2, env.Meta.PageSize)
	})

	t.Run("search", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/sales?q=inv-b", nil)
		require.Equal(t, http.StatusOK, w.Code)
		env := decode[[]trade.SubmissionRecord](t, w)
		require.Len(t, env.Data, 1)
		assert.Equal(t, "INV-B", env.Data[0].DocumentNumber)
	})

	t.Run("oversized page is rejected", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/sales?size=1000", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get by position", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/sales/2", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "INV-B", decode[trade.SubmissionRecord](t, w).Data.DocumentNumber)
	})

	t.Run("missing order", func(t *testing.T) {
		for _, id := range []string{"0", "4", "abc"} {
			w := doJSON(r, http.MethodGet, "/api/sales/"+id, nil)
			assert.Equal(t, http.StatusNotFound, w.Code, id)
		}
	})

	t.Run("clear", func(t *testing.T) {
		w := doJSON(r, http.MethodDelete, "/api/sales", nil)
		require.Equal(t, http.StatusNoContent, w.Code)

		w = doJSON(r, http.MethodGet, "/api/sales", nil)
		assert.Empty(t, decode[[]trade.SubmissionRecord](t, w).Data)
	})
}

func TestOrderHandler_Export(t *testing.T) {
	catalog := reference.NewCatalog(nil, nil, []trade.Party{{ID: "c-1", Name: "Bob's Bakery"}})
	r, _ := newSalesRouter(t, WithReference(catalog))
	require.Equal(t, http.StatusCreated, doJSON(r, http.MethodPost, "/api/sales", salesBody()).Code)

	w := doJSON(r, http.MethodGet, "/api/sales/export.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentTypeXLSX, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "sales.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(export.SheetName(trade.DirectionSales))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "INV-20240301-7", rows[1][0])
	assert.Equal(t, "Bob's Bakery", rows[1][3])
}

func TestOrderHandler_Invoice(t *testing.T) {
	t.Run("printing disabled", func(t *testing.T) {
		r, _ := newSalesRouter(t)
		require.Equal(t, http.StatusCreated, doJSON(r, http.MethodPost, "/api/sales", salesBody()).Code)

		w := doJSON(r, http.MethodGet, "/api/sales/1/invoice", nil)
		assert.Equal(t, http.StatusNotImplemented, w.Code)
	})

	printer := &fakePrinter{}
	r, _ := newSalesRouter(t, WithPrinter(printer))
	require.Equal(t, http.StatusCreated, doJSON(r, http.MethodPost, "/api/sales", salesBody()).Code)

	t.Run("json document", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/sales/1/invoice", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"documentNumber":"INV-20240301-7"`)
	})

	t.Run("html", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/sales/1/invoice?format=html", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Equal(t, "<html>INV-20240301-7</html>", w.Body.String())
	})

	t.Run("pdf download", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/sales/1/invoice?format=pdf", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="INV-20240301-7.pdf"`, w.Header().Get("Content-Disposition"))
		assert.Equal(t, "%PDF-1.4", w.Body.String())
	})

	t.Run("unknown format", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/sales/1/invoice?format=docx", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing order", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/sales/9/invoice", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("pdf renderer not configured", func(t *testing.T) {
		printer.pdfErr = infraprinting.ErrPDFUnavailable
		defer func() { printer.pdfErr = nil }()

		w := doJSON(r, http.MethodGet, "/api/sales/1/invoice?format=pdf", nil)
		require.Equal(t, http.StatusNotImplemented, w.Code)
		assert.Equal(t, dto.ErrCodePDFUnavailable, decode[any](t, w).Error.Code)
	})

	t.Run("render timeout", func(t *testing.T) {
		printer.pdfErr = infraprinting.NewRenderError(infraprinting.ErrCodeRenderTimeout, "PDF rendering timed out", nil)
		defer func() { printer.pdfErr = nil }()

		w := doJSON(r, http.MethodGet, "/api/sales/1/invoice?format=pdf", nil)
		require.Equal(t, http.StatusGatewayTimeout, w.Code)
		assert.Equal(t, dto.ErrCodeRenderTimeout, decode[any](t, w).Error.Code)
	})
}
