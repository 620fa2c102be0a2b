package vespa

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	path   string
	query  map[string]string
	body   map[string]any
}

// newRecordingServer answers every request with response and records what
// was asked.
func newRecordingServer(t *testing.T, response string) (*httptest.Server, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = map[string]string{}
		for k := range r.URL.Query() {
			rec.query[k] = r.URL.Query().Get(k)
		}
		rec.body = nil
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			json.Unmarshal(data, &rec.body)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, response)
	}))
	t.Cleanup(server.Close)
	return server, rec
}

func TestGetCustomers_Query(t *testing.T) {
	server, rec := newRecordingServer(t, `{"customers":[{"id":1}],"count":1}`)
	client, _ := newTestClient(t, server, "a", "r")

	list, err := client.GetCustomers(context.Background(), CustomerQuery{Search: "rossi"})
	require.NoError(t, err)

	assert.Equal(t, "/customers/", rec.path)
	assert.Equal(t, map[string]string{"page": "1", "limit": "20", "search": "rossi"}, rec.query)
	assert.Equal(t, 1, list.Count)
}

func TestGetCustomer_UnwrapsEnvelope(t *testing.T) {
	server, rec := newRecordingServer(t, `{"customer":{"id":12,"first_name":"Giulia"}}`)
	client, _ := newTestClient(t, server, "a", "r")

	customer, err := client.GetCustomer(context.Background(), 12)
	require.NoError(t, err)

	assert.Equal(t, "/customers/12/", rec.path)
	assert.Equal(t, "Giulia", customer["first_name"])
}

func TestUpdateCustomer(t *testing.T) {
	server, rec := newRecordingServer(t, `{"message":"Customer updated"}`)
	client, _ := newTestClient(t, server, "a", "r")

	_, err := client.UpdateCustomer(context.Background(), 3, map[string]string{"phone": "+39 055 000"})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "/customers/3/", rec.path)
	assert.Equal(t, "+39 055 000", rec.body["phone"])
}

func TestGetParts_OmitsEmptyFilters(t *testing.T) {
	server, rec := newRecordingServer(t, `{"parts":[]}`)
	client, _ := newTestClient(t, server, "a", "r")

	_, err := client.GetParts(context.Background(), PartQuery{Page: 2, Limit: 50, ModelID: 4})
	require.NoError(t, err)

	assert.Equal(t, "/inventory/parts/", rec.path)
	assert.Equal(t, map[string]string{"page": "2", "limit": "50", "model": "4"}, rec.query)
}

func TestGetLowStockParts(t *testing.T) {
	server, rec := newRecordingServer(t, `{
		"critical_stock": [
			{"id": 3, "part_code": "PX-CLT-01", "part_name": "Clutch cable", "part_type": "VESPA",
			 "category_name": "Cables", "min_stock_level": 10, "total_stock": 2,
			 "stock_status": "CRITICAL", "supplier_name": null}
		],
		"low_stock": [
			{"id": 8, "part_code": "GEN-SPK-02", "part_name": "Spark plug", "part_type": "GENERIC",
			 "category_name": "Ignition", "min_stock_level": 20, "total_stock": 14,
			 "stock_status": "LOW", "supplier_name": "Ricambi Srl"}
		],
		"critical_count": 1,
		"low_count": 1,
		"total_alerts": 2
	}`)
	client, _ := newTestClient(t, server, "a", "r")

	report, err := client.GetLowStockParts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/inventory/stock/low/", rec.path)
	assert.Equal(t, 2, report.TotalAlerts)
	require.Len(t, report.Parts(), 2)

	critical := report.Parts()[0]
	assert.True(t, critical.IsCritical())
	assert.Equal(t, "Clutch cable", critical.PartName)
	assert.Equal(t, 2, critical.TotalStock)
	assert.Empty(t, critical.SupplierName)

	low := report.Parts()[1]
	assert.False(t, low.IsCritical())
	assert.Equal(t, "Ricambi Srl", low.SupplierName)
}

func TestGetStockMovements_DefaultLimit(t *testing.T) {
	server, rec := newRecordingServer(t, `{"stock_movements":[]}`)
	client, _ := newTestClient(t, server, "a", "r")

	_, err := client.GetStockMovements(context.Background(), StockMovementQuery{PartID: 9})
	require.NoError(t, err)

	assert.Equal(t, "/inventory/stock-movements/", rec.path)
	assert.Equal(t, map[string]string{"limit": "50", "part_id": "9"}, rec.query)
}

func TestGetServices_Filters(t *testing.T) {
	server, rec := newRecordingServer(t, `{"services":[{"id":1}],"count":1}`)
	client, _ := newTestClient(t, server, "a", "r")

	_, err := client.GetServices(context.Background(), ServiceQuery{Status: ServiceStatusInProgress, CustomerID: 5})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"page":        "1",
		"limit":       "20",
		"status":      "IN_PROGRESS",
		"customer_id": "5",
	}, rec.query)
}

func TestUpdateServiceStatus_MergesExtraFields(t *testing.T) {
	server, rec := newRecordingServer(t, `{"message":"Status updated"}`)
	client, _ := newTestClient(t, server, "a", "r")

	_, err := client.UpdateServiceStatus(context.Background(), 21, ServiceStatusCompleted, map[string]any{
		"mileage": 12500,
		"status":  "overridden",
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/services/21/status/", rec.path)
	assert.Equal(t, "COMPLETED", rec.body["status"])
	assert.Equal(t, float64(12500), rec.body["mileage"])
}

func TestGetPaintJobs_ServiceFilter(t *testing.T) {
	server, rec := newRecordingServer(t, `[]`)
	client, _ := newTestClient(t, server, "a", "r")

	_, err := client.GetPaintJobs(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, rec.query)

	_, err = client.GetPaintJobs(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"service": "6"}, rec.query)
}

func TestDeleteWorkType(t *testing.T) {
	server, rec := newRecordingServer(t, `{"message":"Work type deactivated"}`)
	client, _ := newTestClient(t, server, "a", "r")

	res, err := client.DeleteWorkType(context.Background(), 4)
	require.NoError(t, err)

	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "/services/work-types/4/", rec.path)
	assert.Equal(t, "Work type deactivated", res["message"])
}

func TestGetAvailableSlots(t *testing.T) {
	server, rec := newRecordingServer(t, `{"date":"2026-05-04","available_slots":[{"time":"09:00"},{"time":"10:00"}],"count":2}`)
	client, _ := newTestClient(t, server, "a", "r")

	slots, err := client.GetAvailableSlots(context.Background(), "2026-05-04", "")
	require.NoError(t, err)

	assert.Equal(t, "/appointments/slots/available/", rec.path)
	assert.Equal(t, map[string]string{"date": "2026-05-04"}, rec.query)
	assert.Len(t, slots.Items, 2)
}

func TestGetTaxReports(t *testing.T) {
	server, rec := newRecordingServer(t, `{"tax_reports":[{"id":1,"status":"DRAFT"}]}`)
	client, _ := newTestClient(t, server, "a", "r")

	list, err := client.GetTaxReports(context.Background(), TaxReportQuery{Year: 2026, ReportType: "MONTHLY"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"year": "2026", "report_type": "MONTHLY"}, rec.query)
	assert.Equal(t, "DRAFT", list.Items[0]["status"])
}

func TestExportTaxReportPDF_RefreshesToken(t *testing.T) {
	pdf := []byte("%PDF-1.4 fake report")
	refreshCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh/":
			refreshCalls++
			w.Write([]byte(`{"access":"access-2"}`))
		case "/accounting/tax-reports/5/export-pdf/":
			if r.Header.Get("Authorization") != "Bearer access-2" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			assert.Equal(t, "application/pdf", r.Header.Get("Accept"))
			w.Header().Set("Content-Type", "application/pdf")
			w.Write(pdf)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, _ := newTestClient(t, server, "expired", "refresh-1")
	data, err := client.ExportTaxReportPDF(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, pdf, data)
	assert.Equal(t, 1, refreshCalls)
}

func TestGetMonthlyFinancialSummary(t *testing.T) {
	server, rec := newRecordingServer(t, `{"revenue":1200.5}`)
	client, _ := newTestClient(t, server, "a", "r")

	summary, err := client.GetMonthlyFinancialSummary(context.Background(), 2026, 3)
	require.NoError(t, err)

	assert.Equal(t, "/reports/monthly-financial-summary/", rec.path)
	assert.Equal(t, map[string]string{"year": "2026", "month": "3"}, rec.query)
	assert.Equal(t, 1200.5, summary["revenue"])
}

func TestUpdateSystemSettings(t *testing.T) {
	server, rec := newRecordingServer(t, `{"message":"Settings updated"}`)
	client, _ := newTestClient(t, server, "a", "r")

	_, err := client.UpdateSystemSettings(context.Background(), SettingsStock, map[string]int{"low_stock_threshold": 5})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "/admin/system-settings/stock/", rec.path)

	_, err = client.UpdateSystemSettings(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestSearchSalesParts(t *testing.T) {
	server, rec := newRecordingServer(t, `{"parts":[{"id":1,"part_name":"Mirror"}]}`)
	client, _ := newTestClient(t, server, "a", "r")

	list, err := client.SearchSalesParts(context.Background(), "mirror", "VESPA")
	require.NoError(t, err)

	assert.Equal(t, "/sales/parts/", rec.path)
	assert.Equal(t, map[string]string{"search": "mirror", "type": "VESPA"}, rec.query)
	assert.Equal(t, "Mirror", list.Items[0]["part_name"])
}
