package vespa

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

type InvoiceQuery struct {
	Page   int
	Limit  int
	Status string
}

type TaxReportQuery struct {
	Year       int
	ReportType string
}

func (c *Client) GetInvoices(ctx context.Context, q InvoiceQuery) (*List, error) {
	query := pageQuery(q.Page, q.Limit)
	setIf(query, "status", q.Status)
	return c.getList(ctx, "/accounting/invoices/", query, "invoices")
}

func (c *Client) GetInvoice(ctx context.Context, id int) (Record, error) {
	return c.getRecord(ctx, resourcePath("/accounting/invoices/%d/", id), nil, "invoice")
}

func (c *Client) CreateInvoice(ctx context.Context, invoice any) (Record, error) {
	return c.post(ctx, "/accounting/invoices/", invoice)
}

// GetDailyCashSummary returns the cash summary for date (YYYY-MM-DD), or for
// today when date is empty.
func (c *Client) GetDailyCashSummary(ctx context.Context, date string) (Record, error) {
	query := url.Values{}
	setIf(query, "date", date)
	return c.getRecord(ctx, "/accounting/cash-summary/", query, "cash_summary")
}

func (c *Client) CreateCashTransaction(ctx context.Context, transaction any) (Record, error) {
	return c.post(ctx, "/accounting/transactions/", transaction)
}

func (c *Client) GetAccountingDashboard(ctx context.Context) (Record, error) {
	return c.getRecord(ctx, "/accounting/dashboard/", nil, "summary")
}

func (c *Client) GetTaxReports(ctx context.Context, q TaxReportQuery) (*List, error) {
	query := url.Values{}
	if q.Year != 0 {
		query.Set("year", strconv.Itoa(q.Year))
	}
	setIf(query, "report_type", q.ReportType)
	return c.getList(ctx, "/accounting/tax-reports/", query, "tax_reports")
}

// GenerateTaxReport asks the backend to compute a tax report. The body
// usually carries year and month.
func (c *Client) GenerateTaxReport(ctx context.Context, report any) (Record, error) {
	return c.post(ctx, "/accounting/tax-reports/generate/", report)
}

// FinalizeTaxReport locks a generated report against further changes.
func (c *Client) FinalizeTaxReport(ctx context.Context, id int) (Record, error) {
	return c.post(ctx, resourcePath("/accounting/tax-reports/%d/finalize/", id), nil)
}

// ExportTaxReportPDF downloads the rendered report. It goes through the same
// token refresh path as JSON requests.
func (c *Client) ExportTaxReportPDF(ctx context.Context, id int) ([]byte, error) {
	res, err := c.do(ctx, resourcePath("/accounting/tax-reports/%d/export-pdf/", id), &RequestOptions{
		Method:  http.MethodGet,
		Headers: map[string]string{"Accept": "application/pdf"},
	})
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, newAPIError(res)
	}
	if len(res.Body()) == 0 {
		return nil, fmt.Errorf("export tax report %d: empty response", id)
	}
	return res.Body(), nil
}
