package vespa

import (
	"context"
	"net/url"
	"strconv"
)

func (c *Client) GetDashboardData(ctx context.Context) (Record, error) {
	return c.getRecord(ctx, "/reports/dashboard/", nil, "")
}

func (c *Client) GetCustomerSummaryReport(ctx context.Context) (Record, error) {
	return c.getRecord(ctx, "/reports/customers/", nil, "")
}

func (c *Client) GetInventorySummaryReport(ctx context.Context) (Record, error) {
	return c.getRecord(ctx, "/reports/inventory/", nil, "")
}

func (c *Client) GetServicePerformanceReport(ctx context.Context) (Record, error) {
	return c.getRecord(ctx, "/reports/services/", nil, "")
}

func (c *Client) GetMonthlyFinancialSummary(ctx context.Context, year, month int) (Record, error) {
	query := url.Values{}
	query.Set("year", strconv.Itoa(year))
	query.Set("month", strconv.Itoa(month))
	return c.getRecord(ctx, "/reports/monthly-financial-summary/", query, "")
}

// GetTaxCalculationSummary covers startDate to endDate inclusive, both
// YYYY-MM-DD.
func (c *Client) GetTaxCalculationSummary(ctx context.Context, startDate, endDate string) (Record, error) {
	query := url.Values{}
	query.Set("start_date", startDate)
	query.Set("end_date", endDate)
	return c.getRecord(ctx, "/reports/tax-calculation/", query, "")
}
