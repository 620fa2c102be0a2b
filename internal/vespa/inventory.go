package vespa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Stock statuses reported by the low-stock endpoint.
const (
	StockStatusLow      = "LOW"
	StockStatusCritical = "CRITICAL"
)

type PartQuery struct {
	Page     int
	Limit    int
	Category string
	Search   string
	// ModelID restricts the list to parts fitting a Vespa model.
	ModelID int
}

type StockMovementQuery struct {
	PartID int
	// Limit defaults to 50.
	Limit int
}

// LowStockPart is a part at or below its minimum stock level.
type LowStockPart struct {
	ID            int    `json:"id"`
	PartCode      string `json:"part_code"`
	PartName      string `json:"part_name"`
	PartType      string `json:"part_type"`
	CategoryName  string `json:"category_name"`
	MinStockLevel int    `json:"min_stock_level"`
	TotalStock    int    `json:"total_stock"`
	StockStatus   string `json:"stock_status"`
	SupplierName  string `json:"supplier_name"`
}

func (p LowStockPart) IsCritical() bool {
	return p.StockStatus == StockStatusCritical
}

type LowStockReport struct {
	CriticalStock []LowStockPart `json:"critical_stock"`
	LowStock      []LowStockPart `json:"low_stock"`
	CriticalCount int            `json:"critical_count"`
	LowCount      int            `json:"low_count"`
	TotalAlerts   int            `json:"total_alerts"`
}

// Parts returns critical parts first, then low ones.
func (r *LowStockReport) Parts() []LowStockPart {
	parts := make([]LowStockPart, 0, len(r.CriticalStock)+len(r.LowStock))
	parts = append(parts, r.CriticalStock...)
	return append(parts, r.LowStock...)
}

func (c *Client) GetParts(ctx context.Context, q PartQuery) (*List, error) {
	query := pageQuery(q.Page, q.Limit)
	setIf(query, "category", q.Category)
	setIf(query, "search", q.Search)
	setIntIf(query, "model", q.ModelID)
	return c.getList(ctx, "/inventory/parts/", query, "parts")
}

func (c *Client) GetPart(ctx context.Context, id int) (Record, error) {
	return c.getRecord(ctx, resourcePath("/inventory/parts/%d/", id), nil, "part")
}

// GetPartLocations lists where a part is stored and how many are at each
// location.
func (c *Client) GetPartLocations(ctx context.Context, partID int) (*List, error) {
	return c.getList(ctx, resourcePath("/inventory/parts/%d/locations/", partID), nil, "locations")
}

func (c *Client) GetPartCategories(ctx context.Context) (*List, error) {
	return c.getList(ctx, "/inventory/categories/", nil, "categories")
}

func (c *Client) GetLowStockParts(ctx context.Context) (*LowStockReport, error) {
	raw, err := c.Request(ctx, "/inventory/stock/low/", nil)
	if err != nil {
		return nil, err
	}

	report := &LowStockReport{}
	if raw == nil {
		return report, nil
	}
	if err := json.Unmarshal(raw, report); err != nil {
		return nil, fmt.Errorf("decode low stock report: %w", err)
	}
	return report, nil
}

func (c *Client) GetStockMovements(ctx context.Context, q StockMovementQuery) (*List, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	setIntIf(query, "part_id", q.PartID)
	return c.getList(ctx, "/inventory/stock-movements/", query, "stock_movements")
}

func (c *Client) GetStorageLocations(ctx context.Context) (*List, error) {
	return c.getList(ctx, "/inventory/locations/", nil, "storage_locations")
}

func (c *Client) GetSuppliers(ctx context.Context) (*List, error) {
	return c.getList(ctx, "/inventory/suppliers/", nil, "suppliers")
}

// GetCurrencyRates returns the exchange rates used for part pricing.
func (c *Client) GetCurrencyRates(ctx context.Context) (Record, error) {
	return c.getRecord(ctx, "/inventory/currency/rates/", nil, "")
}

// UpdateCurrencyRates asks the backend to fetch fresh exchange rates.
func (c *Client) UpdateCurrencyRates(ctx context.Context) (Record, error) {
	return c.post(ctx, "/inventory/currency-rates/", nil)
}
