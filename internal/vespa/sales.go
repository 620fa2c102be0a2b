package vespa

import (
	"context"
	"net/url"
)

// SearchSalesParts finds sellable parts for the point of sale. partType is
// "VESPA", "GENERIC" or empty for both.
func (c *Client) SearchSalesParts(ctx context.Context, search, partType string) (*List, error) {
	query := url.Values{}
	setIf(query, "search", search)
	setIf(query, "type", partType)
	return c.getList(ctx, "/sales/parts/", query, "parts")
}

// CreateSale records a counter sale and its invoice.
func (c *Client) CreateSale(ctx context.Context, sale any) (Record, error) {
	return c.post(ctx, "/sales/", sale)
}

func (c *Client) GetSale(ctx context.Context, id int) (Record, error) {
	return c.getRecord(ctx, resourcePath("/sales/%d/", id), nil, "sale")
}
