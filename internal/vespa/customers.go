package vespa

import "context"

type CustomerQuery struct {
	Page   int
	Limit  int
	Search string
}

func (c *Client) GetCustomers(ctx context.Context, q CustomerQuery) (*List, error) {
	query := pageQuery(q.Page, q.Limit)
	setIf(query, "search", q.Search)
	return c.getList(ctx, "/customers/", query, "customers")
}

func (c *Client) GetCustomer(ctx context.Context, id int) (Record, error) {
	return c.getRecord(ctx, resourcePath("/customers/%d/", id), nil, "customer")
}

func (c *Client) CreateCustomer(ctx context.Context, customer any) (Record, error) {
	return c.post(ctx, "/customers/", customer)
}

func (c *Client) UpdateCustomer(ctx context.Context, id int, customer any) (Record, error) {
	return c.put(ctx, resourcePath("/customers/%d/", id), customer)
}

func (c *Client) GetVespaModels(ctx context.Context) (*List, error) {
	return c.getList(ctx, "/customers/vespa-models/", nil, "models")
}

// GetCustomerVespas lists the scooters registered to a customer.
func (c *Client) GetCustomerVespas(ctx context.Context, customerID int) (*List, error) {
	return c.getList(ctx, resourcePath("/customers/%d/vespas/", customerID), nil, "vespas")
}
