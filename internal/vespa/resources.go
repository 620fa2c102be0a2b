package vespa

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Paging defaults used by the list endpoints.
const (
	DefaultPage  = 1
	DefaultLimit = 20
)

func (c *Client) getList(ctx context.Context, endpoint string, query url.Values, key string) (*List, error) {
	raw, err := c.Request(ctx, endpoint, &RequestOptions{Query: query})
	if err != nil {
		return nil, err
	}
	return decodeList(raw, key)
}

func (c *Client) getRecord(ctx context.Context, endpoint string, query url.Values, key string) (Record, error) {
	raw, err := c.Request(ctx, endpoint, &RequestOptions{Query: query})
	if err != nil {
		return nil, err
	}
	return unwrapRecord(raw, key)
}

func (c *Client) mutate(ctx context.Context, method, endpoint string, body any) (Record, error) {
	raw, err := c.Request(ctx, endpoint, &RequestOptions{Method: method, Body: body})
	if err != nil {
		return nil, err
	}
	return decodeRecord(raw)
}

func (c *Client) post(ctx context.Context, endpoint string, body any) (Record, error) {
	return c.mutate(ctx, http.MethodPost, endpoint, body)
}

func (c *Client) put(ctx context.Context, endpoint string, body any) (Record, error) {
	return c.mutate(ctx, http.MethodPut, endpoint, body)
}

func (c *Client) delete(ctx context.Context, endpoint string) (Record, error) {
	return c.mutate(ctx, http.MethodDelete, endpoint, nil)
}

func pageQuery(page, limit int) url.Values {
	if page <= 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return q
}

// setIf sets key only for non-empty values, the way the backend expects
// optional filters to be omitted rather than blank.
func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func setIntIf(q url.Values, key string, value int) {
	if value != 0 {
		q.Set(key, strconv.Itoa(value))
	}
}

func resourcePath(format string, id int) string {
	return fmt.Sprintf(format, id)
}
