package vespa

import (
	"context"
	"net/url"
	"strconv"
)

// Service record statuses.
const (
	ServiceStatusPending    = "PENDING"
	ServiceStatusInProgress = "IN_PROGRESS"
	ServiceStatusCompleted  = "COMPLETED"
	ServiceStatusCancelled  = "CANCELLED"
)

type ServiceQuery struct {
	Page       int
	Limit      int
	Status     string
	CustomerID int
	VespaID    int
}

type WorkTypeQuery struct {
	Search   string
	Category string
}

func (c *Client) GetServices(ctx context.Context, q ServiceQuery) (*List, error) {
	query := pageQuery(q.Page, q.Limit)
	setIf(query, "status", q.Status)
	setIntIf(query, "customer_id", q.CustomerID)
	setIntIf(query, "vespa_id", q.VespaID)
	return c.getList(ctx, "/services/", query, "services")
}

func (c *Client) GetService(ctx context.Context, id int) (Record, error) {
	return c.getRecord(ctx, resourcePath("/services/%d/", id), nil, "service")
}

func (c *Client) CreateService(ctx context.Context, service any) (Record, error) {
	return c.post(ctx, "/services/", service)
}

// UpdateServiceStatus moves a service record to status. Fields in extra,
// such as completion notes or mileage, are sent alongside; a "status" key in
// extra is overridden.
func (c *Client) UpdateServiceStatus(ctx context.Context, id int, status string, extra map[string]any) (Record, error) {
	body := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		body[k] = v
	}
	body["status"] = status
	return c.post(ctx, resourcePath("/services/%d/status/", id), body)
}

// AddServiceParts attaches used parts to a service record.
func (c *Client) AddServiceParts(ctx context.Context, id int, parts []map[string]any) (Record, error) {
	return c.post(ctx, resourcePath("/services/%d/parts/", id), map[string]any{"parts": parts})
}

func (c *Client) GetServiceDashboard(ctx context.Context) (Record, error) {
	return c.getRecord(ctx, "/services/dashboard/", nil, "")
}

// GetServiceRevenue returns revenue per month for the last months months.
// Zero uses the backend default.
func (c *Client) GetServiceRevenue(ctx context.Context, months int) (Record, error) {
	query := url.Values{}
	setIntIf(query, "months", months)
	return c.getRecord(ctx, "/services/revenue/", query, "")
}

// GetPaintTemplates lists the paint templates available for a Vespa model.
func (c *Client) GetPaintTemplates(ctx context.Context, modelID int) (*List, error) {
	return c.getList(ctx, resourcePath("/services/paint/templates/%d/", modelID), nil, "templates")
}

// GetPaintTemplateParts lists the paintable parts (SVG elements) of a
// template.
func (c *Client) GetPaintTemplateParts(ctx context.Context, templateID int) (*List, error) {
	return c.getList(ctx, resourcePath("/services/paint/template-parts/%d/", templateID), nil, "parts")
}

// GetPaintJobs lists paint jobs, optionally only those of one service.
func (c *Client) GetPaintJobs(ctx context.Context, serviceID int) (*List, error) {
	query := url.Values{}
	if serviceID != 0 {
		query.Set("service", strconv.Itoa(serviceID))
	}
	return c.getList(ctx, "/services/paint/jobs/", query, "paint_jobs")
}

func (c *Client) CreatePaintJob(ctx context.Context, job any) (Record, error) {
	return c.post(ctx, "/services/paint/jobs/", job)
}

func (c *Client) GetPaintJob(ctx context.Context, id int) (Record, error) {
	return c.getRecord(ctx, resourcePath("/services/paint/jobs/%d/", id), nil, "paint_job")
}

func (c *Client) GetWorkTypes(ctx context.Context, q WorkTypeQuery) (*List, error) {
	query := url.Values{}
	setIf(query, "search", q.Search)
	setIf(query, "category", q.Category)
	return c.getList(ctx, "/services/work-types/", query, "work_types")
}

func (c *Client) GetWorkType(ctx context.Context, id int) (Record, error) {
	return c.getRecord(ctx, resourcePath("/services/work-types/%d/", id), nil, "work_type")
}

func (c *Client) CreateWorkType(ctx context.Context, workType any) (Record, error) {
	return c.post(ctx, "/services/work-types/", workType)
}

func (c *Client) UpdateWorkType(ctx context.Context, id int, workType any) (Record, error) {
	return c.put(ctx, resourcePath("/services/work-types/%d/", id), workType)
}

// DeleteWorkType deactivates a work type. The backend keeps the row for
// historical service records.
func (c *Client) DeleteWorkType(ctx context.Context, id int) (Record, error) {
	return c.delete(ctx, resourcePath("/services/work-types/%d/", id))
}

// GetWorkTypeCategories returns work types grouped by category.
func (c *Client) GetWorkTypeCategories(ctx context.Context) (Record, error) {
	return c.getRecord(ctx, "/services/work-types/categories/", nil, "")
}
