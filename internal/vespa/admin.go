package vespa

import (
	"context"
	"fmt"
	"net/url"
)

// System settings categories.
const (
	SettingsCompany  = "company"
	SettingsEmail    = "email"
	SettingsStock    = "stock"
	SettingsCurrency = "currency"
)

func (c *Client) GetSystemSettings(ctx context.Context) (Record, error) {
	return c.getRecord(ctx, "/admin/system-settings/", nil, "")
}

func (c *Client) UpdateSystemSettings(ctx context.Context, category string, settings any) (Record, error) {
	if category == "" {
		return nil, fmt.Errorf("update system settings: category is required")
	}
	return c.put(ctx, "/admin/system-settings/"+url.PathEscape(category)+"/", settings)
}

// TestEmailSettings asks the backend to send a test mail with the given SMTP
// settings without saving them.
func (c *Client) TestEmailSettings(ctx context.Context, settings any) (Record, error) {
	return c.post(ctx, "/admin/test-email/", settings)
}

// GetEmailNotifications lists queued and sent notifications, optionally
// filtered by status.
func (c *Client) GetEmailNotifications(ctx context.Context, status string) (*List, error) {
	query := url.Values{}
	setIf(query, "status", status)
	return c.getList(ctx, "/admin/email-notifications/", query, "notifications")
}

func (c *Client) SendEmailNotification(ctx context.Context, notification any) (Record, error) {
	return c.post(ctx, "/admin/email-notifications/send/", notification)
}

func (c *Client) GetEmailSettings(ctx context.Context) (Record, error) {
	return c.getRecord(ctx, "/settings/email/", nil, "")
}

func (c *Client) UpdateEmailSettings(ctx context.Context, settings any) (Record, error) {
	return c.put(ctx, "/settings/email/", settings)
}

func (c *Client) SendTestEmail(ctx context.Context, recipient string) (Record, error) {
	return c.post(ctx, "/settings/email/test/", map[string]string{"recipient": recipient})
}

func (c *Client) GetCompanySettings(ctx context.Context) (Record, error) {
	return c.getRecord(ctx, "/settings/company/", nil, "")
}

func (c *Client) UpdateCompanySettings(ctx context.Context, settings any) (Record, error) {
	return c.put(ctx, "/settings/company/", settings)
}

func (c *Client) GetStockSettings(ctx context.Context) (Record, error) {
	return c.getRecord(ctx, "/settings/stock/", nil, "")
}

func (c *Client) UpdateStockSettings(ctx context.Context, settings any) (Record, error) {
	return c.put(ctx, "/settings/stock/", settings)
}
