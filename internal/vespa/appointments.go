package vespa

import (
	"context"
	"net/url"
	"strconv"
)

// Appointment statuses.
const (
	AppointmentScheduled = "SCHEDULED"
	AppointmentConfirmed = "CONFIRMED"
	AppointmentCompleted = "COMPLETED"
	AppointmentCancelled = "CANCELLED"
	AppointmentNoShow    = "NO_SHOW"
)

// AppointmentQuery filters appointments. Dates are YYYY-MM-DD.
type AppointmentQuery struct {
	StartDate string
	EndDate   string
	Status    string
}

func (c *Client) GetAppointments(ctx context.Context, q AppointmentQuery) (*List, error) {
	query := url.Values{}
	setIf(query, "start_date", q.StartDate)
	setIf(query, "end_date", q.EndDate)
	setIf(query, "status", q.Status)
	return c.getList(ctx, "/appointments/", query, "appointments")
}

func (c *Client) GetAppointment(ctx context.Context, id int) (Record, error) {
	return c.getRecord(ctx, resourcePath("/appointments/%d/", id), nil, "appointment")
}

// GetAvailableSlots lists free booking slots on date (YYYY-MM-DD).
// serviceType may be empty.
func (c *Client) GetAvailableSlots(ctx context.Context, date, serviceType string) (*List, error) {
	query := url.Values{}
	query.Set("date", date)
	setIf(query, "service_type", serviceType)
	return c.getList(ctx, "/appointments/slots/available/", query, "available_slots")
}

func (c *Client) CreateAppointment(ctx context.Context, appointment any) (Record, error) {
	return c.post(ctx, "/appointments/", appointment)
}

func (c *Client) UpdateAppointment(ctx context.Context, id int, appointment any) (Record, error) {
	return c.put(ctx, resourcePath("/appointments/%d/", id), appointment)
}

func (c *Client) UpdateAppointmentStatus(ctx context.Context, id int, status string) (Record, error) {
	return c.post(ctx, resourcePath("/appointments/%d/status/", id), map[string]string{"status": status})
}

// RescheduleAppointment moves an appointment to newDate (YYYY-MM-DD) and
// newTime (HH:MM).
func (c *Client) RescheduleAppointment(ctx context.Context, id int, newDate, newTime, reason string) (Record, error) {
	return c.post(ctx, resourcePath("/appointments/%d/reschedule/", id), map[string]string{
		"new_date": newDate,
		"new_time": newTime,
		"reason":   reason,
	})
}

// GetAppointmentCalendar returns the month view. Zero year or month means
// the current one.
func (c *Client) GetAppointmentCalendar(ctx context.Context, year, month int) (Record, error) {
	query := url.Values{}
	if year != 0 {
		query.Set("year", strconv.Itoa(year))
	}
	setIntIf(query, "month", month)
	return c.getRecord(ctx, "/appointments/calendar/", query, "")
}
