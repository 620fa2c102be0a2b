package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/vespa-garage/vespa-admin/internal/vespa"
	"golang.org/x/sync/errgroup"
)

var errUnknownCommand = errors.New("unknown command")

type app struct {
	client       *vespa.Client
	out          io.Writer
	prompt       func(label string) (string, error)
	readPassword func() (string, error)
	closer       io.Closer
	// now is replaced in tests.
	now func() time.Time
}

func (a *app) close() {
	if a.closer != nil {
		a.closer.Close()
	}
}

func (a *app) today() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "logout":
		a.client.Deauthenticate(ctx)
		fmt.Fprintln(a.out, "Logged out.")
		return nil
	case "whoami":
		return a.whoami(ctx)
	case "status":
		return a.status(ctx)
	case "customers":
		return a.customers(ctx, args)
	case "low-stock":
		return a.lowStock(ctx)
	case "export-tax-report":
		return a.exportTaxReport(ctx, args)
	case "get":
		return a.get(ctx, args)
	default:
		return fmt.Errorf("%w %q", errUnknownCommand, cmd)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	username := fs.String("u", "", "username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		name, err := a.prompt("Username: ")
		if err != nil {
			return err
		}
		*username = name
	}
	if *username == "" {
		return errors.New("username is required")
	}

	password, err := a.readPassword()
	if err != nil {
		return err
	}

	res, err := a.client.Authenticate(ctx, *username, password)
	if err != nil {
		return err
	}

	name := res.User.FullName
	if name == "" {
		name = res.User.Username
	}
	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", name, res.User.Role)
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	if a.client.Session().State() == vespa.StateUnauthenticated {
		return errors.New("not logged in")
	}

	user, err := a.client.CurrentUser(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (%s), role %s\n", user.FullName, user.Username, user.Role)

	access, _ := a.client.Session().Credentials()
	if claims, err := vespa.ParseTokenClaims(access); err == nil && claims.ExpiresAt != nil {
		fmt.Fprintf(a.out, "Access token expires %s\n", claims.ExpiresAt.Time.Local().Format(time.RFC1123))
	}
	return nil
}

func (a *app) customers(ctx context.Context, args []string) error {
	fs := newFlagSet("customers")
	q := vespa.CustomerQuery{}
	fs.StringVar(&q.Search, "search", "", "search by name, email or phone")
	fs.IntVar(&q.Page, "page", vespa.DefaultPage, "page number")
	fs.IntVar(&q.Limit, "limit", vespa.DefaultLimit, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}

	list, err := a.client.GetCustomers(ctx, q)
	if err != nil {
		return err
	}

	t := newTable("ID", "Name", "Phone", "Email")
	for _, c := range list.Items {
		name := strings.TrimSpace(field(c, "first_name") + " " + field(c, "last_name"))
		if name == "" {
			name = field(c, "name")
		}
		t.Row(field(c, "id"), name, field(c, "phone"), field(c, "email"))
	}
	fmt.Fprintln(a.out, t.Render())
	fmt.Fprintf(a.out, "%d of %d customers\n", len(list.Items), list.Count)
	return nil
}

func (a *app) lowStock(ctx context.Context) error {
	report, err := a.client.GetLowStockParts(ctx)
	if err != nil {
		return err
	}
	if report.TotalAlerts == 0 && len(report.Parts()) == 0 {
		fmt.Fprintln(a.out, "All parts are above their minimum stock level.")
		return nil
	}

	t := newTable("Status", "Code", "Part", "Stock", "Min", "Supplier")
	for _, p := range report.Parts() {
		t.Row(p.StockStatus, p.PartCode, p.PartName, strconv.Itoa(p.TotalStock), strconv.Itoa(p.MinStockLevel), p.SupplierName)
	}
	fmt.Fprintln(a.out, t.Render())
	fmt.Fprintf(a.out, "%d critical, %d low\n", report.CriticalCount, report.LowCount)
	return nil
}

func (a *app) exportTaxReport(ctx context.Context, args []string) error {
	fs := newFlagSet("export-tax-report")
	id := fs.Int("id", 0, "tax report ID")
	output := fs.String("o", "", "output file (default tax-report-<id>.pdf)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("-id is required")
	}
	if *output == "" {
		*output = fmt.Sprintf("tax-report-%d.pdf", *id)
	}

	data, err := a.client.ExportTaxReportPDF(ctx, *id)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*output, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", *output, err)
	}
	fmt.Fprintf(a.out, "Saved %s (%d bytes)\n", *output, len(data))
	return nil
}

// queryFlags collects repeated -q key=value flags.
type queryFlags url.Values

func (q queryFlags) String() string { return url.Values(q).Encode() }

func (q queryFlags) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	url.Values(q).Add(key, value)
	return nil
}

func (a *app) get(ctx context.Context, args []string) error {
	fs := newFlagSet("get")
	query := queryFlags{}
	fs.Var(query, "q", "query parameter key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: vespactl get [-q key=value] <endpoint>")
	}

	raw, err := a.client.Request(ctx, fs.Arg(0), &vespa.RequestOptions{Query: url.Values(query)})
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return err
	}
	fmt.Fprintln(a.out, pretty.String())
	return nil
}

// status fetches the dashboard, low stock report and today's appointments
// concurrently. A single expired session fails all three the same way.
func (a *app) status(ctx context.Context) error {
	var (
		dashboard    vespa.Record
		report       *vespa.LowStockReport
		appointments *vespa.List
	)
	today := a.today().Format(time.DateOnly)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dashboard, err = a.client.GetDashboardData(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		report, err = a.client.GetLowStockParts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		appointments, err = a.client.GetAppointments(gctx, vespa.AppointmentQuery{StartDate: today, EndDate: today})
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	heading := lipgloss.NewStyle().Bold(true)
	fmt.Fprintln(a.out, heading.Render("Dashboard"))
	t := newTable("Metric", "Value")
	for _, key := range slices.Sorted(maps.Keys(dashboard)) {
		t.Row(key, field(dashboard, key))
	}
	fmt.Fprintln(a.out, t.Render())

	fmt.Fprintln(a.out, heading.Render("Stock"))
	fmt.Fprintf(a.out, "%d critical, %d low\n", report.CriticalCount, report.LowCount)

	fmt.Fprintln(a.out, heading.Render("Appointments "+today))
	if len(appointments.Items) == 0 {
		fmt.Fprintln(a.out, "none")
	}
	for _, ap := range appointments.Items {
		fmt.Fprintf(a.out, "%s  %s  %s\n", field(ap, "appointment_time"), field(ap, "customer_name"), field(ap, "status"))
	}
	return nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

// field renders a scalar JSON value. Nested values are rendered as JSON.
func field(r vespa.Record, key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}
