// ABOUTME: Table and detail rendering for pharma-admin
// ABOUTME: Writes tabwriter tables with cyan headers in the console's house style

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/2389/pharma-console/internal/dashboard"
	"github.com/2389/pharma-console/internal/pharmacy"
)

func header(w io.Writer, title string) {
	cyan := color.New(color.FgCyan)
	fmt.Fprintln(w)
	cyan.Fprintln(w, "  "+title)
	cyan.Fprintln(w, "  "+strings.Repeat("-", len(title)))
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func empty(w io.Writer, what string) {
	fmt.Fprintf(w, "  (no %s)\n\n", what)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func formatTime(ts pharmacy.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("Jan 02 15:04")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func renderCustomers(w io.Writer, customers []pharmacy.Customer) {
	header(w, "Customers")
	if len(customers) == 0 {
		empty(w, "customers")
		return
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "  ID\tNAME\tCONTACT\tNEW\tJOINED")
	fmt.Fprintln(tw, "  --\t----\t-------\t---\t------")
	for _, c := range customers {
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\n",
			c.ID, truncate(c.DisplayName(), 24), truncate(c.Contact(), 28), yesNo(c.IsNewUser), formatTime(c.CreatedAt))
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func renderCustomer(w io.Writer, c *pharmacy.Customer) {
	header(w, c.DisplayName())
	tw := newTable(w)
	fmt.Fprintf(tw, "  ID:\t%d\n", c.ID)
	fmt.Fprintf(tw, "  Email:\t%s\n", orDash(c.Email))
	fmt.Fprintf(tw, "  Phone:\t%s\n", orDash(c.Phone))
	fmt.Fprintf(tw, "  New user:\t%s\n", yesNo(c.IsNewUser))
	fmt.Fprintf(tw, "  Language:\t%s\n", orDash(c.PreferredLanguage))
	fmt.Fprintf(tw, "  Joined:\t%s\n", formatTime(c.CreatedAt))
	tw.Flush()
	fmt.Fprintln(w)
}

func renderMedicines(w io.Writer, medicines []pharmacy.Medicine) {
	header(w, "Inventory")
	if len(medicines) == 0 {
		empty(w, "medicines")
		return
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "  ID\tNAME\tSTOCK\tSTATUS\tRX")
	fmt.Fprintln(tw, "  --\t----\t-----\t------\t--")
	for _, m := range medicines {
		fmt.Fprintf(tw, "  %d\t%s\t%d\t%s\t%s\n",
			m.ID, truncate(m.Name, 28), m.StockQuantity, stockLabel(m), yesNo(m.PrescriptionRequired))
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func stockLabel(m pharmacy.Medicine) string {
	status := m.StockStatus()
	switch status {
	case pharmacy.StockOut:
		return color.RedString(status)
	case pharmacy.StockLow:
		return color.YellowString(status)
	default:
		return color.GreenString(status)
	}
}

func renderMedicine(w io.Writer, m *pharmacy.Medicine) {
	header(w, m.Name)
	tw := newTable(w)
	fmt.Fprintf(tw, "  ID:\t%d\n", m.ID)
	fmt.Fprintf(tw, "  Generic name:\t%s\n", orDash(m.GenericName))
	fmt.Fprintf(tw, "  Unit:\t%s\n", orDash(m.UnitType))
	fmt.Fprintf(tw, "  Stock:\t%d (%s)\n", m.StockQuantity, stockLabel(*m))
	fmt.Fprintf(tw, "  Reorder level:\t%d\n", m.ReorderLevel)
	fmt.Fprintf(tw, "  Prescription:\t%s\n", yesNo(m.PrescriptionRequired))
	fmt.Fprintf(tw, "  Price:\t%.2f\n", m.Price)
	fmt.Fprintf(tw, "  Added:\t%s\n", formatTime(m.CreatedAt))
	tw.Flush()
	fmt.Fprintln(w)
}

func renderOrders(w io.Writer, orders []pharmacy.Order) {
	header(w, "Orders")
	if len(orders) == 0 {
		empty(w, "orders")
		return
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "  ID\tCUSTOMER\tMEDICINE\tQTY\tSTATUS\tCREATED")
	fmt.Fprintln(tw, "  --\t--------\t--------\t---\t------\t-------")
	for _, o := range orders {
		fmt.Fprintf(tw, "  %d\t%d\t%s\t%d\t%s\t%s\n",
			o.ID, o.CustomerID, truncate(orDash(o.MedicineName), 24), o.Quantity, o.Status, formatTime(o.CreatedAt))
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func renderOrder(w io.Writer, o *pharmacy.Order) {
	header(w, "Order #"+strconv.FormatInt(o.ID, 10))
	tw := newTable(w)
	fmt.Fprintf(tw, "  Customer:\t%d\n", o.CustomerID)
	fmt.Fprintf(tw, "  Medicine:\t%s\n", orDash(o.MedicineName))
	fmt.Fprintf(tw, "  Quantity:\t%d\n", o.Quantity)
	fmt.Fprintf(tw, "  Status:\t%s\n", o.Status)
	fmt.Fprintf(tw, "  Created:\t%s\n", formatTime(o.CreatedAt))
	tw.Flush()
	fmt.Fprintln(w)
}

func renderTraces(w io.Writer, traces []pharmacy.DecisionTrace) {
	header(w, "Decision Traces")
	if len(traces) == 0 {
		empty(w, "decision traces")
		return
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "  ID\tCREATED\tSUMMARY")
	fmt.Fprintln(tw, "  --\t-------\t-------")
	for _, t := range pharmacy.SortTracesNewestFirst(traces) {
		fmt.Fprintf(tw, "  %d\t%s\t%s\n", t.ID, formatTime(t.CreatedAt), t.Summary(60))
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func renderTrace(w io.Writer, t *pharmacy.DecisionTrace) {
	header(w, "Decision Trace #"+strconv.FormatInt(t.ID, 10))
	tw := newTable(w)
	fmt.Fprintf(tw, "  Created:\t%s\n", formatTime(t.CreatedAt))
	for _, k := range t.ExtraKeys() {
		fmt.Fprintf(tw, "  %s:\t%s\n", k, orDash(gjson.ParseBytes(t.Extra[k]).String()))
	}
	tw.Flush()
	fmt.Fprintln(w)
	if len(t.TraceData) == 0 {
		fmt.Fprintln(w, "  (no trace data)")
	} else {
		renderBody(w, t.TraceData)
	}
	fmt.Fprintln(w)
}

func renderRefillAlerts(w io.Writer, alerts []pharmacy.RefillAlert) {
	header(w, "Refill Alerts")
	if len(alerts) == 0 {
		empty(w, "refill alerts")
		return
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "  ID\tMEDICINE\tSTOCK\tREORDER AT\tSUGGESTED\tPRIORITY")
	fmt.Fprintln(tw, "  --\t--------\t-----\t----------\t---------\t--------")
	for _, a := range alerts {
		priority := a.AlertPriority
		if priority == pharmacy.AlertCritical {
			priority = color.RedString(priority)
		}
		fmt.Fprintf(tw, "  %d\t%s\t%d\t%d\t%d\t%s\n",
			a.ID, truncate(a.Name, 28), a.CurrentStock, a.ReorderPoint, a.SuggestedOrderQty, priority)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func renderCustomerRefills(w io.Writer, customerID int64, alerts []pharmacy.CustomerRefillAlert) {
	header(w, fmt.Sprintf("Refills for customer %d", customerID))
	if len(alerts) == 0 {
		empty(w, "refill history")
		return
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "  ORDER\tMEDICINE\tLAST ORDER\tDAYS\tELIGIBLE\tNEXT")
	fmt.Fprintln(tw, "  -----\t--------\t----------\t----\t--------\t----")
	for _, a := range alerts {
		fmt.Fprintf(tw, "  %d\t%d\t%s\t%d\t%s\t%s\n",
			a.OrderID, a.MedicineID, formatTime(a.LastOrderDate), a.DaysSinceOrder, yesNo(a.RefillEligible), formatTime(a.NextEligibleDate))
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func renderStats(w io.Writer, s *dashboard.Stats) {
	header(w, "Dashboard")
	tw := newTable(w)
	fmt.Fprintf(tw, "  Customers:\t%d (%d new)\n", s.TotalCustomers, s.NewCustomers)
	fmt.Fprintf(tw, "  Medicines:\t%d\n", s.Inventory.Total)
	fmt.Fprintf(tw, "  In stock:\t%d\n", s.Inventory.InStock)
	fmt.Fprintf(tw, "  Low stock:\t%d\n", s.Inventory.LowStock)
	fmt.Fprintf(tw, "  Out of stock:\t%d\n", s.Inventory.OutOfStock)
	fmt.Fprintf(tw, "  Prescription only:\t%d\n", s.Inventory.PrescriptionRequired)
	fmt.Fprintf(tw, "  Orders:\t%d\n", s.TotalOrders)
	fmt.Fprintf(tw, "  Decision traces:\t%d\n", s.TotalTraces)
	tw.Flush()

	for _, name := range s.Failed {
		color.New(color.FgYellow).Fprintf(w, "  warning: %s could not be loaded and is counted as empty\n", name)
	}
	fmt.Fprintln(w)
}

// renderBody writes a raw response body, indenting it when it is JSON.
func renderBody(w io.Writer, body []byte) {
	if len(body) == 0 {
		return
	}
	if !gjson.ValidBytes(body) {
		w.Write(body)
		fmt.Fprintln(w)
		return
	}
	w.Write(pretty.Pretty(body))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
