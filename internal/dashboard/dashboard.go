// ABOUTME: Dashboard summary built from the four admin lists fetched in parallel
// ABOUTME: A failing list counts as empty; session expiry aborts the whole summary

package dashboard

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/2389/pharma-console/internal/config"
	"github.com/2389/pharma-console/internal/gateway"
	"github.com/2389/pharma-console/internal/pharmacy"
)

// Source lists the records the dashboard summarises. *gateway.Client
// satisfies it.
type Source interface {
	ListCustomers(ctx context.Context) ([]pharmacy.Customer, error)
	ListMedicines(ctx context.Context) ([]pharmacy.Medicine, error)
	ListOrders(ctx context.Context) ([]pharmacy.Order, error)
	ListDecisionTraces(ctx context.Context, limit int) ([]pharmacy.DecisionTrace, error)
}

// List names, as reported in Stats.Failed.
const (
	ListCustomers      = "customers"
	ListMedicines      = "medicines"
	ListOrders         = "orders"
	ListDecisionTraces = "decision-traces"
)

// Stats is the dashboard summary.
type Stats struct {
	TotalCustomers int
	NewCustomers   int
	Inventory      pharmacy.InventorySummary
	TotalOrders    int
	TotalTraces    int

	// Failed names the lists that could not be fetched and were counted as
	// empty.
	Failed []string
}

// Collect fetches every list concurrently and summarises them. Only session
// expiry is returned as an error; any other failure is logged and the list
// treated as empty.
func Collect(ctx context.Context, src Source, logger *slog.Logger) (*Stats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "dashboard")

	var (
		customers []pharmacy.Customer
		medicines []pharmacy.Medicine
		orders    []pharmacy.Order
		traces    []pharmacy.DecisionTrace
		failed    [4]bool
	)

	g, gctx := errgroup.WithContext(ctx)
	tolerate := func(i int, name string, err error) error {
		if errors.Is(err, gateway.ErrSessionExpired) {
			return err
		}
		logger.Warn("dashboard list unavailable", "list", name, "error", err)
		failed[i] = true
		return nil
	}

	g.Go(func() error {
		list, err := src.ListCustomers(gctx)
		if err != nil {
			return tolerate(0, ListCustomers, err)
		}
		customers = list
		return nil
	})
	g.Go(func() error {
		list, err := src.ListMedicines(gctx)
		if err != nil {
			return tolerate(1, ListMedicines, err)
		}
		medicines = list
		return nil
	})
	g.Go(func() error {
		list, err := src.ListOrders(gctx)
		if err != nil {
			return tolerate(2, ListOrders, err)
		}
		orders = list
		return nil
	})
	g.Go(func() error {
		list, err := src.ListDecisionTraces(gctx, config.MaxTraceLimit)
		if err != nil {
			return tolerate(3, ListDecisionTraces, err)
		}
		traces = list
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalCustomers: len(customers),
		NewCustomers:   pharmacy.CountNewCustomers(customers),
		Inventory:      pharmacy.SummariseInventory(medicines),
		TotalOrders:    len(orders),
		TotalTraces:    len(traces),
	}
	for i, name := range []string{ListCustomers, ListMedicines, ListOrders, ListDecisionTraces} {
		if failed[i] {
			stats.Failed = append(stats.Failed, name)
		}
	}
	return stats, nil
}
