// ABOUTME: Record commands for pharma-admin: health, lists, detail views, stats and raw requests
// ABOUTME: Each command makes one or more gateway calls and renders the result as a table

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/pharma-console/internal/dashboard"
	"github.com/2389/pharma-console/internal/gateway"
)

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func loadError(what string, err error) error {
	return fmt.Errorf("failed to load %s: %w", what, err)
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := a.client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s unreachable: %w", a.client.BaseURL(), err)
			}
			color.New(color.FgGreen).Fprintf(a.out, "  %s: %s\n", a.client.BaseURL(), status)
			return nil
		},
	}
}

func newCustomersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "customers [id]",
		Short: "List customers, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				customer, err := a.client.GetCustomer(ctx, id)
				if err != nil {
					return loadError("customer", err)
				}
				renderCustomer(a.out, customer)
				return nil
			}

			customers, err := a.client.ListCustomers(ctx)
			if err != nil {
				return loadError("customers", err)
			}
			renderCustomers(a.out, customers)
			return nil
		},
	}
}

func newMedicinesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "medicines [id]",
		Aliases: []string{"inventory"},
		Short:   "List inventory, or show one medicine",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				medicine, err := a.client.GetMedicine(ctx, id)
				if err != nil {
					return loadError("medicine", err)
				}
				renderMedicine(a.out, medicine)
				return nil
			}

			medicines, err := a.client.ListMedicines(ctx)
			if err != nil {
				return loadError("inventory", err)
			}
			renderMedicines(a.out, medicines)
			return nil
		},
	}
}

func newOrdersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "orders [id]",
		Short: "List orders, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				order, err := a.client.GetOrder(ctx, id)
				if err != nil {
					return loadError("order", err)
				}
				renderOrder(a.out, order)
				return nil
			}

			orders, err := a.client.ListOrders(ctx)
			if err != nil {
				return loadError("orders", err)
			}
			renderOrders(a.out, orders)
			return nil
		},
	}
}

func newTracesCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "traces [id]",
		Short: "List recent agent decision traces, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				trace, err := a.client.GetDecisionTrace(ctx, id)
				if err != nil {
					return loadError("decision trace", err)
				}
				renderTrace(a.out, trace)
				return nil
			}

			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.Console.TraceLimit
			}
			traces, err := a.client.ListDecisionTraces(ctx, limit)
			if err != nil {
				return loadError("decision traces", err)
			}
			renderTraces(a.out, traces)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum traces to fetch (1-100, default from config)")
	return cmd
}

func newRefillAlertsCmd(a *app) *cobra.Command {
	var customer int64
	cmd := &cobra.Command{
		Use:   "refill-alerts",
		Short: "Show medicines due for reorder, or one customer's refill eligibility",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if customer > 0 {
				alerts, err := a.client.CustomerRefillAlerts(ctx, customer)
				if err != nil {
					return loadError("refill history", err)
				}
				renderCustomerRefills(a.out, customer, alerts)
				return nil
			}

			alerts, err := a.client.ListRefillAlerts(ctx)
			if err != nil {
				return loadError("refill alerts", err)
			}
			renderRefillAlerts(a.out, alerts)
			return nil
		},
	}
	cmd.Flags().Int64Var(&customer, "customer", 0, "show refill eligibility for this customer id")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "stats",
		Aliases: []string{"dashboard"},
		Short:   "Show dashboard totals",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := dashboard.Collect(cmd.Context(), a.client, a.logger)
			if err != nil {
				return err
			}
			renderStats(a.out, stats)
			return nil
		},
	}
}

func newRequestCmd(a *app) *cobra.Command {
	var headers []string
	cmd := &cobra.Command{
		Use:   "request METHOD PATH [JSON]",
		Short: "Send a raw request through the session-aware gateway",
		Long: `Send a raw request through the session-aware gateway.

METHOD is one of GET, POST, PUT or DELETE. The session credential and,
for admin paths, the admin key are attached automatically.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := strings.ToUpper(args[0])
			path := args[1]

			var body any
			if len(args) == 3 {
				if !json.Valid([]byte(args[2])) {
					return fmt.Errorf("request body is not valid JSON")
				}
				body = json.RawMessage(args[2])
			}

			opts, err := requestOptions(headers)
			if err != nil {
				return err
			}

			resp, err := a.client.Request(cmd.Context(), method, path, body, opts)
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(a.out, "  %d %s\n\n", resp.StatusCode, method+" "+path)
			renderBody(a.out, resp.Body)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "extra header as 'Name: value' (repeatable)")
	return cmd
}

func requestOptions(headers []string) (*gateway.RequestOptions, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	opts := &gateway.RequestOptions{Header: make(http.Header)}
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want 'Name: value'", h)
		}
		opts.Header.Add(name, strings.TrimSpace(value))
	}
	return opts, nil
}
