// ABOUTME: Typed backend operations built on the gateway client
// ABOUTME: Health, chat, admin list/get endpoints and refill alerts

package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/2389/pharma-console/internal/config"
	"github.com/2389/pharma-console/internal/pharmacy"
)

// Backend paths.
const (
	PathHealth         = "/health"
	PathChat           = "/chat"
	PathCustomers      = "/admin/customers/"
	PathMedicines      = "/admin/medicines/"
	PathOrders         = "/admin/orders/"
	PathDecisionTraces = "/admin/decision-traces/"
	PathRefillAlerts   = "/admin/refill-alerts/"
)

// ClampTraceLimit bounds a decision trace limit to [1, MaxTraceLimit]. Zero
// or negative selects the default.
func ClampTraceLimit(limit int) int {
	switch {
	case limit <= 0:
		return config.DefaultTraceLimit
	case limit > config.MaxTraceLimit:
		return config.MaxTraceLimit
	default:
		return limit
	}
}

// Health checks backend liveness and returns its reported status. Bodies
// without a status field are returned verbatim.
func (c *Client) Health(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, PathHealth, nil, nil)
	if err != nil {
		return "", err
	}
	if status := gjson.GetBytes(resp.Body, "status"); status.Exists() {
		return status.String(), nil
	}
	return strings.TrimSpace(string(resp.Body)), nil
}

// Chat sends one conversation turn on behalf of a customer.
func (c *Client) Chat(ctx context.Context, customerID int64, message string) (*pharmacy.ChatReply, error) {
	req := pharmacy.ChatRequest{CustomerID: customerID, Message: message}
	resp, err := c.do(ctx, http.MethodPost, PathChat, req, nil)
	if err != nil {
		return nil, err
	}
	var reply pharmacy.ChatReply
	if err := resp.Decode(&reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// ListCustomers returns every customer.
func (c *Client) ListCustomers(ctx context.Context) ([]pharmacy.Customer, error) {
	return getList[pharmacy.Customer](ctx, c, PathCustomers, nil)
}

// GetCustomer returns one customer.
func (c *Client) GetCustomer(ctx context.Context, id int64) (*pharmacy.Customer, error) {
	return getOne[pharmacy.Customer](ctx, c, itemPath(PathCustomers, id))
}

// ListMedicines returns the inventory.
func (c *Client) ListMedicines(ctx context.Context) ([]pharmacy.Medicine, error) {
	return getList[pharmacy.Medicine](ctx, c, PathMedicines, nil)
}

// GetMedicine returns one medicine.
func (c *Client) GetMedicine(ctx context.Context, id int64) (*pharmacy.Medicine, error) {
	return getOne[pharmacy.Medicine](ctx, c, itemPath(PathMedicines, id))
}

// ListOrders returns every order.
func (c *Client) ListOrders(ctx context.Context) ([]pharmacy.Order, error) {
	return getList[pharmacy.Order](ctx, c, PathOrders, nil)
}

// GetOrder returns one order.
func (c *Client) GetOrder(ctx context.Context, id int64) (*pharmacy.Order, error) {
	return getOne[pharmacy.Order](ctx, c, itemPath(PathOrders, id))
}

// ListDecisionTraces returns the most recent decision traces. The limit is
// clamped with ClampTraceLimit.
func (c *Client) ListDecisionTraces(ctx context.Context, limit int) ([]pharmacy.DecisionTrace, error) {
	query := url.Values{"limit": []string{strconv.Itoa(ClampTraceLimit(limit))}}
	return getList[pharmacy.DecisionTrace](ctx, c, PathDecisionTraces, query)
}

// GetDecisionTrace returns one decision trace.
func (c *Client) GetDecisionTrace(ctx context.Context, id int64) (*pharmacy.DecisionTrace, error) {
	return getOne[pharmacy.DecisionTrace](ctx, c, itemPath(PathDecisionTraces, id))
}

// ListRefillAlerts returns medicines at or below the reorder point.
func (c *Client) ListRefillAlerts(ctx context.Context) ([]pharmacy.RefillAlert, error) {
	return getList[pharmacy.RefillAlert](ctx, c, PathRefillAlerts, nil)
}

// CustomerRefillAlerts returns refill eligibility for a customer's recent orders.
func (c *Client) CustomerRefillAlerts(ctx context.Context, customerID int64) ([]pharmacy.CustomerRefillAlert, error) {
	path := PathRefillAlerts + "customer/" + strconv.FormatInt(customerID, 10)
	return getList[pharmacy.CustomerRefillAlert](ctx, c, path, nil)
}

func itemPath(collection string, id int64) string {
	return collection + strconv.FormatInt(id, 10)
}

func getList[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var opts *RequestOptions
	if len(query) > 0 {
		opts = &RequestOptions{Query: query}
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil, opts)
	if err != nil {
		return nil, err
	}
	items, err := pharmacy.DecodeList[T](resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return items, nil
}

func getOne[T any](ctx context.Context, c *Client, path string) (*T, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	var item T
	if err := resp.Decode(&item); err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return &item, nil
}
