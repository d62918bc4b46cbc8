// ABOUTME: Record types exchanged with the pharmacy backend over HTTP/JSON
// ABOUTME: Customers, medicines, orders, decision traces, chat and refill alerts

package pharmacy

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Customer is a pharmacy customer as returned by /admin/customers/.
type Customer struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Phone             string    `json:"phone"`
	Email             string    `json:"email"`
	IsNewUser         bool      `json:"is_new_user"`
	PreferredLanguage string    `json:"preferred_language,omitempty"`
	CreatedAt         Timestamp `json:"created_at"`
}

// DisplayName returns the customer's name, or "Customer" when unnamed.
func (c Customer) DisplayName() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return "Customer"
}

// Contact returns the best available contact detail.
func (c Customer) Contact() string {
	switch {
	case c.Email != "":
		return c.Email
	case c.Phone != "":
		return c.Phone
	default:
		return "No contact"
	}
}

// Medicine is an inventory item.
type Medicine struct {
	ID                   int64     `json:"id"`
	Name                 string    `json:"name"`
	GenericName          string    `json:"generic_name,omitempty"`
	UnitType             string    `json:"unit_type,omitempty"`
	StockQuantity        int       `json:"stock_quantity"`
	PrescriptionRequired bool      `json:"prescription_required"`
	ReorderLevel         int       `json:"reorder_level,omitempty"`
	Price                float64   `json:"price,omitempty"`
	CreatedAt            Timestamp `json:"created_at"`
}

// Order is a placed order.
type Order struct {
	ID           int64     `json:"id"`
	CustomerID   int64     `json:"customer_id"`
	MedicineName string    `json:"medicine_name,omitempty"`
	Quantity     int       `json:"quantity"`
	Status       string    `json:"status"`
	CreatedAt    Timestamp `json:"created_at"`
}

// DecisionTrace is one audit record of an agent decision. TraceData is kept
// raw; it may be a JSON object or a plain string. Any other top-level fields
// the backend sends land in Extra.
type DecisionTrace struct {
	ID        int64                      `json:"id"`
	CreatedAt Timestamp                  `json:"created_at"`
	TraceData json.RawMessage            `json:"trace_data,omitempty"`
	Extra     map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *DecisionTrace) UnmarshalJSON(data []byte) error {
	type plain DecisionTrace
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	p.Extra = nil
	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		switch key.String() {
		case "id", "created_at", "trace_data":
			return true
		}
		if p.Extra == nil {
			p.Extra = make(map[string]json.RawMessage)
		}
		p.Extra[key.String()] = json.RawMessage(value.Raw)
		return true
	})
	*t = DecisionTrace(p)
	return nil
}

// ExtraKeys returns the keys of Extra in sorted order.
func (t DecisionTrace) ExtraKeys() []string {
	return slices.Sorted(maps.Keys(t.Extra))
}

// Summary returns the trace data as text, truncated to n runes.
func (t DecisionTrace) Summary(n int) string {
	var text string
	var s string
	if err := json.Unmarshal(t.TraceData, &s); err == nil {
		text = s
	} else {
		var buf bytes.Buffer
		if err := json.Compact(&buf, t.TraceData); err == nil {
			text = buf.String()
		} else {
			text = string(t.TraceData)
		}
	}

	runes := []rune(text)
	if n > 0 && len(runes) > n {
		return string(runes[:n])
	}
	return text
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	CustomerID int64  `json:"customer_id"`
	Message    string `json:"message"`
}

// ChatReply is the agent's answer to a chat turn.
type ChatReply struct {
	Reply    string `json:"reply"`
	Approved bool   `json:"approved"`
	OrderID  *int64 `json:"order_id,omitempty"`
}

// Refill alert levels reported by the backend.
const (
	AlertCritical = "CRITICAL"
	AlertLow      = "LOW"

	RefillReady   = "READY"
	RefillPending = "PENDING"
)

// RefillAlert is a medicine whose stock has fallen below the reorder point.
type RefillAlert struct {
	ID                   int64  `json:"id"`
	Name                 string `json:"name"`
	CurrentStock         int    `json:"current_stock"`
	Status               string `json:"status"`
	ReorderPoint         int    `json:"reorder_point"`
	SuggestedOrderQty    int    `json:"suggested_order_qty"`
	PrescriptionRequired bool   `json:"prescription_required"`
	AlertPriority        string `json:"alert_priority"`
}

// CustomerRefillAlert describes refill eligibility for one past order.
type CustomerRefillAlert struct {
	OrderID          int64     `json:"order_id"`
	MedicineID       int64     `json:"medicine_id"`
	LastOrderDate    Timestamp `json:"last_order_date"`
	DaysSinceOrder   int       `json:"days_since_order"`
	RefillEligible   bool      `json:"refill_eligible"`
	NextEligibleDate Timestamp `json:"next_eligible_date"`
	RefillPriority   string    `json:"refill_priority"`
}

// Health is the body of GET /health.
type Health struct {
	Status string `json:"status"`
}

// Timestamp decodes the backend's ISO-8601 timestamps, which may omit the
// zone offset. Offset-less values are taken as UTC. null and "" decode to
// the zero time.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
