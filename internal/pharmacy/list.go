// ABOUTME: List body normalisation and derived views over pharmacy records
// ABOUTME: Accepts bare arrays or {data: [...]} envelopes; computes stock summaries

package pharmacy

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
)

// ErrUnexpectedShape is returned when a list body is neither an array nor a
// {data: array} envelope.
var ErrUnexpectedShape = errors.New("unexpected list shape")

// DecodeList normalises a list response into a slice. The backend returns
// either a bare JSON array or an object wrapping the array under "data". A
// missing or null "data" yields an empty slice. The result is never nil.
func DecodeList[T any](body []byte) ([]T, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrUnexpectedShape)
	}

	root := gjson.ParseBytes(body)
	var raw string
	switch {
	case root.IsArray():
		raw = root.Raw
	case root.IsObject():
		data := root.Get("data")
		switch {
		case !data.Exists(), data.Type == gjson.Null:
			return []T{}, nil
		case data.IsArray():
			raw = data.Raw
		default:
			return nil, fmt.Errorf("%w: data is %s", ErrUnexpectedShape, data.Type)
		}
	case root.Type == gjson.Null:
		return []T{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedShape, root.Type)
	}

	items := []T{}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decoding list items: %w", err)
	}
	return items, nil
}

// Stock status values.
const (
	StockOut = "out"
	StockLow = "low"
	StockOK  = "ok"
)

// LowStockThreshold is the quantity below which in-stock medicine is low.
const LowStockThreshold = 10

// StockStatus classifies the medicine's stock level.
func (m Medicine) StockStatus() string {
	switch {
	case m.StockQuantity == 0:
		return StockOut
	case m.StockQuantity < LowStockThreshold:
		return StockLow
	default:
		return StockOK
	}
}

// InventorySummary counts medicines by stock status.
type InventorySummary struct {
	Total                int
	InStock              int
	LowStock             int
	OutOfStock           int
	PrescriptionRequired int
}

// SummariseInventory counts medicines by stock level.
func SummariseInventory(medicines []Medicine) InventorySummary {
	s := InventorySummary{Total: len(medicines)}
	for _, m := range medicines {
		if m.StockQuantity > 0 {
			s.InStock++
		}
		if m.StockQuantity > 0 && m.StockQuantity < LowStockThreshold {
			s.LowStock++
		}
		if m.StockQuantity == 0 {
			s.OutOfStock++
		}
		if m.PrescriptionRequired {
			s.PrescriptionRequired++
		}
	}
	return s
}

// CountNewCustomers returns how many customers are flagged as new users.
func CountNewCustomers(customers []Customer) int {
	n := 0
	for _, c := range customers {
		if c.IsNewUser {
			n++
		}
	}
	return n
}

// SortTracesNewestFirst orders traces by creation time, newest first. The
// input slice is left untouched.
func SortTracesNewestFirst(traces []DecisionTrace) []DecisionTrace {
	sorted := make([]DecisionTrace, len(traces))
	copy(sorted, traces)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt.Time)
	})
	return sorted
}
