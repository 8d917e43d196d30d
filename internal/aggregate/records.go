package aggregate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"splunk-extractor/internal/splunk"
)

// Unknown replaces a missing day or tenant field.
const Unknown = "Unknown"

// RawRecord is one (day, tenant, count) row of the search result.
type RawRecord struct {
	Day      string `json:"day"`
	TenantID string `json:"aem_tenant"`
	Requests int64  `json:"requests"`
}

// Fields names the result columns holding each record component.
type Fields struct {
	Day    string
	Tenant string
	Count  string
}

// DefaultFields matches the `stats count as requests by day, aem_tenant` query.
var DefaultFields = Fields{Day: "day", Tenant: "aem_tenant", Count: "requests"}

// ShapeError reports a result row whose count is not an integer.
type ShapeError struct {
	Index int
	Field string
	Value any
	Err   error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("result row %d: field %q is not an integer count (%v): %v", e.Index, e.Field, e.Value, e.Err)
}

func (e *ShapeError) Unwrap() error { return e.Err }

// ParseRecords converts result rows into records. Missing day and tenant
// fields become Unknown and a missing count is zero, but any count that is
// present and not an integer fails the whole conversion.
func ParseRecords(rows []splunk.Result, fields Fields) ([]RawRecord, error) {
	records := make([]RawRecord, 0, len(rows))
	for i, row := range rows {
		count, err := parseCount(row[fields.Count])
		if err != nil {
			return nil, &ShapeError{Index: i, Field: fields.Count, Value: row[fields.Count], Err: err}
		}
		records = append(records, RawRecord{
			Day:      stringField(row, fields.Day),
			TenantID: stringField(row, fields.Tenant),
			Requests: count,
		})
	}
	return records, nil
}

func stringField(row splunk.Result, name string) string {
	v, ok := row[name]
	if !ok || v == nil {
		return Unknown
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func parseCount(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	case float64:
		if n != math.Trunc(n) || n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, fmt.Errorf("non-integral number %v", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
