package extract

import (
	"fmt"
	"strings"
)

// QueryOptions select the traffic counted by the extraction query.
type QueryOptions struct {
	Index      string
	Sourcetype string
	// ContentAIOnly restricts the count to successful ContentAI API calls.
	ContentAIOnly bool
}

// DefaultQueryOptions counts successful ContentAI requests on the API router.
var DefaultQueryOptions = QueryOptions{
	Index:         "dx_aem_edge_prod",
	Sourcetype:    "apirouter",
	ContentAIOnly: true,
}

const perDayPerTenant = `| eval day=strftime(_time, "%Y-%m-%d")
| stats count as requests by day, aem_tenant
| sort day aem_tenant`

// BuildQuery returns the requests-per-day-per-tenant search.
func BuildQuery(opts QueryOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "index=%q sourcetype=%q host=\"*\"\n", opts.Index, opts.Sourcetype)
	if opts.ContentAIOnly {
		b.WriteString(`api="contentAI"` + "\n")
		b.WriteString(`(status<400 OR (reason!="API not found" AND reason!="No tenant provided"))` + "\n")
	} else {
		b.WriteString(`aem_tenant="*"` + "\n")
	}
	b.WriteString(perDayPerTenant)
	return b.String()
}

// Describe returns a short human-readable description of the filter.
func (o QueryOptions) Describe() string {
	if o.ContentAIOnly {
		return "ContentAI API - successful requests only (status<400, excludes errors)"
	}
	return fmt.Sprintf("All API Router requests (sourcetype=%s)", o.Sourcetype)
}

// Window returns the search time range covering the last days whole days
// up to now.
func Window(days int) (earliest, latest string) {
	if days <= 0 {
		days = 1
	}
	return fmt.Sprintf("-%dd@d", days), "now"
}
