package aggregate

import (
	"cmp"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
)

// Labeler resolves tenant IDs to program names and registers new ones.
type Labeler interface {
	RegisterUnseen(tenantIDs []string) ([]string, error)
	LabelOf(tenantID string) string
}

// TenantInfo is the per-tenant summary of a dataset.
type TenantInfo struct {
	TenantID      string `json:"tenant_id"`
	ProgramName   string `json:"program_name"`
	TotalRequests int64  `json:"total_requests"`
}

// Dataset is the day x tenant aggregate of one extraction run.
type Dataset struct {
	ByDay       map[string]map[string]int64 `json:"by_day"`
	ByTenant    map[string]int64            `json:"by_tenant"`
	ByDayTotal  map[string]int64            `json:"by_day_total"`
	TenantInfo  map[string]TenantInfo       `json:"tenant_info"`
	Raw         []RawRecord                 `json:"raw"`
	ExtractedAt time.Time                   `json:"extracted_at"`
}

// Build folds records into a Dataset. Every tenant in records is registered
// with the labeler before labels are read, so new tenants get a placeholder
// label instead of being dropped. A labeler persistence failure is logged
// and does not affect the result.
func Build(records []RawRecord, labeler Labeler, now time.Time) *Dataset {
	ds := &Dataset{
		ByDay:       make(map[string]map[string]int64),
		ByTenant:    make(map[string]int64),
		ByDayTotal:  make(map[string]int64),
		TenantInfo:  make(map[string]TenantInfo),
		Raw:         records,
		ExtractedAt: now,
	}
	if ds.Raw == nil {
		ds.Raw = []RawRecord{}
	}

	seen := make(map[string]struct{})
	var tenants []string
	for _, r := range records {
		if _, ok := seen[r.TenantID]; !ok {
			seen[r.TenantID] = struct{}{}
			tenants = append(tenants, r.TenantID)
		}
	}

	if labeler != nil && len(tenants) > 0 {
		if _, err := labeler.RegisterUnseen(tenants); err != nil {
			log.Warn().Err(err).Msg("Failed to persist new tenant mappings, labels are kept for this run only")
		}
	}

	for _, r := range records {
		day := ds.ByDay[r.Day]
		if day == nil {
			day = make(map[string]int64)
			ds.ByDay[r.Day] = day
		}
		day[r.TenantID] += r.Requests
		ds.ByTenant[r.TenantID] += r.Requests
		ds.ByDayTotal[r.Day] += r.Requests
	}

	for _, id := range tenants {
		label := ""
		if labeler != nil {
			label = labeler.LabelOf(id)
		}
		ds.TenantInfo[id] = TenantInfo{
			TenantID:      id,
			ProgramName:   label,
			TotalRequests: ds.ByTenant[id],
		}
	}

	return ds
}

// GrandTotal returns the sum of all requests.
func (d *Dataset) GrandTotal() int64 {
	var total int64
	for _, n := range d.ByTenant {
		total += n
	}
	return total
}

// Days returns the days present, in ascending order.
func (d *Dataset) Days() []string {
	days := make([]string, 0, len(d.ByDayTotal))
	for day := range d.ByDayTotal {
		days = append(days, day)
	}
	slices.Sort(days)
	return days
}

// TopTenants returns up to n tenants ordered by total requests, highest
// first, ties broken by tenant ID. n <= 0 returns all tenants.
func (d *Dataset) TopTenants(n int) []TenantInfo {
	infos := make([]TenantInfo, 0, len(d.ByTenant))
	for id, total := range d.ByTenant {
		info, ok := d.TenantInfo[id]
		if !ok {
			info = TenantInfo{TenantID: id, TotalRequests: total}
		}
		infos = append(infos, info)
	}

	slices.SortFunc(infos, func(a, b TenantInfo) int {
		if c := cmp.Compare(b.TotalRequests, a.TotalRequests); c != 0 {
			return c
		}
		return cmp.Compare(a.TenantID, b.TenantID)
	})

	if n > 0 && len(infos) > n {
		infos = infos[:n]
	}
	return infos
}
