package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

type GeneratorConfig struct {
	Scenario     string // "mild", "chaos" or "drift"
	Distribution string // "uniform" or "weibull"
	Tenants      int
	Days         int
	Now          time.Time
	Seed         int64
}

// Row is one (day, tenant, requests) result row, shaped like the
// platform's stats output.
type Row = map[string]any

func Generate(cfg GeneratorConfig) []Row {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	if cfg.Tenants <= 0 || cfg.Days <= 0 {
		return []Row{}
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	// Per-tenant base volume: a few heavy tenants and a long tail.
	base := make([]float64, cfg.Tenants)
	for t := range base {
		base[t] = 50 + 2000/float64(t+1)
	}

	firstDay := cfg.Now.AddDate(0, 0, -cfg.Days)
	rows := make([]Row, 0, cfg.Tenants*cfg.Days)

	for d := 0; d < cfg.Days; d++ {
		day := firstDay.AddDate(0, 0, d).Format("2006-01-02")

		for t := 0; t < cfg.Tenants; t++ {
			// 1. Determine parameters
			k, lambda := 2.5, 1.0
			switch cfg.Scenario {
			case "chaos":
				k = 0.8
			case "drift":
				ratio := float64(d) / float64(cfg.Days)
				k = 2.5 - (1.7 * ratio)
				lambda = 1.0 + ratio
			}

			// 2. Sample a volume multiplier
			var factor float64
			if cfg.Distribution == "weibull" {
				factor = weibullSample(rng, k, lambda)
			} else {
				factor = 0.5 + rng.Float64()
				if cfg.Scenario == "chaos" && rng.Float64() < 0.05 {
					factor += 5 + rng.Float64()*10 // bursts
				}
				if cfg.Scenario == "drift" && d > cfg.Days/2 {
					factor *= 2.0
				}
			}

			// 3. Quiet tenants skip days entirely
			requests := int64(math.Round(base[t] * factor))
			if requests <= 0 {
				continue
			}

			rows = append(rows, Row{
				"day":        day,
				"aem_tenant": TenantID(t),
				"requests":   fmt.Sprintf("%d", requests),
			})
		}
	}

	return rows
}

// TenantID returns the synthetic tenant ID for index i.
func TenantID(i int) string {
	return fmt.Sprintf("mocktenant%03d", i+1)
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}

// Save writes rows as JSON lines to outDir/<name>.jsonl.
func Save(outDir string, name string, rows []Row) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(outDir, fmt.Sprintf("%s.jsonl", name)))
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return w.Flush()
}
