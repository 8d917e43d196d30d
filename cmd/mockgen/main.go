package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"splunk-extractor/cmd/mockgen/engine"
	"splunk-extractor/internal/splunk/splunktest"
	"time"
)

func main() {
	scenario := flag.String("scenario", "mild", "Scenario to generate: mild, chaos, drift")
	distribution := flag.String("distribution", "uniform", "Distribution to use: uniform, weibull")
	tenants := flag.Int("tenants", 12, "Number of tenants to generate")
	days := flag.Int("days", 30, "Number of days to generate")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	outDir := flag.String("out", "", "Write generated rows as JSON lines to this directory")
	addr := flag.String("addr", "", "Serve a fake search API with the generated rows on this address (e.g. 127.0.0.1:8089)")
	polls := flag.Int("polls", 3, "Status checks before the fake job reports done")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario:     *scenario,
		Distribution: *distribution,
		Tenants:      *tenants,
		Days:         *days,
		Now:          time.Now(),
		Seed:         *seed,
	}

	fmt.Printf("Generating scenario '%s' (Distribution: %s, Tenants: %d, Days: %d)...\n", cfg.Scenario, cfg.Distribution, cfg.Tenants, cfg.Days)

	rows := engine.Generate(cfg)

	if *outDir != "" {
		if err := engine.Save(*outDir, "mock_results", rows); err != nil {
			fmt.Printf("Failed to save mock data: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d rows to %s\n", len(rows), *outDir)
	}

	if *addr == "" {
		fmt.Println("Done.")
		return
	}

	handler := splunktest.NewHandler(splunktest.Options{PollsUntilDone: *polls, Rows: rows})
	fmt.Printf("Serving %d rows on http://%s (user %q, password %q)\n", len(rows), *addr, splunktest.Username, splunktest.Password)
	if err := http.ListenAndServe(*addr, handler); err != nil {
		fmt.Printf("Server stopped: %v\n", err)
		os.Exit(1)
	}
}
