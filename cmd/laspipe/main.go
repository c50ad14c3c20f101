package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"laspipe/internal/catalog"
	"laspipe/internal/config"
	"laspipe/internal/metrics"
	"laspipe/internal/metrics/datadog"
	"laspipe/internal/metrics/prompush"
	"laspipe/internal/pipeline"
)

// main is the entry point for the laspipe binary. It loads the pipeline
// config (or builds one from the quick-mode flags), optionally initializes a
// metrics backend, executes the run, and records the outcome in the run
// catalog when one is configured.
func main() {
	var (
		cfgPath           string
		inputFlg          string
		outputFlg         string
		filterFlg         string
		filterOptsFlg     string
		stripFlg          bool
		chunkFlg          int
		metricsBackendFlg string
		pushGatewayURLFlg string
		datadogAddrFlg    string
		catalogFlg        string
		validate          bool
		dump              bool
	)

	flag.StringVar(&cfgPath, "config", "", "pipeline config JSON path")
	flag.StringVar(&inputFlg, "input", "", "quick mode: input file or directory (bypasses -config)")
	flag.StringVar(&outputFlg, "output", "", "quick mode: output file path")
	flag.StringVar(&filterFlg, "filter", "all", "quick mode: filter kind (all, none, bounds, intensity, classification)")
	flag.StringVar(&filterOptsFlg, "filter-options", "", "quick mode: filter options as inline JSON")
	flag.BoolVar(&stripFlg, "strip", false, "drop extra per-record bytes from file outputs")
	flag.IntVar(&chunkFlg, "chunk", 0, "records per batch (overrides env LASPIPE_CHUNK)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, datadog, none; default env METRICS_BACKEND, else none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.StringVar(&datadogAddrFlg, "datadog-addr", "", "DogStatsD address (overrides env DD_AGENT_ADDR)")
	flag.StringVar(&catalogFlg, "catalog", "", "SQLite run-catalog path (overrides config)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&dump, "dump", false, "print the effective configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	p, err := loadPipeline(cfgPath, inputFlg, outputFlg, filterFlg, filterOptsFlg)
	if err != nil {
		fatalf("%v", err)
	}

	// Flag → env → config precedence for the knobs that tune a run without
	// changing what it computes.
	if stripFlg {
		p.StripExtra = true
	}
	if catalogFlg != "" {
		p.Catalog = catalogFlg
	}
	p.Runtime.ChunkSize = pickInt(chunkFlg, pickInt(getenvInt("LASPIPE_CHUNK", 0), p.Runtime.ChunkSize))
	p.Runtime.ReaderWorkers = pickInt(getenvInt("LASPIPE_READERS", 0), p.Runtime.ReaderWorkers)
	p.Runtime.ChannelBuffer = pickInt(getenvInt("LASPIPE_CH_BUFFER", 0), p.Runtime.ChannelBuffer)

	if dump {
		b, err := config.MarshalConfig(p)
		if err != nil {
			fatalf("dump config: %v", err)
		}
		fmt.Println(string(b))
		os.Exit(0)
	}

	issues := config.ValidatePipeline(p)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("configuration is invalid")
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid")
		os.Exit(0)
	}

	setupMetrics(metricsBackendFlg, pushGatewayURLFlg, datadogAddrFlg, p.Job, *verbose)

	proc, err := pipeline.NewFromConfig(p)
	if err != nil {
		fatalf("%v", err)
	}

	ctx := context.Background()
	start := time.Now()

	if *verbose {
		log.Printf("pipeline: job=%s source=%s filters=%d strip_extra=%t",
			p.Job, p.Source.Path, len(p.Filters), p.StripExtra)
	}

	summary, runErr := proc.Run(ctx)

	if p.Catalog != "" {
		if err := recordRun(ctx, p.Catalog, start, summary, runErr); err != nil {
			log.Printf("catalog: %v", err)
		}
	}
	if err := metrics.Flush(); err != nil {
		log.Printf("metrics: flush error: %v", err)
	}
	if runErr != nil {
		log.Fatalf("%v", runErr)
	}
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// loadPipeline decodes -config, or synthesizes a single-filter pipeline from
// the quick-mode flags when -input is set. Exactly one of the two modes must
// be used.
func loadPipeline(cfgPath, input, output, kind, optsJSON string) (config.Pipeline, error) {
	var p config.Pipeline

	switch {
	case cfgPath != "" && input != "":
		return p, fmt.Errorf("use either -config or -input, not both")

	case input != "":
		opts := config.Options{}
		if optsJSON != "" {
			if err := json.Unmarshal([]byte(optsJSON), &opts); err != nil {
				return p, fmt.Errorf("decode -filter-options: %w", err)
			}
		}
		p = config.Pipeline{
			Job:    "laspipe",
			Source: config.Source{Path: input},
			Filters: []config.Filter{{
				Kind:    kind,
				Options: opts,
				Sink:    config.Sink{Kind: "file", Path: output},
			}},
		}
		return p, nil

	case cfgPath != "":
		f, err := os.Open(cfgPath)
		if err != nil {
			return p, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&p); err != nil {
			return p, fmt.Errorf("decode config: %w", err)
		}
		return p, nil

	default:
		return p, fmt.Errorf("either -config or -input is required")
	}
}

// setupMetrics installs the requested metrics backend, falling back to the
// nop backend on initialization failure. Precedence per setting: flag → env
// → default. It returns the name of the backend actually in effect.
func setupMetrics(backendName, gwURL, ddAddr, job string, verbose bool) string {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		if job == "" {
			job = "laspipe_job"
		}
		b, err := prompush.NewBackend(job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init pushgateway backend: %v; using nop", err)
			return "none"
		}
		log.Printf("metrics: backend=%s url=%s job=%s", backendName, gwURL, job)
		metrics.SetBackend(b)
		return backendName

	case "datadog":
		if ddAddr == "" {
			ddAddr = os.Getenv("DD_AGENT_ADDR")
		}
		if ddAddr == "" {
			ddAddr = "127.0.0.1:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{Addr: ddAddr, Namespace: "laspipe."})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return "none"
		}
		log.Printf("metrics: backend=%s addr=%s", backendName, ddAddr)
		metrics.SetBackend(b)
		return backendName

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}
		return "none"

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
		return "none"
	}
}

// recordRun appends one row to the SQLite run catalog.
func recordRun(ctx context.Context, path string, start time.Time, s pipeline.RunSummary, runErr error) error {
	cat, err := catalog.Open(ctx, path)
	if err != nil {
		return err
	}
	defer cat.Close()

	row := catalog.Run{
		Job:      s.Job,
		Started:  start,
		Duration: s.Duration,
		Sources:  s.Sources,
		Read:     s.Read,
		Written:  s.Written,
		Err:      runErr,
	}
	for _, sk := range s.Sinks {
		row.Sinks = append(row.Sinks, catalog.SinkResult{
			Name:    sk.Name,
			Written: sk.Written,
			Digest:  fmt.Sprintf("%016x", sk.Digest),
		})
	}
	return cat.RecordRun(ctx, row)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

// getenvInt reads an int from environment, returning def when unset/invalid.
func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses the first positive value 'a', otherwise returns 'b'.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
