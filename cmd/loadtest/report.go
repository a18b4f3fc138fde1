package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
)

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

// stockReport: итог проверки остатка после конкурентных покупок.
type stockReport struct {
	ProductID     string `json:"product_id"`
	InitialStock  int64  `json:"initial_stock"`
	UnitsPerOrder int64  `json:"units_per_order"`
	Placed        int64  `json:"placed"`
	Rejected      int64  `json:"rejected"`
	Unexpected    int64  `json:"unexpected"`
	FinalQuantity int64  `json:"final_quantity"`
}

type report struct {
	StartedAt       time.Time               `json:"started_at"`
	DurationSeconds float64                 `json:"duration_seconds"`
	RPS             float64                 `json:"rps"`
	Stock           stockReport             `json:"stock"`
	Methods         map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{
		methods: make(map[string]*methodStats),
	}
}

func (c *collector) record(method string, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{
			codes: make(map[string]int64),
		}
		c.methods[method] = stats
	}

	stats.calls++
	if code == codes.OK {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[code.String()]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) methodReports() map[string]methodReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]methodReport, len(c.methods))
	for name, stats := range c.methods {
		codesCopy := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codesCopy[code] = count
		}
		out[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			ErrorRate: ratio(stats.failed, stats.calls),
			Codes:     codesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}
	return out
}

// checkStock возвращает ошибку, если остаток разошёлся с числом оформленных заказов.
func checkStock(s stockReport) error {
	sold := s.Placed * s.UnitsPerOrder
	switch {
	case sold > s.InitialStock:
		return fmt.Errorf("oversold: placed %d units of %d in stock", sold, s.InitialStock)
	case s.FinalQuantity < 0:
		return fmt.Errorf("negative stock: %d", s.FinalQuantity)
	case s.FinalQuantity != s.InitialStock-sold:
		return fmt.Errorf("stock drift: final %d, expected %d", s.FinalQuantity, s.InitialStock-sold)
	case s.Unexpected > 0:
		return fmt.Errorf("%d orders failed with unexpected codes", s.Unexpected)
	}
	return nil
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(w io.Writer, result report) {
	s := result.Stock
	_, _ = fmt.Fprintln(w, "Oversell check summary")
	_, _ = fmt.Fprintf(w, "product=%s stock=%d units_per_order=%d placed=%d rejected=%d unexpected=%d final=%d\n",
		s.ProductID, s.InitialStock, s.UnitsPerOrder, s.Placed, s.Rejected, s.Unexpected, s.FinalQuantity)
	_, _ = fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		_, _ = fmt.Fprintf(w,
			"%s: calls=%d success=%d failed=%d error_rate=%.4f p50=%.2fms p95=%.2fms p99=%.2fms\n",
			name,
			stats.Calls,
			stats.Success,
			stats.Failed,
			stats.ErrorRate,
			stats.LatencyMs.P50,
			stats.LatencyMs.P95,
			stats.LatencyMs.P99,
		)
	}
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
