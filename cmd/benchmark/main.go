// Benchmark tool for testing addrrisk against a labeled address list.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/addresses.csv -url http://localhost:8080
//
// This tool:
//   1. Reads a CSV of (chain,address,asset,label) rows, where label is
//      "risky" or "clean" ground truth
//   2. Sends each address to addrrisk's POST /analyze endpoint
//   3. Compares addrrisk's risk level against the ground-truth label
//   4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// AddressSample represents one labeled row from the benchmark CSV.
type AddressSample struct {
	Chain   string
	Address string
	Asset   string
	Risky   bool
}

// AnalyzeRequest is addrrisk's POST /analyze request format.
type AnalyzeRequest struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
	Asset   string `json:"asset,omitempty"`
}

// AnalyzeResponse is addrrisk's POST /analyze response format.
type AnalyzeResponse struct {
	AnalysisID string `json:"analysisId"`
	Total      int    `json:"total"`
	Level      string `json:"level"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Risky address flagged medium+
	FalsePositives int64 // Clean address flagged medium+
	TrueNegatives  int64 // Clean address scored low
	FalseNegatives int64 // Risky address scored low (missed!)

	TotalProcessed int64
	TotalRisky     int64
	TotalClean     int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	csvPath := flag.String("csv", "", "Path to labeled address CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "addrrisk base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum addresses to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	riskyOnly := flag.Bool("risky-only", false, "Only test risky addresses")
	verbose := flag.Bool("verbose", false, "Print each address result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/addresses.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("=====================================================================")
	fmt.Println("          ADDRRISK BENCHMARK - Address Risk Scoring")
	fmt.Println("=====================================================================")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Addrrisk URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Printf("Risky Only:  %v\n", *riskyOnly)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: addrrisk not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure addrrisk is running:")
		fmt.Println("  go run cmd/addrrisk/main.go")
		os.Exit(1)
	}
	fmt.Println("addrrisk is healthy")

	fmt.Printf("\nReading address samples from %s...\n", *csvPath)
	samples, err := readAddressCSV(*csvPath, *limit, *riskyOnly)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d address samples\n", len(samples))

	riskyCount := 0
	for _, s := range samples {
		if s.Risky {
			riskyCount++
		}
	}
	fmt.Printf("  - Risky: %d (%.2f%%)\n", riskyCount, 100*float64(riskyCount)/float64(len(samples)))
	fmt.Printf("  - Clean: %d (%.2f%%)\n", len(samples)-riskyCount, 100*float64(len(samples)-riskyCount)/float64(len(samples)))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(samples, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// readAddressCSV reads columns: chain,address,asset,label (label is
// "risky" or "clean").
func readAddressCSV(path string, limit int, riskyOnly bool) ([]AddressSample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(col)] = i
	}

	var samples []AddressSample

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		label := strings.ToLower(record[colIndex["label"]])
		risky := label == "risky" || label == "1" || label == "true"

		if riskyOnly && !risky {
			continue
		}

		sample := AddressSample{
			Chain:   record[colIndex["chain"]],
			Address: record[colIndex["address"]],
			Risky:   risky,
		}
		if idx, ok := colIndex["asset"]; ok && idx < len(record) {
			sample.Asset = record[idx]
		}

		samples = append(samples, sample)

		if limit > 0 && len(samples) >= limit {
			break
		}
	}

	return samples, nil
}

func runBenchmark(samples []AddressSample, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan AddressSample, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 30 * time.Second}

			for sample := range work {
				start := time.Now()
				result, err := analyzeAddress(client, baseURL, tenantID, sample)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", sample.Address, err)
					}
					continue
				}

				if sample.Risky {
					atomic.AddInt64(&metrics.TotalRisky, 1)
				} else {
					atomic.AddInt64(&metrics.TotalClean, 1)
				}

				flagged := result.Level == "medium" || result.Level == "high" || result.Level == "critical"
				actual := sample.Risky

				if flagged && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if flagged && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !flagged && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else {
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "match"
					if flagged != actual {
						status = "miss"
					}
					fmt.Printf("%-6s %-42s | chain: %-10s | risky: %-5v | addrrisk: %-8s (%d)\n",
						status, sample.Address, sample.Chain, sample.Risky, result.Level, result.Total)
				}
			}
		}()
	}

	for _, sample := range samples {
		work <- sample
	}
	close(work)

	wg.Wait()

	return metrics
}

func analyzeAddress(client *http.Client, baseURL, tenantID string, sample AddressSample) (*AnalyzeResponse, error) {
	req := AnalyzeRequest{
		Chain:   sample.Chain,
		Address: sample.Address,
		Asset:   sample.Asset,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result AnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n=====================================================================")
	fmt.Println("                        BENCHMARK RESULTS")
	fmt.Println("=====================================================================")

	fmt.Printf("\nDATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Risky:      %d\n", m.TotalRisky)
	fmt.Printf("   Total Clean:      %d\n", m.TotalClean)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\nCONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                  Flagged     Clear")
	fmt.Printf("   Actual  R  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Printf("           C  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\nDETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged addresses, how many were actually risky)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of risky addresses, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		tps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f req/sec\n", tps)
	}
	fmt.Println()
}
