// Benchmark tool for testing Kestrel against a labeled phishing URL set.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/urls.csv -url http://localhost:8080
//
// The CSV needs a "url" column and a "label" column (1 = phishing).
// Each URL is sent to /url/analyze and the verdict is compared with
// the label. A URL counts as detected when its score reaches the
// phishing threshold. The tool reports precision, recall, F1 and the
// confusion matrix.
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

// phishingScoreFloor mirrors the PHISHING band of the URL catalogue.
const phishingScoreFloor = 80

// LabeledURL is one row of the benchmark dataset.
type LabeledURL struct {
	URL        string
	IsPhishing bool
}

// AnalyzeRequest is the Kestrel API request format.
type AnalyzeRequest struct {
	URL string `json:"url"`
}

// AnalyzeResponse is the Kestrel API response format.
type AnalyzeResponse struct {
	EvaluationID string `json:"evaluationId"`
	Verdict      struct {
		Score    int    `json:"score"`
		Severity string `json:"severity"`
	} `json:"verdict"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Phishing scored at or above the floor
	FalsePositives int64 // Benign scored at or above the floor
	TrueNegatives  int64 // Benign scored below the floor
	FalseNegatives int64 // Phishing scored below the floor (missed!)

	TotalProcessed int64
	TotalPhishing  int64
	TotalBenign    int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	csvPath := flag.String("csv", "", "Path to labeled URL CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	limit := flag.Int("limit", 10000, "Maximum URLs to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	phishingOnly := flag.Bool("phishing-only", false, "Only test phishing URLs")
	sampleRate := flag.Float64("sample", 1.0, "Sample rate for benign URLs (0.0-1.0)")
	verbose := flag.Bool("verbose", false, "Print each URL result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/urls.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║         KESTREL BENCHMARK - Phishing URL Detection            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:     %s\n", *csvPath)
	fmt.Printf("Kestrel URL:  %s\n", *baseURL)
	fmt.Printf("Workers:      %d\n", *workers)
	fmt.Printf("Limit:        %d\n", *limit)
	fmt.Printf("Phishing Only: %v\n", *phishingOnly)
	fmt.Printf("Sample Rate:  %.2f\n", *sampleRate)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	fmt.Printf("\nReading URL data from %s...\n", *csvPath)
	urls, err := readURLCSV(*csvPath, *limit, *phishingOnly, *sampleRate)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d URLs\n", len(urls))

	phishingCount := 0
	for _, u := range urls {
		if u.IsPhishing {
			phishingCount++
		}
	}
	fmt.Printf("  - Phishing: %d (%.2f%%)\n", phishingCount, 100*float64(phishingCount)/float64(len(urls)))
	fmt.Printf("  - Benign:   %d (%.2f%%)\n", len(urls)-phishingCount, 100*float64(len(urls)-phishingCount)/float64(len(urls)))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(urls, *baseURL, *workers, *verbose)
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

func readURLCSV(path string, limit int, phishingOnly bool, sampleRate float64) ([]LabeledURL, error) {
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
	urlCol, ok := colIndex["url"]
	if !ok {
		return nil, fmt.Errorf("missing 'url' column")
	}
	labelCol, ok := colIndex["label"]
	if !ok {
		return nil, fmt.Errorf("missing 'label' column")
	}

	var urls []LabeledURL
	sampleCounter := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		isPhishing := record[labelCol] == "1"

		if phishingOnly && !isPhishing {
			continue
		}

		// Sample benign URLs
		if !isPhishing && sampleRate < 1.0 {
			sampleCounter++
			if float64(sampleCounter%100)/100.0 >= sampleRate {
				continue
			}
		}

		urls = append(urls, LabeledURL{
			URL:        record[urlCol],
			IsPhishing: isPhishing,
		})

		if limit > 0 && len(urls) >= limit {
			break
		}
	}

	return urls, nil
}

func runBenchmark(urls []LabeledURL, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan LabeledURL, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for u := range work {
				start := time.Now()
				result, err := analyzeURL(client, baseURL, u.URL)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", u.URL, err)
					}
					continue
				}

				if u.IsPhishing {
					atomic.AddInt64(&metrics.TotalPhishing, 1)
				} else {
					atomic.AddInt64(&metrics.TotalBenign, 1)
				}

				predicted := result.Verdict.Score >= phishingScoreFloor
				actual := u.IsPhishing

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					shown := u.URL
					if len(shown) > 60 {
						shown = shown[:60]
					}
					fmt.Printf("%s %-60s | Phishing: %-5v | Kestrel: %-10s (%d)\n",
						status, shown, u.IsPhishing, result.Verdict.Severity, result.Verdict.Score)
				}
			}
		}()
	}

	for _, u := range urls {
		work <- u
	}
	close(work)

	wg.Wait()

	return metrics
}

func analyzeURL(client *http.Client, baseURL, target string) (*AnalyzeResponse, error) {
	body, err := json.Marshal(AnalyzeRequest{URL: target})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/url/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

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
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Phishing:   %d\n", m.TotalPhishing)
	fmt.Printf("   Total Benign:     %d\n", m.TotalBenign)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                  PHISHING      OTHER")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  P  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           B  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

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

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged URLs, how many were phishing)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of phishing URLs, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalPhishing > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalPhishing) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalPhishing) * 100
		fmt.Printf("   Phishing Detected: %d / %d (%.2f%%)\n", m.TruePositives, m.TotalPhishing, detectionRate)
		fmt.Printf("   Phishing Missed:   %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalPhishing, missRate)
	}
	if m.TotalBenign > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalBenign) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalBenign, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		rps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f urls/sec\n", rps)
	}

	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most phishing")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some phishing")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant phishing being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most phishing is being missed!")
	}

	if precision >= 0.9 {
		fmt.Println("   ✅ Excellent precision - few false alarms")
	} else if precision >= 0.7 {
		fmt.Println("   ⚠️  Good precision - some false alarms")
	} else {
		fmt.Println("   ❌ Poor precision - too many false alarms")
	}
	fmt.Println()
}
