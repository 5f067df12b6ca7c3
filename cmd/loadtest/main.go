// Load generator for the passage retrieval platform. It runs in three phases:
// seed synthetic sources through the ingest API, wait until the rebuilt model
// covers them, then hammer the search API and report latency percentiles.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"time"
)

type options struct {
	searchURL         string
	ingestURL         string
	concurrency       int
	duration          time.Duration
	seedSources       int
	passagesPerSource int
	skipSeed          bool
	settleTimeout     time.Duration
}

var passageTemplates = []string{
	"aspirin %d mg daily reduced polyp recurrence in the treatment arm of cohort %d",
	"colonoscopy surveillance at interval %d months detected %d adenomas in the placebo group",
	"randomized trial %d enrolled %d patients with prior colorectal adenoma history",
	"adverse events were reported by %d of %d participants during the followup period",
	"cardiovascular risk score improved by %d points for %d patients on statin therapy",
	"blood pressure readings for subject %d averaged %d mmHg systolic across visits",
}

var searchQueries = []string{
	"aspirin dosage recommendations",
	"colorectal polyp recurrence",
	"randomized controlled trial",
	"adverse event reporting",
	"placebo group outcomes",
	"daily low dose treatment",
	"clinical trial enrollment",
	"statin therapy interactions",
	"blood pressure monitoring",
	"cardiovascular risk factors",
	"patient followup schedule",
	"medication side effects",
	"treatment efficacy endpoints",
	"informed consent procedure",
	"lipid panel results",
}

func main() {
	opt := options{}
	flag.StringVar(&opt.searchURL, "search-url", "http://localhost:8080", "base URL of the search service")
	flag.StringVar(&opt.ingestURL, "ingest-url", "http://localhost:8081", "base URL of the ingest service")
	flag.IntVar(&opt.concurrency, "concurrency", 10, "number of concurrent query workers")
	flag.DurationVar(&opt.duration, "duration", 30*time.Second, "query phase duration")
	flag.IntVar(&opt.seedSources, "seed-sources", 20, "number of synthetic sources to ingest")
	flag.IntVar(&opt.passagesPerSource, "passages-per-source", 50, "passages per synthetic source")
	flag.BoolVar(&opt.skipSeed, "skip-seed", false, "skip the ingest phase and query the existing corpus")
	flag.DurationVar(&opt.settleTimeout, "settle-timeout", 60*time.Second, "how long to wait for the rebuilt model")
	flag.Parse()

	fmt.Println("=== Passage Retrieval Load Test ===")
	fmt.Printf("Search:      %s\n", opt.searchURL)
	fmt.Printf("Ingest:      %s\n", opt.ingestURL)
	fmt.Printf("Concurrency: %d\n", opt.concurrency)
	fmt.Printf("Duration:    %s\n", opt.duration)
	fmt.Println()

	client := &http.Client{
		Timeout: 15 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        opt.concurrency * 2,
			MaxIdleConnsPerHost: opt.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx := context.Background()

	if !opt.skipSeed {
		seeded, err := seedCorpus(ctx, client, opt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed phase failed: %v\n", err)
			os.Exit(1)
		}
		if err := waitForIndex(ctx, client, opt, seeded); err != nil {
			fmt.Fprintf(os.Stderr, "index never settled: %v\n", err)
			os.Exit(1)
		}
	}

	stats := runQueries(ctx, client, opt)
	stats.report(opt.duration)
	if stats.total() == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

// seedCorpus uploads synthetic sources through the ingest API and returns the
// total number of passages sent.
func seedCorpus(ctx context.Context, client *http.Client, opt options) (int, error) {
	fmt.Printf("Seeding %d sources x %d passages", opt.seedSources, opt.passagesPerSource)
	total := 0
	for s := 0; s < opt.seedSources; s++ {
		type passageInput struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		}
		passages := make([]passageInput, 0, opt.passagesPerSource)
		for p := 0; p < opt.passagesPerSource; p++ {
			tpl := passageTemplates[(s+p)%len(passageTemplates)]
			passages = append(passages, passageInput{
				ID:   fmt.Sprintf("p%04d", p),
				Text: fmt.Sprintf(tpl, p+1, s+1),
			})
		}
		body, err := json.Marshal(map[string]any{
			"source_id": fmt.Sprintf("loadtest-%03d", s),
			"passages":  passages,
		})
		if err != nil {
			return total, fmt.Errorf("encoding source %d: %w", s, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			opt.ingestURL+"/api/v1/sources", bytes.NewReader(body))
		if err != nil {
			return total, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return total, fmt.Errorf("uploading source %d: %w", s, err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return total, fmt.Errorf("uploading source %d: status %d", s, resp.StatusCode)
		}
		total += len(passages)
		if s%5 == 4 {
			fmt.Print(".")
		}
	}
	fmt.Printf(" done (%d passages)\n", total)
	return total, nil
}

// waitForIndex polls the search service until the active model covers at
// least wantDocs documents or the settle timeout elapses.
func waitForIndex(ctx context.Context, client *http.Client, opt options, wantDocs int) error {
	fmt.Print("Waiting for rebuild")
	deadline := time.Now().Add(opt.settleTimeout)
	for time.Now().Before(deadline) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			opt.searchURL+"/api/v1/model", nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			var modelStats struct {
				Documents int `json:"documents"`
			}
			decodeErr := json.NewDecoder(resp.Body).Decode(&modelStats)
			resp.Body.Close()
			if decodeErr == nil && modelStats.Documents >= wantDocs {
				fmt.Printf(" done (%d documents)\n\n", modelStats.Documents)
				return nil
			}
		}
		fmt.Print(".")
		time.Sleep(2 * time.Second)
	}
	return fmt.Errorf("model did not reach %d documents within %s", wantDocs, opt.settleTimeout)
}

type sampleStats struct {
	mu        sync.Mutex
	latencies []time.Duration
	byStatus  map[int]int
	errors    int
}

func newSampleStats() *sampleStats {
	return &sampleStats{
		latencies: make([]time.Duration, 0, 100000),
		byStatus:  make(map[int]int),
	}
}

func (s *sampleStats) record(d time.Duration, status int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errors++
		return
	}
	s.byStatus[status]++
	if status >= 200 && status < 300 {
		s.latencies = append(s.latencies, d)
	}
}

func (s *sampleStats) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.errors
	for _, count := range s.byStatus {
		n += count
	}
	return n
}

func runQueries(ctx context.Context, client *http.Client, opt options) *sampleStats {
	stats := newSampleStats()
	ctx, cancel := context.WithTimeout(ctx, opt.duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Querying")
	for w := 0; w < opt.concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := workerID; ; i++ {
				select {
				case <-ctx.Done():
					return
				default:
				}

				query := searchQueries[i%len(searchQueries)]
				params := url.Values{}
				params.Set("q", query)
				params.Set("k", fmt.Sprintf("%d", 5+(i%3)*10))
				if i%4 == 0 {
					params.Set("min_score", "0.1")
				}
				searchURL := opt.searchURL + "/api/v1/search?" + params.Encode()

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
				if err != nil {
					stats.record(0, 0, err)
					continue
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					stats.record(elapsed, 0, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.record(elapsed, resp.StatusCode, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func (s *sampleStats) report(duration time.Duration) {
	s.mu.Lock()
	latencies := make([]time.Duration, len(s.latencies))
	copy(latencies, s.latencies)
	errors := s.errors
	byStatus := make(map[int]int, len(s.byStatus))
	for code, count := range s.byStatus {
		byStatus[code] = count
	}
	s.mu.Unlock()

	total := errors
	for _, count := range byStatus {
		total += count
	}

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", len(latencies))
	fmt.Printf("Errors:          %d\n", errors)
	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(errors)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P90:    %s\n", percentile(latencies, 90))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	codes := make([]int, 0, len(byStatus))
	for code := range byStatus {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, byStatus[code])
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
