// Command iam-loadtest replays parent questions against a running iam-server.
//
// Each worker opens its own session and asks its questions in turn, so
// follow-ups are fused with the worker's history exactly as for a real
// visitor. With -endpoint rank the remote assistant is never called.
//
// Usage:
//
//	go run ./cmd/iam-loadtest [-url http://localhost:8711] [-endpoint rank|ask] [-concurrency 8] [-duration 30s]
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var questions = []string{
	"Quels sont les tarifs de la cantine ?",
	"Et pour le mercredi ?",
	"Comment inscrire mon enfant au centre de loisirs",
	"Je cherche une nourrice près de chez moi",
	"Combien coûte le périscolaire du soir ?",
	"Où trouver la liste des assistantes maternelles",
	"Quels documents pour l'inscription à la crèche ?",
	"Horaires de l'accueil du matin",
	"Et pendant les vacances ?",
	"Comment payer la facture de cantine en ligne",
}

type askResult struct {
	Status   string `json:"status"`
	CacheHit bool   `json:"cache_hit"`
}

type Stats struct {
	requests   atomic.Int64
	ok         atomic.Int64
	failed     atomic.Int64
	answered   atomic.Int64
	unanswered atomic.Int64
	cacheHits  atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	statuses  map[int]int64
}

func newStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 10000),
		statuses:  make(map[int]int64),
	}
}

func (s *Stats) record(d time.Duration, status int, err error) {
	s.requests.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.ok.Add(1)
	} else {
		s.failed.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statuses[status]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8711", "base URL of iam-server")
	endpoint := flag.String("endpoint", "rank", "rank or ask")
	concurrency := flag.Int("concurrency", 8, "number of concurrent visitors")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	timeout := flag.Duration("timeout", 60*time.Second, "per-request timeout")
	flag.Parse()

	if *endpoint != "rank" && *endpoint != "ask" {
		fmt.Fprintln(os.Stderr, "-endpoint must be rank or ask")
		os.Exit(2)
	}

	fmt.Println("=== iam-server load test ===")
	fmt.Printf("Target:      %s/api/v1/%s\n", *baseURL, *endpoint)
	fmt.Printf("Visitors:    %d\n", *concurrency)
	fmt.Printf("Duration:    %s\n", *duration)
	fmt.Println()

	client := &http.Client{
		Timeout: *timeout,
		Transport: &http.Transport{
			MaxIdleConns:        *concurrency * 2,
			MaxIdleConnsPerHost: *concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	stats := newStats()
	var wg sync.WaitGroup
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			visit(ctx, client, *baseURL, *endpoint, worker, stats)
		}(w)
	}
	wg.Wait()

	report(stats, *endpoint, *duration)
}

// visit plays one visitor: a session, then questions until ctx ends.
func visit(ctx context.Context, client *http.Client, baseURL, endpoint string, worker int, stats *Stats) {
	sessionID, err := openSession(ctx, client, baseURL)
	if err != nil {
		if ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "worker %d: %v\n", worker, err)
		}
		return
	}
	for i := worker; ctx.Err() == nil; i++ {
		body, _ := json.Marshal(map[string]string{
			"session_id": sessionID,
			"question":   questions[i%len(questions)],
		})
		start := time.Now()
		status, payload, err := post(ctx, client, baseURL+"/api/v1/"+endpoint, body)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return
		}
		stats.record(time.Since(start), status, err)
		if err != nil || endpoint != "ask" || status != http.StatusOK {
			continue
		}
		var res askResult
		if json.Unmarshal(payload, &res) != nil {
			continue
		}
		if res.Status == "answered" {
			stats.answered.Add(1)
		} else {
			stats.unanswered.Add(1)
		}
		if res.CacheHit {
			stats.cacheHits.Add(1)
		}
	}
}

func openSession(ctx context.Context, client *http.Client, baseURL string) (string, error) {
	status, payload, err := post(ctx, client, baseURL+"/api/v1/sessions", nil)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("creating session: status %d", status)
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("decoding session: %w", err)
	}
	return out.SessionID, nil
}

func post(ctx context.Context, client *http.Client, url string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, payload, nil
}

func report(stats *Stats, endpoint string, duration time.Duration) {
	total := stats.requests.Load()
	fmt.Println("=== Results ===")
	fmt.Printf("Requests:    %d\n", total)
	fmt.Printf("2xx:         %d\n", stats.ok.Load())
	fmt.Printf("Errors:      %d\n", stats.failed.Load())
	if total > 0 {
		fmt.Printf("Error rate:  %.2f%%\n", float64(stats.failed.Load())/float64(total)*100)
		fmt.Printf("Req/sec:     %.2f\n", float64(total)/duration.Seconds())
	}
	if endpoint == "ask" {
		fmt.Printf("Answered:    %d\n", stats.answered.Load())
		fmt.Printf("Unanswered:  %d\n", stats.unanswered.Load())
		fmt.Printf("Cache hits:  %d\n", stats.cacheHits.Load())
	}

	stats.mu.Lock()
	latencies := append([]time.Duration(nil), stats.latencies...)
	codes := make([]int, 0, len(stats.statuses))
	for code := range stats.statuses {
		codes = append(codes, code)
	}
	counts := make(map[int]int64, len(stats.statuses))
	for code, n := range stats.statuses {
		counts[code] = n
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:  %s\n", latencies[0])
		fmt.Printf("Avg:  %s\n", sum/time.Duration(len(latencies)))
		fmt.Printf("P50:  %s\n", percentile(latencies, 50))
		fmt.Printf("P95:  %s\n", percentile(latencies, 95))
		fmt.Printf("P99:  %s\n", percentile(latencies, 99))
		fmt.Printf("Max:  %s\n", latencies[len(latencies)-1])
	}

	sort.Ints(codes)
	fmt.Println()
	fmt.Println("=== Status codes ===")
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, counts[code])
	}

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: no request completed. Is iam-server running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
