package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

const (
	mockPort = 9091
	appPort  = 8081
)

var generateResp = []byte(`{"model":"codellama","response":"Hello from the bench","done":true}`)

func main() {
	duration := flag.Duration("duration", 10*time.Second, "Duration of the test")
	rate := flag.Int("rate", 50, "Requests per second")
	limit := flag.Int("limit", 0, "ollama requests per minute, 0 for unlimited")
	chaos := flag.Bool("chaos", false, "Simulate random client disconnections")
	flag.Parse()

	// start mock upstream
	go startMockServer()

	fmt.Println("Building application...")
	buildCmd := exec.Command("go", "build", "-o", "bin/bridge", "./cmd/bridge")
	buildCmd.Stdout = os.Stdout
	buildCmd.Stderr = os.Stderr
	if err := buildCmd.Run(); err != nil {
		log.Fatalf("Failed to build app: %v", err)
	}

	mailboxDir, err := os.MkdirTemp("", "bridge-bench-*")
	if err != nil {
		log.Fatalf("Failed to create mailbox dir: %v", err)
	}
	defer os.RemoveAll(mailboxDir)

	configFile := "bench_config.yaml"
	if err := os.WriteFile(configFile, []byte(benchConfig(mailboxDir, *limit)), 0o644); err != nil {
		log.Fatalf("Failed to write config: %v", err)
	}
	defer os.Remove(configFile)

	fmt.Println("Starting application...")
	cmd := exec.Command("./bin/bridge", "serve", "--config", configFile)
	cmd.Env = append(os.Environ(), "LOG_LEVEL=error", "NO_COLOR=1")

	logFile, _ := os.Create("bench_server.log")
	defer logFile.Close()
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}
	defer func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}()

	base := fmt.Sprintf("http://localhost:%d", appPort)
	waitForApp(base + "/health")

	done := make(chan struct{})

	fmt.Printf("Running benchmark: %s duration, %d req/s\n", *duration, *rate)

	body := []byte(`{"service":"ollama","prompt":"Hello","settings":{"maxTokens":16}}`)
	targeter := func(t *vegeta.Target) error {
		t.Method = http.MethodPost
		t.URL = base + "/api/ai-request"
		t.Body = body
		t.Header = http.Header{"Content-Type": []string{"application/json"}}
		return nil
	}

	if *chaos {
		fmt.Println("CHAOS MODE ENABLED: Starting Chaos Monkey sidecar...")
		concurrency := min(max(*rate/10, 5), 50)
		go startChaosMonkey(base+"/api/ai-request", concurrency, done)
	}

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var metrics vegeta.Metrics

	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: *rate, Per: time.Second}, *duration, "Benchmark") {
		metrics.Add(res)
	}
	metrics.Close()
	close(done)

	fmt.Println("--------------------------------------------------")
	fmt.Println("99th percentile: ", metrics.Latencies.P99)
	fmt.Println("Mean:            ", metrics.Latencies.Mean)
	fmt.Println("Max:             ", metrics.Latencies.Max)
	fmt.Printf("Success:         %.2f%%\n", metrics.Success*100)
	fmt.Printf("Throughput:      %.2f req/s\n", metrics.Throughput)
	fmt.Println("Status codes:    ", metrics.StatusCodes)
	fmt.Println("--------------------------------------------------")

	if len(metrics.Errors) > 0 {
		fmt.Println("Error Set (first 5 unique):")
		seen := make(map[string]bool)
		for _, msg := range metrics.Errors {
			if !seen[msg] && len(seen) < 5 {
				fmt.Println(msg)
				seen[msg] = true
			}
		}
	}

	printBrokerMetrics(base + "/metrics")
}

func startChaosMonkey(url string, concurrency int, done chan struct{}) {
	fmt.Printf("Starting Chaos Monkey with %d concurrent disrupters (random disconnects 1-200ms)\n", concurrency)
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			client := &http.Client{}
			payload := `{"service":"ollama","prompt":"Chaos Request"}`

			for {
				select {
				case <-done:
					return
				default:
					timeout := time.Duration(rand.Intn(200)+1) * time.Millisecond
					ctx, cancel := context.WithTimeout(context.Background(), timeout)
					req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(payload))
					req.Header.Set("Content-Type", "application/json")

					resp, err := client.Do(req)
					if err == nil {
						_ = resp.Body.Close()
					}
					cancel()

					time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)
				}
			}
		}()
	}
	wg.Wait()
}

// startMockServer emulates ollama's /api/generate with a small fixed latency.
func startMockServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(generateResp)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	_ = http.ListenAndServe(fmt.Sprintf(":%d", mockPort), mux)
}

// printBrokerMetrics prints the broker's own dispatch counters.
func printBrokerMetrics(url string) {
	resp, err := http.Get(url)
	if err != nil {
		fmt.Printf("Failed to scrape metrics: %v\n", err)
		return
	}
	defer resp.Body.Close()

	fmt.Println("Broker counters:")
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "model_bridge_dispatches_total") || strings.HasPrefix(line, "model_bridge_rate_limited_total") {
			fmt.Println("  " + line)
		}
	}
}

func waitForApp(url string) {
	for i := 0; i < 20; i++ {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	log.Fatal("App timed out")
}

func benchConfig(mailboxDir string, limit int) string {
	return fmt.Sprintf(`
server:
  port: "%d"
  env: production
mailbox:
  dir: %q
  watch: false
providers:
  ollama:
    enabled: true
    base_url: "http://localhost:%d"
  claude:
    enabled: false
  openai:
    enabled: false
rate_limits:
  ollama:
    requests: %d
    window_ms: 60000
`, appPort, mailboxDir, mockPort, limit)
}
