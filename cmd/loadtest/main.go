package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

var (
	targetHost = flag.String("target", "http://localhost:8080", "admin server base URL")
	rps        = flag.Int("rps", 20, "requests per second")
	duration   = flag.Duration("duration", time.Minute, "attack duration")
)

var (
	firstNames = []string{"alice", "bob", "carol", "dave", "erin", "frank", "gina", "hank", "ivy", "jo"}
	lastNames  = []string{"smith", "jones", "brown", "taylor", "wilson", "lee", "walker", "hall"}
)

// Only read-only endpoints are attacked so the run never creates accounts.
func makeTargeter() vegeta.Targeter {
	return func(t *vegeta.Target) error {
		first := firstNames[rand.Intn(len(firstNames))]
		last := lastNames[rand.Intn(len(lastNames))]

		t.Method = http.MethodGet
		t.Body = nil
		t.Header = map[string][]string{"Accept": {"application/json"}}

		// 70% search, 30% username suggestion
		if rand.Float64() < 0.70 {
			t.URL = fmt.Sprintf("%s/api/users/search?q=%s", *targetHost, url.QueryEscape(first))
			return nil
		}

		q := url.Values{"first": {first}, "last": {last}}
		t.URL = fmt.Sprintf("%s/api/username?%s", *targetHost, q.Encode())
		return nil
	}
}

func runAttack() vegeta.Metrics {
	rate := vegeta.Rate{Freq: *rps, Per: time.Second}
	attacker := vegeta.NewAttacker()

	var metrics vegeta.Metrics

	log.Printf("Starting attack: %s at %d rps for %s", *targetHost, *rps, *duration)
	for res := range attacker.Attack(makeTargeter(), rate, *duration, "directory-read") {
		metrics.Add(res)
	}
	metrics.Close()
	return metrics
}

func main() {
	flag.Parse()

	metrics := runAttack()

	fmt.Println("=== Results ===")
	fmt.Printf("Requests: %d\n", metrics.Requests)
	fmt.Printf("Success rate: %.4f%%\n", metrics.Success*100)
	fmt.Printf("Latency mean: %s\n", metrics.Latencies.Mean)
	fmt.Printf("Latency P95: %s\n", metrics.Latencies.P95)
	fmt.Printf("Latency P99: %s\n", metrics.Latencies.P99)
	for code, n := range metrics.StatusCodes {
		fmt.Printf("Status %s: %d\n", code, n)
	}
}
