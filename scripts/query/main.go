package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"NetSentry/internal/config"
	"NetSentry/internal/query"

	json "github.com/goccy/go-json"
)

func main() {
	mode := flag.String("mode", "api", "Query mode: 'api' to query the sentinel over HTTP, 'direct' to query ClickHouse directly.")
	what := flag.String("q", "stats", "api mode: stats | counts | classify | trace")
	apiBase := flag.String("api", "http://localhost:8080", "Sentinel API base URL.")
	configPath := flag.String("config", "configs/config.yaml", "Configuration file (direct mode).")
	source := flag.String("source", "", "Verdict source filter: known_bad or model.")
	since := flag.Duration("since", 24*time.Hour, "Look-back window.")
	ip := flag.String("ip", "", "Address to trace or classify.")
	body := flag.String("record", "", "classify: JSON packet record; defaults to a record built from -ip.")
	flag.Parse()

	log.Printf("Running in '%s' mode.", *mode)

	switch *mode {
	case "api":
		queryViaAPI(*apiBase, *what, *source, *since, *ip, *body)
	case "direct":
		directQueryClickHouse(*configPath, *source, *since, *ip)
	default:
		log.Fatalf("Invalid mode: %s. Use 'api' or 'direct'.", *mode)
	}
}

func queryViaAPI(base, what, source string, since time.Duration, ip, record string) {
	var resp *http.Response
	var err error

	switch what {
	case "stats":
		resp, err = http.Get(base + "/api/v1/stats")
	case "counts":
		v := url.Values{}
		v.Set("since", fmt.Sprint(time.Now().Add(-since).Unix()))
		if source != "" {
			v.Set("source", source)
		}
		resp, err = http.Get(base + "/api/v1/verdicts/counts?" + v.Encode())
	case "classify":
		if record == "" {
			record = fmt.Sprintf(`{"src_ip":%q,"dst_ip":"8.8.8.8","protocol":6,"src_port":4444,"dst_port":443,"fwd_bytes":60}`, ip)
		}
		resp, err = http.Post(base+"/api/v1/classify", "application/json", bytes.NewBufferString(record))
	case "trace":
		payload, _ := json.Marshal(query.HostTraceRequest{IP: ip, Since: time.Now().Add(-since)})
		resp, err = http.Post(base+"/api/v1/hosts/trace", "application/json", bytes.NewBuffer(payload))
	default:
		log.Fatalf("Unknown query: %s", what)
	}
	if err != nil {
		log.Fatalf("Error sending request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Error reading response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("API returned non-200 status code: %d\nResponse: %s", resp.StatusCode, string(respBody))
	}

	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, respBody, "", "  "); err != nil {
		log.Printf("Could not prettify JSON, printing raw response:")
		fmt.Println(string(respBody))
		return
	}
	fmt.Println(prettyJSON.String())
}

func directQueryClickHouse(configPath, source string, since time.Duration, ip string) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	q, err := query.NewClickHouseQuerier(cfg.ClickHouse)
	if err != nil {
		log.Fatalf("Error connecting to ClickHouse: %v", err)
	}
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if ip != "" {
		summary, err := q.TraceHost(ctx, query.HostTraceRequest{IP: ip, Since: time.Now().Add(-since)})
		if err != nil {
			log.Fatalf("Error tracing host: %v", err)
		}
		fmt.Printf("%s: %d packets, %d malicious, %d known-bad hits, %d peers, seen %s .. %s\n",
			summary.IP, summary.Packets, summary.Malicious, summary.KnownBadHits, summary.DistinctPeers,
			summary.FirstSeen.Format(time.RFC3339), summary.LastSeen.Format(time.RFC3339))
		return
	}

	counts, err := q.CountVerdicts(ctx, query.VerdictFilter{Since: time.Now().Add(-since), Source: source})
	if err != nil {
		log.Fatalf("Error executing query: %v", err)
	}
	if len(counts) == 0 {
		log.Println("No data found for the specified criteria.")
		return
	}
	for _, c := range counts {
		fmt.Printf("%-9s %-9s %d\n", c.Verdict, c.Source, c.Count)
	}
}
