// catalog-check validates a static model catalog file: every entry must pass
// ModelInfo validation, keys must be unique, and any "source" URL recorded in
// a model's metadata is HEAD-checked. The process exits with code 1 if any
// failures are found so CI can flag stale catalogs.
//
// Usage:
//
// go run ./scripts/catalog-check -catalog models.yaml
// go run ./scripts/catalog-check -catalog models.json -skip-urls
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ferro-labs/model-router/models"
)

func main() {
	catalogPath := flag.String("catalog", "models.yaml", "path to the catalog file (JSON or YAML list of models)")
	concurrency := flag.Int("concurrency", 10, "number of parallel HTTP requests")
	skipURLs := flag.Bool("skip-urls", false, "skip HEAD-checking metadata source URLs")
	flag.Parse()

	data, err := os.ReadFile(*catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot read catalog: %v\n", err)
		os.Exit(2)
	}

	var catalog []models.ModelInfo
	switch strings.ToLower(filepath.Ext(*catalogPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &catalog)
	default:
		err = json.Unmarshal(data, &catalog)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot parse catalog: %v\n", err)
		os.Exit(2)
	}

	failures := 0

	seen := map[string]bool{}
	for i, m := range catalog {
		if err := m.Validate(); err != nil {
			fmt.Printf("INVALID  entry %d: %v\n", i, err)
			failures++
			continue
		}
		key := m.Key()
		if seen[key] {
			fmt.Printf("DUP      %s\n", key)
			failures++
		}
		seen[key] = true
	}

	if !*skipURLs {
		failures += checkSourceURLs(catalog, *concurrency)
	}

	fmt.Printf("checked %d model(s), %d failure(s)\n", len(catalog), failures)
	if failures > 0 {
		os.Exit(1)
	}
}

// checkSourceURLs HEAD-requests every unique metadata "source" URL and
// returns the number of failures.
func checkSourceURLs(catalog []models.ModelInfo, concurrency int) int {
	seen := map[string]bool{}
	var urls []string
	for _, m := range catalog {
		src, _ := m.Metadata["source"].(string)
		src = strings.TrimSpace(src)
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		urls = append(urls, src)
	}
	sort.Strings(urls)
	if len(urls) == 0 {
		return 0
	}

	client := &http.Client{Timeout: 15 * time.Second}
	sem := make(chan struct{}, concurrency)
	var mu sync.Mutex
	var wg sync.WaitGroup
	failures := 0

	for _, u := range urls {
		wg.Add(1)
		sem <- struct{}{}
		go func(u string) {
			defer wg.Done()
			defer func() { <-sem }()

			resp, err := client.Head(u)
			if err != nil {
				mu.Lock()
				fmt.Printf("FAIL     %s: %v\n", u, err)
				failures++
				mu.Unlock()
				return
			}
			_ = resp.Body.Close()
			if resp.StatusCode >= 400 {
				mu.Lock()
				fmt.Printf("FAIL     %s: HTTP %d\n", u, resp.StatusCode)
				failures++
				mu.Unlock()
			}
		}(u)
	}
	wg.Wait()
	return failures
}
