// Seed tool for loading vendor, market, center, and pricing CSV data into a
// running Tradewind instance.
//
// Usage:
//
//	go run cmd/seed/main.go -url http://localhost:8080 \
//	  -vendors vendors.csv -markets markets.csv \
//	  -centers centers.csv -pricing pricing.csv
//
// Expected CSV headers (column order does not matter):
//
//	vendors: vendor_id,name,type,city,state,latitude,longitude,reliability_score,avg_lead_time_days
//	markets: market_id,region_name,region_code,latitude,longitude,cost_of_living_index
//	centers: center_id,name,type,market_id,latitude,longitude,service_radius_miles
//	pricing: sku_id,vendor_id,region,category,price,currency
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
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Tradewind base URL")
	vendorsPath := flag.String("vendors", "", "Path to vendors CSV")
	marketsPath := flag.String("markets", "", "Path to markets CSV")
	centersPath := flag.String("centers", "", "Path to centers CSV")
	pricingPath := flag.String("pricing", "", "Path to pricing CSV")
	workers := flag.Int("workers", 10, "Concurrent workers for pricing rows")
	limit := flag.Int("limit", 0, "Maximum pricing rows to load (0 = all)")
	flag.Parse()

	if *vendorsPath == "" && *marketsPath == "" && *centersPath == "" && *pricingPath == "" {
		fmt.Println("Usage: seed -url http://localhost:8080 [-vendors v.csv] [-markets m.csv] [-centers c.csv] [-pricing p.csv]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Tradewind not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Tradewind is running:")
		fmt.Println("  go run cmd/tradewind/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Tradewind is healthy")

	client := &http.Client{Timeout: 10 * time.Second}
	start := time.Now()

	// Load reference entities sequentially; pricing depends on them.
	if *marketsPath != "" {
		n, errs := loadEntities(client, *baseURL+"/markets", *marketsPath, marketRow)
		fmt.Printf("✓ Markets:  %d loaded, %d errors\n", n, errs)
	}
	if *vendorsPath != "" {
		n, errs := loadEntities(client, *baseURL+"/vendors", *vendorsPath, vendorRow)
		fmt.Printf("✓ Vendors:  %d loaded, %d errors\n", n, errs)
	}
	if *centersPath != "" {
		n, errs := loadEntities(client, *baseURL+"/centers", *centersPath, centerRow)
		fmt.Printf("✓ Centers:  %d loaded, %d errors\n", n, errs)
	}
	if *pricingPath != "" {
		n, errs := loadPricing(client, *baseURL, *pricingPath, *workers, *limit)
		fmt.Printf("✓ Pricing:  %d loaded, %d errors\n", n, errs)
	}

	fmt.Printf("\nDone in %v\n", time.Since(start).Round(time.Millisecond))
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

// rowMapper converts one CSV record, via the header column index, into a
// request payload. It returns nil to skip the row.
type rowMapper func(col map[string]int, record []string) map[string]any

func vendorRow(col map[string]int, record []string) map[string]any {
	payload := map[string]any{
		"vendorId": field(col, record, "vendor_id"),
		"name":     field(col, record, "name"),
		"type":     field(col, record, "type"),
		"city":     field(col, record, "city"),
		"state":    field(col, record, "state"),
	}
	if lat, ok := floatField(col, record, "latitude"); ok {
		payload["latitude"] = lat
	}
	if lon, ok := floatField(col, record, "longitude"); ok {
		payload["longitude"] = lon
	}
	if rel, ok := floatField(col, record, "reliability_score"); ok {
		payload["reliabilityScore"] = rel
	}
	if days, ok := intField(col, record, "avg_lead_time_days"); ok {
		payload["avgLeadTimeDays"] = days
	}
	return payload
}

func marketRow(col map[string]int, record []string) map[string]any {
	payload := map[string]any{
		"marketId":   field(col, record, "market_id"),
		"regionName": field(col, record, "region_name"),
		"regionCode": field(col, record, "region_code"),
	}
	if lat, ok := floatField(col, record, "latitude"); ok {
		payload["latitude"] = lat
	}
	if lon, ok := floatField(col, record, "longitude"); ok {
		payload["longitude"] = lon
	}
	if idx, ok := floatField(col, record, "cost_of_living_index"); ok {
		payload["costOfLivingIndex"] = idx
	}
	return payload
}

func centerRow(col map[string]int, record []string) map[string]any {
	payload := map[string]any{
		"centerId": field(col, record, "center_id"),
		"name":     field(col, record, "name"),
		"type":     field(col, record, "type"),
		"marketId": field(col, record, "market_id"),
	}
	if lat, ok := floatField(col, record, "latitude"); ok {
		payload["latitude"] = lat
	}
	if lon, ok := floatField(col, record, "longitude"); ok {
		payload["longitude"] = lon
	}
	if radius, ok := floatField(col, record, "service_radius_miles"); ok {
		payload["serviceRadiusMiles"] = radius
	}
	return payload
}

func pricingRow(col map[string]int, record []string) map[string]any {
	price, ok := floatField(col, record, "price")
	if !ok {
		return nil
	}
	currency := field(col, record, "currency")
	if currency == "" {
		currency = "USD"
	}
	return map[string]any{
		"skuId":    field(col, record, "sku_id"),
		"vendorId": field(col, record, "vendor_id"),
		"region":   field(col, record, "region"),
		"category": field(col, record, "category"),
		"price":    price,
		"currency": currency,
	}
}

// loadEntities posts each CSV row to the endpoint sequentially.
func loadEntities(client *http.Client, endpoint, path string, mapper rowMapper) (loaded, errors int) {
	rows, col, err := openCSV(path)
	if err != nil {
		fmt.Printf("ERROR: failed to read %s: %v\n", path, err)
		return 0, 1
	}
	defer rows.close()

	for {
		record, err := rows.read()
		if err == io.EOF {
			break
		}
		if err != nil {
			errors++
			continue
		}

		payload := mapper(col, record)
		if payload == nil {
			errors++
			continue
		}

		if err := post(client, endpoint, payload); err != nil {
			errors++
			continue
		}
		loaded++
	}
	return loaded, errors
}

// loadPricing posts pricing rows concurrently; volume is typically much
// higher than the reference entities.
func loadPricing(client *http.Client, baseURL, path string, workers, limit int) (int64, int64) {
	rows, col, err := openCSV(path)
	if err != nil {
		fmt.Printf("ERROR: failed to read %s: %v\n", path, err)
		return 0, 1
	}
	defer rows.close()

	var loaded, errors int64
	work := make(chan map[string]any, 100)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for payload := range work {
				if err := post(client, baseURL+"/pricing", payload); err != nil {
					atomic.AddInt64(&errors, 1)
					continue
				}
				atomic.AddInt64(&loaded, 1)
			}
		}()
	}

	sent := 0
	for {
		record, err := rows.read()
		if err == io.EOF {
			break
		}
		if err != nil {
			atomic.AddInt64(&errors, 1)
			continue
		}

		payload := pricingRow(col, record)
		if payload == nil {
			atomic.AddInt64(&errors, 1)
			continue
		}

		work <- payload
		sent++
		if limit > 0 && sent >= limit {
			break
		}
	}
	close(work)
	wg.Wait()

	return loaded, errors
}

func post(client *http.Client, endpoint string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// csvRows wraps a CSV reader with its backing file.
type csvRows struct {
	file   *os.File
	reader *csv.Reader
}

func (r *csvRows) read() ([]string, error) { return r.reader.Read() }
func (r *csvRows) close()                  { r.file.Close() }

// openCSV opens path, reads the header, and returns a lowercase
// column-name index.
func openCSV(path string) (*csvRows, map[string]int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	col := make(map[string]int)
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	return &csvRows{file: file, reader: reader}, col, nil
}

func field(col map[string]int, record []string, name string) string {
	idx, ok := col[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func floatField(col map[string]int, record []string, name string) (float64, bool) {
	raw := field(col, record, name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func intField(col map[string]int, record []string, name string) (int, bool) {
	raw := field(col, record, name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
