package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const regionQualifier = "Portugal"

type geocodeResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// geocodeFallback derives a human-readable name from the URL's /place/
// segment and queries the geocoder with a ranked list of variants, stopping
// at the first non-empty response. Lowest-confidence strategy: it resolves an
// address, not the exact pin.
func geocodeFallback(ctx context.Context, cfg config, rawURL string) (coordinate, bool) {
	name, ok := placePathSegment(rawURL)
	if !ok {
		return coordinate{}, false
	}

	queries := geocodeQueryVariants(name)
	for i, query := range queries {
		if i > 0 && cfg.GeocoderDelay > 0 {
			select {
			case <-time.After(cfg.GeocoderDelay):
			case <-ctx.Done():
				return coordinate{}, false
			}
		}

		coord, ok, err := geocodeQuery(ctx, cfg, query)
		if err != nil {
			log.Printf("   geocode query %q failed: %v", query, err)
			continue
		}
		if ok {
			log.Printf("   geocoder matched %q: %.6f, %.6f", query, coord.Lat, coord.Lng)
			return coord, true
		}
	}
	return coordinate{}, false
}

// geocodeQueryVariants synthesizes the ranked query list for a place name:
// the full name, street+locality and locality forms around a postal-code
// token, the trailing components, then each component individually. The
// regional qualifier is appended to everything derived from components.
// First-occurrence order is preserved when deduplicating.
func geocodeQueryVariants(name string) []string {
	queries := []string{name}

	if strings.Contains(name, ",") {
		parts := splitAndTrim(name, ",")

		for i, part := range parts {
			if !postalCodeRegex.MatchString(part) {
				continue
			}
			if i > 0 {
				queries = append(queries, parts[i-1]+", "+part+", "+regionQualifier)
			}
			queries = append(queries, part+", "+regionQualifier)
		}

		if len(parts) >= 2 {
			queries = append(queries, parts[len(parts)-2]+", "+parts[len(parts)-1]+", "+regionQualifier)
			queries = append(queries, parts[len(parts)-1]+", "+regionQualifier)
		}

		// Skip the leading component, usually the business name itself.
		for _, part := range parts[1:] {
			if len(part) > 3 {
				queries = append(queries, part+", "+regionQualifier)
			}
		}
	}

	return dedupeQueries(queries)
}

func splitAndTrim(s, sep string) []string {
	raw := strings.Split(s, sep)
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func dedupeQueries(queries []string) []string {
	seen := make(map[string]struct{}, len(queries))
	unique := make([]string, 0, len(queries))
	for _, q := range queries {
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		unique = append(unique, q)
	}
	return unique
}

func geocodeQuery(ctx context.Context, cfg config, query string) (coordinate, bool, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("limit", "3")
	params.Set("q", query)

	base := strings.TrimRight(cfg.GeocoderBaseURL, "?&")
	endpoint := base + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return coordinate{}, false, err
	}
	req.Header.Set("User-Agent", cfg.GeocoderUserAgent)
	req.Header.Set("Accept-Language", "en")
	if cfg.GeocoderEmail != "" {
		req.Header.Set("From", cfg.GeocoderEmail)
	}

	client := &http.Client{Timeout: cfg.FetchTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return coordinate{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
		// Throttling is treated as no result; the fixed inter-request delay
		// is the only backoff.
		log.Printf("   geocoder throttled query %q (status %d, check GEOCODER_* settings)", query, resp.StatusCode)
		return coordinate{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return coordinate{}, false, fmt.Errorf("geocoder responded with status %d", resp.StatusCode)
	}

	var payload []geocodeResult
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return coordinate{}, false, err
	}
	if len(payload) == 0 {
		return coordinate{}, false, nil
	}

	lat, err := strconv.ParseFloat(payload[0].Lat, 64)
	if err != nil {
		return coordinate{}, false, err
	}
	lng, err := strconv.ParseFloat(payload[0].Lon, 64)
	if err != nil {
		return coordinate{}, false, err
	}
	return coordinate{Lat: lat, Lng: lng}, true, nil
}
