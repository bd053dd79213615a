package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/miekg/dns"
)

const (
	mapsBaseURL      = "https://www.google.com"
	searchBaseURL    = "https://www.google.com/search"
	maxResponseBytes = 2 * 1024 * 1024

	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"
)

// Reduced set of regional domains tried by the direct place-ID variant.
var alternateDomains = []string{"maps.google.co.uk", "maps.google.de", "maps.google.ca"}

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// followRedirects issues a GET with a browser-like header set, follows every
// redirect and returns the final URL.
func followRedirects(ctx context.Context, rawURL string, timeout time.Duration) (string, error) {
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	setBrowserHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	return resp.Request.URL.String(), nil
}

// redirectLocation issues a GET with automatic following disabled and returns
// the Location header of a 3xx response. A non-redirect response yields an
// empty string with no error.
func redirectLocation(ctx context.Context, rawURL string, timeout time.Duration) (string, error) {
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	setBrowserHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return "", nil
	}
	return resp.Header.Get("Location"), nil
}

func fetchBody(ctx context.Context, rawURL string, timeout time.Duration) (string, error) {
	client := &http.Client{Timeout: timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	setBrowserHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s responded with status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func cidURL(host string, id placeID) string {
	return fmt.Sprintf("https://%s/maps?cid=0x%s", host, id.Hex2)
}

// placeIDCandidates builds the ordered list of alternative URLs derived from
// a place identifier.
func placeIDCandidates(id placeID) []string {
	return []string{
		cidURL("www.google.com", id),
		cidURL("maps.google.co.uk", id),
		mapsBaseURL + "/maps/search/?api=1&query=place_id:" + id.Raw,
		mapsBaseURL + "/maps/embed/v1/place?key=&q=place_id:" + id.Raw,
	}
}

// resolvePlaceIDCandidates drives each candidate through redirect inspection
// first, then redirect following, and the pattern extractor. Candidates whose
// resolved location is itself a consent interstitial are discarded.
func resolvePlaceIDCandidates(ctx context.Context, id placeID, timeout time.Duration) (coordinate, bool) {
	for _, candidate := range placeIDCandidates(id) {
		loc, err := redirectLocation(ctx, candidate, timeout)
		if err != nil {
			log.Printf("   candidate %s failed: %v", candidate, err)
			continue
		}
		if loc != "" && !isConsentURL(loc) {
			if coord, ok := extractCoordinates(loc); ok {
				return coord, true
			}
		}

		final, err := followRedirects(ctx, candidate, timeout)
		if err != nil {
			log.Printf("   candidate %s failed: %v", candidate, err)
			continue
		}
		final = stripConsentRedirect(final)
		if isConsentURL(final) {
			continue
		}
		if coord, ok := extractCoordinates(final); ok {
			return coord, true
		}
	}
	return coordinate{}, false
}

// quickCIDRedirect is the cheapest place-ID check: a single no-follow request
// against the numeric CID endpoint with a short timeout.
func quickCIDRedirect(ctx context.Context, id placeID, timeout time.Duration) (coordinate, bool, error) {
	loc, err := redirectLocation(ctx, cidURL("www.google.com", id), timeout)
	if err != nil {
		return coordinate{}, false, err
	}
	if loc == "" || isConsentURL(loc) {
		return coordinate{}, false, nil
	}
	coord, ok := extractCoordinates(loc)
	return coord, ok, nil
}

// resolveAlternateDomains tries the reduced regional-domain set with short
// per-attempt timeouts. Domains that fail a DNS preflight are skipped without
// spending an HTTP timeout on them.
func resolveAlternateDomains(ctx context.Context, id placeID, timeout time.Duration) (coordinate, bool) {
	for _, domain := range alternateDomains {
		if !hostResolvable(domain) {
			log.Printf("   skipping %s: does not resolve", domain)
			continue
		}
		loc, err := redirectLocation(ctx, cidURL(domain, id), timeout)
		if err != nil {
			log.Printf("   alternate domain %s failed: %v", domain, err)
			continue
		}
		if loc == "" || isConsentURL(loc) {
			continue
		}
		if coord, ok := extractCoordinates(loc); ok {
			return coord, true
		}
	}
	return coordinate{}, false
}

// searchFallback issues a text-search query for the numeric identifier and
// pattern-matches the result body. Noisy and low-confidence; tried last.
func searchFallback(ctx context.Context, id placeID, timeout time.Duration) (coordinate, bool) {
	query := url.QueryEscape("site:maps.google.com " + id.Hex2)
	body, err := fetchBody(ctx, searchBaseURL+"?q="+query, timeout)
	if err != nil {
		log.Printf("   search fallback failed: %v", err)
		return coordinate{}, false
	}

	if href, ok := findMapsPlaceLink(body); ok {
		if coord, ok := extractCoordinates(href); ok {
			return coord, true
		}
	}
	return extractCoordinates(body)
}

// findMapsPlaceLink lifts the first /maps/place/ href out of an HTML body.
func findMapsPlaceLink(body string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", false
	}

	var href string
	doc.Find(`a[href*="/maps/place/"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		h, ok := sel.Attr("href")
		if !ok || strings.TrimSpace(h) == "" {
			return true
		}
		href = strings.TrimSpace(h)
		return false
	})
	if href == "" {
		return "", false
	}
	if strings.HasPrefix(href, "/") {
		href = mapsBaseURL + href
	}
	return href, true
}

// hostResolvable asks the public resolvers for an A record before any HTTP
// attempt is made against the host.
func hostResolvable(host string) bool {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), dns.TypeA)
	msg.RecursionDesired = true

	client := &dns.Client{Timeout: 2 * time.Second}
	servers := []string{"8.8.8.8:53", "1.1.1.1:53"}
	for _, server := range servers {
		if resp, _, err := client.Exchange(msg, server); err == nil {
			if resp != nil && resp.Rcode == dns.RcodeSuccess && len(resp.Answer) > 0 {
				return true
			}
		}
	}
	return false
}
