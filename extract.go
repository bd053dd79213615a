package main

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const consentHost = "consent.google.com"

// Coordinate patterns, in priority order: the path form is the tightest
// scoped, the unscoped pair is a last resort.
var (
	coordAtRegex    = regexp.MustCompile(`/@(-?\d+\.\d+),(-?\d+\.\d+),`)
	coordQueryRegex = regexp.MustCompile(`[?&]query=(-?\d+\.\d+),(-?\d+\.\d+)`)
	coordBangRegex  = regexp.MustCompile(`!3d(-?\d+\.\d+)!4d(-?\d+\.\d+)`)
	coordAnyRegex   = regexp.MustCompile(`@?(-?\d+\.\d+),\s*(-?\d+\.\d+)`)

	placeIDRegex    = regexp.MustCompile(`1s0x[a-f0-9]+:0x[a-f0-9]+`)
	postalCodeRegex = regexp.MustCompile(`\b\d{4}-\d{3}\b`)
)

var coordPatterns = []*regexp.Regexp{coordAtRegex, coordQueryRegex, coordBangRegex, coordAnyRegex}

// Parameter-scoped patterns used against query strings, fragments and
// decoded data= blobs.
var paramPatterns = []*regexp.Regexp{
	coordBangRegex,
	regexp.MustCompile(`@(-?\d+\.\d+),(-?\d+\.\d+)`),
	regexp.MustCompile(`=(-?\d+\.\d+),(-?\d+\.\d+)`),
	regexp.MustCompile(`[?&](?:q|query|ll|center)=(-?\d+\.\d+)[,\s]+(-?\d+\.\d+)`),
}

type coordinate struct {
	Lat float64
	Lng float64
}

func (c coordinate) valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// extractCoordinates runs the pattern cascade against a URL or body text and
// returns the first in-range pair. A pattern match outside valid
// latitude/longitude ranges is skipped in favor of the next match.
func extractCoordinates(s string) (coordinate, bool) {
	for _, pattern := range coordPatterns {
		if coord, ok := firstValidMatch(pattern, s); ok {
			return coord, true
		}
	}
	return coordinate{}, false
}

// extractParamCoordinates scans query parameters, fragments and percent-encoded
// data= blobs for coordinate pairs the main cascade misses.
func extractParamCoordinates(rawURL string) (coordinate, bool) {
	for _, pattern := range paramPatterns {
		if coord, ok := firstValidMatch(pattern, rawURL); ok {
			return coord, true
		}
	}

	if _, blob, ok := strings.Cut(rawURL, "data="); ok {
		if amp := strings.Index(blob, "&"); amp != -1 {
			blob = blob[:amp]
		}
		if decoded, err := url.QueryUnescape(blob); err == nil {
			for _, pattern := range paramPatterns {
				if coord, ok := firstValidMatch(pattern, decoded); ok {
					return coord, true
				}
			}
		}
	}

	return coordinate{}, false
}

func firstValidMatch(pattern *regexp.Regexp, s string) (coordinate, bool) {
	for _, m := range pattern.FindAllStringSubmatch(s, -1) {
		lat, latErr := strconv.ParseFloat(m[1], 64)
		lng, lngErr := strconv.ParseFloat(m[2], 64)
		if latErr != nil || lngErr != nil {
			continue
		}
		coord := coordinate{Lat: lat, Lng: lng}
		if coord.valid() {
			return coord, true
		}
	}
	return coordinate{}, false
}

// placeID is the two-part hexadecimal token identifying a point of interest,
// e.g. 1s0xd19337acbb1ab1b:0xeb80fb06738c323. Hex2 maps to a numeric content
// identifier and is usable on its own.
type placeID struct {
	Raw  string
	Hex1 string
	Hex2 string
}

func extractPlaceID(s string) (placeID, bool) {
	raw := placeIDRegex.FindString(s)
	if raw == "" {
		return placeID{}, false
	}
	parts := strings.Split(strings.TrimPrefix(raw, "1s"), ":")
	if len(parts) != 2 {
		return placeID{}, false
	}
	return placeID{
		Raw:  raw,
		Hex1: strings.TrimPrefix(parts[0], "0x"),
		Hex2: strings.TrimPrefix(parts[1], "0x"),
	}, true
}

// stripConsentRedirect unwraps a consent interstitial URL and returns the
// embedded continue target. Any other URL, including unparseable ones, passes
// through unchanged. Idempotent.
func stripConsentRedirect(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if !strings.HasSuffix(parsed.Hostname(), consentHost) {
		return rawURL
	}
	target := parsed.Query().Get("continue")
	if target == "" {
		return rawURL
	}
	return target
}

func isConsentURL(rawURL string) bool {
	return strings.Contains(rawURL, consentHost)
}

// placePathSegment returns the decoded /place/ path segment, commas and all.
func placePathSegment(rawURL string) (string, bool) {
	_, after, ok := strings.Cut(rawURL, "/place/")
	if !ok {
		return "", false
	}
	segment := after
	if idx := strings.Index(segment, "/"); idx != -1 {
		segment = segment[:idx]
	}
	decoded, err := url.QueryUnescape(segment)
	if err != nil {
		decoded = strings.ReplaceAll(segment, "+", " ")
	}
	decoded = strings.TrimSpace(decoded)
	return decoded, decoded != ""
}

// extractPlaceName returns the business/place name portion of the /place/
// segment, suitable for annotating a reply. Too-short or purely numeric
// names are discarded.
func extractPlaceName(rawURL string) (string, bool) {
	name, ok := placePathSegment(rawURL)
	if !ok {
		return "", false
	}
	if idx := strings.Index(name, ","); idx != -1 {
		name = strings.TrimSpace(name[:idx])
	}
	if len(name) <= 2 || isAllDigits(name) {
		return "", false
	}
	return name, true
}

func isAllDigits(s string) bool {
	stripped := strings.ReplaceAll(s, " ", "")
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
