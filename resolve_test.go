package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func testResolverConfig(geocoderURL string) config {
	return config{
		FetchTimeout:      2 * time.Second,
		QuickTimeout:      time.Second,
		NavTimeout:        time.Second,
		BrowserBudget:     time.Second,
		GeocoderBaseURL:   geocoderURL,
		GeocoderUserAgent: "wazebot-test/1.0",
		GeocoderDelay:     0,
	}
}

func TestStrategyOutcomes(t *testing.T) {
	found := outcomeFound(coordinate{Lat: 38.7223, Lng: -9.1393})
	if !found.ok || found.err != nil || found.coord.Lat != 38.7223 {
		t.Errorf("found outcome = %+v", found)
	}
	if miss := outcomeNotFound(); miss.ok || miss.err != nil {
		t.Errorf("not-found outcome = %+v", miss)
	}
	if failed := outcomeError(errors.New("boom")); failed.ok || failed.err == nil {
		t.Errorf("error outcome = %+v", failed)
	}
}

func TestRunFallsThroughToGeocode(t *testing.T) {
	geocoder := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat":"38.7223","lon":"-9.1393","display_name":"Quinta Azul, Lisboa"}]`))
	}))
	defer geocoder.Close()

	r := newResolver(testResolverConfig(geocoder.URL), false, nil)
	res := &resolution{
		shortURL:    "https://maps.app.goo.gl/x",
		expandedURL: "https://www.google.com/maps/place/Quinta+Azul/",
		consent:     true,
		placeName:   "Quinta Azul",
	}

	out := r.run(context.Background(), res)
	if !out.Resolved {
		t.Fatal("expected resolution")
	}
	if out.Strategy != "geocode" {
		t.Errorf("strategy = %q, want geocode after every cheaper stage misses", out.Strategy)
	}
	if out.Coord.Lat != 38.7223 || out.Coord.Lng != -9.1393 {
		t.Errorf("got (%v, %v), want (38.7223, -9.1393)", out.Coord.Lat, out.Coord.Lng)
	}
}

func TestStrategyOrdering(t *testing.T) {
	r := newResolver(testResolverConfig("http://unused.invalid"), false, nil)

	names := func(res *resolution) []string {
		var out []string
		for _, s := range r.strategies(res) {
			out = append(out, s.name)
		}
		return out
	}

	t.Run("no consent includes quick redirect check", func(t *testing.T) {
		got := names(&resolution{})
		want := []string{"direct-pattern", "param-pattern", "quick-cid", "place-id", "browser", "geocode"}
		if len(got) != len(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("got %v, want %v", got, want)
			}
		}
	})

	t.Run("consent skips the quick redirect check", func(t *testing.T) {
		got := names(&resolution{consent: true})
		for _, name := range got {
			if name == "quick-cid" {
				t.Fatal("quick-cid scheduled despite consent detection")
			}
		}
		if got[2] != "place-id" || got[3] != "browser" {
			t.Errorf("consent path order = %v, want place-id then browser after the pattern stages", got)
		}
	})
}

func TestResolveDirectCoordinates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/maps/place/Madrid/@40.4168,-3.7038,17z/", http.StatusFound)
	})
	mux.HandleFunc("/maps/place/Madrid/@40.4168,-3.7038,17z/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("map page"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := newResolver(testResolverConfig("http://unused.invalid"), false, nil)
	res, err := r.Resolve(context.Background(), srv.URL+"/short")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Resolved {
		t.Fatal("expected resolution")
	}
	if res.Strategy != "direct-pattern" {
		t.Errorf("strategy = %q, want direct-pattern", res.Strategy)
	}
	if got, want := wazeLink(res.Coord), "https://ul.waze.com/ul?ll=40.4168,-3.7038"; got != want {
		t.Errorf("waze link = %q, want %q", got, want)
	}
	if res.PlaceName != "Madrid" {
		t.Errorf("place name = %q, want Madrid", res.PlaceName)
	}
}

func TestConsentWrappedCoordinatesSkipBrowser(t *testing.T) {
	target := "https://www.google.com/maps/place/Porto/data=!3d41.1579!4d-8.6291"
	expanded := "https://consent.google.com/m?continue=" + url.QueryEscape(target)

	r := newResolver(testResolverConfig("http://unused.invalid"), false, nil)

	stripped := stripConsentRedirect(expanded)
	res := &resolution{
		shortURL:    "https://maps.app.goo.gl/x",
		expandedURL: stripped,
		consent:     isConsentURL(expanded),
	}
	res.placeName, _ = extractPlaceName(stripped)

	out := r.run(context.Background(), res)
	if !out.Resolved {
		t.Fatal("expected resolution")
	}
	if out.Strategy != "direct-pattern" {
		t.Errorf("strategy = %q; coordinates should come straight from the normalized URL", out.Strategy)
	}
	if out.Coord.Lat != 41.1579 || out.Coord.Lng != -8.6291 {
		t.Errorf("got (%v, %v), want (41.1579, -8.6291)", out.Coord.Lat, out.Coord.Lng)
	}
}

func TestResolveUnresolvedEndsWithFailureReply(t *testing.T) {
	geocoder := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer geocoder.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/maps/place/Quinta+Azul/", http.StatusFound)
	})
	mux.HandleFunc("/maps/place/Quinta+Azul/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("place page"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := newResolver(testResolverConfig(geocoder.URL), false, nil)
	res, err := r.Resolve(context.Background(), srv.URL+"/short")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Resolved {
		t.Fatalf("expected unresolved outcome, got %+v", res)
	}
	if got := replyText(res, nil); got != parseFailureReply {
		t.Errorf("reply = %q, want the fixed failure message", got)
	}
}

func TestResolveExpansionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	r := newResolver(testResolverConfig("http://unused.invalid"), false, nil)
	_, err := r.Resolve(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected expansion error")
	}
	if got := replyText(result{}, err); got != expandFailureReply {
		t.Errorf("reply = %q, want the expansion failure message", got)
	}
}

func TestWazeLinkFormatting(t *testing.T) {
	got := wazeLink(coordinate{Lat: 38.7223, Lng: -9.1393})
	if got != "https://ul.waze.com/ul?ll=38.7223,-9.1393" {
		t.Errorf("got %q", got)
	}
}
