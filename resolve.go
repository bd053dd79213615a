package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"
)

// strategyOutcome is the sum of the three ways an attempt can end. Errors are
// treated like NotFound for control flow but logged separately.
type strategyOutcome struct {
	coord coordinate
	ok    bool
	err   error
}

func outcomeFound(c coordinate) strategyOutcome { return strategyOutcome{coord: c, ok: true} }
func outcomeNotFound() strategyOutcome          { return strategyOutcome{} }
func outcomeError(err error) strategyOutcome    { return strategyOutcome{err: err} }

// strategy is one self-contained resolution technique.
type strategy struct {
	name    string
	attempt func(ctx context.Context, res *resolution) strategyOutcome
}

// resolution carries the request-scoped state shared across strategies.
type resolution struct {
	shortURL    string
	expandedURL string
	consent     bool
	placeID     placeID
	hasPlaceID  bool
	placeName   string
}

type result struct {
	Coord     coordinate
	PlaceName string
	Strategy  string
	Resolved  bool
}

type resolver struct {
	cfg            config
	browserHealthy bool
	journal        *journal
}

// newResolver captures the one-shot browser health probe result for the
// lifetime of the resolver. journal may be nil.
func newResolver(cfg config, browserHealthy bool, journal *journal) *resolver {
	return &resolver{cfg: cfg, browserHealthy: browserHealthy, journal: journal}
}

// Resolve expands the short link and walks the strategy list in cost order,
// stopping at the first hit. A strategy failure is never fatal; only the
// initial expansion can return an error.
func (r *resolver) Resolve(ctx context.Context, shortURL string) (result, error) {
	res, err := r.expand(ctx, shortURL)
	if err != nil {
		return result{}, err
	}
	return r.run(ctx, res), nil
}

// expand follows the short link's redirects, strips any consent wrapper and
// derives the request-scoped state every strategy consumes.
func (r *resolver) expand(ctx context.Context, shortURL string) (*resolution, error) {
	expanded, err := followRedirects(ctx, shortURL, r.cfg.FetchTimeout)
	if err != nil {
		return nil, fmt.Errorf("expanding %s: %w", shortURL, err)
	}
	log.Printf("expanded %s -> %s", shortURL, expanded)

	stripped := stripConsentRedirect(expanded)
	res := &resolution{
		shortURL:    shortURL,
		expandedURL: stripped,
		consent:     isConsentURL(expanded) || isConsentURL(stripped),
	}
	if id, ok := extractPlaceID(stripped); ok {
		res.placeID, res.hasPlaceID = id, true
	}
	res.placeName, _ = extractPlaceName(stripped)

	if res.consent {
		log.Printf("consent interstitial detected for %s", shortURL)
	}
	return res, nil
}

// run walks the ordered strategy list and short-circuits at the first hit.
func (r *resolver) run(ctx context.Context, res *resolution) result {
	start := time.Now()

	out := result{PlaceName: res.placeName}
	for _, s := range r.strategies(res) {
		outcome := s.attempt(ctx, res)
		if outcome.err != nil {
			log.Printf("strategy %s errored for %s: %v", s.name, res.shortURL, outcome.err)
			continue
		}
		if !outcome.ok {
			continue
		}
		log.Printf("strategy %s resolved %s to %.6f, %.6f", s.name, res.shortURL, outcome.coord.Lat, outcome.coord.Lng)
		out.Coord = outcome.coord
		out.Strategy = s.name
		out.Resolved = true
		break
	}

	if !out.Resolved {
		log.Printf("all strategies exhausted for %s", res.shortURL)
	}
	r.journal.record(ctx, res.shortURL, out, time.Since(start))
	return out
}

// strategies builds the ordered list for one resolution. The quick
// single-candidate redirect check is only worth trying when no consent
// interstitial was seen; everything else keeps its place.
func (r *resolver) strategies(res *resolution) []strategy {
	list := []strategy{
		{name: "direct-pattern", attempt: func(_ context.Context, res *resolution) strategyOutcome {
			if coord, ok := extractCoordinates(res.expandedURL); ok {
				return outcomeFound(coord)
			}
			return outcomeNotFound()
		}},
		{name: "param-pattern", attempt: func(_ context.Context, res *resolution) strategyOutcome {
			if coord, ok := extractParamCoordinates(res.expandedURL); ok {
				return outcomeFound(coord)
			}
			return outcomeNotFound()
		}},
	}

	if !res.consent {
		list = append(list, strategy{name: "quick-cid", attempt: func(ctx context.Context, res *resolution) strategyOutcome {
			if !res.hasPlaceID {
				return outcomeNotFound()
			}
			coord, ok, err := quickCIDRedirect(ctx, res.placeID, r.cfg.QuickTimeout)
			if err != nil {
				return outcomeError(err)
			}
			if ok {
				return outcomeFound(coord)
			}
			return outcomeNotFound()
		}})
	}

	list = append(list,
		strategy{name: "place-id", attempt: r.placeIDStrategy},
		strategy{name: "browser", attempt: r.browserStrategy},
		strategy{name: "geocode", attempt: func(ctx context.Context, res *resolution) strategyOutcome {
			if coord, ok := geocodeFallback(ctx, r.cfg, res.expandedURL); ok {
				return outcomeFound(coord)
			}
			return outcomeNotFound()
		}},
	)
	return list
}

// placeIDStrategy runs the full reconstructor: candidate URLs, then the
// alternate regional domains, then the web-search last resort.
func (r *resolver) placeIDStrategy(ctx context.Context, res *resolution) strategyOutcome {
	if !res.hasPlaceID {
		return outcomeNotFound()
	}
	if coord, ok := resolvePlaceIDCandidates(ctx, res.placeID, r.cfg.FetchTimeout); ok {
		return outcomeFound(coord)
	}
	if coord, ok := resolveAlternateDomains(ctx, res.placeID, r.cfg.QuickTimeout); ok {
		return outcomeFound(coord)
	}
	if coord, ok := searchFallback(ctx, res.placeID, r.cfg.QuickTimeout); ok {
		return outcomeFound(coord)
	}
	return outcomeNotFound()
}

// browserStrategy is gated by the startup health probe: when the probe
// failed, the stage is a no-op regardless of input.
func (r *resolver) browserStrategy(ctx context.Context, res *resolution) strategyOutcome {
	if !r.browserHealthy {
		return outcomeNotFound()
	}
	if coord, ok := browserResolve(ctx, r.cfg, res.expandedURL); ok {
		return outcomeFound(coord)
	}
	return outcomeNotFound()
}

// wazeLink renders the outbound deep link. FormatFloat with -1 precision
// keeps the exact decimal text of the extracted coordinates.
func wazeLink(c coordinate) string {
	return fmt.Sprintf("https://ul.waze.com/ul?ll=%s,%s",
		strconv.FormatFloat(c.Lat, 'f', -1, 64),
		strconv.FormatFloat(c.Lng, 'f', -1, 64))
}
