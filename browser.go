package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

const healthProbeURL = "https://www.google.com"

// Consent-acceptance controls known to appear on the interstitial, tried in
// order with a very short per-element timeout.
var consentSelectors = []string{
	`button[aria-label="Accept all"]`,
	`button[aria-label="I agree"]`,
	`button[aria-label="Aceitar tudo"]`,
	`button.VfPpkd-LgbsSe-OWXEXe-k8QpJ`,
}

// browserAllocatorOptions hardens Chrome for constrained server environments:
// reduced viewport, images off, and optionally scripting off for the cheap
// first pass.
func browserAllocatorOptions(cfg config, scripted bool) []chromedp.ExecAllocatorOption {
	blink := "imagesEnabled=false"
	if !scripted {
		blink += ",scriptEnabled=false"
	}
	return append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("blink-settings", blink),
		chromedp.WindowSize(800, 600),
		chromedp.UserAgent(browserUserAgent),
	)
}

// checkBrowserHealth performs the one-shot startup probe: launch, navigate a
// known page, read the title. The result gates the browser stage for the
// lifetime of the process.
func checkBrowserHealth(cfg config) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, browserAllocatorOptions(cfg, false)...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var title string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(healthProbeURL),
		chromedp.Title(&title),
	)
	if err != nil {
		log.Printf("browser health probe failed: %v", err)
		return false
	}
	return strings.Contains(title, "Google")
}

// browserResolve renders the URL in an isolated session and extracts
// coordinates from the resulting address or document. Two passes: scripting
// disabled first (cheap), then enabled (handles client-side redirects and
// consent dialogs). One outer deadline wraps both passes; expiry is an
// expected outcome, not an error.
func browserResolve(parent context.Context, cfg config, rawURL string) (coordinate, bool) {
	ctx, cancel := context.WithTimeout(parent, cfg.BrowserBudget)
	defer cancel()

	for _, scripted := range []bool{false, true} {
		coord, ok := browserPass(ctx, cfg, rawURL, scripted)
		if ok {
			return coord, true
		}
		if ctx.Err() != nil {
			log.Printf("   browser budget expired for %s", rawURL)
			return coordinate{}, false
		}
	}
	return coordinate{}, false
}

func browserPass(ctx context.Context, cfg config, rawURL string, scripted bool) (coordinate, bool) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, browserAllocatorOptions(cfg, scripted)...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	navCtx, navCancel := context.WithTimeout(browserCtx, cfg.NavTimeout)
	defer navCancel()

	var finalURL string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(rawURL),
		chromedp.Sleep(300*time.Millisecond),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		log.Printf("   browser pass (scripted=%v) failed: %v", scripted, err)
		return coordinate{}, false
	}

	if coord, ok := extractCoordinates(finalURL); ok {
		return coord, true
	}

	if scripted {
		return dismissConsentAndReread(browserCtx)
	}

	// Without scripting the address never changes; the rendered document is
	// the only remaining source.
	var body string
	if err := chromedp.Run(browserCtx, chromedp.OuterHTML("html", &body, chromedp.ByQuery)); err != nil {
		log.Printf("   browser body read failed: %v", err)
		return coordinate{}, false
	}
	return extractCoordinates(body)
}

func dismissConsentAndReread(browserCtx context.Context) (coordinate, bool) {
	for _, selector := range consentSelectors {
		clickCtx, clickCancel := context.WithTimeout(browserCtx, 500*time.Millisecond)
		err := chromedp.Run(clickCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
		clickCancel()
		if err != nil {
			continue
		}

		readCtx, readCancel := context.WithTimeout(browserCtx, 1500*time.Millisecond)
		var finalURL string
		err = chromedp.Run(readCtx,
			chromedp.Sleep(800*time.Millisecond),
			chromedp.Location(&finalURL),
		)
		readCancel()
		if err != nil {
			return coordinate{}, false
		}
		return extractCoordinates(finalURL)
	}
	return coordinate{}, false
}
