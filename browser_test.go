package main

import (
	"context"
	"testing"
	"time"
)

func TestBrowserStrategyGatedByHealthProbe(t *testing.T) {
	r := newResolver(config{BrowserBudget: time.Second, NavTimeout: time.Second}, false, nil)

	res := &resolution{expandedURL: "https://www.google.com/maps/place/Somewhere/"}

	start := time.Now()
	outcome := r.browserStrategy(context.Background(), res)
	if outcome.ok || outcome.err != nil {
		t.Errorf("outcome = %+v, want not-found without attempting a launch", outcome)
	}
	if took := time.Since(start); took > 100*time.Millisecond {
		t.Errorf("gated stage took %v, should return immediately", took)
	}
}
