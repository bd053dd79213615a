package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const nominatimURL = "https://nominatim.openstreetmap.org/search"

type config struct {
	TelegramToken string
	Headless      bool

	FetchTimeout  time.Duration
	QuickTimeout  time.Duration
	NavTimeout    time.Duration
	BrowserBudget time.Duration

	GeocoderBaseURL   string
	GeocoderUserAgent string
	GeocoderEmail     string
	GeocoderDelay     time.Duration

	DBHost string
	DBUser string
	DBPass string
	DBName string
}

func loadConfig() (config, error) {
	headless, err := parseHeadless(os.Getenv("HEADLESS"))
	if err != nil {
		return config{}, err
	}

	geocoderUA := strings.TrimSpace(os.Getenv("GEOCODER_USER_AGENT"))
	if geocoderUA == "" {
		geocoderUA = "wazebot/1.0"
	}

	cfg := config{
		TelegramToken: strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		Headless:      headless,

		FetchTimeout:  parseDurationEnv("FETCH_TIMEOUT_MS", 10000),
		QuickTimeout:  parseDurationEnv("QUICK_TIMEOUT_MS", 3000),
		NavTimeout:    parseDurationEnv("NAV_TIMEOUT_MS", 4000),
		BrowserBudget: parseDurationEnv("BROWSER_BUDGET_MS", 10000),

		GeocoderBaseURL:   valueOrDefault(os.Getenv("GEOCODER_BASE_URL"), nominatimURL),
		GeocoderUserAgent: geocoderUA,
		GeocoderEmail:     strings.TrimSpace(os.Getenv("GEOCODER_EMAIL")),
		GeocoderDelay:     parseDurationEnv("GEOCODER_DELAY_MS", 1000),

		DBHost: valueOrDefault(os.Getenv("DB_HOST"), "127.0.0.1:3306"),
		DBUser: valueOrDefault(os.Getenv("DB_USER"), "wazebot"),
		DBPass: os.Getenv("DB_PASSWORD"),
		DBName: strings.TrimSpace(os.Getenv("DB_NAME")),
	}

	if cfg.TelegramToken == "" {
		return config{}, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

func (c config) dsn() string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&charset=utf8mb4&loc=Local",
		c.DBUser, c.DBPass, c.DBHost, c.DBName,
	)
}

func parseHeadless(value string) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid HEADLESS value: %w", err)
	}
	return b, nil
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func parseDurationEnv(key string, defaultMs int) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return time.Duration(defaultMs) * time.Millisecond
	}
	ms, err := strconv.Atoi(value)
	if err != nil || ms < 0 {
		return time.Duration(defaultMs) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}
