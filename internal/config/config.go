// Package config loads runtime configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains runtime configuration required by the service.
type Config struct {
	DBURL    string
	HTTPAddr string

	// Feed connection. FeedURL, when set, bypasses page discovery.
	AppPageURL string
	FeedURL    string
	FeedOrigin string
	FeedCookie string
	Rooms      []string

	ReconnectDelay time.Duration
	QueueSize      int

	TypingTTL     time.Duration
	SweepInterval time.Duration

	// Production suppresses error details in API responses.
	Production bool
}

// defaultRooms covers the public channels of the chat service.
func defaultRooms() []string {
	rooms := make([]string, 0, 29)
	for n := 32; n <= 60; n++ {
		rooms = append(rooms, fmt.Sprintf("channel%d", n))
	}
	return rooms
}

// Load reads required values from environment variables, with local-dev
// fallbacks for everything except DB_URL.
func Load() (Config, error) {
	dbURL := strings.TrimSpace(os.Getenv("DB_URL"))
	if dbURL == "" {
		return Config{}, errors.New("DB_URL required")
	}

	cfg := Config{
		DBURL:          dbURL,
		HTTPAddr:       getString("HTTP_ADDR", ":4120"),
		AppPageURL:     getString("APP_PAGE_URL", "https://emeraldchat.com/app"),
		FeedURL:        getString("FEED_URL", ""),
		FeedOrigin:     getString("FEED_ORIGIN", "https://emeraldchat.com"),
		FeedCookie:     getString("FEED_COOKIE", ""),
		Rooms:          parseRooms(getString("FEED_ROOMS", "")),
		ReconnectDelay: getDuration("RECONNECT_DELAY_SECONDS", 5*time.Second),
		QueueSize:      getInt("QUEUE_SIZE", 1024),
		TypingTTL:      getDuration("TYPING_TTL_SECONDS", time.Hour),
		SweepInterval:  getDuration("SWEEP_INTERVAL_SECONDS", 5*time.Minute),
		Production:     getString("APP_ENV", "") == "production",
	}
	return cfg, nil
}

func parseRooms(csv string) []string {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return defaultRooms()
	}
	var rooms []string
	for _, r := range strings.Split(csv, ",") {
		r = strings.TrimSpace(r)
		if r != "" {
			rooms = append(rooms, r)
		}
	}
	if len(rooms) == 0 {
		return defaultRooms()
	}
	return rooms
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return def
}
