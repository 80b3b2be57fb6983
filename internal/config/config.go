package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration values.
type Config struct {
	HTTPPort      string
	DatabaseDSN   string
	SessionCookie string
	DisplayTZ     string
	StaticDir     string
}

// Load reads configuration from environment variables with reasonable defaults.
func Load() Config {
	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = "file:posdesk.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	cookie := os.Getenv("SESSION_COOKIE")
	if cookie == "" {
		cookie = "posdesk_session"
	}

	tz := os.Getenv("DISPLAY_TZ")
	if tz == "" {
		tz = "Local"
	}

	static := os.Getenv("STATIC_DIR")
	if static == "" {
		static = "public"
	}

	// Validate that port is numeric.
	if _, err := strconv.Atoi(port); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 8080", port)
		port = "8080"
	}

	return Config{
		HTTPPort:      port,
		DatabaseDSN:   dsn,
		SessionCookie: cookie,
		DisplayTZ:     tz,
		StaticDir:     static,
	}
}

// Location resolves DisplayTZ, falling back to the system zone when the
// name does not load. Report timestamps are rendered in this zone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTZ)
	if err != nil {
		log.Printf("invalid DISPLAY_TZ value %q, using local zone", c.DisplayTZ)
		return time.Local
	}
	return loc
}
