package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable prefix for all dnssentry settings
const envPrefix = "DNSSENTRY_"

// HTTPClientConfig contains configurable HTTP client settings
type HTTPClientConfig struct {
	// Forensic report response size limit (bytes)
	MaxResponseSize int64

	// HTTP client connection pool settings
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	// HTTP client timeouts
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	KeepAlive      time.Duration
}

// PipelineConfig contains configurable streaming pipeline settings
type PipelineConfig struct {
	// Channel buffer sizes
	InputChannelBuffer  int
	ResultChannelBuffer int

	// CLI defaults (overridable via CLI)
	DefaultWorkers    int
	DefaultRateLimit  int
	DefaultWindowSize int

	// Log every Tunneling record at info level
	LogDetections bool
}

// EnrichConfig contains geolocation enrichment settings
type EnrichConfig struct {
	GeoIPDatabase string
	Concurrency   int
	LookupTimeout time.Duration
}

// ParserConfig contains input parsing limits
type ParserConfig struct {
	MaxLineLength int
}

// DefaultHTTPClientConfig returns default HTTP client configuration
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		MaxResponseSize:     getEnvInt64("MAX_REPORT_RESPONSE_SIZE", 1024*1024),      // 1MB
		MaxIdleConns:        getEnvInt("HTTP_MAX_IDLE_CONNS", 10),                     // 10 connections
		MaxIdleConnsPerHost: getEnvInt("HTTP_MAX_IDLE_CONNS_PER_HOST", 2),             // 2 per host
		IdleConnTimeout:     getEnvDuration("HTTP_IDLE_CONN_TIMEOUT", 90*time.Second), // 90s
		DialTimeout:         getEnvDuration("HTTP_DIAL_TIMEOUT", 5*time.Second),       // 5s
		RequestTimeout:      getEnvDuration("HTTP_REQUEST_TIMEOUT", 60*time.Second),   // report generation is slow
		KeepAlive:           getEnvDuration("HTTP_KEEPALIVE", 30*time.Second),         // 30s
	}
}

// DefaultPipelineConfig returns default pipeline configuration
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		InputChannelBuffer:  getEnvInt("PIPELINE_INPUT_BUFFER", 1000),  // 1000 field maps
		ResultChannelBuffer: getEnvInt("PIPELINE_RESULT_BUFFER", 1000), // 1000 records
		DefaultWorkers:      getEnvInt("DEFAULT_WORKERS", 0),           // auto
		DefaultRateLimit:    getEnvInt("DEFAULT_RATE_LIMIT", 0),        // unlimited
		DefaultWindowSize:   getEnvInt("DEFAULT_WINDOW_SIZE", 500),     // last 500 records
		LogDetections:       getEnvBool("LOG_DETECTIONS", true),
	}
}

// DefaultEnrichConfig returns default enrichment configuration
func DefaultEnrichConfig() EnrichConfig {
	return EnrichConfig{
		GeoIPDatabase: getEnvString("GEOIP_DATABASE", ""),                     // disabled
		Concurrency:   getEnvInt("ENRICH_CONCURRENCY", 8),                     // 8 lookups in flight
		LookupTimeout: getEnvDuration("ENRICH_LOOKUP_TIMEOUT", 2*time.Second), // 2s
	}
}

// DefaultParserConfig returns default parser configuration
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		MaxLineLength: getEnvInt("PARSER_MAX_LINE", 1024*1024), // 1MB
	}
}

// lookupEnv parses DNSSENTRY_<key> with parse. Unset, empty or unparseable
// values yield defaultValue.
func lookupEnv[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	val, ok := os.LookupEnv(envPrefix + key)
	if !ok || val == "" {
		return defaultValue
	}
	v, err := parse(val)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvInt(key string, defaultValue int) int {
	return lookupEnv(key, defaultValue, strconv.Atoi)
}

func getEnvInt64(key string, defaultValue int64) int64 {
	return lookupEnv(key, defaultValue, func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
}

// getEnvDuration accepts values like "5s", "10m", "1h"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return lookupEnv(key, defaultValue, time.ParseDuration)
}

// getEnvBool accepts true/false, 1/0, yes/no, on/off (case-insensitive)
func getEnvBool(key string, defaultValue bool) bool {
	return lookupEnv(key, defaultValue, parseBool)
}

func getEnvString(key string, defaultValue string) string {
	return lookupEnv(key, defaultValue, func(s string) (string, error) { return s, nil })
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// Global configuration instances (initialized once at startup)
var (
	HTTP     = DefaultHTTPClientConfig()
	Pipeline = DefaultPipelineConfig()
	Enrich   = DefaultEnrichConfig()
	Parser   = DefaultParserConfig()
)

// Init initializes all configuration from environment variables
// Call this at application startup
func Init() {
	HTTP = DefaultHTTPClientConfig()
	Pipeline = DefaultPipelineConfig()
	Enrich = DefaultEnrichConfig()
	Parser = DefaultParserConfig()
}
