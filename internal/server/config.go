package server

import (
	"os"
	"strconv"
)

// Config holds server configuration
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	OTXAPIKey        string
	AbuseIPDBAPIKey  string
	VirusTotalAPIKey string
	URLhausAPIKey    string

	PulseLimit   int
	URLLimit     int
	PayloadLimit int
}

// LoadConfig reads environment variables and returns a Config
func LoadConfig() *Config {
	return &Config{
		HTTPAddr:    getEnv("SECINT_HTTP_ADDR", ":8080"),
		MetricsAddr: getEnv("SECINT_METRICS_ADDR", ":9090"),

		OTXAPIKey:        getEnv("SECINT_OTX_API_KEY", ""),
		AbuseIPDBAPIKey:  getEnv("SECINT_ABUSEIPDB_API_KEY", ""),
		VirusTotalAPIKey: getEnv("SECINT_VIRUSTOTAL_API_KEY", ""),
		URLhausAPIKey:    getEnv("SECINT_URLHAUS_API_KEY", ""),

		PulseLimit:   getEnvInt("SECINT_PULSE_LIMIT", 50),
		URLLimit:     getEnvInt("SECINT_URL_LIMIT", 100),
		PayloadLimit: getEnvInt("SECINT_PAYLOAD_LIMIT", 100),
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
