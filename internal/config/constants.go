package config

import (
	"time"

	"csvmapper/pkg/contracts"
)

// Application constants
const (
	// Application Info
	AppName    = "CSV Mapper"
	AppVersion = contracts.Version
	RepoURL    = "https://github.com/csvmapper/csvmapper"

	// EnvPrefix namespaces every environment variable, e.g. CSVMAP_SERVER_PORT
	EnvPrefix = "CSVMAP"

	// Log Settings
	DefaultLogLevel = "info"
	DefaultLogFile  = "logs/csvmap.log"

	// Upload limits
	DefaultMaxUploadBytes = 32 << 20 // 32MB
	UploadFormField       = "file"

	// Session store
	DefaultSessionTTL  = 2 * time.Hour
	DefaultMaxSessions = 256

	// Rate Limiting
	DefaultRateLimit = 50 // requests per second
	DefaultBurstSize = 100

	// Network Timeouts
	DefaultHTTPTimeout = 30 * time.Second

	// API Endpoints
	APIBasePath     = "/api"
	HealthEndpoint  = "/api/health"
	MetricsEndpoint = "/metrics"

	// Headers
	RequestIDHeader = "X-Request-ID"
)
