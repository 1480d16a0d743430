package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const IdleSweepInterval = 5 * time.Minute

// Default rate limiting
const DefaultRateLimitPerMin = 120

// MessagingWindow is the rolling period after a customer-initiated message
// during which free-form replies are permitted without a template.
const MessagingWindow = 24 * time.Hour

// WebhookProcessTimeout bounds the asynchronous processing of one delivery.
const WebhookProcessTimeout = 30 * time.Second

// DebugRingSize is the number of recent raw webhook payloads kept in memory.
const DebugRingSize = 50
