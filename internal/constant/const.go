package constant

import "time"

const (
	DefaultPort          = "8080"
	DefaultLookupBaseURL = "https://api.mojang.com"

	// ProfilePathFormat is appended to the lookup base URL, keyed by username.
	ProfilePathFormat = "/users/profiles/minecraft/%s"

	DefaultLookupTimeout    = 10 * time.Second
	DefaultRetryDelay       = 500 * time.Millisecond
	DefaultMaxConcurrency   = 16
	DefaultMaxBatchSize     = 100
	DefaultShutdownTimeout  = 15 * time.Second
	DefaultUserAgent        = "premium-check/1.0"
	MaxProfileResponseBytes = 64 << 10 // 64 KiB

	HeaderRequestID = "X-Request-ID"
)
