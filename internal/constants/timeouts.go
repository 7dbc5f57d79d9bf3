package constants

import "time"

// Shared duration vocabulary used by timeouts and polling checks.
const (
	Duration50Milliseconds  = 50 * time.Millisecond
	Duration100Milliseconds = 100 * time.Millisecond
	Duration500Milliseconds = 500 * time.Millisecond

	Duration1Second   = 1 * time.Second
	Duration3Seconds  = 3 * time.Second
	Duration5Seconds  = 5 * time.Second
	Duration10Seconds = 10 * time.Second
	Duration30Seconds = 30 * time.Second
)

// Domain-level timeout constants.
const (
	// PluginHandshakeTimeout bounds how long Start waits for the startup line.
	PluginHandshakeTimeout = Duration500Milliseconds

	PluginRequestTimeout = Duration10Seconds
	PluginDialTimeout    = Duration3Seconds

	PluginKeepaliveTime    = Duration30Seconds
	PluginKeepaliveTimeout = Duration10Seconds

	MetricsShutdownTimeout = Duration5Seconds
)
