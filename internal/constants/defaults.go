package constants

import "time"

// Retry defaults per operation category. Message delivery retries more times
// with shorter delays than one-shot side effects.
const (
	SendMaxAttempts      = 5
	SendBaseDelay        = 500 * time.Millisecond
	SendMaxDelay         = 30 * time.Second
	SendBackoffMult      = 2.0
	SendBreakerThreshold = 5
	SendBreakerCooldown  = 30 * time.Second

	ReactionMaxAttempts      = 3
	ReactionBaseDelay        = time.Second
	ReactionMaxDelay         = 10 * time.Second
	ReactionBackoffMult      = 2.0
	ReactionBreakerThreshold = 3
	ReactionBreakerCooldown  = 20 * time.Second

	EditMaxAttempts      = 3
	EditBaseDelay        = time.Second
	EditMaxDelay         = 15 * time.Second
	EditBackoffMult      = 2.0
	EditBreakerThreshold = 3
	EditBreakerCooldown  = 20 * time.Second

	HistoryMaxAttempts      = 4
	HistoryBaseDelay        = time.Second
	HistoryMaxDelay         = 20 * time.Second
	HistoryBackoffMult      = 2.0
	HistoryBreakerThreshold = 4
	HistoryBreakerCooldown  = 30 * time.Second

	DefaultJitterPct = 0.25
)

// Queue defaults
const (
	DefaultMaxDisplayMessages = 500
	DefaultSentRetention      = 5 * time.Second
	DefaultSendTimeout        = 30 * time.Second
	DefaultOperationTimeout   = 15 * time.Second
	DefaultHistoryTimeout     = 30 * time.Second
	DefaultRejoinDelay        = 5 * time.Second
)

// Connectivity defaults
const (
	DefaultConnectivityCheckInterval = 10 * time.Second
	DefaultConnectivityProbeTimeout  = 5 * time.Second
)

// Server defaults
const (
	DefaultServerPort            = 8082
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
)

// Network-quality delay scaling bounds
const (
	DelayScaleMin          = 0.5
	DelayScaleMax          = 3.0
	LatencyWindowSize      = 20
	SlowNetworkThreshold   = 2 * time.Second
	FastNetworkThreshold   = 200 * time.Millisecond
	DefaultLatencyEstimate = 500 * time.Millisecond
)
