package constants

// Default timeout values used by client packages
const (
	DefaultHTTPTimeoutSec     = 30
	DefaultRealtimeDialSec    = 10
	DefaultHistoryPageSize    = 200
	DefaultFeedBufferSize     = 64
	DefaultFeedReadLimitBytes = 1 << 20
)

// Validation limits used by packages
const (
	MaxMessageTextLength = 4000
	MaxEmojiLength       = 16
	MaxSessionIDLength   = 64
	MaxUserIDLength      = 64
)
