package constants

// Default anti-spam settings applied when a session has no stored config
const (
	DefaultAntiSpamMaxPerMinute     = 20
	DefaultAntiSpamMessageDelayMs   = 1000
	DefaultAntiSpamRecipientWaitSec = 0
	ThrottleWindowSec               = 60
	ThrottleSlotSafetyMarginMs      = 50
)

// Schedule engine defaults
const (
	DefaultScheduleTickSec   = 1
	DefaultScheduleBatchSize = 50
)

// Registry sync defaults
const (
	DefaultSyncDebounceMs = 500
)

// Status tracker defaults
const (
	DefaultStatusTTLHours     = 72
	DefaultStatusSweepMinutes = 30
)

// Default timeout values
const (
	DefaultWebhookTimeoutSec       = 10
	DefaultSessionAPITimeoutSec    = 30
	DefaultEventStreamRetrySec     = 5
	DefaultGracefulShutdownSec     = 30
	DefaultStoreRetryAttempts      = 3
	DefaultBackoffInitialMs        = 500
	DefaultBackoffMaxMs            = 60000
	DefaultServerPort              = 8082
	DefaultServerReadTimeoutSec    = 15
	DefaultServerWriteTimeoutSec   = 15
	DefaultServerIdleTimeoutSec    = 60
	ServerErrorChannelSize         = 1
	DefaultRawCommandTimeoutSec    = 20
	DefaultSessionStatusTimeoutSec = 5
)

// Validation limits
const (
	MinPhoneNumberLength = 7
	MaxPhoneNumberLength = 20
	MaxMessageIDLength   = 128
	MaxPreviewLength     = 64
)

// Privacy settings
const (
	DefaultPhoneMaskLength = 4
	DefaultMessageIDLength = 8
)
