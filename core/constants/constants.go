package constants

import "time"

const (
	DefaultTimeout = 30 * time.Second

	// Database pool settings.
	DatabaseSSLMode         = "disable"
	DatabaseMaxOpenConns    = 25
	DatabaseMaxIdleConns    = 5
	DatabaseConnMaxLifetime = 30 // minutes

	// Redis key prefixes.
	RedisKeyUpsertResult = "calendar:upsert:done:"
	RedisKeyOAuthState   = "calendar:oauth:state:"

	// Calendar defaults mirroring the web client.
	DefaultCalendarID = "primary"
	DefaultTimeZone   = "Europe/Stockholm"
	DefaultListDays   = 180
	MaxListResults    = 2500

	// Idempotency windows. Request-token matches are searched wide because a
	// retried client may resubmit long after the first attempt; minute-key
	// matches only need to cover clock skew around the slot itself.
	TokenMatchWindow  = 12 * time.Hour
	MinuteMatchWindow = time.Minute

	// Completed upsert results are kept just long enough to absorb a
	// double-submit burst; cross-restart idempotency relies on the persisted
	// request records, not this cache.
	UpsertResultTTL = 3 * time.Second
	OAuthStateTTL   = 10 * time.Minute

	// Instance lookup window around a target occurrence start: wide enough to
	// tolerate all-day representations, narrow enough to avoid scanning the
	// whole series.
	InstanceWindowBefore = 5 * time.Minute
	InstanceWindowAfter  = 24 * time.Hour

	// Fan-out and retry policy for batch mutations.
	BatchEditConcurrency   = 3
	BatchDeleteConcurrency = 2
	RetryBaseDelay         = 400 * time.Millisecond
	RetryMaxDelay          = 4 * time.Second
	RetryMaxAttempts       = 4

	// Persisted idempotency records older than this are purged by the
	// scheduled cleanup task.
	RequestRecordTTL = 30 * 24 * time.Hour
)
