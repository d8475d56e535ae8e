// Package key defines the canonical set of configuration identifiers used for centralized settings management.
package key

// Media Element Proxy - access caching, degradation and operation deadlines.
const (
	ProxyCacheTTL            = "proxy.cache_ttl_ms"
	ProxyOperationTimeout    = "proxy.operation_timeout_ms"
	ProxyGracefulDegradation = "proxy.graceful_degradation"
)

// Player State Tracker - sampling cadence and change thresholds.
const (
	TrackerPollInterval     = "tracker.poll_interval_ms"
	TrackerThrottleInterval = "tracker.throttle_interval_ms"
	TrackerTimeThreshold    = "tracker.time_threshold"
	TrackerVolumeThreshold  = "tracker.volume_threshold"
	TrackerTrackTime        = "tracker.track_time"
	TrackerTrackVolume      = "tracker.track_volume"
	TrackerTrackDimensions  = "tracker.track_dimensions"
	TrackerHistorySize      = "tracker.history_size"
)

// Subtitle Synchronizer - tick cadence, windows and drift correction.
const (
	SyncUpdateInterval    = "sync.update_interval_ms"
	SyncMinTimeDelta      = "sync.min_time_delta"
	SyncGlobalOffset      = "sync.global_offset"
	SyncLookAhead         = "sync.look_ahead"
	SyncLookBehind        = "sync.look_behind"
	SyncMaxConcurrentCues = "sync.max_concurrent_cues"
	SyncSmoothing         = "sync.smoothing"
	SyncAdjustmentHistory = "sync.adjustment_history"
)

// Segment Loop Controller - monitoring, iteration policy and seek behavior.
const (
	LoopMonitorInterval        = "loop.monitor_interval_ms"
	LoopSeekBackOffset         = "loop.seek_back_offset"
	LoopDelay                  = "loop.delay_ms"
	LoopFade                   = "loop.fade"
	LoopFadeDuration           = "loop.fade_duration_ms"
	LoopMaxConsecutive         = "loop.max_consecutive"
	LoopAllowUserSeekOutside   = "loop.allow_user_seek_outside"
	LoopResumeAfterSeekOutside = "loop.resume_after_seek_outside"
)

// Navigation Handler - route polling, debounce and handoff lifetime.
const (
	NavigationPollInterval  = "navigation.poll_interval_ms"
	NavigationDebounce      = "navigation.debounce_ms"
	NavigationPreserveTTL   = "navigation.preserve_ttl_ms"
	NavigationHistorySize   = "navigation.history_size"
	NavigationPreserveState = "navigation.preserve_state"
)

// Error Recovery - aggregation bounds, breaker and retry policy.
const (
	RecoveryMaxUniqueErrors   = "recovery.max_unique_errors"
	RecoveryAggregationWindow = "recovery.aggregation_window_ms"
	RecoveryBreakerThreshold  = "recovery.breaker_threshold"
	RecoveryBreakerTimeout    = "recovery.breaker_timeout_ms"
	RecoveryRetryBase         = "recovery.retry_base_ms"
	RecoveryRetryFactor       = "recovery.retry_factor"
	RecoveryMaxRetries        = "recovery.max_retries"
)

// Media Playback - external player integration.
const (
	PlayerBinary  = "player.binary"
	PlayerOSD     = "player.osd"
	PlayerResume  = "player.resume"
	SubtitleLang  = "subtitles.primary_lang"
	SubtitleLang2 = "subtitles.secondary_lang"
)

// Logging Infrastructure - these keys manage the application's internal diagnostics and auditing system.
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

// CLI Execution Environment - these flags and settings govern the non-TUI application behavior.
const (
	CliColored = "cli.colored"
)

// Iconography
const (
	IconsVariant = "icons.variant"
)
