package config

import (
	"time"

	"github.com/spf13/viper"
	"github.com/subloop-cli/subloop/key"
	"github.com/subloop-cli/subloop/navigation"
	"github.com/subloop-cli/subloop/proxy"
	"github.com/subloop-cli/subloop/recovery"
	"github.com/subloop-cli/subloop/segment"
	"github.com/subloop-cli/subloop/session"
	"github.com/subloop-cli/subloop/subsync"
	"github.com/subloop-cli/subloop/tracker"
)

func millis(k string) time.Duration {
	return time.Duration(viper.GetInt64(k)) * time.Millisecond
}

// Core builds the playback core settings from the current configuration.
func Core() session.Config {
	return session.Config{
		Proxy: proxy.Config{
			CacheTTL:            millis(key.ProxyCacheTTL),
			OperationTimeout:    millis(key.ProxyOperationTimeout),
			GracefulDegradation: viper.GetBool(key.ProxyGracefulDegradation),
		},
		Tracker: tracker.Config{
			PollInterval:     millis(key.TrackerPollInterval),
			ThrottleInterval: millis(key.TrackerThrottleInterval),
			TimeThreshold:    viper.GetFloat64(key.TrackerTimeThreshold),
			VolumeThreshold:  viper.GetFloat64(key.TrackerVolumeThreshold),
			TrackTime:        viper.GetBool(key.TrackerTrackTime),
			TrackVolume:      viper.GetBool(key.TrackerTrackVolume),
			TrackDimensions:  viper.GetBool(key.TrackerTrackDimensions),
			HistorySize:      viper.GetInt(key.TrackerHistorySize),
		},
		Sync: subsync.Config{
			UpdateInterval:    millis(key.SyncUpdateInterval),
			MinTimeDelta:      viper.GetFloat64(key.SyncMinTimeDelta),
			GlobalOffset:      viper.GetFloat64(key.SyncGlobalOffset),
			LookAhead:         viper.GetFloat64(key.SyncLookAhead),
			LookBehind:        viper.GetFloat64(key.SyncLookBehind),
			MaxConcurrentCues: viper.GetInt(key.SyncMaxConcurrentCues),
			Smoothing:         viper.GetBool(key.SyncSmoothing),
			AdjustmentHistory: viper.GetInt(key.SyncAdjustmentHistory),
		},
		Loop: segment.Config{
			MonitorInterval:        millis(key.LoopMonitorInterval),
			SeekBackOffset:         viper.GetFloat64(key.LoopSeekBackOffset),
			Delay:                  millis(key.LoopDelay),
			Fade:                   viper.GetBool(key.LoopFade),
			FadeDuration:           millis(key.LoopFadeDuration),
			MaxConsecutive:         viper.GetInt(key.LoopMaxConsecutive),
			AllowUserSeekOutside:   viper.GetBool(key.LoopAllowUserSeekOutside),
			ResumeAfterSeekOutside: viper.GetBool(key.LoopResumeAfterSeekOutside),
		},
		Navigation: navigation.Config{
			PollInterval:  millis(key.NavigationPollInterval),
			Debounce:      millis(key.NavigationDebounce),
			PreserveTTL:   millis(key.NavigationPreserveTTL),
			HistorySize:   viper.GetInt(key.NavigationHistorySize),
			PreserveState: viper.GetBool(key.NavigationPreserveState),
		},
		Recovery: recovery.Config{
			MaxUniqueErrors:   viper.GetInt(key.RecoveryMaxUniqueErrors),
			AggregationWindow: millis(key.RecoveryAggregationWindow),
			BreakerThreshold:  viper.GetInt(key.RecoveryBreakerThreshold),
			BreakerTimeout:    millis(key.RecoveryBreakerTimeout),
			RetryBase:         millis(key.RecoveryRetryBase),
			RetryFactor:       viper.GetFloat64(key.RecoveryRetryFactor),
			MaxRetries:        viper.GetInt(key.RecoveryMaxRetries),
		},
		Resume: viper.GetBool(key.PlayerResume),
	}
}
