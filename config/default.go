package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"text/template"

	"github.com/samber/lo"
	"github.com/spf13/viper"
	"github.com/subloop-cli/subloop/constant"
	"github.com/subloop-cli/subloop/key"
	"github.com/subloop-cli/subloop/style"
)

// Field represents a configuration field definition.
type Field struct {
	Key         string
	Value       any
	Description string
}

// Pretty returns a colored string representation of the field for display.
func (f *Field) Pretty() string {
	var b strings.Builder
	lo.Must0(prettyTemplate.Execute(&b, f))
	return b.String()
}

// Env returns the environment variable name for this field.
func (f *Field) Env() string {
	env := strings.ToUpper(EnvKeyReplacer.Replace(f.Key))
	prefix := strings.ToUpper(constant.Subloop + "_")
	if strings.HasPrefix(env, prefix) {
		return env
	}
	return prefix + env
}

// MarshalJSON customizes JSON output to include current and default values.
func (f *Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Key         string `json:"key"`
		Value       any    `json:"value"`
		Default     any    `json:"default"`
		Description string `json:"description"`
		Type        string `json:"type"`
	}{
		Key:         f.Key,
		Value:       viper.Get(f.Key),
		Default:     f.Value,
		Description: f.Description,
		Type:        f.typeName(),
	})
}

// typeName returns the string representation of the field's underlying value type.
func (f *Field) typeName() string {
	switch f.Value.(type) {
	case string:
		return "string"
	case int:
		return "int"
	case float64:
		return "float"
	case bool:
		return "bool"
	case []string:
		return "[]string"
	default:
		return "unknown"
	}
}

// Default holds the map of all configuration fields.
var Default = make(map[string]Field)

// EnvExposed holds keys that are bound to environment variables.
var EnvExposed []string

func init() {
	// register validates and adds a new configuration field to the global registry.
	register := func(k string, v any, desc string) {
		if _, exists := Default[k]; exists {
			panic("Duplicate config key: " + k)
		}
		f := Field{Key: k, Value: v, Description: desc}
		Default[k] = f
		EnvExposed = append(EnvExposed, k)
	}

	register(key.ProxyCacheTTL, 100, "How long a property read is served from cache, in milliseconds")
	register(key.ProxyOperationTimeout, 5000, "Deadline for a single player operation, in milliseconds")
	register(key.ProxyGracefulDegradation, true, "Serve fallback values when the player is unavailable instead of failing")

	register(key.TrackerPollInterval, 250, "Player state sampling interval, in milliseconds")
	register(key.TrackerThrottleInterval, 100, "Minimum spacing between time updates delivered to listeners, in milliseconds")
	register(key.TrackerTimeThreshold, 0.1, "Minimum playback position delta (seconds) counted as a change")
	register(key.TrackerVolumeThreshold, 0.01, "Minimum volume delta counted as a change")
	register(key.TrackerTrackTime, true, "Report playback position changes")
	register(key.TrackerTrackVolume, true, "Report volume changes")
	register(key.TrackerTrackDimensions, false, "Report video dimension changes")
	register(key.TrackerHistorySize, 50, "Number of state samples kept in history")

	register(key.SyncUpdateInterval, 100, "Subtitle synchronization tick, in milliseconds")
	register(key.SyncMinTimeDelta, 0.02, "Ticks are skipped when playback moved less than this many seconds")
	register(key.SyncGlobalOffset, 0.0, "Seconds added to the playback position before matching cues.\nPositive values show subtitles earlier")
	register(key.SyncLookAhead, 0.0, "Seconds a cue stays in range after it ends")
	register(key.SyncLookBehind, 0.0, "Seconds a cue comes into range before it starts")
	register(key.SyncMaxConcurrentCues, 3, "Maximum number of cues shown at once")
	register(key.SyncSmoothing, false, "Dampen learned timing adjustments to 80%")
	register(key.SyncAdjustmentHistory, 20, "Number of timing adjustments remembered")

	register(key.LoopMonitorInterval, 33, "Segment loop monitor tick, in milliseconds")
	register(key.LoopSeekBackOffset, 0.1, "Seconds before the loop start to seek back to")
	register(key.LoopDelay, 0, "Pause between reaching the loop end and seeking back, in milliseconds")
	register(key.LoopFade, false, "Fade the volume in after each loop seek")
	register(key.LoopFadeDuration, 200, "Duration of the fade-in, in milliseconds")
	register(key.LoopMaxConsecutive, 100, "Safety cap on consecutive iterations before the loop disables itself")
	register(key.LoopAllowUserSeekOutside, true, "Allow seeking outside an active loop.\nWhen false, the player is pulled back into the loop")
	register(key.LoopResumeAfterSeekOutside, true, "Keep the loop armed after seeking outside it.\nWhen false, the loop is disabled")

	register(key.NavigationPollInterval, 1000, "Interval for checking the loaded media, in milliseconds")
	register(key.NavigationDebounce, 300, "Quiet period before a media change is reported, in milliseconds")
	register(key.NavigationPreserveTTL, 5000, "Lifetime of preserved playback state across a media change, in milliseconds")
	register(key.NavigationHistorySize, 20, "Number of media changes remembered")
	register(key.NavigationPreserveState, true, "Carry position, rate, volume and loop across media changes")

	register(key.RecoveryMaxUniqueErrors, 50, "Maximum number of distinct errors kept for diagnostics")
	register(key.RecoveryAggregationWindow, 300000, "Window in which errors are aggregated and counted by the circuit breaker, in milliseconds")
	register(key.RecoveryBreakerThreshold, 5, "High-severity failures that open the circuit breaker")
	register(key.RecoveryBreakerTimeout, 30000, "Time the circuit breaker stays open before trying again, in milliseconds")
	register(key.RecoveryRetryBase, 1000, "Initial retry delay, in milliseconds")
	register(key.RecoveryRetryFactor, 2.0, "Multiplier applied to the retry delay after each attempt")
	register(key.RecoveryMaxRetries, 3, "Maximum retries for a retryable operation")

	register(key.PlayerBinary, "mpv", "Path or name of the mpv executable")
	register(key.PlayerOSD, true, "Render active subtitles on the player's on-screen display")
	register(key.PlayerResume, true, "Resume from the last saved position and loop")
	register(key.SubtitleLang, "", "Preferred primary subtitle language.\nWill prompt if several tracks match")
	register(key.SubtitleLang2, "", "Preferred secondary subtitle language")

	register(key.IconsVariant, "plain", "Icons variant.\nAvailable options are: emoji, kaomoji, plain, squares, nerd (nerd-font required)")
	register(key.LogsWrite, false, "Write logs")
	register(key.LogsLevel, "info", "Available options are: (from less to most verbose)\npanic, fatal, error, warn, info, debug, trace")
	register(key.LogsJson, false, "Use json format for logs")
	register(key.CliColored, true, "Enable colored CLI output")
}

var prettyTemplate = lo.Must(template.New("pretty").Funcs(template.FuncMap{
	"faint":    style.Faint,
	"bold":     style.Bold,
	"purple":   style.Fg(style.Mauve),
	"blue":     style.Fg(style.Blue),
	"cyan":     style.Fg(style.Sky),
	"value":    func(k string) any { return viper.Get(k) },
	"typename": func(v any) string { return reflect.TypeOf(v).String() },
	"hl": func(v any) string {
		switch value := v.(type) {
		case bool:
			b := strconv.FormatBool(value)
			if value {
				return style.Fg(style.Green)(b)
			}
			return style.Fg(style.Red)(b)
		case string:
			return style.Fg(style.Yellow)(value)
		default:
			return fmt.Sprint(value)
		}
	},
}).Parse(`{{ faint .Description }}
{{ blue "Key:" }}     {{ purple .Key }}
{{ blue "Env:" }}     {{ .Env }}
{{ blue "Value:" }}   {{ hl (value .Key) }}
{{ blue "Default:" }} {{ hl (.Value) }}
{{ blue "Type:" }}    {{ typename .Value }}`))
