// Package profile maps the user-facing performance profiles onto buffering and ABR parameters.
package profile

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/streamctl/streamctl/key"
)

// Profile is a named performance preset.
type Profile string

const (
	LowLatency  Profile = "lowLatency"
	Balanced    Profile = "balanced"
	HighQuality Profile = "highQuality"
)

// Profiles returns every known profile.
func Profiles() []Profile {
	return []Profile{LowLatency, Balanced, HighQuality}
}

// Parse accepts profile names case-insensitively, with or without separators.
func Parse(s string) (Profile, error) {
	norm := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(s))
	for _, p := range Profiles() {
		if strings.ToLower(string(p)) == norm {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown performance profile %q", s)
}

// Retry parameters shared by every profile.
const (
	MaxRetryAttempts   = 15
	RetryBaseDelay     = 1000 * time.Millisecond
	RetryBackoffFactor = 1.5
)

// DataSaverMaxHeight caps adaptive selection when the data saver is on.
const DataSaverMaxHeight = 480

// BufferConfig is the engine-facing result of resolving a profile.
type BufferConfig struct {
	Profile Profile `json:"profile"`

	BufferingGoalSeconds      float64 `json:"buffering_goal_seconds"`
	RebufferingGoalSeconds    float64 `json:"rebuffering_goal_seconds"`
	StallThresholdSeconds     float64 `json:"stall_threshold_seconds"`
	StallSkipSeconds          float64 `json:"stall_skip_seconds"`
	LiveLatencyTargetSegments int     `json:"live_latency_target_segments"`

	MaxRetryAttempts   int           `json:"max_retry_attempts"`
	RetryBaseDelay     time.Duration `json:"retry_base_delay"`
	RetryBackoffFactor float64       `json:"retry_backoff_factor"`

	// DataSaver does not change the goals above; it only caps quality.
	DataSaver bool `json:"data_saver"`
	// MaxHeight caps adaptive selection; 0 means uncapped.
	MaxHeight int `json:"max_height"`
}

type goals struct {
	buffering, rebuffering float64
	latencySegments        int
}

var table = map[Profile]goals{
	LowLatency:  {buffering: 15, rebuffering: 3, latencySegments: 2},
	Balanced:    {buffering: 60, rebuffering: 10, latencySegments: 5},
	HighQuality: {buffering: 120, rebuffering: 15, latencySegments: 10},
}

// Resolve maps a profile and its toggles onto a BufferConfig. Unknown profiles resolve as Balanced.
func Resolve(p Profile, dataSaver, adaptiveBuffer bool) BufferConfig {
	g, ok := table[p]
	if !ok {
		p, g = Balanced, table[Balanced]
	}

	cfg := BufferConfig{
		Profile:                   p,
		BufferingGoalSeconds:      g.buffering,
		RebufferingGoalSeconds:    g.rebuffering,
		LiveLatencyTargetSegments: g.latencySegments,
		StallThresholdSeconds:     5,
		StallSkipSeconds:          0,
		MaxRetryAttempts:          MaxRetryAttempts,
		RetryBaseDelay:            RetryBaseDelay,
		RetryBackoffFactor:        RetryBackoffFactor,
		DataSaver:                 dataSaver,
	}

	if adaptiveBuffer {
		cfg.StallThresholdSeconds = 2
		cfg.StallSkipSeconds = 0.5
	}

	if dataSaver {
		cfg.MaxHeight = DataSaverMaxHeight
	}

	return cfg
}

// Backoff returns the delay before retry number attempt (1-based).
func (c BufferConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := math.Pow(c.RetryBackoffFactor, float64(attempt-1))
	return time.Duration(float64(c.RetryBaseDelay) * factor)
}

// Settings is the read-only view of the settings store the controller consumes.
type Settings struct {
	Profile        Profile
	LowLatency     bool
	DataSaver      bool
	AdaptiveBuffer bool
	NeuralHUD      bool
}

// Effective returns the profile after applying the legacy low latency toggle.
func (s Settings) Effective() Profile {
	if s.LowLatency {
		return LowLatency
	}
	if _, ok := table[s.Profile]; !ok {
		return Balanced
	}
	return s.Profile
}

// Resolve resolves the settings into a BufferConfig.
func (s Settings) Resolve() BufferConfig {
	return Resolve(s.Effective(), s.DataSaver, s.AdaptiveBuffer)
}

// Load reads the settings store. An unparseable profile falls back to Balanced.
func Load() Settings {
	p, err := Parse(viper.GetString(key.PlayerPerformanceProfile))
	if err != nil {
		p = Balanced
	}

	return Settings{
		Profile:        p,
		LowLatency:     viper.GetBool(key.PlayerLowLatency),
		DataSaver:      viper.GetBool(key.PlayerDataSaver),
		AdaptiveBuffer: viper.GetBool(key.PlayerAdaptiveBuffer),
		NeuralHUD:      viper.GetBool(key.PlayerNeuralHUD),
	}
}
