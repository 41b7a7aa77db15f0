// Package key defines the canonical set of configuration identifiers used for centralized settings management.
package key

// Playback Settings - these keys form the read-only settings store consumed by the playback controller.
const (
	PlayerPerformanceProfile = "player.performance_profile"
	PlayerLowLatency         = "player.low_latency"
	PlayerDataSaver          = "player.data_saver"
	PlayerAdaptiveBuffer     = "player.adaptive_buffer"
	PlayerNeuralHUD          = "player.neural_hud"
	PlayerAutoplay           = "player.autoplay"
	PlayerVolume             = "player.volume"
	PlayerTelemetryInterval  = "player.telemetry_interval"
)

// Engine Backends - these keys locate and tune the external programs used by the engines.
const (
	MPVPath      = "engine.mpv_path"
	EmbedBrowser = "engine.embed_browser"
)

// Network - these keys configure the shared HTTP stack used by the native engine.
const (
	NetworkTLSFingerprint = "network.tls_fingerprint"
	NetworkUserAgent      = "network.user_agent"
)

// Channel Directory - the list of configured channels.
const (
	Channels = "channels"
)

// History Tracking - these keys configure the list of recently played sources.
const (
	HistorySave    = "history.save"
	HistoryLimit   = "history.limit"
	HistorySuggest = "history.suggest"
)

// Iconography - these keys manage the visual rendering of UI symbols.
const (
	IconsVariant = "icons.variant"
)

// Logging Infrastructure - these keys manage the application's internal diagnostics.
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

// CLI Execution Environment - these flags and settings govern the non-TUI application behavior.
const (
	CliColored      = "cli.colored"
	CliVersionCheck = "cli.version_check"
)
