package engine

// UnknownCodec is reported when a backend cannot name its codec.
const UnknownCodec = "unknown"

// Sample is one telemetry reading.
type Sample struct {
	BitrateKbps    int     `json:"bitrate_kbps"`
	BufferSeconds  float64 `json:"buffer_seconds"`
	LatencySeconds float64 `json:"latency_seconds"`
	FPS            int     `json:"fps"`
	Codec          string  `json:"codec"`
}

// Placeholder is the sample of a backend that exposes no telemetry.
func Placeholder() Sample {
	return Sample{Codec: UnknownCodec}
}
