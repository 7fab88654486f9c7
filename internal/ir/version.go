package ir

// Version constants for the persisted formats and the engine.
const (
	// FormatVersion is the version of the tick record schema.
	FormatVersion = "1"

	// EngineVersion is the leakguard engine version.
	EngineVersion = "0.1.0"
)
