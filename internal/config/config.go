// Package config loads the runtime feature toggles from the environment.
package config

// Config holds the environment-driven toggles consulted at engine startup.
type Config struct {
	// ForceCPU bypasses every hardware accelerator (STEMMER_FORCE_CPU).
	ForceCPU bool
	// EnableCoreML opts into the CoreML execution provider (ENABLE_COREML).
	EnableCoreML bool
	// EnableDirectML opts into the DirectML execution provider (ENABLE_DIRECTML).
	EnableDirectML bool
	// Debug enables diagnostic logs to stderr (DEBUG_STEMS).
	Debug bool
}
