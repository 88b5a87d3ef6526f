package config

import "os"

// Loader loads configuration from environment variables. Tests can override
// Lookup to inject deterministic maps.
type Loader struct {
	Lookup func(string) (string, bool)
}

// Load retrieves the feature toggles. The accelerator and debug variables
// follow "set means on" semantics: any value, including empty, enables them.
func (l Loader) Load() Config {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}

	return Config{
		ForceCPU:       l.isSet("STEMMER_FORCE_CPU"),
		EnableCoreML:   l.isSet("ENABLE_COREML"),
		EnableDirectML: l.isSet("ENABLE_DIRECTML"),
		Debug:          l.isSet("DEBUG_STEMS"),
	}
}

func (l Loader) isSet(key string) bool {
	_, ok := l.Lookup(key)
	return ok
}
