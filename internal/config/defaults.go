package config

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: Version,
		Session: SessionConfig{
			Backend: "json",
		},
		Import: ImportConfig{
			DebounceMs: 500,
		},
		Preproc: PreprocConfig{
			MainsFrequency: 50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
