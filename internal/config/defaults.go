package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Sites: map[string]SiteConfig{
			"no": {
				APIURL:    "https://no.wikipedia.org/w/api.php",
				PageLimit: 50,
			},
			"nn": {
				APIURL:    "https://nn.wikipedia.org/w/api.php",
				PageLimit: 50,
			},
		},
		Contest: ContestConfig{
			Namespace:        0,
			Participants:     []string{},
			FetchText:        true,
			Filters:          []FilterSpec{},
			Rules:            []RuleSpec{},
			IgnoreCategories: []string{},
		},
		Cache: CacheConfig{
			Path:       "~/.config/wikiscore",
			SQLiteFile: "wikiscore.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
