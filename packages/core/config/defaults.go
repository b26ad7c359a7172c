package config

import (
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
)

func defaultValues() map[string]any {
	return map[string]any{
		"timeout":         "30s",
		"followRedirects": true,
		"maxRedirects":    25,
		"validateSSL":     true,
		"proxy":           "",
		"responseDir":     "",
		"historyDB":       "",
		"concurrency":     5,
		"rate":            0,
		"log.level":       "info",
		"log.pretty":      false,
	}
}

func loadDefaults(k *koanf.Koanf) error {
	return k.Load(confmap.Provider(defaultValues(), "."), nil)
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	k := koanf.New(".")
	var cfg Config
	if err := loadDefaults(k); err != nil {
		panic(err)
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		panic(err)
	}
	return &cfg
}
