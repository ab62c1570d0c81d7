// Package logcfg resolves the smplog configuration for the gateway.
package logcfg

import (
	"os"

	logs "github.com/danmuck/smplog"
)

// EnvConfigPath names a smplog TOML file that takes precedence over everything else.
const EnvConfigPath = "SMPLOG_CONFIG"

// Load returns file-backed logging configuration when available, otherwise defaults.
// configured is the path from the gateway config and may be empty.
func Load(configured string) logs.Config {
	candidates := []string{
		os.Getenv(EnvConfigPath),
		configured,
		"./smplog.config.toml",
	}

	for _, path := range candidates {
		if path == "" {
			continue
		}
		if cfg, err := logs.ConfigFromFile(path); err == nil {
			return cfg
		}
	}

	return logs.DefaultConfig()
}
