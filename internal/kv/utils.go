package kv

import "path/filepath"

// dataSourceName builds the sqlite file path inside the config
// directory so the store survives process restarts alongside the
// config file.
func dataSourceName(configPath string, name string) string {
	if configPath != "" {
		return filepath.Join(configPath, name)
	}
	return name
}
