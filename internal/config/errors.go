package config

import "fmt"

// ConfigError reports an invalid cluster definition.
// Field is the YAML path of the offending value, e.g. "nodes.indexer.count".
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid config: %s", e.Message)
	}
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
}
