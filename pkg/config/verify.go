package config

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

//go:embed schema.json
var embeddedSchema string

// VerifyAgainstEmbeddedSchema validates the config against the embedded JSON schema
func VerifyAgainstEmbeddedSchema(cfg *Config) error {
	// parse schema
	var schema map[string]any
	if err := json.Unmarshal([]byte(embeddedSchema), &schema); err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}

	// convert config to JSON for validation
	configData, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	var configMap map[string]any
	if err := json.Unmarshal(configData, &configMap); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	// every top-level section of the schema should be present in the config
	if props, ok := schema["$defs"].(map[string]any); ok {
		if root, ok := props["Config"].(map[string]any); ok {
			if sections, ok := root["properties"].(map[string]any); ok {
				for name := range sections {
					if _, found := configMap[name]; !found {
						return fmt.Errorf("section %q is missing", name)
					}
				}
			}
		}
	}

	// basic validation - check required fields match
	if err := validateRequiredFields(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// validateRequiredFields performs basic validation of required fields
func validateRequiredFields(cfg *Config) error {
	// check server config
	if cfg.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if cfg.Server.Timeout == 0 {
		return fmt.Errorf("server.timeout is required")
	}

	// check monitor config
	if cfg.Monitor.CacheFile == "" {
		return fmt.Errorf("monitor.cache_file is required")
	}
	if cfg.Monitor.DownloadDir == "" {
		return fmt.Errorf("monitor.download_dir is required")
	}
	if len(cfg.Monitor.FeedStrategies) == 0 {
		return fmt.Errorf("monitor.feed_strategies is required")
	}
	if len(cfg.Monitor.FileStrategies) == 0 {
		return fmt.Errorf("monitor.file_strategies is required")
	}

	return nil
}

// GenerateSchema generates a JSON schema for the Config struct
func GenerateSchema() (*jsonschema.Schema, error) {
	return jsonschema.Reflect(&Config{}), nil
}
