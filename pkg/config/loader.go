package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads a configuration from a YAML file
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

type connectorFile struct {
	Connectors []struct {
		Name   string         `yaml:"name"`
		Type   string         `yaml:"type"`
		Active *bool          `yaml:"active"`
		Config map[string]any `yaml:"config"`
	} `yaml:"connectors"`
}

// LoadConnectors reads a YAML file with a top-level "connectors" list.
// Connectors are active unless "active: false" is given. Every entry is
// validated; the first invalid entry fails the whole file.
func LoadConnectors(filePath string) ([]ConnectorConfig, error) {
	var file connectorFile
	if err := Load(filePath, &file); err != nil {
		return nil, err
	}

	out := make([]ConnectorConfig, 0, len(file.Connectors))
	seen := make(map[string]struct{}, len(file.Connectors))
	for i, raw := range file.Connectors {
		cfg := ConnectorConfig{
			Name:   raw.Name,
			Type:   strings.ToLower(raw.Type),
			Data:   Values(raw.Config),
			Active: raw.Active == nil || *raw.Active,
		}
		if cfg.Data == nil {
			cfg.Data = Values{}
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("connector #%d (%q): %w", i+1, raw.Name, err)
		}
		if _, dup := seen[cfg.Name]; dup {
			return nil, fmt.Errorf("connector %q defined twice", cfg.Name)
		}
		seen[cfg.Name] = struct{}{}
		out = append(out, cfg)
	}
	return out, nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
