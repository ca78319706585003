// save.go writing settings back to a config file
package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveSettings writes the given settings to path as YAML. Used to create a
// default config file on first run so operators have something to edit.
func SaveSettings(settings *Settings, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	header := "# BirdFeeder-Go configuration\n# Values not present here fall back to built-in defaults.\n\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the default configuration to the preferred
// config directory. Failure is not fatal, the process runs on defaults.
func createDefaultConfig(settings *Settings) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil || len(configPaths) == 0 {
		return
	}
	path := filepath.Join(configPaths[0], "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return
	}
	if err := SaveSettings(settings, path); err != nil {
		fmt.Printf("Note: could not create default config file: %v\n", err)
		return
	}
	fmt.Printf("Created default config file at %s\n", path)
}
