// config.go: settings struct and functions to load and access the birdfeeder configuration.
package conf

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// LogConfig contains settings for a rotated log file.
type LogConfig struct {
	Enabled  bool   // true to enable this log
	Path     string // path to log file
	MaxSize  int    // maximum log file size in megabytes before rotation
	MaxAge   int    // maximum age of rotated log files in days
	MaxFiles int    // maximum number of rotated log files to keep
}

// MainSettings contains process-wide settings.
type MainSettings struct {
	Name string    // name of this node, used in logs and upload keys
	Log  LogConfig // main log file settings
}

// SensorSettings contains settings for the PIR motion sensor.
type SensorSettings struct {
	Pin          int           // GPIO pin number the sensor data line is wired to
	PollInterval time.Duration // interval between raw sensor reads
	Debounce     time.Duration // signal must stay high this long before a motion event is emitted
	Refractory   time.Duration // signal must stay low this long before a new event may be emitted
	MaxReadFails int           // consecutive read failures before the sensor is considered dead
	Simulate     bool          // use the simulated sensor instead of GPIO hardware

	SimulateInterval time.Duration // simulated sensor: approximate time between motion pulses
	SimulateHold     time.Duration // simulated sensor: how long a pulse stays high
}

// CameraSettings contains settings for still and video capture.
type CameraSettings struct {
	StillCommand  string        // still capture command, default rpicam-still
	VideoCommand  string        // video capture command, default rpicam-vid
	Width         int           // capture width in pixels
	Height        int           // capture height in pixels
	VideoDuration time.Duration // maximum duration of a motion triggered recording
	CaptureLimit  time.Duration // hard timeout for a single still capture
	Simulate      bool          // use the simulated camera instead of the capture commands
}

// ClassifierSettings contains settings for the TFLite image classifier and the
// bird/no-bird gate.
type ClassifierSettings struct {
	ModelPath      string   // path to the TFLite image classification model
	LabelPath      string   // path to the label file, one label per line
	Threshold      float64  // minimum confidence for a positive bird decision
	AcceptedLabels []string // labels treated as birds, defaults to the ImageNet bird classes
	Threads        int      // TFLite interpreter threads, 0 for automatic
	UseXNNPACK     bool     // true to use XNNPACK delegate for inference
}

// RetentionSettings contains artifact retention settings.
type RetentionSettings struct {
	Policy      string // retention policy, "none", "age" or "usage"
	MaxAge      string // maximum age of artifacts to keep, e.g. "30d"
	MaxUsage    string // maximum disk usage percentage before cleanup, e.g. "80%"
	MinSessions int    // minimum number of most recent sessions always kept
	CheckPeriod time.Duration // how often cleanup runs
}

// ExportSettings contains settings for artifact storage on local disk.
type ExportSettings struct {
	Path      string            // root data directory for images/ and videos/
	Retention RetentionSettings // retention settings
}

// UploadSettings contains settings for optional S3 artifact upload.
type UploadSettings struct {
	Enabled         bool   // true to enable S3 upload of finalized artifacts
	Bucket          string // S3 bucket name
	Region          string // AWS region
	Endpoint        string // custom endpoint for S3 compatible services
	Prefix          string // key prefix for uploaded objects
	AccessKeyID     string // static credentials, default chain is used when empty
	SecretAccessKey string
	QueueSize       int // pending upload queue length
}

// TelemetrySettings contains settings for the optional Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to expose Prometheus metrics
	Listen  string // listen address and port of the metrics endpoint
}

// Settings is the root configuration struct.
type Settings struct {
	Debug bool // true to enable debug output

	Main       MainSettings
	Sensor     SensorSettings
	Camera     CameraSettings
	Classifier ClassifierSettings
	Export     ExportSettings
	Upload     UploadSettings
	Telemetry  TelemetrySettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a new
// Settings instance and stores it as the process-wide instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	// First run without a config file, write the defaults out for editing
	if viper.ConfigFileUsed() == "" {
		createDefaultConfig(settings)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Defaults are defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file is fine, defaults and flags cover everything
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the list of directories searched for
// config.yaml, in priority order. If a config file is found in one of them
// that directory is returned as the only path.
func GetDefaultConfigPaths() ([]string, error) {
	var configPaths []string

	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("error getting executable path: %w", err)
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error getting home directory: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "birdfeeder-go"),
		}
	default:
		configPaths = []string{
			".",
			filepath.Join(homeDir, ".config", "birdfeeder-go"),
			"/etc/birdfeeder-go",
		}
	}

	for _, path := range configPaths {
		configFile := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configFile); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}

// GetSettings returns the current settings instance.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}
