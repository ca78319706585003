// validate.go settings validation
package conf

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError collects all validation failures so the operator sees
// every problem at once instead of one per restart.
type ValidationError struct {
	Errors []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings checks the loaded settings for consistency.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateSensorSettings(&settings.Sensor); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateCameraSettings(&settings.Camera); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateClassifierSettings(&settings.Classifier); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateExportSettings(&settings.Export); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateUploadSettings(&settings.Upload); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return &ve
	}
	return nil
}

func validateSensorSettings(sensor *SensorSettings) error {
	if sensor.Pin < 0 {
		return fmt.Errorf("sensor pin must not be negative: %d", sensor.Pin)
	}
	if sensor.PollInterval <= 0 {
		return fmt.Errorf("sensor poll interval must be positive: %v", sensor.PollInterval)
	}
	if sensor.Debounce <= 0 {
		return fmt.Errorf("sensor debounce window must be positive: %v", sensor.Debounce)
	}
	if sensor.Refractory < 0 {
		return fmt.Errorf("sensor refractory period must not be negative: %v", sensor.Refractory)
	}
	if sensor.MaxReadFails < 1 {
		return fmt.Errorf("sensor maxreadfails must be at least 1: %d", sensor.MaxReadFails)
	}
	if sensor.Simulate && (sensor.SimulateInterval <= 0 || sensor.SimulateHold <= 0) {
		return fmt.Errorf("simulated sensor interval and hold must be positive: %v/%v",
			sensor.SimulateInterval, sensor.SimulateHold)
	}
	return nil
}

func validateCameraSettings(camera *CameraSettings) error {
	if camera.VideoDuration <= 0 {
		return fmt.Errorf("camera video duration must be positive: %v", camera.VideoDuration)
	}
	if camera.CaptureLimit <= 0 {
		return fmt.Errorf("camera capture limit must be positive: %v", camera.CaptureLimit)
	}
	if camera.Width <= 0 || camera.Height <= 0 {
		return fmt.Errorf("camera resolution must be positive: %dx%d", camera.Width, camera.Height)
	}
	return nil
}

func validateClassifierSettings(classifier *ClassifierSettings) error {
	if classifier.Threshold < 0 || classifier.Threshold > 1 {
		return fmt.Errorf("classifier threshold must be between 0 and 1: %v", classifier.Threshold)
	}
	return nil
}

func validateExportSettings(export *ExportSettings) error {
	switch export.Retention.Policy {
	case "none", "age", "usage":
	default:
		return fmt.Errorf("retention policy must be none, age or usage: %q", export.Retention.Policy)
	}
	if export.Retention.Policy == "age" {
		if _, err := ParseRetentionPeriod(export.Retention.MaxAge); err != nil {
			return err
		}
	}
	if export.Retention.Policy == "usage" {
		if _, err := ParsePercentage(export.Retention.MaxUsage); err != nil {
			return err
		}
	}
	return nil
}

func validateUploadSettings(upload *UploadSettings) error {
	if !upload.Enabled {
		return nil
	}
	if upload.Bucket == "" {
		return fmt.Errorf("upload is enabled but no bucket is configured")
	}
	if upload.QueueSize < 1 {
		return fmt.Errorf("upload queue size must be at least 1: %d", upload.QueueSize)
	}
	return nil
}

// ParseRetentionPeriod converts a retention period string to hours. Accepts a
// plain number of hours or a number with a h, d, w, m or y suffix.
func ParseRetentionPeriod(retention string) (int, error) {
	if retention == "" {
		return 0, fmt.Errorf("retention period cannot be empty")
	}

	lastChar := retention[len(retention)-1]
	numberPart := retention[:len(retention)-1]

	// Plain integer means hours
	if lastChar >= '0' && lastChar <= '9' {
		hours, err := strconv.Atoi(retention)
		if err != nil {
			return 0, fmt.Errorf("invalid retention period format: %s", retention)
		}
		return hours, nil
	}

	number, err := strconv.Atoi(numberPart)
	if err != nil {
		return 0, fmt.Errorf("invalid retention period format: %s", retention)
	}

	switch lastChar {
	case 'h':
		return number, nil
	case 'd':
		return number * 24, nil
	case 'w':
		return number * 24 * 7, nil
	case 'm':
		return number * 24 * 30, nil // Approximation, as months can vary in length
	case 'y':
		return number * 24 * 365, nil // Ignoring leap years for simplicity
	default:
		return 0, fmt.Errorf("invalid suffix for retention period: %c", lastChar)
	}
}

// ParsePercentage converts a percentage string like "80%" to a float64.
func ParsePercentage(percentage string) (float64, error) {
	if !strings.HasSuffix(percentage, "%") {
		return 0, fmt.Errorf("invalid percentage format: %s", percentage)
	}
	value, err := strconv.ParseFloat(strings.TrimSuffix(percentage, "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid percentage format: %s", percentage)
	}
	if value < 0 || value > 100 {
		return 0, fmt.Errorf("percentage out of range: %s", percentage)
	}
	return value, nil
}
