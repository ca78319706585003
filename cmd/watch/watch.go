package watch

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/birdfeeder-go/internal/conf"
	"github.com/tphakala/birdfeeder-go/internal/pipeline"
)

// Command creates the watch command, the main operating mode of the device.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch for motion and capture birds",
		Long:  "Monitor the PIR sensor and run the capture pipeline on motion: still image, video recording and bird classification.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return pipeline.Watch(settings)
		},
	}

	// Set up flags specific to the 'watch' command
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the watch command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Export.Path, "datapath", viper.GetString("export.path"), "Path to save captured images and videos")
	cmd.Flags().IntVar(&settings.Sensor.Pin, "pin", viper.GetInt("sensor.pin"), "GPIO pin number of the PIR sensor data line")
	cmd.Flags().DurationVar(&settings.Camera.VideoDuration, "videoduration", viper.GetDuration("camera.videoduration"), "Maximum duration of a motion triggered recording")
	cmd.Flags().BoolVar(&settings.Sensor.Simulate, "simulate-sensor", viper.GetBool("sensor.simulate"), "Use a simulated motion sensor instead of GPIO hardware")
	cmd.Flags().BoolVar(&settings.Camera.Simulate, "simulate-camera", viper.GetBool("camera.simulate"), "Use a simulated camera instead of the capture commands")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Telemetry.Listen, "listen", viper.GetString("telemetry.listen"), "Listen address and port of telemetry endpoint")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
