// watch.go wires the whole pipeline together for the watch command
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/tphakala/birdfeeder-go/internal/artifacts"
	"github.com/tphakala/birdfeeder-go/internal/camera"
	"github.com/tphakala/birdfeeder-go/internal/classifier"
	"github.com/tphakala/birdfeeder-go/internal/conf"
	"github.com/tphakala/birdfeeder-go/internal/diskmanager"
	"github.com/tphakala/birdfeeder-go/internal/logging"
	"github.com/tphakala/birdfeeder-go/internal/observability"
	"github.com/tphakala/birdfeeder-go/internal/sensor"
	"github.com/tphakala/birdfeeder-go/internal/uploader"
)

// drainTimeout bounds how long pending uploads may delay shutdown.
const drainTimeout = 10 * time.Second

// Watch builds the full capture pipeline from settings and runs it until
// SIGINT or SIGTERM. All hardware and model resources are acquired here and
// released on every exit path.
func Watch(settings *conf.Settings) error {
	if settings.Debug {
		logging.Init(slog.LevelDebug)
	} else {
		logging.Init(slog.LevelInfo)
	}
	log := logging.ForService("watch")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("error initializing metrics: %w", err)
	}
	if settings.Telemetry.Enabled {
		endpoint := observability.NewEndpoint(settings.Telemetry.Listen, metrics)
		endpoint.Start(ctx)
		log.Info("telemetry endpoint started", "listen", settings.Telemetry.Listen)
	}

	var pirSensor sensor.Sensor
	if settings.Sensor.Simulate {
		log.Warn("using simulated motion sensor")
		pirSensor = sensor.NewSimulatedSensor(settings.Sensor.SimulateInterval, settings.Sensor.SimulateHold)
	} else {
		pirSensor, err = sensor.NewGPIOSensor(settings.Sensor.Pin)
		if err != nil {
			return fmt.Errorf("error initializing GPIO sensor on pin %d: %w", settings.Sensor.Pin, err)
		}
	}
	defer pirSensor.Close()
	monitor := sensor.NewMonitor(pirSensor, settings.Sensor)

	var cam camera.Camera
	if settings.Camera.Simulate {
		log.Warn("using simulated camera")
		cam = camera.NewSimulatedCamera(settings.Camera.Width, settings.Camera.Height)
	} else {
		cam, err = camera.NewRpicamCamera(settings.Camera)
		if err != nil {
			return fmt.Errorf("error initializing camera: %w", err)
		}
	}
	defer cam.Close()

	cls, err := classifier.New(settings.Classifier)
	if err != nil {
		return fmt.Errorf("error initializing classifier: %w", err)
	}
	defer cls.Close()
	gate := classifier.NewGate(acceptedLabels(settings), settings.Classifier.Threshold)

	var artifactUploader artifacts.Uploader
	if settings.Upload.Enabled {
		store, err := uploader.NewS3Store(ctx, settings.Upload)
		if err != nil {
			return fmt.Errorf("error initializing S3 upload: %w", err)
		}
		up := uploader.New(store, settings.Upload, metrics)
		up.Start(ctx)
		defer up.Drain(drainTimeout)
		artifactUploader = up
		log.Info("artifact upload enabled", "bucket", settings.Upload.Bucket)
	}

	store, err := artifacts.NewManager(settings.Export.Path, artifactUploader)
	if err != nil {
		return fmt.Errorf("error initializing artifact storage: %w", err)
	}

	if settings.Export.Retention.Policy != "none" {
		dm := diskmanager.NewManager(settings.Export.Path, settings.Export.Retention, metrics)
		quit := make(chan struct{})
		defer close(quit)
		go dm.Run(quit)
		log.Info("retention cleanup enabled",
			"policy", settings.Export.Retention.Policy,
			"period", settings.Export.Retention.CheckPeriod)
	}

	log.Info("watching for motion",
		"pin", settings.Sensor.Pin,
		"datapath", settings.Export.Path,
		"threshold", settings.Classifier.Threshold)

	ctrl := New(monitor, cam, cls, gate, store, metrics, settings.Camera)

	if settings.Main.Log.Enabled {
		eventLog, closeLog, err := logging.NewFileLogger(&settings.Main.Log, settings.Main.Name, slog.LevelInfo)
		if err != nil {
			log.Warn("session event log disabled", "path", settings.Main.Log.Path, "error", err)
		} else {
			defer closeLog()
			ctrl.SetEventLogger(eventLog)
		}
	}

	return ctrl.Run(ctx)
}

// acceptedLabels returns the configured accepted label set, falling back to
// the built-in bird classes.
func acceptedLabels(settings *conf.Settings) []string {
	if len(settings.Classifier.AcceptedLabels) > 0 {
		return settings.Classifier.AcceptedLabels
	}
	return classifier.DefaultAcceptedLabels()
}
