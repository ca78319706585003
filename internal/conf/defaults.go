// defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "BirdFeeder-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "birdfeeder.log")
	viper.SetDefault("main.log.maxsize", 100)
	viper.SetDefault("main.log.maxage", 28)
	viper.SetDefault("main.log.maxfiles", 3)

	viper.SetDefault("sensor.pin", 17)
	viper.SetDefault("sensor.pollinterval", 10*time.Millisecond)
	viper.SetDefault("sensor.debounce", 300*time.Millisecond)
	viper.SetDefault("sensor.refractory", 2*time.Second)
	viper.SetDefault("sensor.maxreadfails", 10)
	viper.SetDefault("sensor.simulate", false)
	viper.SetDefault("sensor.simulateinterval", 30*time.Second)
	viper.SetDefault("sensor.simulatehold", 2*time.Second)

	viper.SetDefault("camera.stillcommand", "rpicam-still")
	viper.SetDefault("camera.videocommand", "rpicam-vid")
	viper.SetDefault("camera.width", 1920)
	viper.SetDefault("camera.height", 1080)
	viper.SetDefault("camera.videoduration", 10*time.Second)
	viper.SetDefault("camera.capturelimit", 15*time.Second)
	viper.SetDefault("camera.simulate", false)

	viper.SetDefault("classifier.modelpath", "model/vit-imagenet-224.tflite")
	viper.SetDefault("classifier.labelpath", "model/labels.txt")
	viper.SetDefault("classifier.threshold", 0.8)
	viper.SetDefault("classifier.acceptedlabels", []string{})
	viper.SetDefault("classifier.threads", 0)
	viper.SetDefault("classifier.usexnnpack", true)

	viper.SetDefault("export.path", "data/")
	viper.SetDefault("export.retention.policy", "age")
	viper.SetDefault("export.retention.maxage", "30d")
	viper.SetDefault("export.retention.maxusage", "80%")
	viper.SetDefault("export.retention.minsessions", 10)
	viper.SetDefault("export.retention.checkperiod", 1*time.Hour)

	viper.SetDefault("upload.enabled", false)
	viper.SetDefault("upload.bucket", "")
	viper.SetDefault("upload.region", "us-east-1")
	viper.SetDefault("upload.endpoint", "")
	viper.SetDefault("upload.prefix", "birdfeeder")
	viper.SetDefault("upload.queuesize", 64)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")
}
