// Package sensor reads the PIR motion sensor and turns the raw, possibly
// noisy digital signal into debounced motion events.
package sensor

import (
	"time"

	"github.com/tphakala/birdfeeder-go/internal/errors"
)

// ErrSensorDead is returned when the sensor fails too many consecutive
// reads and must be considered unusable.
var ErrSensorDead = errors.NewStd("motion sensor unreachable")

// MotionEvent is a single debounced motion detection. It is emitted once the
// raw signal has been continuously high for the debounce window.
type MotionEvent struct {
	Time time.Time // when the debounce window was satisfied
	Pin  int       // GPIO pin the signal was observed on
}

// Sensor is a binary motion sensor. Read returns the instantaneous signal
// level, Close releases the underlying pin.
type Sensor interface {
	// Read returns true while the sensor reports motion.
	Read() (bool, error)

	// Pin returns the GPIO pin number of this sensor, -1 for simulated ones.
	Pin() int

	// Close releases the sensor resources. Safe to call more than once.
	Close() error
}
