// monitor.go debounce and refractory logic over raw sensor reads
package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tphakala/birdfeeder-go/internal/conf"
	"github.com/tphakala/birdfeeder-go/internal/errors"
	"github.com/tphakala/birdfeeder-go/internal/logging"
)

// Monitor polls a Sensor and emits debounced motion events. The raw signal
// must stay high for the full debounce window before an event is emitted, and
// after an event the signal must stay low for the refractory period before a
// new debounce may begin. This keeps one physical motion from producing a
// storm of events.
type Monitor struct {
	sensor     Sensor
	settings   conf.SensorSettings
	log        *slog.Logger
	suppressed bool // an event was emitted, waiting for the line to go quiet
}

// NewMonitor creates a Monitor over the given sensor.
func NewMonitor(s Sensor, settings conf.SensorSettings) *Monitor {
	return &Monitor{
		sensor:   s,
		settings: settings,
		log:      logging.ForService("sensor"),
	}
}

// WaitForMotion blocks until a debounced motion event is observed or the
// context is cancelled. Transient read errors are retried with backoff; after
// MaxReadFails consecutive failures the sensor is considered dead and an
// error wrapping ErrSensorDead is returned.
func (m *Monitor) WaitForMotion(ctx context.Context) (MotionEvent, error) {
	var highSince, lowSince time.Time
	fails := 0

	for {
		if err := ctx.Err(); err != nil {
			return MotionEvent{}, err
		}

		level, err := m.sensor.Read()
		if err != nil {
			fails++
			m.log.Warn("sensor read failed",
				"pin", m.sensor.Pin(),
				"consecutive_failures", fails,
				"error", err)
			if fails >= m.settings.MaxReadFails {
				return MotionEvent{}, errors.New(fmt.Errorf("%w: %d consecutive read failures: %w", ErrSensorDead, fails, err)).
					Component("sensor").
					Category(errors.CategorySensorIO).
					Context("pin", m.sensor.Pin()).
					Context("consecutive_failures", fails).
					Build()
			}
			// Back off progressively while the sensor misbehaves
			if err := sleepCtx(ctx, m.backoff(fails)); err != nil {
				return MotionEvent{}, err
			}
			continue
		}
		fails = 0
		now := time.Now()

		switch {
		case m.suppressed:
			// Refractory: require continuous low before re-arming
			if level {
				lowSince = time.Time{}
			} else {
				if lowSince.IsZero() {
					lowSince = now
				}
				if now.Sub(lowSince) >= m.settings.Refractory {
					m.suppressed = false
					lowSince = time.Time{}
					highSince = time.Time{}
				}
			}

		case level:
			if highSince.IsZero() {
				highSince = now
			}
			if now.Sub(highSince) >= m.settings.Debounce {
				m.suppressed = true
				m.log.Debug("motion event", "pin", m.sensor.Pin(), "held", now.Sub(highSince))
				return MotionEvent{Time: now, Pin: m.sensor.Pin()}, nil
			}

		default:
			// Bounce shorter than the debounce window, start over
			highSince = time.Time{}
		}

		if err := sleepCtx(ctx, m.settings.PollInterval); err != nil {
			return MotionEvent{}, err
		}
	}
}

// backoff returns the retry delay after n consecutive read failures.
func (m *Monitor) backoff(n int) time.Duration {
	d := m.settings.PollInterval * time.Duration(n)
	if max := 500 * time.Millisecond; d > max {
		d = max
	}
	return d
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
