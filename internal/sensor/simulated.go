// simulated.go sensor stand-in for development hosts without GPIO hardware
package sensor

import (
	"math/rand/v2"
	"sync"
	"time"
)

// SimulatedSensor fakes a PIR sensor for development on hosts without GPIO
// hardware. Roughly every interval it reports motion for one hold period.
type SimulatedSensor struct {
	mu        sync.Mutex
	interval  time.Duration
	hold      time.Duration
	nextStart time.Time
}

// NewSimulatedSensor returns a sensor that simulates a motion pulse about
// every interval, holding the signal high for hold.
func NewSimulatedSensor(interval, hold time.Duration) *SimulatedSensor {
	return &SimulatedSensor{
		interval:  interval,
		hold:      hold,
		nextStart: time.Now().Add(interval),
	}
}

// Read reports simulated motion.
func (s *SimulatedSensor) Read() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.Before(s.nextStart) {
		return false, nil
	}
	if now.Before(s.nextStart.Add(s.hold)) {
		return true, nil
	}
	// Pulse over, schedule the next one with some jitter
	jitter := time.Duration(rand.Int64N(int64(s.interval / 2)))
	s.nextStart = now.Add(s.interval/2 + jitter)
	return false, nil
}

// Pin returns -1, the simulated sensor has no hardware pin.
func (s *SimulatedSensor) Pin() int {
	return -1
}

// Close is a no-op for the simulated sensor.
func (s *SimulatedSensor) Close() error {
	return nil
}
