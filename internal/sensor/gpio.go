// gpio.go hardware sensor implementation on top of periph.io
package sensor

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/tphakala/birdfeeder-go/internal/errors"
)

var hostInitOnce sync.Once
var hostInitErr error

// GPIOSensor reads a PIR motion sensor wired to a GPIO pin.
type GPIOSensor struct {
	pin     gpio.PinIO
	pinNum  int
	closed  bool
	closeMu sync.Mutex
}

// NewGPIOSensor opens the given GPIO pin for input. The pin is configured
// with a pull-down so a floating line reads as no motion.
func NewGPIOSensor(pinNum int) (*GPIOSensor, error) {
	hostInitOnce.Do(func() {
		_, hostInitErr = host.Init()
	})
	if hostInitErr != nil {
		return nil, errors.New(fmt.Errorf("failed to initialize periph host: %w", hostInitErr)).
			Component("sensor").
			Category(errors.CategorySensorIO).
			Build()
	}

	pin := gpioreg.ByName(fmt.Sprintf("GPIO%d", pinNum))
	if pin == nil {
		return nil, errors.Newf("GPIO pin %d not found", pinNum).
			Component("sensor").
			Category(errors.CategorySensorIO).
			Context("pin", pinNum).
			Build()
	}

	if err := pin.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, errors.New(fmt.Errorf("failed to configure GPIO pin %d: %w", pinNum, err)).
			Component("sensor").
			Category(errors.CategorySensorIO).
			Context("pin", pinNum).
			Build()
	}

	return &GPIOSensor{pin: pin, pinNum: pinNum}, nil
}

// Read returns true while the sensor line is high.
func (s *GPIOSensor) Read() (bool, error) {
	return s.pin.Read() == gpio.High, nil
}

// Pin returns the GPIO pin number.
func (s *GPIOSensor) Pin() int {
	return s.pinNum
}

// Close releases the pin.
func (s *GPIOSensor) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.pin.Halt()
}
