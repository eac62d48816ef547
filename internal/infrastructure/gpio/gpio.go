// Package gpio provides the physical switch sink for outlets.
//
// Each outlet is a relay channel addressed by its BCM GPIO pin number. The
// real implementation drives Linux GPIO character device lines; the fake
// implementation keeps state in memory so the scheduler can be exercised
// without hardware.
package gpio

import "errors"

// Switch reads and writes the logical on/off level of outlet pins.
//
// ReadState must be free of side effects. WriteState must be idempotent:
// writing the level a pin already has is not an error.
type Switch interface {
	ReadState(pin int) (bool, error)
	WriteState(pin int, on bool) error
	Close() error
}

// Sentinel errors for switch operations.
var (
	// ErrSwitch wraps every hardware read or write failure.
	ErrSwitch = errors.New("gpio: switch failure")

	// ErrUnknownPin is returned for a pin that was not requested at construction.
	ErrUnknownPin = errors.New("gpio: pin not managed")

	// ErrUnsupported is returned by the character device driver on non-Linux builds.
	ErrUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")
)

// consumerLabel identifies our lines in `gpioinfo` output.
const consumerLabel = "birdhouse"
