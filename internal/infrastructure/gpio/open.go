package gpio

import (
	"fmt"

	"github.com/nerrad567/birdhouse-core/internal/infrastructure/config"
)

// Open builds the Switch selected by cfg.Driver for the given outlet pins.
func Open(cfg config.GPIOConfig, pins []int) (Switch, error) {
	switch cfg.Driver {
	case "fake":
		return NewFakeSwitch(pins...), nil
	case "cdev", "":
		return NewCdevSwitch(cfg.Chip, pins, cfg.ActiveLow)
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", ErrSwitch, cfg.Driver)
	}
}
