//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// CdevSwitch drives outlet relays through the Linux GPIO character device.
type CdevSwitch struct {
	mu    sync.Mutex
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// NewCdevSwitch requests every pin as an output on the named chip.
//
// Lines start low (logical off); the scheduler's start-up pass writes each
// outlet's initial state immediately afterwards. With activeLow set, logical
// on drives the line low, matching common opto-isolated relay boards.
func NewCdevSwitch(chipName string, pins []int, activeLow bool) (*CdevSwitch, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumerLabel))
	if err != nil {
		return nil, fmt.Errorf("%w: open gpio chip %s: %w", ErrSwitch, chipName, err)
	}

	s := &CdevSwitch{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line, len(pins)),
	}

	for _, pin := range pins {
		opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
		if activeLow {
			opts = append(opts, gpiocdev.AsActiveLow)
		}
		line, err := chip.RequestLine(pin, opts...)
		if err != nil {
			s.Close() //nolint:errcheck // Best effort cleanup on error path
			return nil, fmt.Errorf("%w: request pin %d: %w", ErrSwitch, pin, err)
		}
		s.lines[pin] = line
	}

	return s, nil
}

// ReadState returns the logical level currently driven on pin.
func (s *CdevSwitch) ReadState(pin int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.lines[pin]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrUnknownPin, pin)
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("%w: read pin %d: %w", ErrSwitch, pin, err)
	}
	return v == 1, nil
}

// WriteState drives pin to the logical level on.
func (s *CdevSwitch) WriteState(pin int, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.lines[pin]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPin, pin)
	}
	v := 0
	if on {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("%w: write pin %d: %w", ErrSwitch, pin, err)
	}
	return nil
}

// Close releases the lines without writing a level first. After release the
// kernel no longer holds the output, so what the relay does next depends on
// the chip and board pull-ups; the daemon calls Close only on shutdown.
func (s *CdevSwitch) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for pin, line := range s.lines {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	s.lines = map[int]*gpiocdev.Line{}

	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		s.chip = nil
	}
	return errors.Join(errs...)
}
