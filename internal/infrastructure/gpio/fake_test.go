package gpio

import (
	"errors"
	"testing"

	"github.com/nerrad567/birdhouse-core/internal/infrastructure/config"
)

func TestFakeSwitch_ReadWrite(t *testing.T) {
	f := NewFakeSwitch(17, 27)

	on, err := f.ReadState(17)
	if err != nil {
		t.Fatalf("ReadState() error = %v", err)
	}
	if on {
		t.Error("new pin should start off")
	}

	if err := f.WriteState(17, true); err != nil {
		t.Fatalf("WriteState() error = %v", err)
	}
	// Idempotent: writing the same level again is fine.
	if err := f.WriteState(17, true); err != nil {
		t.Fatalf("second WriteState() error = %v", err)
	}

	on, _ = f.ReadState(17)
	if !on {
		t.Error("pin 17 should be on after write")
	}

	writes := f.Writes()
	if len(writes) != 2 || writes[0] != (Write{Pin: 17, On: true}) {
		t.Errorf("Writes() = %+v", writes)
	}
}

func TestFakeSwitch_ReadHasNoSideEffects(t *testing.T) {
	f := NewFakeSwitch(17)
	for range 3 {
		if _, err := f.ReadState(17); err != nil {
			t.Fatalf("ReadState() error = %v", err)
		}
	}
	if len(f.Writes()) != 0 {
		t.Error("ReadState must not record writes")
	}
}

func TestFakeSwitch_UnknownPin(t *testing.T) {
	f := NewFakeSwitch(17)
	_, err := f.ReadState(4)
	if !errors.Is(err, ErrUnknownPin) {
		t.Errorf("ReadState(4) error = %v, want ErrUnknownPin", err)
	}
}

func TestFakeSwitch_InjectedErrors(t *testing.T) {
	f := NewFakeSwitch(17)
	boom := errors.New("relay board unplugged")
	f.ReadErrors[17] = boom
	f.WriteErrors[17] = boom

	if _, err := f.ReadState(17); !errors.Is(err, ErrSwitch) || !errors.Is(err, boom) {
		t.Errorf("ReadState() error = %v, want ErrSwitch wrapping cause", err)
	}
	if err := f.WriteState(17, true); !errors.Is(err, ErrSwitch) {
		t.Errorf("WriteState() error = %v, want ErrSwitch", err)
	}
	if f.State(17) {
		t.Error("failed write must not change state")
	}
}

func TestFakeSwitch_Close(t *testing.T) {
	f := NewFakeSwitch()
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !f.Closed() {
		t.Error("Closed() = false after Close()")
	}
}

func TestOpen(t *testing.T) {
	sw, err := Open(config.GPIOConfig{Driver: "fake"}, []int{17, 27})
	if err != nil {
		t.Fatalf("Open(fake) error = %v", err)
	}
	fake, ok := sw.(*FakeSwitch)
	if !ok {
		t.Fatalf("Open(fake) returned %T", sw)
	}
	if got := fake.Pins(); len(got) != 2 || got[0] != 17 || got[1] != 27 {
		t.Errorf("Pins() = %v, want [17 27]", got)
	}

	if _, err := Open(config.GPIOConfig{Driver: "sysfs"}, nil); !errors.Is(err, ErrSwitch) {
		t.Errorf("Open(sysfs) error = %v, want ErrSwitch", err)
	}
}
