//go:build !linux

package gpio

// CdevSwitch is not available on non-Linux platforms.
type CdevSwitch struct{}

// NewCdevSwitch returns ErrUnsupported on non-Linux platforms.
func NewCdevSwitch(string, []int, bool) (*CdevSwitch, error) {
	return nil, ErrUnsupported
}

// ReadState is not implemented on non-Linux platforms.
func (*CdevSwitch) ReadState(int) (bool, error) {
	return false, ErrUnsupported
}

// WriteState is not implemented on non-Linux platforms.
func (*CdevSwitch) WriteState(int, bool) error {
	return ErrUnsupported
}

// Close is a no-op on non-Linux platforms.
func (*CdevSwitch) Close() error {
	return nil
}
