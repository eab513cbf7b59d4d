package recorder

import "zoom-kiosk/internal/capture"

// Injector moves the global pointer and synthesizes clicks.
type Injector interface {
	CursorPos() (x, y int, err error)
	MoveTo(x, y int) error
	Click(button capture.Button) error
	// ScreenSize is the primary display size in pixels.
	ScreenSize() (width, height int, err error)
}

// NewInjector returns the host's injector. When input cannot be synthesized
// the returned injector always fails with capture.ErrTransportUnavailable,
// along with the reason.
func NewInjector() (Injector, error) {
	inj, err := newPlatformInjector()
	if err != nil {
		return unavailableInjector{}, err
	}
	return inj, nil
}

type unavailableInjector struct{}

func (unavailableInjector) CursorPos() (int, int, error) {
	return 0, 0, capture.ErrTransportUnavailable
}

func (unavailableInjector) MoveTo(int, int) error {
	return capture.ErrTransportUnavailable
}

func (unavailableInjector) Click(capture.Button) error {
	return capture.ErrTransportUnavailable
}

func (unavailableInjector) ScreenSize() (int, int, error) {
	return 0, 0, capture.ErrTransportUnavailable
}
