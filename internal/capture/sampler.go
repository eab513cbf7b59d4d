package capture

import "errors"

// ErrTransportUnavailable means the host has no usable primitive for
// reading or synthesizing global pointer input. Capture degrades to
// silence and playback to a no-op.
var ErrTransportUnavailable = errors.New("pointer input unavailable on this host")

// Sample is one reading of the pointer.
type Sample struct {
	X       int
	Y       int
	Buttons ButtonState
}

// Sampler reads the global pointer position and button levels.
type Sampler interface {
	Sample() (Sample, error)
}

// NewSampler returns the host's sampler. When polling is not possible the
// returned sampler always fails with ErrTransportUnavailable, along with
// the reason.
func NewSampler() (Sampler, error) {
	s, err := newPlatformSampler()
	if err != nil {
		return unavailableSampler{}, err
	}
	return s, nil
}

type unavailableSampler struct{}

func (unavailableSampler) Sample() (Sample, error) {
	return Sample{}, ErrTransportUnavailable
}
