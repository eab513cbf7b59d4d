//go:build !windows

package capture

import (
	"fmt"
	"runtime"
)

func newPlatformSampler() (Sampler, error) {
	return nil, fmt.Errorf("%w: %s", ErrTransportUnavailable, runtime.GOOS)
}
