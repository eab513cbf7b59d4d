//go:build !windows

package recorder

import (
	"fmt"
	"runtime"

	"zoom-kiosk/internal/capture"
)

func newPlatformInjector() (Injector, error) {
	return nil, fmt.Errorf("%w: %s", capture.ErrTransportUnavailable, runtime.GOOS)
}
