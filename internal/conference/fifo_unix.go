//go:build unix

package conference

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func makeFIFO(path string) error {
	if err := unix.Mkfifo(path, 0o600); err != nil && !errors.Is(err, unix.EEXIST) {
		return err
	}
	return nil
}

func removeFIFO(path string) {
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeNamedPipe != 0 {
		os.Remove(path)
	}
}
