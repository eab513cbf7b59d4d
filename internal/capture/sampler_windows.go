//go:build windows

package capture

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	vkLButton = 0x01
	vkRButton = 0x02
	vkMButton = 0x04

	keyDownMask = 0x8000
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procGetAsyncKeyState = user32.NewProc("GetAsyncKeyState")
	procGetCursorPos     = user32.NewProc("GetCursorPos")
)

type point struct {
	X int32
	Y int32
}

type user32Sampler struct{}

func newPlatformSampler() (Sampler, error) {
	if err := procGetAsyncKeyState.Find(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	if err := procGetCursorPos.Find(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	return user32Sampler{}, nil
}

func (user32Sampler) Sample() (Sample, error) {
	var pt point
	if r, _, err := procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt))); r == 0 {
		return Sample{}, fmt.Errorf("GetCursorPos: %w", err)
	}

	return Sample{
		X: int(pt.X),
		Y: int(pt.Y),
		Buttons: ButtonState{
			Left:   keyDown(vkLButton),
			Right:  keyDown(vkRButton),
			Middle: keyDown(vkMButton),
		},
	}, nil
}

func keyDown(vk uintptr) bool {
	r, _, _ := procGetAsyncKeyState.Call(vk)
	return uint16(r)&keyDownMask != 0
}
