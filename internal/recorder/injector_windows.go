//go:build windows

package recorder

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"zoom-kiosk/internal/capture"
)

const (
	inputMouse = 0

	mouseLeftDown   = 0x0002
	mouseLeftUp     = 0x0004
	mouseRightDown  = 0x0008
	mouseRightUp    = 0x0010
	mouseMiddleDown = 0x0020
	mouseMiddleUp   = 0x0040

	smCxScreen = 0
	smCyScreen = 1
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procSetCursorPos     = user32.NewProc("SetCursorPos")
	procGetCursorPos     = user32.NewProc("GetCursorPos")
	procSendInput        = user32.NewProc("SendInput")
	procGetSystemMetrics = user32.NewProc("GetSystemMetrics")
)

type winPoint struct {
	X int32
	Y int32
}

// mouseInput mirrors MOUSEINPUT.
type mouseInput struct {
	Dx        int32
	Dy        int32
	MouseData uint32
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

// input mirrors INPUT with the mouse member of the union. MOUSEINPUT is the
// largest member, so the sizes match.
type input struct {
	Type uint32
	Mi   mouseInput
}

type user32Injector struct{}

func newPlatformInjector() (Injector, error) {
	for _, proc := range []*windows.LazyProc{procSetCursorPos, procGetCursorPos, procSendInput, procGetSystemMetrics} {
		if err := proc.Find(); err != nil {
			return nil, fmt.Errorf("%w: %v", capture.ErrTransportUnavailable, err)
		}
	}
	return user32Injector{}, nil
}

func (user32Injector) CursorPos() (int, int, error) {
	var pt winPoint
	if r, _, err := procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt))); r == 0 {
		return 0, 0, fmt.Errorf("GetCursorPos: %w", err)
	}
	return int(pt.X), int(pt.Y), nil
}

func (user32Injector) MoveTo(x, y int) error {
	if r, _, err := procSetCursorPos.Call(uintptr(int32(x)), uintptr(int32(y))); r == 0 {
		return fmt.Errorf("SetCursorPos: %w", err)
	}
	return nil
}

func (user32Injector) Click(button capture.Button) error {
	var down, up uint32
	switch button {
	case capture.ButtonRight:
		down, up = mouseRightDown, mouseRightUp
	case capture.ButtonMiddle:
		down, up = mouseMiddleDown, mouseMiddleUp
	default:
		down, up = mouseLeftDown, mouseLeftUp
	}

	inputs := [2]input{
		{Type: inputMouse, Mi: mouseInput{Flags: down}},
		{Type: inputMouse, Mi: mouseInput{Flags: up}},
	}
	r, _, err := procSendInput.Call(uintptr(len(inputs)), uintptr(unsafe.Pointer(&inputs[0])), unsafe.Sizeof(inputs[0]))
	if int(r) != len(inputs) {
		return fmt.Errorf("SendInput: %w", err)
	}
	return nil
}

func (user32Injector) ScreenSize() (int, int, error) {
	w, _, _ := procGetSystemMetrics.Call(smCxScreen)
	h, _, _ := procGetSystemMetrics.Call(smCyScreen)
	if w == 0 || h == 0 {
		return 0, 0, fmt.Errorf("GetSystemMetrics: no primary display")
	}
	return int(int32(w)), int(int32(h)), nil
}
