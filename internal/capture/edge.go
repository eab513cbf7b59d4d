package capture

// ButtonState is the pressed/released state of every tracked button at one tick.
type ButtonState struct {
	Left   bool
	Right  bool
	Middle bool
}

// Pressed reports whether b is held down.
func (s ButtonState) Pressed(b Button) bool {
	switch b {
	case ButtonLeft:
		return s.Left
	case ButtonRight:
		return s.Right
	case ButtonMiddle:
		return s.Middle
	}
	return false
}

// EdgeDetector turns per-tick button levels into press edges.
type EdgeDetector struct {
	prev ButtonState
}

// Step records cur and returns the buttons that went from released to
// pressed since the previous step. A held button yields one edge only.
func (d *EdgeDetector) Step(cur ButtonState) []Button {
	var pressed []Button
	for _, b := range Buttons {
		if cur.Pressed(b) && !d.prev.Pressed(b) {
			pressed = append(pressed, b)
		}
	}
	d.prev = cur
	return pressed
}
