// Package input validates decoded input batches and replays them on
// the host through an OS synthesizer.
package input

import (
	"fmt"

	"github.com/go-vgo/robotgo"

	"github.com/bitrate16/httprd/internal/protocol"
)

// Synthesizer drives the host's mouse and keyboard. Calls are
// serialized by the OS; implementations do not lock.
type Synthesizer interface {
	// MoveMouse places the cursor at absolute display coordinates.
	MoveMouse(x, y int)

	// ToggleMouse presses or releases a button at the given display
	// coordinates. Button is one of protocol.ButtonLeft/Middle/Right.
	ToggleMouse(x, y, button int, down bool) error

	// Scroll scrolls vertically by dy notches at the given display
	// coordinates; dy > 0 scrolls up.
	Scroll(x, y, dy int)

	// ToggleKey presses or releases the key with the given symbolic
	// name. Unknown names return an error.
	ToggleKey(name string, down bool) error
}

type robotgoSynthesizer struct{}

// NewSynthesizer returns the robotgo-backed Synthesizer.
func NewSynthesizer() Synthesizer {
	return robotgoSynthesizer{}
}

func (robotgoSynthesizer) MoveMouse(x, y int) {
	robotgo.Move(x, y)
}

func (robotgoSynthesizer) ToggleMouse(x, y, button int, down bool) error {
	name, err := buttonName(button)
	if err != nil {
		return err
	}
	robotgo.Move(x, y)
	if down {
		robotgo.Toggle(name, "down")
	} else {
		robotgo.Toggle(name, "up")
	}
	return nil
}

func (robotgoSynthesizer) Scroll(x, y, dy int) {
	robotgo.Move(x, y)
	robotgo.Scroll(0, dy)
}

func (robotgoSynthesizer) ToggleKey(name string, down bool) error {
	dir := "up"
	if down {
		dir = "down"
	}
	return robotgo.KeyToggle(name, dir)
}

func buttonName(button int) (string, error) {
	switch button {
	case protocol.ButtonLeft:
		return "left", nil
	case protocol.ButtonMiddle:
		return "center", nil
	case protocol.ButtonRight:
		return "right", nil
	}
	return "", fmt.Errorf("unknown mouse button %d", button)
}
