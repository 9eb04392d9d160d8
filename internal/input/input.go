// Package input implements Game Boy joypad input handling.
package input

import "github.com/owlonaut/gbcore/internal/interrupt"

// Key identifies one of the eight physical Game Boy buttons.
type Key uint8

const (
	A Key = iota
	B
	Start
	Select
	Up
	Down
	Left
	Right
)

// Joypad represents the Game Boy joypad state and P1/JOYP register.
type Joypad struct {
	// Selection bits (written by CPU)
	selectAction    bool // P15 (0=select action buttons)
	selectDirection bool // P14 (0=select direction buttons)

	// Button states (true = pressed), indexed by Key.
	buttons [8]bool
}

// New creates a new Joypad instance in its power-on state (nothing selected,
// nothing pressed).
func New() *Joypad {
	return &Joypad{
		selectAction:    true, // Not selected (1)
		selectDirection: true, // Not selected (1)
	}
}

// Read returns the P1/JOYP register value (0xFF00).
func (j *Joypad) Read() uint8 {
	result := uint8(0xC0) // Upper 2 bits always 1

	// Set selection bits
	if j.selectAction {
		result |= 0x20 // P15
	}
	if j.selectDirection {
		result |= 0x10 // P14
	}

	// Initialize button bits as all released (1)
	buttonBits := uint8(0x0F)

	// If action buttons selected (P15=0)
	if !j.selectAction {
		if j.buttons[Start] {
			buttonBits &^= 0x08 // Bit 3
		}
		if j.buttons[Select] {
			buttonBits &^= 0x04 // Bit 2
		}
		if j.buttons[B] {
			buttonBits &^= 0x02 // Bit 1
		}
		if j.buttons[A] {
			buttonBits &^= 0x01 // Bit 0
		}
	}

	// If direction buttons selected (P14=0)
	if !j.selectDirection {
		if j.buttons[Down] {
			buttonBits &^= 0x08 // Bit 3
		}
		if j.buttons[Up] {
			buttonBits &^= 0x04 // Bit 2
		}
		if j.buttons[Left] {
			buttonBits &^= 0x02 // Bit 1
		}
		if j.buttons[Right] {
			buttonBits &^= 0x01 // Bit 0
		}
	}

	result |= buttonBits
	return result
}

// Write updates the P1/JOYP register (only bits 4-5 are writable).
func (j *Joypad) Write(value uint8) {
	j.selectAction = (value & 0x20) != 0
	j.selectDirection = (value & 0x10) != 0
}

var opposite = map[Key]Key{
	Up: Down, Down: Up,
	Left: Right, Right: Left,
}

// UpdateKeyState records a key's pressed/released state and returns
// interrupt.Joypad if the transition itself should raise the joypad
// interrupt (a released-to-pressed edge), or 0 otherwise.
//
// A direction key press is ignored while its opposite is already held,
// matching real Game Boy hardware (the D-pad can't register both at once).
func (j *Joypad) UpdateKeyState(key Key, pressed bool) uint8 {
	if !pressed {
		j.buttons[key] = false
		return 0
	}

	wasPressed := j.buttons[key]
	if opp, ok := opposite[key]; ok && j.buttons[opp] {
		return 0
	}
	j.buttons[key] = true

	if !wasPressed {
		return interrupt.Joypad
	}
	return 0
}
