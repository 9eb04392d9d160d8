package input

import (
	"testing"

	"github.com/owlonaut/gbcore/internal/interrupt"
)

func TestJoypadRead_NoButtonsPressed(t *testing.T) {
	j := New()

	// Default state: nothing selected, no buttons pressed
	result := j.Read()

	// Upper 2 bits should be 1, selection bits should be 1, button bits should be 1
	expected := uint8(0xFF)
	if result != expected {
		t.Errorf("Expected 0x%02X, got 0x%02X", expected, result)
	}
}

func TestJoypadRead_ActionButtonsSelected(t *testing.T) {
	j := New()

	// Select action buttons (P15=0)
	j.Write(0xDF) // 11011111 - P15=0, P14=1

	j.buttons[A] = true

	result := j.Read()

	// Expected: 11011110 (P15=0, P14=1, A pressed=bit0 clear)
	expected := uint8(0xDE)
	if result != expected {
		t.Errorf("Expected 0x%02X, got 0x%02X", expected, result)
	}
}

func TestJoypadRead_DirectionButtonsSelected(t *testing.T) {
	j := New()

	// Select direction buttons (P14=0)
	j.Write(0xEF) // 11101111 - P15=1, P14=0

	j.buttons[Up] = true

	result := j.Read()

	// Expected: 11101011 (P15=1, P14=0, Up pressed=bit2 clear)
	expected := uint8(0xEB)
	if result != expected {
		t.Errorf("Expected 0x%02X, got 0x%02X", expected, result)
	}
}

func TestJoypadRead_MultipleActionButtons(t *testing.T) {
	j := New()

	// Select action buttons
	j.Write(0xDF)

	j.buttons[A] = true
	j.buttons[B] = true
	j.buttons[Start] = true

	result := j.Read()

	// Expected: 11010100 (bits 0,1,3 clear for A,B,Start)
	expected := uint8(0xD4)
	if result != expected {
		t.Errorf("Expected 0x%02X, got 0x%02X", expected, result)
	}
}

func TestJoypadRead_MultipleDirectionButtons(t *testing.T) {
	j := New()

	// Select direction buttons
	j.Write(0xEF)

	j.buttons[Up] = true
	j.buttons[Right] = true

	result := j.Read()

	// Expected: 11101010 (bits 0,2 clear for Right,Up)
	expected := uint8(0xEA)
	if result != expected {
		t.Errorf("Expected 0x%02X, got 0x%02X", expected, result)
	}
}

func TestJoypadRead_NoSelectionBits(t *testing.T) {
	j := New()

	// Select neither action nor direction (both P15 and P14 = 0)
	j.Write(0xCF)

	j.buttons[A] = true
	j.buttons[Up] = true

	result := j.Read()

	// When both are selected, both sets of buttons should be readable
	// Expected: 11001010 (bits 0,2 clear from both sets)
	expected := uint8(0xCA)
	if result != expected {
		t.Errorf("Expected 0x%02X, got 0x%02X", expected, result)
	}
}

func TestJoypadWrite_SelectionBits(t *testing.T) {
	j := New()

	// Write to select action buttons only
	j.Write(0xDF) // P15=0, P14=1

	if j.selectAction {
		t.Error("Expected selectAction to be false (bit cleared)")
	}
	if !j.selectDirection {
		t.Error("Expected selectDirection to be true (bit set)")
	}

	// Write to select direction buttons only
	j.Write(0xEF) // P15=1, P14=0

	if !j.selectAction {
		t.Error("Expected selectAction to be true (bit set)")
	}
	if j.selectDirection {
		t.Error("Expected selectDirection to be false (bit cleared)")
	}
}

func TestOppositeDirectionBlocking_UpDown(t *testing.T) {
	j := New()

	// Press Down first
	j.UpdateKeyState(Down, true)
	if !j.buttons[Down] {
		t.Error("Down should be pressed")
	}

	// Try to press Up (should be blocked)
	j.UpdateKeyState(Up, true)
	if j.buttons[Up] {
		t.Error("Up should be blocked when Down is pressed")
	}

	// Release Down, then press Up
	j.UpdateKeyState(Down, false)
	j.UpdateKeyState(Up, true)
	if !j.buttons[Up] {
		t.Error("Up should be pressed after Down is released")
	}

	// Try to press Down (should be blocked)
	j.UpdateKeyState(Down, true)
	if j.buttons[Down] {
		t.Error("Down should be blocked when Up is pressed")
	}
}

func TestOppositeDirectionBlocking_LeftRight(t *testing.T) {
	j := New()

	// Press Right first
	j.UpdateKeyState(Right, true)
	if !j.buttons[Right] {
		t.Error("Right should be pressed")
	}

	// Try to press Left (should be blocked)
	j.UpdateKeyState(Left, true)
	if j.buttons[Left] {
		t.Error("Left should be blocked when Right is pressed")
	}

	// Release Right, then press Left
	j.UpdateKeyState(Right, false)
	j.UpdateKeyState(Left, true)
	if !j.buttons[Left] {
		t.Error("Left should be pressed after Right is released")
	}

	// Try to press Right (should be blocked)
	j.UpdateKeyState(Right, true)
	if j.buttons[Right] {
		t.Error("Right should be blocked when Left is pressed")
	}
}

func TestJoypadInterrupt(t *testing.T) {
	j := New()

	bit := j.UpdateKeyState(A, true)

	if bit != interrupt.Joypad {
		t.Errorf("Expected interrupt.Joypad on press, got 0x%02X", bit)
	}
}

func TestJoypadInterrupt_OnlyOnPress(t *testing.T) {
	j := New()

	// First press should trigger interrupt
	if bit := j.UpdateKeyState(A, true); bit != interrupt.Joypad {
		t.Errorf("Expected interrupt.Joypad on first press, got 0x%02X", bit)
	}

	// Pressing again while already pressed should NOT trigger another interrupt
	if bit := j.UpdateKeyState(A, true); bit != 0 {
		t.Errorf("Expected no interrupt (no spam), got 0x%02X", bit)
	}

	// Release and press again should trigger another interrupt
	j.UpdateKeyState(A, false)
	if bit := j.UpdateKeyState(A, true); bit != interrupt.Joypad {
		t.Errorf("Expected interrupt.Joypad after release+press, got 0x%02X", bit)
	}
}

func TestReleaseButton(t *testing.T) {
	j := New()

	keys := []Key{A, B, Start, Select, Up, Down, Left, Right}

	for _, key := range keys {
		j.UpdateKeyState(key, true)
		j.UpdateKeyState(key, false)

		for _, b := range j.buttons {
			if b {
				t.Errorf("key %v was not properly released", key)
			}
		}
	}
}

func TestPressButton_AllButtons(t *testing.T) {
	keys := []Key{A, B, Start, Select, Up, Down, Left, Right}

	for _, key := range keys {
		j := New()
		j.UpdateKeyState(key, true)

		if !j.buttons[key] {
			t.Errorf("key %v was not pressed", key)
		}
	}
}

func TestJoypadRead_ButtonMapping(t *testing.T) {
	tests := []struct {
		name         string
		selectValue  uint8
		pressedKeys  []Key
		expectedBits uint8 // The low 4 bits of the result
	}{
		{
			name:         "Action: A pressed",
			selectValue:  0xDF, // P15=0 (select action)
			pressedKeys:  []Key{A},
			expectedBits: 0x0E, // 1110 (bit 0 clear)
		},
		{
			name:         "Action: B pressed",
			selectValue:  0xDF,
			pressedKeys:  []Key{B},
			expectedBits: 0x0D, // 1101 (bit 1 clear)
		},
		{
			name:         "Action: Select pressed",
			selectValue:  0xDF,
			pressedKeys:  []Key{Select},
			expectedBits: 0x0B, // 1011 (bit 2 clear)
		},
		{
			name:         "Action: Start pressed",
			selectValue:  0xDF,
			pressedKeys:  []Key{Start},
			expectedBits: 0x07, // 0111 (bit 3 clear)
		},
		{
			name:         "Direction: Right pressed",
			selectValue:  0xEF, // P14=0 (select direction)
			pressedKeys:  []Key{Right},
			expectedBits: 0x0E, // 1110 (bit 0 clear)
		},
		{
			name:         "Direction: Left pressed",
			selectValue:  0xEF,
			pressedKeys:  []Key{Left},
			expectedBits: 0x0D, // 1101 (bit 1 clear)
		},
		{
			name:         "Direction: Up pressed",
			selectValue:  0xEF,
			pressedKeys:  []Key{Up},
			expectedBits: 0x0B, // 1011 (bit 2 clear)
		},
		{
			name:         "Direction: Down pressed",
			selectValue:  0xEF,
			pressedKeys:  []Key{Down},
			expectedBits: 0x07, // 0111 (bit 3 clear)
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := New()
			j.Write(tt.selectValue)

			for _, key := range tt.pressedKeys {
				j.UpdateKeyState(key, true)
			}

			result := j.Read()
			actualBits := result & 0x0F

			if actualBits != tt.expectedBits {
				t.Errorf("Expected low 4 bits = 0x%X, got 0x%X (full result: 0x%02X)",
					tt.expectedBits, actualBits, result)
			}
		})
	}
}
