// Package input models the handheld's five physical buttons and the
// model-specific mapping from those buttons onto the 8-bit key port the
// BIOS and game code read at I/O address 0x00, plus the handful of
// synthetic status bits (quit, reset, WAI-wake, clean-screen) that share
// the same 32-bit key word in the original.
package input

// Button identifies one of the device's five physical buttons. The
// numeric order matches the left-to-right, then side-button layout used
// by both device models' keymaps.
type Button uint8

const (
	ButtonLeft Button = iota
	ButtonMiddle
	ButtonRight
	ButtonSideLeft
	ButtonSideRight
	buttonCount
)

// Bit indices within the key word for the non-keymapped synthetic status
// bits, matching the original's shared sys->keys field.
const (
	BitQuit        = 16 // ESC pressed, or the window was closed
	BitReset       = 17 // the emulated reset key
	BitWait        = 19 // CPU executed WAI; cleared when the next frame tick resumes it
	BitCleanScreen = 20 // LCD power-off / display-off command pending
	BitPowerOff    = 18 // power-off command pending (set alongside quit)
)

// Keymap gives the key-port bit index each button sets when held, in
// Button order. The two device models wire their five buttons to
// different bit positions.
type Keymap [buttonCount]uint8

// KeymapFor550 is the bit layout for the smaller (4MiB ROM, 128px) model.
var KeymapFor550 = Keymap{4, 5, 6, 3, 2}

// KeymapFor560 is the bit layout for the larger (8MiB ROM, 160px) model.
var KeymapFor560 = Keymap{2, 3, 4, 5, 6}

// State tracks the live key word the CPU reads through the device's I/O
// port, plus the synthetic status bits layered into the same word.
type State struct {
	keymap Keymap
	keys   uint32
}

// NewState creates a State using the given model's keymap.
func NewState(keymap Keymap) *State {
	return &State{keymap: keymap}
}

// SetButton presses or releases a physical button, matching game_event's
// per-key press/release branch.
func (s *State) SetButton(b Button, pressed bool) {
	bit := uint32(1) << s.keymap[b]
	if pressed {
		s.keys |= bit
	} else {
		s.keys &^= bit
	}
}

// PressReset sets the reset bit; it is never keymapped, always bit 17.
func (s *State) PressReset() {
	s.keys |= 1 << BitReset
}

// Quit sets the quit bit (ESC, or the window closing).
func (s *State) Quit() {
	s.keys |= 1 << BitQuit
}

// RequestPowerOff sets both the power-off and quit bits together,
// matching the I/O-register-0x00 power-off write.
func (s *State) RequestPowerOff() {
	s.keys |= 1<<BitPowerOff | 1<<BitQuit
}

// RequestCleanScreen sets the clean-screen bit, matching the LCD
// display-off command (write 0x28 to I/O register 0x8000).
func (s *State) RequestCleanScreen() {
	s.keys |= 1 << BitCleanScreen
}

// SetWait sets the WAI bit, marking that the CPU has blocked and is
// waiting for the next frame tick to resume it mid-frame.
func (s *State) SetWait() {
	s.keys |= 1 << BitWait
}

// Bit reports whether the given bit is currently set in the key word.
func (s *State) Bit(n uint) bool {
	return s.keys&(1<<n) != 0
}

// ClearBit clears a single status bit (used to consume WAI/clean-screen
// once handled; reset/quit are cleared by ResetForNewGame).
func (s *State) ClearBit(n uint) {
	s.keys &^= 1 << n
}

// Port0 returns the byte the CPU reads at I/O address 0x00: the
// inverted low 8 bits of the key word, matching ~sys->keys there.
func (s *State) Port0() uint8 {
	return ^uint8(s.keys)
}

// ResetForNewGame clears everything except the low 8 (keymapped) bits,
// matching run_game's post-reset `sys->keys &= 0xff`.
func (s *State) ResetForNewGame() {
	s.keys &= 0xff
}

// ShouldStop reports whether either the quit or reset bit is set,
// matching run_game's main-loop exit test `keys & (3 << 16)`.
func (s *State) ShouldStop() bool {
	return s.keys&(3<<BitQuit) != 0
}
