package input

import "testing"

func TestSetButtonSetsMappedBit(t *testing.T) {
	s := NewState(KeymapFor550)
	s.SetButton(ButtonLeft, true)
	if !s.Bit(4) {
		t.Error("pressing ButtonLeft on the 550 keymap should set bit 4")
	}
	s.SetButton(ButtonLeft, false)
	if s.Bit(4) {
		t.Error("releasing ButtonLeft should clear bit 4")
	}
}

func TestPort0IsInvertedKeyByte(t *testing.T) {
	s := NewState(KeymapFor560)
	s.SetButton(ButtonLeft, true) // bit 2 on the 560 keymap
	if s.Port0() != ^uint8(1<<2) {
		t.Errorf("Port0() = %#02x, want %#02x", s.Port0(), ^uint8(1<<2))
	}
}

func TestResetReturnsShouldStop(t *testing.T) {
	s := NewState(KeymapFor550)
	if s.ShouldStop() {
		t.Fatal("fresh state should not request stop")
	}
	s.PressReset()
	if !s.ShouldStop() {
		t.Error("PressReset should make ShouldStop true")
	}
}

func TestQuitReturnsShouldStop(t *testing.T) {
	s := NewState(KeymapFor550)
	s.Quit()
	if !s.ShouldStop() {
		t.Error("Quit should make ShouldStop true")
	}
}

func TestResetForNewGameKeepsOnlyLowByte(t *testing.T) {
	s := NewState(KeymapFor550)
	s.SetButton(ButtonMiddle, true)
	s.PressReset()
	s.ResetForNewGame()
	if s.ShouldStop() {
		t.Error("ResetForNewGame should clear the reset/quit bits")
	}
	if !s.Bit(5) {
		t.Error("ResetForNewGame should preserve the low keymapped bits")
	}
}

func TestRequestPowerOffSetsBothBits(t *testing.T) {
	s := NewState(KeymapFor550)
	s.RequestPowerOff()
	if !s.Bit(BitPowerOff) || !s.Bit(BitQuit) {
		t.Error("RequestPowerOff should set both the power-off and quit bits")
	}
}
