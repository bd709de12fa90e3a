package flash

import "testing"

func TestPowerCycleAndReady(t *testing.T) {
	c := New(make([]byte, 0x10000), 0xf000, 0)
	c.PowerOff()
	if err := c.WriteReg02(0); err != nil {
		t.Fatalf("WriteReg02 while off: %v", err)
	}
	if c.state != Off {
		t.Error("writes while OFF should be ignored")
	}
	c.PowerReady()
	if c.state != Ready {
		t.Fatalf("state = %v, want Ready", c.state)
	}
}

func TestReadyToCmdOnZeroByte(t *testing.T) {
	c := New(make([]byte, 0x10000), 0xf000, 0)
	c.PowerReady()
	if err := c.WriteReg02(0); err != nil {
		t.Fatalf("WriteReg02: %v", err)
	}
	if c.state != Cmd {
		t.Errorf("state = %v, want Cmd", c.state)
	}
	if c.narg != 16 {
		t.Errorf("narg = %d, want 16", c.narg)
	}
}

func TestPowerBitAbortsMidCommand(t *testing.T) {
	c := New(make([]byte, 0x10000), 0xf000, 0)
	c.PowerReady()
	_ = c.WriteReg02(0)
	if err := c.WriteReg02(8); err != nil {
		t.Fatalf("WriteReg02: %v", err)
	}
	if c.state != Off {
		t.Errorf("bit 3 set on data should force state back to Off, got %v", c.state)
	}
}

func TestWriteEnableDisableTogglesFlag(t *testing.T) {
	c := New(make([]byte, 0x10000), 0xf000, 0)
	c.PowerReady()
	_ = c.WriteReg02(0) // -> CMD, narg=16

	feedArgByte(t, c, 0x06) // Write Enable
	if c.flags&flagWriteEnable == 0 {
		t.Error("Write Enable (0x06) should set the write-enable flag")
	}
	if c.state != Off {
		t.Errorf("state after Write Enable = %v, want Off", c.state)
	}

	c.PowerReady()
	_ = c.WriteReg02(0)
	feedArgByte(t, c, 0x04) // Write Disable
	if c.flags&flagWriteEnable != 0 {
		t.Error("Write Disable (0x04) should clear the write-enable flag")
	}
}

// feedArgByte drives the shift-register protocol for one argument byte,
// MSB first. Each bit takes two writes (flash_emu shifts the bit in on
// the first, then requires the same bit repeated on the second); the
// parity byte that makes the check pass alternates with the live narg
// count, so reading c.narg each call keeps the two writes in sync.
func feedArgByte(t *testing.T, c *Chip, value uint8) {
	t.Helper()
	if err := feedArgByteErr(c, value); err != nil {
		t.Fatalf("feedArgByte: %v", err)
	}
}

func feedArgByteErr(c *Chip, value uint8) error {
	for bitpos := 7; bitpos >= 0; bitpos-- {
		bit := (value >> uint(bitpos)) & 1
		for rep := 0; rep < 2; rep++ {
			parity := c.narg & 1
			data := (uint8(2) ^ parity) | bit<<2
			if err := c.WriteReg02(data); err != nil {
				return err
			}
		}
	}
	return nil
}

func TestSectorEraseFillsRegion(t *testing.T) {
	data := make([]byte, 0x10000)
	key := uint8(0x37)
	saveOff := uint32(0xf000)
	c := New(data, saveOff, key)
	c.PowerReady()
	_ = c.WriteReg02(0)
	feedArgByte(t, c, 0x06) // enable writes
	c.PowerReady()
	_ = c.WriteReg02(0)
	feedArgByte(t, c, 0x20) // Sector Erase -> CMD2, narg=48
	// args[2..0] are clocked in that order (most-significant nibble group
	// first); 0xf000 as a 24-bit little-endian triple is {0x00, 0xf0, 0x00}.
	feedArgByte(t, c, 0x00) // -> args[2]
	feedArgByte(t, c, 0xf0) // -> args[1]
	feedArgByte(t, c, 0x00) // -> args[0]

	want := byte(0xff ^ key)
	if data[saveOff] != want {
		t.Errorf("erased region[0] = %#x, want %#x", data[saveOff], want)
	}
	if data[saveOff+0xfff] != want {
		t.Errorf("erased region end = %#x, want %#x", data[saveOff+0xfff], want)
	}
	if c.state != Off {
		t.Errorf("state after erase = %v, want Off", c.state)
	}
}

func TestUnknownCommandIsFatal(t *testing.T) {
	c := New(make([]byte, 0x10000), 0xf000, 0)
	c.PowerReady()
	_ = c.WriteReg02(0)
	err := feedArgByteErr(c, 0xee)
	if err == nil {
		t.Fatal("expected error for an unrecognized flash command")
	}
}
