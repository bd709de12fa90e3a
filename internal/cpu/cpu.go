// Package cpu implements a W65C02S decode/execute engine: the full
// documented instruction set plus the 65C02 additions (BRA, PHX/PLX,
// PHY/PLY, STZ, TRB/TSB, RMBn/SMBn, BBRn/BBSn, BIT immediate, JMP
// (a,x), WAI, STP), decimal-mode ADC/SBC, and a narrow hand-off for the
// BIOS trap range that lets the caller splice in host-side behavior
// without the CPU knowing anything about BIOS calls, flash, or paging.
package cpu

import "github.com/toumapet/toumapet-emu/internal/emuerr"

// Bus is the memory interface the CPU executes against. Addresses are
// always passed already wrapped to 16 bits.
type Bus interface {
	Read(addr uint16) uint8
	Write(addr uint16, v uint8)
}

// Status register bit masks.
const (
	MaskC uint8 = 1 << iota
	MaskZ
	MaskI
	MaskD
	MaskB
	maskUnused
	MaskV
	MaskN
)

// Trap range: any PC at or above TrapBase hands control to the
// TrapHandler instead of being fetched as an opcode.
const (
	TrapBase = 0x6000
	SysRet   = 0x7000
	sysRet1  = 0x7001
	sysRetOp = 0x60 // RTS
)

// TrapAction tells the CPU what to do after a trap hand-off returns.
type TrapAction int

const (
	// ActionInjectReturn replicates the original's "write an RTS at
	// 0x7001 and jump there" trick: whatever is on top of the 6502
	// stack at this point becomes the resume address. Used for BIOS
	// calls, the ROM-read trap, and a non-final paging-stack pop.
	ActionInjectReturn TrapAction = iota
	// ActionJump sets PC directly and resumes fetching from there
	// (used by paging call/tail-call, which bypass the RTS trick).
	ActionJump
	// ActionHalt ends the current Run call (final paging-stack pop,
	// or a fatal condition already reported via err).
	ActionHalt
)

// TrapHandler processes any PC >= TrapBase. It owns BIOS dispatch, the
// ROM-read micro-trap, and paging-stack call/return/tail-call.
type TrapHandler interface {
	HandleTrap(pc uint16) (action TrapAction, jumpTo uint16, err error)
}

// CPU holds W65C02S register state. Flags are kept unpacked into
// sign-extended per-flag variables during Run for cheap branch tests,
// matching the original's UNPACK_FLAGS/PACK_FLAGS macros, and packed
// back into Flags whenever Run returns.
type CPU struct {
	PC           uint16
	A, X, Y, SP  uint8
	Flags        uint8
	zflag        uint8
	nflag, vflag int8
	cflag        uint16
}

// Reset zeroes every register, matching a fresh cpu_state_t.
func (c *CPU) Reset() {
	*c = CPU{}
}

func (c *CPU) unpackFlags(t uint8) {
	c.zflag = ^t & 2
	c.nflag = int8(t)
	c.vflag = int8(t << 1)
	c.cflag = uint16(t&1) << 8
}

func (c *CPU) packFlags() uint8 {
	t := c.Flags &^ 0xc3
	if c.zflag == 0 {
		t |= 2
	}
	t |= uint8(c.cflag >> 8)
	t |= uint8(c.vflag) >> 1 & 0x40
	t |= uint8(c.nflag) & 0x80
	return t
}

// waitError is the sentinel CPU.Run returns for a WAI instruction, a
// normal (non-fatal) yield rather than a CPU fault.
type waitError struct{}

func (waitError) Error() string { return "WAI" }

// IsWait reports whether err is the sentinel returned for a WAI
// instruction, as opposed to a genuine CPU fault.
func IsWait(err error) bool {
	_, ok := err.(waitError)
	return ok
}

// Run executes instructions against bus, handing every PC >= TrapBase to
// trap, until trap signals ActionHalt, a WAI executes, or a fault occurs.
// Mirrors run_emu(): unpack flags, loop, pack flags back on return.
func (c *CPU) Run(bus Bus, trap TrapHandler) error {
	c.unpackFlags(c.Flags)
	pc := c.PC

	finish := func(err error) error {
		c.PC = pc
		c.Flags = c.packFlags()
		return err
	}

	next := func() uint8 {
		v := bus.Read(pc)
		pc++
		return v
	}

	for {
		pc &= 0xffff

		if pc >= TrapBase {
			action, jumpTo, err := trap.HandleTrap(pc)
			if err != nil {
				return finish(err)
			}
			switch action {
			case ActionHalt:
				return finish(nil)
			case ActionJump:
				pc = jumpTo
				continue
			case ActionInjectReturn:
				bus.Write(sysRet1, sysRetOp)
				pc = sysRet1
			}
		}

		op := bus.Read(pc)
		pc++
		modeByte := opMode[op]
		store := modeByte&storeBit != 0
		mode := modeByte &^ storeBit

		o := int32(-1)  // effective memory address, -1 if none
		t := int32(0)   // operand value
		regTarget := -1 // 0=A, 1=X, 2=Y when the operand IS a register

		switch mode {
		case modNUL:
		case modIMM:
			t = int32(next())
		case modACC:
			regTarget = 0
			t = int32(c.A)
		case modX:
			regTarget = 1
			t = int32(c.X)
		case modY:
			regTarget = 2
			t = int32(c.Y)
		case modZ:
			o = int32(next())
		case modZX:
			o = (int32(next()) + int32(c.X)) & 0xff
		case modZY:
			o = (int32(next()) + int32(c.Y)) & 0xff
		case modZI:
			zp := next()
			lo := bus.Read(uint16(zp))
			hi := bus.Read(uint16((zp + 1) & 0xff))
			o = int32(lo) | int32(hi)<<8
		case modZXI:
			zp := (next() + c.X) & 0xff
			lo := bus.Read(uint16(zp))
			hi := bus.Read(uint16((zp + 1) & 0xff))
			o = int32(lo) | int32(hi)<<8
		case modZIY:
			zp := next()
			lo := bus.Read(uint16(zp))
			hi := bus.Read(uint16((zp + 1) & 0xff))
			o = (int32(lo) | int32(hi)<<8)
			o = (o + int32(c.Y)) & 0xffff
		case modA:
			lo := next()
			hi := next()
			o = int32(lo) | int32(hi)<<8
		case modAX:
			lo := next()
			hi := next()
			o = ((int32(lo) | int32(hi)<<8) + int32(c.X)) & 0xffff
		case modAY:
			lo := next()
			hi := next()
			o = ((int32(lo) | int32(hi)<<8) + int32(c.Y)) & 0xffff
		case modR:
			t = int32(int8(next()))
		}

		// A target memory address is read now, UNLESS this is a
		// store-class opcode (STA/STX/STY/STZ): those compute o but
		// never dereference it, so they never trip the device's
		// memory-mapped-I/O read side effects (see bios_emu's input
		// latch/status bits, which only fire on genuine reads).
		if o >= 0 && !store {
			t = int32(bus.Read(uint16(o)))
		}

		writeBack := true

		switch op {
		// BBRn / BBSn
		case 0x0f, 0x1f, 0x2f, 0x3f, 0x4f, 0x5f, 0x6f, 0x7f,
			0x8f, 0x9f, 0xaf, 0xbf, 0xcf, 0xdf, 0xef, 0xff:
			bit := (t >> uint(op>>4&7)) & 1
			rel := int32(int8(next()))
			writeBack = false
			if bit == int32(op>>7) {
				pc = uint16(int32(pc) + rel)
			}

		case 0x10: // BPL
			writeBack = false
			if c.nflag >= 0 {
				pc = uint16(int32(pc) + t)
			}
		case 0x30: // BMI
			writeBack = false
			if c.nflag < 0 {
				pc = uint16(int32(pc) + t)
			}
		case 0x50: // BVC
			writeBack = false
			if c.vflag >= 0 {
				pc = uint16(int32(pc) + t)
			}
		case 0x70: // BVS
			writeBack = false
			if c.vflag < 0 {
				pc = uint16(int32(pc) + t)
			}
		case 0x80: // BRA
			writeBack = false
			pc = uint16(int32(pc) + t)
		case 0x90: // BCC
			writeBack = false
			if c.cflag < 0x100 {
				pc = uint16(int32(pc) + t)
			}
		case 0xb0: // BCS
			writeBack = false
			if c.cflag >= 0x100 {
				pc = uint16(int32(pc) + t)
			}
		case 0xd0: // BNE
			writeBack = false
			if c.zflag != 0 {
				pc = uint16(int32(pc) + t)
			}
		case 0xf0: // BEQ
			writeBack = false
			if c.zflag == 0 {
				pc = uint16(int32(pc) + t)
			}

		case 0x07, 0x17, 0x27, 0x37, 0x47, 0x57, 0x67, 0x77: // RMBn
			t = t &^ (1 << uint(op>>4&7))
		case 0x87, 0x97, 0xa7, 0xb7, 0xc7, 0xd7, 0xe7, 0xf7: // SMBn
			t = t | 1<<uint(op>>4&7)

		case 0x18: // CLC
			c.cflag = 0
			writeBack = false
		case 0x38: // SEC
			c.cflag = 0x100
			writeBack = false
		case 0x58: // CLI
			c.Flags &^= MaskI
			writeBack = false
		case 0x78: // SEI
			c.Flags |= MaskI
			writeBack = false
		case 0xb8: // CLV
			c.vflag = 0
			writeBack = false
		case 0xd8: // CLD
			c.Flags &^= MaskD
			writeBack = false
		case 0xf8: // SED
			c.Flags |= MaskD
			writeBack = false

		case 0x06, 0x0e, 0x16, 0x1e, 0x0a: // ASL mem/A
			t = t << 1
			c.zflag, c.nflag, c.cflag = uint8(t), int8(t), uint16(uint8(t))
			if t&0x100 != 0 {
				c.cflag |= 0x100
			}

		case 0x24, 0x2c, 0x34, 0x3c, 0x89: // BIT mem/#
			c.zflag = uint8(t) & c.A
			c.nflag = int8(t)
			c.vflag = int8(t << 1)
			writeBack = false

		case 0x26, 0x2e, 0x36, 0x3e, 0x2a: // ROL mem/A
			t = t<<1 | int32(c.cflag>>8)
			c.zflag, c.nflag = uint8(t), int8(t)
			c.cflag = uint16(t) & 0x1ff

		case 0x46, 0x4e, 0x56, 0x5e, 0x4a: // LSR mem/A
			c.cflag = uint16(t&1) << 8
			t >>= 1
			c.zflag, c.nflag = uint8(t), int8(t)

		case 0x66, 0x6e, 0x76, 0x7e, 0x6a: // ROR mem/A
			t |= int32(c.cflag & 0x100)
			c.cflag = uint16(t&1) << 8
			t >>= 1
			c.zflag, c.nflag = uint8(t), int8(t)

		case 0xa4, 0xac, 0xb4, 0xbc, 0xa0: // LDY mem/#
			c.Y = uint8(t)
			c.zflag, c.nflag = uint8(t), int8(t)
			writeBack = false

		case 0xa6, 0xae, 0xb6, 0xbe, 0xa2: // LDX mem/#
			c.X = uint8(t)
			c.zflag, c.nflag = uint8(t), int8(t)
			writeBack = false

		case 0xc6, 0xce, 0xd6, 0xde, 0x3a, 0x88, 0xca: // DEC mem/A/Y/X
			t--
			c.zflag, c.nflag = uint8(t), int8(t)
			if regTarget == 1 {
				c.X = uint8(t)
				writeBack = false
			} else if regTarget == 2 {
				c.Y = uint8(t)
				writeBack = false
			}

		case 0xe6, 0xee, 0xf6, 0xfe, 0x1a, 0xc8, 0xe8: // INC mem/A/Y/X
			t++
			c.zflag, c.nflag = uint8(t), int8(t)
			if regTarget == 1 {
				c.X = uint8(t)
				writeBack = false
			} else if regTarget == 2 {
				c.Y = uint8(t)
				writeBack = false
			}

		case 0x05, 0x0d, 0x15, 0x1d, 0x01, 0x11, 0x12, 0x19, 0x09: // ORA
			c.A = uint8(int32(c.A) | t)
			t = int32(c.A)
			c.zflag, c.nflag = uint8(t), int8(t)
			writeBack = false

		case 0x25, 0x2d, 0x35, 0x3d, 0x21, 0x31, 0x32, 0x39, 0x29: // AND
			c.A = uint8(int32(c.A) & t)
			t = int32(c.A)
			c.zflag, c.nflag = uint8(t), int8(t)
			writeBack = false

		case 0x45, 0x4d, 0x55, 0x5d, 0x41, 0x51, 0x52, 0x59, 0x49: // EOR
			c.A = uint8(int32(c.A) ^ t)
			t = int32(c.A)
			c.zflag, c.nflag = uint8(t), int8(t)
			writeBack = false

		case 0x65, 0x6d, 0x75, 0x7d, 0x61, 0x71, 0x72, 0x79, 0x69: // ADC
			c.adc(op, t)
			writeBack = false
		case 0xe5, 0xed, 0xf5, 0xfd, 0xe1, 0xf1, 0xf2, 0xf9, 0xe9: // SBC
			c.adc(op, t^0xff)
			writeBack = false

		case 0x64, 0x74, 0x9c, 0x9e: // STZ
			t = 0
		case 0x84, 0x8c, 0x94: // STY
			t = int32(c.Y)
		case 0x86, 0x8e, 0x96: // STX
			t = int32(c.X)
		case 0x85, 0x8d, 0x95, 0x9d, 0x81, 0x91, 0x92, 0x99: // STA
			t = int32(c.A)

		case 0xa5, 0xad, 0xb5, 0xbd, 0xa1, 0xb1, 0xb2, 0xb9, 0xa9: // LDA
			c.A = uint8(t)
			c.zflag, c.nflag = uint8(t), int8(t)
			writeBack = false

		case 0xc0, 0xc4, 0xcc: // CPY
			t = int32(c.Y) - t
			c.cflag = uint16(t + 0x100)
			c.zflag, c.nflag = uint8(t), int8(t)
			writeBack = false
		case 0xe0, 0xe4, 0xec: // CPX
			t = int32(c.X) - t
			c.cflag = uint16(t + 0x100)
			c.zflag, c.nflag = uint8(t), int8(t)
			writeBack = false
		case 0xc5, 0xcd, 0xd5, 0xdd, 0xc1, 0xd1, 0xd2, 0xd9, 0xc9: // CMP
			t = int32(c.A) - t
			c.cflag = uint16(t + 0x100)
			c.zflag, c.nflag = uint8(t), int8(t)
			writeBack = false

		case 0x4c: // JMP a
			pc = uint16(t) | uint16(next())<<8
			writeBack = false
		case 0x6c, 0x7c: // JMP (a) / (a,x)
			lo := uint8(t)
			hi := bus.Read(uint16((o + 1) & 0xffff))
			pc = uint16(lo) | uint16(hi)<<8
			writeBack = false

		case 0x04, 0x0c: // TSB
			a := int32(c.A)
			c.zflag = uint8(t & a)
			t |= a
		case 0x14, 0x1c: // TRB
			a := int32(c.A)
			c.zflag = uint8(t & a)
			t &^= a

		case 0x8a: // TXA
			c.A = c.X
			t = int32(c.A)
			c.zflag, c.nflag = uint8(t), int8(t)
			writeBack = false
		case 0x98: // TYA
			c.A = c.Y
			t = int32(c.A)
			c.zflag, c.nflag = uint8(t), int8(t)
			writeBack = false
		case 0x9a: // TXS
			c.SP = c.X
			writeBack = false
		case 0xa8: // TAY
			c.Y = c.A
			t = int32(c.Y)
			c.zflag, c.nflag = uint8(t), int8(t)
			writeBack = false
		case 0xaa: // TAX
			c.X = c.A
			t = int32(c.X)
			c.zflag, c.nflag = uint8(t), int8(t)
			writeBack = false
		case 0xba: // TSX
			c.X = c.SP
			t = int32(c.X)
			c.zflag, c.nflag = uint8(t), int8(t)
			writeBack = false

		case 0x08: // PHP
			c.push(bus, c.packFlags())
			writeBack = false
		case 0x48: // PHA
			c.push(bus, c.A)
			writeBack = false
		case 0x5a: // PHY
			c.push(bus, c.Y)
			writeBack = false
		case 0xda: // PHX
			c.push(bus, c.X)
			writeBack = false

		case 0x28: // PLP
			c.Flags = c.pull(bus)
			c.unpackFlags(c.Flags)
			writeBack = false
		case 0x68: // PLA
			c.A = c.pull(bus)
			writeBack = false
		case 0x7a: // PLY
			c.Y = c.pull(bus)
			writeBack = false
		case 0xfa: // PLX
			c.X = c.pull(bus)
			writeBack = false

		case 0x20: // JSR
			c.pushPC(bus, pc)
			pc = uint16(t) | uint16(next())<<8
			writeBack = false

		case 0x40: // RTI
			sp := c.SP + 1
			c.Flags = bus.Read(0x100 + uint16(sp))
			c.unpackFlags(c.Flags)
			lo := bus.Read(0x100 + uint16(sp+1))
			hi := bus.Read(0x100 + uint16(sp+2))
			c.SP = sp + 2
			pc = uint16(lo) | uint16(hi)<<8
			writeBack = false

		case 0x60: // RTS
			sp := c.SP + 1
			lo := bus.Read(0x100 + uint16(sp))
			hi := bus.Read(0x100 + uint16(sp+1))
			c.SP = sp + 1
			pc = (uint16(lo) | uint16(hi)<<8) + 1
			writeBack = false

		case 0xea: // NOP
			writeBack = false

		case 0xcb: // WAI
			return finish(waitError{})

		case 0x00, 0xdb, // BRK, STP
			0x02, 0x03, 0x0b, 0x13, 0x1b, 0x22, 0x23, 0x2b, 0x33, 0x3b,
			0x42, 0x43, 0x44, 0x4b, 0x53, 0x54, 0x5b, 0x5c,
			0x62, 0x63, 0x6b, 0x73, 0x7b, 0x82, 0x83, 0x8b, 0x93, 0x9b,
			0xa3, 0xab, 0xb3, 0xbb, 0xc2, 0xc3, 0xd3, 0xd4, 0xdc,
			0xe2, 0xe3, 0xeb, 0xf3, 0xf4, 0xfb, 0xfc:
			return finish(emuerr.New(emuerr.CategoryCPU, "unexpected opcode 0x%02x", op))

		default:
			return finish(emuerr.New(emuerr.CategoryCPU, "unknown opcode 0x%02x", op))
		}

		if writeBack {
			v := uint8(t)
			switch regTarget {
			case 0:
				c.A = v
			case 1:
				c.X = v
			case 2:
				c.Y = v
			}
			if o >= 0 {
				bus.Write(uint16(o), v)
			}
		}
	}
}

func (c *CPU) push(bus Bus, v uint8) {
	sp := c.SP
	c.SP = sp - 1
	bus.Write(0x100+uint16(sp), v)
}

// pull reads the next stack byte. PLA/PLY/PLX leave Z/N untouched, matching
// the firmware's production build; PLP instead restores Flags wholesale and
// unpacks it itself.
func (c *CPU) pull(bus Bus) uint8 {
	sp := c.SP + 1
	c.SP = sp
	return bus.Read(0x100 + uint16(sp))
}

func (c *CPU) pushPC(bus Bus, pc uint16) {
	sp := c.SP
	c.SP = sp - 2
	bus.Write(0x100+uint16(sp), uint8(pc>>8))
	bus.Write(0x100+uint16(sp-1), uint8(pc))
}

// adc implements the shared ADC/SBC decimal-and-binary path (op_add2 in
// the original): op determines ADC (<=0x7f) vs SBC (>0x7f) rounding
// direction in decimal mode; t is the already-complemented operand for SBC.
func (c *CPU) adc(op uint8, t int32) {
	a := int32(c.A)
	d := a ^ t
	if c.Flags&MaskD != 0 {
		b := (a & 15) + (t & 15) + int32(c.cflag>>8)
		if op <= 0x7f {
			if b >= 10 {
				b += 6
			}
		} else if b < 16 {
			b -= 6
		}
		extra := int32(0)
		if b >= 16 {
			extra = 16
		}
		b = (a & 0xf0) + (t & 0xf0) + extra + b&15
		c.vflag = int8((b ^ a) &^ d)
		if op <= 0x7f {
			if b >= 0xa0 {
				b += 0x60
			}
			c.cflag = uint16(b)
		} else {
			c.cflag = uint16(b)
			if b < 0x100 {
				b -= 0x60
			}
		}
		t = b
	} else {
		t += a + int32(c.cflag>>8)
		c.vflag = int8((t ^ a) &^ d)
		c.cflag = uint16(t)
	}
	c.A = uint8(t)
	c.zflag, c.nflag = uint8(t), int8(t)
}
