// Package device wires the CPU core, memory-mapped I/O, the ROM frame
// pager, the serial flash chip, and input state into one running
// machine: the part of the original that the CPU and BIOS packages
// deliberately know nothing about.
package device

import (
	"time"

	"github.com/toumapet/toumapet-emu/internal/bios"
	"github.com/toumapet/toumapet-emu/internal/cpu"
	"github.com/toumapet/toumapet-emu/internal/emuerr"
	"github.com/toumapet/toumapet-emu/internal/flash"
	"github.com/toumapet/toumapet-emu/internal/input"
	"github.com/toumapet/toumapet-emu/internal/paging"
	"github.com/toumapet/toumapet-emu/internal/rom"
	"github.com/toumapet/toumapet-emu/internal/video"
	"github.com/toumapet/toumapet-emu/internal/window"
)

// Special trap PCs outside the BIOS-call range (TrapBase|id).
const (
	pcROMRead  = 0x6003
	pcCall     = 0x60de
	pcTailCall = 0x6052
)

const (
	startAnimBit = 1
	framesPerSec = 30
)

// Machine is a fully wired toumapet device: one CPU, one ROM image, one
// framebuffer, one flash chip, one frame-paging stack, one input state.
type Machine struct {
	cpu   cpu.CPU
	mem   [0x10000]byte
	r     *rom.ROM
	fb    *video.Framebuffer
	flash *flash.Chip
	pages paging.Stack
	keys  *input.State

	fontBase uint16
	win      window.Window
	fault    error
	initDone bool

	timerRem uint32
}

// New builds a Machine around a verified, unmasked ROM and the window it
// will render to and read input from.
func New(r *rom.ROM, win window.Window) *Machine {
	keymap := input.KeymapFor550
	if r.Model() == rom.Model560 {
		keymap = input.KeymapFor560
	}
	m := &Machine{
		r:        r,
		fb:       video.NewFramebuffer(r.ScreenHeight()),
		flash:    flash.New(r.Bytes(), r.SaveOffset(), r.Key()),
		keys:     input.NewState(keymap),
		fontBase: uint16(read16(r.Bytes(), 7)),
		win:      win,
	}
	return m
}

// RAM exposes the CPU's flat 64KiB address space, used directly by the
// BIOS call layer for its 0x80-0x109 argument block.
func (m *Machine) RAM() []byte { return m.mem[:] }

// ROMSize implements bios.Machine.
func (m *Machine) ROMSize() int { return int(m.r.Size()) }

// ResourceOffset implements bios.Machine.
func (m *Machine) ResourceOffset(id int) (uint32, error) { return m.r.ResourceOffset(id) }

// ROMFrom implements bios.Machine: a slice running from offset to the end
// of the ROM image, since draw_image reads against rom_size rather than
// any one resource's own bounds.
func (m *Machine) ROMFrom(offset uint32) []byte {
	if offset > m.r.Size() {
		return nil
	}
	return m.r.Bytes()[offset:]
}

// ScreenHeight implements bios.Machine.
func (m *Machine) ScreenHeight() int { return m.r.ScreenHeight() }

// Framebuffer implements bios.Machine.
func (m *Machine) Framebuffer() *video.Framebuffer { return m.fb }

// FontBase implements bios.Machine.
func (m *Machine) FontBase() uint16 { return m.fontBase }

// Read implements cpu.Bus, including the memory-mapped input-port and
// status-bit side effects. Each of these, like the original, mutates the
// backing byte in place as part of being read.
func (m *Machine) Read(addr uint16) uint8 {
	v := m.mem[addr]
	switch addr {
	case 0x00:
		v = m.keys.Port0()
	case 0x02:
		v &^= 2
	case 0x14:
		v |= 1 << 6
	case 0x7b:
		v |= 1 << 3
	case 0x93:
		v |= 1 << 7
	default:
		return v
	}
	m.mem[addr] = v
	return v
}

// Write implements cpu.Bus, including the flash-controller and
// power/display side effects.
func (m *Machine) Write(addr uint16, v uint8) {
	m.mem[addr] = v
	switch addr {
	case 0x02:
		if err := m.flash.WriteReg02(v); err != nil {
			m.fault = err
		}
	case 0x12:
		if v != 0 {
			m.flash.PowerOff()
		} else {
			m.flash.PowerReady()
		}
	case 0x00:
		if v == 0 {
			m.keys.RequestPowerOff()
		}
	case 0x8000:
		if v == 0x28 {
			m.keys.RequestCleanScreen()
		}
	}
}

// HandleTrap implements cpu.TrapHandler.
func (m *Machine) HandleTrap(pc uint16) (cpu.TrapAction, uint16, error) {
	if m.fault != nil {
		return cpu.ActionHalt, 0, m.fault
	}
	switch pc {
	case cpu.SysRet:
		return m.handleReturn()
	case pcCall, pcTailCall:
		return m.handleCall(pc == pcTailCall)
	case pcROMRead:
		return m.handleROMRead()
	}
	if pc&0xff00 == cpu.TrapBase {
		return m.handleBIOS(uint8(pc))
	}
	return cpu.ActionHalt, 0, emuerr.New(emuerr.CategoryCPU, "unexpected pc 0x%04x", pc)
}

func (m *Machine) handleBIOS(id uint8) (cpu.TrapAction, uint16, error) {
	result, err := bios.Dispatch(m, id)
	if err != nil {
		return cpu.ActionHalt, 0, err
	}
	if id == bios.CheckIntersect {
		if result {
			m.cpu.A = 1
		} else {
			m.cpu.A = 0
		}
	}
	return cpu.ActionInjectReturn, 0, nil
}

func (m *Machine) handleROMRead() (cpu.TrapAction, uint16, error) {
	addr := read24(m.mem[:], 0x80)
	size := m.r.Size()
	if size <= addr {
		return cpu.ActionHalt, 0, emuerr.New(emuerr.CategoryPaging, "read outside the ROM (0x%x)", addr)
	}
	data := m.r.Bytes()
	n := size - addr
	for i := uint32(0); i < 6; i++ {
		if i < n {
			m.mem[0x8d+i] = data[addr+i]
		} else {
			m.mem[0x8d+i] = ^m.r.Key()
		}
	}
	return cpu.ActionInjectReturn, 0, nil
}

func (m *Machine) handleCall(tailCall bool) (cpu.TrapAction, uint16, error) {
	addr := read24(m.mem[:], 0x80)
	size := uint32(read16(m.mem[:], 0x83)) << 1
	if err := m.pages.Call(tailCall, addr, size, int(m.r.Size())); err != nil {
		return cpu.ActionHalt, 0, err
	}
	if !tailCall {
		ret := uint16(cpu.SysRet - 1)
		sp := m.cpu.SP
		m.cpu.SP = sp - 2
		m.mem[0x100+uint16(sp)] = uint8(ret >> 8)
		m.mem[0x100+uint16((sp-1)&0xff)] = uint8(ret)
	}
	copy(m.mem[paging.WindowBase:uint32(paging.WindowBase)+size], m.r.Bytes()[addr:addr+size])
	return cpu.ActionJump, paging.WindowBase, nil
}

func (m *Machine) handleReturn() (cpu.TrapAction, uint16, error) {
	done, addr, size, err := m.pages.Return()
	if err != nil {
		return cpu.ActionHalt, 0, err
	}
	if done {
		return cpu.ActionHalt, 0, nil
	}
	copy(m.mem[paging.WindowBase:uint32(paging.WindowBase)+size], m.r.Bytes()[addr:addr+size])
	return cpu.ActionInjectReturn, 0, nil
}

// pollEvents drains the window's event queue, matching game_event: ESC
// sets the quit bit and returns immediately; the five game buttons and
// the reset key update input.State; a closed window also requests quit.
// An empty queue or an EventNone ends the drain without setting any bit.
func (m *Machine) pollEvents() {
	for {
		ev, ok := m.win.PollEvent()
		if !ok {
			return
		}
		switch ev.Kind {
		case window.EventKeyPress, window.EventKeyRelease:
			if ev.Key == window.KeyEscape {
				if ev.Kind == window.EventKeyPress {
					m.keys.Quit()
				}
				return
			}
			pressed := ev.Kind == window.EventKeyPress
			switch ev.Key {
			case window.KeyLeft:
				m.keys.SetButton(input.ButtonLeft, pressed)
			case window.KeyDown:
				m.keys.SetButton(input.ButtonMiddle, pressed)
			case window.KeyRight:
				m.keys.SetButton(input.ButtonRight, pressed)
			case window.KeyDelete:
				m.keys.SetButton(input.ButtonSideLeft, pressed)
			case window.KeyPageDown:
				m.keys.SetButton(input.ButtonSideRight, pressed)
			case window.KeyReset:
				if pressed {
					m.keys.PressReset()
				}
			}
		case window.EventQuit:
			m.keys.Quit()
			return
		case window.EventNone:
			return
		}
	}
}

// runToHalt drives the CPU until it halts or blocks on WAI, surfacing a
// WAI as the wait bit rather than an error.
func (m *Machine) runToHalt() error {
	err := m.cpu.Run(m, m)
	if err != nil && cpu.IsWait(err) {
		m.keys.SetWait()
		return nil
	}
	return err
}

// setupFrame primes the CPU to enter the ROM at the given header-relative
// frame pointer/size pair (rom+3 for the boot frame, rom+0x1b for the
// per-tick frame), matching run_game's repeated frame_depth/sp/pc/0x80
// setup.
func (m *Machine) setupFrame(headerOffset int) {
	m.pages = paging.Stack{}
	m.cpu.SP = 0x7f
	m.cpu.PC = pcCall
	romBytes := m.r.Bytes()
	addr := uint32(read16(romBytes, headerOffset))
	size := uint32(read16(romBytes, headerOffset+2))
	m.mem[0x80] = byte(addr)
	m.mem[0x81] = byte(addr >> 8)
	m.mem[0x82] = byte(addr >> 16)
	m.mem[0x83] = byte(size)
	m.mem[0x84] = byte(size >> 8)
}

// boot runs the one-time startup frame, matching run_game's init_done gate.
func (m *Machine) boot() error {
	if m.initDone {
		return nil
	}
	m.initDone = true
	m.mem[0xa3] |= startAnimBit
	m.mem[0x99] = m.r.Key()
	m.setupFrame(3)
	return m.runToHalt()
}

// RunFrame executes one 30Hz tick: the idle-timer decrement, the
// sub-second accumulator, the WAI/resume branch, the per-tick ROM call,
// and the clean-screen flush, matching one iteration of run_game's main
// loop body (excluding display presentation and input polling, which the
// caller drives).
func (m *Machine) RunFrame(elapsedMs int64) error {
	if err := m.boot(); err != nil {
		return err
	}

	idle := uint16(read16(m.mem[:], 0x181))
	if idle != 0 {
		idle--
		m.mem[0x181] = byte(idle)
		m.mem[0x182] = byte(idle >> 8)
	}

	a := uint32(elapsedMs) * 256 / 1000
	m.mem[0xaf] += byte(a - m.timerRem)
	m.timerRem = a

	if m.keys.Bit(input.BitWait) {
		m.keys.ClearBit(input.BitWait)
	} else {
		m.mem[0x93] |= 1 << 4
		m.setupFrame(0x1b)
	}

	if err := m.runToHalt(); err != nil {
		return err
	}

	if m.keys.Bit(input.BitCleanScreen) {
		m.keys.ClearBit(input.BitCleanScreen)
		for i := range m.fb.Pix {
			m.fb.Pix[i] = 0
		}
	}
	return nil
}

// Run drives the 30Hz game loop against win until the player quits or
// requests a reset, matching run_game's outer while/goto-reset structure.
// A reset re-enters at the top with the CPU state zeroed and only the
// keymapped button bits preserved; a quit returns to the caller.
func (m *Machine) Run(pal video.Palette, zoom int) error {
	for {
		m.initDone = false
		m.cpu = cpu.CPU{}
		m.timerRem = 0
		last := m.win.NowMillis()

		m.win.Present(m.fb, pal, zoom)
		m.win.Sleep(500)
		m.pollEvents()

		dispTime := m.win.NowMillis()
		frames := 0
		for !m.keys.ShouldStop() {
			now := m.win.NowMillis()
			elapsed := now - last
			last = now
			if err := m.RunFrame(elapsed); err != nil {
				return err
			}
			m.win.Present(m.fb, pal, zoom)

			curTime := m.win.NowMillis()
			frames++
			if frames >= framesPerSec {
				dispTime += 1000
				frames = 0
			}
			sleepMs := int64(frames)*1000/framesPerSec + dispTime - curTime
			if sleepMs < 0 {
				dispTime = curTime
				frames = 0
			} else {
				m.win.Sleep(int(sleepMs))
			}
			m.pollEvents()
		}
		if m.keys.Bit(input.BitQuit) {
			return nil
		}
		m.keys.ResetForNewGame()
	}
}

// ApplyHostTime writes the host's wall-clock date/time into the RTC
// shadow registers the cartridge reads, matching update_time(). Only
// called when the CLI's --update-time flag is set.
func (m *Machine) ApplyHostTime() {
	now := time.Now()
	m.mem[0x1df] = uint8(now.Year() % 100)
	m.mem[0x1e0] = uint8(now.Month() - 1)
	m.mem[0x1e1] = uint8(now.Day() - 1)
	m.mem[0x1e2] = uint8(now.Hour())
	m.mem[0x1e3] = uint8(now.Minute())
	m.mem[0x1e4] = uint8(now.Second() * 2)
}

// xorSave re-masks the ROM's save-region tail with the XOR obfuscation
// key, matching xor_save(). Called once to unmask a freshly loaded save
// file and once to re-mask it before writing.
func (m *Machine) xorSave() {
	key := m.r.Key()
	if key == 0 {
		return
	}
	save := m.r.Bytes()[m.r.SaveOffset():]
	for i := range save {
		save[i] ^= key
	}
}

// LoadSave restores CPU RAM, the ROM's save-region tail, and the screen
// buffer from a previously saved state, matching main()'s save_fn load
// path. The save and screen payloads must be exactly the expected
// lengths; a mismatched length is fatal, as in the original.
func (m *Machine) LoadSave(ram, save, screen []byte) error {
	if len(ram) != len(m.mem) {
		return emuerr.New(emuerr.CategorySave, "unexpected save size")
	}
	if uint32(len(save)) != rom.SaveWindowSize {
		return emuerr.New(emuerr.CategorySave, "unexpected save size")
	}
	if len(screen) != len(m.fb.Pix) {
		return emuerr.New(emuerr.CategorySave, "unexpected save size")
	}
	copy(m.mem[:], ram)
	copy(m.r.Bytes()[m.r.SaveOffset():], save)
	copy(m.fb.Pix, screen)
	m.initDone = true
	m.xorSave()
	return nil
}

// StoreSave returns CPU RAM, the ROM's save-region tail, and the screen
// buffer, re-masked for on-disk storage exactly as main()'s save_fn write
// path does.
func (m *Machine) StoreSave() (ram, save, screen []byte) {
	m.xorSave()
	ram = append([]byte(nil), m.mem[:]...)
	save = append([]byte(nil), m.r.Bytes()[m.r.SaveOffset():]...)
	screen = append([]byte(nil), m.fb.Pix...)
	return ram, save, screen
}

func read16(b []byte, off int) int { return int(b[off]) | int(b[off+1])<<8 }
func read24(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16
}
