// Package bios implements the cartridge-facing system call layer: the
// fifteen operations a ROM image invokes to query resource sizes, blit
// images and glyphs, clear regions of the screen, and test sprite
// overlap. In the original these all share one BIOS entry point keyed by
// the X register; the trap layer here instead gives each call its own
// trap address (TrapBase|id) and dispatches on that directly.
package bios

import (
	"github.com/toumapet/toumapet-emu/internal/emuerr"
	"github.com/toumapet/toumapet-emu/internal/video"
)

// Call IDs, also used as the low byte of each call's trap address.
const (
	ImageSize      = 0x06
	ImageDrawAlpha = 0x08
	ImageDraw      = 0x0a
	ClearScreen    = 0x0c
	RepeatLine     = 0x0e
	CheckIntersect = 0x10
	Diag14         = 0x14
	Diag16         = 0x16
	Diag18         = 0x18
	Diag1a         = 0x1a
	Diag1c         = 0x1c
	Diag1e         = 0x1e
	DrawCharAlpha  = 0x24
	DrawChar       = 0x26
	Diag2c         = 0x2c
)

// Machine is the subset of device state a BIOS call can observe or
// mutate: the CPU's zero-page-adjacent argument block (addresses
// 0x80-0x109 live inside RAM), the ROM's resource table, and the
// framebuffer.
type Machine interface {
	RAM() []byte
	ROMSize() int
	ResourceOffset(id int) (uint32, error)
	ROMFrom(offset uint32) []byte
	ScreenHeight() int
	Framebuffer() *video.Framebuffer
	FontBase() uint16
}

// Dispatch runs the handler for call id, matching the original's
// bios_06..bios_2c family. Most calls return no value; CheckIntersect
// reports its boolean result as a plain bool for the caller to write
// into the CPU accumulator.
func Dispatch(m Machine, id uint8) (result bool, err error) {
	ram := m.RAM()
	switch id {
	case ImageSize:
		return false, imageSize(m, ram)
	case ImageDrawAlpha:
		return false, drawImageCall(m, ram, 0xff)
	case ImageDraw:
		return false, drawImageCall(m, ram, -1)
	case ClearScreen:
		clearScreen(m, ram)
		return false, nil
	case RepeatLine:
		return false, repeatLine(m, ram)
	case CheckIntersect:
		return checkIntersect(m, ram)
	case Diag14, Diag16, Diag18, Diag1a, Diag2c:
		return false, diagReadAddr(m, ram)
	case Diag1c, Diag1e:
		return false, nil
	case DrawCharAlpha:
		return false, drawCharCall(m, ram, -1)
	case DrawChar:
		return false, drawCharCall(m, ram, int(ram[0x104]))
	default:
		return false, emuerr.New(emuerr.CategoryCPU, "unknown syscall 0x%02x", id)
	}
}

func read16(b []byte, off int) int  { return int(b[off]) | int(b[off+1])<<8 }
func read24(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16
}

// imageSize reports a resource's width/height, matching bios_06.
func imageSize(m Machine, ram []byte) error {
	id := read16(ram, 0x100)
	ram[0x102] = byte(id)
	ram[0x103] = byte(id >> 8)
	offs, err := m.ResourceOffset(id)
	if err != nil {
		return err
	}
	rom := m.ROMFrom(offs)
	if len(rom) < 3 {
		return emuerr.New(emuerr.CategoryBIOS, "read outside the ROM")
	}
	ram[0x85] = rom[0]
	ram[0x86] = rom[2]
	return nil
}

// drawImageCall backs both image_draw_alpha (color key 0xff: pixels with
// that index are left transparent) and image_draw (color key -1, which
// never matches a real pixel value, so every pixel is drawn opaquely),
// matching bios_08/bios_0a.
func drawImageCall(m Machine, ram []byte, alpha int) error {
	x := int(ram[0x100])
	y := int(ram[0x101])
	id := read16(ram, 0x102)
	flip := int(ram[0x104])
	blend := int(ram[0x105])
	offs, err := m.ResourceOffset(id)
	if err != nil {
		return err
	}
	return video.DrawImage(m.Framebuffer(), x, y, flip, blend, alpha, m.ROMFrom(offs))
}

// clearScreen fills a row range with a flat color, matching bios_0c.
func clearScreen(m Machine, ram []byte) {
	start := int(ram[0x100])
	end := int(ram[0x101])
	color := ram[0x102]
	m.Framebuffer().FillRows(start, end, color)
}

// repeatLine draws a 1-pixel-wide or 1-pixel-tall strip image once, then
// replicates it across the requested range, matching bios_0e.
func repeatLine(m Machine, ram []byte) error {
	start := int(ram[0x100])
	end := int(ram[0x101]) + 1
	id := read16(ram, 0x102)
	offs, err := m.ResourceOffset(id)
	if err != nil {
		return err
	}
	rom := m.ROMFrom(offs)
	if len(rom) < 4 {
		return emuerr.New(emuerr.CategoryBIOS, "read outside the ROM")
	}
	w, h := int(rom[0]), int(rom[2])
	fb := m.Framebuffer()

	switch {
	case w == 1:
		if err := video.DrawImage(fb, start, 0, 0, 0xff, -1, rom); err != nil {
			return err
		}
		if end > video.ScreenWidth {
			end = video.ScreenWidth
		}
		if h > m.ScreenHeight() {
			h = m.ScreenHeight()
		}
		if start >= end {
			return nil
		}
		fb.ReplicateColumnFill(start, h, end-start)
	case h == 1:
		if err := video.DrawImage(fb, 0, start, 0, 0xff, -1, rom); err != nil {
			return err
		}
		if end > m.ScreenHeight() {
			end = m.ScreenHeight()
		}
		if w > video.ScreenWidth {
			w = video.ScreenWidth
		}
		if start >= end {
			return nil
		}
		fb.ReplicateRowDown(start, w, end-start)
	default:
		return emuerr.New(emuerr.CategoryBIOS, "unknown repeat mode")
	}
	return nil
}

// checkIntersect reports whether two resources' bounding boxes, placed at
// the given coordinates, overlap on both axes, matching bios_10's
// wraparound-aware comparison.
func checkIntersect(m Machine, ram []byte) (bool, error) {
	x1, y1 := int(ram[0x100]), int(ram[0x101])
	id1 := read16(ram, 0x102)
	x2, y2 := int(ram[0x105]), int(ram[0x106])
	id2 := read16(ram, 0x107)

	offs1, err := m.ResourceOffset(id1)
	if err != nil {
		return false, err
	}
	rom1 := m.ROMFrom(offs1)
	offs2, err := m.ResourceOffset(id2)
	if err != nil {
		return false, err
	}
	rom2 := m.ROMFrom(offs2)
	if len(rom1) < 3 || len(rom2) < 3 {
		return false, emuerr.New(emuerr.CategoryBIOS, "read outside the ROM")
	}
	w1, h1 := int(rom1[0]), int(rom1[2])
	w2, h2 := int(rom2[0]), int(rom2[2])

	var cmp int
	if (x2-x1)&0xff < w1 {
		cmp |= 1
	}
	if (x1-x2)&0xff < w2 {
		cmp |= 1 + 4
	}
	if (y2-y1)&0xff < h1 {
		cmp |= 2
	}
	if (y1-y2)&0xff < h2 {
		cmp |= 2 + 8
	}
	return cmp&3 == 3, nil
}

// diagReadAddr backs the four diagnostic traps (0x14/0x16/0x18/0x1a) and
// the diagnostic 0x2c, which all only bounds-check a resource address
// without mutating any state; nothing is logged.
func diagReadAddr(m Machine, ram []byte) error {
	addr := read24(ram, 0x80)
	if uint32(m.ROMSize()) < addr+4 {
		return emuerr.New(emuerr.CategoryBIOS, "read outside the ROM (0x%x)", addr)
	}
	return nil
}

// drawCharCall backs draw_char/draw_char_alpha, matching bios_26/bios_24.
func drawCharCall(m Machine, ram []byte, bg int) error {
	x := int(ram[0x100])
	y := int(ram[0x101])
	id := int(ram[0x102])
	color := int(ram[0x103])
	off, err := video.FontGlyphOffset(m.FontBase(), id)
	if err != nil {
		return err
	}
	glyph := m.ROMFrom(uint32(off))
	if len(glyph) < 16 {
		return emuerr.New(emuerr.CategoryBIOS, "read outside the ROM")
	}
	return video.DrawChar(m.Framebuffer(), x, y, glyph, color, bg)
}
