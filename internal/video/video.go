// Package video implements the device's graphics model: a flat indexed
// framebuffer, the hardware gamma-corrected palette, the row-RLE sprite
// codec, and the 8x16 monochrome font renderer. There is no tile map or
// sprite compositor — every draw is a direct blit triggered by a BIOS trap.
package video

import "github.com/toumapet/toumapet-emu/internal/emuerr"

// ScreenWidth is fixed across both device models; only the height varies.
const ScreenWidth = 128

// Framebuffer is the device's LCD backing store: one palette index per
// pixel, row-major.
type Framebuffer struct {
	Width  int
	Height int
	Pix    []byte
}

// NewFramebuffer allocates a blank framebuffer for the given screen height.
func NewFramebuffer(height int) *Framebuffer {
	return &Framebuffer{Width: ScreenWidth, Height: height, Pix: make([]byte, ScreenWidth*height)}
}

// Palette is a 256-entry table of packed host pixel values (one per
// possible framebuffer index), laid out for the host window's pixel format.
type Palette [256]uint32

var gamma3 = [8]int{0, 5, 21, 47, 83, 130, 187, 255}
var gamma2 = [4]int{0, 28, 113, 255}

// BuildPalette derives the 256-color hardware palette for a host pixel
// format whose red channel starts at byte offset redByteIndex within each
// packed 32-bit pixel (0-3). Matches sys_init()'s gamma tables and its
// channel-shift derivation from window.red.
func BuildPalette(redByteIndex int) Palette {
	rs := redByteIndex << 3
	as := 8
	if rs&16 != 0 {
		as = -8
	}
	gs := rs + as
	bs := gs + as
	as = (rs - as) & 24

	var pal Palette
	for i := 0; i < 256; i++ {
		r := gamma3[i>>5&7]
		g := gamma3[i>>2&7]
		b := gamma2[i&3]
		pal[i] = uint32(r)<<uint(rs) | uint32(g)<<uint(gs) | uint32(b)<<uint(bs) | uint32(0xff)<<uint(as)
	}
	return pal
}

// Render expands the framebuffer's palette indices into a host pixel
// buffer at the given integer zoom factor, matching sys_update()'s nested
// row/column replication.
func (fb *Framebuffer) Render(pal Palette, zoom int, dst []uint32, strideWords int) {
	for y := 0; y < fb.Height; y++ {
		rowBase := y * zoom * strideWords
		row := fb.Pix[y*fb.Width : (y+1)*fb.Width]
		for x, idx := range row {
			c := pal[idx]
			for zy := 0; zy < zoom; zy++ {
				base := rowBase + zy*strideWords + x*zoom
				for zx := 0; zx < zoom; zx++ {
					dst[base+zx] = c
				}
			}
		}
	}
}

// FillRows sets every pixel in rows [startRow, endRowInclusive] to color,
// matching bios_0c's clear_screen (the end row is clamped to the screen
// height and the call is a no-op once start >= end).
func (fb *Framebuffer) FillRows(startRow, endRowInclusive int, color byte) {
	end := endRowInclusive + 1
	if end > fb.Height {
		end = fb.Height
	}
	if startRow >= end {
		return
	}
	row := fb.Pix[startRow*fb.Width : end*fb.Width]
	for i := range row {
		row[i] = color
	}
}

// At returns the palette index at (x, y), or 0 if out of bounds.
func (fb *Framebuffer) At(x, y int) byte {
	if x < 0 || y < 0 || x >= fb.Width || y >= fb.Height {
		return 0
	}
	return fb.Pix[y*fb.Width+x]
}

// ReplicateColumnFill repeats, for each of the first rows rows, the pixel
// already drawn at column x across the [x, x+count) column range. Used by
// bios_0e's w==1 repeat mode after a single-column image has been drawn.
func (fb *Framebuffer) ReplicateColumnFill(x, rows, count int) {
	if rows > fb.Height {
		rows = fb.Height
	}
	if count > fb.Width-x {
		count = fb.Width - x
	}
	if count <= 0 {
		return
	}
	for y := 0; y < rows; y++ {
		v := fb.At(x, y)
		base := y*fb.Width + x
		for i := 0; i < count; i++ {
			fb.Pix[base+i] = v
		}
	}
}

// ReplicateRowDown copies row startRow's first width bytes into the
// following count-1 rows. Used by bios_0e's h==1 repeat mode after a
// single-row image has been drawn.
func (fb *Framebuffer) ReplicateRowDown(startRow, width, count int) {
	if width > fb.Width {
		width = fb.Width
	}
	if count <= 0 {
		return
	}
	src := fb.Pix[startRow*fb.Width : startRow*fb.Width+width]
	for i := 1; i < count; i++ {
		row := startRow + i
		if row >= fb.Height {
			break
		}
		copy(fb.Pix[row*fb.Width:row*fb.Width+width], src)
	}
}

// Flip bits for DrawImage, matching the original's flip argument.
const (
	FlipX = 1
	FlipY = 2
)

func sext8(v int) int {
	return int(int8(v))
}

func read16(b []byte, off int) int {
	return int(b[off]) | int(b[off+1])<<8
}

// blendComponent replicates the bit-twiddled per-channel averaging in
// draw_image's pixel-write inner loop.
func blendComponent(x, blend int) int {
	xm := func(m int) int { return ((x & m) + (blend & m)) & (m << 1) }
	return (xm(0xe3) | xm(0x1c)) >> 1
}

// DrawImage decodes and blits a row-RLE sprite. data must be the ROM bytes
// starting at the resource's offset and running to the end of the ROM
// image (not just to the resource's own end — the original reads against
// rom_size, not the resource table's next-entry bound, so an image's RLE
// rows may legally run past where the next resource begins).
//
// flip bit0 mirrors horizontally, bit1 mirrors vertically. blend 0xff
// means no blending; any other value is averaged per-channel with the
// drawn pixel. alpha is the color-key value to skip, or -1 to draw every
// pixel.
func DrawImage(fb *Framebuffer, x, y, flip, blend, alpha int, data []byte) error {
	if len(data) < 4 {
		return emuerr.New(emuerr.CategoryDecode, "image header truncated")
	}
	if data[1] != 0 || data[3] != 0x80 {
		return emuerr.New(emuerr.CategoryDecode, "unsupported image")
	}
	if flip > 3 {
		return emuerr.New(emuerr.CategoryDecode, "unsupported flip")
	}
	w, h := int(data[0]), int(data[2])
	w2, h2 := w, h
	src := data[4:]
	size := len(data) - 4

	screenW, screenH := fb.Width, fb.Height
	xSkip, ySkip := 0, 0
	if x >= screenW {
		x = sext8(x)
		xSkip = -x
	}
	if y >= screenH {
		y = sext8(y)
		ySkip = -y
	}
	if x > screenW || y > screenH {
		return nil
	}
	if x+w > screenW {
		w = screenW - x
	}
	if y+h > screenH {
		h = screenH - y
	}

	d := y*screenW + x
	xAdd, yAdd := 1, screenW
	if flip&FlipX != 0 {
		d += w2 - 1
		xAdd = -xAdd
		x = w
		w = w2 - xSkip
		xSkip = w2 - x
	}
	if flip&FlipY != 0 {
		d += (h2 - 1) * yAdd
		yAdd = -yAdd
		y = h
		h = h2 - ySkip
		ySkip = h2 - y
	}
	if w <= 0 || h <= 0 {
		return nil
	}

	srcPos := 0
	for {
		rowLen := read16(src, srcPos)
		s := srcPos + 2
		d2 := d
		a, n := 0, 1
		skip := xSkip

		if size < rowLen {
			return emuerr.New(emuerr.CategoryDecode, "read outside the ROM")
		}
		srcPos += rowLen
		size -= rowLen
		d += yAdd
		remaining := rowLen - 4

		ySkip--
		if ySkip < 0 {
			w2loop := w
			for {
				n--
				if n == 0 {
					remaining--
					if remaining < 0 {
						return emuerr.New(emuerr.CategoryDecode, "RLE error")
					}
					a = int(src[s])
					s++
					n = 1
					if a == 0 {
						remaining -= 2
						if remaining < 0 {
							return emuerr.New(emuerr.CategoryDecode, "RLE error")
						}
						a = int(src[s])
						n = int(src[s+1])
						s += 2
						if n == 0 {
							return emuerr.New(emuerr.CategoryDecode, "zero RLE count")
						}
					}
				}
				skip--
				if skip < 0 && a != alpha {
					v := a
					if blend != 0xff {
						v = blendComponent(v, blend)
					}
					fb.Pix[d2] = byte(v)
				}
				d2 += xAdd
				w2loop--
				if w2loop == 0 {
					break
				}
			}
		}
		h--
		if h == 0 {
			break
		}
	}
	return nil
}

// FontGlyphOffset returns the byte offset of character id's 16-byte glyph,
// given the ROM's font-table base pointer (read16 at ROM offset 7).
func FontGlyphOffset(fontBase uint16, id int) (int, error) {
	if id < 0x20 {
		return 0, emuerr.New(emuerr.CategoryDecode, "unsupported char %d", id)
	}
	return int(fontBase) + (id-0x20)<<4, nil
}

// DrawChar renders one 8x16 monochrome glyph. bg < 0 means transparent
// background (only set bits are drawn); bg >= 0 fills cleared bits too.
func DrawChar(fb *Framebuffer, x, y int, glyph []byte, color, bg int) error {
	if len(glyph) < 16 {
		return emuerr.New(emuerr.CategoryDecode, "read outside the ROM")
	}
	w, h := 8, 16
	screenW, screenH := fb.Width, fb.Height
	if x > screenW || y > screenH {
		return nil
	}
	if x+w > screenW {
		w = screenW - x
	}
	if y+h > screenH {
		h = screenH - y
	}
	for row := 0; row < h; row++ {
		a := int(glyph[row])
		base := (y+row)*screenW + x
		for col := 0; col < w; col++ {
			if a&0x80 != 0 {
				fb.Pix[base+col] = byte(color)
			} else if bg >= 0 {
				fb.Pix[base+col] = byte(bg)
			}
			a <<= 1
		}
	}
	return nil
}
